// Package dedupe suppresses duplicate delivery of the same update, so a
// double-tapped button is processed at most once. Telegram assigns each
// callback query a unique id; claiming that id in Redis with SETNX makes the
// first arrival win.
package dedupe

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "dedupe:update:"
	defaultTTL = 30 * time.Second
)

// Deduper claims update ids.
type Deduper struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// New creates a Redis-backed Deduper. A zero ttl uses the default.
func New(client *redis.Client, ttl time.Duration, log *slog.Logger) *Deduper {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = slog.Default()
	}

	return &Deduper{client: client, ttl: ttl, log: log}
}

// Claim reports whether this process is the first to see the update id. On
// Redis failure the update is allowed through: dropping real events is worse
// than occasionally processing a duplicate.
func (d *Deduper) Claim(ctx context.Context, updateID string) bool {
	if updateID == "" || d.client == nil {
		return true
	}

	claimed, err := d.client.SetNX(ctx, keyPrefix+updateID, 1, d.ttl).Result()
	if err != nil {
		d.log.Warn("dedupe claim failed, allowing update through",
			slog.String("update_id", updateID), slog.Any("error", err))
		return true
	}

	return claimed
}
