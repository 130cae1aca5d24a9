package dedupe

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupDeduper(t *testing.T) (*Deduper, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, time.Minute, testLogger()), mr
}

func TestClaim_FirstWins(t *testing.T) {
	d, _ := setupDeduper(t)
	ctx := context.Background()

	assert.True(t, d.Claim(ctx, "cb-123"))
	assert.False(t, d.Claim(ctx, "cb-123"))
	assert.True(t, d.Claim(ctx, "cb-456"), "distinct ids are independent")
}

func TestClaim_ExpiresAfterTTL(t *testing.T) {
	d, mr := setupDeduper(t)
	ctx := context.Background()

	assert.True(t, d.Claim(ctx, "cb-123"))

	mr.FastForward(2 * time.Minute)
	assert.True(t, d.Claim(ctx, "cb-123"))
}

func TestClaim_FailOpen(t *testing.T) {
	ctx := context.Background()

	noClient := New(nil, time.Minute, testLogger())
	assert.True(t, noClient.Claim(ctx, "cb-123"))

	d, mr := setupDeduper(t)
	mr.Close()
	assert.True(t, d.Claim(ctx, "cb-123"), "redis failure allows the update through")
}

func TestClaim_EmptyIDAlwaysAllowed(t *testing.T) {
	d, _ := setupDeduper(t)
	assert.True(t, d.Claim(context.Background(), ""))
}
