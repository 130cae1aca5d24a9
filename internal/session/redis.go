package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	runtimeKeyPattern = "user:runtime:%d"
	runtimeTTL        = 24 * time.Hour
)

// RedisStore mirrors runtime state into Redis so sessions survive restarts.
// Off by default; the product semantics treat a restarted process as idle
// for everyone, so this is an operator opt-in.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisStore returns a Redis-backed Store.
func NewRedisStore(client *redis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{client: client, log: log}
}

// Get returns the stored state or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, userID int64) (*UserState, error) {
	data, err := s.client.Get(ctx, runtimeKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		s.log.Error("failed to read runtime state", "user_id", userID, "error", err)
		return nil, err
	}

	var state UserState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		s.log.Error("failed to decode runtime state", "user_id", userID, "error", err)
		return nil, err
	}
	return &state, nil
}

// Set replaces the stored state with a TTL so abandoned sessions eventually
// expire.
func (s *RedisStore) Set(ctx context.Context, userID int64, state *UserState) error {
	state.UserID = userID
	state.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode runtime state: %w", err)
	}

	if err := s.client.Set(ctx, runtimeKey(userID), data, runtimeTTL).Err(); err != nil {
		s.log.Error("failed to save runtime state", "user_id", userID, "error", err)
		return err
	}
	return nil
}

// Clear removes the stored state.
func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, runtimeKey(userID)).Err(); err != nil {
		s.log.Error("failed to clear runtime state", "user_id", userID, "error", err)
		return err
	}
	return nil
}

func runtimeKey(userID int64) string {
	return fmt.Sprintf(runtimeKeyPattern, userID)
}
