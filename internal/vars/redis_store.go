package vars

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const userVarsKeyPattern = "user:vars:%d"

// RedisStore persists user variables in a Redis hash per user.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisStore initializes a Redis-backed Store implementation.
func NewRedisStore(client *redis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
	}
}

// Get returns every variable stored for the user, unwrapping envelope
// values.
func (s *RedisStore) Get(ctx context.Context, userID int64) (map[string]string, error) {
	key := redisVarsKey(userID)

	raw, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		s.log.Error("failed to read user variables", "user_id", userID, "error", err)
		return nil, fmt.Errorf("get user variables: %w", err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = Unwrap(v)
	}
	return out, nil
}

// Set writes a single variable for the user.
func (s *RedisStore) Set(ctx context.Context, userID int64, key, value string) error {
	if err := s.client.HSet(ctx, redisVarsKey(userID), key, value).Err(); err != nil {
		s.log.Error("failed to write user variable", "user_id", userID, "key", key, "error", err)
		return fmt.Errorf("set user variable: %w", err)
	}
	return nil
}

// HealthCheck verifies Redis connectivity.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func redisVarsKey(userID int64) string {
	return fmt.Sprintf(userVarsKeyPattern, userID)
}
