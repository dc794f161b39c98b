package store

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/portal/core"
	"github.com/layer-3/portal/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis challenge ledger shared by all portal instances
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a new Redis ledger
func NewRedisStore(client redis.UniversalClient) ports.ChallengeLedger {
	return &RedisStore{
		client: client,
		prefix: "portal:challenge:used:",
	}
}

// MarkUsed records the challenge with expiration
func (s *RedisStore) MarkUsed(ctx context.Context, challenge core.Challenge, ttl time.Duration) error {
	key := s.prefix + challengeKey(challenge)

	if err := s.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark challenge used: %w", err)
	}

	return nil
}

// IsUsed checks whether the challenge key exists
func (s *RedisStore) IsUsed(ctx context.Context, challenge core.Challenge) (bool, error) {
	key := s.prefix + challengeKey(challenge)

	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check challenge: %w", err)
	}

	return val > 0, nil
}
