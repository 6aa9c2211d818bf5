package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ThrottleStore counts requests per key within a TTL window. It backs the
// rate-limit middleware; an in-memory implementation exists for tests.
type ThrottleStore struct {
	client *redis.Client
}

// NewThrottleStore creates a new ThrottleStore.
func NewThrottleStore(client *redis.Client) *ThrottleStore {
	return &ThrottleStore{client: client}
}

// Incr increments the counter for key, starting a TTL window on first use,
// and returns the new count.
func (s *ThrottleStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	redisKey := fmt.Sprintf("throttle:%s", key)

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, err
	}

	if count == 1 {
		if err := s.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return 0, err
		}
	}

	return count, nil
}
