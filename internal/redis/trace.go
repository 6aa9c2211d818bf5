package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tripbroker/internal/domain"
)

// Route traces are buffered in Redis while a trip is active and folded into
// the trip record at completion.
const traceTTL = 48 * time.Hour

// TraceStore buffers an active trip's route trace in a Redis list.
type TraceStore struct {
	client *redis.Client
}

// NewTraceStore creates a new TraceStore.
func NewTraceStore(client *redis.Client) *TraceStore {
	return &TraceStore{client: client}
}

func traceKey(tripID string) string {
	return fmt.Sprintf("trip:route:%s", tripID)
}

// Append adds a timestamped point to the trip's route trace.
func (s *TraceStore) Append(ctx context.Context, tripID string, point domain.RoutePoint) error {
	data, err := json.Marshal(point)
	if err != nil {
		return err
	}

	key := traceKey(tripID)
	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return err
	}

	return s.client.Expire(ctx, key, traceTTL).Err()
}

// Drain returns the full trace in order and deletes the buffer.
func (s *TraceStore) Drain(ctx context.Context, tripID string) ([]domain.RoutePoint, error) {
	key := traceKey(tripID)

	items, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	points := make([]domain.RoutePoint, 0, len(items))
	for _, item := range items {
		var point domain.RoutePoint
		if err := json.Unmarshal([]byte(item), &point); err != nil {
			return nil, err
		}
		points = append(points, point)
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return nil, err
	}

	return points, nil
}
