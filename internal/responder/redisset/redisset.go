// Package redisset is a Redis-backed responder.ProcessedSet, so replicas
// share which posts were already handled.
package redisset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the sorted set holding processed post IDs.
const DefaultKey = "helpdesk:responder:processed"

// Set keeps post IDs in a sorted set scored by insertion time and trims
// the oldest members past its cap.
type Set struct {
	client *redis.Client
	key    string
	cap    int64
	now    func() time.Time
}

// New creates a Set. An empty key uses DefaultKey.
func New(client *redis.Client, key string, capacity int) *Set {
	if key == "" {
		key = DefaultKey
	}
	if capacity <= 0 {
		capacity = 10000
	}
	return &Set{client: client, key: key, cap: int64(capacity), now: time.Now}
}

// Contains reports whether postID was added.
func (s *Set) Contains(ctx context.Context, postID string) (bool, error) {
	err := s.client.ZScore(ctx, s.key, postID).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("zscore %s: %w", s.key, err)
	}
}

// Add records postID. Re-adding keeps the original position.
func (s *Set) Add(ctx context.Context, postID string) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAddNX(ctx, s.key, redis.Z{Score: float64(s.now().UnixMilli()), Member: postID})
		// Keep the newest cap members.
		p.ZRemRangeByRank(ctx, s.key, 0, -s.cap-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add %s to %s: %w", postID, s.key, err)
	}
	return nil
}

// Len returns the number of IDs held.
func (s *Set) Len(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard %s: %w", s.key, err)
	}
	return n, nil
}
