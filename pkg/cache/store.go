package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps block sets in Redis hashes, one field per block.
type Store struct {
	rdb redis.Cmdable
}

func NewStore(rdb redis.Cmdable) *Store {
	if rdb == nil {
		panic("redis client cannot be nil")
	}
	return &Store{rdb: rdb}
}

// Get returns the hash at key. An empty or missing hash is a miss.
func (s *Store) Get(ctx context.Context, key string) (map[string]string, bool, error) {
	m, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return nil, false, nil
	}
	return m, true, nil
}

// Set replaces the hash at key and expires it after ttl.
func (s *Store) Set(ctx context.Context, key string, value map[string]string, ttl time.Duration) error {
	if len(value) == 0 {
		return nil
	}

	fields := make([]string, 0, 2*len(value))
	for k, v := range value {
		fields = append(fields, k, v)
	}

	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, fields)
		if ttl > 0 {
			p.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}
