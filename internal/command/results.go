package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "portfolio:idempotency:"

type RedisResults struct {
	client *redis.Client
}

func NewRedisResults(client *redis.Client) *RedisResults {
	return &RedisResults{client: client}
}

func (s *RedisResults) Get(ctx context.Context, key string) (Result, bool, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("get result: %w", err)
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, false, fmt.Errorf("decode result: %w", err)
	}
	return result, true, nil
}

func (s *RedisResults) Put(ctx context.Context, key string, result Result, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

type memoryResult struct {
	result    Result
	expiresAt time.Time
}

// MemoryResults keeps results in process.
type MemoryResults struct {
	mu    sync.Mutex
	items map[string]memoryResult
	now   func() time.Time
}

func NewMemoryResults() *MemoryResults {
	return &MemoryResults{items: make(map[string]memoryResult), now: time.Now}
}

func (s *MemoryResults) Get(_ context.Context, key string) (Result, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return Result{}, false, nil
	}
	if !s.now().Before(item.expiresAt) {
		delete(s.items, key)
		return Result{}, false, nil
	}
	return item.result, true, nil
}

func (s *MemoryResults) Put(_ context.Context, key string, result Result, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memoryResult{result: result, expiresAt: s.now().Add(ttl)}
	return nil
}
