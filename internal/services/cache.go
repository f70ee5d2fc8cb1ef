package services

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "gamevault:catalog:"

// CacheService stores catalog GET responses in redis. Entries are shared by
// all callers since catalog reads do not depend on who asks.
type CacheService struct {
	client     *redis.Client
	defaultTTL time.Duration
}

func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client:     client,
		defaultTTL: defaultTTL,
	}
}

type CachedResponse struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Get returns nil, nil on a miss.
func (cs *CacheService) Get(ctx context.Context, key string) (*CachedResponse, error) {
	data, err := cs.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	var resp CachedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode cached response: %w", err)
	}
	return &resp, nil
}

func (cs *CacheService) Set(ctx context.Context, key string, response *CachedResponse, ttl time.Duration) error {
	if ttl == 0 {
		ttl = cs.defaultTTL
	}

	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	if err := cs.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

func (cs *CacheService) GenerateCacheKey(method, path, query string) string {
	hash := sha256.Sum256(fmt.Appendf(nil, "%s:%s:%s", method, path, query))
	return fmt.Sprintf("%s%x", cacheKeyPrefix, hash[:16])
}

// Invalidate removes every cached catalog response.
func (cs *CacheService) Invalidate(ctx context.Context) error {
	iter := cs.client.Scan(ctx, 0, cacheKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := cs.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to invalidate cache: %w", err)
		}
	}
	return iter.Err()
}

func (cs *CacheService) Ping(ctx context.Context) error {
	return cs.client.Ping(ctx).Err()
}
