package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/invoicing/backend/internal/infrastructure/printing"
	"github.com/redis/go-redis/v9"
)

const (
	fieldContentType = "ct"
	fieldData        = "data"
)

// RedisAssetCache stores fetched logos and QR images in Redis hashes so every
// renderer instance shares one copy per URL
type RedisAssetCache struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisAssetCache connects to Redis and verifies the connection
func NewRedisAssetCache(ctx context.Context, cfg RedisConfig) (*RedisAssetCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisAssetCacheWithClient(client, ""), nil
}

// NewRedisAssetCacheWithClient creates a cache on an existing client
func NewRedisAssetCacheWithClient(client *redis.Client, keyPrefix string) *RedisAssetCache {
	if keyPrefix == "" {
		keyPrefix = "docs:"
	}
	return &RedisAssetCache{client: client, keyPrefix: keyPrefix}
}

// Get implements printing.AssetCache
func (c *RedisAssetCache) Get(ctx context.Context, key string) (*printing.FetchResult, error) {
	fields, err := c.client.HGetAll(ctx, c.keyPrefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cached asset: %w", err)
	}
	data, ok := fields[fieldData]
	if !ok {
		return nil, nil
	}
	return &printing.FetchResult{Data: []byte(data), ContentType: fields[fieldContentType]}, nil
}

// Set implements printing.AssetCache. The hash and its expiry are written in one transaction.
func (c *RedisAssetCache) Set(ctx context.Context, key string, result *printing.FetchResult, ttl time.Duration) error {
	if result == nil {
		return nil
	}
	fullKey := c.keyPrefix + key
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, fullKey, fieldContentType, result.ContentType, fieldData, result.Data)
		pipe.Expire(ctx, fullKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cache asset: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool
func (c *RedisAssetCache) Close() error {
	return c.client.Close()
}

var _ printing.AssetCache = (*RedisAssetCache)(nil)
