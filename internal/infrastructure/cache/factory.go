package cache

import (
	"context"
	"fmt"
	"io"

	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/printing"
	"go.uber.org/zap"
)

// AssetCache is a printing.AssetCache that owns resources released by Close
type AssetCache interface {
	printing.AssetCache
	io.Closer
}

// AssetCacheFactory creates asset caches based on configuration
type AssetCacheFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	maxInMemoryEntries    int
}

// AssetCacheFactoryOption is a functional option for configuring the factory
type AssetCacheFactoryOption func(*AssetCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) AssetCacheFactoryOption {
	return func(f *AssetCacheFactory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to the
// in-memory cache. Default is true.
func WithInMemoryFallback(allow bool) AssetCacheFactoryOption {
	return func(f *AssetCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// WithMaxInMemoryEntries bounds the in-memory cache, 0 keeps DefaultMaxAssetEntries
func WithMaxInMemoryEntries(n int) AssetCacheFactoryOption {
	return func(f *AssetCacheFactory) {
		f.maxInMemoryEntries = n
	}
}

// NewAssetCacheFactory creates a new factory
func NewAssetCacheFactory(cfg config.RedisConfig, opts ...AssetCacheFactoryOption) *AssetCacheFactory {
	f := &AssetCacheFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateCache returns a Redis cache when Redis is enabled and reachable,
// otherwise an in-memory cache (unless fallback is disabled).
func (f *AssetCacheFactory) CreateCache(ctx context.Context) (AssetCache, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory asset cache")
		return NewInMemoryAssetCache(f.maxInMemoryEntries), nil
	}

	c, err := NewRedisAssetCache(ctx, RedisConfig{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("Using Redis asset cache", zap.String("addr", f.redisConfig.Addr()))
		return c, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis asset cache unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory asset cache. "+
		"Instances will fetch assets independently.",
		zap.Error(err),
	)
	return NewInMemoryAssetCache(f.maxInMemoryEntries), nil
}
