package printing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
)

const defaultAssetCacheTTL = time.Hour

// AssetCache stores fetched asset payloads by key.
// Get returns (nil, nil) on a miss.
type AssetCache interface {
	Get(ctx context.Context, key string) (*FetchResult, error)
	Set(ctx context.Context, key string, result *FetchResult, ttl time.Duration) error
}

// CachingFetcher serves repeated asset URLs from an AssetCache. Cache errors
// are logged and fall through to the wrapped fetcher; failed fetches are not cached.
type CachingFetcher struct {
	next     Fetcher
	cache    AssetCache
	ttl      time.Duration
	onLookup func(ctx context.Context, hit bool)
	logger   *zap.Logger
}

// CachingFetcherOption configures a CachingFetcher
type CachingFetcherOption func(*CachingFetcher)

// WithCacheTTL sets how long a payload stays cached
func WithCacheTTL(ttl time.Duration) CachingFetcherOption {
	return func(f *CachingFetcher) {
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

// WithCacheLookupHook is called after every lookup with the outcome
func WithCacheLookupHook(hook func(ctx context.Context, hit bool)) CachingFetcherOption {
	return func(f *CachingFetcher) {
		f.onLookup = hook
	}
}

// WithCacheLogger sets the logger
func WithCacheLogger(logger *zap.Logger) CachingFetcherOption {
	return func(f *CachingFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewCachingFetcher wraps next with cache
func NewCachingFetcher(next Fetcher, cache AssetCache, opts ...CachingFetcherOption) *CachingFetcher {
	f := &CachingFetcher{
		next:   next,
		cache:  cache,
		ttl:    defaultAssetCacheTTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements Fetcher
func (f *CachingFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	key := AssetCacheKey(url)

	cached, err := f.cache.Get(ctx, key)
	if err != nil {
		f.logger.Warn("Asset cache read failed", zap.String("url", url), zap.Error(err))
	}
	if f.onLookup != nil {
		f.onLookup(ctx, cached != nil)
	}
	if cached != nil {
		return cached, nil
	}

	result, err := f.next.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := f.cache.Set(ctx, key, result, f.ttl); err != nil {
		f.logger.Warn("Asset cache write failed", zap.String("url", url), zap.Error(err))
	}
	return result, nil
}

var _ Fetcher = (*CachingFetcher)(nil)

// AssetCacheKey derives the cache key for an asset URL
func AssetCacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "asset:" + hex.EncodeToString(sum[:])
}
