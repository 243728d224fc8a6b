package cache

import (
	"context"
	"sync"
	"time"

	"github.com/invoicing/backend/internal/infrastructure/printing"
)

// DefaultMaxAssetEntries bounds the in-memory cache. Payloads can reach
// assets.max_bytes each.
const DefaultMaxAssetEntries = 256

type assetEntry struct {
	result    printing.FetchResult
	expiresAt time.Time
}

// InMemoryAssetCache implements printing.AssetCache with a process-local map.
// Suitable for single-instance deployments, the CLI and tests.
// Once full, a new key evicts the entry closest to expiry.
type InMemoryAssetCache struct {
	mu         sync.RWMutex
	entries    map[string]assetEntry
	maxEntries int
	now        func() time.Time
	stopChan   chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// NewInMemoryAssetCache creates a cache holding up to maxEntries and starts its
// expiry sweeper. A non-positive maxEntries uses DefaultMaxAssetEntries.
func NewInMemoryAssetCache(maxEntries int) *InMemoryAssetCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxAssetEntries
	}
	c := &InMemoryAssetCache{
		entries:    make(map[string]assetEntry),
		maxEntries: maxEntries,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop()

	return c
}

// Get implements printing.AssetCache
func (c *InMemoryAssetCache) Get(_ context.Context, key string) (*printing.FetchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, nil
	}
	result := e.result
	return &result, nil
}

// Set implements printing.AssetCache
func (c *InMemoryAssetCache) Set(_ context.Context, key string, result *printing.FetchResult, ttl time.Duration) error {
	if result == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = assetEntry{result: *result, expiresAt: c.now().Add(ttl)}
	return nil
}

// evictLocked drops expired entries, or the one closest to expiry when none
// has expired. c.mu must be held.
func (c *InMemoryAssetCache) evictLocked() {
	now := c.now()
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			continue
		}
		if oldestKey == "" || e.expiresAt.Before(oldestAt) {
			oldestKey, oldestAt = key, e.expiresAt
		}
	}
	if len(c.entries) >= c.maxEntries && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Len returns the number of entries, expired ones included until the next sweep
func (c *InMemoryAssetCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the sweeper. Safe to call multiple times.
func (c *InMemoryAssetCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

func (c *InMemoryAssetCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *InMemoryAssetCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

var _ printing.AssetCache = (*InMemoryAssetCache)(nil)
