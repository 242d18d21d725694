package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL is how long tool results are cached.
const DefaultCacheTTL = 5 * time.Minute

// DefaultCacheEntries bounds the number of cached results.
const DefaultCacheEntries = 1024

// UnsafeTags mark tools with side effects. Their results are never cached.
var UnsafeTags = []string{"write", "danger", "unsafe", "mutation", "delete"}

// ResultCache caches successful tool results keyed by tool name and
// canonical arguments. Errors are never cached.
//
// Contract:
// - Concurrency: safe for concurrent use.
type ResultCache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// CacheOption configures a ResultCache.
type CacheOption func(*ResultCache)

// WithCacheClock sets the time source.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *ResultCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMaxEntries bounds the cache size. Values below 1 are ignored.
func WithMaxEntries(n int) CacheOption {
	return func(c *ResultCache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// NewResultCache creates a cache holding results for ttl. A ttl of zero or
// less disables caching.
func NewResultCache(ttl time.Duration, opts ...CacheOption) *ResultCache {
	c := &ResultCache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: DefaultCacheEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do returns the cached result for tool and args or runs fn and caches its
// result.
func (c *ResultCache) Do(ctx context.Context, tool Tool, args json.RawMessage, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	if c == nil || c.ttl <= 0 || hasUnsafeTag(tool.Tags) {
		return fn(ctx)
	}

	key, err := cacheKey(tool.Name, args)
	if err != nil {
		return fn(ctx)
	}
	if v, ok := c.get(key); ok {
		return v, nil
	}

	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	c.set(key, v)
	return v, nil
}

// Len returns the number of live entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	return len(c.entries)
}

func (c *ResultCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *ResultCache) set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.sweepLocked()
		if len(c.entries) >= c.maxEntries {
			return
		}
	}
	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(c.ttl)}
}

func (c *ResultCache) sweepLocked() {
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// cacheKey derives "tool:<name>:<hash>" from the SHA-256 of the canonical
// JSON arguments. Object keys are sorted by re-encoding.
func cacheKey(name string, args json.RawMessage) (string, error) {
	var decoded any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &decoded); err != nil {
			return "", fmt.Errorf("tools: canonicalize arguments: %w", err)
		}
	}
	canonical, err := json.Marshal(decoded)
	if err != nil {
		return "", fmt.Errorf("tools: canonicalize arguments: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "tool:" + name + ":" + hex.EncodeToString(sum[:8]), nil
}

func hasUnsafeTag(tags []string) bool {
	return slices.ContainsFunc(tags, func(tag string) bool {
		return slices.Contains(UnsafeTags, strings.ToLower(tag))
	})
}
