// Package cache provides the in-memory TTL response cache the router
// populates. Entries expire individually; a read past an entry's expiry
// behaves as a miss and removes the entry.
package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// ResponseCache manages cached backend call results.
// NewResponseCache should be used to create instances of ResponseCache.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]entry

	// enabled determines if caching is enabled; a disabled cache misses
	// everything and stores nothing.
	enabled bool

	// maxEntries bounds the cache size.
	maxEntries int

	// defaultTTL applies when Set is called with a non-positive TTL.
	defaultTTL time.Duration

	logger hclog.Logger

	// now is the clock, replaceable in tests.
	now func() time.Time
}

type entry struct {
	value     any
	expiresAt time.Time
}

// NewResponseCache creates a new response cache.
func NewResponseCache(logger hclog.Logger, opts ...Option) (*ResponseCache, error) {
	options, err := NewOptions(opts...)
	if err != nil {
		return nil, err
	}

	return &ResponseCache{
		entries:    make(map[string]entry),
		enabled:    options.enabled,
		maxEntries: options.maxEntries,
		defaultTTL: options.defaultTTL,
		logger:     logger.Named("cache"),
		now:        time.Now,
	}, nil
}

// Get returns the cached value for key, or a miss. An expired entry is
// evicted on read and reported as a miss.
func (c *ResponseCache) Get(key string) (any, bool) {
	if !c.enabled {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}

	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl uses the default.
// Existing entries are overwritten whole, never partially updated.
func (c *ResponseCache) Set(key string, value any, ttl time.Duration) {
	if !c.enabled {
		return
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}

	c.entries[key] = entry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}

// Len returns the number of entries currently held, expired or not.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked frees one slot: expired entries first, otherwise the entry
// closest to expiry. Callers must hold c.mu.
func (c *ResponseCache) evictLocked() {
	now := c.now()

	var (
		victim string
		oldest time.Time
		found  bool
	)
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			return
		}
		if !found || e.expiresAt.Before(oldest) {
			victim = key
			oldest = e.expiresAt
			found = true
		}
	}

	if found {
		c.logger.Debug("cache full, evicting entry closest to expiry", "key", victim)
		delete(c.entries, victim)
	}
}

// GenerateKey derives the cache key for a call as a deterministic function of
// the operation, capability name, and arguments. Arguments are serialized via
// encoding/json, which orders map keys, so identical calls collide and
// distinct calls do not.
func GenerateKey(operation, name string, args map[string]any) string {
	serialized, err := json.Marshal(args)
	if err != nil {
		// Unserializable arguments cannot be cached deterministically; fall
		// back to a representation that still separates operations.
		serialized = []byte(fmt.Sprintf("%v", args))
	}

	h := sha256.New()
	h.Write([]byte(operation))
	h.Write([]byte{0})
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write(serialized)

	return fmt.Sprintf("%x", h.Sum(nil))
}
