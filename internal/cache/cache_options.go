package cache

import (
	"fmt"
	"time"
)

// Option defines a functional option for configuring the ResponseCache.
type Option func(*Options) error

// Options contains optional configuration for the cache.
type Options struct {
	// enabled determines if caching is enabled.
	enabled bool

	// maxEntries bounds the cache size.
	maxEntries int

	// defaultTTL applies to Set calls without an explicit TTL.
	defaultTTL time.Duration
}

// NewOptions creates Options with defaults applied first and user options on top.
func NewOptions(opts ...Option) (Options, error) {
	o := Options{
		enabled:    true,
		maxEntries: 1024,
		defaultTTL: 5 * time.Minute,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&o); err != nil {
			return Options{}, err
		}
	}

	return o, nil
}

// WithCaching configures whether caching is enabled.
func WithCaching(enabled bool) Option {
	return func(o *Options) error {
		o.enabled = enabled
		return nil
	}
}

// WithMaxEntries bounds the number of cached entries.
func WithMaxEntries(n int) Option {
	return func(o *Options) error {
		if n < 1 {
			return fmt.Errorf("max entries must be at least 1, got %d", n)
		}
		o.maxEntries = n
		return nil
	}
}

// WithDefaultTTL sets the TTL used when none is supplied.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *Options) error {
		if ttl <= 0 {
			return fmt.Errorf("TTL must be positive, got %v", ttl)
		}
		o.defaultTTL = ttl
		return nil
	}
}
