// Package config loads and validates the gateway's TOML configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/relaypoint/mcpgw/internal/errors"
)

// Defaults for every optional knob. See the corresponding config types for
// what each controls.
const (
	DefaultCacheTTL        = 5 * time.Minute
	DefaultCacheMaxEntries = 1024

	DefaultRetryMaxAttempts       = 3
	DefaultRetryBackoffBase       = 500 * time.Millisecond
	DefaultRetryBackoffMultiplier = 2.0
	DefaultRetryBackoffCap        = 10 * time.Second

	DefaultConnectTimeout = 5 * time.Second
	DefaultCallTimeout    = 30 * time.Second
	DefaultListTimeout    = 5 * time.Second

	DefaultHealthInterval     = 30 * time.Second
	DefaultProbeTimeout       = 2 * time.Second
	DefaultInitTimeout        = 5 * time.Second
	DefaultUnhealthyThreshold = 3

	DefaultBreakerFailureThreshold  = 5
	DefaultBreakerCooldown          = 30 * time.Second
	DefaultBreakerHalfOpenSuccesses = 2
	DefaultBreakerWindow            = time.Minute
)

// Loader can load gateway configuration from a file path.
type Loader interface {
	Load(path string) (*Config, error)
}

// DefaultLoader loads configuration from a TOML file on disk.
type DefaultLoader struct{}

// Load reads, decodes, validates, and defaults the config file at path.
func (l *DefaultLoader) Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: path cannot be empty", errors.ErrConfigLoadFailed)
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: config file cannot be found (%s)", errors.ErrConfigLoadFailed, path)
		}
		return nil, fmt.Errorf("%w: failed to stat config file (%s): %w", errors.ErrConfigLoadFailed, path, err)
	}

	var cfg *Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to decode config from file (%s): %w", errors.ErrConfigLoadFailed, path, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: config file is empty (%s)", errors.ErrConfigLoadFailed, path)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: failed to validate config (%s): %w", errors.ErrConfigLoadFailed, path, err)
	}

	cfg.configFilePath = path

	return cfg, nil
}

// FilePath returns the path this config was loaded from, if any.
func (c *Config) FilePath() string {
	return c.configFilePath
}

// CacheEnabled reports whether response caching is on (default true).
func (c *Config) CacheEnabled() bool {
	return c.Gateway.Cache.Enabled == nil || *c.Gateway.Cache.Enabled
}

// applyDefaults fills every unset optional knob with its documented default.
func (c *Config) applyDefaults() {
	g := &c.Gateway

	if g.Cache.DefaultTTL == 0 {
		g.Cache.DefaultTTL = Duration(DefaultCacheTTL)
	}
	if g.Cache.MaxEntries == 0 {
		g.Cache.MaxEntries = DefaultCacheMaxEntries
	}

	if g.Retry.MaxAttempts == 0 {
		g.Retry.MaxAttempts = DefaultRetryMaxAttempts
	}
	if g.Retry.BackoffBase == 0 {
		g.Retry.BackoffBase = Duration(DefaultRetryBackoffBase)
	}
	if g.Retry.BackoffMultiplier == 0 {
		g.Retry.BackoffMultiplier = DefaultRetryBackoffMultiplier
	}
	if g.Retry.BackoffCap == 0 {
		g.Retry.BackoffCap = Duration(DefaultRetryBackoffCap)
	}

	if g.Timeouts.Connect == 0 {
		g.Timeouts.Connect = Duration(DefaultConnectTimeout)
	}
	if g.Timeouts.Call == 0 {
		g.Timeouts.Call = Duration(DefaultCallTimeout)
	}
	if g.Timeouts.List == 0 {
		g.Timeouts.List = Duration(DefaultListTimeout)
	}

	if g.Health.Interval == 0 {
		g.Health.Interval = Duration(DefaultHealthInterval)
	}
	if g.Health.ProbeTimeout == 0 {
		g.Health.ProbeTimeout = Duration(DefaultProbeTimeout)
	}
	if g.Health.InitTimeout == 0 {
		g.Health.InitTimeout = Duration(DefaultInitTimeout)
	}
	if g.Health.UnhealthyThreshold == 0 {
		g.Health.UnhealthyThreshold = DefaultUnhealthyThreshold
	}

	if g.Breaker.FailureThreshold == 0 {
		g.Breaker.FailureThreshold = DefaultBreakerFailureThreshold
	}
	if g.Breaker.Cooldown == 0 {
		g.Breaker.Cooldown = Duration(DefaultBreakerCooldown)
	}
	if g.Breaker.HalfOpenSuccesses == 0 {
		g.Breaker.HalfOpenSuccesses = DefaultBreakerHalfOpenSuccesses
	}
	if g.Breaker.Window == 0 {
		g.Breaker.Window = Duration(DefaultBreakerWindow)
	}
}

// validate checks backend entries and the alias table.
func (c *Config) validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("no backends configured")
	}

	seen := make(map[string]struct{}, len(c.Backends))
	ids := make(map[string]struct{}, len(c.Backends))
	for i, b := range c.Backends {
		id := strings.TrimSpace(b.ID)
		if id == "" {
			return fmt.Errorf("backend %d: id cannot be empty", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("backend %d: duplicate id '%s'", i, id)
		}
		seen[id] = struct{}{}
		ids[id] = struct{}{}

		endpoint := strings.TrimSpace(b.Endpoint)
		if endpoint == "" {
			return fmt.Errorf("backend '%s': endpoint cannot be empty", id)
		}
		u, err := url.Parse(endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("backend '%s': invalid endpoint '%s'", id, endpoint)
		}
	}

	for alias, id := range c.Aliases {
		if strings.TrimSpace(alias) == "" {
			return fmt.Errorf("alias table: alias cannot be empty")
		}
		if _, ok := ids[id]; !ok {
			return fmt.Errorf("alias '%s': unknown backend id '%s'", alias, id)
		}
	}

	return nil
}
