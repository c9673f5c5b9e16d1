package config

import (
	"time"
)

// Duration wraps time.Duration so durations can be written as strings
// (e.g. "30s", "1h") in the TOML config file.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// BackendEntry is the static configuration for one backend MCP server.
type BackendEntry struct {
	// ID uniquely and stably identifies the backend (e.g. "journey-service").
	ID string `toml:"id"`

	// Name is the human-readable display name.
	Name string `toml:"name"`

	// Endpoint is the base URL requests are POSTed to.
	Endpoint string `toml:"endpoint"`

	// Priority orders backends in listings. Lower is earlier. Optional.
	Priority int `toml:"priority,omitempty"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	// Enabled toggles response caching. Defaults to true.
	Enabled *bool `toml:"enabled,omitempty"`

	// DefaultTTL applies to cacheable results with no recognized category.
	DefaultTTL Duration `toml:"default_ttl,omitempty"`

	// MaxEntries bounds the cache size.
	MaxEntries int `toml:"max_entries,omitempty"`
}

// RetryConfig controls retry-with-backoff for capability-invoking calls.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `toml:"max_attempts,omitempty"`

	// BackoffBase is the delay before the first retry.
	BackoffBase Duration `toml:"backoff_base,omitempty"`

	// BackoffMultiplier scales the delay for each subsequent retry.
	BackoffMultiplier float64 `toml:"backoff_multiplier,omitempty"`

	// BackoffCap is the maximum delay between attempts.
	BackoffCap Duration `toml:"backoff_cap,omitempty"`
}

// TimeoutConfig holds the per-call timeouts. Listing and probing use their own
// short timeouts so a slow backend cannot stall aggregation or health checks.
type TimeoutConfig struct {
	// Connect bounds connection establishment to a backend.
	Connect Duration `toml:"connect,omitempty"`

	// Call bounds capability-invoking calls (tools/call, resources/read, prompts/get).
	Call Duration `toml:"call,omitempty"`

	// List bounds catalog-listing calls during aggregation.
	List Duration `toml:"list,omitempty"`
}

// HealthConfig controls the periodic health checker.
type HealthConfig struct {
	// Interval between health check sweeps.
	Interval Duration `toml:"interval,omitempty"`

	// ProbeTimeout bounds the fast status probe.
	ProbeTimeout Duration `toml:"probe_timeout,omitempty"`

	// InitTimeout bounds the protocol-level fallback probe.
	InitTimeout Duration `toml:"init_timeout,omitempty"`

	// UnhealthyThreshold is the consecutive-failure count at which a backend
	// escalates to down.
	UnhealthyThreshold int `toml:"unhealthy_threshold,omitempty"`
}

// BreakerConfig controls the per-backend circuit breakers.
type BreakerConfig struct {
	// FailureThreshold opens the circuit after this many failures within the window.
	FailureThreshold int `toml:"failure_threshold,omitempty"`

	// Cooldown is how long an open circuit waits before probing half-open.
	Cooldown Duration `toml:"cooldown,omitempty"`

	// HalfOpenSuccesses closes a half-open circuit after this many successes.
	HalfOpenSuccesses int `toml:"half_open_successes,omitempty"`

	// Window is the rolling window after which closed-state failures reset.
	Window Duration `toml:"window,omitempty"`
}

// GatewayConfig groups the gateway's tunables.
type GatewayConfig struct {
	Cache    CacheConfig   `toml:"cache,omitempty"`
	Retry    RetryConfig   `toml:"retry,omitempty"`
	Timeouts TimeoutConfig `toml:"timeouts,omitempty"`
	Health   HealthConfig  `toml:"health,omitempty"`
	Breaker  BreakerConfig `toml:"breaker,omitempty"`
}

// Config is the top-level gateway configuration (.mcpgw.toml).
type Config struct {
	// Backends are the backend MCP servers to aggregate.
	Backends []BackendEntry `toml:"backends"`

	// Aliases maps public namespace aliases to backend IDs. Multiple aliases
	// may map to one backend. Backends without an alias fall back to their ID
	// with the conventional "-mcp" suffix stripped.
	Aliases map[string]string `toml:"aliases,omitempty"`

	// Gateway tunables, all optional with documented defaults.
	Gateway GatewayConfig `toml:"gateway,omitempty"`

	// configFilePath tracks the file this config was loaded from.
	configFilePath string
}
