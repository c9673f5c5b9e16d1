package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaypoint/mcpgw/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".mcpgw.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestDefaultLoader_Load(t *testing.T) {
	t.Parallel()

	content := `
[[backends]]
id = "journey-service"
name = "Journey Service"
endpoint = "http://localhost:9201/mcp"
priority = 1

[[backends]]
id = "weather-mcp"
name = "Weather"
endpoint = "http://localhost:9202/mcp"

[aliases]
journey = "journey-service"
weather = "weather-mcp"

[gateway.retry]
max_attempts = 5
backoff_base = "250ms"

[gateway.health]
interval = "10s"
`

	path := writeConfig(t, content)

	loader := &DefaultLoader{}
	cfg, err := loader.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Backends, 2)
	require.Equal(t, "journey-service", cfg.Backends[0].ID)
	require.Equal(t, "http://localhost:9201/mcp", cfg.Backends[0].Endpoint)
	require.Equal(t, path, cfg.FilePath())

	// Explicit values are kept.
	require.Equal(t, 5, cfg.Gateway.Retry.MaxAttempts)
	require.Equal(t, 250*time.Millisecond, cfg.Gateway.Retry.BackoffBase.Std())
	require.Equal(t, 10*time.Second, cfg.Gateway.Health.Interval.Std())

	// Unset knobs get defaults.
	require.Equal(t, DefaultRetryBackoffMultiplier, cfg.Gateway.Retry.BackoffMultiplier)
	require.Equal(t, DefaultRetryBackoffCap, cfg.Gateway.Retry.BackoffCap.Std())
	require.Equal(t, DefaultCacheTTL, cfg.Gateway.Cache.DefaultTTL.Std())
	require.Equal(t, DefaultCacheMaxEntries, cfg.Gateway.Cache.MaxEntries)
	require.Equal(t, DefaultCallTimeout, cfg.Gateway.Timeouts.Call.Std())
	require.Equal(t, DefaultListTimeout, cfg.Gateway.Timeouts.List.Std())
	require.Equal(t, DefaultUnhealthyThreshold, cfg.Gateway.Health.UnhealthyThreshold)
	require.Equal(t, DefaultBreakerFailureThreshold, cfg.Gateway.Breaker.FailureThreshold)
	require.True(t, cfg.CacheEnabled())
}

func TestDefaultLoader_Load_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantIn  string
	}{
		{
			name:    "no backends",
			content: `backends = []`,
			wantIn:  "no backends configured",
		},
		{
			name: "missing id",
			content: `
[[backends]]
endpoint = "http://localhost:9201"
`,
			wantIn: "id cannot be empty",
		},
		{
			name: "duplicate id",
			content: `
[[backends]]
id = "a"
endpoint = "http://localhost:1"

[[backends]]
id = "a"
endpoint = "http://localhost:2"
`,
			wantIn: "duplicate id",
		},
		{
			name: "invalid endpoint",
			content: `
[[backends]]
id = "a"
endpoint = "not a url"
`,
			wantIn: "invalid endpoint",
		},
		{
			name: "alias to unknown backend",
			content: `
[[backends]]
id = "a"
endpoint = "http://localhost:1"

[aliases]
b = "missing"
`,
			wantIn: "unknown backend id",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfig(t, tc.content)

			loader := &DefaultLoader{}
			_, err := loader.Load(path)
			require.Error(t, err)
			require.ErrorIs(t, err, errors.ErrConfigLoadFailed)
			require.Contains(t, err.Error(), tc.wantIn)
		})
	}
}

func TestDefaultLoader_Load_MissingFile(t *testing.T) {
	t.Parallel()

	loader := &DefaultLoader{}

	_, err := loader.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, errors.ErrConfigLoadFailed)

	_, err = loader.Load("   ")
	require.ErrorIs(t, err, errors.ErrConfigLoadFailed)
}

func TestConfig_CacheEnabled(t *testing.T) {
	t.Parallel()

	content := `
[[backends]]
id = "a"
endpoint = "http://localhost:1"

[gateway.cache]
enabled = false
`

	path := writeConfig(t, content)

	loader := &DefaultLoader{}
	cfg, err := loader.Load(path)
	require.NoError(t, err)
	require.False(t, cfg.CacheEnabled())
}
