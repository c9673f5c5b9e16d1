package daemon

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/relaypoint/mcpgw/internal/errors"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "bad request",
			err:        fmt.Errorf("%w: invalid arguments", errors.ErrBadRequest),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "backend not found",
			err:        fmt.Errorf("%w: nowhere-mcp", errors.ErrBackendNotFound),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "health not tracked",
			err:        fmt.Errorf("%w: nowhere-mcp", errors.ErrHealthNotTracked),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "backend unavailable",
			err:        fmt.Errorf("%w: backend is down", errors.ErrBackendUnavailable),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "circuit open",
			err:        fmt.Errorf("%w: retry in 20s", errors.ErrCircuitOpen),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "upstream rpc error",
			err:        fmt.Errorf("%w: code -32602", errors.ErrRPC),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "retries exhausted",
			err:        fmt.Errorf("%w after 3 attempts", errors.ErrRetryExhausted),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "session expired",
			err:        fmt.Errorf("%w: backend rejected session", errors.ErrSessionExpired),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "parse failure",
			err:        fmt.Errorf("%w: no data line", errors.ErrParse),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "protocol violation",
			err:        fmt.Errorf("%w: missing result", errors.ErrProtocol),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "non-success http status",
			err:        fmt.Errorf("%w: http 503", errors.ErrHTTPStatus),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "transport failure",
			err:        fmt.Errorf("%w: connection refused", errors.ErrTransport),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unexpected error",
			err:        stdErrors.New("something else entirely"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			statusErr := mapError(hclog.NewNullLogger(), tc.err)
			require.Equal(t, tc.wantStatus, statusErr.GetStatus())
		})
	}
}

func TestNewAPIServer_InvalidDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewAPIServer(APIDependencies{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid dependencies")
}

func TestNewAPIOptions_Defaults(t *testing.T) {
	t.Parallel()

	opts, err := NewAPIOptions()
	require.NoError(t, err)
	require.False(t, opts.CORS.Enabled)
	require.Equal(t, DefaultAPIShutdownTimeout(), opts.ShutdownTimeout)
	require.Equal(t, DefaultCORSAllowMethods(), opts.CORS.AllowMethods)
}

func TestNewAPIOptions_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewAPIOptions(WithShutdownTimeout(0))
	require.Error(t, err)

	opts, err := NewAPIOptions(
		WithCORSEnabled(true),
		WithCORSAllowOrigins([]string{"https://example.com"}),
	)
	require.NoError(t, err)
	require.True(t, opts.CORS.Enabled)
	require.Equal(t, []string{"https://example.com"}, opts.CORS.AllowOrigins)
}

func TestValidateAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "host and port", addr: "0.0.0.0:8090"},
		{name: "empty host", addr: ":8090"},
		{name: "named port", addr: "localhost:http"},
		{name: "missing port", addr: "localhost", wantErr: true},
		{name: "garbage port", addr: "localhost:notaport", wantErr: true},
		{name: "empty", addr: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := validateAddr(tc.addr)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
