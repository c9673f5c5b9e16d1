package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/relaypoint/mcpgw/internal/domain"
	"github.com/relaypoint/mcpgw/internal/namespace"
	"github.com/relaypoint/mcpgw/internal/registry"
	"github.com/relaypoint/mcpgw/internal/rpc"
)

func newTestChecker(t *testing.T, opt ...Option) (*Checker, *registry.Registry) {
	t.Helper()

	reg := registry.NewRegistry(namespace.NewResolver(nil))

	client, err := rpc.NewClient(hclog.NewNullLogger(), rpc.NewSessionStore())
	require.NoError(t, err)

	checker, err := NewChecker(hclog.NewNullLogger(), reg, client, opt...)
	require.NoError(t, err)

	return checker, reg
}

func registerBackend(t *testing.T, reg *registry.Registry, id, endpoint string) domain.Backend {
	t.Helper()

	require.NoError(t, reg.Register(domain.Backend{
		ID:       id,
		Name:     id,
		Endpoint: endpoint,
	}))

	b, err := reg.Get(id)
	require.NoError(t, err)

	return b
}

func initializeEnvelope(t *testing.T) []byte {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"result": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"serverInfo":      map[string]any{"name": "probe-target", "version": "1.0.0"},
		},
	})
	require.NoError(t, err)

	return body
}

func TestCheckBackend_FastProbeHealthy(t *testing.T) {
	t.Parallel()

	var posts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	checker, reg := newTestChecker(t)
	b := registerBackend(t, reg, "time-mcp", srv.URL)

	health := checker.CheckBackend(context.Background(), b)

	require.Equal(t, domain.HealthStatusHealthy, health.Status)
	require.Equal(t, 0, health.ConsecutiveFailures)
	require.Empty(t, health.ErrorMessage)
	require.NotNil(t, health.LastCheck)
	require.NotNil(t, health.Latency)
	require.Zero(t, posts.Load(), "a passing fast probe must not trigger the protocol probe")

	stored, err := reg.Health("time-mcp")
	require.NoError(t, err)
	require.Equal(t, domain.HealthStatusHealthy, stored.Status)
}

func TestCheckBackend_MethodNotAllowedCountsAsAlive(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	t.Cleanup(srv.Close)

	checker, reg := newTestChecker(t)
	b := registerBackend(t, reg, "time-mcp", srv.URL)

	health := checker.CheckBackend(context.Background(), b)

	require.Equal(t, domain.HealthStatusHealthy, health.Status)
}

func TestCheckBackend_FallbackInitializeHealthy(t *testing.T) {
	t.Parallel()

	envelope := initializeEnvelope(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(envelope)
	}))
	t.Cleanup(srv.Close)

	checker, reg := newTestChecker(t)
	b := registerBackend(t, reg, "journey-mcp", srv.URL)

	health := checker.CheckBackend(context.Background(), b)

	require.Equal(t, domain.HealthStatusHealthy, health.Status)
	require.Equal(t, 0, health.ConsecutiveFailures)
}

func TestCheckBackend_RPCErrorMeansDegraded(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32603,"message":"backend misconfigured"}}`))
	}))
	t.Cleanup(srv.Close)

	checker, reg := newTestChecker(t)
	b := registerBackend(t, reg, "weather-mcp", srv.URL)

	health := checker.CheckBackend(context.Background(), b)

	require.Equal(t, domain.HealthStatusDegraded, health.Status)
	require.Equal(t, 1, health.ConsecutiveFailures)
	require.Contains(t, health.ErrorMessage, "backend misconfigured")
}

// A backend that answers the fallback probe with a non-success status is
// responding, so a single check must leave it degraded and routable rather
// than dropping it straight to down.
func TestCheckBackend_ErrorStatusMeansDegraded(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	checker, reg := newTestChecker(t)
	b := registerBackend(t, reg, "booking-mcp", srv.URL)

	health := checker.CheckBackend(context.Background(), b)

	require.Equal(t, domain.HealthStatusDegraded, health.Status)
	require.Equal(t, 1, health.ConsecutiveFailures)
	require.Contains(t, health.ErrorMessage, "http 503")
	require.True(t, health.Status.Usable())
}

func TestCheckBackend_UnreachableMeansDown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	checker, reg := newTestChecker(t)
	b := registerBackend(t, reg, "booking-mcp", srv.URL)

	health := checker.CheckBackend(context.Background(), b)

	require.Equal(t, domain.HealthStatusDown, health.Status)
	require.Equal(t, 1, health.ConsecutiveFailures)
	require.NotEmpty(t, health.ErrorMessage)
}

func TestCheckBackend_ThresholdEscalatesToDown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32603,"message":"still broken"}}`))
	}))
	t.Cleanup(srv.Close)

	checker, reg := newTestChecker(t, WithUnhealthyThreshold(3))
	registerBackend(t, reg, "journey-mcp", srv.URL)

	for i := 1; i <= 4; i++ {
		b, err := reg.Get("journey-mcp")
		require.NoError(t, err)

		health := checker.CheckBackend(context.Background(), b)
		require.Equal(t, i, health.ConsecutiveFailures)

		if i < 3 {
			require.Equal(t, domain.HealthStatusDegraded, health.Status, "check %d", i)
		} else {
			require.Equal(t, domain.HealthStatusDown, health.Status, "check %d", i)
		}
	}
}

func TestCheckBackend_RecoveryResetsFailureCount(t *testing.T) {
	t.Parallel()

	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	checker, reg := newTestChecker(t)
	registerBackend(t, reg, "time-mcp", srv.URL)

	b, err := reg.Get("time-mcp")
	require.NoError(t, err)
	health := checker.CheckBackend(context.Background(), b)
	require.Equal(t, 1, health.ConsecutiveFailures)

	healthy.Store(true)

	b, err = reg.Get("time-mcp")
	require.NoError(t, err)
	health = checker.CheckBackend(context.Background(), b)
	require.Equal(t, domain.HealthStatusHealthy, health.Status)
	require.Equal(t, 0, health.ConsecutiveFailures)
}

func TestCheckAll_ProbesEveryBackend(t *testing.T) {
	t.Parallel()

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(up.Close)

	down := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	down.Close()

	checker, reg := newTestChecker(t)
	registerBackend(t, reg, "time-mcp", up.URL)
	registerBackend(t, reg, "weather-mcp", down.URL)

	checker.CheckAll(context.Background())

	upHealth, err := reg.Health("time-mcp")
	require.NoError(t, err)
	require.Equal(t, domain.HealthStatusHealthy, upHealth.Status)

	downHealth, err := reg.Health("weather-mcp")
	require.NoError(t, err)
	require.Equal(t, domain.HealthStatusDown, downHealth.Status)
}

func TestNewOptions_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opt     Option
		wantErr bool
	}{
		{name: "valid probe timeout", opt: WithProbeTimeout(time.Second)},
		{name: "zero probe timeout", opt: WithProbeTimeout(0), wantErr: true},
		{name: "valid init timeout", opt: WithInitTimeout(time.Second)},
		{name: "negative init timeout", opt: WithInitTimeout(-time.Second), wantErr: true},
		{name: "valid threshold", opt: WithUnhealthyThreshold(1)},
		{name: "zero threshold", opt: WithUnhealthyThreshold(0), wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewOptions(tc.opt)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
