package aggregator

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

	"github.com/relaypoint/mcpgw/internal/breaker"
	"github.com/relaypoint/mcpgw/internal/cache"
	"github.com/relaypoint/mcpgw/internal/domain"
	"github.com/relaypoint/mcpgw/internal/namespace"
	"github.com/relaypoint/mcpgw/internal/registry"
	"github.com/relaypoint/mcpgw/internal/router"
	"github.com/relaypoint/mcpgw/internal/rpc"
)

// catalogBackend serves a fixed catalog over the wire protocol and counts the
// list requests it received.
type catalogBackend struct {
	srv   *httptest.Server
	lists atomic.Int64
}

func newCatalogBackend(t *testing.T, results map[string]any, delay time.Duration) *catalogBackend {
	t.Helper()

	cb := &catalogBackend{}
	cb.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64  `json:"id"`
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch {
		case req.Method == "initialize":
			resp["result"] = map[string]any{
				"protocolVersion": "2025-03-26",
				"capabilities":    map[string]any{},
				"serverInfo":      map[string]any{"name": "catalog-backend", "version": "1.0.0"},
			}
		default:
			cb.lists.Add(1)
			if delay > 0 {
				time.Sleep(delay)
			}
			result, ok := results[req.Method]
			if !ok {
				resp["error"] = map[string]any{"code": -32601, "message": "method not supported"}
				break
			}
			resp["result"] = result
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(cb.srv.Close)

	return cb
}

func toolCatalog(names ...string) map[string]any {
	tools := make([]any, 0, len(names))
	for _, n := range names {
		tools = append(tools, map[string]any{
			"name":        n,
			"description": "test tool",
			"inputSchema": map[string]any{"type": "object"},
		})
	}
	return map[string]any{"tools": tools}
}

func newTestAggregator(t *testing.T, reg *registry.Registry, opt ...Option) *Aggregator {
	t.Helper()

	client, err := rpc.NewClient(hclog.NewNullLogger(), rpc.NewSessionStore())
	require.NoError(t, err)

	breakerOpts, err := breaker.NewOptions()
	require.NoError(t, err)

	responseCache, err := cache.NewResponseCache(hclog.NewNullLogger())
	require.NoError(t, err)

	rt, err := router.NewRouter(
		hclog.NewNullLogger(),
		reg,
		breaker.NewRegistry(hclog.NewNullLogger(), breakerOpts),
		client,
		responseCache,
	)
	require.NoError(t, err)

	agg, err := NewAggregator(hclog.NewNullLogger(), reg, client, rt, responseCache, opt...)
	require.NoError(t, err)

	return agg
}

func register(t *testing.T, reg *registry.Registry, id string, priority int, endpoint string) {
	t.Helper()

	require.NoError(t, reg.Register(domain.Backend{
		ID:       id,
		Name:     id,
		Endpoint: endpoint,
		Priority: priority,
	}))
}

func TestListTools_MergesNamespacedCatalogs(t *testing.T) {
	t.Parallel()

	alpha := newCatalogBackend(t, map[string]any{"tools/list": toolCatalog("ping", "trace")}, 0)
	beta := newCatalogBackend(t, map[string]any{"tools/list": toolCatalog("lookup")}, 0)

	reg := registry.NewRegistry(namespace.NewResolver(map[string]string{
		"alpha": "alpha-svc",
		"beta":  "beta-svc",
	}))
	register(t, reg, "alpha-svc", 1, alpha.srv.URL)
	register(t, reg, "beta-svc", 2, beta.srv.URL)

	agg := newTestAggregator(t, reg)

	tools := agg.ListTools(context.Background())

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	require.Equal(t, []string{"alpha.ping", "alpha.trace", "beta.lookup"}, names)
	require.NotEmpty(t, tools[0].InputSchema)
}

func TestListTools_ToleratesTimedOutBackend(t *testing.T) {
	t.Parallel()

	alpha := newCatalogBackend(t, map[string]any{"tools/list": toolCatalog("ping")}, 0)
	slow := newCatalogBackend(t, map[string]any{"tools/list": toolCatalog("never")}, 2*time.Second)
	gamma := newCatalogBackend(t, map[string]any{"tools/list": toolCatalog("lookup")}, 0)

	reg := registry.NewRegistry(namespace.NewResolver(map[string]string{
		"alpha": "alpha-svc",
		"slow":  "slow-svc",
		"gamma": "gamma-svc",
	}))
	register(t, reg, "alpha-svc", 1, alpha.srv.URL)
	register(t, reg, "slow-svc", 2, slow.srv.URL)
	register(t, reg, "gamma-svc", 3, gamma.srv.URL)

	agg := newTestAggregator(t, reg, WithListTimeout(200*time.Millisecond))

	tools := agg.ListTools(context.Background())

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	require.Equal(t, []string{"alpha.ping", "gamma.lookup"}, names)
}

func TestListTools_SkipsDownBackends(t *testing.T) {
	t.Parallel()

	alpha := newCatalogBackend(t, map[string]any{"tools/list": toolCatalog("ping")}, 0)
	dead := newCatalogBackend(t, map[string]any{"tools/list": toolCatalog("never")}, 0)

	reg := registry.NewRegistry(namespace.NewResolver(map[string]string{
		"alpha": "alpha-svc",
		"dead":  "dead-svc",
	}))
	register(t, reg, "alpha-svc", 1, alpha.srv.URL)
	register(t, reg, "dead-svc", 2, dead.srv.URL)
	require.NoError(t, reg.UpdateHealth("dead-svc", domain.BackendHealth{Status: domain.HealthStatusDown}))

	agg := newTestAggregator(t, reg)

	tools := agg.ListTools(context.Background())

	require.Len(t, tools, 1)
	require.Equal(t, "alpha.ping", tools[0].Name)
	require.Zero(t, dead.lists.Load(), "a down backend must not receive catalog calls")
}

func TestListTools_RefreshesCapabilities(t *testing.T) {
	t.Parallel()

	alpha := newCatalogBackend(t, map[string]any{"tools/list": toolCatalog("ping")}, 0)

	reg := registry.NewRegistry(namespace.NewResolver(map[string]string{"alpha": "alpha-svc"}))
	register(t, reg, "alpha-svc", 1, alpha.srv.URL)

	agg := newTestAggregator(t, reg)
	agg.ListTools(context.Background())

	b, err := reg.Get("alpha-svc")
	require.NoError(t, err)
	require.Len(t, b.Capabilities.Tools, 1)
	require.Equal(t, "ping", b.Capabilities.Tools[0].Name)
	require.NotEmpty(t, b.Capabilities.Tools[0].InputSchema)
}

func TestListTools_ServedFromCache(t *testing.T) {
	t.Parallel()

	alpha := newCatalogBackend(t, map[string]any{"tools/list": toolCatalog("ping")}, 0)

	reg := registry.NewRegistry(namespace.NewResolver(map[string]string{"alpha": "alpha-svc"}))
	register(t, reg, "alpha-svc", 1, alpha.srv.URL)

	agg := newTestAggregator(t, reg)

	first := agg.ListTools(context.Background())
	second := agg.ListTools(context.Background())

	require.Equal(t, first, second)
	require.EqualValues(t, 1, alpha.lists.Load(), "second listing within the TTL must not hit the backend")
}

func TestListResources_NamespacesURIs(t *testing.T) {
	t.Parallel()

	alpha := newCatalogBackend(t, map[string]any{
		"resources/list": map[string]any{
			"resources": []any{
				map[string]any{"uri": "stations/8000105", "name": "Frankfurt Hbf", "mimeType": "application/json"},
			},
		},
	}, 0)

	reg := registry.NewRegistry(namespace.NewResolver(map[string]string{"alpha": "alpha-svc"}))
	register(t, reg, "alpha-svc", 1, alpha.srv.URL)

	agg := newTestAggregator(t, reg)

	resources := agg.ListResources(context.Background())

	require.Len(t, resources, 1)
	require.Equal(t, "alpha://stations/8000105", resources[0].URI)
	require.Equal(t, "Frankfurt Hbf", resources[0].Name)

	b, err := reg.Get("alpha-svc")
	require.NoError(t, err)
	require.Equal(t, []string{"stations/8000105"}, b.Capabilities.Resources)
}

func TestListPrompts_MergesAndExcludesUnsupported(t *testing.T) {
	t.Parallel()

	alpha := newCatalogBackend(t, map[string]any{
		"prompts/list": map[string]any{
			"prompts": []any{map[string]any{"name": "summarize", "description": "summarize a trip"}},
		},
	}, 0)
	// beta answers prompts/list with a method-not-supported error.
	beta := newCatalogBackend(t, map[string]any{}, 0)

	reg := registry.NewRegistry(namespace.NewResolver(map[string]string{
		"alpha": "alpha-svc",
		"beta":  "beta-svc",
	}))
	register(t, reg, "alpha-svc", 1, alpha.srv.URL)
	register(t, reg, "beta-svc", 2, beta.srv.URL)

	agg := newTestAggregator(t, reg)

	prompts := agg.ListPrompts(context.Background())

	require.Len(t, prompts, 1)
	require.Equal(t, "alpha.summarize", prompts[0].Name)
}

func TestCallTool_DelegatesToRouter(t *testing.T) {
	t.Parallel()

	backend := newCatalogBackend(t, map[string]any{
		"tools/call": map[string]any{"answer": 42},
	}, 0)

	reg := registry.NewRegistry(namespace.NewResolver(map[string]string{"alpha": "alpha-svc"}))
	register(t, reg, "alpha-svc", 1, backend.srv.URL)

	agg := newTestAggregator(t, reg)

	result, err := agg.CallTool(context.Background(), "alpha.compute", map[string]any{"x": 7})
	require.NoError(t, err)

	raw, ok := result.(json.RawMessage)
	require.True(t, ok)
	require.JSONEq(t, `{"answer":42}`, string(raw))
}
