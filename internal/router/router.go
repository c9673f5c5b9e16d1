// Package router orchestrates a single capability invocation: cache lookup,
// backend resolution, the availability gate, argument validation, and the
// circuit-breaker-wrapped dispatch to the owning backend.
package router

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xeipuuv/gojsonschema"

	"github.com/relaypoint/mcpgw/internal/breaker"
	"github.com/relaypoint/mcpgw/internal/cache"
	"github.com/relaypoint/mcpgw/internal/domain"
	"github.com/relaypoint/mcpgw/internal/errors"
	"github.com/relaypoint/mcpgw/internal/registry"
	"github.com/relaypoint/mcpgw/internal/rpc"
)

// TTLs selected by capability category. Fast-changing data expires quickly,
// reference data lives long, everything else gets a middle-ground default.
const (
	realtimeTTL = time.Minute
	staticTTL   = time.Hour
	defaultTTL  = 5 * time.Minute
)

// Router routes single-item protocol calls to their owning backend.
// NewRouter should be used to create instances of Router.
type Router struct {
	logger      hclog.Logger
	registry    *registry.Registry
	breakers    *breaker.Registry
	client      *rpc.Client
	cache       *cache.ResponseCache
	callTimeout time.Duration
}

// Option defines a functional option for configuring the Router.
type Option func(*Router) error

// WithCallTimeout bounds each capability-invoking backend call.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Router) error {
		if d <= 0 {
			return fmt.Errorf("call timeout must be positive, got %v", d)
		}
		r.callTimeout = d
		return nil
	}
}

// NewRouter creates a Router over the given registry, breaker registry,
// RPC client and response cache.
func NewRouter(
	logger hclog.Logger,
	reg *registry.Registry,
	breakers *breaker.Registry,
	client *rpc.Client,
	responseCache *cache.ResponseCache,
	opt ...Option,
) (*Router, error) {
	if reg == nil || breakers == nil || client == nil || responseCache == nil {
		return nil, fmt.Errorf("registry, breakers, client and cache are all required")
	}

	r := &Router{
		logger:      logger.Named("router"),
		registry:    reg,
		breakers:    breakers,
		client:      client,
		cache:       responseCache,
		callTimeout: 30 * time.Second,
	}

	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(r); err != nil {
			return nil, fmt.Errorf("invalid router option: %w", err)
		}
	}

	return r, nil
}

// callToolParams is the params member of a tools/call envelope.
type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// readResourceParams is the params member of a resources/read envelope.
type readResourceParams struct {
	URI string `json:"uri"`
}

// getPromptParams is the params member of a prompts/get envelope.
type getPromptParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// RouteCall invokes a namespaced tool on its owning backend. Results are
// cached under a TTL chosen from the tool's name, so an identical call within
// the TTL is served without touching the backend.
func (r *Router) RouteCall(ctx context.Context, namespacedName string, args map[string]any) (any, error) {
	key := cache.GenerateKey(string(mcp.MethodToolsCall), namespacedName, args)
	if value, ok := r.cache.Get(key); ok {
		r.logger.Debug("serving tool call from cache", "tool", namespacedName)
		return value, nil
	}

	b, err := r.resolveUsable(namespacedName)
	if err != nil {
		return nil, err
	}

	localName := r.registry.Resolver().StripPrefix(namespacedName)

	if err := r.validateArgs(b, localName, args); err != nil {
		return nil, err
	}

	result, err := r.dispatch(ctx, b, string(mcp.MethodToolsCall), callToolParams{
		Name:      localName,
		Arguments: args,
	})
	if err != nil {
		return nil, err
	}

	r.cache.Set(key, result, ttlFor(localName))

	return result, nil
}

// RouteResourceRead reads a namespaced resource from its owning backend.
// Resource contents are not cached.
func (r *Router) RouteResourceRead(ctx context.Context, namespacedURI string) (any, error) {
	b, err := r.resolveUsable(namespacedURI)
	if err != nil {
		return nil, err
	}

	localURI := r.registry.Resolver().StripPrefix(namespacedURI)

	return r.dispatch(ctx, b, string(mcp.MethodResourcesRead), readResourceParams{URI: localURI})
}

// RoutePromptGet fetches a namespaced prompt from its owning backend.
// Prompt contents are not cached.
func (r *Router) RoutePromptGet(ctx context.Context, namespacedName string, args map[string]any) (any, error) {
	b, err := r.resolveUsable(namespacedName)
	if err != nil {
		return nil, err
	}

	localName := r.registry.Resolver().StripPrefix(namespacedName)

	return r.dispatch(ctx, b, string(mcp.MethodPromptsGet), getPromptParams{
		Name:      localName,
		Arguments: args,
	})
}

// resolveUsable resolves the owning backend and rejects backends marked down.
func (r *Router) resolveUsable(namespaced string) (domain.Backend, error) {
	b, err := r.registry.ResolveForCapability(namespaced)
	if err != nil {
		return domain.Backend{}, err
	}

	if !b.Health.Status.Usable() {
		return domain.Backend{}, fmt.Errorf(
			"%w: backend %s is %s: %s",
			errors.ErrBackendUnavailable, b.ID, b.Health.Status, b.Health.ErrorMessage,
		)
	}

	return b, nil
}

// validateArgs checks tool arguments against the backend's advertised input
// schema when one is known. An unknown tool or absent schema skips validation,
// the backend remains the authority on its own contract.
func (r *Router) validateArgs(b domain.Backend, localName string, args map[string]any) error {
	schema := b.Capabilities.ToolSchema(localName)
	if len(schema) == 0 {
		return nil
	}

	if args == nil {
		args = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		// The backend advertised a schema we cannot compile; let the call
		// through and let the backend enforce its own contract.
		r.logger.Debug("skipping argument validation", "backend", b.ID, "tool", localName, "error", err)
		return nil
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return fmt.Errorf(
			"%w: invalid arguments for %s: %s",
			errors.ErrBadRequest, localName, strings.Join(details, "; "),
		)
	}

	return nil
}

// dispatch sends one call through the backend's circuit breaker. Upstream RPC
// errors mean the backend answered, they are surfaced to the caller but do not
// count against the breaker.
func (r *Router) dispatch(ctx context.Context, b domain.Backend, method string, params any) (any, error) {
	br := r.breakers.GetOrCreate(b.ID)

	var (
		result any
		rpcErr error
	)
	err := br.Execute(func() error {
		resp, sendErr := r.client.SendWithRetry(ctx, rpc.Call{
			Endpoint:  b.Endpoint,
			Method:    method,
			Params:    params,
			Timeout:   r.callTimeout,
			BackendID: b.ID,
		})
		if sendErr != nil {
			if stdErrors.Is(sendErr, errors.ErrRPC) {
				rpcErr = sendErr
				return nil
			}
			return sendErr
		}

		result = resp.Result
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rpcErr != nil {
		return nil, rpcErr
	}

	return result, nil
}

// ttlFor selects a cache TTL from hints in the tool name: obviously live data
// expires after a minute, reference data after an hour.
func ttlFor(localName string) time.Duration {
	name := strings.ToLower(localName)

	realtime := []string{"current", "live", "now", "find", "search", "trip", "departure", "arrival", "weather", "status"}
	for _, hint := range realtime {
		if strings.Contains(name, hint) {
			return realtimeTTL
		}
	}

	static := []string{"location", "station", "stop", "place", "describe", "info"}
	for _, hint := range static {
		if strings.Contains(name, hint) {
			return staticTTL
		}
	}

	return defaultTTL
}
