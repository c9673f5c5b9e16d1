// Package aggregator implements the gateway's own protocol surface: catalog
// requests fan out to every usable backend concurrently and merge under
// namespace prefixes, single-item calls delegate to the router.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/relaypoint/mcpgw/internal/cache"
	"github.com/relaypoint/mcpgw/internal/domain"
	"github.com/relaypoint/mcpgw/internal/registry"
	"github.com/relaypoint/mcpgw/internal/router"
	"github.com/relaypoint/mcpgw/internal/rpc"
)

// Tool is one entry of the merged tool catalog, carrying its namespaced
// public name and the backend's schema verbatim.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

type toolListResult struct {
	Tools []Tool `json:"tools"`
}

type resourceListResult struct {
	Resources []mcp.Resource `json:"resources"`
}

type promptListResult struct {
	Prompts []mcp.Prompt `json:"prompts"`
}

// Aggregator merges multi-backend catalogs and delegates single-item calls.
// NewAggregator should be used to create instances of Aggregator.
type Aggregator struct {
	logger       hclog.Logger
	registry     *registry.Registry
	client       *rpc.Client
	router       *router.Router
	cache        *cache.ResponseCache
	listTimeout  time.Duration
	listCacheTTL time.Duration
}

// Option defines a functional option for configuring the Aggregator.
type Option func(*Aggregator) error

// WithListTimeout bounds each per-backend catalog-listing call. Kept short so
// one slow backend cannot stall the whole aggregation.
func WithListTimeout(d time.Duration) Option {
	return func(a *Aggregator) error {
		if d <= 0 {
			return fmt.Errorf("list timeout must be positive, got %v", d)
		}
		a.listTimeout = d
		return nil
	}
}

// WithListCacheTTL sets how long a merged catalog is served from cache.
func WithListCacheTTL(d time.Duration) Option {
	return func(a *Aggregator) error {
		if d <= 0 {
			return fmt.Errorf("list cache TTL must be positive, got %v", d)
		}
		a.listCacheTTL = d
		return nil
	}
}

// NewAggregator creates an Aggregator over the given registry, RPC client,
// router and response cache.
func NewAggregator(
	logger hclog.Logger,
	reg *registry.Registry,
	client *rpc.Client,
	rt *router.Router,
	responseCache *cache.ResponseCache,
	opt ...Option,
) (*Aggregator, error) {
	if reg == nil || client == nil || rt == nil || responseCache == nil {
		return nil, fmt.Errorf("registry, client, router and cache are all required")
	}

	a := &Aggregator{
		logger:       logger.Named("aggregator"),
		registry:     reg,
		client:       client,
		router:       rt,
		cache:        responseCache,
		listTimeout:  5 * time.Second,
		listCacheTTL: time.Minute,
	}

	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(a); err != nil {
			return nil, fmt.Errorf("invalid aggregator option: %w", err)
		}
	}

	return a, nil
}

// ListTools merges the tool catalogs of every usable backend, each tool name
// namespaced under its backend's alias. A backend that fails or times out is
// logged and excluded; the merged catalog is still returned.
func (a *Aggregator) ListTools(ctx context.Context) []Tool {
	cacheKey := cache.GenerateKey(string(mcp.MethodToolsList), "*", nil)
	if cached, ok := a.cache.Get(cacheKey); ok {
		if tools, ok := cached.([]Tool); ok {
			return tools
		}
	}

	backends := a.registry.ListAvailable()
	perBackend := make([][]Tool, len(backends))

	var g errgroup.Group
	for i, b := range backends {
		g.Go(func() error {
			var result toolListResult
			if err := a.list(ctx, b, mcp.MethodToolsList, &result); err != nil {
				a.logger.Warn("excluding backend from tool catalog", "backend", b.ID, "error", err)
				return nil
			}

			caps := make([]domain.ToolCapability, 0, len(result.Tools))
			namespaced := make([]Tool, 0, len(result.Tools))
			for _, tool := range result.Tools {
				caps = append(caps, domain.ToolCapability{
					Name:        tool.Name,
					InputSchema: tool.InputSchema,
				})
				tool.Name = a.registry.Resolver().ApplyPrefix(b.ID, tool.Name)
				namespaced = append(namespaced, tool)
			}

			a.rememberCapabilities(b.ID, domain.Capabilities{Tools: caps})
			perBackend[i] = namespaced
			return nil
		})
	}
	_ = g.Wait()

	tools := flatten(perBackend)
	a.cache.Set(cacheKey, tools, a.listCacheTTL)

	return tools
}

// ListResources merges the resource catalogs of every usable backend, each
// URI namespaced under its backend's alias.
func (a *Aggregator) ListResources(ctx context.Context) []mcp.Resource {
	cacheKey := cache.GenerateKey(string(mcp.MethodResourcesList), "*", nil)
	if cached, ok := a.cache.Get(cacheKey); ok {
		if resources, ok := cached.([]mcp.Resource); ok {
			return resources
		}
	}

	backends := a.registry.ListAvailable()
	perBackend := make([][]mcp.Resource, len(backends))

	var g errgroup.Group
	for i, b := range backends {
		g.Go(func() error {
			var result resourceListResult
			if err := a.list(ctx, b, mcp.MethodResourcesList, &result); err != nil {
				a.logger.Warn("excluding backend from resource catalog", "backend", b.ID, "error", err)
				return nil
			}

			uris := make([]string, 0, len(result.Resources))
			namespaced := make([]mcp.Resource, 0, len(result.Resources))
			for _, res := range result.Resources {
				uris = append(uris, res.URI)
				res.URI = a.registry.Resolver().ApplyResourcePrefix(b.ID, res.URI)
				namespaced = append(namespaced, res)
			}

			a.rememberCapabilities(b.ID, domain.Capabilities{Resources: uris})
			perBackend[i] = namespaced
			return nil
		})
	}
	_ = g.Wait()

	resources := flatten(perBackend)
	a.cache.Set(cacheKey, resources, a.listCacheTTL)

	return resources
}

// ListPrompts merges the prompt catalogs of every usable backend, each prompt
// name namespaced under its backend's alias.
func (a *Aggregator) ListPrompts(ctx context.Context) []mcp.Prompt {
	cacheKey := cache.GenerateKey(string(mcp.MethodPromptsList), "*", nil)
	if cached, ok := a.cache.Get(cacheKey); ok {
		if prompts, ok := cached.([]mcp.Prompt); ok {
			return prompts
		}
	}

	backends := a.registry.ListAvailable()
	perBackend := make([][]mcp.Prompt, len(backends))

	var g errgroup.Group
	for i, b := range backends {
		g.Go(func() error {
			var result promptListResult
			if err := a.list(ctx, b, mcp.MethodPromptsList, &result); err != nil {
				a.logger.Warn("excluding backend from prompt catalog", "backend", b.ID, "error", err)
				return nil
			}

			names := make([]string, 0, len(result.Prompts))
			namespaced := make([]mcp.Prompt, 0, len(result.Prompts))
			for _, prompt := range result.Prompts {
				names = append(names, prompt.Name)
				prompt.Name = a.registry.Resolver().ApplyPrefix(b.ID, prompt.Name)
				namespaced = append(namespaced, prompt)
			}

			a.rememberCapabilities(b.ID, domain.Capabilities{Prompts: names})
			perBackend[i] = namespaced
			return nil
		})
	}
	_ = g.Wait()

	prompts := flatten(perBackend)
	a.cache.Set(cacheKey, prompts, a.listCacheTTL)

	return prompts
}

// CallTool invokes a namespaced tool via the router.
func (a *Aggregator) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	return a.router.RouteCall(ctx, name, args)
}

// ReadResource reads a namespaced resource via the router.
func (a *Aggregator) ReadResource(ctx context.Context, uri string) (any, error) {
	return a.router.RouteResourceRead(ctx, uri)
}

// GetPrompt fetches a namespaced prompt via the router.
func (a *Aggregator) GetPrompt(ctx context.Context, name string, args map[string]any) (any, error) {
	return a.router.RoutePromptGet(ctx, name, args)
}

// list issues one catalog call to a backend with the short list timeout and
// decodes its result. Listing calls skip retry on purpose, the next discovery
// sweep refreshes the catalog anyway.
func (a *Aggregator) list(ctx context.Context, b domain.Backend, method mcp.MCPMethod, out any) error {
	resp, err := a.client.Send(ctx, rpc.Call{
		Endpoint:  b.Endpoint,
		Method:    string(method),
		Timeout:   a.listTimeout,
		BackendID: b.ID,
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", method, err)
	}

	return nil
}

// rememberCapabilities opportunistically refreshes the registry's view of a
// backend's advertised capabilities from a fresh catalog response.
func (a *Aggregator) rememberCapabilities(backendID string, caps domain.Capabilities) {
	if err := a.registry.UpdateCapabilities(backendID, caps); err != nil {
		a.logger.Debug("dropping capability update", "backend", backendID, "error", err)
	}
}

func flatten[T any](perBackend [][]T) []T {
	merged := make([]T, 0)
	for _, items := range perBackend {
		merged = append(merged, items...)
	}
	return merged
}
