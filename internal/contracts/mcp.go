package contracts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/relaypoint/mcpgw/internal/aggregator"
	"github.com/relaypoint/mcpgw/internal/domain"
)

// MCPAggregator provides the gateway's merged protocol surface over all
// registered backend MCP servers.
type MCPAggregator interface {
	// ListTools returns the merged, namespaced tool catalog.
	ListTools(ctx context.Context) []aggregator.Tool

	// ListResources returns the merged, namespaced resource catalog.
	ListResources(ctx context.Context) []mcp.Resource

	// ListPrompts returns the merged, namespaced prompt catalog.
	ListPrompts(ctx context.Context) []mcp.Prompt

	// CallTool invokes a namespaced tool on its owning backend.
	CallTool(ctx context.Context, name string, args map[string]any) (any, error)

	// ReadResource reads a namespaced resource from its owning backend.
	ReadResource(ctx context.Context, uri string) (any, error)

	// GetPrompt fetches a namespaced prompt from its owning backend.
	GetPrompt(ctx context.Context, name string, args map[string]any) (any, error)
}

// BackendReader provides read access to the registered backends and their
// health records.
type BackendReader interface {
	// Get returns the backend registered under the given ID.
	Get(id string) (domain.Backend, error)

	// List returns all registered backends.
	List() []domain.Backend

	// Health returns the health record for a single backend.
	Health(id string) (domain.BackendHealth, error)
}
