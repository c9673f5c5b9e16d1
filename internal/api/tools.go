package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/relaypoint/mcpgw/internal/aggregator"
	"github.com/relaypoint/mcpgw/internal/contracts"
)

// Tool represents one entry of the merged tool catalog as exposed by the API.
// Names are namespaced under the owning backend's alias (e.g. "journey.findTrips").
type Tool struct {
	// Name is the namespaced public name of the tool.
	Name string `doc:"Namespaced name of the tool" json:"name"`

	// Description is a human-readable description of the tool.
	Description string `doc:"Description of what the tool does" json:"description,omitempty"`

	// InputSchema is the backend's JSONSchema for the tool's arguments, verbatim.
	InputSchema json.RawMessage `doc:"Input parameters schema" json:"inputSchema,omitempty"`
}

// ToolsResponse represents the wrapped API response for the merged tool catalog.
type ToolsResponse struct {
	Body struct {
		Tools []Tool `doc:"Merged namespaced tool catalog" json:"tools"`
	}
}

// ToolCallRequest represents the incoming request for calling a tool.
type ToolCallRequest struct {
	Name string `doc:"Namespaced name of the tool to call" example:"journey.findTrips" path:"name"`
	Body map[string]any
}

// ToolCallResponse represents the wrapped API response for calling a tool.
type ToolCallResponse struct {
	Body struct {
		Result any `doc:"Tool call result, verbatim from the backend" json:"result"`
	}
}

// domainTool wraps aggregator.Tool for conversion to Tool via ToAPIType.
type domainTool aggregator.Tool

// ToAPIType converts a wrapped domain type to Tool.
func (d domainTool) ToAPIType() (Tool, error) {
	return Tool{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: d.InputSchema,
	}, nil
}

// RegisterToolRoutes sets up tool-related API endpoint routes.
func RegisterToolRoutes(routerAPI huma.API, agg contracts.MCPAggregator, apiPathPrefix string) {
	toolsAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Tools"}

	huma.Register(
		toolsAPI,
		huma.Operation{
			OperationID: "listTools",
			Method:      http.MethodGet,
			Path:        "/",
			Summary:     "List the merged tool catalog",
			Description: "Returns the namespaced tools of every available backend; failing backends are excluded.",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*ToolsResponse, error) {
			return handleListTools(ctx, agg)
		},
	)

	huma.Register(
		toolsAPI,
		huma.Operation{
			OperationID: "callTool",
			Method:      http.MethodPost,
			Path:        "/{name}",
			Summary:     "Call a tool on its owning backend",
			Tags:        tags,
		},
		func(ctx context.Context, input *ToolCallRequest) (*ToolCallResponse, error) {
			return handleCallTool(ctx, agg, input.Name, input.Body)
		},
	)
}

// handleListTools is the handler for retrieving the merged tool catalog.
func handleListTools(ctx context.Context, agg contracts.MCPAggregator) (*ToolsResponse, error) {
	tools := agg.ListTools(ctx)

	apiTools := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		data, err := domainTool(tool).ToAPIType()
		if err != nil {
			return nil, err
		}
		apiTools = append(apiTools, data)
	}

	resp := &ToolsResponse{}
	resp.Body.Tools = apiTools

	return resp, nil
}

// handleCallTool is the handler for invoking a namespaced tool.
func handleCallTool(
	ctx context.Context,
	agg contracts.MCPAggregator,
	name string,
	args map[string]any,
) (*ToolCallResponse, error) {
	result, err := agg.CallTool(ctx, name, args)
	if err != nil {
		return nil, err
	}

	resp := &ToolCallResponse{}
	resp.Body.Result = result

	return resp, nil
}
