package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/relaypoint/mcpgw/internal/contracts"
)

// Prompt represents one entry of the merged prompt catalog as exposed by the
// API. Names are namespaced under the owning backend's alias.
type Prompt struct {
	// Name is the namespaced public name of the prompt.
	Name string `doc:"Namespaced name of the prompt" json:"name"`

	// Description is a human-readable description of the prompt.
	Description string `doc:"Description of the prompt" json:"description,omitempty"`

	// Arguments lists the arguments the prompt accepts.
	Arguments []PromptArgument `doc:"Arguments accepted by the prompt" json:"arguments,omitempty"`
}

// PromptArgument describes one argument a prompt accepts.
type PromptArgument struct {
	// Name of the argument.
	Name string `doc:"Name of the argument" json:"name"`

	// Description is a human-readable description of the argument.
	Description string `doc:"Description of the argument" json:"description,omitempty"`

	// Required indicates whether the argument must be provided.
	Required bool `doc:"Whether the argument must be provided" json:"required,omitempty"`
}

// PromptsResponse represents the wrapped API response for the merged prompt catalog.
type PromptsResponse struct {
	Body struct {
		Prompts []Prompt `doc:"Merged namespaced prompt catalog" json:"prompts"`
	}
}

// PromptGetRequest represents the incoming request for fetching a prompt.
type PromptGetRequest struct {
	Name string `doc:"Namespaced name of the prompt to fetch" example:"journey.summarizeTrip" path:"name"`
	Body map[string]any
}

// PromptGetResponse represents the wrapped API response for fetching a prompt.
type PromptGetResponse struct {
	Body struct {
		Result any `doc:"Prompt contents, verbatim from the backend" json:"result"`
	}
}

// domainPrompt wraps mcp.Prompt for conversion to Prompt via ToAPIType.
type domainPrompt mcp.Prompt

// ToAPIType converts a wrapped domain type to Prompt.
func (d domainPrompt) ToAPIType() (Prompt, error) {
	args := make([]PromptArgument, 0, len(d.Arguments))
	for _, a := range d.Arguments {
		args = append(args, PromptArgument{
			Name:        a.Name,
			Description: a.Description,
			Required:    a.Required,
		})
	}
	if len(args) == 0 {
		args = nil
	}

	return Prompt{
		Name:        d.Name,
		Description: d.Description,
		Arguments:   args,
	}, nil
}

// RegisterPromptRoutes sets up prompt-related API endpoint routes.
func RegisterPromptRoutes(routerAPI huma.API, agg contracts.MCPAggregator, apiPathPrefix string) {
	promptsAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Prompts"}

	huma.Register(
		promptsAPI,
		huma.Operation{
			OperationID: "listPrompts",
			Method:      http.MethodGet,
			Path:        "/",
			Summary:     "List the merged prompt catalog",
			Description: "Returns the namespaced prompts of every available backend; failing backends are excluded.",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*PromptsResponse, error) {
			return handleListPrompts(ctx, agg)
		},
	)

	huma.Register(
		promptsAPI,
		huma.Operation{
			OperationID: "getPrompt",
			Method:      http.MethodPost,
			Path:        "/{name}",
			Summary:     "Fetch a prompt from its owning backend",
			Tags:        tags,
		},
		func(ctx context.Context, input *PromptGetRequest) (*PromptGetResponse, error) {
			return handleGetPrompt(ctx, agg, input.Name, input.Body)
		},
	)
}

// handleListPrompts is the handler for retrieving the merged prompt catalog.
func handleListPrompts(ctx context.Context, agg contracts.MCPAggregator) (*PromptsResponse, error) {
	prompts := agg.ListPrompts(ctx)

	apiPrompts := make([]Prompt, 0, len(prompts))
	for _, prompt := range prompts {
		data, err := domainPrompt(prompt).ToAPIType()
		if err != nil {
			return nil, err
		}
		apiPrompts = append(apiPrompts, data)
	}

	resp := &PromptsResponse{}
	resp.Body.Prompts = apiPrompts

	return resp, nil
}

// handleGetPrompt is the handler for fetching a namespaced prompt.
func handleGetPrompt(
	ctx context.Context,
	agg contracts.MCPAggregator,
	name string,
	args map[string]any,
) (*PromptGetResponse, error) {
	result, err := agg.GetPrompt(ctx, name, args)
	if err != nil {
		return nil, err
	}

	resp := &PromptGetResponse{}
	resp.Body.Result = result

	return resp, nil
}
