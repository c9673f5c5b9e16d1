package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/relaypoint/mcpgw/internal/contracts"
)

// Resource represents one entry of the merged resource catalog as exposed by
// the API. URIs are namespaced under the owning backend's alias
// (e.g. "journey://stations/8000105").
type Resource struct {
	// URI is the namespaced public URI of the resource.
	URI string `doc:"Namespaced URI of the resource" json:"uri"`

	// Name is a human-readable name for the resource.
	Name string `doc:"Name of the resource" json:"name"`

	// Description is a human-readable description of the resource.
	Description string `doc:"Description of the resource" json:"description,omitempty"`

	// MIMEType is the MIME type of the resource contents, when advertised.
	MIMEType string `doc:"MIME type of the resource contents" json:"mimeType,omitempty"`
}

// ResourcesResponse represents the wrapped API response for the merged
// resource catalog.
type ResourcesResponse struct {
	Body struct {
		Resources []Resource `doc:"Merged namespaced resource catalog" json:"resources"`
	}
}

// ResourceReadRequest represents the incoming request for reading a resource.
// The URI travels in the body, namespaced URIs embed path separators and do
// not survive as path parameters.
type ResourceReadRequest struct {
	Body struct {
		URI string `doc:"Namespaced URI of the resource to read" example:"journey://stations/8000105" json:"uri" minLength:"1"`
	}
}

// ResourceReadResponse represents the wrapped API response for reading a resource.
type ResourceReadResponse struct {
	Body struct {
		Result any `doc:"Resource contents, verbatim from the backend" json:"result"`
	}
}

// domainResource wraps mcp.Resource for conversion to Resource via ToAPIType.
type domainResource mcp.Resource

// ToAPIType converts a wrapped domain type to Resource.
func (d domainResource) ToAPIType() (Resource, error) {
	return Resource{
		URI:         d.URI,
		Name:        d.Name,
		Description: d.Description,
		MIMEType:    d.MIMEType,
	}, nil
}

// RegisterResourceRoutes sets up resource-related API endpoint routes.
func RegisterResourceRoutes(routerAPI huma.API, agg contracts.MCPAggregator, apiPathPrefix string) {
	resourcesAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Resources"}

	huma.Register(
		resourcesAPI,
		huma.Operation{
			OperationID: "listResources",
			Method:      http.MethodGet,
			Path:        "/",
			Summary:     "List the merged resource catalog",
			Description: "Returns the namespaced resources of every available backend; failing backends are excluded.",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*ResourcesResponse, error) {
			return handleListResources(ctx, agg)
		},
	)

	huma.Register(
		resourcesAPI,
		huma.Operation{
			OperationID: "readResource",
			Method:      http.MethodPost,
			Path:        "/read",
			Summary:     "Read a resource from its owning backend",
			Tags:        tags,
		},
		func(ctx context.Context, input *ResourceReadRequest) (*ResourceReadResponse, error) {
			return handleReadResource(ctx, agg, input.Body.URI)
		},
	)
}

// handleListResources is the handler for retrieving the merged resource catalog.
func handleListResources(ctx context.Context, agg contracts.MCPAggregator) (*ResourcesResponse, error) {
	resources := agg.ListResources(ctx)

	apiResources := make([]Resource, 0, len(resources))
	for _, res := range resources {
		data, err := domainResource(res).ToAPIType()
		if err != nil {
			return nil, err
		}
		apiResources = append(apiResources, data)
	}

	resp := &ResourcesResponse{}
	resp.Body.Resources = apiResources

	return resp, nil
}

// handleReadResource is the handler for reading a namespaced resource.
func handleReadResource(ctx context.Context, agg contracts.MCPAggregator, uri string) (*ResourceReadResponse, error) {
	result, err := agg.ReadResource(ctx, uri)
	if err != nil {
		return nil, err
	}

	resp := &ResourceReadResponse{}
	resp.Body.Result = result

	return resp, nil
}
