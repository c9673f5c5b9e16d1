package api

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/relaypoint/mcpgw/internal/contracts"
	"github.com/relaypoint/mcpgw/internal/domain"
)

// Backend represents one registered backend MCP server as exposed by the API.
type Backend struct {
	// ID is the stable identifier the backend is registered under.
	ID string `doc:"Stable identifier of the backend" json:"id"`

	// Name is the display name of the backend.
	Name string `doc:"Display name of the backend" json:"name"`

	// Endpoint is the base URL the gateway reaches the backend at.
	Endpoint string `doc:"Base URL of the backend" json:"endpoint"`

	// Priority orders backends in merged catalogs, lower first.
	Priority int `doc:"Catalog ordering priority, lower first" json:"priority"`

	// Status is the backend's current health status.
	Status HealthStatus `doc:"Current health status" json:"status"`

	// Tools counts the tools the backend last advertised.
	Tools int `doc:"Number of advertised tools" json:"tools"`
}

// BackendsResponse represents the wrapped API response for the backend list.
type BackendsResponse struct {
	Body struct {
		Backends []Backend `doc:"Registered backends" json:"backends"`
	}
}

// BackendRequest represents the incoming request for obtaining a Backend.
type BackendRequest struct {
	ID string `doc:"ID of the backend" example:"journey-service" path:"id"`
}

// BackendResponse represents the wrapped API response for a single Backend.
type BackendResponse struct {
	Body Backend
}

// domainBackend wraps domain.Backend for conversion to Backend via ToAPIType.
type domainBackend domain.Backend

// ToAPIType converts a wrapped domain type to Backend.
func (d domainBackend) ToAPIType() (Backend, error) {
	status, err := parseHealthStatus(d.Health.Status)
	if err != nil {
		return Backend{}, err
	}

	return Backend{
		ID:       d.ID,
		Name:     d.Name,
		Endpoint: d.Endpoint,
		Priority: d.Priority,
		Status:   status,
		Tools:    len(d.Capabilities.Tools),
	}, nil
}

// RegisterBackendRoutes sets up backend-related API endpoint routes.
func RegisterBackendRoutes(routerAPI huma.API, backends contracts.BackendReader, apiPathPrefix string) {
	backendsAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Backends"}

	huma.Register(
		backendsAPI,
		huma.Operation{
			OperationID: "listBackends",
			Method:      http.MethodGet,
			Path:        "/",
			Summary:     "List all registered backends",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*BackendsResponse, error) {
			return handleListBackends(backends)
		},
	)

	huma.Register(
		backendsAPI,
		huma.Operation{
			OperationID: "getBackend",
			Method:      http.MethodGet,
			Path:        "/{id}",
			Summary:     "Get a registered backend",
			Tags:        tags,
		},
		func(ctx context.Context, input *BackendRequest) (*BackendResponse, error) {
			return handleGetBackend(backends, input.ID)
		},
	)
}

// handleListBackends is the handler for retrieving all registered backends.
func handleListBackends(backends contracts.BackendReader) (*BackendsResponse, error) {
	all := backends.List()

	slices.SortFunc(all, func(a, b domain.Backend) int {
		return strings.Compare(a.ID, b.ID)
	})

	apiBackends := make([]Backend, 0, len(all))
	for _, b := range all {
		data, err := domainBackend(b).ToAPIType()
		if err != nil {
			return nil, err
		}
		apiBackends = append(apiBackends, data)
	}

	resp := &BackendsResponse{}
	resp.Body.Backends = apiBackends

	return resp, nil
}

// handleGetBackend is the handler for retrieving a single registered backend.
func handleGetBackend(backends contracts.BackendReader, id string) (*BackendResponse, error) {
	b, err := backends.Get(id)
	if err != nil {
		return nil, err
	}

	data, err := domainBackend(b).ToAPIType()
	if err != nil {
		return nil, err
	}

	response := BackendResponse{}
	response.Body = data

	return &response, nil
}
