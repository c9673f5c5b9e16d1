package api

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/relaypoint/mcpgw/internal/contracts"
	"github.com/relaypoint/mcpgw/internal/domain"
)

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusUnknown  HealthStatus = "unknown"
)

// HealthStatus represents the current status of a backend MCP server as
// established by the periodic health checks.
type HealthStatus string

// BackendHealth is used to provide information about ongoing health checks
// that are performed on registered backend MCP servers.
type BackendHealth struct {
	ID                  string       `json:"id"`
	Status              HealthStatus `json:"status"`
	Latency             *string      `json:"latency,omitempty"`
	LastChecked         *time.Time   `json:"lastChecked,omitempty"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	Error               string       `json:"error,omitempty"`
}

// BackendsHealthResponse is the response for GET /health/backends.
type BackendsHealthResponse struct {
	Body struct {
		Backends []BackendHealth `doc:"Tracked backend health statuses" json:"backends"`
	}
}

// BackendHealthRequest represents the incoming request for obtaining BackendHealth.
type BackendHealthRequest struct {
	ID string `doc:"ID of the backend to check" example:"journey-service" path:"id"`
}

// BackendHealthResponse represents the wrapped API response for a BackendHealth.
type BackendHealthResponse struct {
	Body BackendHealth
}

// domainBackendHealth pairs a health record with its backend ID for conversion
// to BackendHealth via ToAPIType.
type domainBackendHealth struct {
	id     string
	health domain.BackendHealth
}

// ToAPIType converts a wrapped domain type to BackendHealth.
func (d domainBackendHealth) ToAPIType() (BackendHealth, error) {
	status, err := parseHealthStatus(d.health.Status)
	if err != nil {
		return BackendHealth{}, err
	}

	var latency *string
	if d.health.Latency != nil {
		s := d.health.Latency.String()
		latency = &s
	}

	return BackendHealth{
		ID:                  d.id,
		Status:              status,
		Latency:             latency,
		LastChecked:         d.health.LastCheck,
		ConsecutiveFailures: d.health.ConsecutiveFailures,
		Error:               d.health.ErrorMessage,
	}, nil
}

// RegisterHealthRoutes sets up health-related API endpoint routes.
func RegisterHealthRoutes(routerAPI huma.API, backends contracts.BackendReader, apiPathPrefix string) {
	healthAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Health"}

	huma.Register(
		healthAPI,
		huma.Operation{
			OperationID: "listBackendsHealth",
			Method:      http.MethodGet,
			Path:        "/backends",
			Summary:     "List the health statuses for all backends",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*BackendsHealthResponse, error) {
			return handleHealthBackends(backends)
		},
	)

	huma.Register(
		healthAPI,
		huma.Operation{
			OperationID: "getBackendHealth",
			Method:      http.MethodGet,
			Path:        "/backends/{id}",
			Summary:     "Get the health status of a backend",
			Tags:        tags,
		},
		func(ctx context.Context, input *BackendHealthRequest) (*BackendHealthResponse, error) {
			return handleHealthBackend(backends, input.ID)
		},
	)
}

// handleHealthBackends is the handler for retrieving the current health of all
// registered backends.
func handleHealthBackends(backends contracts.BackendReader) (*BackendsHealthResponse, error) {
	all := backends.List()

	slices.SortFunc(all, func(a, b domain.Backend) int {
		return strings.Compare(a.ID, b.ID)
	})

	apiBackends := make([]BackendHealth, 0, len(all))
	for _, b := range all {
		data, err := domainBackendHealth{id: b.ID, health: b.Health}.ToAPIType()
		if err != nil {
			return nil, err
		}
		apiBackends = append(apiBackends, data)
	}

	resp := &BackendsHealthResponse{}
	resp.Body.Backends = apiBackends

	return resp, nil
}

// handleHealthBackend is the handler for retrieving the current health of the
// specified registered backend.
func handleHealthBackend(backends contracts.BackendReader, id string) (*BackendHealthResponse, error) {
	health, err := backends.Health(id)
	if err != nil {
		return nil, err
	}

	data, err := domainBackendHealth{id: id, health: health}.ToAPIType()
	if err != nil {
		return nil, err
	}

	response := BackendHealthResponse{}
	response.Body = data

	return &response, nil
}

func parseHealthStatus(status domain.HealthStatus) (HealthStatus, error) {
	switch status {
	case domain.HealthStatusHealthy:
		return HealthStatusHealthy, nil
	case domain.HealthStatusDegraded:
		return HealthStatusDegraded, nil
	case domain.HealthStatusDown:
		return HealthStatusDown, nil
	case domain.HealthStatusUnknown, "":
		return HealthStatusUnknown, nil
	default:
		return "", fmt.Errorf("unknown health status: %s", status)
	}
}
