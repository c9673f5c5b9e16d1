package api

import (
	"fmt"
	"net/url"
	"reflect"

	"github.com/danielgtaylor/huma/v2"

	"github.com/relaypoint/mcpgw/internal/contracts"
)

// APIVersion is the version used in the OpenAPI spec and URL paths.
const APIVersion = "v1"

// RegisterRoutes registers all API routes on the provided Huma router.
// This is the single source of truth for the API route structure.
// Returns the API path prefix (e.g., "/api/v1") under which the routes are created.
func RegisterRoutes(
	router huma.API,
	agg contracts.MCPAggregator,
	backends contracts.BackendReader,
) (string, error) {
	if router == nil || reflect.ValueOf(router).IsNil() {
		return "", fmt.Errorf("router cannot be nil")
	}
	if agg == nil || reflect.ValueOf(agg).IsNil() {
		return "", fmt.Errorf("aggregator cannot be nil")
	}
	if backends == nil || reflect.ValueOf(backends).IsNil() {
		return "", fmt.Errorf("backend reader cannot be nil")
	}

	// Extract API version from the router's OpenAPI spec.
	apiVersionID := router.OpenAPI().Info.Version

	// Safe way to ensure /api/{version}.
	apiPathPrefix, err := url.JoinPath("/api", apiVersionID)
	if err != nil {
		return "", fmt.Errorf("failed to construct API path prefix: %w", err)
	}

	// Group all routes under the /api/{version} prefix.
	versionedGroup := huma.NewGroup(router, apiPathPrefix)
	RegisterToolRoutes(versionedGroup, agg, "/tools")
	RegisterResourceRoutes(versionedGroup, agg, "/resources")
	RegisterPromptRoutes(versionedGroup, agg, "/prompts")
	RegisterHealthRoutes(versionedGroup, backends, "/health")
	RegisterBackendRoutes(versionedGroup, backends, "/backends")

	return apiPathPrefix, nil
}
