package daemon

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-hclog"

	"github.com/relaypoint/mcpgw/internal/contracts"
)

// APIDependencies contains the required external dependencies for the API server.
// NewAPIDependencies should be used to create instances of APIDependencies.
type APIDependencies struct {
	// Addr specifies the network address to bind (e.g., "0.0.0.0:8090").
	Addr string

	// Aggregator provides the merged protocol surface over all backends.
	Aggregator contracts.MCPAggregator

	// Backends provides read access to registered backends and their health.
	Backends contracts.BackendReader

	// Logger for API server operations.
	Logger hclog.Logger
}

// NewAPIDependencies creates and validates APIDependencies.
func NewAPIDependencies(
	logger hclog.Logger,
	agg contracts.MCPAggregator,
	backends contracts.BackendReader,
	addr string,
) (APIDependencies, error) {
	deps := APIDependencies{
		Addr:       addr,
		Aggregator: agg,
		Backends:   backends,
		Logger:     logger,
	}

	if err := deps.Validate(); err != nil {
		return APIDependencies{}, err
	}

	return deps, nil
}

// Validate ensures all required dependencies are provided and valid.
func (d APIDependencies) Validate() error {
	if err := validateAddr(d.Addr); err != nil {
		return fmt.Errorf("invalid API address '%s': %w", d.Addr, err)
	}
	if d.Aggregator == nil || reflect.ValueOf(d.Aggregator).IsNil() {
		return fmt.Errorf("aggregator cannot be nil")
	}
	if d.Backends == nil || reflect.ValueOf(d.Backends).IsNil() {
		return fmt.Errorf("backend reader cannot be nil")
	}
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}
	return nil
}
