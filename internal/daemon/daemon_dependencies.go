package daemon

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-hclog"

	"github.com/relaypoint/mcpgw/internal/config"
)

// Dependencies contains required dependencies for the Daemon.
// NewDependencies should be used to create instances of Dependencies.
type Dependencies struct {
	// APIAddr specifies the network address for the APIServer to bind (e.g., "0.0.0.0:8090").
	APIAddr string

	// Cfg is the loaded gateway configuration (backends, aliases, tunables),
	// as produced by a config.Loader with defaults applied.
	Cfg *config.Config

	// Logger for daemon and subcomponent (API server) operations.
	Logger hclog.Logger
}

// NewDependencies creates and validates Dependencies.
func NewDependencies(logger hclog.Logger, cfg *config.Config, apiAddr string) (Dependencies, error) {
	deps := Dependencies{
		APIAddr: apiAddr,
		Cfg:     cfg,
		Logger:  logger,
	}

	if err := deps.Validate(); err != nil {
		return Dependencies{}, err
	}

	return deps, nil
}

// Validate ensures all required dependencies are provided and valid.
func (d Dependencies) Validate() error {
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}

	if err := validateAddr(d.APIAddr); err != nil {
		return fmt.Errorf("invalid API address '%s': %w", d.APIAddr, err)
	}

	if d.Cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if len(d.Cfg.Backends) == 0 {
		return fmt.Errorf("no backends configured")
	}

	return nil
}
