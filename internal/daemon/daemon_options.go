package daemon

import (
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Options contains optional configuration for the daemon.
// NewOptions should be used to create instances of Options.
type Options struct {
	// APIOptions contains functional options for the API server.
	APIOptions []APIOption

	// HealthCheckInterval overrides the configured interval between health
	// check sweeps. Zero keeps the configured value.
	HealthCheckInterval time.Duration

	// ClientInfo is the identity the gateway reports to backends during the
	// initialize handshake.
	ClientInfo mcp.Implementation
}

// Option defines a functional option for configuring Options.
// Options are applied in order, with later options overriding earlier ones.
type Option func(*Options) error

// NewOptions creates Options with defaults applied first and user options on top.
func NewOptions(opts ...Option) (Options, error) {
	options := Options{
		ClientInfo: mcp.Implementation{Name: "mcpgw", Version: "dev"},
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&options); err != nil {
			return Options{}, err
		}
	}

	return options, nil
}

// WithAPIOptions configures API server options.
// Replaces all previous API configuration including CORS settings.
func WithAPIOptions(apiOpts ...APIOption) Option {
	return func(o *Options) error {
		o.APIOptions = apiOpts
		return nil
	}
}

// WithHealthCheckInterval overrides how often backends are health checked.
func WithHealthCheckInterval(interval time.Duration) Option {
	return func(o *Options) error {
		if interval <= 0 {
			return fmt.Errorf("health check interval must be positive, got %v", interval)
		}
		o.HealthCheckInterval = interval
		return nil
	}
}

// WithClientInfo sets the identity reported to backends during the initialize
// handshake.
func WithClientInfo(info mcp.Implementation) Option {
	return func(o *Options) error {
		if info.Name == "" {
			return fmt.Errorf("client info name cannot be empty")
		}
		o.ClientInfo = info
		return nil
	}
}
