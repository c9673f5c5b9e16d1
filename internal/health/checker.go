// Package health implements the periodic two-tier backend health checker:
// a fast HTTP status probe, falling back to a protocol-level initialize
// handshake before declaring a backend degraded or down.
package health

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/relaypoint/mcpgw/internal/domain"
	"github.com/relaypoint/mcpgw/internal/errors"
	"github.com/relaypoint/mcpgw/internal/registry"
	"github.com/relaypoint/mcpgw/internal/rpc"
)

// Options contains optional configuration for the Checker.
// NewOptions should be used to create instances of Options.
type Options struct {
	// ProbeTimeout bounds the fast status probe.
	ProbeTimeout time.Duration

	// InitTimeout bounds the protocol-level fallback probe.
	InitTimeout time.Duration

	// UnhealthyThreshold is the consecutive-failure count at which a backend
	// escalates to down, even when the latest check itself succeeded earlier.
	UnhealthyThreshold int
}

// Option defines a functional option for configuring Options.
type Option func(*Options) error

// NewOptions creates Options with defaults applied first and user options on top.
func NewOptions(opts ...Option) (Options, error) {
	o := Options{
		ProbeTimeout:       2 * time.Second,
		InitTimeout:        5 * time.Second,
		UnhealthyThreshold: 3,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&o); err != nil {
			return Options{}, err
		}
	}

	return o, nil
}

// WithProbeTimeout bounds the fast status probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(o *Options) error {
		if d <= 0 {
			return fmt.Errorf("probe timeout must be positive, got %v", d)
		}
		o.ProbeTimeout = d
		return nil
	}
}

// WithInitTimeout bounds the protocol-level fallback probe.
func WithInitTimeout(d time.Duration) Option {
	return func(o *Options) error {
		if d <= 0 {
			return fmt.Errorf("init timeout must be positive, got %v", d)
		}
		o.InitTimeout = d
		return nil
	}
}

// WithUnhealthyThreshold sets the consecutive-failure escalation threshold.
func WithUnhealthyThreshold(n int) Option {
	return func(o *Options) error {
		if n < 1 {
			return fmt.Errorf("unhealthy threshold must be at least 1, got %d", n)
		}
		o.UnhealthyThreshold = n
		return nil
	}
}

// Checker probes registered backends and updates their health records in the
// registry. Each invocation is stateless; the daemon drives it on a timer.
// NewChecker should be used to create instances of Checker.
type Checker struct {
	logger     hclog.Logger
	registry   *registry.Registry
	rpcClient  *rpc.Client
	httpClient *http.Client
	opts       Options

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewChecker creates a health checker over the given registry and RPC client.
func NewChecker(
	logger hclog.Logger,
	reg *registry.Registry,
	rpcClient *rpc.Client,
	opt ...Option,
) (*Checker, error) {
	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, fmt.Errorf("invalid health checker options: %w", err)
	}

	return &Checker{
		logger:     logger.Named("health"),
		registry:   reg,
		rpcClient:  rpcClient,
		httpClient: &http.Client{},
		opts:       opts,
		now:        time.Now,
	}, nil
}

// CheckAll probes every registered backend concurrently and waits for all
// probes to finish. One backend's failure never affects another's probe.
func (c *Checker) CheckAll(ctx context.Context) {
	backends := c.registry.List()

	var wg sync.WaitGroup
	wg.Add(len(backends))
	for _, b := range backends {
		go func(b domain.Backend) {
			defer wg.Done()
			c.CheckBackend(ctx, b)
		}(b)
	}
	wg.Wait()
}

// CheckBackend runs the two-tier probe for one backend and records the result
// in the registry. The resulting health is returned for observability.
//
// Tier one is a fast HTTP status probe of the endpoint. On its failure, tier
// two attempts the protocol's initialize handshake: success there still means
// healthy (and may opportunistically capture a session token); a non-success
// response means degraded; a transport-level failure means down. Latency is
// measured end-to-end across whichever tiers ran.
func (c *Checker) CheckBackend(ctx context.Context, b domain.Backend) domain.BackendHealth {
	start := c.now()

	probeErr := c.fastProbe(ctx, b.Endpoint)
	if probeErr == nil {
		return c.update(b, domain.HealthStatusHealthy, "", start)
	}

	c.logger.Debug("fast probe failed, falling back to protocol probe", "backend", b.ID, "error", probeErr)

	initCtx, cancel := context.WithTimeout(ctx, c.opts.InitTimeout)
	defer cancel()

	_, err := c.rpcClient.Initialize(initCtx, b.Endpoint, b.ID)
	switch {
	case err == nil:
		return c.update(b, domain.HealthStatusHealthy, "", start)
	case isProtocolLevel(err):
		// The backend answered but unhelpfully; it may still serve calls.
		return c.update(b, domain.HealthStatusDegraded, err.Error(), start)
	default:
		return c.update(b, domain.HealthStatusDown, err.Error(), start)
	}
}

// fastProbe issues a plain GET against the endpoint with a short timeout.
// Any response the server managed to produce below 500 counts as alive.
func (c *Checker) fastProbe(ctx context.Context, endpoint string) error {
	probeCtx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	return nil
}

// update writes the new health record, carrying forward and escalating the
// consecutive-failure count. Escalation to down happens independently of the
// current result once the threshold is crossed.
func (c *Checker) update(
	b domain.Backend,
	status domain.HealthStatus,
	errorMessage string,
	start time.Time,
) domain.BackendHealth {
	checkedAt := c.now()
	latency := checkedAt.Sub(start)

	failures := b.Health.ConsecutiveFailures
	if status == domain.HealthStatusHealthy {
		failures = 0
	} else {
		failures++
	}

	if failures >= c.opts.UnhealthyThreshold {
		status = domain.HealthStatusDown
	}

	health := domain.BackendHealth{
		Status:              status,
		LastCheck:           &checkedAt,
		Latency:             &latency,
		ConsecutiveFailures: failures,
		ErrorMessage:        errorMessage,
	}

	if err := c.registry.UpdateHealth(b.ID, health); err != nil {
		// The backend was unregistered mid-check; nothing to record.
		c.logger.Debug("dropping health update", "backend", b.ID, "error", err)
	}

	if status != domain.HealthStatusHealthy {
		c.logger.Warn(
			"backend unhealthy",
			"backend", b.ID,
			"status", status,
			"consecutive_failures", failures,
			"error", errorMessage,
		)
	}

	return health
}

// isProtocolLevel reports whether an initialize failure came from a backend
// that did answer (an RPC error, a non-success HTTP status, a parse failure,
// or a protocol violation) rather than from the transport. A backend that
// produced any response is degraded, not down: only a dial or timeout failure
// proves it unreachable.
func isProtocolLevel(err error) bool {
	return stdErrors.Is(err, errors.ErrRPC) ||
		stdErrors.Is(err, errors.ErrHTTPStatus) ||
		stdErrors.Is(err, errors.ErrSessionExpired) ||
		stdErrors.Is(err, errors.ErrParse) ||
		stdErrors.Is(err, errors.ErrProtocol)
}
