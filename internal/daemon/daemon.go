// Package daemon wires the gateway together: it builds the backend registry,
// RPC client, circuit breakers, cache, health checker, router and aggregator
// from configuration, runs the periodic health check loop, and serves the
// HTTP API.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/relaypoint/mcpgw/internal/aggregator"
	"github.com/relaypoint/mcpgw/internal/breaker"
	"github.com/relaypoint/mcpgw/internal/cache"
	"github.com/relaypoint/mcpgw/internal/domain"
	"github.com/relaypoint/mcpgw/internal/health"
	"github.com/relaypoint/mcpgw/internal/namespace"
	"github.com/relaypoint/mcpgw/internal/registry"
	"github.com/relaypoint/mcpgw/internal/router"
	"github.com/relaypoint/mcpgw/internal/rpc"
)

// Daemon is the long-lived gateway process: one registry, one RPC client, one
// breaker registry and one cache, shared by all in-flight requests.
// NewDaemon should be used to create instances of Daemon.
type Daemon struct {
	logger         hclog.Logger
	registry       *registry.Registry
	checker        *health.Checker
	apiServer      *APIServer
	healthInterval time.Duration
}

// NewDaemon builds the full gateway object graph from the supplied
// dependencies and options.
func NewDaemon(deps Dependencies, opt ...Option) (*Daemon, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies for daemon: %w", err)
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, fmt.Errorf("invalid daemon options: %w", err)
	}

	cfg := deps.Cfg
	gw := cfg.Gateway
	logger := deps.Logger

	reg := registry.NewRegistry(namespace.NewResolver(cfg.Aliases))
	for _, b := range cfg.Backends {
		if err := reg.Register(domain.Backend{
			ID:       b.ID,
			Name:     b.Name,
			Endpoint: b.Endpoint,
			Priority: b.Priority,
		}); err != nil {
			return nil, fmt.Errorf("failed to register backend '%s': %w", b.ID, err)
		}
	}

	client, err := rpc.NewClient(
		logger,
		rpc.NewSessionStore(),
		rpc.WithConnectTimeout(gw.Timeouts.Connect.Std()),
		rpc.WithInitTimeout(gw.Health.InitTimeout.Std()),
		rpc.WithRetryPolicy(rpc.RetryPolicy{
			MaxAttempts: gw.Retry.MaxAttempts,
			BackoffBase: gw.Retry.BackoffBase.Std(),
			Multiplier:  gw.Retry.BackoffMultiplier,
			Cap:         gw.Retry.BackoffCap.Std(),
		}),
		rpc.WithClientInfo(opts.ClientInfo),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create RPC client: %w", err)
	}

	breakerOpts, err := breaker.NewOptions(
		breaker.WithFailureThreshold(gw.Breaker.FailureThreshold),
		breaker.WithCooldown(gw.Breaker.Cooldown.Std()),
		breaker.WithHalfOpenSuccesses(gw.Breaker.HalfOpenSuccesses),
		breaker.WithWindow(gw.Breaker.Window.Std()),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid circuit breaker configuration: %w", err)
	}
	breakers := breaker.NewRegistry(logger, breakerOpts)

	responseCache, err := cache.NewResponseCache(
		logger,
		cache.WithCaching(cfg.CacheEnabled()),
		cache.WithDefaultTTL(gw.Cache.DefaultTTL.Std()),
		cache.WithMaxEntries(gw.Cache.MaxEntries),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid cache configuration: %w", err)
	}

	checker, err := health.NewChecker(
		logger,
		reg,
		client,
		health.WithProbeTimeout(gw.Health.ProbeTimeout.Std()),
		health.WithInitTimeout(gw.Health.InitTimeout.Std()),
		health.WithUnhealthyThreshold(gw.Health.UnhealthyThreshold),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create health checker: %w", err)
	}

	rt, err := router.NewRouter(
		logger,
		reg,
		breakers,
		client,
		responseCache,
		router.WithCallTimeout(gw.Timeouts.Call.Std()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	agg, err := aggregator.NewAggregator(
		logger,
		reg,
		client,
		rt,
		responseCache,
		aggregator.WithListTimeout(gw.Timeouts.List.Std()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregator: %w", err)
	}

	apiDeps, err := NewAPIDependencies(logger, agg, reg, deps.APIAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid dependencies for API server: %w", err)
	}
	apiServer, err := NewAPIServer(apiDeps, opts.APIOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon API server: %w", err)
	}

	healthInterval := gw.Health.Interval.Std()
	if opts.HealthCheckInterval > 0 {
		healthInterval = opts.HealthCheckInterval
	}

	return &Daemon{
		logger:         logger.Named("daemon"),
		registry:       reg,
		checker:        checker,
		apiServer:      apiServer,
		healthInterval: healthInterval,
	}, nil
}

// StartAndManage runs the gateway until the context is canceled: the health
// check loop in the background and the API server in the foreground.
func (d *Daemon) StartAndManage(ctx context.Context) error {
	d.logger.Info(
		"Starting gateway",
		"backends", len(d.registry.List()),
		"health_interval", d.healthInterval,
	)

	go d.healthCheckLoop(ctx)

	if err := d.apiServer.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("API server failed: %w", err)
	}

	return nil
}

// healthCheckLoop sweeps all backends immediately and then on every tick,
// until the context is canceled.
func (d *Daemon) healthCheckLoop(ctx context.Context) {
	ticker := time.NewTicker(d.healthInterval)
	defer ticker.Stop()

	d.checker.CheckAll(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Stopping backend health checks")
			return
		case <-ticker.C:
			d.checker.CheckAll(ctx)
		}
	}
}
