// Package breaker implements a per-backend circuit breaker. A breaker
// isolates a misbehaving backend: repeated failures open the circuit and
// short-circuit further calls until a cool-down elapses, after which a few
// probe calls decide whether to close it again.
package breaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/relaypoint/mcpgw/internal/errors"
)

const (
	// StateClosed permits calls; failures are counted within a rolling window.
	StateClosed State = "closed"

	// StateOpen short-circuits calls immediately until the cool-down elapses.
	StateOpen State = "open"

	// StateHalfOpen permits calls as probes; enough successes close the
	// circuit, any failure re-opens it.
	StateHalfOpen State = "half-open"
)

// State is the circuit breaker state.
type State string

// Options contains the breaker thresholds.
// NewOptions should be used to create instances of Options.
type Options struct {
	// FailureThreshold opens the circuit after this many failures within the window.
	FailureThreshold int

	// Cooldown is how long an open circuit waits before probing half-open.
	Cooldown time.Duration

	// HalfOpenSuccesses closes a half-open circuit after this many consecutive successes.
	HalfOpenSuccesses int

	// Window is the rolling window after which closed-state failures reset,
	// so stale failures don't permanently bias the breaker.
	Window time.Duration
}

// Option defines a functional option for configuring Options.
type Option func(*Options) error

// NewOptions creates Options with defaults applied first and user options on top.
func NewOptions(opts ...Option) (Options, error) {
	o := Options{
		FailureThreshold:  5,
		Cooldown:          30 * time.Second,
		HalfOpenSuccesses: 2,
		Window:            time.Minute,
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

// WithFailureThreshold sets the closed-state failure count that opens the circuit.
func WithFailureThreshold(n int) Option {
	return func(o *Options) error {
		if n < 1 {
			return fmt.Errorf("failure threshold must be at least 1, got %d", n)
		}
		o.FailureThreshold = n
		return nil
	}
}

// WithCooldown sets how long an open circuit waits before probing half-open.
func WithCooldown(d time.Duration) Option {
	return func(o *Options) error {
		if d <= 0 {
			return fmt.Errorf("cooldown must be positive, got %v", d)
		}
		o.Cooldown = d
		return nil
	}
}

// WithHalfOpenSuccesses sets the success count that closes a half-open circuit.
func WithHalfOpenSuccesses(n int) Option {
	return func(o *Options) error {
		if n < 1 {
			return fmt.Errorf("half-open success threshold must be at least 1, got %d", n)
		}
		o.HalfOpenSuccesses = n
		return nil
	}
}

// WithWindow sets the rolling window for closed-state failure counting.
func WithWindow(d time.Duration) Option {
	return func(o *Options) error {
		if d <= 0 {
			return fmt.Errorf("window must be positive, got %v", d)
		}
		o.Window = d
		return nil
	}
}

// Breaker is the circuit breaker for a single backend.
// Breakers are created by the Registry and never destroyed, so state persists
// across calls for the process lifetime.
type Breaker struct {
	mu sync.Mutex

	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	openedAt        time.Time
	windowStart     time.Time

	opts   Options
	logger hclog.Logger

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewBreaker creates a closed breaker with the given options.
func NewBreaker(logger hclog.Logger, opts Options) *Breaker {
	b := &Breaker{
		state:  StateClosed,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
	b.windowStart = b.now()

	return b
}

// State returns the current state, accounting for an elapsed cool-down:
// an open breaker whose cool-down has passed reports (and becomes) half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// Execute runs op through the breaker. In the open state it fails immediately
// with the remaining cool-down and never invokes op; otherwise it invokes op
// and records the outcome, performing any state transition.
func (b *Breaker) Execute(op func() error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := op()
	b.record(err == nil)

	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.currentState() == StateOpen {
		remaining := b.opts.Cooldown - b.now().Sub(b.openedAt)
		return fmt.Errorf("%w: retry in %s", errors.ErrCircuitOpen, remaining.Round(time.Millisecond))
	}

	return nil
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.currentState()

	if success {
		switch state {
		case StateHalfOpen:
			b.successCount++
			if b.successCount >= b.opts.HalfOpenSuccesses {
				b.logger.Info("circuit closed after successful probes", "successes", b.successCount)
				b.toClosed()
			}
		case StateClosed:
			// Nothing to do; failures reset on the window boundary.
		case StateOpen:
			// Unreachable via Execute; allow() rejects open-state calls.
		}
		return
	}

	b.lastFailureTime = b.now()

	switch state {
	case StateHalfOpen:
		// Any half-open failure re-opens and restarts the cool-down.
		b.logger.Warn("circuit re-opened by failed probe")
		b.toOpen()
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.opts.FailureThreshold {
			b.logger.Warn("circuit opened", "failures", b.failureCount, "cooldown", b.opts.Cooldown)
			b.toOpen()
		}
	case StateOpen:
	}
}

// currentState lazily applies the open -> half-open transition once the
// cool-down elapses, and the rolling-window failure reset in the closed state.
// Callers must hold b.mu.
func (b *Breaker) currentState() State {
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.opts.Cooldown {
			b.state = StateHalfOpen
			b.successCount = 0
		}
	case StateClosed:
		if b.now().Sub(b.windowStart) >= b.opts.Window {
			b.failureCount = 0
			b.windowStart = b.now()
		}
	case StateHalfOpen:
	}

	return b.state
}

func (b *Breaker) toOpen() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.successCount = 0
}

func (b *Breaker) toClosed() {
	b.state = StateClosed
	b.failureCount = 0
	b.successCount = 0
	b.windowStart = b.now()
}
