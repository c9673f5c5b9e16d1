package breaker

import (
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Registry lazily creates one breaker per backend ID, so breaker state
// persists across calls but failures in one backend never influence
// another's breaker. It is safe for concurrent use by multiple goroutines.
// NewRegistry should be used to create instances of Registry.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	opts     Options
	logger   hclog.Logger
}

// NewRegistry creates an empty breaker registry; every breaker it creates
// shares the given options.
func NewRegistry(logger hclog.Logger, opts Options) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		opts:     opts,
		logger:   logger.Named("breaker"),
	}
}

// GetOrCreate returns the breaker for a backend ID, creating a closed one on
// first use.
func (r *Registry) GetOrCreate(backendID string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[backendID]
	if !ok {
		b = NewBreaker(r.logger.With("backend", backendID), r.opts)
		r.breakers[backendID] = b
	}

	return b
}
