// Package registry holds the set of known backend MCP servers together with
// their current health and advertised capabilities. It answers which backend
// owns a namespaced capability and which backends are usable right now.
package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/relaypoint/mcpgw/internal/domain"
	"github.com/relaypoint/mcpgw/internal/errors"
	"github.com/relaypoint/mcpgw/internal/namespace"
)

// Registry is the single owner of backend records. It is safe for concurrent
// use: requests read it while the health checker writes to it.
// NewRegistry should be used to create instances of Registry.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]*domain.Backend
	resolver *namespace.Resolver
}

// NewRegistry creates an empty registry using the given namespace resolver.
func NewRegistry(resolver *namespace.Resolver) *Registry {
	return &Registry{
		backends: make(map[string]*domain.Backend),
		resolver: resolver,
	}
}

// Resolver returns the namespace resolver the registry composes.
func (r *Registry) Resolver() *namespace.Resolver {
	return r.resolver
}

// Register upserts a backend by ID. Health and capabilities of an existing
// record are preserved; identity fields are overwritten.
func (r *Registry) Register(b domain.Backend) error {
	id := strings.TrimSpace(b.ID)
	if id == "" {
		return fmt.Errorf("%w: backend id cannot be empty", errors.ErrBadRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.backends[id]; ok {
		existing.Name = b.Name
		existing.Endpoint = b.Endpoint
		existing.Priority = b.Priority
		return nil
	}

	if b.Health.Status == "" {
		b.Health.Status = domain.HealthStatusUnknown
	}
	r.backends[id] = &b

	return nil
}

// Unregister removes a backend by ID. Removing an unknown ID is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.backends, id)
}

// Get returns a copy of the backend with the given ID.
func (r *Registry) Get(id string) (domain.Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[id]
	if !ok {
		return domain.Backend{}, fmt.Errorf("%w: %s", errors.ErrBackendNotFound, id)
	}

	return *b, nil
}

// List returns copies of all registered backends, ordered by priority then ID.
func (r *Registry) List() []domain.Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Backend, 0, len(r.backends))
	for _, b := range r.backends {
		out = append(out, *b)
	}
	sortBackends(out)

	return out
}

// ListAvailable returns all backends whose health status is not down.
// Degraded and unknown backends are included: the fast probe failing does not
// mean the protocol itself is unresponsive.
func (r *Registry) ListAvailable() []domain.Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Backend, 0, len(r.backends))
	for _, b := range r.backends {
		if b.Health.Status.Usable() {
			out = append(out, *b)
		}
	}
	sortBackends(out)

	return out
}

// UpdateHealth replaces the health record for a backend.
func (r *Registry) UpdateHealth(id string, health domain.BackendHealth) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.backends[id]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrHealthNotTracked, id)
	}
	b.Health = health

	return nil
}

// Health returns the health record for a backend.
func (r *Registry) Health(id string) (domain.BackendHealth, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[id]
	if !ok {
		return domain.BackendHealth{}, fmt.Errorf("%w: %s", errors.ErrHealthNotTracked, id)
	}

	return b.Health, nil
}

// UpdateCapabilities replaces the advertised capabilities for a backend.
// Empty fields in the update keep their previous value so partial refreshes
// (e.g. a tools-only aggregation) don't drop resource or prompt catalogs.
func (r *Registry) UpdateCapabilities(id string, caps domain.Capabilities) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.backends[id]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrBackendNotFound, id)
	}

	if caps.Tools != nil {
		b.Capabilities.Tools = caps.Tools
	}
	if caps.Resources != nil {
		b.Capabilities.Resources = caps.Resources
	}
	if caps.Prompts != nil {
		b.Capabilities.Prompts = caps.Prompts
	}

	return nil
}

// ResolveForCapability composes the namespace resolver and Get: it resolves
// the backend ID owning the namespaced name and returns that backend, or a
// backend-not-found error carrying the attempted ID.
func (r *Registry) ResolveForCapability(namespaced string) (domain.Backend, error) {
	id := r.resolver.ResolveBackendID(namespaced)
	if id == "" {
		return domain.Backend{}, fmt.Errorf("%w: empty capability name", errors.ErrBackendNotFound)
	}

	return r.Get(id)
}

func sortBackends(backends []domain.Backend) {
	slices.SortFunc(backends, func(a, b domain.Backend) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		return strings.Compare(a.ID, b.ID)
	})
}
