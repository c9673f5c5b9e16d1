// Package namespace maps between backend identifiers and the short public
// aliases clients see, and between public (aliased) capability names and their
// backend-local form. All functions are total: malformed input degrades to a
// passthrough or an empty result rather than an error.
package namespace

import (
	"slices"
	"strings"
)

const (
	// ToolSeparator separates the alias from the local name for tools and prompts.
	ToolSeparator = "."

	// ResourceSeparator separates the alias from the local URI for resources.
	ResourceSeparator = "://"

	// BackendSuffix is the conventional suffix carried by backend IDs.
	// Unknown aliases resolve to "<alias>-mcp"; the reverse fallback strips it.
	BackendSuffix = "-mcp"
)

// Resolver maps aliases to backend IDs. Multiple aliases may map to the same
// backend ID; reverse lookup returns the first match in lexical alias order so
// results are stable.
// NewResolver should be used to create instances of Resolver.
type Resolver struct {
	aliases map[string]string

	// sorted alias keys, for deterministic reverse lookup.
	order []string
}

// NewResolver creates a Resolver from an alias -> backend ID table.
// A nil or empty table is valid; every lookup then uses the deterministic
// "<alias>-mcp" fallback.
func NewResolver(aliases map[string]string) *Resolver {
	table := make(map[string]string, len(aliases))
	order := make([]string, 0, len(aliases))
	for alias, id := range aliases {
		alias = strings.TrimSpace(alias)
		id = strings.TrimSpace(id)
		if alias == "" || id == "" {
			continue
		}
		table[alias] = id
		order = append(order, alias)
	}
	slices.Sort(order)

	return &Resolver{
		aliases: table,
		order:   order,
	}
}

// ResolveBackendID returns the backend ID owning the namespaced capability
// name or resource URI. An alias missing from the table synthesizes
// "<alias>-mcp". A name with no separator is treated as its own alias.
func (r *Resolver) ResolveBackendID(namespaced string) string {
	alias, _, _ := split(namespaced)
	if alias == "" {
		return ""
	}
	if id, ok := r.aliases[alias]; ok {
		return id
	}
	return alias + BackendSuffix
}

// StripPrefix returns the backend-local remainder of a namespaced name, or the
// input unchanged when no separator is present (already-local).
func (r *Resolver) StripPrefix(namespaced string) string {
	_, local, ok := split(namespaced)
	if !ok {
		return namespaced
	}
	return local
}

// ApplyPrefix namespaces a backend-local tool or prompt name under the alias
// for the given backend ID.
func (r *Resolver) ApplyPrefix(backendID, localName string) string {
	return r.Alias(backendID) + ToolSeparator + localName
}

// ApplyResourcePrefix namespaces a backend-local resource URI under the alias
// for the given backend ID. The local URI is carried whole, so stripping the
// prefix recovers it exactly.
func (r *Resolver) ApplyResourcePrefix(backendID, localURI string) string {
	return r.Alias(backendID) + ResourceSeparator + localURI
}

// Alias reverse-looks-up the public alias for a backend ID, returning the
// first table match or, on a miss, the backend ID with its conventional
// suffix removed.
func (r *Resolver) Alias(backendID string) string {
	for _, alias := range r.order {
		if r.aliases[alias] == backendID {
			return alias
		}
	}
	return strings.TrimSuffix(backendID, BackendSuffix)
}

// split separates a namespaced name into alias and local parts.
// The earliest separator wins, so "a://b://c" yields ("a", "b://c") and
// "a.b.c" yields ("a", "b.c"). A name with no separator is returned whole as
// the alias with ok=false.
func split(namespaced string) (alias, local string, ok bool) {
	ri := strings.Index(namespaced, ResourceSeparator)
	ti := strings.Index(namespaced, ToolSeparator)

	switch {
	case ri >= 0 && (ti < 0 || ri <= ti):
		return namespaced[:ri], namespaced[ri+len(ResourceSeparator):], true
	case ti >= 0:
		return namespaced[:ti], namespaced[ti+len(ToolSeparator):], true
	default:
		return namespaced, "", false
	}
}
