package domain

import (
	"encoding/json"
	"time"
)

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusUnknown  HealthStatus = "unknown"
)

// HealthStatus represents the internal state of a backend MCP server's availability.
type HealthStatus string

// Usable reports whether a backend in this state may still be routed to.
// Degraded and unknown backends remain usable, the fast probe failing does not
// mean the protocol itself is unresponsive.
func (s HealthStatus) Usable() bool {
	return s != HealthStatusDown
}

// BackendHealth tracks the health state for a single backend MCP server.
// It is owned by the backend registry and mutated by the health checker.
type BackendHealth struct {
	Status              HealthStatus   `json:"status"`
	LastCheck           *time.Time     `json:"lastCheck,omitempty"`
	Latency             *time.Duration `json:"latency,omitempty"`
	ConsecutiveFailures int            `json:"consecutiveFailures"`
	ErrorMessage        string         `json:"errorMessage,omitempty"`
}

// ToolCapability is a single tool advertised by a backend, together with its
// input schema when the backend provided one.
type ToolCapability struct {
	Name        string          `json:"name"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Capabilities holds the capability names a backend has advertised.
// Populated lazily, from catalog aggregation results.
type Capabilities struct {
	Tools     []ToolCapability `json:"tools,omitempty"`
	Resources []string         `json:"resources,omitempty"`
	Prompts   []string         `json:"prompts,omitempty"`
}

// ToolSchema returns the advertised input schema for the named tool,
// or nil when the tool is unknown or carries no schema.
func (c Capabilities) ToolSchema(name string) json.RawMessage {
	for _, t := range c.Tools {
		if t.Name == name {
			return t.InputSchema
		}
	}
	return nil
}

// Backend describes one registered backend MCP server.
// Identity fields (ID, Name, Endpoint, Priority) are set at registration and
// never change; Health and Capabilities are updated in place by the registry.
type Backend struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Endpoint     string        `json:"endpoint"`
	Priority     int           `json:"priority"`
	Health       BackendHealth `json:"health"`
	Capabilities Capabilities  `json:"capabilities"`
}
