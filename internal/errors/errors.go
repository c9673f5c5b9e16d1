// Package errors defines domain-level errors used throughout the application.
// These errors represent gateway failures and are mapped to appropriate HTTP status codes at the API boundary.
//
// NOTE: Important for developers
// When adding a new error here, you MUST consider how it should be handled when returned from API endpoints.
//
// Unmapped errors will default to HTTP 500 Internal Server Error.
//
// Don't forget to:
// 1. Add your error to mapError (internal/daemon/api_server.go)
// 2. Add a test case to TestMapError (internal/daemon/api_server_test.go)
package errors

import (
	"errors"
)

var (
	// ErrBadRequest indicates that the client provided invalid input or made a malformed request.
	// This typically results from validation failures or incorrect request parameters.
	// Recommended to map to HTTP 400 Bad Request.
	ErrBadRequest = errors.New("bad request")

	// ErrBackendNotFound indicates that no registered backend owns the requested capability.
	// The attempted backend ID is carried in the wrapping error message.
	// Recommended to map to HTTP 404 Not Found.
	ErrBackendNotFound = errors.New("backend not found")

	// ErrBackendUnavailable indicates that the owning backend is currently marked down
	// by the health checker and calls to it are not being attempted.
	// Recommended to map to HTTP 503 Service Unavailable.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrCircuitOpen indicates that the backend's circuit breaker is open and the
	// call was short-circuited without reaching the backend. The wrapping error
	// carries the remaining cool-down.
	// Recommended to map to HTTP 503 Service Unavailable.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrRPC indicates that a backend returned a well-formed JSON-RPC error response.
	// This is a logical upstream error and is never retried.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrRPC = errors.New("upstream rpc error")

	// ErrTransport indicates a transport-level failure talking to a backend:
	// connection failure, timeout, or an unreadable response.
	// Transient by assumption, retried by the RPC layer with bounded backoff.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrTransport = errors.New("backend transport error")

	// ErrHTTPStatus indicates that a backend answered a request with a
	// non-success HTTP status. The backend is reachable and responding, so this
	// is distinct from ErrTransport; the health checker treats it as degraded
	// rather than down. Retried by the RPC layer with bounded backoff.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrHTTPStatus = errors.New("non-success http status from backend")

	// ErrParse indicates that a backend response body could not be decoded as
	// either a direct JSON-RPC envelope or an event-stream-framed envelope.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrParse = errors.New("unparseable backend response")

	// ErrProtocol indicates that a backend returned an envelope carrying neither
	// a result nor an error, violating the JSON-RPC contract.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrProtocol = errors.New("protocol violation")

	// ErrSessionExpired indicates that a backend rejected a request because its
	// session token is no longer valid. Handled internally by one automatic
	// re-handshake and retry; surfaced only if that retry also fails.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrSessionExpired = errors.New("backend session expired")

	// ErrRetryExhausted indicates that all retry attempts against a backend failed.
	// The wrapping error carries the final attempt's failure.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrHealthNotTracked indicates that health monitoring has no record of the specified backend.
	// This occurs when requesting health status for a backend that isn't registered.
	// Recommended to map to HTTP 404 Not Found.
	ErrHealthNotTracked = errors.New("backend health is not being tracked")

	// ErrConfigLoadFailed indicates that the gateway configuration file could not
	// be read, decoded, or validated. Not surfaced via the API; it aborts startup.
	ErrConfigLoadFailed = errors.New("config load failed")
)
