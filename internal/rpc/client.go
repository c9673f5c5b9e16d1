package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/relaypoint/mcpgw/internal/errors"
)

// headerInstanceID carries the gateway instance identity on every backend
// request, so operators can correlate traffic from multiple gateway processes.
const headerInstanceID = "X-Mcpgw-Instance"

// Call describes one JSON-RPC call to a backend.
type Call struct {
	// Endpoint is the backend base URL the envelope is POSTed to.
	Endpoint string

	// Method is the JSON-RPC method (e.g. "tools/call").
	Method string

	// Params is the params member of the envelope. May be nil.
	Params any

	// Timeout bounds this call end-to-end. Zero means the context's deadline
	// alone applies.
	Timeout time.Duration

	// BackendID enables session handling when non-empty: a held token is
	// echoed, emitted tokens are captured, and session-expiry rejections
	// trigger one re-handshake and retry.
	BackendID string
}

// Client sends protocol requests to backend MCP servers.
// NewClient should be used to create instances of Client.
type Client struct {
	logger      hclog.Logger
	httpClient  *http.Client
	sessions    *SessionStore
	retry       RetryPolicy
	initTimeout time.Duration
	clientInfo  mcp.Implementation
	instanceID  string
}

// ClientOption defines a functional option for configuring the Client.
type ClientOption func(*clientOptions) error

type clientOptions struct {
	httpClient     *http.Client
	connectTimeout time.Duration
	initTimeout    time.Duration
	retry          RetryPolicy
	clientInfo     mcp.Implementation
}

// WithHTTPClient replaces the underlying HTTP client entirely.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) error {
		if c == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		o.httpClient = c
		return nil
	}
}

// WithConnectTimeout bounds connection establishment to backends.
// Ignored when WithHTTPClient is supplied.
func WithConnectTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) error {
		if timeout <= 0 {
			return fmt.Errorf("connect timeout must be positive, got %v", timeout)
		}
		o.connectTimeout = timeout
		return nil
	}
}

// WithInitTimeout bounds the initialize handshake.
func WithInitTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) error {
		if timeout <= 0 {
			return fmt.Errorf("init timeout must be positive, got %v", timeout)
		}
		o.initTimeout = timeout
		return nil
	}
}

// WithRetryPolicy configures retry-with-backoff for SendWithRetry.
func WithRetryPolicy(policy RetryPolicy) ClientOption {
	return func(o *clientOptions) error {
		if err := policy.validate(); err != nil {
			return err
		}
		o.retry = policy
		return nil
	}
}

// WithClientInfo sets the identity reported in the initialize handshake.
func WithClientInfo(info mcp.Implementation) ClientOption {
	return func(o *clientOptions) error {
		if strings.TrimSpace(info.Name) == "" {
			return fmt.Errorf("client info name cannot be empty")
		}
		o.clientInfo = info
		return nil
	}
}

// NewClient creates a Client with defaults applied first and user options on top.
func NewClient(logger hclog.Logger, sessions *SessionStore, opt ...ClientOption) (*Client, error) {
	opts := clientOptions{
		connectTimeout: 5 * time.Second,
		initTimeout:    5 * time.Second,
		retry:          DefaultRetryPolicy(),
		clientInfo:     mcp.Implementation{Name: "mcpgw", Version: "dev"},
	}
	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(&opts); err != nil {
			return nil, fmt.Errorf("invalid client option: %w", err)
		}
	}

	httpClient := opts.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: opts.connectTimeout}).DialContext,
			},
		}
	}

	if sessions == nil {
		sessions = NewSessionStore()
	}

	return &Client{
		logger:      logger.Named("rpc"),
		httpClient:  httpClient,
		sessions:    sessions,
		retry:       opts.retry,
		initTimeout: opts.initTimeout,
		clientInfo:  opts.clientInfo,
		instanceID:  uuid.NewString(),
	}, nil
}

// Sessions returns the client's session store.
func (c *Client) Sessions() *SessionStore {
	return c.sessions
}

// Send issues a single JSON-RPC call and decodes the response envelope.
// A 4xx rejection whose body names the session triggers invalidation, one
// re-handshake, and one retry of the original call before giving up.
func (c *Client) Send(ctx context.Context, call Call) (*Response, error) {
	return c.send(ctx, call, true)
}

func (c *Client) send(ctx context.Context, call Call, allowSessionRetry bool) (*Response, error) {
	req := Request{
		JSONRPC: Version,
		ID:      c.sessions.NextRequestID(),
		Method:  call.Method,
		Params:  call.Params,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request envelope: %w", err)
	}

	if call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, call.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	httpReq.Header.Set(headerInstanceID, c.instanceID)
	if call.BackendID != "" {
		if token, ok := c.sessions.Token(call.BackendID); ok {
			httpReq.Header.Set(HeaderSessionID, token)
		}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", errors.ErrTransport, call.Method, call.Endpoint, err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %w", errors.ErrTransport, err)
	}

	// Stateful backends communicate tokens on any response, capture eagerly.
	if call.BackendID != "" {
		if token := httpResp.Header.Get(HeaderSessionID); token != "" {
			c.sessions.Set(call.BackendID, token)
		}
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		sessionRejected := call.BackendID != "" &&
			httpResp.StatusCode < http.StatusInternalServerError && isSessionRejection(body)
		if sessionRejected {
			if allowSessionRetry {
				c.logger.Debug(
					"session rejected by backend, re-handshaking",
					"backend", call.BackendID,
					"status", httpResp.StatusCode,
				)
				c.sessions.Invalidate(call.BackendID)
				if _, err := c.Initialize(ctx, call.Endpoint, call.BackendID); err != nil {
					return nil, fmt.Errorf("%w: re-handshake failed: %w", errors.ErrSessionExpired, err)
				}
				return c.send(ctx, call, false)
			}
			// The backend rejected a freshly handshaken session; another
			// attempt would just re-enter recovery.
			return nil, fmt.Errorf(
				"%w: http %d from %s calling %s after re-handshake",
				errors.ErrSessionExpired, httpResp.StatusCode, call.Endpoint, call.Method,
			)
		}
		return nil, fmt.Errorf(
			"%w: http %d from %s calling %s",
			errors.ErrHTTPStatus, httpResp.StatusCode, call.Endpoint, call.Method,
		)
	}

	envelope, err := ParseBody(body)
	if err != nil {
		return nil, err
	}
	if err := envelope.Err(); err != nil {
		return nil, err
	}

	return envelope, nil
}

// initializeParams is the params member of the initialize handshake: protocol
// version, empty capabilities, and the gateway's client identity.
type initializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    struct{}           `json:"capabilities"`
	ClientInfo      mcp.Implementation `json:"clientInfo"`
}

// Initialize performs the protocol handshake with a backend. When backendID is
// non-empty, a session token emitted by the backend is captured for reuse.
func (c *Client) Initialize(ctx context.Context, endpoint, backendID string) (*mcp.InitializeResult, error) {
	envelope, err := c.send(ctx, Call{
		Endpoint: endpoint,
		Method:   string(mcp.MethodInitialize),
		Params: initializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      c.clientInfo,
		},
		Timeout:   c.initTimeout,
		BackendID: backendID,
	}, false)
	if err != nil {
		return nil, err
	}

	var result mcp.InitializeResult
	if err := json.Unmarshal(envelope.Result, &result); err != nil {
		return nil, fmt.Errorf("%w: invalid initialize result: %w", errors.ErrParse, err)
	}

	return &result, nil
}

// EnsureSession returns the session token held for a backend, performing the
// initialize handshake when none is held yet. Handshake failures are swallowed
// and reported as no session, stateless operation must still be attempted.
func (c *Client) EnsureSession(ctx context.Context, endpoint, backendID string) string {
	if token, ok := c.sessions.Token(backendID); ok {
		return token
	}

	if _, err := c.Initialize(ctx, endpoint, backendID); err != nil {
		c.logger.Debug(
			"initialize handshake failed, continuing stateless",
			"backend", backendID,
			"error", err,
		)
		return ""
	}

	token, _ := c.sessions.Token(backendID)
	return token
}

// isSessionRejection reports whether a 4xx body indicates an invalid or
// expired session. Keyword detection is deliberately loose: backends phrase
// this differently ("session expired", "missing session id", ...).
func isSessionRejection(body []byte) bool {
	return strings.Contains(strings.ToLower(string(body)), "session")
}
