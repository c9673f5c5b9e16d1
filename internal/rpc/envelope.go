// Package rpc implements the gateway's JSON-RPC 2.0 client for backend MCP
// servers: request envelopes over HTTP POST, dual-format response decoding
// (plain body or event-stream framing), per-backend session lifecycle, and
// retry with exponential backoff.
package rpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/relaypoint/mcpgw/internal/errors"
)

// Version is the JSON-RPC protocol version carried in every envelope.
const Version = "2.0"

// eventDataPrefix is the SSE framing marker whose first occurrence carries the
// response envelope.
const eventDataPrefix = "data:"

// Request is the JSON-RPC request envelope sent to backends.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is the JSON-RPC response envelope returned by backends.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is the error member of a JSON-RPC response envelope.
type ResponseError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ParseBody decodes a backend response body in either accepted encoding:
// a direct JSON-RPC envelope, or an event-stream-framed body whose first
// "data:" line carries the envelope. A body matching neither is a hard parse
// error; callers never sniff shapes themselves.
func ParseBody(data []byte) (*Response, error) {
	var direct Response
	if err := json.Unmarshal(data, &direct); err == nil {
		return &direct, nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		payload, ok := strings.CutPrefix(line, eventDataPrefix)
		if !ok {
			continue
		}

		var framed Response
		if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &framed); err != nil {
			return nil, fmt.Errorf("%w: invalid event-stream payload: %w", errors.ErrParse, err)
		}
		return &framed, nil
	}

	return nil, fmt.Errorf("%w: body is neither a JSON-RPC envelope nor an event stream", errors.ErrParse)
}

// Err checks the envelope's outcome: an error member is surfaced as an
// upstream RPC error, and an envelope carrying neither result nor error is a
// protocol violation.
func (r *Response) Err() error {
	if r.Error != nil {
		return fmt.Errorf("%w: %s", errors.ErrRPC, r.Error.Error())
	}
	if len(r.Result) == 0 {
		return fmt.Errorf("%w: envelope carries neither result nor error", errors.ErrProtocol)
	}
	return nil
}
