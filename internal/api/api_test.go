package api

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/relaypoint/mcpgw/internal/aggregator"
	"github.com/relaypoint/mcpgw/internal/domain"
	"github.com/relaypoint/mcpgw/internal/errors"
)

// stubAggregator implements contracts.MCPAggregator with canned data.
type stubAggregator struct {
	tools     []aggregator.Tool
	resources []mcp.Resource
	prompts   []mcp.Prompt

	callResult any
	callErr    error

	lastCallName string
	lastCallArgs map[string]any
}

func (s *stubAggregator) ListTools(context.Context) []aggregator.Tool  { return s.tools }
func (s *stubAggregator) ListResources(context.Context) []mcp.Resource { return s.resources }
func (s *stubAggregator) ListPrompts(context.Context) []mcp.Prompt     { return s.prompts }

func (s *stubAggregator) CallTool(_ context.Context, name string, args map[string]any) (any, error) {
	s.lastCallName = name
	s.lastCallArgs = args
	return s.callResult, s.callErr
}

func (s *stubAggregator) ReadResource(_ context.Context, uri string) (any, error) {
	s.lastCallName = uri
	return s.callResult, s.callErr
}

func (s *stubAggregator) GetPrompt(_ context.Context, name string, args map[string]any) (any, error) {
	s.lastCallName = name
	s.lastCallArgs = args
	return s.callResult, s.callErr
}

// stubBackendReader implements contracts.BackendReader over a fixed slice.
type stubBackendReader struct {
	backends []domain.Backend
}

func (s *stubBackendReader) Get(id string) (domain.Backend, error) {
	for _, b := range s.backends {
		if b.ID == id {
			return b, nil
		}
	}
	return domain.Backend{}, fmt.Errorf("%w: %s", errors.ErrBackendNotFound, id)
}

func (s *stubBackendReader) List() []domain.Backend {
	out := make([]domain.Backend, len(s.backends))
	copy(out, s.backends)
	return out
}

func (s *stubBackendReader) Health(id string) (domain.BackendHealth, error) {
	b, err := s.Get(id)
	if err != nil {
		return domain.BackendHealth{}, fmt.Errorf("%w: %s", errors.ErrHealthNotTracked, id)
	}
	return b.Health, nil
}
