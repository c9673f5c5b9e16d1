package api

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/relaypoint/mcpgw/internal/errors"
)

func TestHandleListResources(t *testing.T) {
	t.Parallel()

	agg := &stubAggregator{
		resources: []mcp.Resource{
			{
				URI:         "journey://stations/8000105",
				Name:        "Frankfurt Hbf",
				Description: "Station details",
				MIMEType:    "application/json",
			},
		},
	}

	resp, err := handleListResources(context.Background(), agg)
	require.NoError(t, err)
	require.Len(t, resp.Body.Resources, 1)

	res := resp.Body.Resources[0]
	require.Equal(t, "journey://stations/8000105", res.URI)
	require.Equal(t, "Frankfurt Hbf", res.Name)
	require.Equal(t, "Station details", res.Description)
	require.Equal(t, "application/json", res.MIMEType)
}

func TestHandleReadResource(t *testing.T) {
	t.Parallel()

	agg := &stubAggregator{callResult: map[string]any{"contents": []any{}}}

	resp, err := handleReadResource(context.Background(), agg, "journey://stations/8000105")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"contents": []any{}}, resp.Body.Result)
	require.Equal(t, "journey://stations/8000105", agg.lastCallName)
}

func TestHandleReadResource_ErrorPassthrough(t *testing.T) {
	t.Parallel()

	agg := &stubAggregator{callErr: errors.ErrCircuitOpen}

	_, err := handleReadResource(context.Background(), agg, "journey://x")
	require.ErrorIs(t, err, errors.ErrCircuitOpen)
}
