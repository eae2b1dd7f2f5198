package collectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pontopology/internal/inventory"
)

func TestStaticSample(t *testing.T) {
	ctx := context.Background()
	s := NewSample()

	olts, err := s.FetchOLTs(ctx)
	require.NoError(t, err)
	require.Len(t, olts, 1)
	assert.Equal(t, "OLT-Sample-01", olts[0].Name)

	onus, err := s.FetchONUs(ctx)
	require.NoError(t, err)
	assert.Len(t, onus, 2)

	for _, r := range SampleCollections().ONUs {
		assert.NoError(t, inventory.Validate(r))
	}
}

func TestStaticReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewSample()

	odps, err := s.FetchODPs(ctx)
	require.NoError(t, err)
	odps[0].Name = "mutated"

	again, err := s.FetchODPs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ODP-001", again[0].Name)
}

func TestStaticReplaceAndCancel(t *testing.T) {
	s := NewSample()
	s.Replace(inventory.Collections{})

	routes, err := s.FetchCableRoutes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, routes)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.FetchOLTs(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
