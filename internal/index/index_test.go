package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pontopology/internal/inventory"
)

func sample() inventory.Collections {
	return inventory.Collections{
		OLTs: []inventory.OltRecord{
			{ID: 10, Name: "OLT-A", Status: "online"},
			{ID: 20, Name: "OLT-B", Status: "offline"},
		},
		ODPs: []inventory.OdpRecord{
			{ID: 1, Name: "ODP-1", PortID: inventory.Ptr[int64](5)},
			{ID: 2, Name: "ODP-2", FeedingOltID: inventory.Ptr[int64](20)},
			{ID: 3, Name: "ODP-3"},
		},
		ONUs: []inventory.OnuRecord{
			{ID: 100, Serial: "S100", OdpID: inventory.Ptr[int64](1)},
			{ID: 101, Serial: "S101", OdpID: inventory.Ptr[int64](2)},
			{ID: 102, Serial: "S102", OdpID: inventory.Ptr[int64](1)},
			{ID: 103, Serial: "S103", OdpID: inventory.Ptr[int64](99)},
			{ID: 104, Serial: "S104"},
		},
	}
}

func TestBuild(t *testing.T) {
	idx := Build(sample(), nil)

	assert.Len(t, idx.OLTs, 2)
	assert.Len(t, idx.ODPs, 3)
	assert.Len(t, idx.ONUs, 5)
	assert.Equal(t, []int64{10, 20}, idx.OLTOrder)
	assert.Equal(t, []int64{1, 2, 3}, idx.ODPOrder)

	assert.Equal(t, []int64{1}, idx.ODPsByOLT[10])
	assert.Equal(t, []int64{2}, idx.ODPsByOLT[20])
	_, resolved := idx.ParentOf(3)
	assert.False(t, resolved, "ODP without port or explicit parent stays unresolved")

	assert.Equal(t, []int64{100, 102}, idx.ONUsByODP[1])
	assert.Equal(t, []int64{101}, idx.ONUsByODP[2])
	assert.Empty(t, idx.ONUsByODP[3])
	assert.Empty(t, idx.ONUsByODP[99])
	assert.Empty(t, idx.Rejected)
}

func TestBuildEmpty(t *testing.T) {
	idx := Build(inventory.Collections{}, nil)
	require.NotNil(t, idx)
	assert.Empty(t, idx.OLTOrder)
	assert.Empty(t, idx.ODPsByOLT)
	_, ok := idx.FirstOLT()
	assert.False(t, ok)
}

func TestBuildRejectsMalformedAndDuplicates(t *testing.T) {
	c := inventory.Collections{
		OLTs: []inventory.OltRecord{
			{ID: 1, Name: "OLT-1"},
			{ID: 1, Name: "OLT-1 again"},
			{Name: "no id"},
		},
		ONUs: []inventory.OnuRecord{
			{ID: 7},
		},
	}
	idx := Build(c, nil)

	assert.Equal(t, []int64{1}, idx.OLTOrder)
	assert.Equal(t, "OLT-1", idx.OLTs[1].Name, "first occurrence wins")
	require.Len(t, idx.Rejected, 3)
	assert.Equal(t, Rejection{Kind: "olt", Index: 1, ID: 1, Reason: ReasonDuplicateID}, idx.Rejected[0])
	assert.Equal(t, "olt", idx.Rejected[1].Kind)
	assert.Equal(t, 2, idx.Rejected[1].Index)
	assert.Equal(t, "onu", idx.Rejected[2].Kind)
	assert.Contains(t, idx.Rejected[2].Reason, "Serial")
}

func TestPolicies(t *testing.T) {
	c := sample()
	// explicit reference to a missing OLT plus a port reference
	c.ODPs = append(c.ODPs, inventory.OdpRecord{
		ID: 4, Name: "ODP-4",
		PortID:       inventory.Ptr[int64](9),
		FeedingOltID: inventory.Ptr[int64](404),
	})

	t.Run("first OLT fallback", func(t *testing.T) {
		idx := Build(c, FirstOLTFallback{})
		parent, ok := idx.ParentOf(4)
		require.True(t, ok)
		assert.Equal(t, int64(10), parent)
		assert.Equal(t, []int64{1, 4}, idx.ODPsByOLT[10])
	})

	t.Run("explicit only", func(t *testing.T) {
		idx := Build(c, ExplicitOnly{})
		_, ok := idx.ParentOf(1)
		assert.False(t, ok)
		_, ok = idx.ParentOf(4)
		assert.False(t, ok)
		parent, ok := idx.ParentOf(2)
		require.True(t, ok)
		assert.Equal(t, int64(20), parent)
	})

	t.Run("fallback with no OLTs", func(t *testing.T) {
		c := inventory.Collections{ODPs: []inventory.OdpRecord{{ID: 1, Name: "ODP-1", PortID: inventory.Ptr[int64](1)}}}
		idx := Build(c, FirstOLTFallback{})
		_, ok := idx.ParentOf(1)
		assert.False(t, ok)
	})
}

func TestPolicyByName(t *testing.T) {
	p, ok := PolicyByName("")
	require.True(t, ok)
	assert.IsType(t, FirstOLTFallback{}, p)

	p, ok = PolicyByName("Explicit_Only")
	require.True(t, ok)
	assert.IsType(t, ExplicitOnly{}, p)

	_, ok = PolicyByName("nearest")
	assert.False(t, ok)
}
