package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("well formed records pass", func(t *testing.T) {
		assert.NoError(t, Validate(OltRecord{ID: 1, Name: "OLT-1"}))
		assert.NoError(t, Validate(OdpRecord{ID: 1, Name: "ODP-1", TotalPorts: 8, UsedPorts: 10}))
		assert.NoError(t, Validate(OnuRecord{ID: 1, Serial: "ZTEG0001"}))
		assert.NoError(t, Validate(CableRouteRecord{
			ID:          1,
			Source:      EntityRef{Kind: KindOLT, ID: 1},
			Destination: EntityRef{Kind: KindODP, ID: 2},
		}))
	})

	t.Run("missing identifier is reported", func(t *testing.T) {
		err := Validate(OnuRecord{Serial: "ZTEG0001"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OnuRecord.ID failed required")
	})

	t.Run("missing serial is reported", func(t *testing.T) {
		err := Validate(OnuRecord{ID: 3})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Serial")
	})

	t.Run("negative port counts are rejected", func(t *testing.T) {
		err := Validate(OdpRecord{ID: 1, Name: "ODP-1", TotalPorts: -1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gte=0")
	})

	t.Run("cable route endpoint kind must be known", func(t *testing.T) {
		err := Validate(CableRouteRecord{
			ID:          1,
			Source:      EntityRef{Kind: "splice", ID: 1},
			Destination: EntityRef{Kind: KindODP, ID: 2},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Source.Kind")
	})
}

func TestEntityKind(t *testing.T) {
	assert.Equal(t, "olt-7", KindOLT.Key(7))
	assert.Equal(t, "onu-12", EntityRef{Kind: KindONU, ID: 12}.Key())

	layer, ok := KindODP.Layer()
	assert.True(t, ok)
	assert.Equal(t, 1, layer)

	_, ok = EntityKind("splice").Layer()
	assert.False(t, ok)
}

func TestDeref(t *testing.T) {
	assert.Equal(t, "x", Deref(Ptr("x"), "-"))
	assert.Equal(t, "-", Deref[string](nil, "-"))
}
