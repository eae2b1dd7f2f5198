package classify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func TestDeviceStatus(t *testing.T) {
	tests := []struct {
		status   string
		expected Category
	}{
		{"online", Positive},
		{"ONLINE", Positive},
		{" online ", Positive},
		{"offline", Negative},
		{"unknown", Neutral},
		{"", Neutral},
		{"los", Neutral},
		{"dying-gasp", Neutral},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeviceStatus(tt.status).Category)
		})
	}
}

func TestDeviceStatusWeightsAreDistinct(t *testing.T) {
	online := DeviceStatus("online")
	offline := DeviceStatus("offline")
	unknown := DeviceStatus("unknown")

	assert.NotEqual(t, online.ColorWeight, offline.ColorWeight)
	assert.NotEqual(t, online.ColorWeight, unknown.ColorWeight)
	assert.Greater(t, offline.ColorWeight, online.ColorWeight)
	assert.NotEqual(t, online.Category.Color(), offline.Category.Color())
	assert.NotEqual(t, online.Category.Color(), unknown.Category.Color())
}

func TestSignalPower(t *testing.T) {
	tests := []struct {
		name     string
		power    *float64
		expected SignalTier
	}{
		{"absent", nil, SignalUnrated},
		{"strong", f(-8), SignalGood},
		{"good boundary", f(-23), SignalGood},
		{"just below good", f(-23.01), SignalMarginal},
		{"marginal boundary", f(-27), SignalMarginal},
		{"just below marginal", f(-27.01), SignalPoor},
		{"very weak", f(-40), SignalPoor},
		{"positive reading", f(2.5), SignalGood},
		{"not a number", f(math.NaN()), SignalPoor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SignalPower(tt.power))
		})
	}
}

func TestSignalTierColor(t *testing.T) {
	assert.Equal(t, "green", SignalGood.Color())
	assert.Equal(t, "orange", SignalMarginal.Color())
	assert.Equal(t, "red", SignalPoor.Color())
	assert.Equal(t, "default", SignalUnrated.Color())
}

func TestIsLowSignal(t *testing.T) {
	assert.True(t, IsLowSignal(f(-30)))
	assert.False(t, IsLowSignal(f(-27)))
	assert.False(t, IsLowSignal(nil))
}

func TestPortUtilization(t *testing.T) {
	assert.Equal(t, 50.0, PortUtilization(4, 8))
	assert.Equal(t, 0.0, PortUtilization(0, 0))
	assert.Equal(t, 0.0, PortUtilization(5, 0))
	assert.Equal(t, 125.0, PortUtilization(10, 8))
	assert.InDelta(t, 33.333333, PortUtilization(1, 3), 1e-5)
}

func TestOdpAndCableStatus(t *testing.T) {
	assert.Equal(t, Positive, OdpStatus("active").Category)
	assert.Equal(t, Neutral, OdpStatus("inactive").Category)
	assert.Equal(t, Neutral, OdpStatus("maintenance").Category)

	assert.Equal(t, Positive, CableStatus("active").Category)
	assert.Equal(t, Negative, CableStatus("damaged").Category)
	assert.Equal(t, Neutral, CableStatus("").Category)
}
