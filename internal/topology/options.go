package topology

import "go.uber.org/zap"

// Options tunes layout and truncation. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	// MaxOnuNodes caps the ONU tier, first N in input order. Zero or
	// negative means no ONU nodes.
	MaxOnuNodes int
	// LayerSpacing is the horizontal step per tier (OLT, ODP, ONU).
	LayerSpacing [3]float64
	// Baselines is the vertical position per tier.
	Baselines [3]float64
	// Placeholder replaces an absent secondary label.
	Placeholder string
	// CustomerPlaceholder replaces an absent ONU customer name.
	CustomerPlaceholder string
	// MaterializeCableRoutes adds cable-route edges that no relation implies.
	MaterializeCableRoutes bool

	Logger *zap.Logger
}

const DefaultMaxOnuNodes = 20

func DefaultOptions() Options {
	return Options{
		MaxOnuNodes:         DefaultMaxOnuNodes,
		LayerSpacing:        [3]float64{250, 200, 150},
		Baselines:           [3]float64{0, 200, 400},
		Placeholder:         "-",
		CustomerPlaceholder: "No Customer",
	}
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
