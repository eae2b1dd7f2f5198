package index

import (
	"strings"

	"pontopology/internal/inventory"
)

// ParentPolicy decides which OLT feeds an ODP. Implementations must be
// deterministic for a given index.
type ParentPolicy interface {
	FeedingOLT(odp inventory.OdpRecord, idx *Index) (oltID int64, ok bool)
}

// FirstOLTFallback uses an explicit feeding OLT when it is indexed. Otherwise
// an ODP that references an OLT port is attributed to the first OLT in input
// order. Multi-OLT deployments without explicit references are misattributed
// by this rule; swap in ExplicitOnly when that matters.
type FirstOLTFallback struct{}

func (FirstOLTFallback) FeedingOLT(odp inventory.OdpRecord, idx *Index) (int64, bool) {
	if id, ok := explicitParent(odp, idx); ok {
		return id, true
	}
	if odp.PortID == nil {
		return 0, false
	}
	first, ok := idx.FirstOLT()
	if !ok {
		return 0, false
	}
	return first.ID, true
}

// ExplicitOnly only honors an explicit, indexed feeding OLT.
type ExplicitOnly struct{}

func (ExplicitOnly) FeedingOLT(odp inventory.OdpRecord, idx *Index) (int64, bool) {
	return explicitParent(odp, idx)
}

func explicitParent(odp inventory.OdpRecord, idx *Index) (int64, bool) {
	if odp.FeedingOltID == nil {
		return 0, false
	}
	if _, ok := idx.OLTs[*odp.FeedingOltID]; !ok {
		return 0, false
	}
	return *odp.FeedingOltID, true
}

const (
	PolicyFirstOLTFallback = "first_olt_fallback"
	PolicyExplicitOnly     = "explicit_only"
)

// PolicyByName maps a configuration value to a policy.
func PolicyByName(name string) (ParentPolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyFirstOLTFallback:
		return FirstOLTFallback{}, true
	case PolicyExplicitOnly:
		return ExplicitOnly{}, true
	default:
		return nil, false
	}
}
