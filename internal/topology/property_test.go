package topology

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"pontopology/internal/classify"
	"pontopology/internal/graph"
	"pontopology/internal/index"
	"pontopology/internal/inventory"
)

var statuses = []string{"online", "offline", "unknown", "", "los"}

// randomCollections derives a deterministic inventory from a seed, including
// duplicate ids, dangling parent references and unresolvable ODPs.
func randomCollections(nOlt, nOdp, nOnu int, seed int64) inventory.Collections {
	r := rand.New(rand.NewSource(seed))
	var c inventory.Collections
	for i := 0; i < nOlt; i++ {
		c.OLTs = append(c.OLTs, inventory.OltRecord{
			ID:     int64(r.Intn(nOlt+1) + 1),
			Name:   fmt.Sprintf("OLT-%d", i),
			Status: statuses[r.Intn(len(statuses))],
		})
	}
	for i := 0; i < nOdp; i++ {
		odp := inventory.OdpRecord{
			ID:         int64(r.Intn(nOdp+1) + 1),
			Name:       fmt.Sprintf("ODP-%d", i),
			TotalPorts: 8,
			UsedPorts:  r.Intn(12),
		}
		switch r.Intn(3) {
		case 0:
			odp.PortID = inventory.Ptr(int64(i))
		case 1:
			odp.FeedingOltID = inventory.Ptr(int64(r.Intn(nOlt+2) + 1))
		}
		c.ODPs = append(c.ODPs, odp)
	}
	for i := 0; i < nOnu; i++ {
		onu := inventory.OnuRecord{
			ID:     int64(r.Intn(nOnu+1) + 1),
			Serial: fmt.Sprintf("SN%04d", i),
			Status: statuses[r.Intn(len(statuses))],
		}
		if r.Intn(4) > 0 {
			onu.OdpID = inventory.Ptr(int64(r.Intn(nOdp+2) + 1))
		}
		c.ONUs = append(c.ONUs, onu)
	}
	return c
}

func TestAssembleProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	build := func(nOlt, nOdp, nOnu int, seed int64) (*index.Index, graph.Snapshot) {
		idx := index.Build(randomCollections(nOlt, nOdp, nOnu, seed), index.FirstOLTFallback{})
		return idx, Assemble(idx, DefaultOptions())
	}

	properties.Property("node keys are unique and cover every OLT, ODP and capped ONU", prop.ForAll(
		func(nOlt, nOdp, nOnu int, seed int64) bool {
			idx, snap := build(nOlt, nOdp, nOnu, seed)
			seen := map[string]bool{}
			for _, n := range snap.Nodes {
				if seen[n.Key] {
					return false
				}
				seen[n.Key] = true
			}
			for _, id := range idx.OLTOrder {
				if !seen[inventory.KindOLT.Key(id)] {
					return false
				}
			}
			for _, id := range idx.ODPOrder {
				if !seen[inventory.KindODP.Key(id)] {
					return false
				}
			}
			want := min(len(idx.ONUOrder), DefaultMaxOnuNodes)
			for i, id := range idx.ONUOrder {
				if seen[inventory.KindONU.Key(id)] != (i < want) {
					return false
				}
			}
			return len(snap.Nodes) == len(idx.OLTOrder)+len(idx.ODPOrder)+want
		},
		gen.IntRange(0, 4), gen.IntRange(0, 8), gen.IntRange(0, 40), gen.Int64(),
	))

	properties.Property("edges join existing nodes on adjacent descending layers", prop.ForAll(
		func(nOlt, nOdp, nOnu int, seed int64) bool {
			_, snap := build(nOlt, nOdp, nOnu, seed)
			layers := map[string]int{}
			for _, n := range snap.Nodes {
				layers[n.Key] = n.Layer
			}
			keys := map[string]bool{}
			for _, e := range snap.Edges {
				src, okSrc := layers[e.Source]
				dst, okDst := layers[e.Target]
				if !okSrc || !okDst || dst != src+1 || keys[e.Key] {
					return false
				}
				keys[e.Key] = true
			}
			return true
		},
		gen.IntRange(0, 4), gen.IntRange(0, 8), gen.IntRange(0, 40), gen.Int64(),
	))

	properties.Property("resolved ODPs get exactly one animated trunk", prop.ForAll(
		func(nOlt, nOdp, nOnu int, seed int64) bool {
			idx, snap := build(nOlt, nOdp, nOnu, seed)
			incoming := map[string]int{}
			for _, e := range snap.Edges {
				if e.Animated != (e.Style.Class == ClassTrunk) {
					return false
				}
				if e.Animated {
					incoming[e.Target]++
				}
			}
			for _, id := range idx.ODPOrder {
				_, resolved := idx.ParentOf(id)
				count := incoming[inventory.KindODP.Key(id)]
				if resolved && count != 1 || !resolved && count != 0 {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 4), gen.IntRange(0, 8), gen.IntRange(0, 40), gen.Int64(),
	))

	properties.Property("drop edges carry the ONU status category", prop.ForAll(
		func(nOlt, nOdp, nOnu int, seed int64) bool {
			idx, snap := build(nOlt, nOdp, nOnu, seed)
			drops := map[string]graph.TopologyEdge{}
			for _, e := range snap.Edges {
				if e.Style.Class == ClassDrop {
					drops[e.Target] = e
				}
			}
			for _, n := range snap.Nodes {
				if n.Kind != inventory.KindONU {
					continue
				}
				onu := idx.ONUs[n.EntityID]
				e, hasEdge := drops[n.Key]
				_, parentExists := idx.ODPs[inventory.Deref(onu.OdpID, 0)]
				if hasEdge != (onu.OdpID != nil && parentExists) {
					return false
				}
				if hasEdge && e.Style.Category != classify.DeviceStatus(onu.Status).Category {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 4), gen.IntRange(0, 8), gen.IntRange(0, 40), gen.Int64(),
	))

	properties.Property("assembly is idempotent", prop.ForAll(
		func(nOlt, nOdp, nOnu int, seed int64) bool {
			_, first := build(nOlt, nOdp, nOnu, seed)
			_, second := build(nOlt, nOdp, nOnu, seed)
			return reflect.DeepEqual(first, second)
		},
		gen.IntRange(0, 4), gen.IntRange(0, 8), gen.IntRange(0, 40), gen.Int64(),
	))

	properties.TestingRun(t)
}
