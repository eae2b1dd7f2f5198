// Package topology turns an entity index into a layered node/edge snapshot.
package topology

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"pontopology/internal/classify"
	"pontopology/internal/graph"
	"pontopology/internal/index"
	"pontopology/internal/inventory"
)

const (
	ClassOLT   = "olt"
	ClassODP   = "odp"
	ClassONU   = "onu"
	ClassTrunk = "trunk"
	ClassDrop  = "drop"
	ClassCable = "cable"
)

const (
	MissUnknownOLT       = "feeding OLT not found"
	MissUnresolvedOLT    = "feeding OLT unresolved"
	MissUnknownODP       = "parent ODP not found"
	MissRouteEndpoint    = "cable route endpoint not in snapshot"
	MissRouteNotAdjacent = "cable route does not join adjacent tiers"
)

type assembler struct {
	idx   *index.Index
	opts  Options
	log   *zap.Logger
	nodes map[string]struct{}
	edges map[string]int
	snap  graph.Snapshot
}

// Assemble builds the snapshot for idx. It is a pure function of the index
// and options: node and edge order follow input order, and Generation,
// BuiltAt and Fingerprint are left for the caller to stamp.
func Assemble(idx *index.Index, opts Options) graph.Snapshot {
	a := &assembler{
		idx:   idx,
		opts:  opts,
		log:   opts.logger().Named("assembler"),
		nodes: map[string]struct{}{},
		edges: map[string]int{},
		snap: graph.Snapshot{
			Nodes: []graph.TopologyNode{},
			Edges: []graph.TopologyEdge{},
			Report: graph.Report{
				Skipped: []graph.SkippedRecord{},
				Misses:  []graph.RelationMiss{},
			},
		},
	}
	if idx == nil {
		return a.snap
	}
	for _, r := range idx.Rejected {
		a.skip(r)
	}
	a.olts()
	a.odps()
	a.onus()
	a.cableRoutes()
	return a.snap
}

func (a *assembler) skip(r index.Rejection) {
	a.snap.Report.Skipped = append(a.snap.Report.Skipped, graph.SkippedRecord{
		Kind: r.Kind, Index: r.Index, ID: r.ID, Reason: r.Reason,
	})
	a.log.Warn("skipping record",
		zap.String("kind", r.Kind),
		zap.Int("index", r.Index),
		zap.Int64("id", r.ID),
		zap.String("reason", r.Reason))
}

func (a *assembler) miss(child, parent, reason string) {
	a.snap.Report.Misses = append(a.snap.Report.Misses, graph.RelationMiss{
		ChildKey: child, ParentKey: parent, Reason: reason,
	})
	a.log.Debug("relation miss",
		zap.String("child", child),
		zap.String("parent", parent),
		zap.String("reason", reason))
}

func (a *assembler) position(layer, i int) graph.Position {
	return graph.Position{
		X: float64(i) * a.opts.LayerSpacing[layer],
		Y: a.opts.Baselines[layer],
	}
}

func (a *assembler) addNode(n graph.TopologyNode) {
	a.nodes[n.Key] = struct{}{}
	a.snap.Nodes = append(a.snap.Nodes, n)
}

// addEdge appends e unless an edge with the same key exists or an endpoint
// is missing. It reports whether e was added.
func (a *assembler) addEdge(e graph.TopologyEdge) bool {
	if _, dup := a.edges[e.Key]; dup {
		return false
	}
	if !a.hasNode(e.Source) || !a.hasNode(e.Target) {
		return false
	}
	a.edges[e.Key] = len(a.snap.Edges)
	a.snap.Edges = append(a.snap.Edges, e)
	return true
}

func (a *assembler) hasNode(key string) bool {
	_, ok := a.nodes[key]
	return ok
}

func (a *assembler) olts() {
	for i, id := range a.idx.OLTOrder {
		olt := a.idx.OLTs[id]
		node := graph.TopologyNode{
			Key:            inventory.KindOLT.Key(id),
			Kind:           inventory.KindOLT,
			EntityID:       id,
			Label:          olt.Name,
			SecondaryLabel: orPlaceholder(olt.IPAddress, a.opts.Placeholder),
			Layer:          0,
			Position:       a.position(0, i),
			Style:          graph.StyleOf(classify.DeviceStatus(olt.Status), ClassOLT),
			Data: map[string]string{
				"status": olt.Status,
			},
		}
		if olt.IPAddress != "" {
			node.Data["ip"] = olt.IPAddress
		}
		if olt.Model != nil {
			node.Data["model"] = *olt.Model
		}
		if olt.Location != nil {
			node.Data["location"] = *olt.Location
		}
		a.addNode(node)
	}
}

func (a *assembler) odps() {
	for i, id := range a.idx.ODPOrder {
		odp := a.idx.ODPs[id]
		key := inventory.KindODP.Key(id)
		status := classify.OdpStatus(odp.Status)
		a.addNode(graph.TopologyNode{
			Key:            key,
			Kind:           inventory.KindODP,
			EntityID:       id,
			Label:          odp.Name,
			SecondaryLabel: orPlaceholder(odp.SplitterRatio, a.opts.Placeholder),
			Layer:          1,
			Position:       a.position(1, i),
			Style:          graph.StyleOf(status, ClassODP),
			Data: map[string]string{
				"status":      odp.Status,
				"ports":       strconv.Itoa(odp.UsedPorts) + "/" + strconv.Itoa(odp.TotalPorts),
				"utilization": strconv.FormatFloat(classify.PortUtilization(odp.UsedPorts, odp.TotalPorts), 'f', 2, 64),
			},
		})

		oltID, ok := a.idx.ParentOf(id)
		if !ok {
			switch {
			case odp.FeedingOltID != nil:
				a.miss(key, inventory.KindOLT.Key(*odp.FeedingOltID), MissUnknownOLT)
			case odp.PortID != nil:
				a.miss(key, "", MissUnresolvedOLT)
			}
			continue
		}
		src := inventory.KindOLT.Key(oltID)
		a.addEdge(graph.TopologyEdge{
			Key:      graph.EdgeKey(src, key),
			Source:   src,
			Target:   key,
			Style:    graph.StyleOf(status, ClassTrunk),
			Animated: true,
			Origin:   graph.OriginRelation,
		})
	}
}

func (a *assembler) onus() {
	limit := a.opts.MaxOnuNodes
	if limit < 0 {
		limit = 0
	}
	included := a.idx.ONUOrder
	if len(included) > limit {
		a.snap.Report.Truncated = len(included) - limit
		included = included[:limit]
	}
	for i, id := range included {
		onu := a.idx.ONUs[id]
		key := inventory.KindONU.Key(id)
		status := classify.DeviceStatus(onu.Status)
		tier := classify.SignalPower(onu.RxPower)
		node := graph.TopologyNode{
			Key:            key,
			Kind:           inventory.KindONU,
			EntityID:       id,
			Label:          onu.Serial,
			SecondaryLabel: orPlaceholder(inventory.Deref(onu.CustomerName, ""), a.opts.CustomerPlaceholder),
			Layer:          2,
			Position:       a.position(2, i),
			Style:          graph.StyleOf(status, ClassONU),
			Data: map[string]string{
				"status":     onu.Status,
				"signalTier": string(tier),
			},
		}
		if onu.RxPower != nil {
			node.Data["rxPower"] = strconv.FormatFloat(*onu.RxPower, 'f', -1, 64)
		}
		if onu.TxPower != nil {
			node.Data["txPower"] = strconv.FormatFloat(*onu.TxPower, 'f', -1, 64)
		}
		if onu.ServicePlan != nil {
			node.Data["servicePlan"] = *onu.ServicePlan
		}
		a.addNode(node)

		if onu.OdpID == nil {
			continue
		}
		parent := inventory.KindODP.Key(*onu.OdpID)
		if !a.hasNode(parent) {
			a.miss(key, parent, MissUnknownODP)
			continue
		}
		a.addEdge(graph.TopologyEdge{
			Key:    graph.EdgeKey(parent, key),
			Source: parent,
			Target: key,
			Style:  graph.StyleOf(status, ClassDrop),
			Origin: graph.OriginRelation,
		})
	}
}

// cableRoutes de-duplicates explicit routes against relation edges by node
// pair. A route matching an existing edge only contributes geometry.
func (a *assembler) cableRoutes() {
	for _, id := range a.idx.RouteOrder {
		route := a.idx.Routes[id]
		src, dst, ok := orient(route.Source, route.Destination)
		if !ok {
			if a.opts.MaterializeCableRoutes {
				a.miss(route.Destination.Key(), route.Source.Key(), MissRouteNotAdjacent)
			}
			continue
		}
		key := graph.EdgeKey(src.Key(), dst.Key())
		if pos, exists := a.edges[key]; exists {
			if a.snap.Edges[pos].Geometry == nil {
				a.snap.Edges[pos].Geometry = geometryOf(route)
			}
			continue
		}
		if !a.opts.MaterializeCableRoutes {
			continue
		}
		added := a.addEdge(graph.TopologyEdge{
			Key:      key,
			Source:   src.Key(),
			Target:   dst.Key(),
			Style:    graph.StyleOf(classify.CableStatus(route.Status), ClassCable),
			Origin:   graph.OriginCableRoute,
			Geometry: geometryOf(route),
		})
		if !added {
			a.miss(dst.Key(), src.Key(), MissRouteEndpoint)
		}
	}
}

// orient returns the endpoints ordered parent tier first. Routes must join
// adjacent tiers.
func orient(x, y inventory.EntityRef) (inventory.EntityRef, inventory.EntityRef, bool) {
	lx, okx := x.Kind.Layer()
	ly, oky := y.Kind.Layer()
	if !okx || !oky {
		return x, y, false
	}
	switch ly - lx {
	case 1:
		return x, y, true
	case -1:
		return y, x, true
	default:
		return x, y, false
	}
}

func geometryOf(r inventory.CableRouteRecord) *graph.EdgeGeometry {
	return &graph.EdgeGeometry{
		RouteID:      r.ID,
		Path:         r.Path,
		CableType:    inventory.Deref(r.CableType, ""),
		FiberCount:   inventory.Deref(r.FiberCount, 0),
		LengthMeters: inventory.Deref(r.LengthMeters, 0),
	}
}

func orPlaceholder(v, placeholder string) string {
	if strings.TrimSpace(v) == "" {
		return placeholder
	}
	return v
}
