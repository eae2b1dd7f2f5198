package main

import (
	"pontopology/internal/graph"
	"pontopology/internal/topology"
)

// Canvas palette on top of the category colors of package classify.
const (
	trunkColor   = "#1890ff"
	nodeText     = "white"
	nodeBorder   = "2px solid #fff"
	nodePadding  = 10
	nodeRadius   = 8
	onuFontSize  = 10
	trunkWidth   = 2
	defaultWidth = 1
	edgeType     = "smoothstep"
)

// convertToPayload converts a snapshot into the canvas payload.
func convertToPayload(s graph.Snapshot) TopologyPayload {
	p := TopologyPayload{
		Generation: s.Generation,
		BuiltAt:    s.BuiltAt,
		Nodes:      make([]TopologyNode, 0, len(s.Nodes)),
		Edges:      make([]TopologyEdge, 0, len(s.Edges)),
		Report:     s.Report,
	}
	for _, n := range s.Nodes {
		p.Nodes = append(p.Nodes, convertNode(n))
	}
	for _, e := range s.Edges {
		p.Edges = append(p.Edges, convertEdge(e))
	}
	return p
}

func convertNode(n graph.TopologyNode) TopologyNode {
	style := NodeStyle{
		Background:   n.Style.Category.Color(),
		Color:        nodeText,
		Border:       nodeBorder,
		Padding:      nodePadding,
		BorderRadius: nodeRadius,
	}
	switch n.Style.Class {
	case topology.ClassODP:
		// ODPs are passive and always drawn in the trunk color
		style.Background = trunkColor
	case topology.ClassONU:
		style.FontSize = onuFontSize
	}

	label := n.DisplayLabel()
	data := make(map[string]any, len(n.Data)+1)
	for k, v := range n.Data {
		data[k] = v
	}
	data["label"] = label

	return TopologyNode{
		Id:       n.Key,
		Type:     nodeType(n.Layer),
		Label:    label,
		Kind:     coalesce(string(n.Kind), n.Style.Class),
		Layer:    n.Layer,
		Position: n.Position,
		Category: string(n.Style.Category),
		Style:    style,
		Data:     data,
	}
}

func nodeType(layer int) string {
	switch layer {
	case 0:
		return "input"
	case 2:
		return "output"
	default:
		return ""
	}
}

func convertEdge(e graph.TopologyEdge) TopologyEdge {
	style := EdgeStyle{Stroke: e.Style.Category.Color(), StrokeWidth: defaultWidth}
	if e.Style.Class == topology.ClassTrunk {
		style = EdgeStyle{Stroke: trunkColor, StrokeWidth: trunkWidth}
	}
	out := TopologyEdge{
		Id:       e.Key,
		Source:   e.Source,
		Target:   e.Target,
		Type:     edgeType,
		Class:    coalesce(e.Style.Class, "link"),
		Animated: e.Animated,
		Category: string(e.Style.Category),
		Style:    style,
	}
	if g := e.Geometry; g != nil {
		out.Data = map[string]any{
			"origin":  string(e.Origin),
			"routeId": g.RouteID,
		}
		if g.CableType != "" {
			out.Data["cableType"] = g.CableType
		}
		if g.FiberCount > 0 {
			out.Data["fiberCount"] = g.FiberCount
		}
		if g.LengthMeters > 0 {
			out.Data["lengthMeters"] = g.LengthMeters
		}
		if len(g.Path) > 0 {
			out.Data["path"] = g.Path
		}
	}
	return out
}

func coalesce[T ~string](v T, def T) T {
	if v == "" {
		return def
	}
	return v
}
