package graph

// Output model of one topology assembly: layered nodes, relation/cable edges and
// a report of what the assembler skipped or could not resolve.

import (
	"time"

	"pontopology/internal/classify"
	"pontopology/internal/inventory"
)

type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Style is the renderer-independent classification of a node or edge.
type Style struct {
	Category classify.Category `json:"category" yaml:"category"`
	Weight   int               `json:"weight" yaml:"weight"`
	Class    string            `json:"class,omitempty" yaml:"class,omitempty"` // olt/odp/onu/trunk/drop/cable
}

func StyleOf(c classify.Classification, class string) Style {
	return Style{Category: c.Category, Weight: c.ColorWeight, Class: class}
}

type TopologyNode struct {
	Key            string               `json:"key" yaml:"key"` // "{kind}-{id}"
	Kind           inventory.EntityKind `json:"kind" yaml:"kind"`
	EntityID       int64                `json:"entityId" yaml:"entityId"`
	Label          string               `json:"label" yaml:"label"`
	SecondaryLabel string               `json:"secondaryLabel" yaml:"secondaryLabel"`
	Layer          int                  `json:"layer" yaml:"layer"`
	Position       Position             `json:"position" yaml:"position"`
	Style          Style                `json:"style" yaml:"style"`
	// Tabular hints (capacity, signal tier, power readings)
	Data map[string]string `json:"data,omitempty" yaml:"data,omitempty"`
}

// DisplayLabel joins the two label lines the way renderers print them.
func (n TopologyNode) DisplayLabel() string {
	return n.Label + "\n" + n.SecondaryLabel
}

type EdgeOrigin string

const (
	OriginRelation   EdgeOrigin = "relation"
	OriginCableRoute EdgeOrigin = "cable_route"
)

// EdgeGeometry carries the path hints of an explicit cable route.
type EdgeGeometry struct {
	RouteID      int64                `json:"routeId" yaml:"routeId"`
	Path         []inventory.GeoPoint `json:"path,omitempty" yaml:"path,omitempty"`
	CableType    string               `json:"cableType,omitempty" yaml:"cableType,omitempty"`
	FiberCount   int                  `json:"fiberCount,omitempty" yaml:"fiberCount,omitempty"`
	LengthMeters float64              `json:"lengthMeters,omitempty" yaml:"lengthMeters,omitempty"`
}

type TopologyEdge struct {
	Key      string        `json:"key" yaml:"key"` // "{source}-{target}"
	Source   string        `json:"source" yaml:"source"`
	Target   string        `json:"target" yaml:"target"`
	Style    Style         `json:"style" yaml:"style"`
	Animated bool          `json:"animated" yaml:"animated"`
	Origin   EdgeOrigin    `json:"origin" yaml:"origin"`
	Geometry *EdgeGeometry `json:"geometry,omitempty" yaml:"geometry,omitempty"`
}

func EdgeKey(source, target string) string { return source + "-" + target }

// SkippedRecord is a record the assembler could not place.
type SkippedRecord struct {
	Kind   string `json:"kind" yaml:"kind"` // olt/odp/onu/cable_route
	Index  int    `json:"index" yaml:"index"`
	ID     int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Reason string `json:"reason" yaml:"reason"`
}

// RelationMiss is a child emitted without its parent edge.
type RelationMiss struct {
	ChildKey  string `json:"childKey" yaml:"childKey"`
	ParentKey string `json:"parentKey,omitempty" yaml:"parentKey,omitempty"`
	Reason    string `json:"reason" yaml:"reason"`
}

type Report struct {
	Skipped   []SkippedRecord `json:"skipped" yaml:"skipped"`
	Misses    []RelationMiss  `json:"misses" yaml:"misses"`
	Truncated int             `json:"truncatedOnus" yaml:"truncatedOnus"`
}

type Snapshot struct {
	Generation  string         `json:"generation" yaml:"generation"`
	BuiltAt     time.Time      `json:"builtAt" yaml:"builtAt"`
	Fingerprint uint64         `json:"fingerprint" yaml:"fingerprint"`
	Nodes       []TopologyNode `json:"nodes" yaml:"nodes"`
	Edges       []TopologyEdge `json:"edges" yaml:"edges"`
	Report      Report         `json:"report" yaml:"report"`
}

// NodeByKey returns the node with the given key.
func (s Snapshot) NodeByKey(key string) (TopologyNode, bool) {
	for _, n := range s.Nodes {
		if n.Key == key {
			return n, true
		}
	}
	return TopologyNode{}, false
}
