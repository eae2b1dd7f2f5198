package main

import (
	"time"

	"pontopology/internal/graph"
	"pontopology/internal/snapshot"
)

// API response types: the render payload consumed by the topology canvas and
// the small envelopes around it.

type NodeStyle struct {
	Background   string `json:"background"`
	Color        string `json:"color"`
	Border       string `json:"border"`
	Padding      int    `json:"padding"`
	BorderRadius int    `json:"borderRadius"`
	FontSize     int    `json:"fontSize,omitempty"`
}

type EdgeStyle struct {
	Stroke      string `json:"stroke"`
	StrokeWidth int    `json:"strokeWidth"`
}

type TopologyNode struct {
	Id       string         `json:"id"`
	Type     string         `json:"type,omitempty"` // input/output for the outer tiers
	Label    string         `json:"label"`
	Kind     string         `json:"kind"`
	Layer    int            `json:"layer"`
	Position graph.Position `json:"position"`
	Category string         `json:"category"`
	Style    NodeStyle      `json:"style"`
	Data     map[string]any `json:"data,omitempty"`
}

type TopologyEdge struct {
	Id       string         `json:"id"`
	Source   string         `json:"source"`
	Target   string         `json:"target"`
	Type     string         `json:"type"`
	Class    string         `json:"class"` // trunk/drop/cable
	Animated bool           `json:"animated"`
	Category string         `json:"category"`
	Style    EdgeStyle      `json:"style"`
	Data     map[string]any `json:"data,omitempty"` // cable geometry when a route backs the edge
}

type TopologyPayload struct {
	Generation string         `json:"generation"`
	BuiltAt    time.Time      `json:"builtAt"`
	Nodes      []TopologyNode `json:"nodes"`
	Edges      []TopologyEdge `json:"edges"`
	Report     graph.Report   `json:"report"`
}

type RefreshResponse struct {
	Status     string `json:"status"` // built or cached
	Generation string `json:"generation"`
	Nodes      int    `json:"nodes"`
	Edges      int    `json:"edges"`
	Skipped    int    `json:"skipped"`
	Misses     int    `json:"misses"`
	Truncated  int    `json:"truncatedOnus"`
}

// ErrorResponse follows the {"detail": ...} shape of the management API.
type ErrorResponse struct {
	Detail     string `json:"detail"`
	Collection string `json:"collection,omitempty"`
}

type WorkdirRequest struct {
	Path string `json:"path"`
}

type WorkdirResponse struct {
	Path string `json:"path"`
}

type HealthResponse struct {
	Status     string         `json:"status"`
	Generation string         `json:"generation,omitempty"`
	BuiltAt    *time.Time     `json:"builtAt,omitempty"`
	Cache      snapshot.Stats `json:"cache"`
}

// Push message types sent over /api/topology/ws.
const (
	msgTopology = "topology"
)

type PushMessage struct {
	Type     string          `json:"type"`
	Topology TopologyPayload `json:"topology"`
}
