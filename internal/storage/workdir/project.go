package workdir

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"pontopology/internal/classify"
	"pontopology/internal/graph"
)

// Project is the inventory history persisted in project/project.json.
type Project struct {
	UpdatedAt time.Time     `json:"updatedAt"`
	Stats     ProjectStats  `json:"stats"`
	Nodes     []ProjectNode `json:"nodes"`
	Edges     []ProjectEdge `json:"edges"`
}

type ProjectStats struct {
	Nodes     int `json:"nodes"`
	Edges     int `json:"edges"`
	Snapshots int `json:"snapshots"`
}

type ProjectNode struct {
	Key          string `json:"key"`
	Kind         string `json:"kind"`
	Label        string `json:"label"`
	LastCategory string `json:"lastCategory"`
	// Faults counts snapshots in which the node was classified negative.
	Faults    int       `json:"faults,omitempty"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
	SeenCount int       `json:"seenCount"`
}

type ProjectEdge struct {
	Key       string    `json:"key"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Origin    string    `json:"origin"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
	SeenCount int       `json:"seenCount"`
}

func (m *Manager) projectFilePath() string {
	return filepath.Join(m.path, projectDir, "project.json")
}

func (m *Manager) LoadProject() (Project, error) {
	var p Project
	b, err := os.ReadFile(m.projectFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return Project{}, nil
		}
		return Project{}, err
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return Project{}, err
	}
	return p, nil
}

func (m *Manager) SaveProject(p Project) error {
	if err := ensureDir(filepath.Dir(m.projectFilePath())); err != nil {
		return err
	}
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.projectFilePath(), b, 0o600)
}

// MergeProject folds one snapshot into the history: new nodes and edges are
// appended, known ones get lastSeen and seenCount bumped. Entries absent
// from snap are kept untouched.
func (m *Manager) MergeProject(snap graph.Snapshot, now time.Time) error {
	p, err := m.LoadProject()
	if err != nil {
		return err
	}

	nodeIdx := make(map[string]int, len(p.Nodes))
	for i, n := range p.Nodes {
		nodeIdx[n.Key] = i
	}
	for _, n := range snap.Nodes {
		faults := 0
		if n.Style.Category == classify.Negative {
			faults = 1
		}
		i, ok := nodeIdx[n.Key]
		if !ok {
			p.Nodes = append(p.Nodes, ProjectNode{
				Key:          n.Key,
				Kind:         string(n.Kind),
				Label:        n.Label,
				LastCategory: string(n.Style.Category),
				Faults:       faults,
				FirstSeen:    now,
				LastSeen:     now,
				SeenCount:    1,
			})
			nodeIdx[n.Key] = len(p.Nodes) - 1
			continue
		}
		ex := p.Nodes[i]
		if n.Label != "" {
			ex.Label = n.Label
		}
		ex.LastCategory = string(n.Style.Category)
		ex.Faults += faults
		ex.LastSeen = now
		ex.SeenCount++
		p.Nodes[i] = ex
	}

	edgeIdx := make(map[string]int, len(p.Edges))
	for i, e := range p.Edges {
		edgeIdx[e.Key] = i
	}
	for _, e := range snap.Edges {
		i, ok := edgeIdx[e.Key]
		if !ok {
			p.Edges = append(p.Edges, ProjectEdge{
				Key:       e.Key,
				Source:    e.Source,
				Target:    e.Target,
				Origin:    string(e.Origin),
				FirstSeen: now,
				LastSeen:  now,
				SeenCount: 1,
			})
			edgeIdx[e.Key] = len(p.Edges) - 1
			continue
		}
		ex := p.Edges[i]
		ex.Origin = string(e.Origin)
		ex.LastSeen = now
		ex.SeenCount++
		p.Edges[i] = ex
	}

	p.UpdatedAt = now
	p.Stats.Nodes = len(p.Nodes)
	p.Stats.Edges = len(p.Edges)
	p.Stats.Snapshots++
	return m.SaveProject(p)
}
