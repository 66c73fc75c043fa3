// Package dto holds the response shapes of the network API.
package dto

import (
	"scent-memory-network/internal/domain/memory"
	"scent-memory-network/internal/domain/network"
	"scent-memory-network/internal/view"
)

// NodeView is a node as served to clients.
type NodeView struct {
	Index     int              `json:"index"`
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Emotion   string           `json:"emotion,omitempty"`
	Notes     []string         `json:"notes"`
	ScentName string           `json:"scent_name,omitempty"`
	Family    network.Family   `json:"family"`
	Color     string           `json:"color"`
	Position  network.Position `json:"position"`
}

// EdgeView is an edge with its rendering style.
type EdgeView struct {
	Source   int                    `json:"source"`
	Target   int                    `json:"target"`
	SourceID string                 `json:"source_id"`
	TargetID string                 `json:"target_id"`
	Type     network.ConnectionType `json:"type"`
	Detail   string                 `json:"detail"`
	Color    string                 `json:"color"`
	Opacity  float64                `json:"opacity"`
}

// GraphStats summarises a network.
type GraphStats struct {
	NodeCount   int            `json:"node_count"`
	EdgeCount   int            `json:"edge_count"`
	EdgesByType map[string]int `json:"edges_by_type"`
	Radius      float64        `json:"radius"`
	MaxDistance float64        `json:"max_distance"`
}

// NetworkResult is the response of GET /network and POST /network/inspect.
type NetworkResult struct {
	State       network.State      `json:"state"`
	View        view.View          `json:"view"`
	Counts      memory.Counts      `json:"counts"`
	Nodes       []NodeView         `json:"nodes"`
	Edges       []EdgeView         `json:"edges"`
	Stats       GraphStats         `json:"stats"`
	Fingerprint string             `json:"fingerprint,omitempty"`
	Rejected    []memory.Rejection `json:"rejected,omitempty"`
}

// FamiliesResult is the active family keyword table.
type FamiliesResult struct {
	Families []network.FamilyEntry `json:"families"`
}

// ToNetworkResult converts a graph. Nodes and edges are only listed for a
// renderable graph.
func ToNetworkResult(g *network.Graph, v view.View) *NetworkResult {
	result := &NetworkResult{
		State:  g.State,
		View:   v,
		Counts: g.Counts,
		Nodes:  []NodeView{},
		Edges:  []EdgeView{},
		Stats: GraphStats{
			EdgesByType: EdgesByType(g.Edges),
			Radius:      g.Radius,
			MaxDistance: g.MaxDistance,
		},
	}
	if !g.Renderable() {
		return result
	}

	result.Nodes = make([]NodeView, len(g.Nodes))
	for i, n := range g.Nodes {
		result.Nodes[i] = NodeView{
			Index:     n.Index,
			ID:        n.ID,
			Title:     n.Title,
			Emotion:   n.Emotion,
			Notes:     n.Notes,
			ScentName: n.ScentName,
			Family:    n.Family,
			Color:     n.Color,
			Position:  n.Position,
		}
	}

	result.Edges = make([]EdgeView, len(g.Edges))
	for i, e := range g.Edges {
		result.Edges[i] = EdgeView{
			Source:   e.Source,
			Target:   e.Target,
			SourceID: e.SourceID,
			TargetID: e.TargetID,
			Type:     e.Type,
			Detail:   e.Detail,
			Color:    e.Style.Color,
			Opacity:  e.Style.Opacity,
		}
	}

	result.Stats.NodeCount = len(result.Nodes)
	result.Stats.EdgeCount = len(result.Edges)
	return result
}

// EdgesByType counts edges per connection type.
func EdgesByType(edges []network.Edge) map[string]int {
	counts := make(map[string]int, len(network.ConnectionTypes))
	for _, e := range edges {
		counts[e.Type.String()]++
	}
	return counts
}

// ToFamiliesResult copies the table rows.
func ToFamiliesResult(t *network.FamilyTable) *FamiliesResult {
	return &FamiliesResult{Families: append([]network.FamilyEntry(nil), t.Families...)}
}
