// Package network derives the memory network: one node per processed memory
// placed on a sphere, and edges between memories that share an emotion,
// fragrance notes or a fragrance family.
package network

import (
	"strings"

	"scent-memory-network/internal/domain/memory"
	"scent-memory-network/pkg/validation"
)

// State tells the presentation layer what to show.
type State string

const (
	// StateEmpty means there is no processed memory at all.
	StateEmpty State = "empty"
	// StateNeedMore means there are too few processed memories to connect.
	StateNeedMore State = "need-more"
	// StateReady means the scene can be shown.
	StateReady State = "ready"
)

// MinConnectable is the number of processed memories a scene needs.
const MinConnectable = 2

// Node is a processed memory placed in the scene. Everything but the
// position is derived once from the record.
type Node struct {
	Index     int            `json:"index"`
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Emotion   string         `json:"emotion,omitempty"`
	Notes     []string       `json:"notes"`
	ScentName string         `json:"scent_name,omitempty"`
	Family    Family         `json:"family"`
	Color     string         `json:"color"`
	Position  Position       `json:"position"`
	Record    *memory.Record `json:"-"`

	foldedEmotion string
	foldedNotes   []string
}

// Edge connects two nodes. Source is always the lower index.
type Edge struct {
	Source   int            `json:"source"`
	Target   int            `json:"target"`
	SourceID string         `json:"source_id"`
	TargetID string         `json:"target_id"`
	Type     ConnectionType `json:"type"`
	Detail   string         `json:"detail"`
	Style    Style          `json:"style"`
}

// Key identifies the edge by its memory ids, independent of node order.
func (e Edge) Key() string {
	return EdgeKey(e.SourceID, e.TargetID)
}

// EdgeKey builds an order-independent key for a memory id pair.
func EdgeKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

// Graph is one disposable projection of a record list.
type Graph struct {
	State       State         `json:"state"`
	Counts      memory.Counts `json:"counts"`
	Nodes       []Node        `json:"nodes"`
	Edges       []Edge        `json:"edges"`
	Radius      float64       `json:"radius"`
	MaxDistance float64       `json:"max_distance"`
}

// NodeByID finds a node by memory id.
func (g *Graph) NodeByID(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// EdgeByKey finds an edge by its memory id pair key.
func (g *Graph) EdgeByKey(key string) (*Edge, bool) {
	for i := range g.Edges {
		if g.Edges[i].Key() == key {
			return &g.Edges[i], true
		}
	}
	return nil, false
}

// Renderable reports whether the scene should be initialised at all.
func (g *Graph) Renderable() bool {
	return g.State == StateReady
}

// BuilderConfig parameterises graph construction.
type BuilderConfig struct {
	NodeCap             int
	Radius              float64
	MaxDistanceFraction float64
}

// DefaultBuilderConfig returns the standard configuration
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		NodeCap:             50,
		Radius:              6,
		MaxDistanceFraction: 0.8,
	}
}

// MaxDistance is the edge cutoff for this configuration.
func (c BuilderConfig) MaxDistance() float64 {
	return c.MaxDistanceFraction * 2 * c.Radius
}

// Builder turns record lists into graphs.
type Builder struct {
	config   BuilderConfig
	families *FamilyRegistry
}

// NewBuilder creates a builder. Zero config fields take their defaults and a
// nil registry uses the built-in family table.
func NewBuilder(config BuilderConfig, families *FamilyRegistry) *Builder {
	defaults := DefaultBuilderConfig()
	if config.NodeCap <= 0 {
		config.NodeCap = defaults.NodeCap
	}
	if config.Radius <= 0 {
		config.Radius = defaults.Radius
	}
	if config.MaxDistanceFraction <= 0 {
		config.MaxDistanceFraction = defaults.MaxDistanceFraction
	}
	if families == nil {
		families = NewFamilyRegistry(nil)
	}
	return &Builder{config: config, families: families}
}

// Config returns the effective configuration.
func (b *Builder) Config() BuilderConfig {
	return b.config
}

// Families returns the registry the builder classifies with.
func (b *Builder) Families() *FamilyRegistry {
	return b.families
}

// Build filters to processed records, keeps the first NodeCap of them in the
// supplied order, places them and infers edges. Records are not modified.
func (b *Builder) Build(records []memory.Record) *Graph {
	g := &Graph{
		Counts:      memory.Count(records),
		Radius:      b.config.Radius,
		MaxDistance: b.config.MaxDistance(),
		Nodes:       []Node{},
		Edges:       []Edge{},
	}

	selected := make([]*memory.Record, 0, min(g.Counts.Processed, b.config.NodeCap))
	for i := range records {
		if len(selected) == b.config.NodeCap {
			break
		}
		if records[i].Processed {
			selected = append(selected, &records[i])
		}
	}

	switch {
	case len(selected) == 0:
		g.State = StateEmpty
		return g
	case len(selected) < MinConnectable:
		g.State = StateNeedMore
	default:
		g.State = StateReady
	}

	table := b.families.Table()
	positions := LayoutAll(len(selected), b.config.Radius)
	g.Nodes = make([]Node, len(selected))
	for i, rec := range selected {
		g.Nodes[i] = newNode(i, rec, positions[i], table)
	}

	g.Edges = InferEdges(g.Nodes, InferenceConfig{MaxDistance: g.MaxDistance})
	return g
}

func newNode(index int, rec *memory.Record, pos Position, table *FamilyTable) Node {
	n := Node{
		Index:    index,
		ID:       rec.ID,
		Title:    rec.Title,
		Emotion:  rec.EffectiveEmotion(),
		Notes:    []string{},
		Color:    DefaultNodeColor,
		Family:   FamilyDefault,
		Position: pos,
		Record:   rec,
	}

	explicitFamily := ""
	if scent, ok := rec.PrimaryScent(); ok {
		n.Notes = scent.Notes()
		n.ScentName = strings.TrimSpace(scent.ScentName)
		explicitFamily = strings.TrimSpace(scent.ScentFamily)
		if c := strings.TrimSpace(scent.Color); validation.IsHexColor(c) {
			n.Color = c
		}
	}

	n.foldedEmotion = fold(n.Emotion)
	n.foldedNotes = foldAll(n.Notes)
	n.Family = table.Classify(explicitFamily, n.foldedNotes)
	return n
}
