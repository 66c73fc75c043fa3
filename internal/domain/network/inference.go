package network

import "strings"

// maxSharedNotes bounds the notes listed in an edge detail.
const maxSharedNotes = 2

// InferenceConfig holds edge inference parameters.
type InferenceConfig struct {
	// MaxDistance is the largest node distance that may still carry an edge.
	// Pairs exactly at the cutoff are kept.
	MaxDistance float64
}

// InferEdges evaluates every unordered node pair once. Pairs beyond the
// distance cutoff never connect. Otherwise the first matching rule among
// emotion, notes and family decides the edge.
func InferEdges(nodes []Node, config InferenceConfig) []Edge {
	edges := []Edge{}

	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			a, b := &nodes[i], &nodes[j]
			if a.Position.DistanceTo(b.Position) > config.MaxDistance {
				continue
			}

			connection, detail, ok := connect(a, b)
			if !ok {
				continue
			}

			edges = append(edges, Edge{
				Source:   a.Index,
				Target:   b.Index,
				SourceID: a.ID,
				TargetID: b.ID,
				Type:     connection,
				Detail:   detail,
				Style:    connection.Style(),
			})
		}
	}

	return edges
}

// connect applies the rules in priority order.
func connect(a, b *Node) (ConnectionType, string, bool) {
	if a.foldedEmotion != "" && a.foldedEmotion == b.foldedEmotion {
		return ConnectionEmotion, a.Emotion, true
	}

	if len(a.foldedNotes) > 0 && len(b.foldedNotes) > 0 {
		if shared := sharedNotes(a.Notes, a.foldedNotes, b.foldedNotes, maxSharedNotes); len(shared) > 0 {
			return ConnectionNotes, strings.Join(shared, ", "), true
		}
	}

	if !a.Family.IsDefault() && a.Family == b.Family {
		return ConnectionFamily, a.Family.String(), true
	}

	return "", "", false
}
