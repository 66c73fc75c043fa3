// Package view is the presentation shell around the memory network: the
// placeholder states, the legend and tooltip, and the Session that owns one
// mounted scene.
package view

import (
	"fmt"
	"strings"

	"scent-memory-network/internal/domain/interaction"
	"scent-memory-network/internal/domain/memory"
	"scent-memory-network/internal/domain/network"
)

// State is what the shell shows.
type State string

const (
	StateEmpty    State = "empty"
	StateNeedMore State = "need-more"
	StateReady    State = "ready"
	// StateError means the rendering surface could not be acquired.
	StateError State = "error"
)

// View is the shell content around the scene.
type View struct {
	State    State         `json:"state"`
	Title    string        `json:"title"`
	Subtitle string        `json:"subtitle,omitempty"`
	Message  string        `json:"message,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Counts   memory.Counts `json:"counts"`
	Legend   *Legend       `json:"legend,omitempty"`
}

// Legend explains edge styles and the family palette.
type Legend struct {
	Title         string             `json:"title"`
	Connections   []ConnectionLegend `json:"connections"`
	FamiliesTitle string             `json:"families_title"`
	Families      []FamilyLegend     `json:"families"`
}

type ConnectionLegend struct {
	Type    network.ConnectionType `json:"type"`
	Label   string                 `json:"label"`
	Color   string                 `json:"color"`
	Opacity float64                `json:"opacity"`
}

type FamilyLegend struct {
	Family network.Family `json:"family"`
	Color  string         `json:"color"`
}

// Shell derives the view for a graph. The legend is only attached to a
// renderable graph and only when visible.
func Shell(theme *Theme, g *network.Graph, families *network.FamilyTable, legendVisible bool) View {
	v := View{
		Title:  theme.Title,
		Counts: g.Counts,
	}

	switch g.State {
	case network.StateEmpty:
		v.State = StateEmpty
		v.Message = theme.Placeholders.Empty
	case network.StateNeedMore:
		v.State = StateNeedMore
		v.Message = theme.Placeholders.NeedMore
		v.Detail = fmt.Sprintf(theme.Placeholders.Counts, g.Counts.Processed, g.Counts.Pending)
	default:
		v.State = StateReady
		v.Subtitle = theme.Subtitle
		if legendVisible {
			legend := BuildLegend(theme, families)
			v.Legend = &legend
		}
	}
	return v
}

// ErrorView reports a surface failure verbatim.
func ErrorView(theme *Theme, counts memory.Counts, err error) View {
	return View{
		State:   StateError,
		Title:   theme.Title,
		Message: err.Error(),
		Counts:  counts,
	}
}

// BuildLegend lists connection styles in priority order followed by the
// family palette in table order.
func BuildLegend(theme *Theme, families *network.FamilyTable) Legend {
	l := Legend{
		Title:         theme.Legend.Title,
		FamiliesTitle: theme.Legend.FamiliesTitle,
		Connections:   make([]ConnectionLegend, 0, len(network.ConnectionTypes)),
	}
	for _, ct := range network.ConnectionTypes {
		label := theme.Legend.Connections[ct.String()]
		if label == "" {
			label = ct.Label()
		}
		style := ct.Style()
		l.Connections = append(l.Connections, ConnectionLegend{
			Type:    ct,
			Label:   label,
			Color:   style.Color,
			Opacity: style.Opacity,
		})
	}

	if families != nil {
		for _, f := range families.Families {
			color := f.Color
			if color == "" {
				color = network.DefaultNodeColor
			}
			l.Families = append(l.Families, FamilyLegend{Family: f.Name, Color: color})
		}
	}
	return l
}

// Tooltip renders hover info as display lines, skipping empty fields.
func Tooltip(info *interaction.HoverInfo) []string {
	if info == nil {
		return nil
	}
	lines := []string{info.Title}
	if info.ScentName != "" {
		lines = append(lines, info.ScentName)
	}
	if info.Emotion != "" {
		lines = append(lines, "Emotion: "+info.Emotion)
	}
	if len(info.Notes) > 0 {
		lines = append(lines, "Notes: "+strings.Join(info.Notes, ", "))
	}
	if info.Family != "" && info.Family != network.FamilyDefault.String() {
		lines = append(lines, "Family: "+info.Family)
	}
	return lines
}
