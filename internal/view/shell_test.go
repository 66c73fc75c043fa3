package view

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scent-memory-network/internal/domain/interaction"
	"scent-memory-network/internal/domain/memory"
	"scent-memory-network/internal/domain/network"
)

func TestLoadTheme_Once(t *testing.T) {
	a, err := LoadTheme()
	require.NoError(t, err)
	b, err := LoadTheme()
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, "Memory Network", a.Title)
	assert.Equal(t, "Memory processed!", a.Toasts.MemoryProcessed)
}

func TestShell_States(t *testing.T) {
	theme := DefaultTheme()
	builder := network.NewBuilder(network.DefaultBuilderConfig(), nil)
	table := builder.Families().Table()

	empty := Shell(theme, builder.Build(nil), table, true)
	assert.Equal(t, StateEmpty, empty.State)
	assert.Equal(t, "No memories yet", empty.Message)
	assert.Nil(t, empty.Legend)

	pending := []memory.Record{
		{ID: "a", Processed: true},
		{ID: "b"},
		{ID: "c"},
	}
	needMore := Shell(theme, builder.Build(pending), table, true)
	assert.Equal(t, StateNeedMore, needMore.State)
	assert.Equal(t, "1 processed, 2 still processing", needMore.Detail)
	assert.Nil(t, needMore.Legend)

	ready := Shell(theme, builder.Build([]memory.Record{{ID: "a", Processed: true}, {ID: "b", Processed: true}}), table, true)
	assert.Equal(t, StateReady, ready.State)
	require.NotNil(t, ready.Legend)
	assert.Equal(t, network.ConnectionEmotion, ready.Legend.Connections[0].Type)
	assert.Equal(t, "#E8B4B8", ready.Legend.Connections[0].Color)
	assert.Equal(t, "Shared notes", ready.Legend.Connections[1].Label)
	assert.Equal(t, network.FamilyFloral, ready.Legend.Families[0].Family)

	hidden := Shell(theme, builder.Build([]memory.Record{{ID: "a", Processed: true}, {ID: "b", Processed: true}}), table, false)
	assert.Nil(t, hidden.Legend)
}

func TestErrorView(t *testing.T) {
	v := ErrorView(DefaultTheme(), memory.Counts{Processed: 3}, errors.New("surface lost"))
	assert.Equal(t, StateError, v.State)
	assert.Equal(t, "surface lost", v.Message)
	assert.Equal(t, 3, v.Counts.Processed)
}

func TestTooltip(t *testing.T) {
	assert.Nil(t, Tooltip(nil))

	lines := Tooltip(&interaction.HoverInfo{
		Title:     "Grandma's garden",
		Emotion:   "Nostalgic",
		Notes:     []string{"Rose", "Lilac"},
		ScentName: "Jardin",
		Family:    "floral",
	})
	assert.Equal(t, []string{
		"Grandma's garden",
		"Jardin",
		"Emotion: Nostalgic",
		"Notes: Rose, Lilac",
		"Family: floral",
	}, lines)

	assert.Equal(t, []string{"Bare"}, Tooltip(&interaction.HoverInfo{Title: "Bare", Family: "default"}))
}
