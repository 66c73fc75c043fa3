package interaction

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scent-memory-network/internal/domain/memory"
	"scent-memory-network/internal/domain/network"
)

const (
	viewW = 800
	viewH = 600
)

// recorder captures callback invocations in order.
type recorder struct {
	hovers []*HoverInfo
	edges  []*string
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnHoverChange:     func(h *HoverInfo) { r.hovers = append(r.hovers, h) },
		OnEdgeHoverChange: func(s *string) { r.edges = append(r.edges, s) },
	}
}

func memories(n int, emotion func(i int) string) []memory.Record {
	out := make([]memory.Record, n)
	for i := range out {
		out[i] = memory.Record{
			ID:        fmt.Sprintf("m%02d", i),
			Title:     fmt.Sprintf("Memory %d", i),
			Processed: true,
			Emotion:   emotion(i),
			ExtractedScents: []memory.ScentRecord{{
				ScentName: fmt.Sprintf("Scent %d", i),
				TopNotes:  []string{fmt.Sprintf("note-%d", i)},
			}},
		}
	}
	return out
}

func distinctEmotions(i int) string { return fmt.Sprintf("emotion-%d", i) }

// faceCamera turns the scene so node i sits on the camera axis side of the
// sphere, directly facing the viewer.
func faceCamera(t *testing.T, c *Controller, i int) {
	t.Helper()
	p := c.Graph().Nodes[i].Position
	c.SetRotation(0, -math.Atan2(p.X, p.Z))
	w := c.WorldPosition(i)
	require.InDelta(t, 0, w.X, 1e-9)
	require.Greater(t, w.Z, 0.0)
}

func screenOf(t *testing.T, c *Controller, i int) (float64, float64) {
	t.Helper()
	x, y, ok := c.ScreenPosition(i)
	require.True(t, ok)
	return x, y
}

func TestController_HoverNodeFiresOnce(t *testing.T) {
	rec := &recorder{}
	c := NewController(DefaultConfig(), viewW, viewH, rec.callbacks())
	g := network.NewBuilder(network.DefaultBuilderConfig(), nil).Build(memories(10, distinctEmotions))
	c.SetGraph(g)
	require.Empty(t, rec.hovers)

	faceCamera(t, c, 3)
	x, y := screenOf(t, c, 3)

	c.PointerMove(x, y)
	c.PointerMove(x+0.5, y+0.5)

	require.Len(t, rec.hovers, 1)
	info := rec.hovers[0]
	require.NotNil(t, info)
	assert.Equal(t, "m03", info.ID)
	assert.Equal(t, "Memory 3", info.Title)
	assert.Equal(t, "emotion-3", info.Emotion)
	assert.Equal(t, []string{"note-3"}, info.Notes)
	assert.Equal(t, "Scent 3", info.ScentName)
	assert.Equal(t, "default", info.Family)
	assert.Equal(t, StateHovering, c.State())

	c.PointerMove(0, 0)
	require.Len(t, rec.hovers, 2)
	assert.Nil(t, rec.hovers[1])
	assert.Equal(t, StateIdleRotating, c.State())
	assert.Empty(t, rec.edges)
}

func TestController_HoverEdge(t *testing.T) {
	rec := &recorder{}
	c := NewController(DefaultConfig(), viewW, viewH, rec.callbacks())
	g := network.NewBuilder(network.BuilderConfig{MaxDistanceFraction: 1}, nil).
		Build(memories(2, func(int) string { return "Joyful" }))
	require.Len(t, g.Edges, 1)
	c.SetGraph(g)

	// The two nodes sit on the poles, so the edge runs through the centre.
	c.PointerMove(viewW/2, viewH/2)
	require.Len(t, rec.edges, 1)
	require.NotNil(t, rec.edges[0])
	assert.Equal(t, "Joyful", *rec.edges[0])
	assert.Empty(t, rec.hovers)
	assert.Equal(t, 0, c.Frame().HoveredEdge)

	// Moving onto a node replaces the edge hover.
	x, y := screenOf(t, c, 0)
	c.PointerMove(x, y)
	require.Len(t, rec.hovers, 1)
	assert.Equal(t, "m00", rec.hovers[0].ID)
	require.Len(t, rec.edges, 2)
	assert.Nil(t, rec.edges[1])

	c.PointerMove(0, 0)
	require.Len(t, rec.hovers, 2)
	assert.Nil(t, rec.hovers[1])
	assert.Len(t, rec.edges, 2)
}

func TestController_NodesWinOverEdges(t *testing.T) {
	c := NewController(DefaultConfig(), viewW, viewH, Callbacks{})
	g := network.NewBuilder(network.BuilderConfig{MaxDistanceFraction: 1}, nil).
		Build(memories(2, func(int) string { return "Joyful" }))
	c.SetGraph(g)

	// Tilt so node 0 lies in front of its own edge.
	c.SetRotation(math.Pi/4, 0)
	x, y := screenOf(t, c, 0)
	target := c.Pick(x, y)
	assert.Equal(t, 0, target.Node)
	assert.Equal(t, -1, target.Edge)
}

func TestController_DragRotatesAndClampsTilt(t *testing.T) {
	c := NewController(DefaultConfig(), viewW, viewH, Callbacks{})
	c.SetGraph(network.NewBuilder(network.DefaultBuilderConfig(), nil).Build(memories(5, distinctEmotions)))

	c.PointerDown(100, 100)
	assert.Equal(t, StateDragging, c.State())

	c.PointerMove(140, 120)
	rx, ry := c.Rotation()
	assert.InDelta(t, 20*0.005, rx, 1e-12)
	assert.InDelta(t, 40*0.005, ry, 1e-12)

	c.PointerMove(140, 100000)
	rx, _ = c.Rotation()
	assert.InDelta(t, math.Pi/4, rx, 1e-12)

	c.PointerMove(140, -100000)
	rx, _ = c.Rotation()
	assert.InDelta(t, -math.Pi/4, rx, 1e-12)

	c.PointerUp(0, 0)
	assert.Equal(t, StateIdleRotating, c.State())
}

func TestController_DragDoesNotPick(t *testing.T) {
	rec := &recorder{}
	c := NewController(DefaultConfig(), viewW, viewH, rec.callbacks())
	c.SetGraph(network.NewBuilder(network.DefaultBuilderConfig(), nil).Build(memories(10, distinctEmotions)))
	faceCamera(t, c, 3)
	x, y := screenOf(t, c, 3)

	// A zero-length drag over the node leaves the rotation alone.
	c.PointerDown(x, y)
	c.PointerMove(x, y)
	assert.Empty(t, rec.hovers)
	assert.Equal(t, StateDragging, c.State())

	// Release over the node: hover is re-evaluated where the pointer is.
	c.PointerUp(x, y)
	require.Len(t, rec.hovers, 1)
	assert.Equal(t, "m03", rec.hovers[0].ID)
}

func TestController_IdleRotation(t *testing.T) {
	c := NewController(DefaultConfig(), viewW, viewH, Callbacks{})
	c.SetGraph(network.NewBuilder(network.DefaultBuilderConfig(), nil).Build(memories(3, distinctEmotions)))

	for i := 1; i <= 10; i++ {
		c.Tick(time.Duration(i) * 16 * time.Millisecond)
	}
	_, ry := c.Rotation()
	assert.InDelta(t, 0.02, ry, 1e-12)

	c.PointerDown(10, 10)
	c.Tick(200 * time.Millisecond)
	_, ry2 := c.Rotation()
	assert.Equal(t, ry, ry2, "no idle rotation while dragging")

	c.PointerUp(10, 10)
	f := c.Tick(216 * time.Millisecond)
	assert.InDelta(t, 0.022, f.RotationY, 1e-12)
	assert.Equal(t, uint64(12), f.Seq)
}

func TestController_PulseAndHoverScale(t *testing.T) {
	c := NewController(DefaultConfig(), viewW, viewH, Callbacks{})
	c.SetGraph(network.NewBuilder(network.DefaultBuilderConfig(), nil).Build(memories(10, distinctEmotions)))
	faceCamera(t, c, 3)
	x, y := screenOf(t, c, 3)
	c.PointerMove(x, y)

	// Keep node 3 under the pointer: idle rotation is tiny for one tick.
	f := c.Tick(time.Second)

	pulse := func(i int) float64 { return 1 + 0.05*math.Sin(2*1+0.5*float64(i)) }
	assert.InDelta(t, 1.5*pulse(3), f.Scales[3], 1e-12)
	assert.InDelta(t, pulse(0), f.Scales[0], 1e-12)
	assert.InDelta(t, pulse(7), f.Scales[7], 1e-12)
	assert.NotEqual(t, f.Scales[0], f.Scales[1], "nodes pulse out of phase")
	assert.Equal(t, 3, f.HoveredNode)
}

func TestController_ResizeKeepsState(t *testing.T) {
	rec := &recorder{}
	c := NewController(DefaultConfig(), viewW, viewH, rec.callbacks())
	c.SetGraph(network.NewBuilder(network.DefaultBuilderConfig(), nil).Build(memories(10, distinctEmotions)))
	faceCamera(t, c, 3)
	x, y := screenOf(t, c, 3)
	c.PointerMove(x, y)
	rx, ry := c.Rotation()

	c.Resize(1024, 400)

	rx2, ry2 := c.Rotation()
	assert.Equal(t, rx, rx2)
	assert.Equal(t, ry, ry2)
	assert.Equal(t, StateHovering, c.State())
	assert.Equal(t, 1024, c.Camera().Width)
	assert.Len(t, rec.hovers, 1)

	// Picking uses the new projection.
	x, y = screenOf(t, c, 3)
	assert.Equal(t, 3, c.Pick(x, y).Node)
}

func TestController_RefreshKeepsRotationAndHover(t *testing.T) {
	rec := &recorder{}
	c := NewController(DefaultConfig(), viewW, viewH, rec.callbacks())
	builder := network.NewBuilder(network.DefaultBuilderConfig(), nil)
	c.SetGraph(builder.Build(memories(10, distinctEmotions)))
	faceCamera(t, c, 3)
	x, y := screenOf(t, c, 3)
	c.PointerMove(x, y)
	require.Len(t, rec.hovers, 1)
	rx, ry := c.Rotation()

	// Same records plus a newcomer: node m03 still exists.
	c.SetGraph(builder.Build(memories(11, distinctEmotions)))
	assert.Len(t, rec.hovers, 1, "unchanged hover target does not fire")
	assert.Equal(t, StateHovering, c.State())
	rx2, ry2 := c.Rotation()
	assert.Equal(t, rx, rx2)
	assert.Equal(t, ry, ry2)

	// m03 disappears.
	c.SetGraph(builder.Build(memories(3, distinctEmotions)))
	require.Len(t, rec.hovers, 2)
	assert.Nil(t, rec.hovers[1])
	assert.Equal(t, StateIdleRotating, c.State())
}

func TestController_NotRenderableGraphPicksNothing(t *testing.T) {
	rec := &recorder{}
	c := NewController(DefaultConfig(), viewW, viewH, rec.callbacks())
	g := network.NewBuilder(network.DefaultBuilderConfig(), nil).Build(memories(1, distinctEmotions))
	require.Equal(t, network.StateNeedMore, g.State)
	c.SetGraph(g)

	assert.Equal(t, Target{Node: -1, Edge: -1}, c.Pick(viewW/2, viewH/2))
	assert.Empty(t, c.Tick(time.Second).Scales)
	assert.Empty(t, rec.hovers)
}

func TestController_PointerLeave(t *testing.T) {
	rec := &recorder{}
	c := NewController(DefaultConfig(), viewW, viewH, rec.callbacks())
	c.SetGraph(network.NewBuilder(network.DefaultBuilderConfig(), nil).Build(memories(10, distinctEmotions)))
	faceCamera(t, c, 3)
	x, y := screenOf(t, c, 3)
	c.PointerMove(x, y)

	c.PointerLeave()
	require.Len(t, rec.hovers, 2)
	assert.Nil(t, rec.hovers[1])
}

func TestWrapAngle(t *testing.T) {
	assert.InDelta(t, 0.5, wrapAngle(0.5+4*math.Pi), 1e-9)
	assert.InDelta(t, math.Pi, wrapAngle(-math.Pi), 1e-12)
}
