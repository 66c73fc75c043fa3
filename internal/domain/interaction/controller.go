package interaction

import (
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"scent-memory-network/internal/domain/network"
)

var (
	axisX = r3.Vec{X: 1}
	axisY = r3.Vec{Y: 1}
)

// State is the pointer state of the view.
type State string

const (
	StateIdleRotating State = "idle-rotating"
	StateDragging     State = "dragging"
	StateHovering     State = "hovering"
)

// HoverInfo is what the tooltip shows for a hovered node.
type HoverInfo struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Emotion   string   `json:"emotion,omitempty"`
	Notes     []string `json:"notes"`
	ScentName string   `json:"scent_name,omitempty"`
	Family    string   `json:"family"`
}

func (h *HoverInfo) equal(o *HoverInfo) bool {
	if h == nil || o == nil {
		return h == o
	}
	return h.ID == o.ID && h.Title == o.Title && h.Emotion == o.Emotion &&
		h.ScentName == o.ScentName && h.Family == o.Family && slices.Equal(h.Notes, o.Notes)
}

// Callbacks receive hover changes. Either may be nil. They run on the
// goroutine driving the controller.
type Callbacks struct {
	OnHoverChange     func(*HoverInfo)
	OnEdgeHoverChange func(*string)
}

// Config holds the camera and interaction constants.
type Config struct {
	FieldOfView       float64
	CameraDistance    float64
	NodeRadius        float64
	EdgePickThreshold float64
	DragSensitivity   float64
	MaxTilt           float64
	IdleRotationStep  float64
	HoverScale        float64
	PulseAmplitude    float64
	PulseSpeed        float64
	PulsePhaseStep    float64
}

// DefaultConfig returns the standard interaction constants.
func DefaultConfig() Config {
	return Config{
		FieldOfView:       60,
		CameraDistance:    15,
		NodeRadius:        0.5,
		EdgePickThreshold: 0.15,
		DragSensitivity:   0.005,
		MaxTilt:           math.Pi / 4,
		IdleRotationStep:  0.002,
		HoverScale:        1.5,
		PulseAmplitude:    0.05,
		PulseSpeed:        2,
		PulsePhaseStep:    0.5,
	}
}

// Frame is the visual state after one animation step.
type Frame struct {
	Seq         uint64    `json:"seq"`
	Elapsed     float64   `json:"elapsed"`
	RotationX   float64   `json:"rotation_x"`
	RotationY   float64   `json:"rotation_y"`
	Scales      []float64 `json:"scales"`
	HoveredNode int       `json:"hovered_node"`
	HoveredEdge int       `json:"hovered_edge"`
	State       State     `json:"state"`
}

// Controller owns rotation, hover and scale state for one view. It is not
// safe for concurrent use; a single goroutine must drive it.
type Controller struct {
	config    Config
	camera    Camera
	callbacks Callbacks

	graph  *network.Graph
	scales []float64

	rotX, rotY float64
	dragging   bool
	lastX      float64
	lastY      float64

	hoverNode  int
	hoverEdge  int
	hoverInfo  *HoverInfo
	hoverLabel *string

	seq     uint64
	elapsed time.Duration
}

// NewController creates a controller for a viewport of the given size.
func NewController(config Config, width, height int, callbacks Callbacks) *Controller {
	return &Controller{
		config:    config,
		callbacks: callbacks,
		camera: Camera{
			FieldOfView: config.FieldOfView,
			Distance:    config.CameraDistance,
			Width:       width,
			Height:      height,
		},
		hoverNode: -1,
		hoverEdge: -1,
	}
}

// Camera returns the current camera.
func (c *Controller) Camera() Camera {
	return c.camera
}

// Rotation returns the scene rotation around the X and Y axes.
func (c *Controller) Rotation() (x, y float64) {
	return c.rotX, c.rotY
}

// SetRotation sets the scene rotation, clamping the tilt.
func (c *Controller) SetRotation(x, y float64) {
	c.rotX = c.clampTilt(x)
	c.rotY = wrapAngle(y)
}

// State reports the current pointer state.
func (c *Controller) State() State {
	switch {
	case c.dragging:
		return StateDragging
	case c.hoverNode >= 0 || c.hoverEdge >= 0:
		return StateHovering
	default:
		return StateIdleRotating
	}
}

// Graph returns the graph being shown.
func (c *Controller) Graph() *network.Graph {
	return c.graph
}

// SetGraph replaces the graph. Rotation is kept. The hover target is kept
// when a node or edge with the same memory ids exists in the new graph,
// otherwise it is cleared.
func (c *Controller) SetGraph(g *network.Graph) {
	var prevNodeID, prevEdgeKey string
	if c.graph != nil {
		if c.hoverNode >= 0 {
			prevNodeID = c.graph.Nodes[c.hoverNode].ID
		}
		if c.hoverEdge >= 0 {
			prevEdgeKey = c.graph.Edges[c.hoverEdge].Key()
		}
	}

	c.graph = g
	c.scales = make([]float64, len(c.nodes()))
	for i := range c.scales {
		c.scales[i] = 1
	}

	node, edge := -1, -1
	if prevNodeID != "" && c.renderable() {
		if n, ok := g.NodeByID(prevNodeID); ok {
			node = n.Index
		}
	}
	if prevEdgeKey != "" && c.renderable() {
		for i := range g.Edges {
			if g.Edges[i].Key() == prevEdgeKey {
				edge = i
				break
			}
		}
	}
	c.setHover(node, edge)
	c.applyScales()
}

// PointerDown starts a drag.
func (c *Controller) PointerDown(x, y float64) {
	c.dragging = true
	c.lastX, c.lastY = x, y
}

// PointerMove rotates the scene while dragging and picks otherwise.
func (c *Controller) PointerMove(x, y float64) {
	if c.dragging {
		dx, dy := x-c.lastX, y-c.lastY
		c.lastX, c.lastY = x, y
		c.rotY = wrapAngle(c.rotY + dx*c.config.DragSensitivity)
		c.rotX = c.clampTilt(c.rotX + dy*c.config.DragSensitivity)
		return
	}
	c.pick(x, y)
}

// PointerUp ends a drag and re-evaluates hover at the pointer position.
func (c *Controller) PointerUp(x, y float64) {
	c.dragging = false
	c.pick(x, y)
}

// PointerLeave clears hover when the pointer leaves the viewport.
func (c *Controller) PointerLeave() {
	c.dragging = false
	c.setHover(-1, -1)
	c.applyScales()
}

// Resize updates the projection without touching rotation or hover.
func (c *Controller) Resize(width, height int) {
	c.camera.Width = width
	c.camera.Height = height
}

// Tick advances the animation to elapsed time since mount. Idle rotation
// advances one step per tick unless a drag is in progress.
func (c *Controller) Tick(elapsed time.Duration) Frame {
	c.seq++
	c.elapsed = elapsed
	if !c.dragging {
		c.rotY = wrapAngle(c.rotY + c.config.IdleRotationStep)
	}
	c.applyScales()
	return c.Frame()
}

// Frame returns the current visual state.
func (c *Controller) Frame() Frame {
	return Frame{
		Seq:         c.seq,
		Elapsed:     c.elapsed.Seconds(),
		RotationX:   c.rotX,
		RotationY:   c.rotY,
		Scales:      slices.Clone(c.scales),
		HoveredNode: c.hoverNode,
		HoveredEdge: c.hoverEdge,
		State:       c.State(),
	}
}

// Pulse is the idle scale factor of node i at time t.
func (c *Controller) Pulse(i int, t time.Duration) float64 {
	return 1 + c.config.PulseAmplitude*math.Sin(c.config.PulseSpeed*t.Seconds()+c.config.PulsePhaseStep*float64(i))
}

// Scale returns the current scale of node i.
func (c *Controller) Scale(i int) float64 {
	return c.scales[i]
}

// WorldPosition is node i after scene rotation.
func (c *Controller) WorldPosition(i int) r3.Vec {
	p := c.graph.Nodes[i].Position.Vec()
	return r3.Rotate(r3.Rotate(p, c.rotY, axisY), c.rotX, axisX)
}

// ScreenPosition projects node i to pixel coordinates.
func (c *Controller) ScreenPosition(i int) (x, y float64, ok bool) {
	return c.camera.Project(c.WorldPosition(i))
}

// Target is the result of a pick. At most one of Node and Edge is set.
type Target struct {
	Node int
	Edge int
}

// Pick returns what lies under the pixel. Nodes take precedence over edges;
// within each kind the hit nearest the camera wins.
func (c *Controller) Pick(px, py float64) Target {
	target := Target{Node: -1, Edge: -1}
	if !c.renderable() {
		return target
	}

	ray := c.camera.Ray(px, py)

	best := math.Inf(1)
	for i := range c.graph.Nodes {
		t, ok := intersectSphere(ray, c.WorldPosition(i), c.config.NodeRadius*c.scales[i])
		if ok && t < best {
			best, target.Node = t, i
		}
	}
	if target.Node >= 0 {
		return target
	}

	best = math.Inf(1)
	for i, e := range c.graph.Edges {
		dist, along := raySegmentDistance(ray, c.WorldPosition(e.Source), c.WorldPosition(e.Target))
		if dist < c.config.EdgePickThreshold && along < best {
			best, target.Edge = along, i
		}
	}
	return target
}

func (c *Controller) pick(x, y float64) {
	target := c.Pick(x, y)
	c.setHover(target.Node, target.Edge)
	c.applyScales()
}

// setHover records the new target and fires callbacks for what changed.
func (c *Controller) setHover(node, edge int) {
	c.hoverNode, c.hoverEdge = node, edge

	var info *HoverInfo
	if node >= 0 {
		info = hoverInfo(&c.graph.Nodes[node])
	}
	if !info.equal(c.hoverInfo) {
		c.hoverInfo = info
		if c.callbacks.OnHoverChange != nil {
			c.callbacks.OnHoverChange(info)
		}
	}

	label := c.edgeLabel(edge)
	if !equalLabel(label, c.hoverLabel) {
		c.hoverLabel = label
		if c.callbacks.OnEdgeHoverChange != nil {
			c.callbacks.OnEdgeHoverChange(label)
		}
	}
}

func (c *Controller) edgeLabel(edge int) *string {
	if edge < 0 || c.graph == nil || edge >= len(c.graph.Edges) {
		return nil
	}
	label := c.graph.Edges[edge].Detail
	return &label
}

func (c *Controller) applyScales() {
	for i := range c.scales {
		s := c.Pulse(i, c.elapsed)
		if i == c.hoverNode {
			s *= c.config.HoverScale
		}
		c.scales[i] = s
	}
}

func (c *Controller) nodes() []network.Node {
	if !c.renderable() {
		return nil
	}
	return c.graph.Nodes
}

func (c *Controller) renderable() bool {
	return c.graph != nil && c.graph.Renderable()
}

func (c *Controller) clampTilt(x float64) float64 {
	return math.Max(-c.config.MaxTilt, math.Min(c.config.MaxTilt, x))
}

// wrapAngle keeps an unbounded rotation within (-π, π].
func wrapAngle(a float64) float64 {
	a = math.Remainder(a, 2*math.Pi)
	if a == -math.Pi {
		a = math.Pi
	}
	return a
}

func equalLabel(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func hoverInfo(n *network.Node) *HoverInfo {
	return &HoverInfo{
		ID:        n.ID,
		Title:     n.Title,
		Emotion:   n.Emotion,
		Notes:     slices.Clone(n.Notes),
		ScentName: n.ScentName,
		Family:    n.Family.String(),
	}
}
