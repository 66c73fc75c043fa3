package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scent-memory-network/internal/clock"
	"scent-memory-network/internal/domain/interaction"
	"scent-memory-network/internal/domain/memory"
	"scent-memory-network/internal/domain/network"
	appErrors "scent-memory-network/pkg/errors"
)

// ErrSessionClosed is returned for events posted after Close.
var ErrSessionClosed = errors.New("session closed")

// Listener receives what the shell shows. Callbacks run on the session
// goroutine and must not block on the session.
type Listener struct {
	OnHoverChange     func(*interaction.HoverInfo)
	OnEdgeHoverChange func(*string)
	OnView            func(View)
}

// Options configures a session.
type Options struct {
	Builder       *network.Builder
	Acquire       SurfaceProvider
	Listener      Listener
	Clock         clock.Clock
	Theme         *Theme
	Interaction   interaction.Config
	FrameInterval time.Duration
	Width         int
	Height        int
	LegendVisible bool
	Logger        *zap.Logger
}

// Status is a point-in-time view of a session for diagnostics and tests.
type Status struct {
	ID          string `json:"id"`
	View        State  `json:"view"`
	Fingerprint uint64 `json:"fingerprint"`
	// Nodes and Edges count what is on screen.
	Nodes       int     `json:"nodes"`
	Edges       int     `json:"edges"`
	RotationX   float64 `json:"rotation_x"`
	RotationY   float64 `json:"rotation_y"`
	HoveredNode int     `json:"hovered_node"`
	HoveredEdge int     `json:"hovered_edge"`
	Surface     bool    `json:"surface"`
	Rebuilds    int     `json:"rebuilds"`
}

// Session owns one mounted scene. A single goroutine drives the
// controller; every input is posted to it as an event, and frames are
// paced by the clock.
type Session struct {
	id     string
	opts   Options
	logger *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	events    chan func()
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the loop goroutine.
	controller    *interaction.Controller
	ticker        clock.Ticker
	mountedAt     time.Time
	snapshot      *memory.Snapshot
	surface       *heldSurface
	view          View
	legendVisible bool
	rebuilds      int
}

// NewSession mounts the snapshot and starts the session loop. It fails
// only on incomplete options; surface failures show up as an error view.
func NewSession(ctx context.Context, opts Options, snapshot *memory.Snapshot) (*Session, error) {
	if opts.Builder == nil || opts.Acquire == nil {
		return nil, fmt.Errorf("session requires a builder and a surface provider")
	}
	if snapshot == nil {
		snapshot = memory.NewSnapshot(nil, time.Time{})
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Theme == nil {
		opts.Theme = DefaultTheme()
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 16 * time.Millisecond
	}
	if opts.Interaction == (interaction.Config{}) {
		opts.Interaction = interaction.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Session{
		id:            uuid.New().String(),
		opts:          opts,
		events:        make(chan func(), 64),
		done:          make(chan struct{}),
		legendVisible: opts.LegendVisible,
	}
	s.logger = opts.Logger.With(zap.String("sessionID", s.id))
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.controller = interaction.NewController(opts.Interaction, opts.Width, opts.Height, interaction.Callbacks{
		OnHoverChange: func(info *interaction.HoverInfo) {
			if opts.Listener.OnHoverChange != nil {
				opts.Listener.OnHoverChange(info)
			}
		},
		OnEdgeHoverChange: func(label *string) {
			if opts.Listener.OnEdgeHoverChange != nil {
				opts.Listener.OnEdgeHoverChange(label)
			}
		},
	})

	s.mountedAt = opts.Clock.Now()
	s.ticker = opts.Clock.NewTicker(opts.FrameInterval)
	s.mount(snapshot)

	go s.run()
	return s, nil
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id
}

// Done is closed once the loop has exited and the surface is released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close stops the loop and releases the surface. It is safe to call more
// than once and from any goroutine except a listener callback.
func (s *Session) Close() {
	s.closeOnce.Do(s.cancel)
	<-s.done
}

func (s *Session) PointerDown(x, y float64) error {
	return s.post(func() { s.controller.PointerDown(x, y) })
}

func (s *Session) PointerMove(x, y float64) error {
	return s.post(func() { s.controller.PointerMove(x, y) })
}

func (s *Session) PointerUp(x, y float64) error {
	return s.post(func() { s.controller.PointerUp(x, y) })
}

func (s *Session) PointerLeave() error {
	return s.post(s.controller.PointerLeave)
}

// Resize updates the projection; rotation and hover are kept.
func (s *Session) Resize(width, height int) error {
	return s.post(func() { s.controller.Resize(width, height) })
}

// SetLegendVisible toggles the legend panel.
func (s *Session) SetLegendVisible(visible bool) error {
	return s.post(func() {
		if s.legendVisible == visible {
			return
		}
		s.legendVisible = visible
		if s.view.State != StateError {
			s.emitView(s.shell())
		}
	})
}

// Refresh rebuilds the scene when the snapshot differs from the mounted
// one. Equal fingerprints are ignored.
func (s *Session) Refresh(snapshot *memory.Snapshot) error {
	if snapshot == nil {
		return nil
	}
	return s.post(func() { s.rebuild(snapshot) })
}

// Status reports the session state as seen by the loop.
func (s *Session) Status() (Status, error) {
	reply := make(chan Status, 1)
	if err := s.post(func() { reply <- s.status() }); err != nil {
		return Status{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-s.done:
		return Status{}, ErrSessionClosed
	}
}

func (s *Session) post(fn func()) error {
	select {
	case <-s.ctx.Done():
		return ErrSessionClosed
	default:
	}
	select {
	case s.events <- fn:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer s.teardown()

	for {
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.events:
			fn()
		case now := <-s.ticker.C():
			s.tick(now)
		}
	}
}

func (s *Session) mount(snapshot *memory.Snapshot) {
	s.snapshot = snapshot
	g := s.opts.Builder.Build(snapshot.Records)
	s.controller.SetGraph(g)

	if !g.Renderable() {
		s.emitView(s.shell())
		return
	}

	surface, err := s.opts.Acquire(s.ctx)
	if err != nil {
		s.logger.Error("Failed to acquire surface", zap.Error(err))
		s.emitView(ErrorView(s.opts.Theme, g.Counts, appErrors.NewSurfaceError(err)))
		return
	}
	s.surface = hold(surface)

	s.logger.Debug("Scene mounted",
		zap.String("fingerprint", snapshot.FingerprintHex()),
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)),
	)
	s.emitView(s.shell())
}

func (s *Session) rebuild(snapshot *memory.Snapshot) {
	if s.snapshot != nil && s.snapshot.Fingerprint == snapshot.Fingerprint {
		s.logger.Debug("Snapshot unchanged, keeping scene")
		return
	}
	s.releaseSurface()
	s.rebuilds++
	s.mount(snapshot)
}

func (s *Session) tick(now time.Time) {
	if s.surface == nil {
		return
	}
	frame := s.controller.Tick(now.Sub(s.mountedAt))
	if err := s.surface.Present(frame); err != nil {
		s.logger.Warn("Surface present failed", zap.Error(err))
		s.releaseSurface()
		s.emitView(ErrorView(s.opts.Theme, s.snapshot.Counts(), appErrors.NewSurfaceError(err)))
	}
}

func (s *Session) teardown() {
	s.ticker.Stop()
	s.releaseSurface()
	s.logger.Debug("Session closed", zap.Int("rebuilds", s.rebuilds))
}

func (s *Session) releaseSurface() {
	if s.surface != nil {
		s.surface.Release()
		s.surface = nil
	}
}

func (s *Session) shell() View {
	return Shell(s.opts.Theme, s.controller.Graph(), s.opts.Builder.Families().Table(), s.legendVisible)
}

func (s *Session) emitView(v View) {
	s.view = v
	if s.opts.Listener.OnView != nil {
		s.opts.Listener.OnView(v)
	}
}

func (s *Session) status() Status {
	st := Status{
		ID:       s.id,
		View:     s.view.State,
		Surface:  s.surface != nil,
		Rebuilds: s.rebuilds,
	}
	st.RotationX, st.RotationY = s.controller.Rotation()
	frame := s.controller.Frame()
	st.HoveredNode, st.HoveredEdge = frame.HoveredNode, frame.HoveredEdge
	if s.snapshot != nil {
		st.Fingerprint = s.snapshot.Fingerprint
	}
	if g := s.controller.Graph(); g != nil && g.Renderable() {
		st.Nodes, st.Edges = len(g.Nodes), len(g.Edges)
	}
	return st
}
