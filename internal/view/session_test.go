package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scent-memory-network/internal/clock"
	"scent-memory-network/internal/domain/interaction"
	"scent-memory-network/internal/domain/memory"
	"scent-memory-network/internal/domain/network"
)

type fakeSurface struct {
	frames   chan interaction.Frame
	mu       sync.Mutex
	releases int
	fail     error
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{frames: make(chan interaction.Frame, 16)}
}

func (f *fakeSurface) Present(frame interaction.Frame) error {
	f.mu.Lock()
	err := f.fail
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.frames <- frame
	return nil
}

func (f *fakeSurface) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
}

func (f *fakeSurface) Releases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releases
}

// provider hands out fresh fake surfaces and remembers them.
type provider struct {
	mu       sync.Mutex
	surfaces []*fakeSurface
	err      error
}

func (p *provider) acquire(context.Context) (Surface, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	s := newFakeSurface()
	p.surfaces = append(p.surfaces, s)
	return s, nil
}

func (p *provider) all() []*fakeSurface {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*fakeSurface(nil), p.surfaces...)
}

type harness struct {
	clock    *clock.Manual
	provider *provider
	views    chan View
	hovers   chan *interaction.HoverInfo
}

func newHarness() *harness {
	return &harness{
		clock:    clock.NewManual(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		provider: &provider{},
		views:    make(chan View, 16),
		hovers:   make(chan *interaction.HoverInfo, 16),
	}
}

func (h *harness) open(t *testing.T, snapshot *memory.Snapshot) *Session {
	t.Helper()
	s, err := NewSession(context.Background(), Options{
		Builder: network.NewBuilder(network.DefaultBuilderConfig(), nil),
		Acquire: h.provider.acquire,
		Listener: Listener{
			OnView:        func(v View) { h.views <- v },
			OnHoverChange: func(i *interaction.HoverInfo) { h.hovers <- i },
		},
		Clock:         h.clock,
		FrameInterval: 16 * time.Millisecond,
		Width:         800,
		Height:        600,
		Logger:        zap.NewNop(),
	}, snapshot)
	require.NoError(t, err)
	return s
}

func (h *harness) nextView(t *testing.T) View {
	t.Helper()
	select {
	case v := <-h.views:
		return v
	case <-time.After(time.Second):
		t.Fatal("no view emitted")
		return View{}
	}
}

func snapshotOf(n int, prefix string) *memory.Snapshot {
	records := make([]memory.Record, n)
	for i := range records {
		records[i] = memory.Record{
			ID:        fmt.Sprintf("%s-%d", prefix, i),
			Title:     fmt.Sprintf("Memory %d", i),
			Processed: true,
		}
	}
	return memory.NewSnapshot(records, time.Now())
}

func status(t *testing.T, s *Session) Status {
	t.Helper()
	st, err := s.Status()
	require.NoError(t, err)
	return st
}

func TestSession_EmptyDoesNotAcquire(t *testing.T) {
	h := newHarness()
	s := h.open(t, memory.NewSnapshot(nil, time.Now()))
	defer s.Close()

	v := h.nextView(t)
	assert.Equal(t, StateEmpty, v.State)
	assert.Equal(t, "No memories yet", v.Message)
	assert.Empty(t, h.provider.all())
	assert.Equal(t, 0, status(t, s).Nodes)
}

func TestSession_NeedMoreShowsCounts(t *testing.T) {
	h := newHarness()
	snap := memory.NewSnapshot([]memory.Record{{ID: "only", Processed: true}}, time.Now())
	s := h.open(t, snap)
	defer s.Close()

	v := h.nextView(t)
	assert.Equal(t, StateNeedMore, v.State)
	assert.Equal(t, "Upload at least 2 processed memories to see connections", v.Message)
	assert.Equal(t, "1 processed, 0 still processing", v.Detail)
	assert.Equal(t, memory.Counts{Processed: 1}, v.Counts)
	assert.Empty(t, h.provider.all())

	st := status(t, s)
	assert.Equal(t, 0, st.Nodes)
	assert.False(t, st.Surface)
}

func TestSession_PresentsFramesAndReleasesOnce(t *testing.T) {
	h := newHarness()
	s := h.open(t, snapshotOf(4, "m"))

	v := h.nextView(t)
	require.Equal(t, StateReady, v.State)
	assert.Nil(t, v.Legend)

	surfaces := h.provider.all()
	require.Len(t, surfaces, 1)

	h.clock.Advance(16 * time.Millisecond)
	select {
	case f := <-surfaces[0].frames:
		assert.Equal(t, uint64(1), f.Seq)
		assert.Len(t, f.Scales, 4)
		assert.InDelta(t, 0.016, f.Elapsed, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("no frame presented")
	}

	s.Close()
	s.Close()
	assert.Equal(t, 1, surfaces[0].Releases())

	assert.ErrorIs(t, s.PointerMove(1, 1), ErrSessionClosed)
	_, err := s.Status()
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_RebuildSwapsSurfaceAndKeepsRotation(t *testing.T) {
	h := newHarness()
	first := snapshotOf(4, "m")
	s := h.open(t, first)
	defer s.Close()
	h.nextView(t)

	require.NoError(t, s.PointerDown(0, 0))
	require.NoError(t, s.PointerMove(100, 20))
	require.NoError(t, s.PointerUp(100, 20))
	before := status(t, s)
	assert.InDelta(t, 0.5, before.RotationY, 1e-9)
	assert.InDelta(t, 0.1, before.RotationX, 1e-9)

	// Same content: nothing happens.
	require.NoError(t, s.Refresh(snapshotOf(4, "m")))
	st := status(t, s)
	assert.Equal(t, 0, st.Rebuilds)
	require.Len(t, h.provider.all(), 1)

	require.NoError(t, s.Refresh(snapshotOf(6, "m")))
	after := status(t, s)
	assert.Equal(t, 1, after.Rebuilds)
	assert.Equal(t, 6, after.Nodes)
	assert.Equal(t, before.RotationX, after.RotationX)
	assert.Equal(t, before.RotationY, after.RotationY)
	assert.NotEqual(t, first.Fingerprint, after.Fingerprint)

	surfaces := h.provider.all()
	require.Len(t, surfaces, 2)
	assert.Equal(t, 1, surfaces[0].Releases())
	assert.Equal(t, 0, surfaces[1].Releases())
	assert.Equal(t, StateReady, h.nextView(t).State)

	s.Close()
	assert.Equal(t, 1, surfaces[0].Releases())
	assert.Equal(t, 1, surfaces[1].Releases())
}

func TestSession_RebuildToEmptyReleasesSurface(t *testing.T) {
	h := newHarness()
	s := h.open(t, snapshotOf(3, "m"))
	defer s.Close()
	h.nextView(t)

	require.NoError(t, s.Refresh(memory.NewSnapshot(nil, time.Now())))
	assert.Equal(t, StateEmpty, h.nextView(t).State)
	assert.False(t, status(t, s).Surface)
	assert.Equal(t, 1, h.provider.all()[0].Releases())
}

func TestSession_AcquireFailureShowsError(t *testing.T) {
	h := newHarness()
	h.provider.err = errors.New("no GPU context")
	s := h.open(t, snapshotOf(3, "m"))
	defer s.Close()

	v := h.nextView(t)
	assert.Equal(t, StateError, v.State)
	assert.Contains(t, v.Message, "no GPU context")

	// Ticks do not retry.
	h.clock.Advance(time.Second)
	st := status(t, s)
	assert.False(t, st.Surface)
	assert.Equal(t, StateError, st.View)
}

func TestSession_PresentFailureReleases(t *testing.T) {
	h := newHarness()
	s := h.open(t, snapshotOf(3, "m"))
	h.nextView(t)

	surface := h.provider.all()[0]
	surface.mu.Lock()
	surface.fail = errors.New("context lost")
	surface.mu.Unlock()

	h.clock.Advance(16 * time.Millisecond)
	v := h.nextView(t)
	assert.Equal(t, StateError, v.State)
	assert.Contains(t, v.Message, "context lost")
	assert.Equal(t, 1, surface.Releases())

	s.Close()
	assert.Equal(t, 1, surface.Releases())
}

func TestSession_LegendToggle(t *testing.T) {
	h := newHarness()
	s := h.open(t, snapshotOf(3, "m"))
	defer s.Close()
	h.nextView(t)

	require.NoError(t, s.SetLegendVisible(true))
	v := h.nextView(t)
	require.NotNil(t, v.Legend)
	assert.Len(t, v.Legend.Connections, 3)
	assert.Len(t, v.Legend.Families, 10)

	// Unchanged flag emits nothing.
	require.NoError(t, s.SetLegendVisible(true))
	status(t, s)
	assert.Empty(t, h.views)

	require.NoError(t, s.SetLegendVisible(false))
	assert.Nil(t, h.nextView(t).Legend)
}

func TestSession_HoverReachesListener(t *testing.T) {
	h := newHarness()
	s := h.open(t, snapshotOf(2, "m"))
	defer s.Close()
	h.nextView(t)

	// Two nodes sit on the poles; node 0 is at the top of the sphere.
	cam := interaction.Camera{FieldOfView: 60, Distance: 15, Width: 800, Height: 600}
	x, y, ok := cam.Project(network.Layout(0, 2, 6).Vec())
	require.True(t, ok)

	require.NoError(t, s.PointerMove(x, y))
	select {
	case info := <-h.hovers:
		require.NotNil(t, info)
		assert.Equal(t, "m-0", info.ID)
	case <-time.After(time.Second):
		t.Fatal("no hover")
	}
	assert.Equal(t, 0, status(t, s).HoveredNode)
}
