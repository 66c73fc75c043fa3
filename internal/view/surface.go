package view

import (
	"context"
	"sync"

	"scent-memory-network/internal/domain/interaction"
)

// Surface is the rendering target of one mounted scene. A session owns at
// most one surface at a time and releases each exactly once.
type Surface interface {
	Present(frame interaction.Frame) error
	Release()
}

// SurfaceProvider acquires a fresh surface. It is called on mount and on
// every rebuild; a failure is shown, never retried.
type SurfaceProvider func(ctx context.Context) (Surface, error)

// heldSurface guards Release so every unmount path may call it.
type heldSurface struct {
	Surface
	once sync.Once
}

func hold(s Surface) *heldSurface {
	return &heldSurface{Surface: s}
}

func (h *heldSurface) Release() {
	h.once.Do(h.Surface.Release)
}
