package websocket

import (
	"context"
	"errors"
	"sync/atomic"

	"scent-memory-network/internal/domain/interaction"
	"scent-memory-network/internal/view"
)

var errConnectionClosed = errors.New("connection closed")

// streamSurface presents frames by streaming every Nth one to the browser,
// which does the drawing.
type streamSurface struct {
	client   *Client
	every    uint64
	released atomic.Bool
}

// surfaceProvider hands each mount a fresh stream surface for c.
func surfaceProvider(c *Client, every int) view.SurfaceProvider {
	if every < 1 {
		every = 1
	}
	return func(ctx context.Context) (view.Surface, error) {
		select {
		case <-c.done:
			return nil, errConnectionClosed
		default:
		}
		return &streamSurface{client: c, every: uint64(every)}, nil
	}
}

func (s *streamSurface) Present(frame interaction.Frame) error {
	if s.released.Load() {
		return errConnectionClosed
	}
	if frame.Seq%s.every != 0 {
		return nil
	}
	select {
	case <-s.client.done:
		return errConnectionClosed
	default:
	}
	// A full buffer skips the frame; the next one carries the same state.
	s.client.Send(MessageFrame, frame)
	return nil
}

func (s *streamSurface) Release() {
	s.released.Store(true)
}
