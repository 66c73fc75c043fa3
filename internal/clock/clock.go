// Package clock abstracts timers so loops driven by time can be stepped in
// tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock is the time source used by sessions and the notification client.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time                         { return time.Now() }
func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (Real) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Manual is a clock that only moves when Advance is called. Timers and
// tickers fire synchronously from Advance in deadline order.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
	added   chan struct{}
}

type waiter struct {
	at     time.Time
	period time.Duration
	ch     chan time.Time
}

// NewManual returns a manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start, added: make(chan struct{}, 64)}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) After(d time.Duration) <-chan time.Time {
	return m.add(d, 0).ch
}

func (m *Manual) NewTicker(d time.Duration) Ticker {
	return &manualTicker{m: m, w: m.add(d, d)}
}

func (m *Manual) add(d, period time.Duration) *waiter {
	m.mu.Lock()
	w := &waiter{at: m.now.Add(d), period: period, ch: make(chan time.Time, 1)}
	m.waiters = append(m.waiters, w)
	m.mu.Unlock()

	select {
	case m.added <- struct{}{}:
	default:
	}
	return w
}

// WaitForWaiters blocks until at least n timers or tickers have been
// created since the last call, or the timeout passes. It reports whether
// they showed up.
func (m *Manual) WaitForWaiters(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for i := 0; i < n; i++ {
		select {
		case <-m.added:
		case <-deadline:
			return false
		}
	}
	return true
}

// Pending returns the number of armed timers and tickers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}

// Advance moves the clock forward, firing everything that falls due.
// Ticker channels hold one tick; a tick that finds it full is dropped,
// as with time.Ticker.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := m.now.Add(d)
	for {
		sort.SliceStable(m.waiters, func(i, j int) bool { return m.waiters[i].at.Before(m.waiters[j].at) })
		if len(m.waiters) == 0 || m.waiters[0].at.After(target) {
			break
		}
		w := m.waiters[0]
		m.now = w.at
		select {
		case w.ch <- w.at:
		default:
		}
		if w.period > 0 {
			w.at = w.at.Add(w.period)
		} else {
			m.waiters = m.waiters[1:]
		}
	}
	m.now = target
}

func (m *Manual) remove(w *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.waiters {
		if x == w {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			return
		}
	}
}

type manualTicker struct {
	m *Manual
	w *waiter
}

func (t *manualTicker) C() <-chan time.Time { return t.w.ch }
func (t *manualTicker) Stop()               { t.m.remove(t.w) }
