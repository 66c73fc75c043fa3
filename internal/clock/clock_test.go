package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManual_After(t *testing.T) {
	m := NewManual(epoch)
	ch := m.After(3 * time.Second)

	m.Advance(2 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	m.Advance(time.Second)
	select {
	case at := <-ch:
		assert.Equal(t, epoch.Add(3*time.Second), at)
	default:
		t.Fatal("did not fire")
	}
	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, epoch.Add(3*time.Second), m.Now())
}

func TestManual_Ticker(t *testing.T) {
	m := NewManual(epoch)
	tk := m.NewTicker(time.Second)

	m.Advance(time.Second)
	require.Len(t, tk.C(), 1)
	<-tk.C()

	// A full channel drops extra ticks.
	m.Advance(5 * time.Second)
	assert.Len(t, tk.C(), 1)

	tk.Stop()
	assert.Equal(t, 0, m.Pending())
}

func TestManual_WaitForWaiters(t *testing.T) {
	m := NewManual(epoch)
	go m.After(time.Second)
	assert.True(t, m.WaitForWaiters(1, time.Second))
	assert.False(t, m.WaitForWaiters(1, 10*time.Millisecond))
}
