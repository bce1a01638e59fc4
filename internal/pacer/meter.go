package pacer

import (
	"sync"
	"time"
)

// DefaultMeterWindow is how many frames are averaged per achieved-rate sample
const DefaultMeterWindow = 120

// Meter measures the achieved frame rate over windows of N frames
type Meter struct {
	mu     sync.Mutex
	now    func() time.Time
	window int
	count  int
	start  time.Time
	last   float64
}

// NewMeter returns a meter that reports once every window frames
func NewMeter(window int, now func() time.Time) *Meter {
	if window <= 0 {
		window = DefaultMeterWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Meter{now: now, window: window}
}

// Frame records one rendered frame. When it completes a window, Frame returns
// the achieved rate over that window and true.
func (m *Meter) Frame() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.count == 0 {
		m.start = now
	}
	m.count++
	if m.count <= m.window {
		return 0, false
	}

	elapsed := now.Sub(m.start)
	frames := m.count - 1
	m.count = 1
	m.start = now
	if elapsed <= 0 {
		return m.last, false
	}
	m.last = float64(frames) / elapsed.Seconds()
	return m.last, true
}

// Reset discards the current window, e.g. after a pause
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count = 0
}

// Last returns the most recent achieved rate, zero before the first window completes
func (m *Meter) Last() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
