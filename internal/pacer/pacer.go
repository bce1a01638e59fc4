package pacer

import (
	"context"
	"time"
)

// Token marks the start of one tick
type Token struct {
	start time.Time
}

// Start returns when the tick began
func (t Token) Start() time.Time {
	return t.start
}

// Pacer caps a loop at a target frame rate. It never bursts to catch up: a
// tick that overruns its period is followed immediately by the next one.
type Pacer struct {
	now func() time.Time
}

// New returns a pacer on the wall clock
func New() *Pacer {
	return &Pacer{now: time.Now}
}

// NewWithClock returns a pacer reading time from now
func NewWithClock(now func() time.Time) *Pacer {
	if now == nil {
		now = time.Now
	}
	return &Pacer{now: now}
}

// Period is the ideal time between frames at fps. Non-positive rates have no period.
func Period(fps int) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Second / time.Duration(fps)
}

// BeginTick records the start of a tick
func (p *Pacer) BeginTick() Token {
	return Token{start: p.now()}
}

// EndTick returns how long to wait before the next tick: the remainder of the
// period at fps, or zero when the tick already took longer than that.
func (p *Pacer) EndTick(tok Token, fps int) time.Duration {
	elapsed := p.now().Sub(tok.start)
	wait := Period(fps) - elapsed
	if wait < 0 {
		return 0
	}
	return wait
}

// Wait blocks for d or until ctx is done, whichever comes first
func (p *Pacer) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
