package capture

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Guarded bounds how long a single Capture may take. A grab that times out is
// reported as ErrTransientGrab; until it actually returns, later captures fail
// fast instead of stacking up behind it.
type Guarded struct {
	src      Source
	timeout  time.Duration
	inFlight atomic.Bool
}

// Guard wraps src with a per-capture timeout. A non-positive timeout returns src
// unchanged.
func Guard(src Source, timeout time.Duration) Source {
	if timeout <= 0 {
		return src
	}
	return &Guarded{src: src, timeout: timeout}
}

type result struct {
	frame *Frame
	err   error
}

// Capture runs the wrapped grab with the configured deadline
func (g *Guarded) Capture(ctx context.Context, region Region) (*Frame, error) {
	if !g.inFlight.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: previous grab still in flight", ErrTransientGrab)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		defer g.inFlight.Store(false)
		f, err := g.src.Capture(ctx, region)
		done <- result{frame: f, err: err}
	}()

	select {
	case r := <-done:
		return r.frame, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: grab exceeded %v: %v", ErrTransientGrab, g.timeout, ctx.Err())
	}
}

// Name returns the wrapped source's name
func (g *Guarded) Name() string {
	return g.src.Name()
}

// Close closes the wrapped source
func (g *Guarded) Close() error {
	return g.src.Close()
}
