package session

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/bryanchriswhite/WindowMirror/internal/capture"
	"github.com/bryanchriswhite/WindowMirror/internal/display"
	"github.com/bryanchriswhite/WindowMirror/internal/pacer"
	"github.com/bryanchriswhite/WindowMirror/internal/window"
)

type resolveResult struct {
	h    window.Handle
	live bool
	err  error
}

// fakeRegistry replays scripted Resolve results, repeating the last one
type fakeRegistry struct {
	mu      sync.Mutex
	results []resolveResult
	calls   int
}

func (r *fakeRegistry) List(ctx context.Context) ([]window.Handle, error) {
	return nil, nil
}

func (r *fakeRegistry) Resolve(ctx context.Context, h window.Handle) (window.Handle, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.results) == 0 {
		return h, true, nil
	}
	res := r.results[0]
	if len(r.results) > 1 {
		r.results = r.results[1:]
	}
	if res.h.ID == 0 {
		res.h.ID = h.ID
		res.h.Title = h.Title
		if res.h.Geometry.Empty() {
			res.h.Geometry = h.Geometry
		}
	}
	return res.h, res.live, res.err
}

func (r *fakeRegistry) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// fakeSource returns frames the size of the requested region, or scripted errors
type fakeSource struct {
	mu      sync.Mutex
	errs    []error
	regions []capture.Region
	size    *image.Point
	clock   *manualClock
	step    time.Duration
}

func (s *fakeSource) Capture(ctx context.Context, region capture.Region) (*capture.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions = append(s.regions, region)
	if s.clock != nil {
		s.clock.advance(s.step)
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	w, h := region.Width(), region.Height()
	if s.size != nil {
		w, h = s.size.X, s.size.Y
	}
	return &capture.Frame{Width: w, Height: h, Stride: w * 4, Pix: make([]byte, w*h*4)}, nil
}

func (s *fakeSource) Name() string { return "fake" }
func (s *fakeSource) Close() error { return nil }

func (s *fakeSource) Captures() []capture.Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]capture.Region, len(s.regions))
	copy(out, s.regions)
	return out
}

func (s *fakeSource) setSize(p image.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = &p
}

// fakeSink records renders, resize requests and HUD status
type fakeSink struct {
	mu        sync.Mutex
	id        uint32
	events    chan display.Event
	renders   int
	renderErr error
	resizes   []image.Point
	statuses  []display.Status
}

func newFakeSink() *fakeSink {
	return &fakeSink{id: 0x500001, events: make(chan display.Event, 16)}
}

func (s *fakeSink) Render(frame *capture.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.renderErr != nil {
		return s.renderErr
	}
	s.renders++
	return nil
}

func (s *fakeSink) Events() <-chan display.Event { return s.events }

func (s *fakeSink) RequestResize(w, h int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resizes = append(s.resizes, image.Pt(w, h))
	return nil
}

func (s *fakeSink) ID() uint32   { return s.id }
func (s *fakeSink) Close() error { return nil }

func (s *fakeSink) SetStatus(st display.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, st)
}

func (s *fakeSink) Renders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renders
}

func (s *fakeSink) Resizes() []image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]image.Point, len(s.resizes))
	copy(out, s.resizes)
	return out
}

func (s *fakeSink) LastStatus() (display.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return display.Status{}, false
	}
	return s.statuses[len(s.statuses)-1], true
}

// instantPacer never sleeps and records the waits it was asked for
type instantPacer struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (p *instantPacer) BeginTick() pacer.Token { return pacer.Token{} }

func (p *instantPacer) EndTick(tok pacer.Token, fps int) time.Duration {
	return pacer.Period(fps)
}

func (p *instantPacer) Wait(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	p.waits = append(p.waits, d)
	p.mu.Unlock()
	return ctx.Err()
}

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	registry *fakeRegistry
	source   *fakeSource
	sink     *fakeSink
	pacer    *instantPacer
	session  *Session
}

var testTarget = window.Handle{
	ID:       0x3a00007,
	Title:    "Editor",
	Geometry: window.Geometry{X: 0, Y: 0, Width: 640, Height: 480},
}

func newFixture(t testing.TB, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		registry: &fakeRegistry{},
		source:   &fakeSource{},
		sink:     newFakeSink(),
		pacer:    &instantPacer{},
	}
	s, err := New(Deps{
		Registry: f.registry,
		Source:   f.source,
		Sink:     f.sink,
		Pacer:    f.pacer,
	}, RateConfig{FPS: 60, Crop: capture.NoCrop()}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.session = s
	return f
}

// running returns a fixture whose session has testTarget selected and started
func running(t testing.TB, opts Options) *fixture {
	t.Helper()
	f := newFixture(t, opts)
	if err := f.session.SelectTarget(testTarget); err != nil {
		t.Fatalf("SelectTarget: %v", err)
	}
	if err := f.session.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return f
}

func (f *fixture) tick(n int) {
	for i := 0; i < n; i++ {
		_ = f.session.Tick(context.Background())
	}
}
