package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/bryanchriswhite/WindowMirror/internal/capture"
	"github.com/bryanchriswhite/WindowMirror/internal/display"
	"github.com/bryanchriswhite/WindowMirror/internal/window"
)

var (
	live  = resolveResult{live: true}
	stale = resolveResult{live: false}
)

func TestNewValidatesRate(t *testing.T) {
	tests := []struct {
		fps     int
		wantErr bool
	}{
		{60, false},
		{144, false},
		{1, false},
		{MaxFPS, false},
		{0, true},
		{-30, true},
		{MaxFPS + 1, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.fps), func(t *testing.T) {
			_, err := New(Deps{
				Registry: &fakeRegistry{},
				Source:   &fakeSource{},
				Sink:     newFakeSink(),
			}, RateConfig{FPS: tt.fps}, Options{})
			if (err != nil) != tt.wantErr {
				t.Errorf("New(fps=%d) error = %v, wantErr %v", tt.fps, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRate) {
				t.Errorf("error %v does not wrap ErrInvalidRate", err)
			}
		})
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Deps{Registry: &fakeRegistry{}}, RateConfig{FPS: 60}, Options{}); err == nil {
		t.Error("New without source and sink succeeded")
	}
}

func TestStartWithoutTargetIsInvalid(t *testing.T) {
	f := newFixture(t, Options{})

	err := f.session.Start()
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Start() error = %v, want ErrInvalidState", err)
	}
	if st := f.session.State(); st != StateSelecting {
		t.Errorf("state = %s, want selecting", st)
	}
}

func TestSelectTargetOnlyWhileSelecting(t *testing.T) {
	f := running(t, Options{})

	if err := f.session.SelectTarget(window.Handle{ID: 99}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SelectTarget while running error = %v, want ErrInvalidState", err)
	}
	if h, _ := f.session.Target(); h.ID != testTarget.ID {
		t.Errorf("target changed to 0x%x", h.ID)
	}
	if err := f.session.Start(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Start() error = %v, want ErrInvalidState", err)
	}
}

func TestTickWhileSelectingIsInvalid(t *testing.T) {
	f := newFixture(t, Options{})
	if err := f.session.Tick(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Tick() error = %v, want ErrInvalidState", err)
	}
}

// Every stale/live sequence without a run of three stale resolves keeps the
// session running.
func TestShortStaleRunsNeverFail(t *testing.T) {
	const n = 10
	for mask := 0; mask < 1<<n; mask++ {
		seq := make([]resolveResult, n)
		run, longest := 0, 0
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				seq[i] = stale
				run++
				longest = max(longest, run)
			} else {
				seq[i] = live
				run = 0
			}
		}
		if longest >= DefaultMissThreshold {
			continue
		}

		f := running(t, Options{})
		f.registry.results = append(seq, live)
		f.tick(n)

		if st := f.session.State(); st != StateRunning {
			t.Fatalf("sequence %0*b: state = %s, want running", n, mask, st)
		}
	}
}

func TestStaleAtThresholdFailsExactlyOnce(t *testing.T) {
	for _, threshold := range []int{1, 3, 5} {
		t.Run(fmt.Sprint(threshold), func(t *testing.T) {
			f := running(t, Options{MissThreshold: threshold})
			changes := f.session.Subscribe()

			f.registry.results = []resolveResult{live, stale}
			f.tick(1)
			f.tick(threshold - 1)
			if st := f.session.State(); st != StateRunning {
				t.Fatalf("state after %d misses = %s, want running", threshold-1, st)
			}

			f.tick(1)
			if st := f.session.State(); st != StateFailed {
				t.Fatalf("state = %s, want failed", st)
			}
			if r := f.session.Reason(); r != ReasonTargetLost {
				t.Errorf("reason = %s, want target-lost", r)
			}

			calls := f.registry.Calls()
			f.tick(5)
			if f.registry.Calls() != calls {
				t.Error("ticks after failure still resolved the target")
			}

			f.session.Unsubscribe(changes)
			failures := 0
			for c := range changes {
				if c.To == StateFailed {
					failures++
				}
			}
			if failures != 1 {
				t.Errorf("saw %d transitions to failed, want 1", failures)
			}
		})
	}
}

func TestRegistryErrorsCountAsMisses(t *testing.T) {
	f := running(t, Options{})
	f.registry.results = []resolveResult{{err: errors.New("connection lost")}}

	f.tick(DefaultMissThreshold)
	if st := f.session.State(); st != StateFailed {
		t.Errorf("state = %s, want failed", st)
	}
}

func TestStaleCaptureCountsAsMiss(t *testing.T) {
	f := running(t, Options{MissThreshold: 2})
	stale := fmt.Errorf("%w: BadWindow", capture.ErrTargetStale)
	f.source.errs = []error{stale, stale}

	f.tick(1)
	if got := f.session.Snapshot().Misses; got != 1 {
		t.Errorf("misses = %d, want 1", got)
	}
	// The registry still reports the window live; that must not clear the count
	f.tick(1)
	if st := f.session.State(); st != StateFailed {
		t.Errorf("state = %s, want failed", st)
	}
	if r := f.session.Reason(); r != ReasonTargetLost {
		t.Errorf("reason = %s, want target-lost", r)
	}
}

func TestPermanentlyStaleSourceFails(t *testing.T) {
	f := running(t, Options{})
	stale := fmt.Errorf("%w: BadMatch", capture.ErrTargetStale)
	for i := 0; i < 1000; i++ {
		f.source.errs = append(f.source.errs, stale)
	}

	f.tick(1000)
	snap := f.session.Snapshot()
	if snap.State != StateFailed || snap.Reason != ReasonTargetLost {
		t.Fatalf("state = %s (%s), misses = %d, want failed (target-lost)", snap.State, snap.Reason, snap.Misses)
	}
	if got := len(f.source.Captures()); got != DefaultMissThreshold {
		t.Errorf("captures = %d, want %d", got, DefaultMissThreshold)
	}
}

func TestSuccessfulCaptureClearsStaleMisses(t *testing.T) {
	f := running(t, Options{})
	stale := fmt.Errorf("%w: BadWindow", capture.ErrTargetStale)
	f.source.errs = []error{stale, stale, nil, stale, stale, nil}

	f.tick(6)
	if st := f.session.State(); st != StateRunning {
		t.Errorf("state = %s, want running", st)
	}
	if got := f.session.Snapshot().Misses; got != 0 {
		t.Errorf("misses = %d, want 0", got)
	}
}

func TestTransientCaptureClearsMisses(t *testing.T) {
	f := running(t, Options{})
	stale := fmt.Errorf("%w: BadWindow", capture.ErrTargetStale)
	transient := fmt.Errorf("%w: short reply", capture.ErrTransientGrab)
	f.source.errs = []error{stale, stale, transient, stale, stale}

	f.tick(5)
	if st := f.session.State(); st != StateRunning {
		t.Errorf("state = %s, want running", st)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	f := running(t, Options{})
	changes := f.session.Subscribe()

	f.session.Stop()
	f.session.Stop()

	if st := f.session.State(); st != StateStopped {
		t.Fatalf("state = %s, want stopped", st)
	}

	f.session.Unsubscribe(changes)
	n := 0
	for range changes {
		n++
	}
	if n != 1 {
		t.Errorf("got %d state changes, want 1", n)
	}

	// Stop after failure keeps the failure
	g := running(t, Options{MissThreshold: 1})
	g.registry.results = []resolveResult{stale}
	g.tick(1)
	g.session.Stop()
	if st := g.session.State(); st != StateFailed {
		t.Errorf("Stop() overwrote failed state with %s", st)
	}
}

func TestMovedWindowUsesFreshGeometry(t *testing.T) {
	f := running(t, Options{})

	at := func(x, y int) resolveResult {
		h := testTarget
		h.Geometry.X, h.Geometry.Y = x, y
		return resolveResult{h: h, live: true}
	}
	f.registry.results = []resolveResult{at(0, 0), at(100, 50)}

	f.tick(2)

	regions := f.source.Captures()
	if len(regions) != 2 {
		t.Fatalf("captured %d times, want 2", len(regions))
	}
	if got := regions[0].Screen.Min; got != image.Pt(0, 0) {
		t.Errorf("first region origin = %v, want (0,0)", got)
	}
	if got := regions[1].Screen.Min; got != image.Pt(100, 50) {
		t.Errorf("second region origin = %v, want (100,50)", got)
	}
	if h, _ := f.session.Target(); h.Geometry.X != 100 || h.Geometry.Y != 50 {
		t.Errorf("target geometry = %s, want origin (100,50)", h.Geometry)
	}
}

func TestTitleChangeKeepsIdentity(t *testing.T) {
	f := running(t, Options{})
	renamed := testTarget
	renamed.Title = "Editor - unsaved"
	f.registry.results = []resolveResult{{h: renamed, live: true}}

	f.tick(1)

	h, _ := f.session.Target()
	if h.ID != testTarget.ID || h.Title != renamed.Title {
		t.Errorf("target = %+v, want same id with new title", h)
	}
}

func TestCropAppliedToRegion(t *testing.T) {
	f := &fixture{registry: &fakeRegistry{}, source: &fakeSource{}, sink: newFakeSink(), pacer: &instantPacer{}}
	s, err := New(Deps{Registry: f.registry, Source: f.source, Sink: f.sink, Pacer: f.pacer},
		RateConfig{FPS: 60, Crop: capture.ExcludeTitleBar(32)}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	_ = s.SelectTarget(testTarget)
	_ = s.Start()
	_ = s.Tick(context.Background())

	regions := f.source.Captures()
	if len(regions) != 1 {
		t.Fatalf("captured %d times, want 1", len(regions))
	}
	if got := regions[0].Height(); got != testTarget.Geometry.Height-32 {
		t.Errorf("region height = %d, want %d", got, testTarget.Geometry.Height-32)
	}
}

func TestPausedTicksDrainInputWithoutCapture(t *testing.T) {
	f := running(t, Options{})

	f.session.TogglePause()
	if st := f.session.State(); st != StatePaused {
		t.Fatalf("state = %s, want paused", st)
	}

	f.tick(3)
	if n := len(f.source.Captures()); n != 0 {
		t.Errorf("paused ticks captured %d frames", n)
	}
	if n := f.sink.Renders(); n != 0 {
		t.Errorf("paused ticks rendered %d frames", n)
	}

	f.sink.events <- display.Event{Kind: display.EventTogglePause}
	f.tick(1)
	if st := f.session.State(); st != StateRunning {
		t.Fatalf("state after toggle event = %s, want running", st)
	}

	f.tick(1)
	if n := f.sink.Renders(); n != 1 {
		t.Errorf("rendered %d frames after resume, want 1", n)
	}
}

func TestTogglePauseIsNoOpOutsideRunning(t *testing.T) {
	f := newFixture(t, Options{})
	f.session.TogglePause()
	if st := f.session.State(); st != StateSelecting {
		t.Errorf("state = %s, want selecting", st)
	}

	g := running(t, Options{})
	g.session.Stop()
	g.session.TogglePause()
	if st := g.session.State(); st != StateStopped {
		t.Errorf("state = %s, want stopped", st)
	}
}

func TestPauseUpdatesHUD(t *testing.T) {
	f := running(t, Options{})
	f.session.TogglePause()

	st, ok := f.sink.LastStatus()
	if !ok || !st.Paused || st.TargetFPS != 60 {
		t.Errorf("last status = %+v (ok=%v), want paused at 60 fps", st, ok)
	}
}

func TestTransientErrorsNeverEscalate(t *testing.T) {
	f := running(t, Options{})
	transient := fmt.Errorf("%w: grab denied", capture.ErrTransientGrab)
	for i := 0; i < 200; i++ {
		f.source.errs = append(f.source.errs, transient)
	}

	f.tick(200)

	snap := f.session.Snapshot()
	if snap.State != StateRunning {
		t.Fatalf("state = %s, want running", snap.State)
	}
	if snap.TransientErrors != 200 {
		t.Errorf("transient errors = %d, want 200", snap.TransientErrors)
	}
	if snap.Misses != 0 {
		t.Errorf("misses = %d, want 0", snap.Misses)
	}

	f.tick(1)
	if f.sink.Renders() != 1 {
		t.Error("session did not render once grabs recovered")
	}
}

func TestZeroAreaWindowIsTransient(t *testing.T) {
	f := running(t, Options{})
	collapsed := testTarget
	collapsed.Geometry.Width = 0
	f.registry.results = []resolveResult{{h: collapsed, live: true}}

	f.tick(10)

	if st := f.session.State(); st != StateRunning {
		t.Errorf("state = %s, want running", st)
	}
	if n := len(f.source.Captures()); n != 0 {
		t.Errorf("captured %d frames from a zero-area window", n)
	}
}

func TestSinkUnavailableFails(t *testing.T) {
	f := running(t, Options{})
	f.sink.renderErr = fmt.Errorf("%w: put image: BadWindow", display.ErrSinkUnavailable)

	f.tick(1)

	if st, r := f.session.State(), f.session.Reason(); st != StateFailed || r != ReasonSinkUnavailable {
		t.Errorf("state = %s(%s), want failed(sink-unavailable)", st, r)
	}
}

func TestClosedEventStreamFails(t *testing.T) {
	f := running(t, Options{})
	f.session.TogglePause()
	close(f.sink.events)

	f.tick(1)

	if st, r := f.session.State(), f.session.Reason(); st != StateFailed || r != ReasonSinkUnavailable {
		t.Errorf("state = %s(%s), want failed(sink-unavailable)", st, r)
	}
}

func TestOtherRenderErrorsAreTransient(t *testing.T) {
	f := running(t, Options{})
	f.sink.renderErr = errors.New("put image: BadLength")

	f.tick(5)

	snap := f.session.Snapshot()
	if snap.State != StateRunning || snap.TransientErrors != 5 {
		t.Errorf("snapshot = %+v, want running with 5 transient errors", snap)
	}
}

func TestQuitAndCloseEventsStop(t *testing.T) {
	for _, kind := range []display.EventKind{display.EventQuit, display.EventClose} {
		t.Run(kind.String(), func(t *testing.T) {
			f := running(t, Options{})
			f.sink.events <- display.Event{Kind: kind}
			f.tick(1)
			if st := f.session.State(); st != StateStopped {
				t.Errorf("state = %s, want stopped", st)
			}
		})
	}
}

func TestAutoResizeFollowsFrameSize(t *testing.T) {
	f := running(t, Options{DisplayMode: display.ModeAuto})

	f.tick(2)
	f.source.setSize(image.Pt(800, 600))
	f.tick(2)

	want := []image.Point{image.Pt(640, 480), image.Pt(800, 600)}
	got := f.sink.Resizes()
	if len(got) != len(want) {
		t.Fatalf("resizes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("resize %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestUserResizeSwitchesToFixed(t *testing.T) {
	f := running(t, Options{DisplayMode: display.ModeAuto})
	f.tick(1)

	f.sink.events <- display.Event{Kind: display.EventResize, Width: 1024, Height: 768}
	f.tick(1)

	if m := f.session.DisplayMode(); m != display.ModeFixed {
		t.Errorf("display mode = %s, want fixed", m)
	}
	if s := f.session.Surface(); s != image.Pt(1024, 768) {
		t.Errorf("surface = %v, want 1024x768", s)
	}

	f.source.setSize(image.Pt(300, 200))
	f.tick(2)
	if n := len(f.sink.Resizes()); n != 1 {
		t.Errorf("resize requests = %d, want only the initial one", n)
	}
}

func TestFixedModeNeverResizes(t *testing.T) {
	f := running(t, Options{DisplayMode: display.ModeFixed})
	f.tick(3)
	if n := len(f.sink.Resizes()); n != 0 {
		t.Errorf("fixed mode requested %d resizes", n)
	}
}

func TestRefreshWhilePaused(t *testing.T) {
	f := running(t, Options{})
	f.session.TogglePause()

	f.sink.events <- display.Event{Kind: display.EventRefresh}
	f.tick(1)

	if n := f.sink.Renders(); n != 1 {
		t.Errorf("renders after refresh = %d, want 1", n)
	}
	if st := f.session.State(); st != StatePaused {
		t.Errorf("state = %s, want paused", st)
	}
}

func TestCommands(t *testing.T) {
	f := running(t, Options{})

	if err := f.session.Send(CommandPause); err != nil {
		t.Fatal(err)
	}
	f.tick(1)
	if st := f.session.State(); st != StatePaused {
		t.Fatalf("state = %s, want paused", st)
	}
	rendered := f.sink.Renders()

	// Pause while paused changes nothing
	_ = f.session.Send(CommandPause)
	_ = f.session.Send(CommandRefresh)
	f.tick(1)
	if st := f.session.State(); st != StatePaused {
		t.Fatalf("state = %s, want paused", st)
	}
	if f.sink.Renders() != rendered+1 {
		t.Errorf("refresh command did not render one frame")
	}

	_ = f.session.Send(CommandResume)
	f.tick(1)
	if st := f.session.State(); st != StateRunning {
		t.Fatalf("state = %s, want running", st)
	}

	_ = f.session.Send(CommandStop)
	f.tick(1)
	if st := f.session.State(); st != StateStopped {
		t.Fatalf("state = %s, want stopped", st)
	}

	if err := f.session.Send(CommandTogglePause); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Send after stop error = %v, want ErrInvalidState", err)
	}
}

func TestParseCommand(t *testing.T) {
	for _, name := range []string{"pause", "resume", "stop", "refresh", "toggle", "toggle-pause"} {
		if _, err := ParseCommand(name); err != nil {
			t.Errorf("ParseCommand(%q): %v", name, err)
		}
	}
	if _, err := ParseCommand("reboot"); err == nil {
		t.Error("ParseCommand(reboot) succeeded")
	}
}

func TestAchievedRateMeasured(t *testing.T) {
	clock := &manualClock{t: time.Unix(0, 0)}
	f := running(t, Options{MeterWindow: 2, Now: clock.now})
	f.source.clock = clock
	f.source.step = 10 * time.Millisecond

	f.tick(3)

	snap := f.session.Snapshot()
	if snap.AchievedFPS < 99 || snap.AchievedFPS > 101 {
		t.Errorf("achieved fps = %.2f, want 100", snap.AchievedFPS)
	}
	if st, _ := f.sink.LastStatus(); st.AchievedFPS != snap.AchievedFPS {
		t.Errorf("HUD fps = %.2f, want %.2f", st.AchievedFPS, snap.AchievedFPS)
	}
}

func TestRunEndsOnQuit(t *testing.T) {
	f := running(t, Options{})
	f.sink.events <- display.Event{Kind: display.EventQuit}

	done := make(chan error, 1)
	go func() { done <- f.session.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after quit")
	}
	if st := f.session.State(); st != StateStopped {
		t.Errorf("state = %s, want stopped", st)
	}
	if n := f.sink.Renders(); n != 1 {
		t.Errorf("rendered %d frames, want 1", n)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := running(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.session.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if st := f.session.State(); st != StateStopped {
		t.Errorf("state = %s, want stopped", st)
	}
}

func TestRunObservesStopFromAnotherGoroutine(t *testing.T) {
	f := running(t, Options{})

	done := make(chan error, 1)
	go func() { done <- f.session.Run(context.Background()) }()

	f.session.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after Stop")
	}

	renders := f.sink.Renders()
	time.Sleep(10 * time.Millisecond)
	if f.sink.Renders() != renders {
		t.Error("frames rendered after the loop returned")
	}
}

func TestRunBeforeStartIsInvalid(t *testing.T) {
	f := newFixture(t, Options{})
	if err := f.session.Run(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Run() = %v, want ErrInvalidState", err)
	}
}

func TestRunPacesAtTargetRate(t *testing.T) {
	f := running(t, Options{})
	f.registry.results = []resolveResult{live, live, stale}

	_ = f.session.Run(context.Background())

	f.pacer.mu.Lock()
	defer f.pacer.mu.Unlock()
	if len(f.pacer.waits) == 0 {
		t.Fatal("Run never waited between ticks")
	}
	for _, w := range f.pacer.waits {
		if w != time.Second/60 {
			t.Errorf("wait = %v, want %v", w, time.Second/60)
		}
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t, Options{})
	snap := f.session.Snapshot()
	if snap.State != StateSelecting || snap.Target != nil {
		t.Errorf("initial snapshot = %+v", snap)
	}

	f = running(t, Options{})
	f.tick(2)
	snap = f.session.Snapshot()
	if snap.Target == nil || snap.Target.ID != testTarget.ID {
		t.Fatalf("snapshot target = %+v", snap.Target)
	}
	if snap.FramesRendered != 2 || snap.TargetFPS != 60 || snap.Crop != "none" || snap.DisplayMode != "auto" {
		t.Errorf("snapshot = %+v", snap)
	}

	// The snapshot is a copy
	snap.Target.Title = "changed"
	if h, _ := f.session.Target(); h.Title != testTarget.Title {
		t.Error("mutating the snapshot changed the session target")
	}
}

func TestHostAllowsOneActiveSessionPerSurface(t *testing.T) {
	host := NewHost()

	a := newFixture(t, Options{})
	_ = a.session.SelectTarget(testTarget)
	if err := host.Start(a.session); err != nil {
		t.Fatalf("Start(a): %v", err)
	}

	// b shares a's surface
	b := newFixture(t, Options{})
	b.session.deps.Sink = a.sink
	_ = b.session.SelectTarget(window.Handle{ID: 0x4200001, Title: "Other"})
	if err := host.Start(b.session); !errors.Is(err, ErrSurfaceBusy) {
		t.Fatalf("Start(b) error = %v, want ErrSurfaceBusy", err)
	}
	if st := b.session.State(); st != StateSelecting {
		t.Errorf("b state = %s, want selecting", st)
	}

	// A paused session still owns the surface
	a.session.TogglePause()
	if err := host.Start(b.session); !errors.Is(err, ErrSurfaceBusy) {
		t.Errorf("Start(b) while a paused error = %v, want ErrSurfaceBusy", err)
	}

	a.session.Stop()
	if err := host.Start(b.session); err != nil {
		t.Fatalf("Start(b) after a stopped: %v", err)
	}
	if s, ok := host.Active(a.sink.ID()); !ok || s != b.session {
		t.Error("host does not report b as active")
	}

	// A different surface is independent
	c := newFixture(t, Options{})
	c.sink.id = 0x600001
	_ = c.session.SelectTarget(testTarget)
	if err := host.Start(c.session); err != nil {
		t.Errorf("Start(c) on another surface: %v", err)
	}

	host.StopAll()
	if b.session.State() != StateStopped || c.session.State() != StateStopped {
		t.Error("StopAll left sessions running")
	}
}

func TestStateStrings(t *testing.T) {
	for st, want := range map[State]string{
		StateSelecting: "selecting",
		StateRunning:   "running",
		StatePaused:    "paused",
		StateStopped:   "stopped",
		StateFailed:    "failed",
	} {
		if st.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(st), st.String(), want)
		}
	}
	if !StateFailed.Terminal() || !StateStopped.Terminal() || StatePaused.Terminal() {
		t.Error("Terminal() wrong")
	}
}
