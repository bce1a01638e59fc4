package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/WindowMirror/internal/capture"
	"github.com/bryanchriswhite/WindowMirror/internal/display"
	"github.com/bryanchriswhite/WindowMirror/internal/logger"
	"github.com/bryanchriswhite/WindowMirror/internal/pacer"
	"github.com/bryanchriswhite/WindowMirror/internal/window"
)

const (
	// DefaultMissThreshold is how many consecutive failed resolves are
	// tolerated before the target is considered lost
	DefaultMissThreshold = 3

	commandBuffer = 16

	// transientWarnEvery summarizes runs of failed grabs at Warn level
	transientWarnEvery = 60
)

// Pacer is the scheduling contract the run loop uses between ticks
type Pacer interface {
	BeginTick() pacer.Token
	EndTick(tok pacer.Token, fps int) time.Duration
	Wait(ctx context.Context, d time.Duration) error
}

// Deps are the collaborators a session drives
type Deps struct {
	Registry window.Registry
	Source   capture.Source
	Sink     display.Sink
	// Pacer defaults to a wall clock pacer
	Pacer Pacer
}

// Options tune session behaviour. Zero values select defaults.
type Options struct {
	MissThreshold int
	DisplayMode   display.Mode
	// MeterWindow is the number of frames per achieved-rate sample
	MeterWindow int
	Now         func() time.Time
}

// Command is an instruction queued with Send and applied on the session's own timeline
type Command int

const (
	CommandTogglePause Command = iota
	CommandPause
	CommandResume
	CommandStop
	CommandRefresh
)

func (c Command) String() string {
	switch c {
	case CommandTogglePause:
		return "toggle-pause"
	case CommandPause:
		return "pause"
	case CommandResume:
		return "resume"
	case CommandStop:
		return "stop"
	case CommandRefresh:
		return "refresh"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// ParseCommand parses a command name as used by the control API
func ParseCommand(s string) (Command, error) {
	switch strings.ToLower(s) {
	case "toggle", "toggle-pause":
		return CommandTogglePause, nil
	case "pause":
		return CommandPause, nil
	case "resume":
		return CommandResume, nil
	case "stop":
		return CommandStop, nil
	case "refresh":
		return CommandRefresh, nil
	default:
		return 0, fmt.Errorf("unknown command %q", s)
	}
}

// Session mirrors one target window into one display sink. Tick and Run
// form a single timeline; the other methods are safe to call from any goroutine.
type Session struct {
	deps     Deps
	rate     RateConfig
	opts     Options
	meter    *pacer.Meter
	commands chan Command

	mu        sync.Mutex
	state     State
	reason    Reason
	target    *window.Handle
	mode      display.Mode
	misses    int
	frames    uint64
	transient uint64
	streak    int
	achieved  float64
	lastFrame image.Point
	surface   image.Point
	listeners []chan Change
	wake      context.CancelFunc
}

// New creates a session in the Selecting state
func New(deps Deps, rate RateConfig, opts Options) (*Session, error) {
	if err := rate.Validate(); err != nil {
		return nil, err
	}
	if deps.Registry == nil || deps.Source == nil || deps.Sink == nil {
		return nil, errors.New("session requires a registry, a frame source and a display sink")
	}
	if deps.Pacer == nil {
		deps.Pacer = pacer.NewWithClock(opts.Now)
	}
	if opts.MissThreshold <= 0 {
		opts.MissThreshold = DefaultMissThreshold
	}
	if opts.DisplayMode == "" {
		opts.DisplayMode = display.ModeAuto
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Session{
		deps:     deps,
		rate:     rate,
		opts:     opts,
		meter:    pacer.NewMeter(opts.MeterWindow, opts.Now),
		commands: make(chan Command, commandBuffer),
		state:    StateSelecting,
		mode:     opts.DisplayMode,
	}, nil
}

// Rate returns the session's rate config
func (s *Session) Rate() RateConfig {
	return s.rate
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reason returns why the session failed, ReasonNone otherwise
func (s *Session) Reason() Reason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Target returns the selected window as last resolved
func (s *Session) Target() (window.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil {
		return window.Handle{}, false
	}
	return *s.target, true
}

// Snapshot returns the current session state and counters
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:           s.state,
		Reason:          s.reason,
		TargetFPS:       s.rate.FPS,
		AchievedFPS:     s.achieved,
		Crop:            s.rate.Crop.String(),
		DisplayMode:     string(s.mode),
		Misses:          s.misses,
		FramesRendered:  s.frames,
		TransientErrors: s.transient,
	}
	if s.target != nil {
		t := *s.target
		snap.Target = &t
	}
	return snap
}

// SelectTarget stores the window to mirror. Only valid while Selecting.
func (s *Session) SelectTarget(h window.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSelecting {
		return fmt.Errorf("%w: cannot select a target while %s", ErrInvalidState, s.state)
	}
	s.target = &h
	s.misses = 0

	logger.WithComponent("session").Info().
		Uint32("window_id", h.ID).
		Str("title", h.Title).
		Msg("Target selected")
	return nil
}

// Start begins mirroring the selected target
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateSelecting {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidState, st)
	}
	if s.target == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: no target selected", ErrInvalidState)
	}
	s.transition(StateRunning, ReasonNone)
	s.mu.Unlock()

	s.publishStatus()
	return nil
}

// TogglePause switches between Running and Paused; it does nothing in other states
func (s *Session) TogglePause() {
	s.mu.Lock()
	switch s.state {
	case StateRunning:
		s.transition(StatePaused, ReasonNone)
	case StatePaused:
		s.transition(StateRunning, ReasonNone)
		s.meter.Reset()
	default:
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.publishStatus()
}

// Stop ends the session. Stopping a finished session has no effect.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.transition(StateStopped, ReasonNone)
}

func (s *Session) fail(reason Reason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.transition(StateFailed, reason)
}

// transition moves to state to and notifies subscribers. Caller holds s.mu.
func (s *Session) transition(to State, reason Reason) {
	from := s.state
	s.state = to
	s.reason = reason

	ev := logger.WithComponent("session").Info()
	if to == StateFailed {
		ev = logger.WithComponent("session").Warn()
	}
	ev.Str("from", from.String()).
		Str("to", to.String()).
		Str("reason", reason.String()).
		Msg("Session state changed")

	change := Change{From: from, To: to, Reason: reason, At: s.opts.Now()}
	for _, listener := range s.listeners {
		select {
		case listener <- change:
		default:
			// Skip if channel is full
		}
	}

	if to.Terminal() && s.wake != nil {
		s.wake()
	}
}

// Subscribe adds a listener for state changes
func (s *Session) Subscribe() chan Change {
	ch := make(chan Change, 10)
	s.mu.Lock()
	s.listeners = append(s.listeners, ch)
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener
func (s *Session) Unsubscribe(ch chan Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, listener := range s.listeners {
		if listener == ch {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

// Send queues cmd for the next tick
func (s *Session) Send(cmd Command) error {
	if st := s.State(); st.Terminal() {
		return fmt.Errorf("%w: session is %s", ErrInvalidState, st)
	}
	select {
	case s.commands <- cmd:
		return nil
	default:
		return fmt.Errorf("command queue full, dropped %s", cmd)
	}
}

// Tick runs one iteration of the mirror loop: resolve, capture, render and
// then drain input. Paused ticks only drain input; ticks after the session
// ended do nothing.
func (s *Session) Tick(ctx context.Context) error {
	switch st := s.State(); {
	case st.Terminal():
		return nil
	case st == StateSelecting:
		return fmt.Errorf("%w: tick while %s", ErrInvalidState, st)
	case st == StateRunning:
		s.grab(ctx)
	}

	s.drainInput(ctx)
	return nil
}

// Run ticks at the configured rate until the session stops or fails, or ctx
// is cancelled. Cancelling ctx stops the session.
func (s *Session) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.state == StateSelecting {
		s.mu.Unlock()
		return fmt.Errorf("%w: run before start", ErrInvalidState)
	}
	s.wake = cancel
	s.mu.Unlock()

	log := logger.WithComponent("session")
	log.Info().
		Int("fps", s.rate.FPS).
		Str("crop", s.rate.Crop.String()).
		Str("display_mode", string(s.opts.DisplayMode)).
		Msg("Mirror loop started")
	defer log.Info().Msg("Mirror loop finished")

	for {
		if s.State().Terminal() {
			return nil
		}

		tok := s.deps.Pacer.BeginTick()
		if err := s.Tick(runCtx); err != nil {
			return err
		}
		wait := s.deps.Pacer.EndTick(tok, s.rate.FPS)

		if err := s.deps.Pacer.Wait(runCtx, wait); err != nil {
			if s.State().Terminal() {
				return nil
			}
			s.Stop()
			return ctx.Err()
		}
	}
}

// grab performs steps 1-4 of a tick: resolve the target, derive the region,
// capture and render
func (s *Session) grab(ctx context.Context) {
	target, ok := s.Target()
	if !ok {
		return
	}

	fresh, live, err := s.deps.Registry.Resolve(ctx, target)
	if err != nil || !live {
		s.miss(target, err)
		return
	}
	s.resolved(fresh)

	region, err := capture.RegionFor(fresh.ID, fresh.Geometry, s.rate.Crop)
	if err != nil {
		s.clearMisses()
		s.transientFailure(err)
		return
	}

	frame, err := s.deps.Source.Capture(ctx, region)
	if err != nil {
		if capture.IsStale(err) {
			// A live registry entry does not outweigh a source that keeps
			// reporting the window gone
			s.miss(fresh, err)
			return
		}
		s.clearMisses()
		s.transientFailure(err)
		return
	}

	s.clearMisses()
	s.present(frame)
}

// miss counts one failed resolve and fails the session once the threshold is reached
func (s *Session) miss(target window.Handle, cause error) {
	s.mu.Lock()
	s.misses++
	misses := s.misses
	lost := misses >= s.opts.MissThreshold && !s.state.Terminal()
	if lost {
		s.transition(StateFailed, ReasonTargetLost)
	}
	s.mu.Unlock()

	ev := logger.WithComponent("session").Debug()
	if lost {
		ev = logger.WithComponent("session").Warn()
	}
	ev.Err(cause).
		Uint32("window_id", target.ID).
		Int("misses", misses).
		Int("threshold", s.opts.MissThreshold).
		Msg("Target did not resolve")
}

// clearMisses resets the miss counter once a grab got past the stale checks
func (s *Session) clearMisses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.misses > 0 {
		logger.WithComponent("session").Debug().
			Int("misses", s.misses).
			Msg("Target reachable again")
	}
	s.misses = 0
}

// resolved stores the refreshed target. The title is only a label; identity
// stays the window id.
func (s *Session) resolved(fresh window.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.WithComponent("session")

	if s.target != nil {
		if s.target.Title != fresh.Title {
			log.Debug().
				Str("old", s.target.Title).
				Str("new", fresh.Title).
				Msg("Target title changed")
		}
		if s.target.Geometry != fresh.Geometry {
			log.Trace().
				Str("geometry", fresh.Geometry.String()).
				Msg("Target geometry changed")
		}
	}
	s.target = &fresh
}

func (s *Session) transientFailure(err error) {
	s.mu.Lock()
	s.transient++
	s.streak++
	streak := s.streak
	s.mu.Unlock()

	log := logger.WithComponent("session")
	log.Debug().Err(err).Msg("Grab failed, retrying next tick")
	if streak%transientWarnEvery == 0 {
		log.Warn().
			Err(err).
			Int("consecutive", streak).
			Msg("Grabs keep failing")
	}
}

// present hands frame to the sink, resizing the surface first in auto mode
func (s *Session) present(frame *capture.Frame) {
	s.mu.Lock()
	if s.state != StateRunning && s.state != StatePaused {
		// Stopped while the grab was in flight
		s.mu.Unlock()
		return
	}
	size := frame.Bounds().Size()
	resize := s.mode == display.ModeAuto && size != s.lastFrame
	s.lastFrame = size
	s.mu.Unlock()

	if resize {
		if err := s.deps.Sink.RequestResize(size.X, size.Y); err != nil {
			if errors.Is(err, display.ErrSinkUnavailable) {
				s.fail(ReasonSinkUnavailable)
				return
			}
			logger.WithComponent("session").Warn().Err(err).Msg("Auto-resize failed")
		}
	}

	if err := s.deps.Sink.Render(frame); err != nil {
		if errors.Is(err, display.ErrSinkUnavailable) {
			s.fail(ReasonSinkUnavailable)
			return
		}
		s.transientFailure(err)
		return
	}

	s.mu.Lock()
	s.frames++
	s.streak = 0
	s.mu.Unlock()

	if fps, ok := s.meter.Frame(); ok {
		s.mu.Lock()
		s.achieved = fps
		s.mu.Unlock()

		logger.WithComponent("session").Info().
			Float64("achieved_fps", fps).
			Int("target_fps", s.rate.FPS).
			Msg("Frame rate")
		s.publishStatus()
	}
}

// drainInput applies every pending sink event and command
func (s *Session) drainInput(ctx context.Context) {
	events := s.deps.Sink.Events()
	for {
		if s.State().Terminal() {
			return
		}
		select {
		case ev, ok := <-events:
			if !ok {
				s.fail(ReasonSinkUnavailable)
				return
			}
			s.handleEvent(ctx, ev)
		case cmd := <-s.commands:
			s.handleCommand(ctx, cmd)
		default:
			return
		}
	}
}

func (s *Session) handleEvent(ctx context.Context, ev display.Event) {
	switch ev.Kind {
	case display.EventQuit, display.EventClose:
		s.Stop()
	case display.EventTogglePause:
		s.TogglePause()
	case display.EventRefresh:
		s.refresh(ctx)
	case display.EventResize:
		s.mu.Lock()
		s.surface = image.Pt(ev.Width, ev.Height)
		switched := s.mode == display.ModeAuto
		if switched {
			s.mode = display.ModeFixed
		}
		s.mu.Unlock()

		if switched {
			logger.WithComponent("session").Info().
				Int("width", ev.Width).
				Int("height", ev.Height).
				Msg("Surface resized by user, switching to fixed display mode")
		}
	}
}

func (s *Session) handleCommand(ctx context.Context, cmd Command) {
	switch cmd {
	case CommandTogglePause:
		s.TogglePause()
	case CommandPause:
		if s.State() == StateRunning {
			s.TogglePause()
		}
	case CommandResume:
		if s.State() == StatePaused {
			s.TogglePause()
		}
	case CommandStop:
		s.Stop()
	case CommandRefresh:
		s.refresh(ctx)
	}
}

// refresh grabs a single frame while paused
func (s *Session) refresh(ctx context.Context) {
	if s.State() != StatePaused {
		return
	}
	s.grab(ctx)
}

// Surface returns the last surface size reported by the sink
func (s *Session) Surface() image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// DisplayMode returns the current display mode
func (s *Session) DisplayMode() display.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) publishStatus() {
	sink, ok := s.deps.Sink.(display.StatusSink)
	if !ok {
		return
	}
	s.mu.Lock()
	st := display.Status{
		Paused:      s.state == StatePaused,
		AchievedFPS: s.achieved,
		TargetFPS:   s.rate.FPS,
	}
	s.mu.Unlock()
	sink.SetStatus(st)
}
