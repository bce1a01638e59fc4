package display

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"

	"github.com/bryanchriswhite/WindowMirror/internal/capture"
)

// ErrSinkUnavailable means the display surface was destroyed and cannot be
// rendered to again
var ErrSinkUnavailable = errors.New("display surface unavailable")

// EventKind identifies an input event coming from the display surface
type EventKind int

const (
	EventQuit EventKind = iota
	EventTogglePause
	EventResize
	EventClose
	EventRefresh
)

func (k EventKind) String() string {
	switch k {
	case EventQuit:
		return "quit"
	case EventTogglePause:
		return "toggle-pause"
	case EventResize:
		return "resize"
	case EventClose:
		return "close"
	case EventRefresh:
		return "refresh"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one user action on the display surface. Width and Height are set
// for EventResize only.
type Event struct {
	Kind   EventKind
	Width  int
	Height int
}

// Sink is the surface mirrored frames are rendered into
type Sink interface {
	// Render draws frame scaled to the current surface size. The frame is not
	// retained after Render returns. Returns an error wrapping
	// ErrSinkUnavailable once the surface is gone.
	Render(frame *capture.Frame) error

	// Events delivers user input. The channel is closed when the surface is gone.
	Events() <-chan Event

	// RequestResize asks the surface to change size. The resulting resize is
	// not reported back through Events.
	RequestResize(width, height int) error

	// ID returns the surface's window id, or 0 when the backend doesn't expose one
	ID() uint32

	// Close destroys the surface
	Close() error
}

// Status is session information a sink may draw on top of frames
type Status struct {
	Paused      bool
	AchievedFPS float64
	TargetFPS   int
}

// StatusSink is implemented by sinks that draw a HUD
type StatusSink interface {
	SetStatus(Status)
}

// Mode decides who controls the surface size
type Mode string

const (
	// ModeAuto resizes the surface to follow the captured frame size
	ModeAuto Mode = "auto"
	// ModeFixed keeps whatever size the surface has and letterboxes frames into it
	ModeFixed Mode = "fixed"
)

// ParseMode parses a display mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAuto:
		return ModeAuto, nil
	case ModeFixed:
		return ModeFixed, nil
	default:
		return "", fmt.Errorf("invalid display mode %q (want auto or fixed)", s)
	}
}

// Scaler names an interpolation used when fitting frames to the surface
type Scaler string

const (
	ScalerNearest    Scaler = "nearest"
	ScalerBilinear   Scaler = "bilinear"
	ScalerCatmullRom Scaler = "catmullrom"
)

// ParseScaler parses a scaler name
func ParseScaler(s string) (Scaler, error) {
	switch Scaler(strings.ToLower(strings.TrimSpace(s))) {
	case ScalerNearest, "":
		return ScalerNearest, nil
	case ScalerBilinear:
		return ScalerBilinear, nil
	case ScalerCatmullRom:
		return ScalerCatmullRom, nil
	default:
		return "", fmt.Errorf("invalid scaler %q (want nearest, bilinear or catmullrom)", s)
	}
}

// Interpolator returns the x/image/draw implementation of the scaler
func (s Scaler) Interpolator() draw.Interpolator {
	switch s {
	case ScalerBilinear:
		return draw.ApproxBiLinear
	case ScalerCatmullRom:
		return draw.CatmullRom
	default:
		return draw.NearestNeighbor
	}
}

// EventBuffer is the capacity of a sink's event channel
const EventBuffer = 32

// Options configures a display sink
type Options struct {
	Title   string
	Width   int
	Height  int
	Scaler  Scaler
	ShowFPS bool
}

// DefaultOptions returns a 1280x720 surface with nearest-neighbour scaling
func DefaultOptions() Options {
	return Options{
		Title:  "WindowMirror",
		Width:  1280,
		Height: 720,
		Scaler: ScalerNearest,
	}
}

// Fit returns the largest rectangle with frame's aspect ratio centred in view
func Fit(view, frame image.Point) image.Rectangle {
	if view.X <= 0 || view.Y <= 0 || frame.X <= 0 || frame.Y <= 0 {
		return image.Rectangle{}
	}

	// Compare view.X/frame.X with view.Y/frame.Y without floating point
	var w, h int
	if view.X*frame.Y <= view.Y*frame.X {
		w = view.X
		h = frame.Y * view.X / frame.X
	} else {
		h = view.Y
		w = frame.X * view.Y / frame.Y
	}
	w = max(w, 1)
	h = max(h, 1)

	x := (view.X - w) / 2
	y := (view.Y - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// FitWithin scales size down, keeping its aspect ratio, so it is no larger than
// limit. Sizes that already fit are returned unchanged.
func FitWithin(size, limit image.Point) image.Point {
	if limit.X <= 0 || limit.Y <= 0 || (size.X <= limit.X && size.Y <= limit.Y) {
		return size
	}
	return Fit(limit, size).Size()
}

// keyActions maps key names as reported by keybind.LookupString and the ebiten
// key table to events
var keyActions = map[string]EventKind{
	"q":      EventQuit,
	"Q":      EventQuit,
	"Escape": EventQuit,
	"p":      EventTogglePause,
	"P":      EventTogglePause,
	"space":  EventTogglePause,
	"r":      EventRefresh,
	"R":      EventRefresh,
}

// KeyEvent maps a key name to its event, if it has one
func KeyEvent(key string) (Event, bool) {
	kind, ok := keyActions[key]
	if !ok {
		return Event{}, false
	}
	return Event{Kind: kind}, true
}

// SizeTracker tells surface resizes requested by the session apart from ones
// made by the user
type SizeTracker struct {
	current image.Point
	pending *image.Point
}

// NewSizeTracker starts tracking a surface of the given size
func NewSizeTracker(size image.Point) SizeTracker {
	return SizeTracker{current: size}
}

// Current returns the last observed size
func (t *SizeTracker) Current() image.Point {
	return t.current
}

// Request records a resize asked for by the session
func (t *SizeTracker) Request(size image.Point) {
	if size == t.current {
		t.pending = nil
		return
	}
	t.pending = &size
}

// Observe records a surface size change and reports whether it was a user resize
func (t *SizeTracker) Observe(size image.Point) bool {
	if size == t.current {
		return false
	}
	t.current = size
	if t.pending != nil && *t.pending == size {
		t.pending = nil
		return false
	}
	return true
}
