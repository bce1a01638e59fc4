package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/bryanchriswhite/WindowMirror/internal/capture"
	"github.com/bryanchriswhite/WindowMirror/internal/window"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// session's current state
	ErrInvalidState = errors.New("invalid session state")

	// ErrSurfaceBusy is returned by Host when another session is already
	// mirroring into the same display surface
	ErrSurfaceBusy = errors.New("display surface already in use")

	// ErrInvalidRate is returned by New for a non-positive frame rate
	ErrInvalidRate = errors.New("invalid rate config")
)

// State is the lifecycle state of a session
type State int

const (
	StateSelecting State = iota
	StateRunning
	StatePaused
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSelecting:
		return "selecting"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reason explains a Failed state
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonTargetLost means the mirrored window stayed unresolvable past the miss threshold
	ReasonTargetLost
	// ReasonSinkUnavailable means the display surface was destroyed
	ReasonSinkUnavailable
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonTargetLost:
		return "target-lost"
	case ReasonSinkUnavailable:
		return "sink-unavailable"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// MarshalText encodes the reason by name
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Presets are the recommended frame rates
var Presets = []int{60, 120, 144}

// MaxFPS is the highest accepted frame rate
const MaxFPS = 240

// RateConfig is fixed for the lifetime of a session
type RateConfig struct {
	FPS  int
	Crop capture.CropPolicy
}

// Validate checks that the frame rate is usable
func (c RateConfig) Validate() error {
	if c.FPS <= 0 {
		return fmt.Errorf("%w: fps must be positive, got %d", ErrInvalidRate, c.FPS)
	}
	if c.FPS > MaxFPS {
		return fmt.Errorf("%w: fps must be at most %d, got %d", ErrInvalidRate, MaxFPS, c.FPS)
	}
	return nil
}

// Change is one state transition, delivered to subscribers
type Change struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	Reason Reason    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// Snapshot is a point-in-time view of a session
type Snapshot struct {
	State           State          `json:"state"`
	Reason          Reason         `json:"reason,omitempty"`
	Target          *window.Handle `json:"target,omitempty"`
	TargetFPS       int            `json:"target_fps"`
	AchievedFPS     float64        `json:"achieved_fps"`
	Crop            string         `json:"crop"`
	DisplayMode     string         `json:"display_mode"`
	Misses          int            `json:"misses"`
	FramesRendered  uint64         `json:"frames_rendered"`
	TransientErrors uint64         `json:"transient_errors"`
}
