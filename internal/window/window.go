package window

import (
	"context"
	"fmt"
)

// Geometry is a window's rectangle in root (screen) coordinates
type Geometry struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Empty reports whether the geometry has no drawable area
func (g Geometry) Empty() bool {
	return g.Width <= 0 || g.Height <= 0
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", g.Width, g.Height, g.X, g.Y)
}

// Handle identifies one top-level window.
// ID is the identity; Title is a display label only and may change or collide
// with other windows.
type Handle struct {
	ID       uint32   `json:"id"`
	Title    string   `json:"title"`
	Class    string   `json:"class"`
	PID      int      `json:"pid"`
	Geometry Geometry `json:"geometry"`
}

// Label returns a human readable name for listings and logs
func (h Handle) Label() string {
	if h.Title != "" {
		return h.Title
	}
	if h.Class != "" {
		return h.Class
	}
	return fmt.Sprintf("0x%x", h.ID)
}

// Registry enumerates capturable windows and resolves previously selected ones.
// Implementations must be safe for concurrent use.
type Registry interface {
	// List returns visible, non-minimized top-level windows in a stable order.
	List(ctx context.Context) ([]Handle, error)

	// Resolve refreshes h. ok is false when the window no longer exists, is
	// unmapped or minimized. err is reserved for failures of the registry itself.
	Resolve(ctx context.Context, h Handle) (fresh Handle, ok bool, err error)
}

// Filter holds the listing rules applied on top of visibility
type Filter struct {
	MinWidth     int
	MinHeight    int
	RequireTitle bool
	// ExcludePID hides windows owned by this process id, e.g. our own surface
	ExcludePID int
}

// DefaultFilter skips untitled windows and anything 100x100 or smaller
func DefaultFilter() Filter {
	return Filter{MinWidth: 100, MinHeight: 100, RequireTitle: true}
}

// Accept reports whether h passes the filter
func (f Filter) Accept(h Handle) bool {
	if f.ExcludePID > 0 && h.PID == f.ExcludePID {
		return false
	}
	if f.RequireTitle && h.Title == "" {
		return false
	}
	if h.Geometry.Width <= f.MinWidth && f.MinWidth > 0 {
		return false
	}
	if h.Geometry.Height <= f.MinHeight && f.MinHeight > 0 {
		return false
	}
	return true
}

// FindByTitle returns every handle whose title equals title exactly
func FindByTitle(handles []Handle, title string) []Handle {
	var out []Handle
	for _, h := range handles {
		if h.Title == title {
			out = append(out, h)
		}
	}
	return out
}

// FindByID returns the handle with the given id
func FindByID(handles []Handle, id uint32) (Handle, bool) {
	for _, h := range handles {
		if h.ID == id {
			return h, true
		}
	}
	return Handle{}, false
}
