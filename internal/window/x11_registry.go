package window

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/bryanchriswhite/WindowMirror/internal/logger"
)

const stateHidden = "_NET_WM_STATE_HIDDEN"

// X11Registry implements Registry on top of an X11 connection using the EWMH
// client list, with a QueryTree fallback for window managers that don't publish one.
type X11Registry struct {
	xu       *xgbutil.XUtil
	root     xproto.Window
	filter   Filter
	mu       sync.Mutex
	excluded map[uint32]struct{}
}

// NewX11Registry connects to the X server named by $DISPLAY
func NewX11Registry(filter Filter) (*X11Registry, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	return &X11Registry{
		xu:       xu,
		root:     xu.RootWin(),
		filter:   filter,
		excluded: make(map[uint32]struct{}),
	}, nil
}

// Close closes the X11 connection
func (r *X11Registry) Close() error {
	r.xu.Conn().Close()
	return nil
}

// Exclude hides the given window ids from List, e.g. our own mirror surface
func (r *X11Registry) Exclude(ids ...uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.excluded[id] = struct{}{}
	}
}

// List returns all visible application windows
func (r *X11Registry) List(ctx context.Context) ([]Handle, error) {
	log := logger.WithComponent("registry")

	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := ewmh.ClientListGet(r.xu)
	if err != nil || len(ids) == 0 {
		log.Debug().Err(err).Msg("List: _NET_CLIENT_LIST unavailable, falling back to QueryTree")
		tree, terr := xproto.QueryTree(r.xu.Conn(), r.root).Reply()
		if terr != nil {
			return nil, fmt.Errorf("failed to query window tree: %w", terr)
		}
		ids = tree.Children
	}

	handles := make([]Handle, 0, len(ids))
	skipped := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := r.excluded[uint32(id)]; ok {
			skipped++
			continue
		}

		h, live, err := r.describe(id)
		if err != nil {
			return nil, err
		}
		if !live || !r.filter.Accept(h) {
			skipped++
			continue
		}
		handles = append(handles, h)
	}

	log.Debug().
		Int("found", len(handles)).
		Int("skipped", skipped).
		Msg("List: summary")

	return handles, nil
}

// Resolve re-reads the window behind h. A destroyed, unmapped or minimized
// window resolves to ok=false.
func (r *X11Registry) Resolve(ctx context.Context, h Handle) (Handle, bool, error) {
	if err := ctx.Err(); err != nil {
		return h, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.describe(xproto.Window(h.ID))
}

// describe reads attributes, geometry and labels for win.
// Protocol errors (BadWindow, BadDrawable) mean the window is gone and are
// reported as live=false; anything else is a connection problem.
func (r *X11Registry) describe(win xproto.Window) (Handle, bool, error) {
	conn := r.xu.Conn()
	h := Handle{ID: uint32(win)}

	attrs, err := xproto.GetWindowAttributes(conn, win).Reply()
	if err != nil {
		return h, false, classify(err)
	}
	if attrs.MapState != xproto.MapStateViewable {
		return h, false, nil
	}

	if states, err := ewmh.WmStateGet(r.xu, win); err == nil {
		for _, s := range states {
			if s == stateHidden {
				return h, false, nil
			}
		}
	}

	geom, err := xproto.GetGeometry(conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return h, false, classify(err)
	}

	// GetGeometry is parent-relative; reparenting window managers put clients
	// inside a frame, so translate to root coordinates.
	origin, err := xproto.TranslateCoordinates(conn, win, r.root, 0, 0).Reply()
	if err != nil {
		return h, false, classify(err)
	}

	h.Geometry = Geometry{
		X:      int(origin.DstX),
		Y:      int(origin.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}

	if title, err := ewmh.WmNameGet(r.xu, win); err == nil && title != "" {
		h.Title = title
	} else if title, err := icccm.WmNameGet(r.xu, win); err == nil {
		h.Title = title
	}
	h.Title = strings.TrimSpace(h.Title)

	if class, err := icccm.WmClassGet(r.xu, win); err == nil {
		if class.Class != "" {
			h.Class = class.Class
		} else {
			h.Class = class.Instance
		}
	}

	if pid, err := ewmh.WmPidGet(r.xu, win); err == nil {
		h.PID = int(pid)
	}

	return h, true, nil
}

// classify turns X protocol errors into "window gone" and passes through the rest
func classify(err error) error {
	var xerr xgb.Error
	if errors.As(err, &xerr) {
		return nil
	}
	return fmt.Errorf("x11 query failed: %w", err)
}
