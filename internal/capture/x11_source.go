package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/WindowMirror/internal/logger"
)

// X11Source grabs window contents through the Composite extension so that
// obscured windows still produce their own pixels. Nothing here maps, raises or
// focuses the target.
type X11Source struct {
	conn             *xgb.Conn
	screen           *xproto.ScreenInfo
	compositeEnabled bool
	mu               sync.Mutex
	redirected       map[xproto.Window]struct{}
}

// NewX11Source connects to the X server and initializes Composite if present
func NewX11Source() (*X11Source, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	s := &X11Source{
		conn:       conn,
		screen:     xproto.Setup(conn).DefaultScreen(conn),
		redirected: make(map[xproto.Window]struct{}),
	}

	log := logger.WithComponent("x11-source")
	if err := composite.Init(conn); err != nil {
		log.Warn().
			Err(err).
			Msg("Composite extension not available - obscured windows will capture whatever covers them")
	} else {
		s.compositeEnabled = true
		log.Info().Msg("Composite extension initialized")
	}

	return s, nil
}

// Name returns the source name
func (s *X11Source) Name() string {
	return "X11"
}

// Close releases redirections and closes the X11 connection
func (s *X11Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for win := range s.redirected {
		composite.UnredirectWindow(s.conn, win, composite.RedirectAutomatic)
	}
	s.redirected = make(map[xproto.Window]struct{})
	s.conn.Close()
	return nil
}

// Capture grabs region from its window's backing pixmap
func (s *X11Source) Capture(ctx context.Context, region Region) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientGrab, err)
	}
	if region.Width() < 1 || region.Height() < 1 {
		return nil, fmt.Errorf("%w: empty region %v", ErrTransientGrab, region.Screen)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	win := xproto.Window(region.Window)
	log := logger.WithComponent("x11-source")

	attrs, err := xproto.GetWindowAttributes(s.conn, win).Reply()
	if err != nil {
		return nil, s.classify(win, "get window attributes", err)
	}
	if attrs.MapState != xproto.MapStateViewable {
		// Minimized and withdrawn windows are unmapped on X11
		return nil, fmt.Errorf("%w: window 0x%x is not viewable (map state %d)", ErrTargetStale, region.Window, attrs.MapState)
	}

	geom, err := xproto.GetGeometry(s.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return nil, s.classify(win, "get window geometry", err)
	}

	// The region may lag one resize behind the window; never ask for pixels
	// outside the drawable or the server answers BadMatch.
	width := min(region.Width(), int(geom.Width)-region.Offset.X)
	height := min(region.Height(), int(geom.Height)-region.Offset.Y)
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: region %v outside %dx%d window", ErrTransientGrab, region.Screen, geom.Width, geom.Height)
	}

	drawable, release := s.backingDrawable(win)
	defer release()

	frame, err := s.getImage(drawable, region.Offset, width, height)
	if fallsBackToScreen(err) {
		log.Debug().
			Err(err).
			Uint32("window_id", region.Window).
			Msg("Direct grab failed, capturing the window's screen area")
		return s.captureScreen(region)
	}
	if err != nil {
		return nil, s.classify(win, "get image", err)
	}

	log.Trace().
		Uint32("window_id", region.Window).
		Int("width", width).
		Int("height", height).
		Int("offset_y", region.Offset.Y).
		Msg("Captured region")

	return frame, nil
}

// captureScreen grabs region.Screen from the root window. The result shows
// whatever is on screen there, so windows covering the target end up in it.
func (s *X11Source) captureScreen(region Region) (*Frame, error) {
	root := image.Pt(int(s.screen.WidthInPixels), int(s.screen.HeightInPixels))
	r := screenRect(region, root)
	if r.Empty() {
		return nil, fmt.Errorf("%w: window 0x%x is off screen", ErrTransientGrab, region.Window)
	}

	frame, err := s.getImage(xproto.Drawable(s.screen.Root), r.Min, r.Dx(), r.Dy())
	if err != nil {
		return nil, fmt.Errorf("%w: screen grab: %v", ErrTransientGrab, err)
	}
	return frame, nil
}

// getImage reads a ZPixmap from drawable. A reply too short for the requested
// size wraps errShortReply.
func (s *X11Source) getImage(drawable xproto.Drawable, at image.Point, width, height int) (*Frame, error) {
	reply, err := xproto.GetImage(
		s.conn,
		xproto.ImageFormatZPixmap,
		drawable,
		int16(at.X), int16(at.Y),
		uint16(width), uint16(height),
		0xffffffff,
	).Reply()
	if err != nil {
		return nil, err
	}

	stride, err := ZPixmapStride(xproto.Setup(s.conn).PixmapFormats, reply.Depth, width)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientGrab, err)
	}
	if len(reply.Data) < stride*height {
		return nil, fmt.Errorf("%w (%d bytes, want %d)", errShortReply, len(reply.Data), stride*height)
	}

	return &Frame{
		Width:  width,
		Height: height,
		Stride: stride,
		Format: FormatBGRA,
		Pix:    reply.Data,
	}, nil
}

// backingDrawable returns the composite pixmap for win when available, the
// window itself otherwise. The returned func frees whatever was allocated.
func (s *X11Source) backingDrawable(win xproto.Window) (xproto.Drawable, func()) {
	noop := func() {}
	if !s.compositeEnabled {
		return xproto.Drawable(win), noop
	}

	log := logger.WithComponent("x11-source")

	if _, ok := s.redirected[win]; !ok {
		// Automatic redirection may be shared with a running compositor
		if err := composite.RedirectWindowChecked(s.conn, win, composite.RedirectAutomatic).Check(); err != nil {
			log.Debug().
				Err(err).
				Uint32("window_id", uint32(win)).
				Msg("Composite redirect failed, capturing window drawable directly")
			return xproto.Drawable(win), noop
		}
		s.redirected[win] = struct{}{}
	}

	// The named pixmap is invalidated by every resize, so name it per grab
	pixmap, err := xproto.NewPixmapId(s.conn)
	if err != nil {
		return xproto.Drawable(win), noop
	}
	if err := composite.NameWindowPixmapChecked(s.conn, win, pixmap).Check(); err != nil {
		log.Debug().
			Err(err).
			Uint32("window_id", uint32(win)).
			Msg("NameWindowPixmap failed, capturing window drawable directly")
		return xproto.Drawable(win), noop
	}

	return xproto.Drawable(pixmap), func() {
		xproto.FreePixmap(s.conn, pixmap)
	}
}

// classify maps X protocol errors on win to ErrTargetStale when the window is
// gone and to ErrTransientGrab otherwise
func (s *X11Source) classify(win xproto.Window, op string, err error) error {
	var werr xproto.WindowError
	var derr xproto.DrawableError
	if errors.As(err, &werr) || errors.As(err, &derr) {
		delete(s.redirected, win)
		return fmt.Errorf("%w: %s: %v", ErrTargetStale, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrTransientGrab, op, err)
}
