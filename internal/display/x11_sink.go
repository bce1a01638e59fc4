package display

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xprop"

	"github.com/bryanchriswhite/WindowMirror/internal/capture"
	"github.com/bryanchriswhite/WindowMirror/internal/logger"
	"github.com/bryanchriswhite/WindowMirror/internal/overlay"
)

// X11Sink renders frames into a plain X11 window with PutImage
type X11Sink struct {
	xu     *xgbutil.XUtil
	screen *xproto.ScreenInfo
	win    xproto.Window
	gc     xproto.Gcontext

	wmProtocols  xproto.Atom
	deleteWindow xproto.Atom

	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	size    SizeTracker
	canvas  *Canvas
	status  Status
	gone    bool
	closeMu sync.Once
	buf     []byte
}

// NewX11Sink creates and maps the mirror window
func NewX11Sink(opts Options) (*X11Sink, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	keybind.Initialize(xu)

	s := &X11Sink{
		xu:     xu,
		screen: xu.Screen(),
		events: make(chan Event, EventBuffer),
		done:   make(chan struct{}),
		canvas: NewCanvas(opts.Scaler, overlay.NewHUD(opts.ShowFPS)),
	}

	if err := s.createWindow(opts); err != nil {
		xu.Conn().Close()
		return nil, err
	}

	go s.pump()

	logger.WithComponent("display").Info().
		Int("width", opts.Width).
		Int("height", opts.Height).
		Uint32("window_id", uint32(s.win)).
		Msg("Mirror window created")

	return s, nil
}

func (s *X11Sink) createWindow(opts Options) error {
	conn := s.xu.Conn()
	log := logger.WithComponent("display")

	width, height := max(opts.Width, 1), max(opts.Height, 1)

	win, err := xproto.NewWindowId(conn)
	if err != nil {
		return fmt.Errorf("failed to create window ID: %w", err)
	}
	s.win = win

	mask := uint32(xproto.CwBackPixel | xproto.CwEventMask)
	values := []uint32{
		0x000000, // Black background
		xproto.EventMaskExposure | xproto.EventMaskStructureNotify | xproto.EventMaskKeyPress,
	}

	err = xproto.CreateWindowChecked(
		conn,
		s.screen.RootDepth,
		win,
		s.screen.Root,
		0, 0,
		uint16(width), uint16(height),
		0,
		xproto.WindowClassInputOutput,
		s.screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}
	s.size.current = image.Pt(width, height)

	if err := ewmh.WmNameSet(s.xu, win, opts.Title); err != nil {
		log.Warn().Err(err).Msg("Failed to set _NET_WM_NAME")
	}
	if err := icccm.WmNameSet(s.xu, win, opts.Title); err != nil {
		log.Warn().Err(err).Msg("Failed to set WM_NAME")
	}
	if err := icccm.WmClassSet(s.xu, win, &icccm.WmClass{Instance: "windowmirror", Class: "WindowMirror"}); err != nil {
		log.Warn().Err(err).Msg("Failed to set window class")
	}

	// Ask the window manager for a ClientMessage instead of killing us on close
	if err := icccm.WmProtocolsSet(s.xu, win, []string{"WM_DELETE_WINDOW"}); err != nil {
		log.Warn().Err(err).Msg("Failed to set WM_PROTOCOLS")
	}
	s.wmProtocols, _ = xprop.Atm(s.xu, "WM_PROTOCOLS")
	s.deleteWindow, _ = xprop.Atm(s.xu, "WM_DELETE_WINDOW")

	if err := xproto.MapWindowChecked(conn, win).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}

	gc, err := xproto.NewGcontextId(conn)
	if err != nil {
		return fmt.Errorf("failed to create graphics context ID: %w", err)
	}
	if err := xproto.CreateGCChecked(conn, gc, xproto.Drawable(win), 0, nil).Check(); err != nil {
		return fmt.Errorf("failed to create GC: %w", err)
	}
	s.gc = gc

	return nil
}

// ID returns the mirror window id
func (s *X11Sink) ID() uint32 {
	return uint32(s.win)
}

// Events returns the input event stream
func (s *X11Sink) Events() <-chan Event {
	return s.events
}

// pump turns X events on the mirror window into sink events until the
// connection closes or the window is destroyed
func (s *X11Sink) pump() {
	defer close(s.events)
	log := logger.WithComponent("display")

	for {
		ev, xerr := s.xu.Conn().WaitForEvent()
		if ev == nil && xerr == nil {
			return
		}
		if xerr != nil {
			// Asynchronous errors from unchecked PutImage chunks
			log.Debug().Str("error", xerr.Error()).Msg("X error on mirror connection")
			continue
		}

		switch e := ev.(type) {
		case xproto.KeyPressEvent:
			key := keybind.LookupString(s.xu, e.State, e.Detail)
			if out, ok := KeyEvent(key); ok {
				s.emit(out)
			}

		case xproto.ConfigureNotifyEvent:
			if e.Window != s.win {
				continue
			}
			size := image.Pt(int(e.Width), int(e.Height))
			s.mu.Lock()
			user := s.size.Observe(size)
			s.mu.Unlock()
			if user {
				s.emit(Event{Kind: EventResize, Width: size.X, Height: size.Y})
			}

		case xproto.ExposeEvent:
			if e.Count == 0 {
				s.redraw()
			}

		case xproto.ClientMessageEvent:
			if e.Type == s.wmProtocols && len(e.Data.Data32) > 0 &&
				xproto.Atom(e.Data.Data32[0]) == s.deleteWindow {
				s.emit(Event{Kind: EventClose})
			}

		case xproto.DestroyNotifyEvent:
			if e.Window == s.win {
				s.mu.Lock()
				s.gone = true
				s.mu.Unlock()
				log.Warn().Uint32("window_id", uint32(s.win)).Msg("Mirror window destroyed")
				return
			}
		}
	}
}

// emit delivers ev without blocking the X event loop; events are dropped
// when nobody drains them
func (s *X11Sink) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	default:
		logger.WithComponent("display").Debug().
			Str("event", ev.Kind.String()).
			Msg("Event queue full, dropping event")
	}
}

// Render scales frame into the window
func (s *X11Sink) Render(frame *capture.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gone {
		return ErrSinkUnavailable
	}

	img := s.canvas.Compose(frame, s.size.current)
	return s.putImage(img)
}

// SetStatus updates the HUD and redraws the last frame with it
func (s *X11Sink) SetStatus(st Status) {
	hud := s.canvas.HUD()
	hud.SetPaused(st.Paused)
	hud.SetFPS(st.AchievedFPS, st.TargetFPS)

	s.mu.Lock()
	changed := s.status.Paused != st.Paused
	s.status = st
	s.mu.Unlock()

	if changed {
		s.redraw()
	}
}

func (s *X11Sink) redraw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return
	}
	if err := s.putImage(s.canvas.Redraw(s.size.current)); err != nil {
		logger.WithComponent("display").Debug().Err(err).Msg("Redraw failed")
	}
}

// RequestResize resizes the window, limited to the screen size
func (s *X11Sink) RequestResize(width, height int) error {
	size := FitWithin(image.Pt(width, height), image.Pt(int(s.screen.WidthInPixels), int(s.screen.HeightInPixels)))
	if size.X < 1 || size.Y < 1 {
		return fmt.Errorf("invalid surface size %dx%d", width, height)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return ErrSinkUnavailable
	}
	s.size.Request(size)

	err := xproto.ConfigureWindowChecked(
		s.xu.Conn(),
		s.win,
		xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
		[]uint32{uint32(size.X), uint32(size.Y)},
	).Check()
	if err != nil {
		return s.classify("configure window", err)
	}

	logger.WithComponent("display").Debug().
		Int("width", size.X).
		Int("height", size.Y).
		Msg("Requested mirror resize")
	return nil
}

// putImage converts img to the screen's ZPixmap layout and uploads it in
// chunks that fit the server's maximum request length. Caller holds s.mu.
func (s *X11Sink) putImage(img *image.RGBA) error {
	conn := s.xu.Conn()
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	depth := s.screen.RootDepth

	stride, err := capture.ZPixmapStride(xproto.Setup(conn).PixmapFormats, depth, width)
	if err != nil {
		return err
	}

	if cap(s.buf) < stride*height {
		s.buf = make([]byte, stride*height)
	}
	data := s.buf[:stride*height]
	rgbaToBGRX(data, stride, img)

	// MaximumRequestLength is in 4-byte units and includes the 24-byte header
	maxBytes := int(xproto.Setup(conn).MaximumRequestLength)*4 - 24
	rows := max(maxBytes/stride, 1)

	for y := 0; y < height; y += rows {
		n := min(rows, height-y)
		chunk := data[y*stride : (y+n)*stride]
		last := y+n >= height

		if !last {
			xproto.PutImage(conn, xproto.ImageFormatZPixmap, xproto.Drawable(s.win), s.gc,
				uint16(width), uint16(n), 0, int16(y), 0, depth, chunk)
			continue
		}
		err := xproto.PutImageChecked(conn, xproto.ImageFormatZPixmap, xproto.Drawable(s.win), s.gc,
			uint16(width), uint16(n), 0, int16(y), 0, depth, chunk).Check()
		if err != nil {
			return s.classify("put image", err)
		}
	}
	return nil
}

// classify maps errors caused by our window disappearing to ErrSinkUnavailable
func (s *X11Sink) classify(op string, err error) error {
	var werr xproto.WindowError
	var derr xproto.DrawableError
	if errors.As(err, &werr) || errors.As(err, &derr) {
		s.gone = true
		return fmt.Errorf("%w: %s: %v", ErrSinkUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Close destroys the mirror window and closes the connection
func (s *X11Sink) Close() error {
	s.closeMu.Do(func() {
		close(s.done)

		s.mu.Lock()
		gone := s.gone
		s.gone = true
		s.mu.Unlock()

		conn := s.xu.Conn()
		if s.gc != 0 {
			xproto.FreeGC(conn, s.gc)
		}
		if !gone {
			xproto.DestroyWindow(conn, s.win)
		}
		conn.Sync()
		conn.Close()

		logger.WithComponent("display").Info().Msg("Mirror window closed")
	})
	return nil
}

// rgbaToBGRX writes img into data using the little-endian X11 byte order
func rgbaToBGRX(data []byte, stride int, img *image.RGBA) {
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride:]
		dst := data[y*stride:]
		for x := 0; x < b.Dx(); x++ {
			i := x * 4
			dst[i] = src[i+2]
			dst[i+1] = src[i+1]
			dst[i+2] = src[i]
			dst[i+3] = 0
		}
	}
}
