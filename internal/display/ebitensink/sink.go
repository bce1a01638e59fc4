// Package ebitensink renders the mirror through Ebitengine, for desktops where
// the plain X11 surface is not wanted.
package ebitensink

import (
	"image"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/bryanchriswhite/WindowMirror/internal/capture"
	"github.com/bryanchriswhite/WindowMirror/internal/display"
	"github.com/bryanchriswhite/WindowMirror/internal/logger"
	"github.com/bryanchriswhite/WindowMirror/internal/overlay"
)

// ebitenKeys are the keys polled each update, named like keybind.LookupString does
var ebitenKeys = map[ebiten.Key]string{
	ebiten.KeyQ:      "q",
	ebiten.KeyEscape: "Escape",
	ebiten.KeyP:      "p",
	ebiten.KeySpace:  "space",
	ebiten.KeyR:      "r",
}

// Sink renders frames with Ebitengine. The game loop owns the main
// goroutine, so the session driving it must run elsewhere.
type Sink struct {
	opts display.Options
	hud  *overlay.HUD

	mu      sync.Mutex
	frame   *image.RGBA
	size    display.SizeTracker
	resize  *image.Point
	closing bool
	gone    bool

	events   chan display.Event
	done     chan struct{}
	doneOnce sync.Once

	frameImage *ebiten.Image
	hudLayer   *image.RGBA
	hudImage   *ebiten.Image
}

var (
	_ display.Sink       = (*Sink)(nil)
	_ display.StatusSink = (*Sink)(nil)
)

// New creates a sink; call Run from the main goroutine to open the window
func New(opts display.Options) *Sink {
	return &Sink{
		opts:   opts,
		hud:    overlay.NewHUD(opts.ShowFPS),
		size:   display.NewSizeTracker(image.Pt(max(opts.Width, 1), max(opts.Height, 1))),
		events: make(chan display.Event, display.EventBuffer),
		done:   make(chan struct{}),
	}
}

// Run starts the Ebitengine game loop and blocks until the sink is closed
func (d *Sink) Run() error {
	ebiten.SetWindowSize(d.size.Current().X, d.size.Current().Y)
	ebiten.SetWindowTitle(d.opts.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)

	err := ebiten.RunGame(d)

	d.mu.Lock()
	d.gone = true
	d.mu.Unlock()
	d.finish()

	if err == ebiten.Termination {
		return nil
	}
	return err
}

func (d *Sink) finish() {
	d.doneOnce.Do(func() {
		close(d.done)
		close(d.events)
	})
}

// ID returns 0: Ebitengine does not expose the native window. The registry
// excludes the surface by process id instead.
func (d *Sink) ID() uint32 {
	return 0
}

// Events returns the input event stream
func (d *Sink) Events() <-chan display.Event {
	return d.events
}

// emit runs on the game loop goroutine, which is also the one that closes events
func (d *Sink) emit(ev display.Event) {
	select {
	case <-d.done:
		return
	default:
	}
	select {
	case d.events <- ev:
	default:
		logger.WithComponent("display").Debug().
			Str("event", ev.Kind.String()).
			Msg("Event queue full, dropping event")
	}
}

// Render stores a private copy of frame for the next Draw
func (d *Sink) Render(frame *capture.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.gone {
		return display.ErrSinkUnavailable
	}
	if d.frame == nil || d.frame.Bounds().Size() != frame.Bounds().Size() {
		d.frame = image.NewRGBA(frame.Bounds())
	}
	frame.CopyTo(d.frame)
	return nil
}

// SetStatus updates the HUD
func (d *Sink) SetStatus(st display.Status) {
	d.hud.SetPaused(st.Paused)
	d.hud.SetFPS(st.AchievedFPS, st.TargetFPS)
}

// RequestResize applies the new window size on the next update
func (d *Sink) RequestResize(width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gone {
		return display.ErrSinkUnavailable
	}
	size := image.Pt(width, height)
	d.resize = &size
	return nil
}

// Close ends the game loop
func (d *Sink) Close() error {
	d.mu.Lock()
	d.closing = true
	d.mu.Unlock()
	return nil
}

// --- ebiten.Game interface ---

func (d *Sink) Update() error {
	d.mu.Lock()
	closing := d.closing
	resize := d.resize
	d.resize = nil
	d.mu.Unlock()

	if closing {
		return ebiten.Termination
	}

	if resize != nil {
		mw, mh := ebiten.Monitor().Size()
		size := display.FitWithin(*resize, image.Pt(mw, mh))
		d.mu.Lock()
		d.size.Request(size)
		d.mu.Unlock()
		ebiten.SetWindowSize(size.X, size.Y)
	}

	if ebiten.IsWindowBeingClosed() {
		d.emit(display.Event{Kind: display.EventClose})
	}

	for key, name := range ebitenKeys {
		if inpututil.IsKeyJustPressed(key) {
			if ev, ok := display.KeyEvent(name); ok {
				d.emit(ev)
			}
		}
	}
	return nil
}

func (d *Sink) Draw(screen *ebiten.Image) {
	d.mu.Lock()
	frame := d.frame
	if frame != nil && (d.frameImage == nil || d.frameImage.Bounds().Size() != frame.Bounds().Size()) {
		d.frameImage = ebiten.NewImage(frame.Bounds().Dx(), frame.Bounds().Dy())
	}
	if frame != nil {
		d.frameImage.WritePixels(frame.Pix)
	}
	d.mu.Unlock()

	view := screen.Bounds().Size()

	if frame != nil {
		dst := display.Fit(view, frame.Bounds().Size())
		sx := float64(dst.Dx()) / float64(frame.Bounds().Dx())
		sy := float64(dst.Dy()) / float64(frame.Bounds().Dy())

		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(sx, sy)
		op.GeoM.Translate(float64(dst.Min.X), float64(dst.Min.Y))
		if d.opts.Scaler != display.ScalerNearest {
			op.Filter = ebiten.FilterLinear
		}
		screen.DrawImage(d.frameImage, op)
	}

	d.drawHUD(screen, view)
}

// drawHUD renders the overlay into a transparent layer the size of the screen
func (d *Sink) drawHUD(screen *ebiten.Image, view image.Point) {
	if d.hudLayer == nil || d.hudLayer.Bounds().Size() != view {
		d.hudLayer = image.NewRGBA(image.Rectangle{Max: view})
		d.hudImage = ebiten.NewImage(view.X, view.Y)
	} else {
		clear(d.hudLayer.Pix)
	}
	_ = d.hud.Render(d.hudLayer)
	d.hudImage.WritePixels(d.hudLayer.Pix)
	screen.DrawImage(d.hudImage, nil)
}

func (d *Sink) Layout(outsideWidth, outsideHeight int) (int, int) {
	size := image.Pt(outsideWidth, outsideHeight)
	d.mu.Lock()
	user := d.size.Observe(size)
	d.mu.Unlock()
	if user {
		d.emit(display.Event{Kind: display.EventResize, Width: size.X, Height: size.Y})
	}
	return outsideWidth, outsideHeight
}
