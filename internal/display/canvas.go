package display

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/bryanchriswhite/WindowMirror/internal/capture"
	"github.com/bryanchriswhite/WindowMirror/internal/overlay"
)

// Canvas letterboxes frames into a surface-sized image and draws the HUD on
// top. Buffers are reused between frames; the last source frame is kept as a
// private copy so the surface can be redrawn without a new capture.
type Canvas struct {
	scaler draw.Interpolator
	hud    *overlay.HUD
	src    *image.RGBA
	out    *image.RGBA
}

// NewCanvas creates a canvas using scaler for resampling
func NewCanvas(scaler Scaler, hud *overlay.HUD) *Canvas {
	return &Canvas{
		scaler: scaler.Interpolator(),
		hud:    hud,
	}
}

// HUD returns the overlay drawn on top of frames
func (c *Canvas) HUD() *overlay.HUD {
	return c.hud
}

// Compose copies frame and renders it into an image of the given size
func (c *Canvas) Compose(frame *capture.Frame, size image.Point) *image.RGBA {
	if c.src == nil || c.src.Bounds().Size() != frame.Bounds().Size() {
		c.src = image.NewRGBA(frame.Bounds())
	}
	frame.CopyTo(c.src)
	return c.Redraw(size)
}

// Redraw renders the last composed frame at size. With no frame yet the
// result is black with the HUD only.
func (c *Canvas) Redraw(size image.Point) *image.RGBA {
	if size.X < 1 || size.Y < 1 {
		size = image.Pt(1, 1)
	}
	if c.out == nil || c.out.Bounds().Size() != size {
		c.out = image.NewRGBA(image.Rectangle{Max: size})
	}

	draw.Draw(c.out, c.out.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	if c.src != nil {
		dst := Fit(size, c.src.Bounds().Size())
		if dst.Size() == c.src.Bounds().Size() {
			draw.Draw(c.out, dst, c.src, image.Point{}, draw.Src)
		} else {
			c.scaler.Scale(c.out, dst, c.src, c.src.Bounds(), draw.Src, nil)
		}
	}

	if c.hud != nil {
		_ = c.hud.Render(c.out)
	}
	return c.out
}
