package overlay

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextWidget displays a single line of text in a corner of the surface
type TextWidget struct {
	*BaseWidget
	text      string
	textColor color.RGBA
	bgColor   *color.RGBA // Optional background color
	padding   int
}

// TextOptions configures a TextWidget
type TextOptions struct {
	Anchor     Anchor
	Margin     int
	Opacity    float64
	Padding    int
	Color      color.RGBA
	Background *color.RGBA
}

// DefaultTextOptions is white text on a translucent black box in the top-left corner
func DefaultTextOptions() TextOptions {
	return TextOptions{
		Anchor:     TopLeft,
		Margin:     8,
		Opacity:    1.0,
		Padding:    5,
		Color:      color.RGBA{255, 255, 255, 255},
		Background: &color.RGBA{0, 0, 0, 160},
	}
}

// NewTextWidget creates a new text widget
func NewTextWidget(id, text string, opts TextOptions) *TextWidget {
	return &TextWidget{
		BaseWidget: NewBaseWidget(id, opts.Anchor, opts.Margin, opts.Opacity),
		text:       text,
		textColor:  opts.Color,
		bgColor:    opts.Background,
		padding:    opts.Padding,
	}
}

// face is the only font available without shipping font files
var face = basicfont.Face7x13

// Size returns the widget's box including padding
func (w *TextWidget) Size() image.Point {
	d := &font.Drawer{Face: face}
	width := d.MeasureString(w.text).Ceil()
	return image.Pt(width+w.padding*2, face.Height+w.padding*2)
}

// Render draws the text widget
func (w *TextWidget) Render(img *image.RGBA) error {
	if !w.IsEnabled() || w.text == "" {
		return nil
	}

	size := w.Size()
	origin := w.Place(img.Bounds(), size)

	if w.bgColor != nil {
		DrawRectangle(img, image.Rectangle{Min: origin, Max: origin.Add(size)}, *w.bgColor, w.opacity)
	}

	// Render into a scratch image so the text can be blended with opacity
	textImg := image.NewRGBA(image.Rect(0, 0, size.X-w.padding*2, face.Height))
	d := &font.Drawer{
		Dst:  textImg,
		Src:  image.NewUniform(w.textColor),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: fixed.I(face.Ascent)},
	}
	d.DrawString(w.text)

	BlendImage(img, textImg, origin.Add(image.Pt(w.padding, w.padding)), w.opacity)
	return nil
}

// SetText updates the text content
func (w *TextWidget) SetText(text string) {
	w.text = text
}

// Text returns the current text
func (w *TextWidget) Text() string {
	return w.text
}

// SetColor sets the text color
func (w *TextWidget) SetColor(c color.RGBA) {
	w.textColor = c
}

// SetBackground sets the background color (nil for transparent)
func (w *TextWidget) SetBackground(c *color.RGBA) {
	w.bgColor = c
}
