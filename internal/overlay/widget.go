package overlay

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Widget is something drawn on top of a mirrored frame after scaling
type Widget interface {
	// ID returns the unique identifier for this widget instance
	ID() string

	// Render draws the widget onto img. Positions are resolved against
	// img.Bounds() so widgets follow the surface when it is resized.
	Render(img *image.RGBA) error

	// IsEnabled returns whether the widget should be rendered
	IsEnabled() bool

	// SetEnabled sets whether the widget should be rendered
	SetEnabled(enabled bool)
}

// Anchor is the corner of the surface a widget is positioned against
type Anchor int

const (
	TopLeft Anchor = iota
	TopRight
	BottomLeft
	BottomRight
)

func (a Anchor) String() string {
	switch a {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	default:
		return "unknown"
	}
}

// BaseWidget provides common functionality for all widgets
type BaseWidget struct {
	id      string
	enabled bool
	anchor  Anchor
	margin  int
	opacity float64 // 0.0 to 1.0
}

// NewBaseWidget creates a new base widget
func NewBaseWidget(id string, anchor Anchor, margin int, opacity float64) *BaseWidget {
	w := &BaseWidget{
		id:      id,
		enabled: true,
		anchor:  anchor,
		margin:  margin,
	}
	w.SetOpacity(opacity)
	return w
}

// ID returns the widget's unique identifier
func (w *BaseWidget) ID() string {
	return w.id
}

// IsEnabled returns whether the widget should be rendered
func (w *BaseWidget) IsEnabled() bool {
	return w.enabled
}

// SetEnabled sets whether the widget should be rendered
func (w *BaseWidget) SetEnabled(enabled bool) {
	w.enabled = enabled
}

// Opacity returns the widget's opacity
func (w *BaseWidget) Opacity() float64 {
	return w.opacity
}

// SetOpacity sets the widget's opacity (0.0 to 1.0)
func (w *BaseWidget) SetOpacity(opacity float64) {
	if opacity < 0.0 {
		opacity = 0.0
	}
	if opacity > 1.0 {
		opacity = 1.0
	}
	w.opacity = opacity
}

// Place returns the top-left corner for a box of size inside bounds
func (w *BaseWidget) Place(bounds image.Rectangle, size image.Point) image.Point {
	switch w.anchor {
	case TopRight:
		return image.Pt(bounds.Max.X-w.margin-size.X, bounds.Min.Y+w.margin)
	case BottomLeft:
		return image.Pt(bounds.Min.X+w.margin, bounds.Max.Y-w.margin-size.Y)
	case BottomRight:
		return image.Pt(bounds.Max.X-w.margin-size.X, bounds.Max.Y-w.margin-size.Y)
	default:
		return image.Pt(bounds.Min.X+w.margin, bounds.Min.Y+w.margin)
	}
}

// BlendImage composites src onto dst at pt, scaling src's alpha by opacity.
// Parts of src falling outside dst are clipped.
func BlendImage(dst *image.RGBA, src image.Image, pt image.Point, opacity float64) {
	if opacity <= 0 {
		return
	}
	sb := src.Bounds()
	r := image.Rectangle{Min: pt, Max: pt.Add(sb.Size())}
	mask := image.NewUniform(color.Alpha{A: uint8(opacity * 255)})
	draw.DrawMask(dst, r, src, sb.Min, mask, image.Point{}, draw.Over)
}

// DrawRectangle fills r on dst with c at the given opacity
func DrawRectangle(dst *image.RGBA, r image.Rectangle, c color.Color, opacity float64) {
	if opacity <= 0 {
		return
	}
	mask := image.NewUniform(color.Alpha{A: uint8(opacity * 255)})
	draw.DrawMask(dst, r, image.NewUniform(c), image.Point{}, mask, image.Point{}, draw.Over)
}
