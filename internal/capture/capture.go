package capture

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/bryanchriswhite/WindowMirror/internal/window"
)

var (
	// ErrTargetStale means the window behind a region is gone, unmapped or
	// minimized. It stays stale until a new target is selected.
	ErrTargetStale = errors.New("capture target is stale")

	// ErrTransientGrab means this grab failed but the next one may succeed
	ErrTransientGrab = errors.New("transient grab failure")
)

// Source grabs pixels from a window without activating, focusing or
// restacking it.
type Source interface {
	// Capture grabs region. Failures wrap ErrTargetStale or ErrTransientGrab.
	Capture(ctx context.Context, region Region) (*Frame, error)

	// Name returns a human-readable name for this source
	Name() string

	// Close releases the underlying connection
	Close() error
}

// IsStale reports whether err means the capture target is permanently gone
func IsStale(err error) bool {
	return errors.Is(err, ErrTargetStale)
}

// IsTransient reports whether err is a retryable grab failure
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientGrab)
}

// PixelFormat is the byte order of one 4-byte pixel in Frame.Pix
type PixelFormat int

const (
	// FormatBGRA is what X11 ZPixmap images carry on little-endian 24/32-bit visuals
	FormatBGRA PixelFormat = iota
	FormatRGBA
)

func (f PixelFormat) String() string {
	switch f {
	case FormatBGRA:
		return "BGRA"
	case FormatRGBA:
		return "RGBA"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// Frame is one captured image. It belongs to the tick that produced it and
// must not be retained after rendering.
type Frame struct {
	Width  int
	Height int
	Stride int
	Format PixelFormat
	Pix    []byte
}

// Bounds returns the frame rectangle anchored at the origin
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// RGBA converts the frame into an opaque RGBA image
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(f.Bounds())
	f.CopyTo(img)
	return img
}

// CopyTo writes the frame into dst, which must be at least Width x Height.
// Alpha is forced to 255 since X11 leaves the padding byte undefined.
func (f *Frame) CopyTo(dst *image.RGBA) {
	for y := 0; y < f.Height; y++ {
		src := f.Pix[y*f.Stride:]
		out := dst.Pix[y*dst.Stride:]
		for x := 0; x < f.Width; x++ {
			i := x * 4
			if i+3 >= len(src) || i+3 >= len(out) {
				break
			}
			switch f.Format {
			case FormatBGRA:
				out[i] = src[i+2]
				out[i+1] = src[i+1]
				out[i+2] = src[i]
			default:
				out[i] = src[i]
				out[i+1] = src[i+1]
				out[i+2] = src[i+2]
			}
			out[i+3] = 0xff
		}
	}
}

// CropPolicy decides which part of the window is captured
type CropPolicy struct {
	// TitleBar is the number of pixels removed from the top of the window.
	// Zero captures the full window.
	TitleBar int
}

// NoCrop captures the whole window
func NoCrop() CropPolicy {
	return CropPolicy{}
}

// ExcludeTitleBar removes height pixels from the top of the window
func ExcludeTitleBar(height int) CropPolicy {
	if height < 0 {
		height = 0
	}
	return CropPolicy{TitleBar: height}
}

// ExcludesTitleBar reports whether the policy crops anything
func (p CropPolicy) ExcludesTitleBar() bool {
	return p.TitleBar > 0
}

func (p CropPolicy) String() string {
	if p.TitleBar <= 0 {
		return "none"
	}
	return fmt.Sprintf("exclude-title-bar(%dpx)", p.TitleBar)
}

// Region is the part of one window to grab
type Region struct {
	// Window is the X11 id of the target
	Window uint32
	// Offset is the top-left of the grab relative to the window's own origin
	Offset image.Point
	// Screen is the same rectangle in root coordinates
	Screen image.Rectangle
}

// Width of the grab in pixels
func (r Region) Width() int { return r.Screen.Dx() }

// Height of the grab in pixels
func (r Region) Height() int { return r.Screen.Dy() }

// EffectiveCrop clamps a requested title bar height against a window height
// so at least one row is always left: clamp(t, 0, h-1).
func EffectiveCrop(h, t int) int {
	if t < 0 {
		return 0
	}
	if h-1 < t {
		t = h - 1
	}
	if t < 0 {
		return 0
	}
	return t
}

// RegionFor derives the grab region for a window from its current geometry.
// A geometry with no area yields an ErrTransientGrab error instead of a region.
func RegionFor(id uint32, geom window.Geometry, policy CropPolicy) (Region, error) {
	if geom.Empty() {
		return Region{}, fmt.Errorf("%w: window 0x%x has no area (%s)", ErrTransientGrab, id, geom)
	}

	crop := EffectiveCrop(geom.Height, policy.TitleBar)
	height := geom.Height - crop
	if height < 1 {
		height = 1
	}

	return Region{
		Window: id,
		Offset: image.Pt(0, crop),
		Screen: image.Rect(geom.X, geom.Y+crop, geom.X+geom.Width, geom.Y+crop+height),
	}, nil
}
