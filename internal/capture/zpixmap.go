package capture

import (
	"errors"
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/xproto"
)

// ZPixmapStride returns the padded scanline length of a ZPixmap image of the
// given depth. Only 32 bpp layouts are supported.
func ZPixmapStride(formats []xproto.Format, depth byte, width int) (int, error) {
	for _, format := range formats {
		if format.Depth != depth {
			continue
		}
		if format.BitsPerPixel != 32 {
			return 0, fmt.Errorf("unsupported pixmap format: depth %d at %d bpp", depth, format.BitsPerPixel)
		}
		pad := max(int(format.ScanlinePad)/8, 1)
		return ((width*4 + pad - 1) / pad) * pad, nil
	}
	return 0, fmt.Errorf("no pixmap format for depth %d", depth)
}

// errShortReply marks an image reply with fewer bytes than its geometry needs
var errShortReply = errors.New("short image reply")

// fallsBackToScreen reports whether a failed grab of a viewable window should
// be retried from the root window. BadMatch (drawable not readable, e.g. a
// different visual or depth) and truncated replies qualify; a vanished window
// does not.
func fallsBackToScreen(err error) bool {
	if err == nil {
		return false
	}
	var werr xproto.WindowError
	var derr xproto.DrawableError
	if errors.As(err, &werr) || errors.As(err, &derr) {
		return false
	}
	var merr xproto.MatchError
	return errors.As(err, &merr) || errors.Is(err, errShortReply)
}

// screenRect clips a root-space region to the root window. The result is
// empty when the region lies entirely off screen.
func screenRect(region Region, root image.Point) image.Rectangle {
	return region.Screen.Intersect(image.Rectangle{Max: root})
}
