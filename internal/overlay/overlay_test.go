package overlay

import (
	"image"
	"testing"
)

func TestPlace(t *testing.T) {
	bounds := image.Rect(0, 0, 200, 100)
	size := image.Pt(50, 20)

	tests := []struct {
		anchor Anchor
		want   image.Point
	}{
		{TopLeft, image.Pt(8, 8)},
		{TopRight, image.Pt(142, 8)},
		{BottomLeft, image.Pt(8, 72)},
		{BottomRight, image.Pt(142, 72)},
	}

	for _, tt := range tests {
		t.Run(tt.anchor.String(), func(t *testing.T) {
			w := NewBaseWidget("x", tt.anchor, 8, 1)
			if got := w.Place(bounds, size); got != tt.want {
				t.Errorf("Place() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetOpacityClamps(t *testing.T) {
	w := NewBaseWidget("x", TopLeft, 0, 3)
	if w.Opacity() != 1 {
		t.Errorf("opacity = %v, want 1", w.Opacity())
	}
	w.SetOpacity(-1)
	if w.Opacity() != 0 {
		t.Errorf("opacity = %v, want 0", w.Opacity())
	}
}

func TestManagerRejectsDuplicateIDs(t *testing.T) {
	m := NewManager()
	if err := m.AddWidget(NewTextWidget("a", "one", DefaultTextOptions())); err != nil {
		t.Fatalf("AddWidget: %v", err)
	}
	if err := m.AddWidget(NewTextWidget("a", "two", DefaultTextOptions())); err == nil {
		t.Error("AddWidget with duplicate ID succeeded")
	}
	if err := m.AddWidget(NewTextWidget("b", "three", DefaultTextOptions())); err != nil {
		t.Fatalf("AddWidget: %v", err)
	}

	ws := m.Widgets()
	if len(ws) != 2 || ws[0].ID() != "a" || ws[1].ID() != "b" {
		t.Errorf("Widgets() order wrong: %v", ws)
	}

	if err := m.RemoveWidget("a"); err != nil {
		t.Errorf("RemoveWidget: %v", err)
	}
	if _, ok := m.Widget("a"); ok {
		t.Error("widget a still present after removal")
	}
	if err := m.RemoveWidget("a"); err == nil {
		t.Error("removing a missing widget succeeded")
	}
}

func blank(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

func touched(img *image.RGBA, r image.Rectangle) bool {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if c := img.RGBAAt(x, y); c.R != 0 || c.G != 0 || c.B != 0 {
				return true
			}
		}
	}
	return false
}

func TestHUDPausedBadge(t *testing.T) {
	h := NewHUD(false)

	img := blank(320, 200)
	if err := h.Render(img); err != nil {
		t.Fatal(err)
	}
	if touched(img, img.Bounds()) {
		t.Error("HUD drew something while not paused and without fps readout")
	}

	h.SetPaused(true)
	if !h.Paused() {
		t.Fatal("Paused() = false after SetPaused(true)")
	}
	if err := h.Render(img); err != nil {
		t.Fatal(err)
	}

	topRight := image.Rect(320-80, 0, 320, 40)
	if !touched(img, topRight) {
		t.Error("PAUSED badge not drawn in the top-right corner")
	}
	bottomLeft := image.Rect(0, 160, 80, 200)
	if touched(img, bottomLeft) {
		t.Error("fps readout drawn although disabled")
	}
}

func TestHUDFPSReadout(t *testing.T) {
	h := NewHUD(true)
	h.SetFPS(59.94, 60)
	if got := h.fps.Text(); got != "59.9 / 60 fps" {
		t.Errorf("fps text = %q", got)
	}
	h.SetFPS(0, 144)
	if got := h.fps.Text(); got != "-- / 144 fps" {
		t.Errorf("fps text = %q", got)
	}

	img := blank(320, 200)
	if err := h.Render(img); err != nil {
		t.Fatal(err)
	}
	if !touched(img, image.Rect(0, 160, 160, 200)) {
		t.Error("fps readout not drawn in the bottom-left corner")
	}
}

func TestTextWidgetOpacityZeroDrawsNothing(t *testing.T) {
	opts := DefaultTextOptions()
	opts.Opacity = 0
	w := NewTextWidget("t", "hello", opts)

	img := blank(100, 50)
	if err := w.Render(img); err != nil {
		t.Fatal(err)
	}
	if touched(img, img.Bounds()) {
		t.Error("fully transparent widget modified the image")
	}
}
