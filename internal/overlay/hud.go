package overlay

import (
	"fmt"
	"image"
	"image/color"
	"sync"
)

const (
	pausedWidgetID = "paused"
	fpsWidgetID    = "fps"
)

// HUD is the fixed overlay drawn by display sinks: a PAUSED badge and an
// optional achieved-rate readout.
type HUD struct {
	mu      sync.Mutex
	manager *Manager
	paused  *TextWidget
	fps     *TextWidget
}

// NewHUD builds the HUD widgets. The FPS readout is only shown when showFPS is set.
func NewHUD(showFPS bool) *HUD {
	pausedOpts := DefaultTextOptions()
	pausedOpts.Anchor = TopRight
	pausedOpts.Color = color.RGBA{255, 210, 0, 255}

	fpsOpts := DefaultTextOptions()
	fpsOpts.Anchor = BottomLeft
	fpsOpts.Opacity = 0.85

	h := &HUD{
		manager: NewManager(),
		paused:  NewTextWidget(pausedWidgetID, "PAUSED", pausedOpts),
		fps:     NewTextWidget(fpsWidgetID, "", fpsOpts),
	}
	h.paused.SetEnabled(false)
	h.fps.SetEnabled(showFPS)

	// IDs are fixed, so these cannot collide
	_ = h.manager.AddWidget(h.fps)
	_ = h.manager.AddWidget(h.paused)
	return h
}

// SetPaused shows or hides the PAUSED badge
func (h *HUD) SetPaused(paused bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused.SetEnabled(paused)
}

// SetFPS updates the readout with achieved and target rates
func (h *HUD) SetFPS(achieved float64, target int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if achieved <= 0 {
		h.fps.SetText(fmt.Sprintf("-- / %d fps", target))
		return
	}
	h.fps.SetText(fmt.Sprintf("%.1f / %d fps", achieved, target))
}

// Paused reports whether the badge is showing
func (h *HUD) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused.IsEnabled()
}

// Render draws the HUD onto img
func (h *HUD) Render(img *image.RGBA) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.manager.Render(img)
}
