package commands

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/bryanchriswhite/WindowMirror/internal/window"
)

// interactive reports whether a picker can be shown
func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func pickerOptions(handles []window.Handle) []huh.Option[uint32] {
	opts := make([]huh.Option[uint32], 0, len(handles))
	for _, h := range handles {
		label := fmt.Sprintf("%s  (0x%x, %s)", h.Label(), h.ID, h.Geometry)
		opts = append(opts, huh.NewOption(label, h.ID))
	}
	return opts
}

// pickWindow asks the user to choose one of handles
func pickWindow(handles []window.Handle) (window.Handle, error) {
	if len(handles) == 0 {
		return window.Handle{}, fmt.Errorf("%w: no windows to choose from", errTargetNotFound)
	}

	var id uint32
	err := huh.NewSelect[uint32]().
		Title("Window to mirror").
		Description("Capture runs in the background; the window keeps its focus and stacking").
		Options(pickerOptions(handles)...).
		Value(&id).
		Run()
	if err != nil {
		return window.Handle{}, fmt.Errorf("window selection cancelled: %w", err)
	}

	h, ok := window.FindByID(handles, id)
	if !ok {
		return window.Handle{}, errNoTarget
	}
	return h, nil
}
