package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bryanchriswhite/WindowMirror/internal/window"
)

var (
	errNoTarget        = errors.New("no window selected")
	errTargetNotFound  = errors.New("window not found")
	errAmbiguousTarget = errors.New("title matches more than one window")
)

// parseWindowID accepts hex ("0x3a00007") and decimal window ids
func parseWindowID(s string) (uint32, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid window id %q", s)
	}
	return uint32(id), nil
}

// findTarget picks the window named by id or, failing that, by exact title.
// A title shared by several windows is an error listing their ids, since the
// title is only a label.
func findTarget(handles []window.Handle, id, title string) (window.Handle, error) {
	switch {
	case id != "":
		wid, err := parseWindowID(id)
		if err != nil {
			return window.Handle{}, err
		}
		h, ok := window.FindByID(handles, wid)
		if !ok {
			return window.Handle{}, fmt.Errorf("%w: no visible window with id 0x%x", errTargetNotFound, wid)
		}
		return h, nil

	case title != "":
		matches := window.FindByTitle(handles, title)
		switch len(matches) {
		case 0:
			return window.Handle{}, fmt.Errorf("%w: no visible window titled %q", errTargetNotFound, title)
		case 1:
			return matches[0], nil
		}
		ids := make([]string, len(matches))
		for i, h := range matches {
			ids[i] = fmt.Sprintf("0x%x", h.ID)
		}
		return window.Handle{}, fmt.Errorf("%w: %q is %s (use --id)", errAmbiguousTarget, title, strings.Join(ids, ", "))
	}

	return window.Handle{}, errNoTarget
}
