package session

import (
	"fmt"
	"sync"
)

// Host starts sessions while making sure a display surface is driven by at
// most one active session at a time
type Host struct {
	mu       sync.Mutex
	surfaces map[uint32]*Session
}

// NewHost creates an empty host
func NewHost() *Host {
	return &Host{surfaces: make(map[uint32]*Session)}
}

// Start starts s unless another running or paused session owns its surface
func (h *Host) Start(s *Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := s.deps.Sink.ID()
	if cur, ok := h.surfaces[id]; ok && cur != s {
		if st := cur.State(); st == StateRunning || st == StatePaused {
			return fmt.Errorf("%w: surface 0x%x is mirroring another window", ErrSurfaceBusy, id)
		}
	}

	if err := s.Start(); err != nil {
		return err
	}
	h.surfaces[id] = s
	return nil
}

// Active returns the session currently owning surface id, if any
func (h *Host) Active(id uint32) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.surfaces[id]
	if !ok || s.State().Terminal() {
		return nil, false
	}
	return s, true
}

// StopAll stops every session the host started
func (h *Host) StopAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.surfaces {
		s.Stop()
	}
}
