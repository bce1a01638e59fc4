package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/WindowMirror/internal/config"
	"github.com/bryanchriswhite/WindowMirror/internal/logger"
	"github.com/bryanchriswhite/WindowMirror/internal/session"
	"github.com/bryanchriswhite/WindowMirror/internal/window"
)

// Version is reported by the health endpoint
const Version = "0.1.0"

// Controller is the part of a mirror session the API drives
type Controller interface {
	Snapshot() session.Snapshot
	Send(cmd session.Command) error
	Subscribe() chan session.Change
	Unsubscribe(ch chan session.Change)
}

// Server represents the local control API. It listens on the loopback
// interface only.
type Server struct {
	router    *mux.Router
	windows   window.Registry
	session   Controller
	configMgr *config.Manager
	upgrader  websocket.Upgrader
}

// NewServer creates a new API server. configMgr may be nil.
func NewServer(windows window.Registry, ctrl Controller, configMgr *config.Manager) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		windows:   windows,
		session:   ctrl,
		configMgr: configMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // loopback only
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/windows", s.handleListWindows).Methods("GET")
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")

	// Session control
	api.HandleFunc("/session", s.handleGetSession).Methods("GET")
	api.HandleFunc("/session/events", s.handleSessionEvents)
	api.HandleFunc("/session/{command}", s.handleSessionCommand).Methods("POST")
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on 127.0.0.1:port until ctx is cancelled
func (s *Server) Start(ctx context.Context, port int) error {
	log := logger.WithComponent("api")
	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", srv.Addr).Msg("Starting control API")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("control API: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

func (s *Server) handleListWindows(w http.ResponseWriter, r *http.Request) {
	handles, err := s.windows.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if handles == nil {
		handles = []window.Handle{}
	}
	writeJSON(w, http.StatusOK, handles)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.configMgr == nil {
		writeJSON(w, http.StatusOK, config.Defaults())
		return
	}
	writeJSON(w, http.StatusOK, s.configMgr.Get())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleSessionCommand(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["command"]
	cmd, err := session.ParseCommand(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	if err := s.session.Send(cmd); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, session.ErrInvalidState) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}

	logger.WithComponent("api").Debug().
		Str("command", cmd.String()).
		Msg("Queued session command")

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "command": cmd.String()})
}

// handleSessionEvents streams the current snapshot followed by every state
// change until the session ends or the client goes away
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	changes := s.session.Subscribe()
	defer s.session.Unsubscribe(changes)

	// Detect client disconnects
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snap := s.session.Snapshot()
	if err := conn.WriteJSON(snap); err != nil {
		log.Debug().Err(err).Msg("WebSocket write failed")
		return
	}
	if snap.State.Terminal() {
		closeNormal(conn)
		return
	}

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if err := conn.WriteJSON(change); err != nil {
				log.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
			if change.To.Terminal() {
				closeNormal(conn)
				return
			}
		}
	}
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
