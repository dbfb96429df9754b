// Package web serves the shelf-companion's network surface: the snapshot
// pull endpoint, the clock-sync endpoint, and the websocket push channel.
package web

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/shelf-companion/internal/telemetry"
)

// SyncRequest is an inbound clock-sync request, queued to the scheduling
// loop so the clock is never mutated from a handler goroutine.
type SyncRequest struct {
	Epoch uint32
	Reply chan error
}

// syncReplyWait bounds how long a sync handler waits for the loop.
const syncReplyWait = 2 * time.Second

// Server serves the device's HTTP and websocket endpoints.
type Server struct {
	httpServer *http.Server
	tracker    *telemetry.Tracker
	hub        *Hub
	syncCh     chan<- SyncRequest // nil when no clock source is present
	upgrader   websocket.Upgrader
}

// New creates a Server that reads state from the given tracker. syncCh may
// be nil, in which case clock-sync requests are refused.
func New(addr string, tracker *telemetry.Tracker, hub *Hub, syncCh chan<- SyncRequest) *Server {
	s := &Server{
		tracker: tracker,
		hub:     hub,
		syncCh:  syncCh,
		upgrader: websocket.Upgrader{
			// The dashboard is served from elsewhere; accept any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/sync-time", s.handleSyncTime)
	mux.HandleFunc("/ws", s.handleWS)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleSnapshot is the pull endpoint: one wire snapshot, synchronously.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(telemetry.FormatJSON(snap))
}

// syncBody is the clock-sync request body.
type syncBody struct {
	Epoch uint32 `json:"epoch"`
}

// syncResponse is the clock-sync response body.
type syncResponse struct {
	Success bool   `json:"success"`
	NewTime string `json:"newTime,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleSyncTime accepts {"epoch": u32} and forwards it to the scheduling
// loop. The device clock and tracked state stay untouched on any error.
func (s *Server) handleSyncTime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeSyncError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if s.syncCh == nil {
		writeSyncError(w, http.StatusServiceUnavailable, "no clock source")
		return
	}

	var body syncBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Epoch == 0 {
		writeSyncError(w, http.StatusBadRequest, "malformed body")
		return
	}

	req := SyncRequest{Epoch: body.Epoch, Reply: make(chan error, 1)}
	select {
	case s.syncCh <- req:
	default:
		writeSyncError(w, http.StatusServiceUnavailable, "sync queue full")
		return
	}

	select {
	case err := <-req.Reply:
		if err != nil {
			writeSyncError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	case <-time.After(syncReplyWait):
		writeSyncError(w, http.StatusServiceUnavailable, "sync timed out")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(syncResponse{
		Success: true,
		NewTime: time.Unix(int64(body.Epoch), 0).UTC().Format("15:04:05"),
	})
}

func writeSyncError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(syncResponse{Success: false, Error: msg})
}

// handleWS attaches a push subscriber. The subscriber receives one snapshot
// immediately, then every broadcast until it disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade: %v", err)
		return
	}

	initial := telemetry.FormatJSON(s.tracker.Snapshot())
	c := newClient(s.hub, conn, initial)
	c.run()
}
