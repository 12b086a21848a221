// Package api exposes the HTTP surface: the attach endpoint and the SSE
// transcript stream.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/agent"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/bus"
	"github.com/naveenraj-g/livekit-room-voice-to-text-agent/internal/logging"
)

// Server wires the HTTP handlers to the agent registry and transcript bus.
type Server struct {
	registry  *agent.Registry
	bus       *bus.Bus
	keepalive time.Duration
}

// NewServer creates the HTTP server front-end.
func NewServer(registry *agent.Registry, b *bus.Bus, keepalive time.Duration) *Server {
	return &Server{
		registry:  registry,
		bus:       b,
		keepalive: keepalive,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/attach-transcriber", s.handleAttach).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/transcript-stream", s.handleStream).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

type attachRequest struct {
	RoomID string `json:"roomId"`
}

type attachResponse struct {
	Status agent.AttachStatus `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleAttach ensures a transcription agent is running for the room.
func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	var req attachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "roomId required"})
		return
	}

	status := s.registry.Attach(req.RoomID)
	logging.Info(logging.CategoryServer, "attach request room=%s status=%s", req.RoomID, status)
	writeJSON(w, http.StatusOK, attachResponse{Status: status})
}

// handleStream relays published transcript events for a room as SSE until
// the client disconnects, with a keepalive comment after each silent
// interval.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	if roomID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "roomId required"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.bus.Subscribe(roomID)
	defer s.bus.Unsubscribe(sub)
	logging.Info(logging.CategoryServer, "subscriber connected room=%s", roomID)
	defer logging.Info(logging.CategoryServer, "subscriber disconnected room=%s", roomID)

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				logging.Error(logging.CategoryServer, "marshal transcript event: %v", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			ticker.Reset(s.keepalive)
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// corsMiddleware allows cross-origin access to the attach and stream
// endpoints; browsers call both directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
