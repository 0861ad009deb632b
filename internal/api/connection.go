package api

import (
	"net/http"

	"github.com/nerrad567/pixelpanel/internal/connection"
	"github.com/nerrad567/pixelpanel/internal/store"
)

// connectionResponse is the body of the connection endpoints.
type connectionResponse struct {
	URL   string                `json:"url"`
	State store.ConnectionState `json:"state"`
	Stats connection.Stats      `json:"stats"`
}

func (s *Server) connectionStatus() connectionResponse {
	return connectionResponse{
		URL:   s.device.URL(),
		State: s.store.Connection(),
		Stats: s.device.Stats(),
	}
}

// handleGetConnection returns the link status and counters.
func (s *Server) handleGetConnection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.connectionStatus())
}

// handleReconnect drops the session and dials again.
func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.device.Reconnect(r.Context()); err != nil {
		s.logger.Warn("manual reconnect failed", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.connectionStatus())
}

// handleDisconnect closes the session without scheduling a reconnect.
func (s *Server) handleDisconnect(w http.ResponseWriter, _ *http.Request) {
	if err := s.device.Disconnect(); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.connectionStatus())
}
