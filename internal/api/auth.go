package api

import (
	"encoding/json"
	"net/http"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Password string `json:"password"`
}

// handleLogin exchanges the operator password for an access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeNotFound(w, "authentication is disabled")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Password == "" {
		writeBadRequest(w, "password is required")
		return
	}

	token, err := s.auth.Login(req.Password)
	if err != nil {
		s.logger.Warn("operator login failed", "error", err, "remote", r.RemoteAddr)
		writeDomainError(w, err)
		return
	}
	s.logger.Info("operator logged in", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, token)
}
