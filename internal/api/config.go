package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/pixelpanel/internal/validation"
)

// decodeChanges reads a JSON object of config keys from the request body.
func decodeChanges(r *http.Request) (map[string]any, error) {
	var changes map[string]any
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		return nil, err
	}
	if changes == nil {
		return nil, errors.New("body must be a JSON object")
	}
	return changes, nil
}

// handleValidateConfig validates changes against the effective snapshot
// without recording or submitting anything.
func (s *Server) handleValidateConfig(w http.ResponseWriter, r *http.Request) {
	changes, err := decodeChanges(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.panel.Validate(changes); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

// handleApplyConfig validates, proposes and submits changes, then waits
// for the device echo.
func (s *Server) handleApplyConfig(w http.ResponseWriter, r *http.Request) {
	changes, err := decodeChanges(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res, err := s.panel.Apply(r.Context(), changes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleResubmitConfig sends the pending proposal again.
func (s *Server) handleResubmitConfig(w http.ResponseWriter, r *http.Request) {
	res, err := s.panel.Resubmit(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleDiscardProposal drops local edits that were never confirmed.
func (s *Server) handleDiscardProposal(w http.ResponseWriter, _ *http.Request) {
	if !s.panel.Discard() {
		writeNotFound(w, "no pending proposal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"discarded": true, "config": s.store.Config()})
}
