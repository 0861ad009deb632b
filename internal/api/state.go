package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/nerrad567/pixelpanel/internal/reference"
	"github.com/nerrad567/pixelpanel/internal/store"
)

const (
	contentTypeMsgpack = "application/msgpack"

	defaultListLimit = 100
	maxListLimit     = 1000
)

// wantsMsgpack reports whether the client asked for a msgpack body.
func wantsMsgpack(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, contentTypeMsgpack) || strings.Contains(accept, "application/x-msgpack")
}

// writeMsgpack writes v as a msgpack body.
func writeMsgpack(w http.ResponseWriter, status int, v any) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		writeInternalError(w, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", contentTypeMsgpack)
	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(data)
}

// parseLimit reads the limit query parameter, defaulting to defaultListLimit.
func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxListLimit {
		return 0, false
	}
	return n, true
}

// tail returns the last n elements of list.
func tail[T any](list []T, n int) []T {
	if len(list) > n {
		return list[len(list)-n:]
	}
	return list
}

// handleGetState returns the whole store as JSON, or msgpack on request.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state := s.store.Snapshot()
	if wantsMsgpack(r) {
		writeMsgpack(w, http.StatusOK, state)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleListLogs returns recent device log lines, oldest first. With
// source=db they come from the persisted history instead of memory.
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		writeBadRequest(w, "limit must be between 1 and 1000")
		return
	}

	switch source := r.URL.Query().Get("source"); source {
	case "", "memory":
		logs := tail(s.store.Logs(), limit)
		writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)})
	case "db":
		if s.history == nil {
			writeNotFound(w, "log history is not enabled")
			return
		}
		logs, err := s.history.RecentLogs(r.Context(), limit)
		if err != nil {
			s.logger.Error("reading log history", "error", err)
			writeInternalError(w, "failed to read log history")
			return
		}
		// RecentLogs is newest first; responses are oldest first.
		for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
			logs[i], logs[j] = logs[j], logs[i]
		}
		writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)})
	default:
		writeBadRequest(w, "source must be memory or db")
	}
}

// handleListSensors returns recent sensor readings, oldest first.
func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		writeBadRequest(w, "limit must be between 1 and 1000")
		return
	}
	readings := tail(s.store.Sensors(), limit)
	resp := map[string]any{"sensors": readings, "count": len(readings)}
	if latest, ok := s.store.LatestSensor(); ok {
		resp["latest"] = latest
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListButtons returns recent button events, oldest first.
func (s *Server) handleListButtons(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		writeBadRequest(w, "limit must be between 1 and 1000")
		return
	}
	events := tail(s.store.Buttons(), limit)
	writeJSON(w, http.StatusOK, map[string]any{"buttons": events, "count": len(events)})
}

// handleGetSysInfo returns the latest sysinfo push.
func (s *Server) handleGetSysInfo(w http.ResponseWriter, _ *http.Request) {
	info, ok := s.store.SysInfo()
	if !ok {
		writeNotFound(w, "device has not reported sysinfo yet")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// configResponse is the body of GET /config.
type configResponse struct {
	store.ConfigState

	// Effective is the snapshot edits are validated against.
	Effective store.Snapshot `json:"effective"`

	// FromDevice is false while Effective is the firmware defaults.
	FromDevice bool `json:"from_device"`
}

// handleGetConfig returns the confirmed snapshot and any pending proposal.
func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	effective, fromDevice := s.panel.Effective()
	writeJSON(w, http.StatusOK, configResponse{
		ConfigState: s.store.Config(),
		Effective:   effective,
		FromDevice:  fromDevice,
	})
}

// handleConfigSchema lists every validated key and its rules.
func (s *Server) handleConfigSchema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"fields": s.panel.Validator().Fields()})
}

// handleReference returns the reference tables.
func (s *Server) handleReference(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, reference.All())
}
