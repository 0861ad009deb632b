package api

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each component check on /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Post("/auth/login", s.handleLogin)

		// Reads
		r.Get("/state", s.handleGetState)
		r.Get("/connection", s.handleGetConnection)
		r.Get("/logs", s.handleListLogs)
		r.Get("/sensors", s.handleListSensors)
		r.Get("/buttons", s.handleListButtons)
		r.Get("/sysinfo", s.handleGetSysInfo)
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/schema", s.handleConfigSchema)
		r.Post("/config/validate", s.handleValidateConfig)
		r.Get("/reference", s.handleReference)
		r.Get(s.wsPath(), s.handleWebSocket)

		// Mutations require an operator token when auth is enabled.
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/connection/reconnect", s.handleReconnect)
			r.Post("/connection/disconnect", s.handleDisconnect)
			r.Put("/config", s.handleApplyConfig)
			r.Post("/config/resubmit", s.handleResubmitConfig)
			r.Delete("/config/proposal", s.handleDiscardProposal)
		})
	})

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth reports the server and each optional component. A failing
// component makes the response 503; a disconnected device does not.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string, len(s.health))
	status := "ok"
	for name, checker := range s.health {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := checker.HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":           status,
		"version":          s.version,
		"device_connected": s.device.IsConnected(),
		"components":       components,
	})
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

const bytesPerMB = 1024 * 1024

// handleMetrics returns runtime, device link, hub and registered component stats.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := map[string]any{
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"runtime": RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / bytesPerMB,
			MemoryTotalMB: float64(mem.TotalAlloc) / bytesPerMB,
			NumGC:         mem.NumGC,
		},
		"device": s.device.Stats(),
		"websocket": map[string]int{
			"connected_clients": s.hub.ClientCount(),
		},
	}

	names := make([]string, 0, len(s.metrics))
	for name := range s.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, taken := resp[name]; taken {
			continue
		}
		resp[name] = s.metrics[name]()
	}

	writeJSON(w, http.StatusOK, resp)
}
