// Package logging provides structured logging for PixelPanel.
//
// It wraps log/slog so every component logs with the same handler,
// level filter and default fields (service, version).
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("connection").Info("connected", "url", url)
//
// Never log the operator password, the JWT secret, or issued tokens.
package logging
