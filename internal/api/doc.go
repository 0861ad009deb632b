// Package api implements the HTTP REST API and WebSocket server for PixelPanel.
//
// This package provides:
//   - REST endpoints for the device state, connection control and config edits
//   - WebSocket hub pushing store changes to UI clients per slice
//   - Operator JWT authentication on mutating endpoints
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server sits between the operator UI and the state store. Reads come
// straight from the store; config edits go through the panel service, which
// validates them and waits for the device echo. Every store change is
// broadcast to WebSocket clients subscribed to its slice.
//
// # Errors
//
// Domain sentinels are mapped to HTTP statuses in one place, writeDomainError:
// validation failures are 422 with per-field messages, a missing device link
// is 503, a lost link 502 and an unanswered submission 504.
package api
