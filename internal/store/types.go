package store

import (
	"time"
)

// Slice names one independently observable part of the state.
type Slice string

// State slices.
const (
	SliceConnection Slice = "connection"
	SliceLogs       Slice = "log"
	SliceSensors    Slice = "sensor"
	SliceButtons    Slice = "buttons"
	SliceSysInfo    Slice = "sysinfo"
	SliceConfig     Slice = "config"
)

// replaces reports whether each update of s supersedes the previous one.
// The append-only slices return false.
func (s Slice) replaces() bool {
	switch s {
	case SliceConnection, SliceSysInfo, SliceConfig:
		return true
	}
	return false
}

// AllSlices returns every slice.
func AllSlices() []Slice {
	return []Slice{SliceConnection, SliceLogs, SliceSensors, SliceButtons, SliceSysInfo, SliceConfig}
}

// IsValid reports whether s is a known slice.
func (s Slice) IsValid() bool {
	for _, v := range AllSlices() {
		if v == s {
			return true
		}
	}
	return false
}

// ConnectionState is the device link status.
// ReconnectError may only be true while IsConnected is false.
type ConnectionState struct {
	IsConnected    bool `json:"is_connected" msgpack:"is_connected"`
	ReconnectError bool `json:"reconnect_error" msgpack:"reconnect_error"`
}

// Valid reports whether the combination is allowed.
func (c ConnectionState) Valid() bool {
	return !(c.IsConnected && c.ReconnectError)
}

// Payload is a decoded JSON object from the device.
type Payload map[string]any

// LogEntry is one device log line.
type LogEntry struct {
	ID       string    `json:"id" msgpack:"id"`
	Time     time.Time `json:"time" msgpack:"time"`
	Function string    `json:"function,omitempty" msgpack:"function,omitempty"`
	Message  string    `json:"message,omitempty" msgpack:"message,omitempty"`
	Payload  Payload   `json:"payload" msgpack:"payload"`
}

// SensorReading is one sensor push (lux, temperature, humidity, ...).
type SensorReading struct {
	Time   time.Time `json:"time" msgpack:"time"`
	Values Payload   `json:"values" msgpack:"values"`
}

// ButtonEvent is one button state push.
type ButtonEvent struct {
	Time    time.Time `json:"time" msgpack:"time"`
	Payload Payload   `json:"payload" msgpack:"payload"`
}

// SystemInfo is the latest sysinfo push (firmware version, uptime, heap, ...).
type SystemInfo struct {
	Time    time.Time `json:"time" msgpack:"time"`
	Payload Payload   `json:"payload" msgpack:"payload"`
}

// ConfigState holds the confirmed snapshot and any pending proposal.
type ConfigState struct {
	Confirmed   Snapshot  `json:"confirmed" msgpack:"confirmed"`
	ConfirmedAt time.Time `json:"confirmed_at" msgpack:"confirmed_at"`

	// Stale is true while Confirmed was restored from persistence and the
	// device has not echoed a config since.
	Stale bool `json:"stale" msgpack:"stale"`

	Proposed    Snapshot  `json:"proposed,omitempty" msgpack:"proposed,omitempty"`
	ProposedAt  time.Time `json:"proposed_at,omitempty" msgpack:"proposed_at,omitempty"`
	HasProposal bool      `json:"has_proposal" msgpack:"has_proposal"`
}

// State is a point-in-time copy of the whole store.
type State struct {
	Connection ConnectionState `json:"connection" msgpack:"connection"`
	Logs       []LogEntry      `json:"logs" msgpack:"logs"`
	Sensors    []SensorReading `json:"sensors" msgpack:"sensors"`
	Buttons    []ButtonEvent   `json:"buttons" msgpack:"buttons"`
	SysInfo    *SystemInfo     `json:"sysinfo" msgpack:"sysinfo"`
	Config     ConfigState     `json:"config" msgpack:"config"`
}

// Change describes one applied update. Exactly the field matching Slice is set.
type Change struct {
	Slice Slice `json:"slice"`

	// Seq increases by one per applied update of Slice.
	Seq uint64 `json:"seq"`

	Connection *ConnectionState `json:"connection,omitempty"`
	Log        *LogEntry        `json:"log,omitempty"`
	Sensor     *SensorReading   `json:"sensor,omitempty"`
	Button     *ButtonEvent     `json:"button,omitempty"`
	SysInfo    *SystemInfo      `json:"sysinfo,omitempty"`
	Config     *ConfigState     `json:"config,omitempty"`
}

// Listener receives changes. It must not call back into mutating Store methods.
type Listener func(Change)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
