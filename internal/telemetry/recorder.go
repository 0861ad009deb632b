package telemetry

import (
	"time"

	"github.com/nerrad567/pixelpanel/internal/store"
)

// PointWriter is the part of the InfluxDB client the Recorder uses.
type PointWriter interface {
	WriteSensorReading(device string, values map[string]any, at time.Time) int
	WriteSysInfo(device string, payload map[string]any, at time.Time) int
}

// Recorder writes sensor readings and sysinfo to a time-series store.
// Writes are non-blocking so the Recorder runs inline with the listener.
type Recorder struct {
	w      PointWriter
	device string
}

// NewRecorder creates a Recorder tagging points with device.
func NewRecorder(w PointWriter, device string) *Recorder {
	return &Recorder{w: w, device: device}
}

// Attach subscribes to the sensor and sysinfo slices of s.
func (r *Recorder) Attach(s *store.Store) func() {
	unsubSensor := s.Subscribe(store.SliceSensors, func(c store.Change) {
		r.w.WriteSensorReading(r.device, c.Sensor.Values, c.Sensor.Time)
	})
	unsubSysInfo := s.Subscribe(store.SliceSysInfo, func(c store.Change) {
		r.w.WriteSysInfo(r.device, c.SysInfo.Payload, c.SysInfo.Time)
	})
	return func() {
		unsubSensor()
		unsubSysInfo()
	}
}
