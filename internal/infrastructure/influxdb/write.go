package influxdb

import (
	"encoding/json"
	"math"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementSensor  = "pixelit_sensor"
	MeasurementSysInfo = "pixelit_sysinfo"
)

// WriteSensorReading records one sensor push. Only numeric and boolean
// values become fields; firmware placeholders such as "Not installed" are
// skipped. Returns the number of fields written.
func (c *Client) WriteSensorReading(device string, values map[string]any, at time.Time) int {
	return c.writeFields(MeasurementSensor, device, values, at)
}

// WriteSysInfo records the numeric counters of a sysinfo push.
func (c *Client) WriteSysInfo(device string, payload map[string]any, at time.Time) int {
	return c.writeFields(MeasurementSysInfo, device, payload, at)
}

func (c *Client) writeFields(measurement, device string, values map[string]any, at time.Time) int {
	if !c.IsConnected() {
		return 0
	}
	fields := Fields(values)
	if len(fields) == 0 {
		return 0
	}
	c.WritePoint(measurement, map[string]string{"device": device}, fields, at)
	return len(fields)
}

// WritePoint writes a point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}
	if at.IsZero() {
		at = time.Now()
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
	c.points.Add(1)
}

// Fields keeps the values InfluxDB can store as numeric or boolean fields.
// NaN and infinities are dropped.
func Fields(values map[string]any) map[string]any {
	fields := make(map[string]any, len(values))
	for k, v := range values {
		switch n := v.(type) {
		case float64:
			if !math.IsNaN(n) && !math.IsInf(n, 0) {
				fields[k] = n
			}
		case float32:
			fields[k] = float64(n)
		case int:
			fields[k] = float64(n)
		case int64:
			fields[k] = float64(n)
		case json.Number:
			if f, err := n.Float64(); err == nil {
				fields[k] = f
			}
		case bool:
			fields[k] = n
		}
	}
	return fields
}
