package influxdb

import "errors"

// Telemetry sink errors. Writes themselves never return errors; batch
// failures are counted in Stats.WriteErrors and passed to SetOnError.
//
// The service treats all of these as non-fatal:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrConnectionFailed) {
//	    // run without telemetry history
//	}
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: telemetry sink disabled")

	// ErrConnectionFailed wraps the ping failure from Connect.
	ErrConnectionFailed = errors.New("influxdb: server unreachable")

	// ErrNotConnected is returned by HealthCheck once the client is closed.
	ErrNotConnected = errors.New("influxdb: client closed")
)
