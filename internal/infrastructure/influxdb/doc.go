// Package influxdb records device telemetry in InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Writes are
// non-blocking and batched; asynchronous failures are reported through
// SetOnError.
//
// # Measurements
//
//	pixelit_sensor   tag device; one numeric field per sensor value (lux, temperature, ...)
//	pixelit_sysinfo  tag device; numeric system counters (freeHeap, wifiRSSI, ...)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSensorReading("kitchen", reading.Values, reading.Time)
package influxdb
