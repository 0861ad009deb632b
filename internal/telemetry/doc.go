// Package telemetry forwards store changes to external sinks.
//
// Mirror publishes every slice to the device MQTT topic tree and accepts
// config changes on <prefix>/<device>/config/set. Recorder writes sensor
// readings and sysinfo counters to InfluxDB.
//
// Both attach to a *store.Store as listeners. Mirror hands messages to a
// bounded queue drained by Run, so a slow broker never stalls the device
// receive loop; messages are dropped (and counted) when the queue is full.
package telemetry
