// Package telemetry ships daemon measurements to InfluxDB v2.
//
// Scans, session transitions and player state snapshots are written as
// batched, non-blocking points; a failed write never slows the device
// pipeline down. Telemetry is optional and disabled by default.
package telemetry
