// Package telemetry turns the simulators' per-tick samples into running
// energy and uptime figures, and exposes them through InfluxDB and
// Prometheus. Everything here is best-effort: sample ingestion is
// lock-per-device and allocation-free on the hot path, and a missing or
// failing sink drops data rather than propagating errors into command
// execution.
package telemetry
