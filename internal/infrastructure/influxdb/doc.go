// Package influxdb exports warehouse telemetry to InfluxDB v2.
//
// The accumulator flushes per-device energy integrals, position samples and
// uptime ratios here. Writes are batched and asynchronous; a slow or absent
// InfluxDB server never blocks command execution (the telemetry path is
// strictly off the critical path).
//
// Measurements:
//
//	energy    tags: device_id  fields: power_watts, energy_joules
//	position  tags: device_id  fields: x, y, vx, vy
//	uptime    tags: device_id  fields: ratio
//
// Connect returns ErrDisabled when influxdb.enabled is false, which callers
// treat as "export off" rather than an error.
package influxdb
