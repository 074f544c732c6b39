package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteEnergySample records one power/energy observation for a device.
//
// The write is non-blocking; points are batched and sent asynchronously.
//
// Parameters:
//   - deviceID: device identifier ("hbw", "vgr", "conveyor")
//   - powerWatts: instantaneous power draw at the sample instant
//   - energyJoules: cumulative energy integral for the device
func (c *Client) WriteEnergySample(deviceID string, powerWatts, energyJoules float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"energy",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"power_watts":   powerWatts,
			"energy_joules": energyJoules,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePositionSample records a device position/velocity observation.
func (c *Client) WritePositionSample(deviceID string, x, y, vx, vy float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"position",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"x":  x,
			"y":  y,
			"vx": vx,
			"vy": vy,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteUptimeRatio records the fraction of observed time a device spent
// doing work (status not IDLE).
func (c *Client) WriteUptimeRatio(deviceID string, ratio float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"uptime",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"ratio": ratio,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
