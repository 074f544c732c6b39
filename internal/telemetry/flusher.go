package telemetry

import (
	"context"
	"time"

	"github.com/stflabs/warehouse-core/internal/infrastructure/logging"
)

// Sink receives periodic telemetry flushes. The InfluxDB wrapper satisfies
// this; writes are fire-and-forget on its batching write API.
type Sink interface {
	WriteEnergySample(deviceID string, powerWatts, energyJoules float64)
	WriteUptimeRatio(deviceID string, ratio float64)
}

// Flusher periodically pushes accumulator snapshots to the time-series
// sink and the Prometheus gauges. Both sink and metrics may be nil; the
// flusher then only drives whichever is present. Telemetry is best-effort
// throughout: a dead sink never fails a command.
type Flusher struct {
	acc      *Accumulator
	sink     Sink
	metrics  *Metrics
	interval time.Duration
	logger   *logging.Logger
}

// NewFlusher creates a flusher over the accumulator.
func NewFlusher(acc *Accumulator, sink Sink, metrics *Metrics, interval time.Duration, logger *logging.Logger) *Flusher {
	if logger == nil {
		logger = logging.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Flusher{acc: acc, sink: sink, metrics: metrics, interval: interval, logger: logger}
}

// Run blocks, flushing at the configured interval until ctx is cancelled.
// A final flush runs on the way out.
func (f *Flusher) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.Flush()
			return ctx.Err()
		case <-ticker.C:
			f.Flush()
		}
	}
}

// Flush pushes one snapshot to the configured outputs.
func (f *Flusher) Flush() {
	snaps := f.acc.Snapshot()
	if f.metrics != nil {
		f.metrics.Update(snaps)
	}
	if f.sink != nil {
		for _, s := range snaps {
			f.sink.WriteEnergySample(s.DeviceID, s.PowerWatts, s.EnergyJoules)
			f.sink.WriteUptimeRatio(s.DeviceID, s.UptimeRatio)
		}
	}
}
