package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the Prometheus instrumentation surface. The controller
// increments command and interlock counters; the flusher keeps the
// per-device gauges aligned with the accumulator.
type Metrics struct {
	registry *prometheus.Registry

	CommandsTotal       *prometheus.CounterVec
	InterlockRejections prometheus.Counter
	EstopsTotal         prometheus.Counter

	energyJoules *prometheus.GaugeVec
	powerWatts   *prometheus.GaugeVec
	uptimeRatio  *prometheus.GaugeVec
}

// NewMetrics creates and registers the metric set on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warehouse",
			Name:      "commands_total",
			Help:      "Commands processed, by type and outcome.",
		}, []string{"type", "outcome"}),
		InterlockRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warehouse",
			Name:      "interlock_rejections_total",
			Help:      "Motions rejected by the safety interlock.",
		}),
		EstopsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warehouse",
			Name:      "emergency_stops_total",
			Help:      "Emergency stops executed.",
		}),
		energyJoules: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "warehouse",
			Name:      "device_energy_joules",
			Help:      "Running energy integral per device.",
		}, []string{"device"}),
		powerWatts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "warehouse",
			Name:      "device_power_watts",
			Help:      "Last sampled instantaneous power per device.",
		}, []string{"device"}),
		uptimeRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "warehouse",
			Name:      "device_uptime_ratio",
			Help:      "Busy time over observed time per device.",
		}, []string{"device"}),
	}

	m.registry.MustRegister(
		m.CommandsTotal, m.InterlockRejections, m.EstopsTotal,
		m.energyJoules, m.powerWatts, m.uptimeRatio,
	)
	return m
}

// Update refreshes the per-device gauges from an accumulator snapshot.
func (m *Metrics) Update(snaps []DeviceSnapshot) {
	for _, s := range snaps {
		m.energyJoules.WithLabelValues(s.DeviceID).Set(s.EnergyJoules)
		m.powerWatts.WithLabelValues(s.DeviceID).Set(s.PowerWatts)
		m.uptimeRatio.WithLabelValues(s.DeviceID).Set(s.UptimeRatio)
	}
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve builds the metrics HTTP server for addr. The caller owns the
// listener lifecycle.
func (m *Metrics) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
