package telemetry

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakeSink records flushed values.
type fakeSink struct {
	mu     sync.Mutex
	energy map[string]float64
	uptime map[string]float64
}

func newFakeSink() *fakeSink {
	return &fakeSink{energy: make(map[string]float64), uptime: make(map[string]float64)}
}

func (s *fakeSink) WriteEnergySample(deviceID string, _, energyJoules float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.energy[deviceID] = energyJoules
}

func (s *fakeSink) WriteUptimeRatio(deviceID string, ratio float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uptime[deviceID] = ratio
}

func TestFlusher_Flush(t *testing.T) {
	acc := NewAccumulator()
	acc.AddEnergySample("vgr", 30, 2)
	acc.AddStateSample("vgr", true, 1)
	acc.AddStateSample("vgr", false, 1)

	sink := newFakeSink()
	metrics := NewMetrics()
	f := NewFlusher(acc, sink, metrics, 0, nil)

	f.Flush()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.energy["vgr"] != 60 {
		t.Errorf("flushed energy = %v, want 60", sink.energy["vgr"])
	}
	if sink.uptime["vgr"] != 0.5 {
		t.Errorf("flushed uptime = %v, want 0.5", sink.uptime["vgr"])
	}

	// Gauges follow the snapshot.
	got := testutil.ToFloat64(metrics.energyJoules.WithLabelValues("vgr"))
	if got != 60 {
		t.Errorf("energy gauge = %v, want 60", got)
	}
}

func TestFlusher_NilOutputs(t *testing.T) {
	acc := NewAccumulator()
	acc.AddEnergySample("vgr", 5, 1)

	// Neither sink nor metrics: Flush must be a safe no-op.
	f := NewFlusher(acc, nil, nil, 0, nil)
	f.Flush()
}

func TestMetrics_Handler(t *testing.T) {
	metrics := NewMetrics()
	metrics.CommandsTotal.WithLabelValues("STORE", "completed").Inc()
	metrics.InterlockRejections.Inc()

	if got := testutil.ToFloat64(metrics.CommandsTotal.WithLabelValues("STORE", "completed")); got != 1 {
		t.Errorf("commands counter = %v, want 1", got)
	}

	// The registry must expose the namespaced families.
	count, err := testutil.GatherAndCount(metrics.registry,
		"warehouse_commands_total", "warehouse_interlock_rejections_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if count != 2 {
		t.Errorf("gathered %d series, want 2", count)
	}

	if h := metrics.Handler(); h == nil {
		t.Error("Handler() returned nil")
	}

	srv := metrics.Serve(":0")
	if srv == nil || !strings.HasSuffix(srv.Addr, ":0") {
		t.Errorf("Serve() server = %+v", srv)
	}
}
