package influxdb

import (
	"errors"
	"testing"

	"github.com/stflabs/warehouse-core/internal/infrastructure/config"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestWrite_NotConnectedIsNoOp(t *testing.T) {
	// A zero-value client is disconnected; writes must silently drop
	// rather than panic, since telemetry is off the critical path.
	c := &Client{}

	c.WriteEnergySample("hbw", 36.0, 1200.0)
	c.WritePositionSample("vgr", 100, 100, 0, 0)
	c.WriteUptimeRatio("conveyor", 0.4)
	c.WritePoint("custom", nil, map[string]interface{}{"v": 1.0})

	if c.IsConnected() {
		t.Error("zero-value client reports connected")
	}
}
