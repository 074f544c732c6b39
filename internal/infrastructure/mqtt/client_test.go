package mqtt

import (
	"testing"

	"github.com/stflabs/warehouse-core/internal/infrastructure/config"
)

func TestTopics_SystemStatus(t *testing.T) {
	if got := (Topics{}).SystemStatus(); got != "stf/system/status" {
		t.Errorf("SystemStatus() = %q, want stf/system/status", got)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.local",
			Port:     1883,
			ClientID: "test-core",
		},
		Auth: config.MQTTAuthConfig{
			Username: "user",
			Password: "pass",
		},
		QoS: 1,
	}

	opts := buildClientOptions(cfg)

	if got := opts.ClientID; got != "test-core" {
		t.Errorf("ClientID = %q, want %q", got, "test-core")
	}
	if len(opts.Servers) != 1 {
		t.Fatalf("expected 1 broker URL, got %d", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://broker.local:1883" {
		t.Errorf("broker URL = %q, want tcp://broker.local:1883", got)
	}
	if opts.Username != "user" {
		t.Errorf("Username = %q, want %q", opts.Username, "user")
	}
}

func TestBuildClientOptions_TLSScheme(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "broker.local", Port: 8883, TLS: true},
	}

	opts := buildClientOptions(cfg)

	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("scheme = %q, want ssl", got)
	}
	// Empty client id falls back to the service default.
	if opts.ClientID != "warehouse-core" {
		t.Errorf("ClientID = %q, want default", opts.ClientID)
	}
}

func TestPublish_Validation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if err := c.Publish("", []byte("x"), 1, false); err != ErrInvalidTopic {
		t.Errorf("empty topic: err = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("stf/hbw/cmd/move", []byte("x"), 3, false); err != ErrInvalidQoS {
		t.Errorf("bad qos: err = %v, want ErrInvalidQoS", err)
	}
	if err := c.Publish("stf/hbw/cmd/move", []byte("x"), 1, false); err != ErrNotConnected {
		t.Errorf("disconnected: err = %v, want ErrNotConnected", err)
	}
}
