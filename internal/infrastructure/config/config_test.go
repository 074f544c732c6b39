package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "test-cell"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
bus:
  transport: "mqtt"
mqtt:
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
controller:
  poll_interval: 250
  step_timeout: 10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-cell" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-cell")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.Controller.PollInterval != 250 {
		t.Errorf("Controller.PollInterval = %d, want 250", cfg.Controller.PollInterval)
	}
	// Defaults survive partial files
	if cfg.Simulator.TickRate != 10 {
		t.Errorf("Simulator.TickRate = %d, want default 10", cfg.Simulator.TickRate)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidTransport(t *testing.T) {
	path := writeConfig(t, `
bus:
  transport: "carrier-pigeon"
`)
	if _, err := Load(path); err == nil {
		t.Error("Load() expected validation error for unknown transport, got nil")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/from-file.db"
`)
	t.Setenv("WAREHOUSE_DATABASE_PATH", "/tmp/from-env.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
}

func TestValidate_ControllerBounds(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(*Config) {}, false},
		{"zero poll interval", func(c *Config) { c.Controller.PollInterval = 0 }, true},
		{"negative step timeout", func(c *Config) { c.Controller.StepTimeout = -1 }, true},
		{"zero tick rate", func(c *Config) { c.Simulator.TickRate = 0 }, true},
		{"inverted static zone", func(c *Config) {
			c.Interlock.StaticZones = []ZoneConfig{{Name: "bad", MinX: 10, MaxX: 0}}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.Controller.PollIntervalDuration().Milliseconds(); got != 500 {
		t.Errorf("PollIntervalDuration() = %dms, want 500ms", got)
	}
	if got := cfg.Simulator.TickInterval().Milliseconds(); got != 100 {
		t.Errorf("TickInterval() = %dms, want 100ms", got)
	}
}
