package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Warehouse Twin Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	Bus        BusConfig        `yaml:"bus"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
	Controller ControllerConfig `yaml:"controller"`
	Simulator  SimulatorConfig  `yaml:"simulator"`
	Interlock  InterlockConfig  `yaml:"interlock"`
}

// SiteConfig contains cell-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// BusConfig selects the hardware bus transport.
//
// "memory" runs everything in-process (development, tests).
// "mqtt" routes all device traffic through the configured broker.
type BusConfig struct {
	Transport string `yaml:"transport"`
}

// Supported bus transports.
const (
	BusTransportMemory = "memory"
	BusTransportMQTT   = "mqtt"
)

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds / attempt counts).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings for telemetry export.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MetricsConfig contains Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ControllerConfig contains command execution settings.
type ControllerConfig struct {
	// PollInterval is how often the controller checks the queue when idle (milliseconds).
	PollInterval int `yaml:"poll_interval"`

	// StepTimeout is the maximum wait for a device acknowledgment per step (seconds).
	StepTimeout int `yaml:"step_timeout"`
}

// PollIntervalDuration returns the poll interval as a time.Duration.
func (c ControllerConfig) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

// StepTimeoutDuration returns the step timeout as a time.Duration.
func (c ControllerConfig) StepTimeoutDuration() time.Duration {
	return time.Duration(c.StepTimeout) * time.Second
}

// SimulatorConfig contains device physics settings shared by all simulated units.
type SimulatorConfig struct {
	// TickRate is the physics integration frequency in Hz.
	TickRate int `yaml:"tick_rate"`

	// MaxSpeed is the speed limit in units per second.
	MaxSpeed float64 `yaml:"max_speed"`

	// MaxAccel is the acceleration limit in units per second squared.
	MaxAccel float64 `yaml:"max_accel"`

	// Tolerance is the snap distance to a motion target in units.
	Tolerance float64 `yaml:"tolerance"`

	// GripDuration is how long a grip/release action holds the device (milliseconds).
	GripDuration int `yaml:"grip_duration"`

	// EnvelopeMax is the upper bound of the square work envelope (lower bound is 0).
	EnvelopeMax float64 `yaml:"envelope_max"`
}

// GripDurationTime returns the grip duration as a time.Duration.
func (c SimulatorConfig) GripDurationTime() time.Duration {
	return time.Duration(c.GripDuration) * time.Millisecond
}

// TickInterval returns the duration of one physics tick.
func (c SimulatorConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// InterlockConfig contains safety interlock settings.
type InterlockConfig struct {
	// Margin inflates each motion reservation on all sides, in units.
	Margin float64 `yaml:"margin"`

	// StaticZones are permanently reserved regions (e.g. cell boundary strips).
	StaticZones []ZoneConfig `yaml:"static_zones"`
}

// ZoneConfig describes a rectangular region in warehouse coordinates.
type ZoneConfig struct {
	Name string  `yaml:"name"`
	MinX float64 `yaml:"min_x"`
	MinY float64 `yaml:"min_y"`
	MaxX float64 `yaml:"max_x"`
	MaxY float64 `yaml:"max_y"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: WAREHOUSE_SECTION_KEY
// For example: WAREHOUSE_DATABASE_PATH, WAREHOUSE_MQTT_HOST
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "stf-cell-01",
			Name: "STF Warehouse",
		},
		Database: DatabaseConfig{
			Path:        "./data/warehouse.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Bus: BusConfig{
			Transport: "memory",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "warehouse-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9102",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Controller: ControllerConfig{
			PollInterval: 500,
			StepTimeout:  30,
		},
		Simulator: SimulatorConfig{
			TickRate:     10,
			MaxSpeed:     80.0,
			MaxAccel:     120.0,
			Tolerance:    1.0,
			GripDuration: 1000,
			EnvelopeMax:  400.0,
		},
		Interlock: InterlockConfig{
			Margin: 25.0,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
/// Environment variables follow the pattern: WAREHOUSE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("WAREHOUSE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Bus
	if v := os.Getenv("WAREHOUSE_BUS_TRANSPORT"); v != "" {
		cfg.Bus.Transport = v
	}

	// MQTT
	if v := os.Getenv("WAREHOUSE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("WAREHOUSE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("WAREHOUSE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("WAREHOUSE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("WAREHOUSE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.BusyTimeout < 0 {
		errs = append(errs, "database.busy_timeout must not be negative")
	}

	switch strings.ToLower(c.Bus.Transport) {
	case BusTransportMemory, BusTransportMQTT:
	default:
		errs = append(errs, fmt.Sprintf("bus.transport %q is not supported (memory, mqtt)", c.Bus.Transport))
	}

	if strings.EqualFold(c.Bus.Transport, "mqtt") {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when bus.transport is mqtt")
		}
		if c.MQTT.Broker.Port <= 0 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics are enabled")
	}

	if c.Controller.PollInterval <= 0 {
		errs = append(errs, "controller.poll_interval must be positive")
	}
	if c.Controller.StepTimeout <= 0 {
		errs = append(errs, "controller.step_timeout must be positive")
	}

	if c.Simulator.TickRate <= 0 {
		errs = append(errs, "simulator.tick_rate must be positive")
	}
	if c.Simulator.MaxSpeed <= 0 {
		errs = append(errs, "simulator.max_speed must be positive")
	}
	if c.Simulator.MaxAccel <= 0 {
		errs = append(errs, "simulator.max_accel must be positive")
	}
	if c.Simulator.Tolerance <= 0 {
		errs = append(errs, "simulator.tolerance must be positive")
	}
	if c.Simulator.EnvelopeMax <= 0 {
		errs = append(errs, "simulator.envelope_max must be positive")
	}

	if c.Interlock.Margin < 0 {
		errs = append(errs, "interlock.margin must not be negative")
	}
	for _, z := range c.Interlock.StaticZones {
		if z.MaxX < z.MinX || z.MaxY < z.MinY {
			errs = append(errs, fmt.Sprintf("interlock.static_zones[%s] has inverted bounds", z.Name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
