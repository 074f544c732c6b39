// Warehouse Twin Core
//
// Entry point for the warehouse digital twin: a durable command queue, an
// FSM controller, simulated devices on a pub/sub hardware bus, a safety
// interlock and an energy telemetry pipeline, all wired here and torn
// down in reverse on shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/stflabs/warehouse-core/migrations"

	"github.com/stflabs/warehouse-core/internal/alert"
	"github.com/stflabs/warehouse-core/internal/bus"
	"github.com/stflabs/warehouse-core/internal/command"
	"github.com/stflabs/warehouse-core/internal/controller"
	"github.com/stflabs/warehouse-core/internal/infrastructure/config"
	"github.com/stflabs/warehouse-core/internal/infrastructure/database"
	"github.com/stflabs/warehouse-core/internal/infrastructure/influxdb"
	"github.com/stflabs/warehouse-core/internal/infrastructure/logging"
	"github.com/stflabs/warehouse-core/internal/infrastructure/mqtt"
	"github.com/stflabs/warehouse-core/internal/interlock"
	"github.com/stflabs/warehouse-core/internal/layout"
	"github.com/stflabs/warehouse-core/internal/simulator"
	"github.com/stflabs/warehouse-core/internal/telemetry"
)

// Version information - set at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// statePersistInterval is how often device poses are checkpointed to
// SQLite; a restart resumes from the last checkpoint.
const statePersistInterval = 2 * time.Second

// flushInterval is the telemetry push cadence to InfluxDB/Prometheus.
const flushInterval = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Warehouse Twin Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	// Database and migrations.
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Hardware bus: in-process by default, MQTT when configured.
	hwBus, busCleanup, err := buildBus(cfg, log)
	if err != nil {
		return fmt.Errorf("starting hardware bus: %w", err)
	}
	defer busCleanup()

	// Telemetry: accumulator always, Influx and Prometheus when enabled.
	accumulator := telemetry.NewAccumulator()

	var influxClient *influxdb.Client
	var sink telemetry.Sink
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			influxClient.Close()
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		sink = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	var metrics *telemetry.Metrics
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewMetrics()
		srv := metrics.Serve(cfg.Metrics.Listen)
		go func() {
			if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				log.Error("metrics server", "error", serveErr)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer shutdownCancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck // Best effort on exit
		}()
		log.Info("metrics server listening", "addr", cfg.Metrics.Listen)
	}

	flusher := telemetry.NewFlusher(accumulator, sink, metrics, flushInterval, log)
	go flusher.Run(ctx) //nolint:errcheck // Exits via cancellation

	// Device simulators, resuming from persisted positions.
	stateRepo := simulator.NewSQLiteStateRepository(db.DB)
	devices := buildDevices(ctx, cfg, hwBus, accumulator, stateRepo, log)
	for _, dev := range devices {
		go func(d *simulator.Device) {
			if runErr := d.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
				log.Error("device simulator exited", "device", d.ID(), "error", runErr)
			}
		}(dev)
	}
	log.Info("device simulators started", "count", len(devices))

	persister := simulator.NewPersister(stateRepo, devices, statePersistInterval, log)
	go persister.Run(ctx) //nolint:errcheck // Exits via cancellation

	// Safety interlock with configured static zones.
	staticZones := make([]interlock.StaticZone, 0, len(cfg.Interlock.StaticZones))
	for _, z := range cfg.Interlock.StaticZones {
		staticZones = append(staticZones, interlock.StaticZone{
			Name: z.Name,
			Rect: interlock.Rect{MinX: z.MinX, MinY: z.MinY, MaxX: z.MaxX, MaxY: z.MaxY},
		})
	}
	guard := interlock.NewGuard(cfg.Interlock.Margin, staticZones)

	// The controller loop owns the queue from here until shutdown.
	ctrl := controller.New(controller.Options{
		Queue:   command.NewSQLiteQueue(db.DB),
		Slots:   layout.NewSQLiteSlotRepository(db.DB),
		Alerts:  alert.NewSQLiteRepository(db.DB),
		Guard:   guard,
		Bus:     hwBus,
		Metrics: metrics,
		Logger:  log,
		Config:  cfg.Controller,
	})

	log.Info("initialisation complete", "site", cfg.Site.ID)
	err = ctrl.Run(ctx)

	log.Info("Warehouse Twin Core stopped")
	return err
}

// buildBus creates the configured bus transport and its cleanup.
func buildBus(cfg *config.Config, log *logging.Logger) (bus.Bus, func(), error) {
	switch strings.ToLower(cfg.Bus.Transport) {
	case config.BusTransportMQTT:
		mqttClient, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		b := bus.NewMQTTBus(mqttClient, byte(cfg.MQTT.QoS))
		cleanup := func() {
			log.Info("disconnecting from MQTT")
			if err := mqttClient.Close(); err != nil {
				log.Error("error closing MQTT", "error", err)
			}
		}
		return b, cleanup, nil

	default:
		log.Info("using in-process hardware bus")
		b := bus.NewMemoryBus()
		cleanup := func() {
			if err := b.Close(); err != nil {
				log.Error("error closing bus", "error", err)
			}
		}
		return b, cleanup, nil
	}
}

// buildDevices creates the standard cell: the crane, the transfer robot
// and the conveyor, each starting from its last persisted position.
func buildDevices(ctx context.Context, cfg *config.Config, hwBus bus.Bus, rec simulator.Recorder, stateRepo simulator.StateRepository, log *logging.Logger) []*simulator.Device {
	home, _ := layout.ZonePosition(layout.ZoneHome)
	conveyorStation, _ := layout.ZonePosition(layout.ZoneConveyor)

	defaults := map[string]layout.Position{
		"hbw":      home,
		"vgr":      home,
		"conveyor": conveyorStation,
	}

	devices := make([]*simulator.Device, 0, len(defaults))
	for _, id := range []string{"hbw", "vgr", "conveyor"} {
		start := simulator.StartPosition(ctx, stateRepo, id, defaults[id])
		devices = append(devices, simulator.New(id, start, cfg.Simulator, hwBus, rec, log))
	}
	return devices
}

// getConfigPath returns the configuration file path.
// Uses WAREHOUSE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("WAREHOUSE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
