// Wyvern daemon - MSI embedded controller service
//
// wyvernd owns the EC register file on an MSI laptop and exposes it
// over a REST API, WebSocket telemetry and an MQTT bridge. Fan
// profiles and register addresses come from the shared isw.conf INI
// file; the daemon's own YAML config covers everything else (paths,
// broker, API, storage).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/icesealed/wyvern/migrations"

	"github.com/icesealed/wyvern/internal/api"
	"github.com/icesealed/wyvern/internal/audit"
	"github.com/icesealed/wyvern/internal/bridge"
	"github.com/icesealed/wyvern/internal/ec"
	"github.com/icesealed/wyvern/internal/engine"
	"github.com/icesealed/wyvern/internal/infrastructure/config"
	"github.com/icesealed/wyvern/internal/infrastructure/database"
	"github.com/icesealed/wyvern/internal/infrastructure/influxdb"
	"github.com/icesealed/wyvern/internal/infrastructure/logging"
	"github.com/icesealed/wyvern/internal/infrastructure/mqtt"
	"github.com/icesealed/wyvern/internal/monitor"
	"github.com/icesealed/wyvern/internal/profile"
)

// Build metadata, stamped by the linker:
//
//	go build -ldflags "-X main.version=1.2.0 -X main.commit=$(git rev-parse --short HEAD)"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "/etc/wyvern/config.yaml"

func main() {
	// Cancel on Ctrl+C or SIGTERM so every component shuts down
	// through the same context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Components start in dependency order and the deferred
// closes unwind them in reverse on shutdown.
func run(ctx context.Context) error {
	// Bootstrap logger; swapped for the configured one below.
	log := logging.Default()
	log.Info("starting wyvernd",
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
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	host, err := os.Hostname()
	if err != nil {
		host = "wyvern"
	}

	// Open database and run migrations
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

	// Profile store over the shared INI file. A broken or missing
	// configuration file is fatal at startup, not at first use.
	store := profile.NewStore(cfg.EC.ConfPath)
	if _, mapErr := store.AddressMap(profile.SectionAddressDefault); mapErr != nil {
		return fmt.Errorf("validating %s: %w", cfg.EC.ConfPath, mapErr)
	}
	log.Info("profile store ready", "path", cfg.EC.ConfPath)

	// EC transport. The register file may not exist yet (ec_sys not
	// loaded); the lazy transport lets the daemon come up degraded and
	// start working the moment the module is loaded.
	transport := ec.NewLazy(cfg.EC.IOPath)
	defer func() {
		if closeErr := transport.Close(); closeErr != nil {
			log.Error("error closing ec transport", "error", closeErr)
		}
	}()
	if transport.Available() {
		log.Info("ec interface present", "path", cfg.EC.IOPath)
	} else {
		log.Warn("ec interface not present, continuing degraded",
			"path", cfg.EC.IOPath,
			"hint", "modprobe ec_sys write_support=1",
		)
	}

	eng := engine.New(transport, log)

	// Audit trail for every mutation, shared by API and MQTT bridge.
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Persistent telemetry history (optional).
	var history *monitor.SQLiteSampleHistory
	if cfg.Monitor.Persist {
		history = monitor.NewSQLiteSampleHistory(db.DB)
		if cfg.Monitor.RetentionDays > 0 {
			retention := time.Duration(cfg.Monitor.RetentionDays) * 24 * time.Hour
			go pruneHistoryLoop(ctx, history, retention, log)
		}
	}

	// One WebSocket hub shared between the API server and the MQTT
	// bridge, run by us so both can fan out to the same clients.
	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(log, cfg.API.WebSocket)
		go hub.Run(ctx)
	}

	var mon *monitor.Monitor
	if cfg.Monitor.Enabled {
		mon = monitor.New(eng, store, monitor.Options{
			Interval:    cfg.Monitor.Interval(),
			HistorySize: cfg.Monitor.HistorySize,
		}, log)
	} else {
		log.Info("telemetry monitor disabled")
	}

	// Broker connection for the MQTT bridge, when enabled.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB writer for long-term telemetry, when enabled.
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// MQTT bridge: remote profile/boost/backlight/battery control.
	var ecBridge *bridge.Bridge
	if mqttClient != nil {
		opts := bridge.Options{
			Store:  store,
			Engine: eng,
			MQTT:   mqttClient,
			Topics: mqttClient.Topics(),
			QoS:    byte(cfg.MQTT.QoS),
			Audit:  auditRepo,
			Influx: influxClient,
			Host:   host,
			Logger: log,
		}
		if hub != nil {
			opts.Broadcaster = hub
		}
		ecBridge, err = bridge.New(opts)
		if err != nil {
			return fmt.Errorf("creating mqtt bridge: %w", err)
		}
		if startErr := ecBridge.Start(); startErr != nil {
			return fmt.Errorf("starting mqtt bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping mqtt bridge")
			ecBridge.Stop()
		}()
		log.Info("mqtt bridge started",
			"prefix", cfg.MQTT.TopicPrefix,
			"qos", cfg.MQTT.QoS,
		)
	}

	// Fan telemetry samples out to every consumer, then start
	// sampling. Observers must be attached before Run.
	if mon != nil {
		if history != nil {
			mon.OnSample(func(s monitor.Sample) {
				if recErr := history.Record(ctx, s); recErr != nil {
					log.Error("recording telemetry sample", "error", recErr)
				}
			})
		}
		if ecBridge != nil {
			mon.OnSample(ecBridge.PublishTelemetry)
		}
		if influxClient != nil {
			mon.OnSample(func(s monitor.Sample) {
				influxClient.WriteTelemetry(host, influxdb.TelemetryPoint{
					CPUTemp:     s.CPUTemp,
					CPUFanSpeed: s.CPUFanSpeed,
					CPUFanRPM:   s.CPUFanRPM,
					GPUTemp:     s.GPUTemp,
					GPUFanSpeed: s.GPUFanSpeed,
					GPUFanRPM:   s.GPUFanRPM,
					Time:        s.Time,
				})
			})
		}
		if hub != nil {
			mon.OnSample(func(s monitor.Sample) {
				hub.Broadcast(api.ChannelTelemetry, s)
			})
		}
		go func() {
			if runErr := mon.Run(ctx); runErr != nil {
				log.Error("telemetry monitor stopped", "error", runErr)
			}
		}()
	}

	// REST API + WebSocket server (optional)
	var apiServer *api.Server
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:      cfg.API,
			Logger:      log,
			Store:       store,
			Engine:      eng,
			Monitor:     mon,
			Audit:       auditRepo,
			Influx:      influxClient,
			ExternalHub: hub,
			Version:     version,
		}
		if history != nil {
			deps.History = history
		}
		apiServer, err = api.New(deps)
		if err != nil {
			return fmt.Errorf("creating api server: %w", err)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting api server: %w", startErr)
		}
		defer func() {
			log.Info("stopping api server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing api server", "error", closeErr)
			}
		}()
		log.Info("api server started",
			"addr", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
			"auth", cfg.API.Auth.Enabled,
		)
	} else {
		log.Info("api server disabled")
	}

	// Gate startup on every connected subsystem answering.
	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls unwind in reverse order:
	// API server, bridge, InfluxDB, MQTT, transport, database.

	log.Info("wyvernd stopped")
	return nil
}

// getConfigPath returns WYVERN_CONFIG when set, else defaultConfigPath.
func getConfigPath() string {
	if path := os.Getenv("WYVERN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck pings each running subsystem once. Nil clients mean the
// subsystem is disabled and are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if apiServer != nil {
		if err := apiServer.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}

	// EC availability is deliberately not part of the health gate: the
	// daemon serves configuration and history even when the register
	// file is absent, and reports availability via /health instead.

	return nil
}

// pruneHistoryLoop deletes persisted telemetry older than the
// retention window, once an hour.
func pruneHistoryLoop(ctx context.Context, history *monitor.SQLiteSampleHistory, retention time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := history.Prune(ctx, retention)
			if err != nil {
				log.Error("pruning telemetry history", "error", err)
				continue
			}
			if n > 0 {
				log.Debug("telemetry history pruned", "rows", n)
			}
		}
	}
}
