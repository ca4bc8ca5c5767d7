// OpenDeck Core routes stream-deck style hardware input to plugins.
//
// It owns the device registry, the per-device profiles and the action
// instances bound to them, and serves the plugin socket and REST API that
// plugins and the configuration UI connect to.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/api"
	"github.com/nerrad567/opendeck-core/internal/audit"
	"github.com/nerrad567/opendeck-core/internal/bridges/deck"
	"github.com/nerrad567/opendeck-core/internal/bus"
	"github.com/nerrad567/opendeck-core/internal/device"
	"github.com/nerrad567/opendeck-core/internal/infrastructure/config"
	"github.com/nerrad567/opendeck-core/internal/infrastructure/database"
	"github.com/nerrad567/opendeck-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/opendeck-core/internal/infrastructure/logging"
	"github.com/nerrad567/opendeck-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/opendeck-core/internal/notify"
	"github.com/nerrad567/opendeck-core/internal/profile"
	"github.com/nerrad567/opendeck-core/internal/router"
	"github.com/nerrad567/opendeck-core/migrations"
)

// Version information, set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, serves until ctx is cancelled and shuts down
// in reverse order. Separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting OpenDeck Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "config_root", cfg.Paths.ConfigRoot)

	// Audit trail
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", db.Path())

	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo, "core", 0)
	recorder.SetLogger(log.With("component", "audit"))

	// Plugins and devices
	devices := device.NewRegistry()
	devices.SetLogger(log.With("component", "devices"))
	catalog := action.NewCatalog()
	loaded, loadErr := catalog.LoadPlugins(cfg.PluginsDir(), devices.ClaimNamespace)
	if loadErr != nil {
		log.Warn("some plugins failed to load", "error", loadErr)
	}
	log.Info("plugins loaded", "dir", cfg.PluginsDir(), "plugins", len(loaded))

	messageBus := bus.New(cfg.PluginsDir())
	messageBus.SetLogger(log.With("component", "bus"))

	profiles := profile.NewManager(profile.Options{
		Root:           cfg.Paths.ConfigRoot,
		PluginsDir:     cfg.PluginsDir(),
		DefaultProfile: cfg.Routing.DefaultProfile,
		Devices:        devices,
		Definitions:    catalog,
		Plugins:        messageBus,
	})
	profiles.SetLogger(log.With("component", "profiles"))

	// MQTT (optional): driver traffic and UI notifications
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
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional): input and session telemetry
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	bridgeOpts := deck.Options{Plugins: messageBus, QoS: byte(cfg.MQTT.QoS), Logger: log.With("component", "deck")}
	notifyOpts := notify.Options{Logger: log.With("component", "notify")}
	if mqttClient != nil {
		bridgeOpts.MQTT = mqttClient
		bridgeOpts.Topics = mqttClient.Topics()
		notifyOpts.MQTT = mqttClient
		notifyOpts.Topics = mqttClient.Topics()
	}
	bridge := deck.NewBridge(bridgeOpts)

	hub := api.NewHub(log)
	notifyOpts.Hub = hub
	notifier := notify.New(notifyOpts)

	routerOpts := router.Options{
		Profiles:    profiles,
		Devices:     devices,
		Catalog:     catalog,
		Bus:         messageBus,
		Driver:      bridge,
		Notifier:    notifier,
		Auditor:     recorder,
		SettingsDir: cfg.SettingsDir(),
		SettleDelay: cfg.SettleDelay(),
	}
	apiDeps := api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Bus:     messageBus,
		Catalog: catalog,
		Deck:    bridge,
		Audit:   auditRepo,
		DB:      db,
		MQTT:    mqttClient,
		Hub:     hub,
		Version: version,
	}
	if influxClient != nil {
		routerOpts.Metrics = influxClient
		apiDeps.Sessions = influxClient
	}
	r := router.New(routerOpts)
	r.SetLogger(log.With("component", "router"))
	apiDeps.Router = r

	// Background workers outlive the server so late audit entries and
	// notifications still land during shutdown.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	g, gctx := errgroup.WithContext(bgCtx)
	g.Go(func() error { return recorder.Run(gctx) })
	g.Go(func() error { return notifier.Run(gctx) })

	if err := bridge.Start(bgCtx, r); err != nil {
		return fmt.Errorf("starting deck bridge: %w", err)
	}
	defer bridge.Stop()

	server, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		//nolint:errcheck // Startup already failed
		server.Close()
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal", "address", server.Addr())

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if err := server.Close(); err != nil {
		log.Error("error closing API server", "error", err)
	}
	bridge.Stop()
	stopBackground()
	if err := g.Wait(); err != nil {
		log.Error("background worker failed", "error", err)
	}
	if dropped := notifier.Dropped(); dropped > 0 {
		log.Warn("ui notifications dropped", "count", dropped)
	}

	log.Info("OpenDeck Core stopped")
	return nil
}

// getConfigPath returns OPENDECK_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("OPENDECK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections. MQTT and InfluxDB
// are skipped when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
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
	return nil
}
