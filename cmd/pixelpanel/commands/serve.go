package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/pixelpanel/internal/api"
	"github.com/nerrad567/pixelpanel/internal/auth"
	"github.com/nerrad567/pixelpanel/internal/connection"
	"github.com/nerrad567/pixelpanel/internal/infrastructure/config"
	"github.com/nerrad567/pixelpanel/internal/infrastructure/database"
	"github.com/nerrad567/pixelpanel/internal/infrastructure/influxdb"
	"github.com/nerrad567/pixelpanel/internal/infrastructure/logging"
	"github.com/nerrad567/pixelpanel/internal/infrastructure/mqtt"
	"github.com/nerrad567/pixelpanel/internal/panel"
	"github.com/nerrad567/pixelpanel/internal/store"
	"github.com/nerrad567/pixelpanel/internal/telemetry"
	"github.com/nerrad567/pixelpanel/internal/validation"
	"github.com/nerrad567/pixelpanel/migrations"
)

func newServeCmd(configPath *string, info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to the device and serve the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath, info)
		},
	}
}

// runServe loads the configuration and runs the service until ctx is
// cancelled.
func runServe(ctx context.Context, configPath string, info BuildInfo) error {
	log := logging.Default()
	log.Info("starting PixelPanel",
		"version", info.Version,
		"commit", info.Commit,
		"build_date", info.Date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, info.Version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	return serve(ctx, cfg, log, info)
}

// serve wires every component. Deferred closes run in reverse order of
// construction, so the API stops before the device link and the stores.
func serve(ctx context.Context, cfg *config.Config, log *logging.Logger, info BuildInfo) error { //nolint:gocognit,gocyclo // main wiring
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := store.New(store.Options{
		MaxLogs:    cfg.Store.Retention.Logs,
		MaxSensors: cfg.Store.Retention.Sensors,
		MaxButtons: cfg.Store.Retention.Buttons,
		Logger:     log.Component("store"),
	})

	health := make(map[string]api.HealthChecker)
	metrics := make(map[string]func() any)
	g, gctx := errgroup.WithContext(ctx)

	// History database
	var history api.LogHistory
	if cfg.Store.Persist {
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
		log.Info("database connected", "path", cfg.Database.Path)

		applied, err := db.Migrate(ctx, migrations.FS)
		if err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database migrations complete", "applied", applied)

		repo := store.NewSQLiteRepository(db.DB, cfg.Device.Name)
		retention := time.Duration(cfg.Store.PersistRetentionDays) * 24 * time.Hour
		persister := store.NewPersister(repo, retention, log.Component("persister"))
		if err := persister.Restore(ctx, st); err != nil {
			return fmt.Errorf("restoring config: %w", err)
		}
		defer persister.Attach(st)()
		g.Go(func() error { return persister.Run(gctx) })

		history = repo
		health["database"] = db
		metrics["persister"] = func() any { return persister.Stats() }
	}

	// Device link
	mgr := connection.New(st, connection.Options{
		URL:              cfg.Device.URL,
		HandshakeTimeout: config.Seconds(cfg.Device.HandshakeTimeout),
		WriteTimeout:     config.Seconds(cfg.Device.WriteTimeout),
		AckTimeout:       config.Seconds(cfg.Device.AckTimeout),
		PingInterval:     config.Seconds(cfg.Device.PingInterval),
		Reconnect: connection.ReconnectPolicy{
			InitialDelay: config.Seconds(cfg.Device.Reconnect.InitialDelay),
			MaxDelay:     config.Seconds(cfg.Device.Reconnect.MaxDelay),
			MaxAttempts:  cfg.Device.Reconnect.MaxAttempts,
		},
		Logger: log.Component("connection"),
	})
	defer func() {
		log.Info("closing device connection")
		if closeErr := mgr.Close(); closeErr != nil {
			log.Error("error closing device connection", "error", closeErr)
		}
	}()

	svc := panel.New(st, mgr, validation.New(), log.Component("panel"))

	// MQTT mirror
	if cfg.MQTT.Enabled {
		topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix, cfg.Device.Name)
		mqttClient, err := mqtt.Connect(cfg.MQTT, topics)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("closing MQTT connection")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"topics", topics.All(),
		)

		mirror := telemetry.NewMirror(mqttClient, topics, byte(cfg.MQTT.QoS), svc, log.Component("mirror"))
		defer mirror.Attach(st)()
		// Retained topics are refreshed after every broker reconnect.
		mqttClient.SetOnConnect(func() { mirror.Republish(st) })
		mirror.Republish(st)

		if err := mqttClient.Subscribe(topics.ConfigSet(), byte(cfg.MQTT.QoS), mirror.HandleConfigSet); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topics.ConfigSet(), err)
		}
		g.Go(func() error { return mirror.Run(gctx) })

		health["mqtt"] = mqttClient
		metrics["mqtt_mirror"] = func() any { return mirror.Stats() }
	}

	// InfluxDB recorder
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(writeErr error) {
			log.Warn("influxdb write failed", "error", writeErr)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

		defer telemetry.NewRecorder(influxClient, cfg.Device.Name).Attach(st)()
		health["influxdb"] = influxClient
		metrics["influxdb"] = func() any { return influxClient.Stats() }
	}

	// Operator authentication
	var authenticator *auth.Authenticator
	if cfg.Security.AuthEnabled {
		if !auth.IsHash(cfg.Security.OperatorPasswordHash) {
			return errors.New("security.operator_password_hash is not an argon2id hash; create one with 'pixelpanel hash-password'")
		}
		authenticator = auth.NewAuthenticator(auth.Options{
			PasswordHash: cfg.Security.OperatorPasswordHash,
			Secret:       cfg.Security.JWT.Secret,
			TTL:          time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute,
		})
	} else {
		log.Warn("authentication disabled, config writes are open to any client")
	}

	// HTTP API
	srv, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log.Component("api"),
		Store:   st,
		Device:  mgr,
		Panel:   svc,
		Auth:    authenticator,
		History: history,
		Health:  health,
		Metrics: metrics,
		Version: info.Version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server listening", "addr", srv.Addr())

	// The manager keeps retrying in the background when the first dial fails.
	if err := mgr.Start(ctx); err != nil {
		log.Warn("device not reachable, reconnecting in background",
			"url", cfg.Device.URL,
			"error", err,
		)
	} else {
		log.Info("device connected", "url", cfg.Device.URL)
	}

	log.Info("PixelPanel started successfully")

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("shutting down PixelPanel")
	return nil
}
