// volumio-hid - RFID jukebox daemon for Volumio
//
// This is the main entry point for the volumio-hid daemon. It grabs a
// USB RFID reader for exclusive use, folds its keystrokes into card
// identifiers, resolves them against the configured command table and
// emits the resulting media commands to a Volumio server over a
// persistent session.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/edmw/volumio-hid/migrations"

	"github.com/edmw/volumio-hid/internal/announce"
	"github.com/edmw/volumio-hid/internal/api"
	"github.com/edmw/volumio-hid/internal/command"
	"github.com/edmw/volumio-hid/internal/hid"
	"github.com/edmw/volumio-hid/internal/history"
	"github.com/edmw/volumio-hid/internal/infrastructure/config"
	"github.com/edmw/volumio-hid/internal/infrastructure/database"
	"github.com/edmw/volumio-hid/internal/infrastructure/logging"
	"github.com/edmw/volumio-hid/internal/reader"
	"github.com/edmw/volumio-hid/internal/supervisor"
	"github.com/edmw/volumio-hid/internal/telemetry"
	"github.com/edmw/volumio-hid/internal/volumio"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// shutdownGrace bounds the teardown after a shutdown signal.
const shutdownGrace = 10 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // daemon assembly: each optional subsystem adds a branch
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting volumio-hid",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "commands", len(cfg.Commands))

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Build the command table from configuration
	table, err := command.NewTable(cfg.Commands)
	if err != nil {
		return fmt.Errorf("building command table: %w", err)
	}
	table.SetLogger(log)

	// Open scan history database (optional)
	var store *history.Store
	var db *database.DB
	if cfg.History.Enabled {
		db, err = database.Open(database.Config{
			Path:        cfg.History.Path,
			WALMode:     cfg.History.WALMode,
			BusyTimeout: cfg.History.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		defer func() {
			log.Info("closing history database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing history database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		store = history.NewStore(db.DB)
		store.SetLogger(log)
		log.Info("scan history enabled", "path", cfg.History.Path)
	} else {
		log.Info("scan history disabled")
	}

	// Connect to InfluxDB (optional)
	var metrics *telemetry.Client
	if cfg.Telemetry.Enabled {
		metrics, err = telemetry.Connect(cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing telemetry connection")
			if closeErr := metrics.Close(); closeErr != nil {
				log.Error("error closing telemetry", "error", closeErr)
			}
		}()
		metrics.SetOnError(func(err error) {
			log.Error("telemetry write error", "error", err)
		})
		log.Info("telemetry connected", "url", cfg.Telemetry.URL, "bucket", cfg.Telemetry.Bucket)
	} else {
		log.Info("telemetry disabled")
	}

	// Connect the MQTT announcer (optional)
	var announcer *announce.Announcer
	if cfg.Announce.Enabled {
		announcer, err = announce.Connect(cfg.Announce)
		if err != nil {
			return fmt.Errorf("connecting announcer: %w", err)
		}
		announcer.SetLogger(log)
		defer func() {
			log.Info("disconnecting announcer")
			if closeErr := announcer.Close(); closeErr != nil {
				log.Error("error closing announcer", "error", closeErr)
			}
		}()
		log.Info("announcer connected",
			"broker", fmt.Sprintf("%s:%d", cfg.Announce.Broker.Host, cfg.Announce.Broker.Port),
			"prefix", cfg.Announce.TopicPrefix,
		)
	} else {
		log.Info("announcer disabled")
	}

	// Grab the input device for exclusive use. Startup fails when the
	// reader is missing: a jukebox without its reader is useless.
	device, err := hid.Open(cfg.Device.Path)
	if err != nil {
		return fmt.Errorf("opening input device: %w", err)
	}
	log.Info("input device grabbed", "path", cfg.Device.Path)

	// Establish the Volumio session. The initial connection is
	// synchronous and fatal on failure; later drops redial in the
	// background.
	connectCtx, cancelConnect := context.WithTimeout(ctx, cfg.GetConnectTimeout())
	session, err := volumio.Connect(connectCtx, cfg.Volumio)
	cancelConnect()
	if err != nil {
		device.Close() //nolint:errcheck // Device teardown on failed startup
		return fmt.Errorf("connecting to volumio: %w", err)
	}
	session.SetLogger(log)
	defer func() {
		log.Info("closing volumio session")
		if closeErr := session.Close(); closeErr != nil {
			log.Error("error closing volumio session", "error", closeErr)
		}
	}()
	log.Info("volumio session established",
		"server", fmt.Sprintf("%s:%d", cfg.Volumio.Host, cfg.Volumio.Port),
	)

	// State-dependent commands (toggleMute) read the session's player
	// snapshot at dispatch time.
	table.SetStateReader(session)

	// Wire session events into telemetry and the announcer.
	session.SetOnDisconnect(func(err error) {
		log.Warn("volumio session lost", "error", err)
		if metrics != nil {
			metrics.WriteSessionEvent("disconnected")
		}
	})
	session.SetOnConnect(func() {
		log.Info("volumio session re-established")
		if metrics != nil {
			metrics.WriteSessionEvent("reconnected")
		}
	})
	session.SetOnState(func(state volumio.State) {
		if metrics != nil {
			metrics.WritePlayerState(state.Status, state.Volume, state.Mute)
		}
		if announcer != nil {
			if pubErr := announcer.PublishPlayerState(state); pubErr != nil {
				log.Warn("player state announcement failed", "error", pubErr)
			}
		}
	})

	// Assemble the device pipeline.
	pipeline := reader.New(device, reader.NewAccumulator(cfg.Device.OnUnknown), table, session)
	pipeline.SetLogger(log)
	if recorder := newScanRecorder(store, metrics, announcer, log); recorder != nil {
		pipeline.SetRecorder(recorder)
	}

	// Start supervised tasks.
	sup := supervisor.New(ctx)
	sup.SetLogger(log)
	sup.Go("pipeline", pipeline.Run)

	// Start the status server (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:     cfg.API,
			Logger:     log,
			Version:    version,
			DevicePath: cfg.Device.Path,
			Player:     session,
			Tasks:      sup,
		}
		if store != nil {
			deps.Scans = store
		}
		server, newErr := api.New(deps)
		if newErr != nil {
			return fmt.Errorf("creating status server: %w", newErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting status server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing status server", "error", closeErr)
			}
		}()
	} else {
		log.Info("status server disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, session, metrics, announcer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	if metrics != nil {
		metrics.WriteSessionEvent("connected")
	}

	log.Info("initialisation complete, waiting for cards")

	// Wait for the pipeline to end or a shutdown signal.
	errCh := make(chan error, 1)
	go func() { errCh <- sup.Wait() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("pipeline stopped: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received, stopping tasks")
		if err := sup.Shutdown(shutdownGrace); err != nil {
			log.Error("shutdown incomplete", "error", err)
		}
	}

	log.Info("volumio-hid stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VOLUMIOHID_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VOLUMIOHID_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: History database (may be nil if disabled)
//   - session: Volumio session to check
//   - metrics: Telemetry client (may be nil if disabled)
//   - announcer: MQTT announcer (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, session *volumio.Session, metrics *telemetry.Client, announcer *announce.Announcer) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("history database: %w", err)
		}
	}

	if err := session.HealthCheck(ctx); err != nil {
		return fmt.Errorf("volumio: %w", err)
	}

	if metrics != nil {
		if err := metrics.HealthCheck(ctx); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}

	if announcer != nil {
		if err := announcer.HealthCheck(ctx); err != nil {
			return fmt.Errorf("announce: %w", err)
		}
	}

	return nil
}

// scanRecorder fans one scan out to every enabled sink: the history
// store, telemetry and the MQTT announcer.
type scanRecorder struct {
	store     *history.Store
	metrics   *telemetry.Client
	announcer *announce.Announcer
	log       *logging.Logger
}

// newScanRecorder returns nil when no sink is enabled, so the pipeline
// skips recording entirely.
func newScanRecorder(store *history.Store, metrics *telemetry.Client, announcer *announce.Announcer, log *logging.Logger) reader.Recorder {
	if store == nil && metrics == nil && announcer == nil {
		return nil
	}
	return &scanRecorder{store: store, metrics: metrics, announcer: announcer, log: log}
}

// Record implements reader.Recorder.
func (r *scanRecorder) Record(ctx context.Context, identifier string, outcome command.Outcome, commandName string) {
	if r.store != nil {
		r.store.Record(ctx, identifier, outcome, commandName)
	}
	if r.metrics != nil {
		r.metrics.WriteScan(identifier, outcome, commandName)
	}
	if r.announcer != nil {
		if err := r.announcer.PublishScan(identifier, outcome, commandName); err != nil {
			r.log.Warn("scan announcement failed", "identifier", identifier, "error", err)
		}
	}
}
