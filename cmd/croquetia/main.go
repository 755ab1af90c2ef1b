// Croquetia broker
//
// Relays producer messages (colour pickers, dragon staffs, the croquet
// scorer) from WebSocket and MQTT to the Firestorm lighting gateway.
//
// Usage:
//
//	croquetia [--config configs/config.yaml] [--env-file .env]
//	croquetia --config configs/config.yaml --migrate-down
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/croquetia-core/internal/api"
	"github.com/nerrad567/croquetia-core/internal/broker"
	"github.com/nerrad567/croquetia-core/internal/firestorm"
	"github.com/nerrad567/croquetia-core/internal/infrastructure/config"
	"github.com/nerrad567/croquetia-core/internal/infrastructure/database"
	"github.com/nerrad567/croquetia-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/croquetia-core/internal/infrastructure/logging"
	"github.com/nerrad567/croquetia-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/croquetia-core/internal/journal"
	"github.com/nerrad567/croquetia-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultEnvFile  = ".env"
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	envFile     string
	envFileSet  bool
	showVersion bool
	migrateDown bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("croquetia", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to YAML config (env CROQUETIA_CONFIG)")
	fs.StringVar(&opts.envFile, "env-file", defaultEnvFile, "dotenv file loaded before environment overrides")
	fs.BoolVarP(&opts.showVersion, "version", "v", false, "print version and exit")
	fs.BoolVar(&opts.migrateDown, "migrate-down", false, "roll back the latest journal migration and exit")
	if err := fs.Parse(args); err != nil {
		return opts, fmt.Errorf("parsing flags: %w", err)
	}
	opts.envFileSet = fs.Changed("env-file")
	if opts.configPath == "" {
		opts.configPath = os.Getenv("CROQUETIA_CONFIG")
	}
	return opts, nil
}

// run wires the broker and blocks until ctx is cancelled. Optional
// components (journal, MQTT, InfluxDB) that fail to start are logged and
// skipped. The only runtime failure that ends the process is a listener
// that cannot bind.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - args: Command-line arguments without the program name
//   - stdout: Destination for --version and --migrate-down output
//
// Returns:
//   - error: nil on clean shutdown
func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "croquetia %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	log := logging.Default()

	if err := config.LoadDotEnv(opts.envFile, opts.envFileSet); err != nil {
		return err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	if opts.migrateDown {
		return rollbackJournal(ctx, cfg.Database, stdout)
	}

	log.Info("starting croquetia broker",
		"version", version,
		"commit", commit,
		"config", opts.configPath,
	)

	infra := connectInfrastructure(ctx, cfg, log)
	defer infra.close(log)

	gateway := firestorm.New(cfg.FirestormURL(), firestorm.WithTimeout(cfg.GetFirestormTimeout()))
	log.Info("firestorm gateway", "url", gateway.BaseURL())

	deps := broker.Deps{
		Gateway:        gateway,
		Logger:         log,
		StreamInterval: cfg.Stream.Interval,
		MaxInFlight:    cfg.Stream.MaxInFlight,
		CommandTimeout: cfg.GetFirestormTimeout(),
	}
	checks := map[string]api.HealthChecker{}
	if infra.db != nil {
		deps.Journal = infra.journal
		checks["database"] = infra.db
	}
	if infra.mqtt != nil {
		deps.Publisher = infra.mqtt
		deps.Ingress = infra.mqtt
		checks["mqtt"] = infra.mqtt
	}
	if infra.influx != nil {
		deps.Telemetry = infra.influx
		checks["influxdb"] = infra.influx
	}

	b := broker.New(deps)
	if err := b.Start(ctx); err != nil {
		log.Warn("broker started without MQTT ingress", "error", err)
	}

	server, err := api.New(api.Deps{
		Config:  cfg.Broker,
		Logger:  log,
		Broker:  b,
		Version: version,
		Checks:  checks,
	})
	if err != nil {
		return err
	}
	if err := server.Start(ctx); err != nil {
		shutdownBroker(b, log)
		return err
	}

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if err := server.Close(); err != nil {
		log.Error("error closing API server", "error", err)
	}
	shutdownBroker(b, log)

	log.Info("croquetia broker stopped")
	return nil
}

func shutdownBroker(b *broker.Broker, log *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := b.Shutdown(ctx); err != nil {
		log.Warn("broker shutdown cut short", "error", err)
	}
}

// infrastructure holds the optional backing services. A nil field means
// the service is disabled or failed to start.
type infrastructure struct {
	db      *database.DB
	journal journal.Repository
	mqtt    *mqtt.Client
	influx  *influxdb.Client
}

// connectInfrastructure brings up the database, MQTT and InfluxDB in
// parallel.
func connectInfrastructure(ctx context.Context, cfg *config.Config, log *logging.Logger) *infrastructure {
	infra := &infrastructure{}
	var g errgroup.Group

	if cfg.Database.Enabled {
		g.Go(func() error {
			db, err := openJournal(ctx, cfg.Database)
			if err != nil {
				log.Warn("journal disabled", "error", err)
				return nil
			}
			infra.db = db
			infra.journal = journal.NewSQLiteRepository(db.DB)
			log.Info("journal ready", "path", db.Path())
			return nil
		})
	}

	if cfg.MQTT.Enabled {
		g.Go(func() error {
			client, err := mqtt.Connect(cfg.MQTT)
			if err != nil {
				log.Warn("MQTT disabled", "error", err)
				return nil
			}
			client.SetLogger(log.With("component", "mqtt"))
			infra.mqtt = client
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
			return nil
		})
	}

	if cfg.InfluxDB.Enabled {
		g.Go(func() error {
			client, err := influxdb.Connect(cfg.InfluxDB)
			if err != nil {
				log.Warn("InfluxDB disabled", "error", err)
				return nil
			}
			client.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			infra.influx = client
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
			return nil
		})
	}

	//nolint:errcheck // Every task logs its own failure and returns nil
	g.Wait()
	return infra
}

func openJournal(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return nil, errors.Join(fmt.Errorf("running migrations: %w", err), db.Close())
	}
	return db, nil
}

// rollbackJournal undoes the most recent journal migration.
func rollbackJournal(ctx context.Context, cfg config.DatabaseConfig, stdout io.Writer) error {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Best effort on exit

	applied, _, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	if len(applied) == 0 {
		fmt.Fprintln(stdout, "no migrations to roll back")
		return nil
	}
	if err := db.MigrateDown(ctx, migrations.FS); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	fmt.Fprintf(stdout, "rolled back migration %s\n", applied[len(applied)-1].Version)
	return nil
}

// close shuts services down in reverse dependency order. MQTT goes first
// so the offline status is published while the process is still healthy.
func (i *infrastructure) close(log *logging.Logger) {
	if i.mqtt != nil {
		log.Info("disconnecting from MQTT")
		if err := i.mqtt.Close(); err != nil {
			log.Error("error closing MQTT", "error", err)
		}
	}
	if i.influx != nil {
		log.Info("closing InfluxDB connection")
		if err := i.influx.Close(); err != nil {
			log.Error("error closing InfluxDB", "error", err)
		}
	}
	if i.db != nil {
		log.Info("closing database")
		if err := i.db.Close(); err != nil {
			log.Error("error closing database", "error", err)
		}
	}
}
