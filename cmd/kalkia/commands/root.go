package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Simplici0/kalkia/internal/calculation"
	"github.com/Simplici0/kalkia/internal/catalog"
	"github.com/Simplici0/kalkia/internal/config"
	"github.com/Simplici0/kalkia/internal/db"
	"github.com/Simplici0/kalkia/internal/logger"
	"github.com/Simplici0/kalkia/internal/migrations"
	"github.com/Simplici0/kalkia/internal/pricing"
	"github.com/Simplici0/kalkia/internal/snapshot"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	dbPath  string
	envFile string
	verbose bool
}

// NewRootCmd builds the kalkia command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "kalkia",
		Short: "Kalkia - pricing engine for electrical and solar installation work",
		Long: `Kalkia prices electrical and solar installation work from a component
catalog: labor time, materials, overhead, risk, margin, discount and VAT,
with a coverage (DB) health check on every calculation.

Commands:
  migrate  - Apply database migrations
  seed     - Insert the demo catalog
  calc     - Calculate a request file and store the result
  list     - List stored calculations
  show     - Render a stored calculation`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to read configuration from")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")

	root.AddCommand(
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newCalcCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is the wiring one command invocation needs.
type app struct {
	cfg  config.Config
	db   *sql.DB
	log  zerolog.Logger
	calc *calculation.Service
}

func loadConfig(opts *globalOptions) (config.Config, error) {
	cfg, err := config.LoadFile(opts.envFile)
	if err != nil {
		return config.Config{}, err
	}
	if opts.dbPath != "" {
		cfg.DBPath = opts.dbPath
	}
	return cfg, nil
}

// cliLogger writes plain console logs to stderr. Info is suppressed unless
// verbose so command output stays readable.
func cliLogger(cfg config.Config, opts *globalOptions, stderr io.Writer) zerolog.Logger {
	level := cfg.LogLevel
	if opts.verbose {
		level = "debug"
	} else if level == "info" {
		level = "warn"
	}
	return logger.NewWithWriter(zerolog.ConsoleWriter{Out: stderr, NoColor: true}, level)
}

// openApp loads configuration, opens the database, brings the schema up to
// date and wires the calculation service.
func openApp(ctx context.Context, opts *globalOptions, stderr io.Writer) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	log := cliLogger(cfg, opts, stderr)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if _, err := migrations.Up(ctx, database); err != nil {
		database.Close()
		return nil, err
	}

	engine := pricing.NewEngine(
		pricing.WithWorkers(cfg.Workers),
		pricing.WithThresholds(cfg.Thresholds()),
	)
	svc := calculation.NewService(catalog.NewRepository(database), snapshot.NewStore(database), engine, cfg.Defaults, cfg.Currency, log)

	return &app{cfg: cfg, db: database, log: log, calc: svc}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
