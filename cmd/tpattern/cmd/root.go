package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/solatis/tpattern/internal/core/config"
	"github.com/solatis/tpattern/internal/core/db"
	"github.com/solatis/tpattern/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is the tpattern release version.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "tpattern",
	Short: "T-pattern detection over timestamped event streams",
	Long: `tpattern finds recurring ordered event pairs separated by statistically
significant delays and builds them bottom-up into hierarchical patterns.`,
	Version:      Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file and applies the --db-url flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	logger, err := logging.New(logLevel, logFormat)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create logger")
	}
	return logger, nil
}

// openDatabase opens the configured database. It fails when no URL is set.
func openDatabase(cfg *config.Config) (*sqlx.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("--db-url or TP_DATABASE_URL required")
	}
	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	return database, nil
}

// openStore opens the database and wraps it in a store. The returned close
// function releases the connection.
func openStore(cfg *config.Config, logger *zap.Logger) (*db.Store, func() error, error) {
	database, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := db.NewStore(database, logger)
	if err != nil {
		database.Close()
		return nil, nil, errors.Wrap(err, "failed to create store")
	}
	return store, database.Close, nil
}
