package cmd

import (
	"context"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/solatis/tpattern/internal/ingest"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Validate and store events from a CSV file",
	Long: `Reads period_id, event_type, first_timestamp and optional last_timestamp
columns. Timestamps are RFC3339 or integer offsets of the configured time unit.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	records, err := readRecords(args[0], cfg.Detection.TimeUnit)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := store.ImportRecords(ctx, records)
	if err != nil {
		return errors.Wrap(err, "import failed")
	}
	pterm.Success.Printf("Imported %d events from %s\n", n, args[0])
	return nil
}

func readRecords(path string, unit time.Duration) ([]ingest.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	records, err := ingest.ReadCSV(f, ingest.CSVOptions{Unit: unit})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return records, nil
}
