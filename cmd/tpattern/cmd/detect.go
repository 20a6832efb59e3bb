package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/solatis/tpattern/internal/core/config"
	"github.com/solatis/tpattern/internal/core/db"
	"github.com/solatis/tpattern/internal/export"
	"github.com/solatis/tpattern/internal/ingest"
	"github.com/solatis/tpattern/internal/tpattern"
	"github.com/solatis/tpattern/internal/types"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect T-patterns in stored or CSV events",
	Long: `Loads observation periods from a CSV file or the configured database,
runs detection and prints the maximal patterns. Runs are saved when a
database is configured.`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().String("csv", "", "read events from a CSV file instead of the database")
	detectCmd.Flags().Bool("all", false, "print every confirmed pattern, not only maximal ones")
	detectCmd.Flags().String("export", "", "write the printed patterns to a CSV file")
	detectCmd.Flags().Float64("significance", 0, "override detection.significance")
	detectCmd.Flags().Int64("window", 0, "override detection.window")
}

func runDetect(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("significance") {
		cfg.Detection.Significance, _ = cmd.Flags().GetFloat64("significance")
	}
	if cmd.Flags().Changed("window") {
		cfg.Detection.Window, _ = cmd.Flags().GetInt64("window")
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	var store *db.Store
	if cfg.DatabaseURL != "" {
		s, closeStore, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()
		store = s
	}

	csvPath, _ := cmd.Flags().GetString("csv")
	periods, err := loadPeriods(ctx, cfg, csvPath, store)
	if err != nil {
		return err
	}

	engine := cfg.Detection.Engine()
	detector, err := tpattern.NewDetector(engine, tpattern.WithLogger(logger))
	if err != nil {
		return err
	}
	result, err := detector.DetectContext(ctx, periods)
	if err != nil {
		return errors.Wrap(err, "detection failed")
	}

	run := result.Run(engine)
	if store != nil {
		if err := store.SaveRun(ctx, run); err != nil {
			return errors.Wrap(err, "failed to save run")
		}
	}

	all, _ := cmd.Flags().GetBool("all")
	patterns := result.Maximal
	if all {
		patterns = result.Patterns
	}

	pterm.Info.Printf("%d periods, %d events, %d rounds, %d patterns (%d maximal)\n",
		run.PeriodCount, run.EventCount, run.Rounds, len(result.Patterns), len(result.Maximal))
	if len(patterns) > 0 {
		if err := pterm.DefaultTable.WithHasHeader().WithData(patternTable(patterns)).Render(); err != nil {
			return err
		}
	}

	if exportPath, _ := cmd.Flags().GetString("export"); exportPath != "" {
		if err := writeExport(exportPath, patterns); err != nil {
			return err
		}
		pterm.Success.Printf("Exported %d patterns to %s\n", len(patterns), exportPath)
	}
	return nil
}

// loadPeriods reads periods from csvPath when set, otherwise from the store.
func loadPeriods(ctx context.Context, cfg *config.Config, csvPath string, store *db.Store) ([]*types.ObservationPeriod, error) {
	if csvPath != "" {
		records, err := readRecords(csvPath, cfg.Detection.TimeUnit)
		if err != nil {
			return nil, err
		}
		return ingest.Periods(records, nil)
	}
	if store == nil {
		return nil, errors.New("either --csv or a database is required")
	}
	periods, err := store.LoadPeriods(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load events")
	}
	return periods, nil
}

func patternTable(patterns []types.Pattern) pterm.TableData {
	data := pterm.TableData{{"Pattern", "Interval", "Support", "Occurrences", "N_a", "N_b", "p-value", "Round"}}
	for _, p := range patterns {
		data = append(data, []string{
			p.Signature(),
			p.Interval.String(),
			fmt.Sprint(p.Support),
			fmt.Sprint(p.Occurrences),
			fmt.Sprint(p.NA),
			fmt.Sprint(p.NB),
			fmt.Sprintf("%.3g", p.PValue),
			fmt.Sprint(p.Round),
		})
	}
	return data
}

func writeExport(path string, patterns []types.Pattern) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := export.WriteCSV(f, patterns); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
