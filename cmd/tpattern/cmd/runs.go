package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/solatis/tpattern/internal/types"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List stored detection runs or show the patterns of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
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

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if len(args) == 0 {
		runs, err := store.ListRuns(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			pterm.Info.Println("No runs stored")
			return nil
		}
		data := pterm.TableData{{"Run", "Created", "Significance", "Window", "Unit", "Rounds", "Periods", "Events", "Patterns"}}
		for _, r := range runs {
			data = append(data, []string{
				string(r.ID),
				r.CreatedAt.UTC().Format(time.RFC3339),
				fmt.Sprint(r.Significance),
				fmt.Sprint(r.Window),
				r.TimeUnit.String(),
				fmt.Sprint(r.Rounds),
				fmt.Sprint(r.PeriodCount),
				fmt.Sprint(r.EventCount),
				fmt.Sprint(r.PatternCount),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}

	id, err := types.ParseRunID(args[0])
	if err != nil {
		return errors.Wrapf(err, "invalid run id %q", args[0])
	}
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	patterns, err := store.ListPatterns(ctx, id)
	if err != nil {
		return err
	}

	pterm.Info.Printf("Run %s: %d periods, %d events, %d rounds\n", run.ID, run.PeriodCount, run.EventCount, run.Rounds)
	data := pterm.TableData{{"#", "Pattern", "Leaves", "Interval", "Support", "p-value", "Maximal"}}
	for _, p := range patterns {
		data = append(data, []string{
			fmt.Sprint(p.Ordinal),
			p.Signature,
			strings.Join(p.Leaves, " "),
			p.Interval.String(),
			fmt.Sprint(p.Support),
			fmt.Sprintf("%.3g", p.PValue),
			boolMark(p.Maximal),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
