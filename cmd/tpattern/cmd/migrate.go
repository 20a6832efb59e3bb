package cmd

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/solatis/tpattern/internal/core/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("status", false, "print migration status instead of applying")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if status, _ := cmd.Flags().GetBool("status"); status {
		migrations, err := db.MigrateStatus(database)
		if err != nil {
			return errors.Wrap(err, "failed to read migration status")
		}
		data := pterm.TableData{{"Migration", "Applied", "Applied At"}}
		for _, m := range migrations {
			appliedAt := "-"
			if m.AppliedAt != nil {
				appliedAt = m.AppliedAt.UTC().Format(time.RFC3339)
			}
			data = append(data, []string{m.ID, boolMark(m.Applied), appliedAt})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}

	applied, err := db.MigrateUp(database)
	if err != nil {
		return errors.Wrap(err, "migration failed")
	}
	for _, id := range applied {
		logger.Info("migration applied", zap.String("migration_id", id))
	}
	if len(applied) == 0 {
		pterm.Info.Println("Database is up to date")
		return nil
	}
	pterm.Success.Printf("Applied %d migrations\n", len(applied))
	return nil
}

func boolMark(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
