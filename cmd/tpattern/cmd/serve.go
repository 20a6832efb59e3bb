package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/solatis/tpattern/internal/core/api"
	"github.com/solatis/tpattern/internal/core/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start gRPC pattern service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Server.Port = port
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Runs are only persisted when a database is configured.
	var store api.RunStore
	if cfg.DatabaseURL != "" {
		s, closeStore, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		status, err := s.Migrations()
		if err != nil {
			return errors.Wrap(err, "failed to check migrations")
		}
		for _, m := range status {
			if !m.Applied {
				return errors.Newf("migration %s not applied - run 'tpattern migrate' first", m.ID)
			}
		}
		store = s
	} else {
		logger.Warn("no database configured, runs will not be saved")
	}

	service, err := api.NewPatternService(cfg, store, logger)
	if err != nil {
		return errors.Wrap(err, "failed to create service")
	}

	grpcServer, err := server.NewGRPCServer(cfg.Server, service, logger)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}

	logger.Info("starting tpattern pattern service",
		zap.String("version", Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		return grpcServer.Shutdown(ctx)
	}
}
