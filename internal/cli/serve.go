package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/config"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/gateway"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/journal"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/server"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/store"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP command center",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Serve(ctx)
		},
	}
}

// Serve loads configuration from the environment and runs the server until ctx ends.
func Serve(ctx context.Context) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	slog.Info("Starting server", "port", cfg.Port, "gateway", cfg.Gateway.URL, "dev", cfg.IsDevelopment())

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	convLog, err := journal.New(journal.Config{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize conversation log: %w", err)
	}
	defer func() {
		if closeErr := convLog.Close(); closeErr != nil {
			slog.Error("Failed to close conversation log", "error", closeErr)
		}
	}()

	gw := gateway.NewClient(gateway.Config{
		BaseURL:    cfg.Gateway.URL,
		Timeout:    cfg.Gateway.Timeout,
		RetryCount: cfg.Gateway.RetryCount,
	}, logger)

	srv := server.New(cfg, server.Deps{
		Repo:    repo,
		Oracle:  gw,
		Journal: convLog,
		Logger:  logger,
	})
	if err := srv.Run(ctx); err != nil {
		return err
	}
	slog.Info("Server exited gracefully")
	return nil
}
