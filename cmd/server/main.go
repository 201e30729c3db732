// ZeroGravis Oracle Command Center Server
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/cli"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Serve(ctx); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
