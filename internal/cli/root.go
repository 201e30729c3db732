// Package cli implements the commandcenter command line.
package cli

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/config"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/gateway"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// clientFlags are shared by commands that talk to the oracle service directly.
type clientFlags struct {
	gatewayURL string
	timeout    time.Duration
	oracle     string
	plain      bool
	width      int
	verbose    bool
}

func (f *clientFlags) register(cmd *cobra.Command, withOracle bool) {
	cmd.Flags().StringVar(&f.gatewayURL, "gateway", "", "oracle service base URL (defaults to GATEWAY_URL)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "gateway request timeout (defaults to GATEWAY_TIMEOUT)")
	cmd.Flags().BoolVar(&f.plain, "plain", false, "disable colors and styling")
	cmd.Flags().IntVar(&f.width, "width", 80, "word wrap width")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log debug output to stderr")
	if withOracle {
		cmd.Flags().StringVarP(&f.oracle, "oracle", "o", "", "oracle to use: price_feed, weather or space")
	}
}

// client builds the gateway client and a stderr text logger for CLI commands.
func (f *clientFlags) client(stderr io.Writer) (*gateway.Client, *config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	if f.gatewayURL != "" {
		cfg.Gateway.URL = f.gatewayURL
	}
	if f.timeout > 0 {
		cfg.Gateway.Timeout = f.timeout
	}

	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	gw := gateway.NewClient(gateway.Config{
		BaseURL:    cfg.Gateway.URL,
		Timeout:    cfg.Gateway.Timeout,
		RetryCount: cfg.Gateway.RetryCount,
	}, logger)
	return gw, cfg, logger, nil
}

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "commandcenter",
		Short:        "ZeroGravis oracle command center",
		Long:         `commandcenter routes natural-language questions to price, weather and space oracles.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}
	root.AddCommand(
		newServeCommand(),
		newAskCommand(),
		newChatCommand(),
		newProbeCommand(),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			_, _ = io.WriteString(out, "commandcenter version "+Version+"\n")
			_, _ = io.WriteString(out, "  Git commit: "+GitCommit+"\n")
			_, _ = io.WriteString(out, "  Build date: "+BuildDate+"\n")
		},
	}
}
