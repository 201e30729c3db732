package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/commandcenter"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
)

// ErrOracleFailed is returned when a one-shot question resolves as an error.
var ErrOracleFailed = errors.New("oracle query failed")

// askGrace bounds the wait beyond the gateway timeout.
const askGrace = 5 * time.Second

func newAskCommand() *cobra.Command {
	var flags clientFlags
	cmd := &cobra.Command{
		Use:   "ask [--oracle kind] <question...>",
		Short: "Ask the oracle network a single question",
		Example: `  commandcenter ask "What's the ETH price?"
  commandcenter ask --oracle weather forecast`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, cfg, logger, err := flags.client(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			r, err := NewRenderer(cmd.OutOrStdout(), flags.width, flags.plain)
			if err != nil {
				return err
			}

			c, err := commandcenter.New(commandcenter.Config{
				Gateway:   gw,
				Consensus: cfg.ConsensusMethod,
				UserID:    "cli",
				SessionID: "ask",
				Channel:   "cli",
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			if err := applyOracleFlag(c, flags.oracle); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Gateway.Timeout+askGrace)
			defer cancel()
			return ask(ctx, c, r, strings.Join(args, " "))
		},
	}
	flags.register(cmd, true)
	return cmd
}

// ask submits one question, waits for its answer and prints the exchange.
func ask(ctx context.Context, c *commandcenter.Controller, r *Renderer, question string) error {
	sub, err := c.Submit(ctx, question)
	if err != nil {
		return err
	}
	if err := sub.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for oracle: %w", err)
	}
	c.Close()

	var failed bool
	for _, id := range []string{sub.UserEntryID, sub.OracleEntryID} {
		e, ok := c.Store().Get(id)
		if !ok {
			continue
		}
		if err := r.Entry(e); err != nil {
			return err
		}
		failed = failed || e.Status == domain.StatusResolvedError
	}
	if failed {
		return ErrOracleFailed
	}
	return nil
}

func applyOracleFlag(c *commandcenter.Controller, value string) error {
	kind, err := domain.ParseOracleKind(value)
	if err != nil {
		return err
	}
	return c.SelectOracle(kind)
}
