package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/catalog"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/commandcenter"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/conversation"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
)

const chatHelp = `Commands:
  /oracle <price_feed|weather|space|none>  pin or clear the oracle
  /examples                                 list oracles and example questions
  /reset                                    clear the conversation
  /quit                                     leave`

// drainTimeout bounds how long chat waits for in-flight queries on exit.
const drainTimeout = 10 * time.Second

func newChatCommand() *cobra.Command {
	var flags clientFlags
	cmd := &cobra.Command{
		Use:   "chat [--oracle kind]",
		Short: "Start an interactive oracle conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
				SessionID: "chat",
				Channel:   "cli",
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			if err := applyOracleFlag(c, flags.oracle); err != nil {
				return err
			}
			return chat(cmd.Context(), c, r, catalog.Default(), cmd.InOrStdin(), !flags.plain)
		},
	}
	flags.register(cmd, true)
	return cmd
}

// chat runs the REPL until /quit or end of input. Answers print as they resolve.
func chat(ctx context.Context, c *commandcenter.Controller, r *Renderer, cat *catalog.Catalog, in io.Reader, prompt bool) error {
	events, unsubscribe := c.Store().Subscribe(64)
	printed := make(chan struct{})
	broken := make(chan struct{})
	var printErr error
	go func() {
		defer close(printed)
		for ev := range events {
			if printErr != nil {
				continue
			}
			switch {
			case ev.Type == conversation.EventReset:
				r.Note("Conversation cleared.")
			case ev.Type == conversation.EventAppended && ev.Entry.Role == domain.RoleUser:
			default:
				if err := r.Entry(ev.Entry); err != nil {
					printErr = err
					close(broken)
				}
			}
		}
	}()

	c.Ready()
	r.Note("Type a question, or /help for commands.")

	scanner := bufio.NewScanner(in)
repl:
	for {
		select {
		case <-broken:
			break repl
		default:
		}
		if prompt {
			r.Note("> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := runChatCommand(c, r, cat, line); quit {
				break repl
			}
			continue
		}
		if _, err := c.Submit(ctx, line); err != nil {
			r.Note("error: %v", err)
		}
	}

	c.Close()
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	waitErr := c.Wait(waitCtx)
	unsubscribe()
	<-printed

	if printErr != nil {
		return fmt.Errorf("write transcript: %w", printErr)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if waitErr != nil && !errors.Is(waitErr, context.DeadlineExceeded) {
		return waitErr
	}
	return nil
}

// runChatCommand handles a slash command and reports whether the REPL should exit.
func runChatCommand(c *commandcenter.Controller, r *Renderer, cat *catalog.Catalog, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		r.Note(chatHelp)
	case "/reset":
		c.Reset()
	case "/examples", "/oracles":
		for _, o := range cat.List() {
			r.Note("%s (%s)", o.Name, o.Kind)
			for _, ex := range o.Examples {
				r.Note("  - %s", ex)
			}
		}
	case "/oracle":
		if len(fields) < 2 {
			if sel := c.Selection(); sel != "" {
				r.Note("Oracle: %s", sel)
			} else {
				r.Note("Oracle: automatic")
			}
			return false
		}
		if err := applyOracleFlag(c, fields[1]); err != nil {
			r.Note("error: %v", err)
			return false
		}
		if sel := c.Selection(); sel != "" {
			r.Note("Oracle set to %s", sel)
		} else {
			r.Note("Oracle selection cleared")
		}
	default:
		r.Note("unknown command %s, try /help", fields[0])
	}
	return false
}
