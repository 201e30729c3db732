package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newProbeCommand() *cobra.Command {
	var flags clientFlags
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check the oracle service health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gw, cfg, _, err := flags.client(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Gateway.Timeout)
			defer cancel()

			status, err := gw.Health(ctx)
			if err != nil {
				return fmt.Errorf("oracle service unreachable at %s: %w", cfg.Gateway.URL, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (version %s) at %s\n",
				status.Service, status.Status, status.Version, cfg.Gateway.URL)
			if !status.Healthy() {
				return fmt.Errorf("oracle service reports %q", status.Status)
			}
			return nil
		},
	}
	flags.register(cmd, false)
	return cmd
}
