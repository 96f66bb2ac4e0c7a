package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/marketguard/internal/infrastructure/ratelimit"
)

func newProbeCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Probe the shared store and print the limiter algorithm the service would select",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withComponents(cmd, func(ctx context.Context) error {
				out := cmd.OutOrStdout()
				if err := ratelimit.Probe(ctx, o.store); err != nil {
					fmt.Fprintf(out, "store probe: FAILED (%v)\n", err)
				} else {
					fmt.Fprintln(out, "store probe: ok")
				}
				fmt.Fprintf(out, "mode: %s\n", o.cfg.App.Mode)
				fmt.Fprintf(out, "algorithm: %s\n", o.components.Limiters.Algorithm())
				for _, name := range o.components.Limiters.ProviderNames() {
					p := o.cfg.RateLimit.Providers[name]
					fmt.Fprintf(out, "  %s: %.2f calls/s over %s\n", name, p.CallsPerSecond, p.Window)
				}
				return nil
			})
		},
	}
}
