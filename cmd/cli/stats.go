package cli

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/turtacn/marketguard/internal/domain/models"
)

func newStatsCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [api...]",
		Short: "Show API call statistics for the current monitor window",
		Example: `  marketguard-admin stats
  marketguard-admin stats yfinance -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withComponents(cmd, func(ctx context.Context) error {
				names := args
				if len(names) == 0 {
					names = o.components.Monitors.Names()
				}
				snaps := make([]models.APIStatsSnapshot, 0, len(names))
				for _, name := range names {
					snap, err := o.components.Monitors.Stats(ctx, name)
					if err != nil {
						return err
					}
					snaps = append(snaps, snap)
				}
				return render(cmd.OutOrStdout(), o.output, snaps, func() table.Writer {
					return statsTable(snaps)
				})
			})
		},
	}
}

func statsTable(snaps []models.APIStatsSnapshot) table.Writer {
	t := newTable(table.Row{"API", "Total", "Success", "Failed", "429s", "Success %", "429 %", "Avg ms", "Window"}, 1)
	for _, s := range snaps {
		t.AppendRow(table.Row{
			s.APIName,
			s.TotalCalls,
			s.SuccessfulCalls,
			s.FailedCalls,
			s.RateLimitedCalls,
			percent(s.SuccessRate),
			percent(s.RateLimitedPercentage),
			fmt.Sprintf("%.1f", s.AverageLatencyMs),
			fmt.Sprintf("%dm", s.WindowMinutes),
		})
	}
	return t
}

func newResetCommand(o *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "reset [api]",
		Short: "Reset API call statistics",
		Args: func(cmd *cobra.Command, args []string) error {
			switch {
			case all && len(args) > 0:
				return fmt.Errorf("--all takes no api argument")
			case !all && len(args) != 1:
				return fmt.Errorf("name one api or pass --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withComponents(cmd, func(ctx context.Context) error {
				if all {
					if err := o.components.Monitors.ResetAll(ctx); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Reset statistics for %d APIs\n", len(o.components.Monitors.Names()))
					return nil
				}
				if err := o.components.Monitors.Reset(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset statistics for %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "reset every monitored API")
	return cmd
}
