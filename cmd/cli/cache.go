package cli

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/turtacn/marketguard/internal/domain/service"
	"github.com/turtacn/marketguard/internal/infrastructure/cache"
)

func newCacheCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the result caches",
	}
	cmd.AddCommand(newCacheStatsCommand(o), newCacheClearCommand(o))
	return cmd
}

type cacheStatsView struct {
	Store  *service.StoreStats `json:"store,omitempty" yaml:"store,omitempty"`
	Caches []cacheInfoView     `json:"caches" yaml:"caches"`
}

type cacheInfoView struct {
	Prefix string `json:"prefix" yaml:"prefix"`
	TTL    string `json:"ttl" yaml:"ttl"`
}

func newCacheStatsCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics and the configured caches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withComponents(cmd, func(ctx context.Context) error {
				view := cacheStatsView{}
				for _, rc := range o.components.Caches {
					info := rc.Info()
					view.Caches = append(view.Caches, cacheInfoView{Prefix: info.Prefix, TTL: info.TTL.String()})
				}
				if len(o.components.Caches) > 0 {
					stats, ok, err := o.components.Caches[0].Stats(ctx)
					if err != nil {
						return err
					}
					if ok {
						view.Store = stats
					}
				}
				return render(cmd.OutOrStdout(), o.output, view, func() table.Writer {
					return cacheTable(view)
				})
			})
		},
	}
}

func cacheTable(view cacheStatsView) table.Writer {
	t := newTable(table.Row{"Prefix", "TTL"}, 1)
	for _, c := range view.Caches {
		t.AppendRow(table.Row{c.Prefix, c.TTL})
	}
	if s := view.Store; s != nil {
		t.AppendFooter(table.Row{
			fmt.Sprintf("%s: %d keys", s.Backend, s.Keys),
			fmt.Sprintf("hit rate %s", percent(s.HitRate)),
		})
	}
	return t
}

func newCacheClearCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <prefix>",
		Short: "Delete every cached entry under a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withComponents(cmd, func(ctx context.Context) error {
				prefix := args[0]
				rc, ok := o.components.Cache(prefix)
				if !ok {
					return fmt.Errorf("no cache configured for prefix %q", prefix)
				}
				n, supported, err := rc.ClearPrefix(ctx, prefix)
				if err != nil {
					return err
				}
				if !supported {
					return fmt.Errorf("store cannot delete by pattern")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries matching %s\n", n, cache.PrefixPattern(prefix))
				return nil
			})
		},
	}
}
