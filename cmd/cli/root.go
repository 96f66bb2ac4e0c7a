// Package cli implements marketguard-admin, which inspects and resets the
// shared resilience state directly in Redis.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/marketguard/internal/application"
	"github.com/turtacn/marketguard/internal/config"
	"github.com/turtacn/marketguard/internal/domain/models"
	"github.com/turtacn/marketguard/internal/domain/service"
	redisstore "github.com/turtacn/marketguard/internal/infrastructure/persistence/redis"
	"github.com/turtacn/marketguard/pkg/logger"
)

// StoreOpener connects to the shared store described by cfg. The returned
// func releases it.
type StoreOpener func(ctx context.Context, cfg *config.Config) (service.KVStore, func() error, error)

// ConfigLoader loads configuration from path.
type ConfigLoader func(path string) (*config.Config, error)

type rootOptions struct {
	configPath string
	output     string

	loadConfig ConfigLoader
	openStore  StoreOpener

	cfg        *config.Config
	store      service.KVStore
	components *application.Components
	closeStore func() error
}

// OpenRedisStore requires Redis: the admin tool is pointless against a
// process-local store.
func OpenRedisStore(ctx context.Context, cfg *config.Config) (service.KVStore, func() error, error) {
	if !cfg.Redis.Enabled {
		return nil, nil, errors.New("redis is disabled in the configuration; nothing shared to administer")
	}
	conn, err := redisstore.NewConnection(ctx, cfg.Redis, logger.NewNoopLogger())
	if err != nil {
		return nil, nil, err
	}
	return redisstore.NewStore(conn.Client()), conn.Close, nil
}

// NewRootCommand builds the marketguard-admin command tree.
func NewRootCommand(load ConfigLoader, open StoreOpener) *cobra.Command {
	if load == nil {
		load = config.LoadConfig
	}
	if open == nil {
		open = OpenRedisStore
	}
	o := &rootOptions{loadConfig: load, openStore: open}

	root := &cobra.Command{
		Use:           "marketguard-admin",
		Short:         "Inspect and reset marketguard's shared rate-limit, cache and monitor state.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "path to config.yaml")
	root.PersistentFlags().StringVarP(&o.output, "output", "o", formatTable, "output format: table, json or yaml")

	root.AddCommand(
		newStatsCommand(o),
		newResetCommand(o),
		newCacheCommand(o),
		newProbeCommand(o),
	)
	return root
}

// withComponents connects, runs fn and releases the store.
func (o *rootOptions) withComponents(cmd *cobra.Command, fn func(ctx context.Context) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := o.connect(ctx); err != nil {
		return err
	}
	defer func() {
		if cerr := o.close(); err == nil {
			err = cerr
		}
	}()
	return fn(ctx)
}

// connect loads config, opens the store and assembles the components.
func (o *rootOptions) connect(ctx context.Context) error {
	if err := validateFormat(o.output); err != nil {
		return err
	}
	cfg, err := o.loadConfig(o.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, closeFn, err := o.openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	components, err := application.Build(ctx, cfg, store, application.Deps{Alerts: discardAlerts{}})
	if err != nil {
		if closeFn != nil {
			_ = closeFn()
		}
		return err
	}
	o.cfg, o.store, o.components, o.closeStore = cfg, store, components, closeFn
	return nil
}

func (o *rootOptions) close() error {
	closeFn := o.closeStore
	o.cfg, o.store, o.components, o.closeStore = nil, nil, nil, nil
	if closeFn == nil {
		return nil
	}
	return closeFn()
}

// discardAlerts keeps CLI reads from emitting alerts.
type discardAlerts struct{}

func (discardAlerts) HandleRateLimitAlert(context.Context, models.RateLimitAlert) error { return nil }

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	root := NewRootCommand(nil, nil)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return err
	}
	return nil
}
