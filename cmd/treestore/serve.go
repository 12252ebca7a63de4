package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treestore/pkg/forest"
	"github.com/Sumatoshi-tech/treestore/pkg/mcp"
	"github.com/Sumatoshi-tech/treestore/pkg/observability"
	"github.com/Sumatoshi-tech/treestore/pkg/persist"
	"github.com/Sumatoshi-tech/treestore/pkg/server"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		inputFormat  string
		snapshotPath string
		host         string
		port         int
	)

	cmd := &cobra.Command{
		Use:   "serve [file|-]",
		Short: "Serve a forest over a JSON HTTP API",
		Long: `Serve a forest over a JSON HTTP API with health, Prometheus metrics,
paging, search, mutation, selection, export and import endpoints.

Examples:
  treestore serve tree.json
  treestore serve --port 9090`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			env, err := setup(flags, observability.ModeServe)
			if err != nil {
				return err
			}

			defer env.close()

			guarded, persister, err := openGuarded(env, args, inputFormat, snapshotPath)
			if err != nil {
				return err
			}

			red, err := observability.NewREDMetrics(env.providers.Meter)
			if err != nil {
				return fmt.Errorf("create RED metrics: %w", err)
			}

			serverCfg := env.cfg.Server
			if cobraCmd.Flags().Changed("host") {
				serverCfg.Host = host
			}

			if cobraCmd.Flags().Changed("port") {
				serverCfg.Port = port
			}

			opts := server.Options{
				Logger:         env.providers.Logger,
				Tracer:         env.providers.Tracer,
				RED:            red,
				MetricsHandler: env.providers.MetricsHandler,
				MaxImportBytes: env.maxImport,
			}

			if persister != nil {
				opts.Snapshot = persister
			}

			ctx, stop := signal.NotifyContext(cobraCmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			serveErr := server.New(guarded, opts).ListenAndServe(ctx, serverCfg)

			return errors.Join(serveErr, saveOnExit(env, guarded, persister))
		},
	}

	cmd.Flags().StringVar(&inputFormat, "input-format", "", "input format (json, yaml); default from extension")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "snapshot file restored at start and saved on exit (default from config)")
	cmd.Flags().StringVar(&host, "host", "", "listen host (default from config)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")

	return cmd
}

func mcpCmd(flags *globalFlags) *cobra.Command {
	var inputFormat, snapshotPath string

	cmd := &cobra.Command{
		Use:   "mcp [file|-]",
		Short: "Run an MCP server over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the forest
as tools: tree_search, tree_page, tree_get, tree_insert, tree_update,
tree_remove, tree_move, tree_toggle and tree_export.

Logs go to stderr so they never interleave with the protocol stream.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			env, err := setup(flags, observability.ModeMCP)
			if err != nil {
				return err
			}

			defer env.close()

			guarded, persister, err := openGuarded(env, args, inputFormat, snapshotPath)
			if err != nil {
				return err
			}

			red, err := observability.NewREDMetrics(env.providers.Meter)
			if err != nil {
				return fmt.Errorf("create RED metrics: %w", err)
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Forest:  guarded,
				Logger:  env.providers.Logger,
				Metrics: red,
				Tracer:  env.providers.Tracer,
			})

			ctx, stop := signal.NotifyContext(cobraCmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runErr := srv.Run(ctx)

			return errors.Join(runErr, saveOnExit(env, guarded, persister))
		},
	}

	cmd.Flags().StringVar(&inputFormat, "input-format", "", "input format (json, yaml); default from extension")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "snapshot file restored at start and saved on exit (default from config)")

	return cmd
}

// openGuarded opens the forest for a long-running mode. Without an input
// file the configured snapshot, when present, is restored instead.
func openGuarded(env *app, args []string, inputFormat, snapshotPath string) (*forest.Guarded, *persist.Persister, error) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}

	store, err := env.openForest(path, inputFormat)
	if err != nil {
		return nil, nil, err
	}

	if snapshotPath == "" {
		snapshotPath = env.cfg.Snapshot.Path
	}

	var persister *persist.Persister

	if snapshotPath != "" {
		persister = persist.NewPersister(snapshotPath, persist.WithLimit(env.maxImport))

		if path == "" {
			err = persister.Load(store)

			switch {
			case errors.Is(err, persist.ErrNoSnapshot):
				env.providers.Logger.Info("no snapshot to restore", "path", persister.Path())
			case err != nil:
				return nil, nil, err
			default:
				env.providers.Logger.Info("snapshot restored", "path", persister.Path(), "nodes", store.Len())
			}
		}
	}

	store.OnChange(func(change forest.Change) {
		env.providers.Logger.Debug("forest changed", "op", change.Op, "iid", change.InternalID)
	})

	return forest.NewGuarded(store), persister, nil
}

// saveOnExit writes the final snapshot when persister is set.
func saveOnExit(env *app, guarded *forest.Guarded, persister *persist.Persister) error {
	if persister == nil {
		return nil
	}

	err := guarded.Do(persister.Save)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	env.providers.Logger.Info("snapshot saved", "path", persister.Path())

	return nil
}
