package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas/internal/async"
	"github.com/codeatlas/codeatlas/internal/bundle"
	"github.com/codeatlas/codeatlas/internal/config"
	"github.com/codeatlas/codeatlas/internal/logging"
	"github.com/codeatlas/codeatlas/internal/output"
	"github.com/codeatlas/codeatlas/internal/preflight"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index state for the current project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd)
		},
	}
}

func runStatus(cmd *cobra.Command) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		defer cleanup()
	}

	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	root, err := resolveRoot(".")
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out.Header("codeatlas status")
	out.Field("project", root)

	if !fileExists(storePath(root, cfg)) {
		out.Field("index", "not built")
		out.Newline()
		out.Println("Run 'codeatlas index' to build the index.")
		return nil
	}

	env, err := openEnv(ctx, root, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer env.Close()

	if _, err := env.loadIndex(ctx); err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	units, err := env.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count units: %w", err)
	}
	paths, err := env.store.Paths(ctx)
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}
	stats := env.index.Stats()

	out.Field("files", fmt.Sprintf("%d", len(paths)))
	out.Field("units", fmt.Sprintf("%d", units))
	out.Field("backend", stats.Backend)
	out.Field("embedder", env.embedder.ModelName())

	if labels, err := bundle.NewResolver(env.store).ListDynamicLabels(ctx); err == nil && len(labels) > 0 {
		out.Field("bundles", strings.Join(labels, ", "))
	}

	if async.HasStaleLock(dataDir(root)) {
		out.Warning("a previous scan was interrupted; run 'codeatlas index' to repair")
	}
	if age := preflight.MarkerAge(dataDir(root)); age > 0 {
		out.Field("last check", fmt.Sprintf("%s ago", age.Round(time.Second)))
	}

	return nil
}
