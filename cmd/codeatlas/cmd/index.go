package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas/internal/config"
	"github.com/codeatlas/codeatlas/internal/logging"
	"github.com/codeatlas/codeatlas/internal/output"
	"github.com/codeatlas/codeatlas/internal/preflight"
)

func newIndexCmd() *cobra.Command {
	var (
		skipCheck bool
		embedder  string
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Scan a project and build its semantic index",
		Long: `Scan a project directory: extract code units, classify them with the
active rules, and build the embedding and keyword indexes.

Embedder selection:
  (default)         Use the configured provider (auto probes Ollama)
  --embedder=ollama Require Ollama
  --embedder=hash   Offline deterministic embeddings`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			if embedder != "" {
				os.Setenv("CODEATLAS_EMBEDDER", embedder)
			}
			return runIndex(ctx, cmd, path, skipCheck)
		},
	}

	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip pre-flight system checks")
	cmd.Flags().StringVar(&embedder, "embedder", "", "Embedding backend: auto (default), ollama, or hash")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string, skipCheck bool) error {
	// File-only logging keeps stdout for user-facing output.
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		defer cleanup()
	}

	out := output.New(cmd.OutOrStdout())

	root, err := resolveRoot(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("access project path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", root)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !skipCheck && preflight.NeedsCheck(dataDir(root)) {
		results := preflight.New(cfg).RunAll(ctx, root)
		if preflight.HasCriticalFailures(results) {
			for _, r := range results {
				if r.Critical() {
					out.Error(r.Name + ": " + r.Message)
				}
			}
			return fmt.Errorf("system check failed, run 'codeatlas doctor' for details")
		}
		if err := preflight.MarkPassed(dataDir(root)); err != nil {
			slog.Debug("could not record preflight marker", "error", err)
		}
	}

	env, err := openEnv(ctx, root, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer env.Close()

	paths, err := env.discover(ctx)
	if err != nil {
		return fmt.Errorf("discover files: %w", err)
	}
	if len(paths) == 0 {
		out.Warning("no indexable files found")
		return nil
	}
	out.Printf("Indexing %d files with %s embeddings...\n", len(paths), env.embedder.ModelName())

	summary, err := env.pipeline.Scan(ctx, paths)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	if _, err := env.pipeline.Prune(ctx, paths); err != nil {
		return fmt.Errorf("prune stale files: %w", err)
	}

	out.Successf("indexed %d units from %d files in %s",
		summary.Indexed, summary.FilesScanned, summary.Duration.Round(time.Millisecond))
	if summary.FilesFailed > 0 {
		out.Warningf("%d files skipped, see log for details", summary.FilesFailed)
	}
	return nil
}
