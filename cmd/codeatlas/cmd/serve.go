package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas/internal/async"
	"github.com/codeatlas/codeatlas/internal/config"
	"github.com/codeatlas/codeatlas/internal/logging"
	"github.com/codeatlas/codeatlas/internal/mcp"
	"github.com/codeatlas/codeatlas/internal/scanner"
	"github.com/codeatlas/codeatlas/internal/watcher"
)

// serveParams controls one server run.
type serveParams struct {
	transport   string
	initialScan bool
	// watch reloads the rules file when it changes on disk.
	watch bool
}

func newServeCmd() *cobra.Command {
	var transport string
	var rescan bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Run the MCP server for the current project.

The server starts immediately. If the project has not been indexed yet
(or --rescan is given), a scan runs in the background and results become
searchable as it progresses. On stdio transport nothing but protocol
frames is written to stdout; logs go to the log file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(".")
			if err != nil {
				return err
			}
			cfg, err := config.Load(root)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("transport") {
				cfg.Server.Transport = transport
			}
			needsScan := rescan || !fileExists(storePath(root, cfg))
			return runServe(cmd.Context(), root, cfg, serveParams{
				transport:   cfg.Server.Transport,
				initialScan: needsScan,
				watch:       cfg.Rules.Watch,
			})
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "stdio", "Transport to serve on (stdio)")
	cmd.Flags().BoolVar(&rescan, "rescan", false, "Re-scan the project even if an index exists")

	return cmd
}

// verifyStdinForMCP rejects stdio serving on an interactive terminal,
// where no MCP client is attached and the process would hang silently.
func verifyStdinForMCP() error {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return fmt.Errorf("stdin is a terminal; the stdio transport expects an MCP client on a pipe (configure codeatlas as an MCP server, or pipe requests in)")
	}
	return nil
}

func runServe(ctx context.Context, root string, cfg *config.Config, p serveParams) error {
	cleanup, err := logging.SetupServeMode(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer cleanup()
	logger := slog.Default()

	if p.transport == "stdio" {
		if err := verifyStdinForMCP(); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	env, err := openEnv(ctx, root, cfg, logger)
	if err != nil {
		return err
	}
	defer env.Close()

	loaded, err := env.loadIndex(ctx)
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	logger.Info("serve starting", "root", root, "units", loaded, "transport", p.transport)

	if p.watch {
		if err := env.rules.Watch(); err != nil {
			logger.Warn("rules watch unavailable", "error", err)
		}
	}

	// An interrupted scan leaves its lock behind; treat that like a
	// missing index and rebuild.
	var scanProgress *async.Progress
	if p.initialScan || async.HasStaleLock(dataDir(root)) {
		scan := async.NewBackgroundScan(dataDir(root), func(ctx context.Context, progress *async.Progress) error {
			paths, err := env.discover(ctx)
			if err != nil {
				return err
			}
			progress.SetTotal(len(paths))
			summary, err := env.pipeline.Scan(ctx, paths)
			if err != nil {
				return err
			}
			if _, err := env.pipeline.Prune(ctx, paths); err != nil {
				return err
			}
			progress.Update(summary.FilesScanned, summary.Indexed)
			return nil
		})
		scan.Start(ctx)
		defer scan.Stop()
		scanProgress = scan.Progress()
	}

	// Project files are watched for the lifetime of the server so the
	// index tracks edits made while a client is attached.
	if w, err := startFileWatcher(ctx, env, logger); err != nil {
		logger.Warn("file watching unavailable", "error", err)
	} else {
		defer func() { _ = w.Stop() }()
	}

	srv, err := mcp.NewServer(mcp.Options{
		Index:    env.index,
		Store:    env.store,
		Rules:    env.rules,
		Embedder: env.embedder,
		Config:   cfg,
		Progress: scanProgress,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	return srv.Serve(ctx, p.transport)
}

// startFileWatcher keeps the index in sync with edits made while the
// server runs. Events already debounce in the watcher; here each batch
// maps to incremental scans and deletions.
func startFileWatcher(ctx context.Context, env *atlasEnv, logger *slog.Logger) (*watcher.Watcher, error) {
	scanOpts := scanner.Options{
		Root:    env.root,
		Include: env.cfg.Paths.Include,
		Exclude: env.cfg.Paths.Exclude,
	}
	w, err := watcher.New(watcher.Options{
		Ignore: func(rel string, isDir bool) bool {
			return env.scanner.Ignores(rel, isDir, scanOpts)
		},
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx, env.root); err != nil {
		return nil, err
	}

	go func() {
		for batch := range w.Events() {
			applyWatchBatch(ctx, env, batch, logger)
		}
	}()
	return w, nil
}

func applyWatchBatch(ctx context.Context, env *atlasEnv, batch []watcher.Event, logger *slog.Logger) {
	var changed []string
	for _, ev := range batch {
		if path.Base(ev.Path) == ".gitignore" {
			env.scanner.InvalidateIgnoreCache()
			continue
		}
		switch ev.Op {
		case watcher.OpCreate, watcher.OpModify:
			changed = append(changed, ev.Path)
		case watcher.OpDelete:
			if err := env.removeFile(ctx, ev.Path); err != nil {
				logger.Warn("remove deleted file from index", "path", ev.Path, "error", err)
			}
		}
	}
	if len(changed) == 0 {
		return
	}
	summary, err := env.pipeline.Scan(ctx, changed)
	if err != nil {
		logger.Warn("incremental scan failed", "files", len(changed), "error", err)
		return
	}
	logger.Info("incremental scan applied",
		"files", summary.FilesScanned, "units", summary.Units)
}
