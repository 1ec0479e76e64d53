// Package cmd provides the CLI commands for codeatlas.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas/internal/config"
	"github.com/codeatlas/codeatlas/internal/logging"
	"github.com/codeatlas/codeatlas/internal/preflight"
	"github.com/codeatlas/codeatlas/internal/profiling"
	"github.com/codeatlas/codeatlas/pkg/version"
)

// Profiling flags.
var (
	profileCPU string
	profileMem string
	profiler   = profiling.New()
	cpuStop    func()
)

// Debug logging flag.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the codeatlas root command.
func NewRootCmd() *cobra.Command {
	var skipCheck bool
	var reindex bool

	cmd := &cobra.Command{
		Use:   "codeatlas",
		Short: "Semantic code index and MCP server",
		Long: `CodeAtlas extracts code units from a project, classifies them with
configurable rules, and serves semantic search and context bundles to
MCP clients.

Run 'codeatlas' in a project directory to index it (first run only)
and start the MCP server on stdio.`,
		Version: version.Version,
		// Usage dumps on runtime errors would corrupt the stdio
		// transport. Errors are formatted by main instead.
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			return runSmartDefault(cmd.Context(), reindex, skipCheck)
		},
	}

	cmd.SetVersionTemplate("codeatlas version {{.Version}}\n")

	cmd.Flags().BoolVar(&reindex, "reindex", false, "Rebuild the index even if one exists")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip pre-flight system checks")

	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.codeatlas/logs/")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newBundlesCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if debugMode {
		cleanup, err := logging.SetupDefault()
		if err != nil {
			return fmt.Errorf("setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.Info("debug logging enabled", "log_file", logging.DefaultLogPath())
	}

	if profileCPU != "" {
		stop, err := profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		cpuStop = stop
	}
	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuStop != nil {
		cpuStop()
		cpuStop = nil
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("write memory profile: %w", err)
		}
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// runSmartDefault indexes the project if needed, then serves MCP on
// stdio. Stdout stays clean for JSON-RPC the whole way.
func runSmartDefault(ctx context.Context, reindex, skipCheck bool) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !skipCheck && preflight.NeedsCheck(dataDir(root)) {
		results := preflight.New(cfg).RunAll(ctx, root)
		if preflight.HasCriticalFailures(results) {
			slog.Error("system check failed, run 'codeatlas doctor' for details")
			return fmt.Errorf("system check failed")
		}
		if err := preflight.MarkPassed(dataDir(root)); err != nil {
			slog.Debug("could not record preflight marker", "error", err)
		}
	}

	needsScan := reindex || !fileExists(storePath(root, cfg))
	return runServe(ctx, root, cfg, serveParams{
		transport:   cfg.Server.Transport,
		initialScan: needsScan,
		watch:       cfg.Rules.Watch,
	})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
