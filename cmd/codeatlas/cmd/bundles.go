package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas/internal/bundle"
	"github.com/codeatlas/codeatlas/internal/config"
	"github.com/codeatlas/codeatlas/internal/logging"
	"github.com/codeatlas/codeatlas/internal/output"
	"github.com/codeatlas/codeatlas/internal/rules"
)

func newBundlesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundles",
		Short: "Inspect context bundles",
		Long: `Inspect context bundles: named groups of files that belong to the
same concern, derived from indexed domain labels and bundle rules.`,
	}

	cmd.AddCommand(newBundlesListCmd())
	cmd.AddCommand(newBundlesResolveCmd())
	cmd.AddCommand(newBundlesSuggestCmd())

	return cmd
}

func newBundlesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List resolvable bundle labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBundleEnv(cmd, func(ctx context.Context, env *atlasEnv, out *output.Writer) error {
				labels, err := bundle.NewResolver(env.store).ListDynamicLabels(ctx)
				if err != nil {
					return fmt.Errorf("list bundles: %w", err)
				}
				if len(labels) == 0 {
					out.Println("No bundles yet; run 'codeatlas index' first.")
					return nil
				}
				out.Header(fmt.Sprintf("%d bundles", len(labels)))
				for _, label := range labels {
					out.Printf("  %s (%s)\n", label, bundle.Slug(label))
				}
				return nil
			})
		},
	}
}

func newBundlesResolveCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "resolve <label>",
		Short: "Resolve a bundle label to its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBundleEnv(cmd, func(ctx context.Context, env *atlasEnv, out *output.Writer) error {
				label := args[0]
				files, err := bundle.NewResolver(env.store).Resolve(ctx, label)
				if err != nil {
					return fmt.Errorf("resolve bundle %q: %w", label, err)
				}
				if format == "json" {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(map[string]any{"label": label, "files": files})
				}
				if len(files) == 0 {
					out.Warningf("bundle %q matched no files", label)
					return nil
				}
				out.Header(fmt.Sprintf("Bundle %q: %d files", label, len(files)))
				for _, f := range files {
					out.Println("  " + f)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func newBundlesSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <file>",
		Short: "Suggest bundle labels for a file path",
		Long: `Suggest bundle labels for a file path by matching it against the
active bundle rules. The file does not need to exist or be indexed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())

			root, err := resolveRoot(".")
			if err != nil {
				return err
			}
			cfg, err := config.Load(root)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			loader := rules.NewLoader(filepath.Join(root, filepath.FromSlash(cfg.Rules.Path)), slog.Default())
			defer loader.Close()

			rel := filepath.ToSlash(args[0])
			labels := rules.SuggestBundleLabels(rel, loader.Active())
			if len(labels) == 0 {
				out.Println("No bundle suggestions for " + rel)
				return nil
			}
			for _, label := range labels {
				out.Println(label)
			}
			return nil
		},
	}
}

// withBundleEnv opens the environment for a read-only bundle command.
func withBundleEnv(cmd *cobra.Command, fn func(context.Context, *atlasEnv, *output.Writer) error) error {
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
	if !fileExists(storePath(root, cfg)) {
		return fmt.Errorf("no index found, run 'codeatlas index' first")
	}

	env, err := openEnv(ctx, root, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer env.Close()

	return fn(ctx, env, out)
}
