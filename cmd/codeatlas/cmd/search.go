package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas/internal/config"
	"github.com/codeatlas/codeatlas/internal/index"
	"github.com/codeatlas/codeatlas/internal/logging"
	"github.com/codeatlas/codeatlas/internal/output"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit         int
	minSimilarity float64
	format        string // "text", "json"
	keyword       bool   // keyword index instead of semantic search
	purpose       string // exact purpose label filter
	domain        string // exact domain label filter
	pattern       string // exact pattern label filter
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed project",
		Long: `Search indexed code units semantically, by keyword, or by
classification label.

Examples:
  codeatlas search "validate user email"
  codeatlas search "parse config" --limit 5 --min-similarity 0.3
  codeatlas search getUserProfile --keyword
  codeatlas search --purpose "Data Access"
  codeatlas search --pattern "Async" --format json`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			hasLabel := opts.purpose != "" || opts.domain != "" || opts.pattern != ""
			if query == "" && !hasLabel {
				return fmt.Errorf("provide a query or a --purpose/--domain/--pattern label")
			}
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().Float64Var(&opts.minSimilarity, "min-similarity", 0, "Drop results below this cosine similarity (0..1)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.keyword, "keyword", false, "Use the keyword index (identifier-aware, no embeddings)")
	cmd.Flags().StringVar(&opts.purpose, "purpose", "", "List units with this purpose label")
	cmd.Flags().StringVar(&opts.domain, "domain", "", "List units tagged with this domain label")
	cmd.Flags().StringVar(&opts.pattern, "pattern", "", "List units tagged with this pattern label")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		defer cleanup()
	}
	slog.Info("search started", "query", query, "limit", opts.limit)

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

	if c := cfg.Index.MaxResults; c > 0 && opts.limit > c {
		opts.limit = c
	}

	var hits []index.Hit
	switch {
	case opts.keyword:
		hits, err = env.keyword.Search(ctx, query, opts.limit)
		if err != nil {
			return fmt.Errorf("keyword search: %w", err)
		}
	case opts.purpose != "":
		if _, err := env.loadIndex(ctx); err != nil {
			return err
		}
		hits = env.index.SearchByType(opts.purpose, opts.limit)
	case opts.domain != "":
		if _, err := env.loadIndex(ctx); err != nil {
			return err
		}
		hits = env.index.SearchByDomain(opts.domain, opts.limit)
	case opts.pattern != "":
		if _, err := env.loadIndex(ctx); err != nil {
			return err
		}
		hits = env.index.SearchByPattern(opts.pattern, opts.limit)
	default:
		if _, err := env.loadIndex(ctx); err != nil {
			return err
		}
		minSim := opts.minSimilarity
		if minSim == 0 {
			minSim = cfg.Index.MinSimilarity
		}
		hits, err = env.index.Search(ctx, query, opts.limit, minSim)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
	}

	slog.Info("search complete", "results", len(hits))
	if opts.format == "json" {
		return formatSearchJSON(cmd, hits)
	}
	return formatSearchText(out, query, opts, hits)
}

func formatSearchText(out *output.Writer, query string, opts searchOptions, hits []index.Hit) error {
	if len(hits) == 0 {
		out.Println(fmt.Sprintf("No results for %s", describeQuery(query, opts)))
		return nil
	}

	out.Header(fmt.Sprintf("%d results for %s", len(hits), describeQuery(query, opts)))
	out.Newline()
	for i, h := range hits {
		location := h.Metadata.FilePath
		if h.Metadata.StartLine > 0 {
			location = fmt.Sprintf("%s:%d", h.Metadata.FilePath, h.Metadata.StartLine)
		}
		out.Printf("%d. %s %s (%.2f)\n", i+1, h.Metadata.Name, location, h.Similarity)
		if h.Metadata.Purpose != "" {
			out.Field("purpose", h.Metadata.Purpose)
		}
		if len(h.Metadata.Domains) > 0 {
			out.Field("domains", strings.Join(h.Metadata.Domains, ", "))
		}
		if len(h.Metadata.Patterns) > 0 {
			out.Field("patterns", strings.Join(h.Metadata.Patterns, ", "))
		}
		out.Newline()
	}
	return nil
}

func describeQuery(query string, opts searchOptions) string {
	switch {
	case opts.purpose != "":
		return fmt.Sprintf("purpose %q", opts.purpose)
	case opts.domain != "":
		return fmt.Sprintf("domain %q", opts.domain)
	case opts.pattern != "":
		return fmt.Sprintf("pattern %q", opts.pattern)
	default:
		return fmt.Sprintf("%q", query)
	}
}

func formatSearchJSON(cmd *cobra.Command, hits []index.Hit) error {
	type jsonHit struct {
		Identity   string   `json:"identity"`
		Name       string   `json:"name"`
		FilePath   string   `json:"file_path"`
		StartLine  int      `json:"start_line"`
		Purpose    string   `json:"purpose,omitempty"`
		Domains    []string `json:"domains,omitempty"`
		Patterns   []string `json:"patterns,omitempty"`
		Similarity float64  `json:"similarity"`
	}

	results := make([]jsonHit, 0, len(hits))
	for _, h := range hits {
		results = append(results, jsonHit{
			Identity:   h.Identity,
			Name:       h.Metadata.Name,
			FilePath:   h.Metadata.FilePath,
			StartLine:  h.Metadata.StartLine,
			Purpose:    h.Metadata.Purpose,
			Domains:    h.Metadata.Domains,
			Patterns:   h.Metadata.Patterns,
			Similarity: h.Similarity,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
