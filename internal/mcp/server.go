package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeatlas/codeatlas/internal/async"
	"github.com/codeatlas/codeatlas/internal/bundle"
	"github.com/codeatlas/codeatlas/internal/config"
	"github.com/codeatlas/codeatlas/internal/embed"
	"github.com/codeatlas/codeatlas/internal/index"
	"github.com/codeatlas/codeatlas/internal/rules"
	"github.com/codeatlas/codeatlas/internal/store"
	"github.com/codeatlas/codeatlas/pkg/version"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// Server is the MCP server for codeatlas. It exposes semantic search,
// bundle suggestion, and index diagnostics to AI clients.
type Server struct {
	mcp      *mcp.Server
	index    *index.EmbeddingIndex
	store    store.Store
	resolver *bundle.Resolver
	rules    *rules.Loader
	embedder embed.Embedder
	config   *config.Config
	progress *async.Progress
	logger   *slog.Logger
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query         string  `json:"query" jsonschema:"the natural-language or code query to execute"`
	Limit         int     `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	MinSimilarity float64 `json:"min_similarity,omitempty" jsonschema:"minimum cosine similarity between 0 and 1"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"list of matching code units"`
}

// SearchResultOutput is a single search result.
type SearchResultOutput struct {
	Identity   string   `json:"identity" jsonschema:"stable unit identity: name:path:startLine"`
	Name       string   `json:"name" jsonschema:"unit name"`
	FilePath   string   `json:"file_path" jsonschema:"file path relative to project root"`
	StartLine  int      `json:"start_line" jsonschema:"1-based start line of the unit"`
	Purpose    string   `json:"purpose" jsonschema:"semantic type label"`
	Domains    []string `json:"domains,omitempty" jsonschema:"inferred domain labels"`
	Patterns   []string `json:"patterns,omitempty" jsonschema:"inferred pattern labels"`
	Similarity float64  `json:"similarity" jsonschema:"cosine similarity between 0 and 1"`
}

// SuggestBundlesInput is the input schema for suggest_bundles.
type SuggestBundlesInput struct {
	FilePath string `json:"file_path" jsonschema:"file path to suggest bundle labels for"`
}

// SuggestBundlesOutput is the output schema for suggest_bundles.
type SuggestBundlesOutput struct {
	Labels []string `json:"labels" jsonschema:"suggested bundle labels in rule order"`
}

// ResolveBundleInput is the input schema for resolve_bundle.
type ResolveBundleInput struct {
	Label string `json:"label" jsonschema:"bundle label to resolve, matched slug-insensitively"`
}

// ResolveBundleOutput is the output schema for resolve_bundle.
type ResolveBundleOutput struct {
	Label string   `json:"label" jsonschema:"the requested label"`
	Files []string `json:"files" jsonschema:"sorted file paths in the bundle"`
}

// IndexStatusInput is the (empty) input schema for index_status.
type IndexStatusInput struct{}

// IndexStatusOutput is the output schema for index_status.
type IndexStatusOutput struct {
	UnitCount    int            `json:"unit_count" jsonschema:"number of indexed units"`
	FileCount    int            `json:"file_count" jsonschema:"number of files in the store"`
	Backend      string         `json:"backend" jsonschema:"vector search backend: linear or hnsw"`
	Embeddings   EmbeddingInfo  `json:"embeddings" jsonschema:"active embedder state"`
	BundleLabels []string       `json:"bundle_labels,omitempty" jsonschema:"dynamic bundle labels currently resolvable"`
	Scan         *async.Snapshot `json:"scan,omitempty" jsonschema:"background scan progress, present while a scan runs or after it finishes"`
}

// EmbeddingInfo describes the active embedder so clients can adjust
// their query strategy when the hash fallback is active.
type EmbeddingInfo struct {
	Provider        string `json:"provider" jsonschema:"configured provider"`
	Model           string `json:"model" jsonschema:"active model name"`
	Dimensions      int    `json:"dimensions" jsonschema:"embedding dimensions"`
	Status          string `json:"status" jsonschema:"ready or unavailable"`
	FallbackActive  bool   `json:"fallback_active" jsonschema:"true when the deterministic hash embedder is in use"`
	SemanticQuality string `json:"semantic_quality" jsonschema:"high for model embeddings, low for hash"`
}

// Options bundles the server dependencies.
type Options struct {
	Index    *index.EmbeddingIndex
	Store    store.Store
	Rules    *rules.Loader
	Embedder embed.Embedder
	Config   *config.Config
	// Progress, when set, reports background scan state through
	// index_status.
	Progress *async.Progress
	Logger   *slog.Logger
}

// NewServer creates the MCP server and registers its tools.
func NewServer(opts Options) (*Server, error) {
	if opts.Index == nil {
		return nil, errors.New("embedding index is required")
	}
	if opts.Store == nil {
		return nil, errors.New("unit store is required")
	}
	if opts.Rules == nil {
		return nil, errors.New("rules loader is required")
	}
	if opts.Config == nil {
		opts.Config = config.NewConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		index:    opts.Index,
		store:    opts.Store,
		resolver: bundle.NewResolver(opts.Store),
		rules:    opts.Rules,
		embedder: opts.Embedder,
		config:   opts.Config,
		progress: opts.Progress,
		logger:   opts.Logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "codeatlas",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "codeatlas", version.Version
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Semantic code search over the indexed project. Finds functions, hooks, and components by meaning, not just keywords. Results include purpose, domain, and pattern labels.",
	}, s.mcpSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "suggest_bundles",
		Description: "Suggest bundle labels for a file path based on the active classification rules. Use to decide where new code belongs.",
	}, s.mcpSuggestBundlesHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "resolve_bundle",
		Description: "Resolve a bundle label to the file paths whose indexed units carry it. Labels match slug-insensitively ('Data Access' and 'data-access' are equivalent).",
	}, s.mcpResolveBundleHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Check index size and which embedder is active. Use before searching to verify the index is ready.",
	}, s.mcpIndexStatusHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", 4))
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	if input.MinSimilarity < 0 || input.MinSimilarity > 1 {
		return nil, SearchOutput{}, NewInvalidParamsError("min_similarity must be between 0 and 1")
	}

	maxLimit := maxSearchLimit
	if c := s.config.Index.MaxResults; c > 0 && c < maxLimit {
		maxLimit = c
	}
	limit := clampLimit(input.Limit, defaultSearchLimit, 1, maxLimit)

	minSim := input.MinSimilarity
	if minSim == 0 {
		minSim = s.config.Index.MinSimilarity
	}

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("search started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.Int("limit", limit))

	hits, err := s.index.Search(ctx, input.Query, limit, minSim)
	if err != nil {
		s.logger.Error("search failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(hits)))

	output := SearchOutput{Results: make([]SearchResultOutput, 0, len(hits))}
	for _, h := range hits {
		output.Results = append(output.Results, SearchResultOutput{
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
	return nil, output, nil
}

func (s *Server) mcpSuggestBundlesHandler(_ context.Context, _ *mcp.CallToolRequest, input SuggestBundlesInput) (
	*mcp.CallToolResult,
	SuggestBundlesOutput,
	error,
) {
	if strings.TrimSpace(input.FilePath) == "" {
		return nil, SuggestBundlesOutput{}, NewInvalidParamsError("file_path parameter is required")
	}

	labels := rules.SuggestBundleLabels(input.FilePath, s.rules.Active())
	return nil, SuggestBundlesOutput{Labels: labels}, nil
}

func (s *Server) mcpResolveBundleHandler(ctx context.Context, _ *mcp.CallToolRequest, input ResolveBundleInput) (
	*mcp.CallToolResult,
	ResolveBundleOutput,
	error,
) {
	if strings.TrimSpace(input.Label) == "" {
		return nil, ResolveBundleOutput{}, NewInvalidParamsError("label parameter is required")
	}

	files, err := s.resolver.Resolve(ctx, input.Label)
	if err != nil {
		return nil, ResolveBundleOutput{}, MapError(err)
	}
	if files == nil {
		files = []string{}
	}
	return nil, ResolveBundleOutput{Label: input.Label, Files: files}, nil
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	stats := s.index.Stats()

	info := EmbeddingInfo{
		Provider:        s.config.Embeddings.Provider,
		Model:           "none",
		Status:          "unavailable",
		FallbackActive:  true,
		SemanticQuality: "none",
	}
	if s.embedder != nil {
		info.Model = s.embedder.ModelName()
		info.Dimensions = s.embedder.Dimensions()
		info.FallbackActive = info.Model == "hash"
		if info.FallbackActive {
			info.SemanticQuality = "low"
		} else {
			info.SemanticQuality = "high"
		}
		if s.embedder.Available(ctx) {
			info.Status = "ready"
		}
	}

	output := &IndexStatusOutput{
		UnitCount:  stats.Count,
		Backend:    stats.Backend,
		Embeddings: info,
	}

	if paths, err := s.store.Paths(ctx); err == nil {
		output.FileCount = len(paths)
	}
	if labels, err := s.resolver.ListDynamicLabels(ctx); err == nil {
		output.BundleLabels = labels
	}
	if s.progress != nil {
		snap := s.progress.Snapshot()
		output.Scan = &snap
	}

	return nil, output, nil
}

// Serve runs the server over the given transport until ctx is
// canceled. Only stdio is supported.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func clampLimit(v, def, lo, hi int) int {
	if v <= 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// generateRequestID creates a short unique ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
