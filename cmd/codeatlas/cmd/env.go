package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/codeatlas/codeatlas/internal/chunk"
	"github.com/codeatlas/codeatlas/internal/config"
	"github.com/codeatlas/codeatlas/internal/embed"
	"github.com/codeatlas/codeatlas/internal/index"
	"github.com/codeatlas/codeatlas/internal/pipeline"
	"github.com/codeatlas/codeatlas/internal/rules"
	"github.com/codeatlas/codeatlas/internal/scanner"
	"github.com/codeatlas/codeatlas/internal/store"
)

// embedderInitTimeout bounds backend probing during startup.
const embedderInitTimeout = 15 * time.Second

// atlasEnv bundles the open project resources a command works with.
type atlasEnv struct {
	root     string
	cfg      *config.Config
	store    *store.SQLiteStore
	index    *index.EmbeddingIndex
	keyword  *index.KeywordIndex
	rules    *rules.Loader
	embedder embed.Embedder
	scanner  *scanner.Scanner
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

func dataDir(root string) string {
	return filepath.Join(root, ".codeatlas")
}

func storePath(root string, cfg *config.Config) string {
	return filepath.Join(root, filepath.FromSlash(cfg.Index.DBPath))
}

// resolveRoot locates the project root for a path argument, falling
// back to the path itself when no project markers exist.
func resolveRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	root, err := config.FindProjectRoot(abs)
	if err != nil {
		return abs, nil
	}
	return root, nil
}

// openEnv wires the full indexing environment for root. The caller
// must close it.
func openEnv(ctx context.Context, root string, cfg *config.Config, logger *slog.Logger) (*atlasEnv, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dataDir(root), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.NewSQLiteStore(storePath(root, cfg))
	if err != nil {
		return nil, fmt.Errorf("open unit store: %w", err)
	}

	embedCtx, cancel := context.WithTimeout(ctx, embedderInitTimeout)
	embedder, err := embed.NewEmbedder(embedCtx, embed.ProviderType(cfg.Embeddings.Provider), embed.OllamaConfig{
		Host:       cfg.Embeddings.OllamaHost,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
	})
	cancel()
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}

	x := index.New(index.Options{
		Embedder: embedder,
		UseHNSW:  cfg.Index.UseHNSW,
		Logger:   logger,
	})

	kw, err := index.NewKeywordIndex(filepath.Join(root, filepath.FromSlash(cfg.Index.KeywordPath)))
	if err != nil {
		_ = embedder.Close()
		_ = st.Close()
		return nil, fmt.Errorf("open keyword index: %w", err)
	}

	loader := rules.NewLoader(filepath.Join(root, filepath.FromSlash(cfg.Rules.Path)), logger)

	sc, err := scanner.New(logger)
	if err != nil {
		_ = loader.Close()
		_ = kw.Close()
		_ = embedder.Close()
		_ = st.Close()
		return nil, err
	}

	env := &atlasEnv{
		root:     root,
		cfg:      cfg,
		store:    st,
		index:    x,
		keyword:  kw,
		rules:    loader,
		embedder: embedder,
		scanner:  sc,
		logger:   logger,
	}
	env.pipeline = pipeline.New(pipeline.Options{
		Extractor: chunk.NewExtractor(),
		Rules:     loader,
		Store:     st,
		Index:     x,
		Keyword:   kw,
		Root:      root,
		Workers:   cfg.Performance.Workers,
		Logger:    logger,
	})
	return env, nil
}

func (e *atlasEnv) Close() {
	_ = e.rules.Close()
	_ = e.keyword.Close()
	_ = e.embedder.Close()
	_ = e.store.Close()
}

// discover lists the project files a scan should process.
func (e *atlasEnv) discover(ctx context.Context) ([]string, error) {
	return e.scanner.Discover(ctx, scanner.Options{
		Root:     e.root,
		Include:  e.cfg.Paths.Include,
		Exclude:  e.cfg.Paths.Exclude,
		MaxFiles: e.cfg.Performance.MaxFiles,
	})
}

// loadIndex rebuilds the in-memory embedding index from the persisted
// unit store. Returns the number of units indexed.
func (e *atlasEnv) loadIndex(ctx context.Context) (int, error) {
	units, err := e.store.Units(ctx)
	if err != nil {
		return 0, fmt.Errorf("load stored units: %w", err)
	}
	if len(units) == 0 {
		return 0, nil
	}
	indexed, err := e.index.Index(ctx, units)
	if err != nil {
		return 0, fmt.Errorf("rebuild embedding index: %w", err)
	}
	return indexed, nil
}

// removeFile drops one file from the store and both indexes.
func (e *atlasEnv) removeFile(ctx context.Context, path string) error {
	return e.pipeline.Remove(ctx, path)
}
