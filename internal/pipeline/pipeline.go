// Package pipeline coordinates a scan: parallel per-file extraction and
// classification, serialized aggregation into the classified-unit
// store, then batched embedding into the index.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codeatlas/codeatlas/internal/chunk"
	"github.com/codeatlas/codeatlas/internal/index"
	"github.com/codeatlas/codeatlas/internal/rules"
	"github.com/codeatlas/codeatlas/internal/store"
)

// Summary reports the outcome of one scan.
type Summary struct {
	FilesScanned int
	FilesFailed  int
	Units        int
	Indexed      int
	Duration     time.Duration
}

// Options configures a Pipeline.
type Options struct {
	Extractor *chunk.Extractor
	Rules     *rules.Loader
	Store     store.Store
	Index     *index.EmbeddingIndex
	// Keyword, when set, also receives every committed unit.
	Keyword *index.KeywordIndex
	// Root is prepended to scan paths when reading files, so stored
	// paths stay relative to the project root.
	Root string
	// Workers bounds parallel file processing; defaults to GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

// Pipeline runs scans. Scans may be triggered concurrently; results are
// committed atomically on completion, so the store and index always
// reflect the last scan that finished, never a half-applied one.
type Pipeline struct {
	extractor *chunk.Extractor
	rules     *rules.Loader
	store     store.Store
	index     *index.EmbeddingIndex
	keyword   *index.KeywordIndex
	root      string
	workers   int
	logger    *slog.Logger

	commitMu sync.Mutex
}

func New(opts Options) *Pipeline {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: opts.Extractor,
		rules:     opts.Rules,
		store:     opts.Store,
		index:     opts.Index,
		keyword:   opts.Keyword,
		root:      opts.Root,
		workers:   workers,
		logger:    logger,
	}
}

type fileResult struct {
	path  string
	units []store.ClassifiedUnit
}

// Scan processes the given pre-filtered file paths. A file that cannot
// be read is logged and skipped; the scan continues. The rule snapshot
// is taken once at scan start, so one scan never mixes rule versions.
func (p *Pipeline) Scan(ctx context.Context, paths []string) (*Summary, error) {
	started := time.Now()
	cfg := p.rules.Active()

	var mu sync.Mutex
	results := make(map[string]fileResult, len(paths))
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := p.processFile(path, cfg)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Warn("skipping file", "path", path, "error", err)
				failed++
				return nil
			}
			results[path] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{
		FilesScanned: len(results),
		FilesFailed:  failed,
	}

	// Serialize the commit: store replacement and re-index happen
	// under one lock so two finishing scans apply whole, in finish
	// order.
	p.commitMu.Lock()
	defer p.commitMu.Unlock()

	var units []store.ClassifiedUnit
	var stale []string
	for _, path := range sortedPaths(results) {
		res := results[path]
		prev, err := p.store.File(ctx, path)
		if err != nil {
			return nil, err
		}
		if err := p.store.ReplaceFile(ctx, path, res.units); err != nil {
			return nil, err
		}
		stale = append(stale, staleIdentities(prev, res.units)...)
		units = append(units, res.units...)
	}
	summary.Units = len(units)

	// Identities a file no longer produces must stop being searchable,
	// or renamed units from an earlier scan would outlive it.
	if len(stale) > 0 {
		p.index.Delete(stale...)
		if p.keyword != nil {
			if err := p.keyword.Delete(stale...); err != nil {
				return nil, err
			}
		}
	}

	indexed, err := p.index.Index(ctx, units)
	if err != nil {
		return nil, err
	}
	summary.Indexed = indexed

	if p.keyword != nil {
		if err := p.keyword.Add(ctx, units); err != nil {
			return nil, err
		}
	}
	summary.Duration = time.Since(started)

	p.logger.Info("scan complete",
		"files", summary.FilesScanned,
		"failed", summary.FilesFailed,
		"units", summary.Units,
		"indexed", summary.Indexed,
		"duration", summary.Duration)
	return summary, nil
}

func (p *Pipeline) processFile(path string, cfg *rules.Config) (fileResult, error) {
	readPath := path
	if p.root != "" {
		readPath = filepath.Join(p.root, filepath.FromSlash(path))
	}
	data, err := os.ReadFile(readPath)
	if err != nil {
		return fileResult{}, err
	}

	raw := p.extractor.Extract(string(data), path)
	units := make([]store.ClassifiedUnit, 0, len(raw))
	for i := range raw {
		out := rules.Classify(&raw[i], cfg)
		units = append(units, store.ClassifiedUnit{
			RawUnit:    raw[i],
			Purpose:    out.Purpose,
			Confidence: out.Confidence,
			Domains:    out.Domains,
			Patterns:   out.Patterns,
			Complexity: out.Complexity,
			Tags:       out.Tags,
		})
	}
	return fileResult{path: path, units: units}, nil
}

// Remove drops a file and everything derived from it: its rows in the
// store and its unit identities in both the embedding and keyword
// indexes. Missing paths are a no-op.
func (p *Pipeline) Remove(ctx context.Context, path string) error {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()
	return p.removeLocked(ctx, path)
}

func (p *Pipeline) removeLocked(ctx context.Context, path string) error {
	prev, err := p.store.File(ctx, path)
	if err != nil {
		return err
	}
	if len(prev) > 0 {
		ids := make([]string, 0, len(prev))
		for i := range prev {
			ids = append(ids, prev[i].Identity())
		}
		p.index.Delete(ids...)
		if p.keyword != nil {
			if err := p.keyword.Delete(ids...); err != nil {
				return err
			}
		}
	}
	return p.store.DeleteFile(ctx, path)
}

// Prune removes stored files that a full scan no longer discovered,
// so deletions that happened between runs do not leave rows behind.
// It returns the number of files removed.
func (p *Pipeline) Prune(ctx context.Context, scanned []string) (int, error) {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()

	keep := make(map[string]struct{}, len(scanned))
	for _, path := range scanned {
		keep[path] = struct{}{}
	}

	stored, err := p.store.Paths(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range stored {
		if _, ok := keep[path]; ok {
			continue
		}
		if err := p.removeLocked(ctx, path); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		p.logger.Info("pruned deleted files", "files", removed)
	}
	return removed, nil
}

// staleIdentities reports identities present before a replace that the
// fresh scan of the same file did not re-emit.
func staleIdentities(prev, next []store.ClassifiedUnit) []string {
	if len(prev) == 0 {
		return nil
	}
	fresh := make(map[string]struct{}, len(next))
	for i := range next {
		fresh[next[i].Identity()] = struct{}{}
	}
	var stale []string
	for i := range prev {
		id := prev[i].Identity()
		if _, ok := fresh[id]; !ok {
			stale = append(stale, id)
		}
	}
	return stale
}

func sortedPaths(results map[string]fileResult) []string {
	paths := make([]string, 0, len(results))
	for path := range results {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
