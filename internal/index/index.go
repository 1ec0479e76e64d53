package index

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/codeatlas/codeatlas/internal/embed"
	"github.com/codeatlas/codeatlas/internal/store"
)

// Metadata is the per-record snapshot kept for filtered redisplay.
type Metadata struct {
	Name      string
	FilePath  string
	StartLine int
	Purpose   string
	Domains   []string
	Patterns  []string
	Content   string
}

// Hit is one ranked search result.
type Hit struct {
	Identity   string
	Similarity float64
	Metadata   Metadata
}

// Stats summarizes the index state.
type Stats struct {
	Count   int
	Model   string
	Backend string
}

type record struct {
	vector []float32
	meta   Metadata
	order  int
}

// Options configures an EmbeddingIndex.
type Options struct {
	Embedder embed.Embedder
	// UseHNSW swaps the linear scan for an approximate HNSW graph on
	// free-text search. Label searches always use the exact records.
	UseHNSW bool
	Logger  *slog.Logger
}

// EmbeddingIndex maps unit identities to normalized vectors plus a
// metadata snapshot. Identities are unique; re-indexing an identity
// overwrites its record deterministically and keeps its original
// insertion position so tie ordering is stable across re-index.
type EmbeddingIndex struct {
	mu       sync.RWMutex
	embedder embed.Embedder
	logger   *slog.Logger

	records   map[string]*record
	nextOrder int
	dims      int

	useHNSW bool
	ann     *annBackend
}

func New(opts Options) *EmbeddingIndex {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingIndex{
		embedder: opts.Embedder,
		logger:   logger,
		records:  make(map[string]*record),
		useHNSW:  opts.UseHNSW,
	}
}

// Index embeds and stores the given units, returning how many were
// indexed. A batch that fails to embed is retried item by item; items
// that still fail are logged and skipped, and the scan continues.
func (x *EmbeddingIndex) Index(ctx context.Context, units []store.ClassifiedUnit) (int, error) {
	count := 0
	for start := 0; start < len(units); start += embed.DefaultBatchSize {
		end := start + embed.DefaultBatchSize
		if end > len(units) {
			end = len(units)
		}
		batch := units[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = CanonicalText(&batch[i])
		}

		vectors, err := x.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			x.logger.Warn("batch embed failed, retrying per unit", "error", err)
			for i := range batch {
				vec, embedErr := x.embedder.Embed(ctx, texts[i])
				if embedErr != nil {
					x.logger.Warn("skipping unit",
						"identity", batch[i].Identity(), "error", embedErr)
					continue
				}
				if upsertErr := x.upsertUnit(&batch[i], vec); upsertErr != nil {
					return count, upsertErr
				}
				count++
			}
			continue
		}

		for i := range batch {
			if err := x.upsertUnit(&batch[i], vectors[i]); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

// IndexPrecomputed stores units with caller-supplied vectors, bypassing
// the embedder. Used to restore an index from cached vectors.
func (x *EmbeddingIndex) IndexPrecomputed(_ context.Context, units []store.ClassifiedUnit, vectors [][]float32) (int, error) {
	if len(units) != len(vectors) {
		return 0, fmt.Errorf("units and vectors length mismatch: %d vs %d", len(units), len(vectors))
	}
	for i := range units {
		if err := x.upsertUnit(&units[i], vectors[i]); err != nil {
			return i, err
		}
	}
	return len(units), nil
}

func (x *EmbeddingIndex) upsertUnit(u *store.ClassifiedUnit, vector []float32) error {
	return x.Upsert(u.Identity(), vector, Metadata{
		Name:      u.Name,
		FilePath:  u.FilePath,
		StartLine: u.StartLine,
		Purpose:   u.Purpose,
		Domains:   u.Domains,
		Patterns:  u.Patterns,
		Content:   CanonicalText(u),
	})
}

// Upsert stores one record. The first vector fixes the index dimension;
// later vectors must match it.
func (x *EmbeddingIndex) Upsert(id string, vector []float32, meta Metadata) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dims == 0 {
		x.dims = len(vector)
	} else if len(vector) != x.dims {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vector), x.dims)
	}

	normalized := embed.Normalize(vector)
	if existing, ok := x.records[id]; ok {
		existing.vector = normalized
		existing.meta = meta
	} else {
		x.records[id] = &record{vector: normalized, meta: meta, order: x.nextOrder}
		x.nextOrder++
	}

	if x.useHNSW {
		if x.ann == nil {
			x.ann = newANNBackend(x.dims)
		}
		x.ann.upsert(id, normalized)
	}
	return nil
}

// Search embeds the query and returns hits at or above minSimilarity,
// ranked by similarity descending with insertion-order ties, truncated
// to limit.
func (x *EmbeddingIndex) Search(ctx context.Context, query string, limit int, minSimilarity float64) ([]Hit, error) {
	if limit <= 0 {
		return []Hit{}, nil
	}
	queryVec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.useHNSW && x.ann != nil {
		return x.searchANNLocked(queryVec, limit, minSimilarity), nil
	}
	return x.searchLinearLocked(queryVec, limit, minSimilarity), nil
}

func (x *EmbeddingIndex) searchLinearLocked(queryVec []float32, limit int, minSimilarity float64) []Hit {
	type scored struct {
		id  string
		rec *record
		sim float64
	}
	var candidates []scored
	for id, rec := range x.records {
		sim := cosineSimilarity(queryVec, rec.vector)
		if sim >= minSimilarity {
			candidates = append(candidates, scored{id: id, rec: rec, sim: sim})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].sim != candidates[j].sim {
			return candidates[i].sim > candidates[j].sim
		}
		return candidates[i].rec.order < candidates[j].rec.order
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	hits := make([]Hit, len(candidates))
	for i, c := range candidates {
		hits[i] = Hit{Identity: c.id, Similarity: c.sim, Metadata: c.rec.meta}
	}
	return hits
}

func (x *EmbeddingIndex) searchANNLocked(queryVec []float32, limit int, minSimilarity float64) []Hit {
	ids := x.ann.search(queryVec, limit)
	hits := make([]Hit, 0, len(ids))
	for _, id := range ids {
		rec, ok := x.records[id]
		if !ok {
			continue
		}
		// Exact similarity against the stored vector keeps the
		// minSimilarity contract even though candidate retrieval is
		// approximate.
		sim := cosineSimilarity(queryVec, rec.vector)
		if sim >= minSimilarity {
			hits = append(hits, Hit{Identity: id, Similarity: sim, Metadata: rec.meta})
		}
	}
	return hits
}

// SearchByType returns units whose purpose equals label, in insertion
// order.
func (x *EmbeddingIndex) SearchByType(label string, limit int) []Hit {
	return x.filter(limit, func(m *Metadata) bool { return m.Purpose == label })
}

// SearchByDomain returns units whose domain set contains label.
func (x *EmbeddingIndex) SearchByDomain(label string, limit int) []Hit {
	return x.filter(limit, func(m *Metadata) bool { return containsLabel(m.Domains, label) })
}

// SearchByPattern returns units whose pattern set contains label.
func (x *EmbeddingIndex) SearchByPattern(label string, limit int) []Hit {
	return x.filter(limit, func(m *Metadata) bool { return containsLabel(m.Patterns, label) })
}

func (x *EmbeddingIndex) filter(limit int, match func(*Metadata) bool) []Hit {
	x.mu.RLock()
	defer x.mu.RUnlock()

	type entry struct {
		id  string
		rec *record
	}
	var entries []entry
	for id, rec := range x.records {
		if match(&rec.meta) {
			entries = append(entries, entry{id: id, rec: rec})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].rec.order < entries[j].rec.order
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	hits := make([]Hit, len(entries))
	for i, e := range entries {
		hits[i] = Hit{Identity: e.id, Similarity: 1, Metadata: e.rec.meta}
	}
	return hits
}

// Delete removes records by identity. Unknown identities are ignored.
func (x *EmbeddingIndex) Delete(ids ...string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range ids {
		if _, ok := x.records[id]; !ok {
			continue
		}
		delete(x.records, id)
		if x.ann != nil {
			x.ann.delete(id)
		}
	}
}

// Clear drops every record. Callers must not run Clear concurrently
// with reads or writes they expect to observe a consistent index.
func (x *EmbeddingIndex) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.records = make(map[string]*record)
	x.nextOrder = 0
	x.dims = 0
	x.ann = nil
}

// Stats reports the record count and the embedding model in use.
func (x *EmbeddingIndex) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()

	backend := "linear"
	if x.useHNSW {
		backend = "hnsw"
	}
	return Stats{
		Count:   len(x.records),
		Model:   x.embedder.ModelName(),
		Backend: backend,
	}
}

// cosineSimilarity computes cosine defensively: it does not assume the
// inputs are normalized.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
