package index

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/codeatlas/codeatlas/internal/store"
)

const identTokenizerName = "ident_tokenizer"
const identAnalyzerName = "ident_analyzer"

func init() {
	_ = registry.RegisterTokenizer(identTokenizerName, identTokenizerConstructor)
}

// KeywordIndex is the BM25 degraded path used when no embedding backend
// is available. It indexes the same canonical text as the vector index,
// analyzed with an identifier-aware tokenizer.
type KeywordIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

type keywordDoc struct {
	Content string `json:"content"`
}

// NewKeywordIndex creates the index at path, or in memory when path is
// empty.
func NewKeywordIndex(path string) (*KeywordIndex, error) {
	m, err := keywordMapping()
	if err != nil {
		return nil, err
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, m)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword index: %w", err)
	}
	return &KeywordIndex{index: idx}, nil
}

func keywordMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(identAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     identTokenizerName,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add analyzer: %w", err)
	}
	m.DefaultAnalyzer = identAnalyzerName
	return m, nil
}

// Add indexes units in one batch, keyed by identity.
func (k *KeywordIndex) Add(ctx context.Context, units []store.ClassifiedUnit) error {
	if len(units) == 0 {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return fmt.Errorf("keyword index is closed")
	}

	batch := k.index.NewBatch()
	for i := range units {
		doc := keywordDoc{Content: CanonicalText(&units[i])}
		if err := batch.Index(units[i].Identity(), doc); err != nil {
			return fmt.Errorf("failed to batch unit %s: %w", units[i].Identity(), err)
		}
	}
	if err := k.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index batch: %w", err)
	}
	return nil
}

// Search returns identities ranked by BM25 score.
func (k *KeywordIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return nil, fmt.Errorf("keyword index is closed")
	}
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []Hit{}, nil
	}

	match := bleve.NewMatchQuery(query)
	match.SetField("content")
	req := bleve.NewSearchRequest(match)
	req.Size = limit
	req.Fields = []string{"content"}

	res, err := k.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{Identity: h.ID, Similarity: h.Score}
		if content, ok := h.Fields["content"].(string); ok {
			hit.Metadata.Content = content
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Delete removes identities from the index.
func (k *KeywordIndex) Delete(ids ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return fmt.Errorf("keyword index is closed")
	}
	batch := k.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := k.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete from keyword index: %w", err)
	}
	return nil
}

// Count returns the number of indexed documents.
func (k *KeywordIndex) Count() (int, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return 0, fmt.Errorf("keyword index is closed")
	}
	n, err := k.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(n), nil
}

func (k *KeywordIndex) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	return k.index.Close()
}

func identTokenizerConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	return &identTokenizer{}, nil
}

// identTokenizer splits identifiers the way the hash embedder does:
// word boundaries first, then camelCase and snake_case runs, so
// "getUserById" matches a query for "user".
type identTokenizer struct{}

func (t *identTokenizer) Tokenize(input []byte) analysis.TokenStream {
	var stream analysis.TokenStream
	pos := 1

	start := -1
	emitRun := func(runStart, runEnd int) {
		run := string(input[runStart:runEnd])
		cursor := 0
		for _, part := range splitIdentifier(run) {
			off := strings.Index(run[cursor:], part)
			if off < 0 {
				off = 0
			}
			partStart := runStart + cursor + off
			stream = append(stream, &analysis.Token{
				Term:     []byte(part),
				Start:    partStart,
				End:      partStart + len(part),
				Position: pos,
				Type:     analysis.AlphaNumeric,
			})
			pos++
			cursor = partStart + len(part) - runStart
		}
	}

	for i := 0; i <= len(input); i++ {
		isWord := i < len(input) && (isAlnumByte(input[i]) || input[i] == '_')
		if isWord && start < 0 {
			start = i
		}
		if !isWord && start >= 0 {
			emitRun(start, i)
			start = -1
		}
	}
	return stream
}

func isAlnumByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// splitIdentifier breaks one identifier run into sub-tokens on
// underscores and camelCase boundaries.
func splitIdentifier(run string) []string {
	var parts []string
	for _, piece := range strings.Split(run, "_") {
		if piece == "" {
			continue
		}
		parts = append(parts, splitCamelRuns(piece)...)
	}
	return parts
}

func splitCamelRuns(s string) []string {
	var parts []string
	runes := []rune(s)
	start := 0
	for i := 1; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			continue
		}
		prevLower := unicode.IsLower(runes[i-1])
		nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
		if prevLower || nextLower {
			parts = append(parts, string(runes[start:i]))
			start = i
		}
	}
	parts = append(parts, string(runes[start:]))
	return parts
}
