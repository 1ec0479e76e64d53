package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// HashEmbedder produces embeddings by hashing identifier tokens and
// character trigrams into a fixed-size vector. It needs no network or
// model files and is fully deterministic, trading semantic quality for
// availability.
type HashEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*HashEmbedder)(nil)

// Feature weights. Whole tokens carry most of the signal; trigrams add
// tolerance for near-miss identifiers.
const (
	hashTokenWeight   = 0.7
	hashTrigramWeight = 0.3
	trigramSize       = 3
)

// codeStopWords drops language keywords that appear in nearly every
// unit and carry no distinguishing signal.
var codeStopWords = map[string]bool{
	"func": true, "function": true, "def": true, "class": true,
	"return": true, "import": true, "const": true, "var": true,
	"let": true, "int": true, "string": true, "bool": true,
	"void": true, "true": true, "false": true, "nil": true,
	"null": true, "this": true, "self": true, "new": true,
}

var wordRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{}
}

func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, HashDimensions), nil
	}

	vec := make([]float32, HashDimensions)
	for _, tok := range identifierTokens(trimmed) {
		vec[bucketFor(tok)] += hashTokenWeight
	}
	flat := flattenAlnum(trimmed)
	for i := 0; i+trigramSize <= len(flat); i++ {
		vec[bucketFor(flat[i:i+trigramSize])] += hashTrigramWeight
	}
	return Normalize(vec), nil
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *HashEmbedder) Dimensions() int   { return HashDimensions }
func (e *HashEmbedder) ModelName() string { return "hash" }

func (e *HashEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

func (e *HashEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// identifierTokens splits text into lowercase sub-tokens, breaking
// camelCase and snake_case identifiers apart and dropping stop words.
func identifierTokens(text string) []string {
	var tokens []string
	for _, word := range wordRe.FindAllString(text, -1) {
		for _, part := range strings.Split(word, "_") {
			for _, sub := range splitCamel(part) {
				lower := strings.ToLower(sub)
				if lower != "" && !codeStopWords[lower] {
					tokens = append(tokens, lower)
				}
			}
		}
	}
	return tokens
}

// splitCamel breaks camelCase runs, keeping acronyms together
// ("parseHTTPResponse" -> parse, HTTP, Response).
func splitCamel(s string) []string {
	if s == "" {
		return nil
	}
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
			if i > start {
				parts = append(parts, string(runes[start:i]))
			}
			start = i
		}
	}
	parts = append(parts, string(runes[start:]))
	return parts
}

// flattenAlnum lowercases and strips everything but letters and digits,
// the input stream for trigram extraction.
func flattenAlnum(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func bucketFor(s string) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(HashDimensions))
}
