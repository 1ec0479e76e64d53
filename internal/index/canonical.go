// Package index implements the embedding index: canonical text
// construction, vector search with a linear-scan default and an
// optional HNSW backend, and a BM25 keyword fallback.
package index

import (
	"path"
	"strings"

	"github.com/codeatlas/codeatlas/internal/store"
)

// canonicalSep joins the canonical text fields.
const canonicalSep = " | "

// CanonicalText builds the embedding input for a unit. The field order
// is load-bearing: identical unit content must yield identical text, so
// a deterministic embedder produces identical vectors and re-indexing
// stays reproducible.
func CanonicalText(u *store.ClassifiedUnit) string {
	fields := []string{
		u.Code,
		"Type: " + u.Purpose,
		"Domain: " + strings.Join(u.Domains, ", "),
		"Patterns: " + strings.Join(u.Patterns, ", "),
		"Purpose: " + u.Purpose,
		"Files: " + path.Base(u.FilePath),
	}
	return strings.Join(fields, canonicalSep)
}
