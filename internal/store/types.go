// Package store holds classified units keyed by file path. A re-scan
// of a file replaces that file's units wholesale; the rest of the
// system treats the store as an external collaborator with set
// semantics.
package store

import (
	"context"

	"github.com/codeatlas/codeatlas/internal/chunk"
	"github.com/codeatlas/codeatlas/internal/rules"
)

// ClassifiedUnit is a raw unit plus its classification labels.
type ClassifiedUnit struct {
	chunk.RawUnit

	Purpose    string
	Confidence float64
	Domains    []string
	Patterns   []string
	Complexity rules.Complexity
	Tags       []string
}

// Store is the classified-unit store contract. All label queries are
// exact-membership: a unit counts for label L only when L appears in
// the corresponding label set verbatim.
type Store interface {
	// ReplaceFile overwrites the unit list for one file path.
	// Replacing with an empty list removes the path.
	ReplaceFile(ctx context.Context, path string, units []ClassifiedUnit) error

	// DeleteFile removes a path and its units. Unknown paths are a
	// no-op.
	DeleteFile(ctx context.Context, path string) error

	// File returns the ordered unit list for a path, or an empty list
	// for unknown paths.
	File(ctx context.Context, path string) ([]ClassifiedUnit, error)

	// Units returns every stored unit, grouped by path, paths in
	// lexical order.
	Units(ctx context.Context) ([]ClassifiedUnit, error)

	// Paths returns every stored file path in lexical order.
	Paths(ctx context.Context) ([]string, error)

	// PurposeLabels returns the distinct purpose labels present.
	PurposeLabels(ctx context.Context) ([]string, error)

	// PatternLabels returns the distinct pattern labels present.
	PatternLabels(ctx context.Context) ([]string, error)

	// PathsWithPurpose returns the paths of units whose purpose equals
	// label, in lexical order.
	PathsWithPurpose(ctx context.Context, label string) ([]string, error)

	// PathsWithPattern returns the paths of units whose pattern set
	// contains label, in lexical order.
	PathsWithPattern(ctx context.Context, label string) ([]string, error)

	// Count returns the total number of stored units.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}
