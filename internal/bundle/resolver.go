// Package bundle resolves classification labels to file sets. Bundles
// are dynamic: nothing is stored per bundle, membership is recomputed
// from the classified-unit store on every call.
package bundle

import (
	"context"
	"sort"
	"strings"

	"github.com/codeatlas/codeatlas/internal/store"
)

// Resolver answers bundle queries against a classified-unit store.
type Resolver struct {
	store store.Store
}

func NewResolver(s store.Store) *Resolver {
	return &Resolver{store: s}
}

// ListDynamicLabels returns the distinct purpose and pattern labels
// currently present in the store, sorted.
func (r *Resolver) ListDynamicLabels(ctx context.Context) ([]string, error) {
	purposes, err := r.store.PurposeLabels(ctx)
	if err != nil {
		return nil, err
	}
	patterns, err := r.store.PatternLabels(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(purposes)+len(patterns))
	var labels []string
	for _, l := range append(purposes, patterns...) {
		if !seen[l] {
			seen[l] = true
			labels = append(labels, l)
		}
	}
	sort.Strings(labels)
	return labels, nil
}

// Resolve returns the file set for a label. The label is matched
// slug-insensitively ("Data Access", "data access", and "data-access"
// name the same bundle), first against pattern labels, falling back to
// purpose labels only when no pattern label matched. An unmatched
// label resolves to an empty set; Resolve itself only errors when the
// store does.
func (r *Resolver) Resolve(ctx context.Context, label string) ([]string, error) {
	want := Slug(label)
	if want == "" {
		return []string{}, nil
	}

	paths := make(map[string]bool)

	patterns, err := r.store.PatternLabels(ctx)
	if err != nil {
		return nil, err
	}
	matchedPattern := false
	for _, stored := range patterns {
		if Slug(stored) != want {
			continue
		}
		matchedPattern = true
		matched, err := r.store.PathsWithPattern(ctx, stored)
		if err != nil {
			return nil, err
		}
		for _, p := range matched {
			paths[p] = true
		}
	}

	if !matchedPattern {
		purposes, err := r.store.PurposeLabels(ctx)
		if err != nil {
			return nil, err
		}
		for _, stored := range purposes {
			if Slug(stored) != want {
				continue
			}
			matched, err := r.store.PathsWithPurpose(ctx, stored)
			if err != nil {
				return nil, err
			}
			for _, p := range matched {
				paths[p] = true
			}
		}
	}

	out := make([]string, 0, len(paths))
	for p := range paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// Slug normalizes a label for comparison: lowercase with whitespace
// runs collapsed to single hyphens.
func Slug(label string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(label)))
	return strings.Join(fields, "-")
}
