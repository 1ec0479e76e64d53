// Package chunk extracts function- and method-level units from source
// text using ordered pattern matchers. It deliberately approximates
// parsing: a nesting counter with string-literal tracking locates unit
// bodies, and anything that fails to match is skipped per-match, never
// failing the whole file.
package chunk

import "fmt"

// Extraction defaults.
const (
	// MinBodySize is the minimum body length in bytes for a match to
	// become a unit. Shorter bodies are treated as noise.
	MinBodySize = 10

	// MaxUnitBytes caps a single unit body. A runaway scan (unbalanced
	// braces in minified input) stops here instead of swallowing the file.
	MaxUnitBytes = 200_000
)

// UnitKind represents the syntactic form a unit was extracted from.
type UnitKind string

const (
	KindFunction  UnitKind = "function"
	KindArrow     UnitKind = "arrow"
	KindMethod    UnitKind = "method"
	KindComponent UnitKind = "component"
)

// Context holds lightweight file-level context attached to every unit
// extracted from that file.
type Context struct {
	// Imports are module specifiers in file order.
	Imports []string
	// Types are declared type/interface/class/enum names.
	Types []string
	// Calls are called-function names, deduplicated, with language
	// keywords and common builtins removed.
	Calls []string
}

// RawUnit is a single extracted unit. It is transient: classification
// consumes it and produces a store-owned ClassifiedUnit.
type RawUnit struct {
	Name      string
	Kind      UnitKind
	FilePath  string
	StartLine int // 1-indexed
	EndLine   int // inclusive
	Code      string
	Signature string
	Context   Context
}

// Identity returns the unit's identity key (name:filePath:startLine).
// Units without a usable name get a positional fallback so keys stay
// unique within a store.
func (u *RawUnit) Identity() string {
	name := u.Name
	if name == "" {
		name = "unit"
	}
	return fmt.Sprintf("%s:%s:%d", name, u.FilePath, u.StartLine)
}
