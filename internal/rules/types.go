// Package rules implements the classification rule engine: a
// hot-reloadable rule configuration evaluated as pure functions over
// extracted units. Rule documents are parsed once into predicate form at
// load time; evaluation never touches the raw condition strings.
package rules

import (
	"fmt"
	"strings"
)

// Rule is one entry in a rule table as it appears in the configuration
// document. Conditions are predicate strings (see condition.go for the
// supported shapes). SubRules are evaluated only when the parent rule
// matched.
type Rule struct {
	Conditions []string `yaml:"conditions"`
	Label      string   `yaml:"label"`
	Confidence float64  `yaml:"confidence"`
	SubRules   []Rule   `yaml:"subRules,omitempty"`
}

// Document is the on-disk rule configuration. Three top-level groups are
// required: purpose rules, bundle rules, and the semantic cluster map.
type Document struct {
	Version int          `yaml:"version"`
	Purpose PurposeGroup `yaml:"purpose"`
	Bundles BundleGroup  `yaml:"bundles"`
	// Clusters maps a semantic type label to a cluster identifier.
	Clusters map[string]string `yaml:"clusters"`
}

// PurposeGroup is the purpose-rule table plus its fallback label.
type PurposeGroup struct {
	Fallback string `yaml:"fallback"`
	Rules    []Rule `yaml:"rules"`
}

// BundleGroup is the bundle-rule table plus its two-tier fallback:
// path-scoped rules first, then a fixed default label set.
type BundleGroup struct {
	Rules    []Rule         `yaml:"rules"`
	Fallback BundleFallback `yaml:"fallback"`
}

// BundleFallback holds the two fallback tiers for bundle suggestion.
type BundleFallback struct {
	PathRules     []Rule   `yaml:"pathRules"`
	DefaultLabels []string `yaml:"defaultLabels"`
}

// Validate checks the document structurally. Validation is
// all-or-nothing: any failure rejects the whole document and the caller
// keeps (or substitutes) a known-good configuration.
func (d *Document) Validate() error {
	if d == nil {
		return fmt.Errorf("rule document is nil")
	}
	if len(d.Purpose.Rules) == 0 {
		return fmt.Errorf("purpose rule group is missing or empty")
	}
	if strings.TrimSpace(d.Purpose.Fallback) == "" {
		return fmt.Errorf("purpose fallback label is required")
	}
	if len(d.Bundles.Rules) == 0 {
		return fmt.Errorf("bundle rule group is missing or empty")
	}
	if len(d.Bundles.Fallback.DefaultLabels) == 0 {
		return fmt.Errorf("bundle default fallback labels are required")
	}
	if len(d.Clusters) == 0 {
		return fmt.Errorf("semantic cluster map is missing or empty")
	}

	for i, r := range d.Purpose.Rules {
		if err := validateRule(r); err != nil {
			return fmt.Errorf("purpose rule %d: %w", i, err)
		}
	}
	for i, r := range d.Bundles.Rules {
		if err := validateRule(r); err != nil {
			return fmt.Errorf("bundle rule %d: %w", i, err)
		}
	}
	for i, r := range d.Bundles.Fallback.PathRules {
		if err := validateRule(r); err != nil {
			return fmt.Errorf("bundle fallback rule %d: %w", i, err)
		}
	}
	return nil
}

func validateRule(r Rule) error {
	if strings.TrimSpace(r.Label) == "" {
		return fmt.Errorf("rule label is required")
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("rule %q has no conditions", r.Label)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("rule %q confidence %v outside [0,1]", r.Label, r.Confidence)
	}
	for _, sub := range r.SubRules {
		if err := validateRule(sub); err != nil {
			return fmt.Errorf("sub-rule of %q: %w", r.Label, err)
		}
	}
	return nil
}

// Config is the compiled, immutable snapshot the engine evaluates
// against. It is built once per document load and swapped atomically;
// evaluators see either the whole old snapshot or the whole new one.
type Config struct {
	Version  int
	Fallback string

	purposeRules []compiledRule
	bundleRules  []compiledRule
	pathRules    []compiledRule
	defaults     []string
	clusters     map[string]string
}

// compiledRule carries parsed predicates plus the structural
// disjunction flag (see isDisjunctionException).
type compiledRule struct {
	label      string
	confidence float64
	preds      []predicate
	disjunct   bool
	subRules   []compiledRule
}

// Compile parses every condition string in the document into predicate
// form. Malformed conditions compile to a never-matching predicate and
// are reported through the returned warnings; they never fail the
// compile.
func Compile(doc *Document) (*Config, []string) {
	var warnings []string

	cfg := &Config{
		Version:  doc.Version,
		Fallback: doc.Purpose.Fallback,
		defaults: append([]string(nil), doc.Bundles.Fallback.DefaultLabels...),
		clusters: make(map[string]string, len(doc.Clusters)),
	}
	for k, v := range doc.Clusters {
		cfg.clusters[k] = v
	}

	cfg.purposeRules = compileRules(doc.Purpose.Rules, &warnings)
	cfg.bundleRules = compileRules(doc.Bundles.Rules, &warnings)
	cfg.pathRules = compileRules(doc.Bundles.Fallback.PathRules, &warnings)

	return cfg, warnings
}

func compileRules(rs []Rule, warnings *[]string) []compiledRule {
	out := make([]compiledRule, 0, len(rs))
	for _, r := range rs {
		cr := compiledRule{
			label:      r.Label,
			confidence: r.Confidence,
			preds:      make([]predicate, 0, len(r.Conditions)),
		}
		for _, cond := range r.Conditions {
			p, err := parseCondition(cond)
			if err != nil {
				*warnings = append(*warnings, fmt.Sprintf("rule %q: %v", r.Label, err))
			}
			cr.preds = append(cr.preds, p)
		}
		cr.disjunct = isDisjunctionException(cr.preds)
		cr.subRules = compileRules(r.SubRules, warnings)
		out = append(out, cr)
	}
	return out
}

// Cluster returns the cluster identifier for a semantic type label, or
// empty when unmapped.
func (c *Config) Cluster(semanticType string) string {
	return c.clusters[semanticType]
}
