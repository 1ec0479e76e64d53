package rules

import (
	"strings"

	"github.com/codeatlas/codeatlas/internal/chunk"
)

// Outcome is the engine's classification result for one unit.
type Outcome struct {
	Purpose    string
	Confidence float64
	Domains    []string
	Patterns   []string
	Complexity Complexity
	Tags       []string
}

// DeterminePurpose resolves the single purpose label for a unit:
// first fully-matching rule in declaration order, else the configured
// fallback. Pure in (unit, cfg).
func DeterminePurpose(u *chunk.RawUnit, cfg *Config) (string, float64) {
	s := subjectFromUnit(u)
	for i := range cfg.purposeRules {
		if cfg.purposeRules[i].matches(s) {
			return cfg.purposeRules[i].label, cfg.purposeRules[i].confidence
		}
	}
	return cfg.Fallback, 0
}

// InferDomains accumulates every matching domain-bank label. Multi-label
// by design: no first-match short-circuit.
func InferDomains(u *chunk.RawUnit, cfg *Config) []string {
	return inferLabels(u, domainBank)
}

// InferPatterns accumulates every matching pattern-bank label.
func InferPatterns(u *chunk.RawUnit, cfg *Config) []string {
	return inferLabels(u, patternBank)
}

func inferLabels(u *chunk.RawUnit, bank []bankEntry) []string {
	s := subjectFromUnit(u)
	var labels []string
	for _, e := range bank {
		if e.match(s) {
			labels = append(labels, e.label)
		}
	}
	return labels
}

// SuggestBundleLabels evaluates the bundle-rule table against a file
// path, accumulating every matching rule's label plus the labels of its
// matching sub-rules (sub-rules are only evaluated when the parent
// matched). An empty accumulation falls back in two tiers: path-scoped
// fallback rules, then the fixed default label set. Deduplicated, in
// accumulation order.
func SuggestBundleLabels(filePath string, cfg *Config) []string {
	s := &subject{Path: filePath}

	var labels []string
	for i := range cfg.bundleRules {
		labels = appendRuleLabels(labels, &cfg.bundleRules[i], s)
	}

	if len(labels) == 0 {
		for i := range cfg.pathRules {
			if cfg.pathRules[i].matches(s) {
				labels = append(labels, cfg.pathRules[i].label)
			}
		}
	}
	if len(labels) == 0 {
		labels = append(labels, cfg.defaults...)
	}

	return dedupe(labels)
}

func appendRuleLabels(labels []string, r *compiledRule, s *subject) []string {
	if !r.matches(s) {
		return labels
	}
	labels = append(labels, r.label)
	for i := range r.subRules {
		labels = appendRuleLabels(labels, &r.subRules[i], s)
	}
	return labels
}

// Classify runs the full engine over one unit.
func Classify(u *chunk.RawUnit, cfg *Config) Outcome {
	purpose, confidence := DeterminePurpose(u, cfg)
	out := Outcome{
		Purpose:    purpose,
		Confidence: confidence,
		Domains:    InferDomains(u, cfg),
		Patterns:   InferPatterns(u, cfg),
		Complexity: ScoreComplexity(u.Code),
	}
	if cluster := cfg.Cluster(purpose); cluster != "" {
		out.Tags = append(out.Tags, cluster)
	}
	return out
}

func subjectFromUnit(u *chunk.RawUnit) *subject {
	return &subject{
		Kind:    string(u.Kind),
		Name:    u.Name,
		Path:    u.FilePath,
		Imports: u.Context.Imports,
		Code:    u.Code,
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// bankEntry is one fixed inference predicate: path segments, import
// specifiers, and name/code substrings feeding a single label.
type bankEntry struct {
	label string
	match func(s *subject) bool
}

func pathSeg(seg string) func(*subject) bool {
	return func(s *subject) bool { return pathHasSegment(s.Path, seg) }
}

func importHas(sub string) func(*subject) bool {
	return func(s *subject) bool {
		for _, imp := range s.Imports {
			if containsFold(imp, sub) {
				return true
			}
		}
		return false
	}
}

func nameOrCodeHas(sub string) func(*subject) bool {
	return func(s *subject) bool {
		return containsFold(s.Name, sub) || containsFold(s.Code, sub)
	}
}

func anyOf(fns ...func(*subject) bool) func(*subject) bool {
	return func(s *subject) bool {
		for _, fn := range fns {
			if fn(s) {
				return true
			}
		}
		return false
	}
}

// domainBank maps business-domain signals to labels. Fixed: inference
// banks are code-level tables, not configurable rule groups.
var domainBank = []bankEntry{
	{"authentication", anyOf(pathSeg("auth"), nameOrCodeHas("login"), nameOrCodeHas("authenticate"), importHas("passport"), importHas("jsonwebtoken"))},
	{"database", anyOf(pathSeg("db"), pathSeg("models"), nameOrCodeHas("query"), importHas("sqlite"), importHas("postgres"), importHas("mongoose"), importHas("prisma"))},
	{"api", anyOf(pathSeg("api"), pathSeg("routes"), nameOrCodeHas("endpoint"), importHas("express"), importHas("axios"), importHas("fastify"))},
	{"ui", anyOf(pathSeg("components"), pathSeg("pages"), pathSeg("views"), importHas("react"), importHas("vue"), importHas("svelte"))},
	{"state", anyOf(pathSeg("store"), pathSeg("state"), importHas("redux"), importHas("zustand"), importHas("mobx"))},
	{"payments", anyOf(pathSeg("billing"), pathSeg("payments"), nameOrCodeHas("invoice"), importHas("stripe"))},
	{"search", anyOf(pathSeg("search"), nameOrCodeHas("search"), importHas("elasticsearch"))},
	{"configuration", anyOf(pathSeg("config"), nameOrCodeHas("config"), importHas("dotenv"))},
	{"logging", anyOf(pathSeg("logging"), nameOrCodeHas("logger"), importHas("winston"), importHas("pino"))},
	{"messaging", anyOf(pathSeg("queue"), nameOrCodeHas("publish"), importHas("amqplib"), importHas("kafkajs"))},
}

// patternBank maps technical-pattern signals to labels.
var patternBank = []bankEntry{
	{"hook", func(s *subject) bool {
		return s.Kind != "method" && len(s.Name) > 3 && s.Name[:3] == "use" && s.Name[3] >= 'A' && s.Name[3] <= 'Z'
	}},
	{"component", func(s *subject) bool { return s.Kind == "component" }},
	{"middleware", anyOf(pathSeg("middleware"), nameOrCodeHas("next()"))},
	{"factory", func(s *subject) bool { return containsFold(s.Name, "create") || containsFold(s.Name, "make") }},
	{"handler", func(s *subject) bool {
		if containsFold(s.Name, "handle") {
			return true
		}
		return len(s.Name) > 2 && s.Name[:2] == "on" && s.Name[2] >= 'A' && s.Name[2] <= 'Z'
	}},
	{"async", func(s *subject) bool { return containsFold(s.Code, "await ") || containsFold(s.Code, ".then(") }},
	{"error-handling", func(s *subject) bool { return containsFold(s.Code, "try") && containsFold(s.Code, "catch") }},
	{"validation", func(s *subject) bool { return containsFold(s.Name, "validate") || containsFold(s.Name, "sanitize") }},
	{"caching", func(s *subject) bool { return containsFold(s.Code, "cache") }},
	{"testing", anyOf(pathSeg("__tests__"), func(s *subject) bool {
		return containsFold(s.Code, "describe(") || containsFold(s.Code, "it(") && containsFold(s.Code, "expect(")
	})},
	{"data-transform", func(s *subject) bool {
		return containsFold(s.Code, ".map(") || containsFold(s.Code, ".reduce(") || containsFold(s.Code, ".filter(")
	}},
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
