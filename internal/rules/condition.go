package rules

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// predKind enumerates the predicate shapes of the condition language.
type predKind int

const (
	predInvalid predKind = iota
	predKindEquals
	predNamePrefix
	predNameContains
	predNameRegex
	predPathContains
	predFileContains
	predFileSuffix
	predImportContains
)

// predicate is one parsed condition. Evaluation is a pure function of
// the subject.
type predicate struct {
	kind predKind
	arg  string
	re   *regexp.Regexp // predNameRegex only
}

// subject is the evaluation input. Bundle-rule evaluation supplies only
// the path fields; unit-scoped predicates then evaluate false rather
// than erroring.
type subject struct {
	Kind    string
	Name    string
	Path    string
	Imports []string
	Code    string
}

// Condition grammar, one predicate per string:
//
//	kind == '<value>'
//	name starts with '<value>'
//	name contains '<value>'
//	name matches /<pattern>/        (case-insensitive)
//	path contains '<segment>'       (path-segment membership)
//	file contains '<value>'         (base name substring)
//	file ends with '<value>'
//	imports contain '<value>'
//
// Anything else parses to a never-matching predicate; the parse error is
// logged by the caller and evaluation proceeds.
var conditionShapes = []struct {
	kind predKind
	re   *regexp.Regexp
}{
	{predKindEquals, regexp.MustCompile(`^kind\s*==\s*'([^']*)'$`)},
	{predNamePrefix, regexp.MustCompile(`^name\s+starts\s+with\s+'([^']*)'$`)},
	{predNameContains, regexp.MustCompile(`^name\s+contains\s+'([^']*)'$`)},
	{predNameRegex, regexp.MustCompile(`^name\s+matches\s+/(.+)/$`)},
	{predPathContains, regexp.MustCompile(`^path\s+contains\s+'([^']*)'$`)},
	{predFileContains, regexp.MustCompile(`^file\s+contains\s+'([^']*)'$`)},
	{predFileSuffix, regexp.MustCompile(`^file\s+ends\s+with\s+'([^']*)'$`)},
	{predImportContains, regexp.MustCompile(`^imports?\s+contains?\s+'([^']*)'$`)},
}

// parseCondition parses one condition string. On failure it returns a
// never-matching predicate together with the error so the caller can log
// it; malformed conditions must not propagate errors into evaluation.
func parseCondition(cond string) (predicate, error) {
	trimmed := strings.TrimSpace(cond)
	for _, shape := range conditionShapes {
		m := shape.re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		p := predicate{kind: shape.kind, arg: m[1]}
		if shape.kind == predNameRegex {
			re, err := regexp.Compile("(?i)" + m[1])
			if err != nil {
				return predicate{kind: predInvalid}, fmt.Errorf("invalid regex in condition %q: %w", cond, err)
			}
			p.re = re
		}
		return p, nil
	}
	return predicate{kind: predInvalid}, fmt.Errorf("unrecognized condition %q", cond)
}

// eval evaluates the predicate against the subject. Invalid predicates
// are always false.
func (p predicate) eval(s *subject) bool {
	switch p.kind {
	case predKindEquals:
		return s.Kind == p.arg
	case predNamePrefix:
		return s.Name != "" && strings.HasPrefix(s.Name, p.arg)
	case predNameContains:
		return s.Name != "" && strings.Contains(strings.ToLower(s.Name), strings.ToLower(p.arg))
	case predNameRegex:
		return s.Name != "" && p.re.MatchString(s.Name)
	case predPathContains:
		return pathHasSegment(s.Path, p.arg)
	case predFileContains:
		return strings.Contains(strings.ToLower(path.Base(s.Path)), strings.ToLower(p.arg))
	case predFileSuffix:
		return strings.HasSuffix(path.Base(s.Path), p.arg)
	case predImportContains:
		for _, imp := range s.Imports {
			if strings.Contains(imp, p.arg) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// pathHasSegment reports whether any directory segment of the path
// equals the argument (case-insensitive).
func pathHasSegment(p, seg string) bool {
	if p == "" {
		return false
	}
	seg = strings.ToLower(seg)
	for _, part := range strings.Split(strings.ToLower(p), "/") {
		if part == seg {
			return true
		}
	}
	return false
}

// isDisjunctionException identifies the two historical rule shapes that
// evaluate their conditions as a disjunction instead of the default
// conjunction:
//
//  1. exactly two file-suffix conditions (the test-file rule matched
//     either of two suffixes; a file name cannot end with both), and
//  2. exactly two name-prefix conditions (the hook rule matched either
//     of two naming prefixes).
//
// The exception is structural, not config-driven: rule authors cannot
// opt in or out. It is an artifact of two specific legacy rules and is
// preserved for compatibility with existing rule documents.
func isDisjunctionException(preds []predicate) bool {
	if len(preds) != 2 {
		return false
	}
	if preds[0].kind == predFileSuffix && preds[1].kind == predFileSuffix {
		return true
	}
	if preds[0].kind == predNamePrefix && preds[1].kind == predNamePrefix {
		return true
	}
	return false
}

// matches evaluates one rule: all conditions (conjunction) by default,
// any condition for the fixed exception shapes.
func (r *compiledRule) matches(s *subject) bool {
	if len(r.preds) == 0 {
		return false
	}
	if r.disjunct {
		for _, p := range r.preds {
			if p.eval(s) {
				return true
			}
		}
		return false
	}
	for _, p := range r.preds {
		if !p.eval(s) {
			return false
		}
	}
	return true
}
