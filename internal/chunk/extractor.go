package chunk

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// matcher pairs a header pattern with the unit kind it produces.
// Group 1 of every pattern captures the unit name.
type matcher struct {
	kind     UnitKind
	re       *regexp.Regexp
	sameLine bool // body brace must sit on the match's source line (arrow forms)
}

// Ordered matcher set: declaration, arrow assignment, method shorthand,
// exported-capitalized-name convention. Earlier matchers claim a span;
// later matchers skip spans already claimed.
var matchers = []matcher{
	{
		kind: KindFunction,
		re:   regexp.MustCompile(`(?m)^[ \t]*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(([^()]*)\)`),
	},
	{
		kind:     KindArrow,
		re:       regexp.MustCompile(`(?m)^[ \t]*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*(?::\s*[^=\n]+)?=\s*(?:async\s+)?(?:\(([^()]*)\)|[A-Za-z_$][\w$]*)\s*(?::\s*[^=>\n]+)?=>`),
		sameLine: true,
	},
	{
		kind: KindMethod,
		re:   regexp.MustCompile(`(?m)^[ \t]+(?:(?:public|private|protected|static|async|override)\s+)*([A-Za-z_$][\w$]*)\s*\(([^()]*)\)\s*(?::\s*[^{\n]+)?\{`),
	},
	{
		kind: KindComponent,
		re:   regexp.MustCompile(`(?m)^[ \t]*export\s+(?:default\s+)?(?:const\s+)?([A-Z][\w$]*)\s*=`),
	},
}

// methodKeywordStop filters method-shorthand matches that are really
// control-flow headers (`if (...) {`) or calls.
var methodKeywordStop = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "function": true, "do": true, "else": true,
	"try": true, "typeof": true, "new": true, "await": true,
}

// Extractor scans one file's text and emits ordered RawUnits.
type Extractor struct {
	minBody int
	logger  *slog.Logger
}

// NewExtractor creates an extractor with the default noise threshold.
func NewExtractor() *Extractor {
	return &Extractor{
		minBody: MinBodySize,
		logger:  slog.Default(),
	}
}

// Extract scans fileText and returns every matched unit in source order.
// It never fails: a match that cannot be resolved to a balanced body is
// skipped and logged, and the scan continues.
func (e *Extractor) Extract(fileText, filePath string) []RawUnit {
	if strings.TrimSpace(fileText) == "" {
		return nil
	}

	fileCtx := extractContext(fileText)

	var units []RawUnit
	claimed := make(map[int]bool) // match start offsets already extracted

	for _, m := range matchers {
		for _, loc := range m.re.FindAllStringSubmatchIndex(fileText, -1) {
			start := loc[0]
			if claimed[start] {
				continue
			}

			unit, ok := e.extractMatch(fileText, filePath, m, loc, fileCtx)
			if !ok {
				e.logger.Debug("match skipped",
					slog.String("file", filePath),
					slog.String("kind", string(m.kind)),
					slog.Int("offset", start))
				continue
			}

			claimed[start] = true
			units = append(units, unit)
		}
	}

	sortUnitsByPosition(units)
	return units
}

// extractMatch resolves one matcher hit into a RawUnit.
func (e *Extractor) extractMatch(src, filePath string, m matcher, loc []int, fileCtx Context) (RawUnit, bool) {
	name := src[loc[2]:loc[3]]
	if m.kind == KindMethod && methodKeywordStop[name] {
		return RawUnit{}, false
	}

	// Method-shorthand patterns consume the opening brace; back up so
	// the body scan starts on it.
	scanFrom := loc[1]
	if scanFrom > loc[0] && src[scanFrom-1] == '{' {
		scanFrom--
	}

	bodyStart, end, ok := scanBody(src, scanFrom, m.sameLine)
	if !ok {
		if !m.sameLine {
			return RawUnit{}, false
		}
		// Bodyless arrow form: remainder of the source line is the body.
		bodyStart = loc[1]
		end = restOfLine(src, loc[1])
	}

	if len(strings.TrimSpace(src[bodyStart:end])) < e.minBody {
		return RawUnit{}, false
	}

	code := src[loc[0]:end]

	sig := strings.TrimSpace(firstLine(src[loc[0]:loc[1]]))

	return RawUnit{
		Name:      name,
		Kind:      m.kind,
		FilePath:  filePath,
		StartLine: lineAt(src, loc[0]),
		EndLine:   lineAt(src, loc[0]) + strings.Count(code, "\n"),
		Code:      code,
		Signature: sig,
		Context:   fileCtx,
	}, true
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// sortUnitsByPosition orders units by start line, then name, so repeated
// extraction of unchanged content is byte-identical.
func sortUnitsByPosition(units []RawUnit) {
	sort.SliceStable(units, func(i, j int) bool {
		if units[i].StartLine != units[j].StartLine {
			return units[i].StartLine < units[j].StartLine
		}
		return units[i].Name < units[j].Name
	})
}
