package chunk

import "regexp"

// Context matchers run over the whole file, independent of the unit
// matchers.
var (
	importRe  = regexp.MustCompile(`(?m)^\s*import\s+(?:type\s+)?(?:[^'"\n]*?from\s+)?['"]([^'"]+)['"]`)
	requireRe = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	typeRe    = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:declare\s+)?(?:abstract\s+)?(?:type|interface|class|enum)\s+([A-Za-z_$][\w$]*)`)
	callRe    = regexp.MustCompile(`([A-Za-z_$][\w$]*)\s*\(`)
)

// callStopList removes language keywords and ubiquitous builtins from
// the called-name set; they carry no classification signal.
var callStopList = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "function": true, "typeof": true, "new": true,
	"await": true, "async": true, "constructor": true, "super": true,
	"require": true, "import": true, "export": true, "do": true,
	"else": true, "try": true, "throw": true, "delete": true, "void": true,
	"in": true, "of": true, "instanceof": true, "yield": true,
}

// extractContext builds the shared file-level context: ordered imports,
// declared type names, and deduplicated call-site names.
func extractContext(src string) Context {
	var ctx Context

	for _, m := range importRe.FindAllStringSubmatch(src, -1) {
		ctx.Imports = append(ctx.Imports, m[1])
	}
	for _, m := range requireRe.FindAllStringSubmatch(src, -1) {
		ctx.Imports = append(ctx.Imports, m[1])
	}

	seenTypes := make(map[string]bool)
	for _, m := range typeRe.FindAllStringSubmatch(src, -1) {
		if !seenTypes[m[1]] {
			seenTypes[m[1]] = true
			ctx.Types = append(ctx.Types, m[1])
		}
	}

	seenCalls := make(map[string]bool)
	for _, m := range callRe.FindAllStringSubmatch(src, -1) {
		name := m[1]
		if callStopList[name] || seenCalls[name] {
			continue
		}
		seenCalls[name] = true
		ctx.Calls = append(ctx.Calls, name)
	}

	return ctx
}
