package scanner

import (
	"bufio"
	"os"
	"path"
	"regexp"
	"strings"
)

// ignoreRule is one parsed gitignore line.
type ignoreRule struct {
	re      *regexp.Regexp
	negated bool
	dirOnly bool
}

// ignoreMatcher matches paths against the rules of one .gitignore file.
// Paths are matched relative to the directory holding that file, with
// forward slashes. Later rules win, per gitignore semantics.
type ignoreMatcher struct {
	rules []ignoreRule
}

// parseIgnoreFile reads a .gitignore file. A missing file yields an
// empty matcher.
func parseIgnoreFile(filePath string) (*ignoreMatcher, error) {
	m := &ignoreMatcher{}
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m.addPattern(sc.Text())
	}
	return m, sc.Err()
}

func (m *ignoreMatcher) addPattern(line string) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	rule := ignoreRule{}
	if strings.HasPrefix(line, "!") {
		rule.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		rule.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}

	// A pattern with a slash is anchored to the gitignore's directory;
	// otherwise it matches at any depth.
	anchored := strings.Contains(line, "/")
	line = strings.TrimPrefix(line, "/")

	re, err := compileIgnorePattern(line, anchored)
	if err != nil {
		return // malformed patterns are skipped, as git does
	}
	rule.re = re
	m.rules = append(m.rules, rule)
}

// Match reports whether relPath (slash-separated, relative to the
// gitignore's directory) is ignored. A path inside an ignored directory
// is ignored too.
func (m *ignoreMatcher) Match(relPath string, isDir bool) bool {
	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir && !m.parentMatches(relPath, r) {
			continue
		}
		if r.re.MatchString(relPath) || m.parentMatches(relPath, r) {
			ignored = !r.negated
		}
	}
	return ignored
}

// parentMatches reports whether any ancestor directory of relPath
// matches the rule, which ignores everything beneath it.
func (m *ignoreMatcher) parentMatches(relPath string, r ignoreRule) bool {
	dir := path.Dir(relPath)
	for dir != "." && dir != "/" {
		if r.re.MatchString(dir) {
			return true
		}
		dir = path.Dir(dir)
	}
	return false
}

// compileIgnorePattern converts a gitignore glob to a regexp. `*` and
// `?` do not cross slashes; `**` does.
func compileIgnorePattern(pattern string, anchored bool) (*regexp.Regexp, error) {
	var b strings.Builder
	if anchored {
		b.WriteString(`^`)
	} else {
		b.WriteString(`(^|/)`)
	}

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch {
		case strings.HasPrefix(pattern[i:], "**/"):
			b.WriteString(`(?:[^/]+/)*`)
			i += 3
		case strings.HasPrefix(pattern[i:], "**"):
			b.WriteString(`.*`)
			i += 2
		case c == '*':
			b.WriteString(`[^/]*`)
			i++
		case c == '?':
			b.WriteString(`[^/]`)
			i++
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	b.WriteString(`$`)
	return regexp.Compile(b.String())
}
