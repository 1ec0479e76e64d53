package chunk

import "strings"

// scanBody locates the balanced body starting at the first opening brace
// at or after `from`. The search for the brace stops at the end of the
// source line containing `from`: a construct whose header has no brace on
// its own line is the bodyless arrow form and is handled by the caller.
//
// Delimiters inside string and template literals do not affect the
// nesting counter. Quote state tracks the current quote character and
// honors backslash escapes.
//
// Returns the body's opening brace offset, the exclusive end offset, and
// true; or zeros and false when no opening brace is found or the braces
// never balance.
func scanBody(src string, from int, sameLineOnly bool) (int, int, bool) {
	open := findOpenBrace(src, from, sameLineOnly)
	if open < 0 {
		return 0, 0, false
	}

	depth := 0
	var quote byte // 0 when outside any string literal
	escaped := false

	limit := open + MaxUnitBytes
	if limit > len(src) {
		limit = len(src)
	}

	for i := open; i < limit; i++ {
		c := src[i]

		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}

		switch c {
		case '\'', '"', '`':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return open, i + 1, true
			}
		}
	}

	return 0, 0, false
}

// braceSearchWindow bounds how far past the match a body brace may sit.
// Headers longer than this are not something the matchers produce.
const braceSearchWindow = 300

// findOpenBrace returns the offset of the first '{' following `from`, or
// -1 when the construct is brace-less. With sameLineOnly (arrow forms)
// the search stops at the end of the source line; otherwise it stops at
// a statement terminator or the search window.
func findOpenBrace(src string, from int, sameLineOnly bool) int {
	limit := from + braceSearchWindow
	if limit > len(src) {
		limit = len(src)
	}
	for i := from; i < limit; i++ {
		switch src[i] {
		case '{':
			return i
		case '\n':
			if sameLineOnly {
				return -1
			}
		case ';':
			return -1
		}
	}
	return -1
}

// restOfLine returns the span from `from` to the end of the source line,
// used as the body of bodyless arrow forms.
func restOfLine(src string, from int) int {
	if idx := strings.IndexByte(src[from:], '\n'); idx >= 0 {
		return from + idx
	}
	return len(src)
}

// lineAt returns the 1-indexed line number of the byte offset.
func lineAt(src string, offset int) int {
	if offset > len(src) {
		offset = len(src)
	}
	return 1 + strings.Count(src[:offset], "\n")
}
