package rules

import "strings"

// ComplexityLevel is a coarse three-way rating of a unit's body.
type ComplexityLevel string

const (
	ComplexityLow    ComplexityLevel = "low"
	ComplexityMedium ComplexityLevel = "medium"
	ComplexityHigh   ComplexityLevel = "high"
)

// Complexity pairs the raw score with its derived level.
type Complexity struct {
	Score int             `json:"score"`
	Level ComplexityLevel `json:"level"`
}

// Thresholds on the raw score. A score counts lines, branch keywords,
// and peak brace nesting, each weighted so a short straight-line helper
// lands well under mediumThreshold.
const (
	mediumThreshold = 10
	highThreshold   = 25
)

var branchKeywords = []string{
	"if ", "if(", "else", "for ", "for(", "while ", "while(",
	"switch ", "switch(", "case ", "catch ", "catch(", "?",
	"&&", "||",
}

// ScoreComplexity rates a unit's code text. Pure: the same text always
// yields the same rating.
func ScoreComplexity(code string) Complexity {
	score := scoreComplexity(code)
	level := ComplexityLow
	switch {
	case score >= highThreshold:
		level = ComplexityHigh
	case score >= mediumThreshold:
		level = ComplexityMedium
	}
	return Complexity{Score: score, Level: level}
}

func scoreComplexity(code string) int {
	lines := strings.Count(code, "\n") + 1
	score := lines / 5

	for _, kw := range branchKeywords {
		score += strings.Count(code, kw)
	}

	score += peakNesting(code) * 2
	return score
}

// peakNesting reports the deepest brace nesting, ignoring braces inside
// string literals.
func peakNesting(code string) int {
	depth, peak := 0, 0
	var quote byte
	for i := 0; i < len(code); i++ {
		c := code[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '{':
			depth++
			if depth > peak {
				peak = depth
			}
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return peak
}
