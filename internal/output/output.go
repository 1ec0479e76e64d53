// Package output provides styled CLI output with automatic TTY and
// NO_COLOR detection.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette, 256-color codes.
const (
	colorTeal   = "43"  // primary accent
	colorGray   = "245" // secondary text, paths
	colorRed    = "196" // errors
	colorYellow = "220" // warnings
	colorWhite  = "255" // headers
)

// Styles holds the lipgloss styles used by the Writer.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Accent  lipgloss.Style
}

// DefaultStyles returns the colored style set.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorWhite)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(colorTeal)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Accent:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorTeal)),
	}
}

// PlainStyles returns an unstyled set for non-TTY output.
func PlainStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
		Accent:  lipgloss.NewStyle(),
	}
}

// Writer provides formatted output for CLI commands. Write errors are
// ignored; console output is best effort.
type Writer struct {
	out    io.Writer
	styles Styles
	color  bool
}

// Option configures a Writer.
type Option func(*Writer)

// WithColor forces color on or off, overriding TTY detection.
func WithColor(enabled bool) Option {
	return func(w *Writer) { w.color = enabled }
}

// New creates a Writer. Color is enabled when out is a terminal and
// NO_COLOR is unset.
func New(out io.Writer, opts ...Option) *Writer {
	w := &Writer{
		out:   out,
		color: isTerminal(out) && !noColor(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.color {
		w.styles = DefaultStyles()
	} else {
		w.styles = PlainStyles()
	}
	return w
}

// Styles returns the active style set.
func (w *Writer) Styles() Styles { return w.styles }

// Color reports whether styled output is active.
func (w *Writer) Color() bool { return w.color }

// Header prints a bold section header.
func (w *Writer) Header(msg string) {
	_, _ = fmt.Fprintf(w.out, "%s\n", w.styles.Header.Render(msg))
}

// Println prints an unstyled line.
func (w *Writer) Println(msg string) {
	_, _ = fmt.Fprintln(w.out, msg)
}

// Printf prints unstyled formatted text.
func (w *Writer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format, args...)
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	_, _ = fmt.Fprintf(w.out, "%s %s\n", w.styles.Success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	_, _ = fmt.Fprintf(w.out, "%s %s\n", w.styles.Warning.Render("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	_, _ = fmt.Fprintf(w.out, "%s %s\n", w.styles.Error.Render("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Dim prints secondary text.
func (w *Writer) Dim(msg string) {
	_, _ = fmt.Fprintf(w.out, "%s\n", w.styles.Dim.Render(msg))
}

// Field prints an aligned "label: value" line.
func (w *Writer) Field(label, value string) {
	_, _ = fmt.Fprintf(w.out, "  %s %s\n", w.styles.Dim.Render(label+":"), value)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Progress prints an in-place progress bar. Call with current == total
// to finish the line.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}
	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, 30)
	_, _ = fmt.Fprintf(w.out, "\r[%s] %3.0f%% %s", w.styles.Accent.Render(bar), pct, msg)
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}
	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func noColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}
