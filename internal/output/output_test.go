package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriterPlainByDefault(t *testing.T) {
	// A bytes.Buffer is not a terminal, so color must be off.
	buf := new(bytes.Buffer)
	w := New(buf)

	assert.False(t, w.Color())

	w.Success("indexed")
	assert.Equal(t, "✓ indexed\n", buf.String())
}

func TestWriterStatusIcons(t *testing.T) {
	buf := new(bytes.Buffer)
	w := New(buf)

	w.Warning("slow embedder")
	w.Error("index missing")
	w.Successf("%d files", 3)

	out := buf.String()
	assert.Contains(t, out, "! slow embedder")
	assert.Contains(t, out, "✗ index missing")
	assert.Contains(t, out, "✓ 3 files")
}

func TestWriterField(t *testing.T) {
	buf := new(bytes.Buffer)
	w := New(buf)

	w.Field("Backend", "linear")
	assert.Equal(t, "  Backend: linear\n", buf.String())
}

func TestWriterForcedColor(t *testing.T) {
	buf := new(bytes.Buffer)
	w := New(buf, WithColor(true))

	assert.True(t, w.Color())
}

func TestProgressRendersBar(t *testing.T) {
	buf := new(bytes.Buffer)
	w := New(buf)

	w.Progress(5, 10, "embedding")
	out := buf.String()
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "embedding")
	assert.True(t, strings.HasPrefix(out, "\r"))
	assert.False(t, strings.HasSuffix(out, "\n"))

	w.Progress(10, 10, "embedding")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestProgressZeroTotalNoOutput(t *testing.T) {
	buf := new(bytes.Buffer)
	w := New(buf)

	w.Progress(0, 0, "scanning")
	assert.Empty(t, buf.String())
}

func TestRenderProgressBarBounds(t *testing.T) {
	full := renderProgressBar(10, 10, 8)
	assert.Equal(t, strings.Repeat("█", 8), full)

	empty := renderProgressBar(0, 10, 8)
	assert.Equal(t, strings.Repeat("░", 8), empty)

	over := renderProgressBar(20, 10, 8)
	assert.Equal(t, strings.Repeat("█", 8), over)
}
