package rules

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeRulesFile(t *testing.T, path string, doc *Document) {
	t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLoaderMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")

	l := NewLoader(path, testLogger())
	defer l.Close()

	cfg := l.Active()
	require.NotNil(t, cfg)
	assert.Equal(t, "Utility", cfg.Fallback)
}

func TestLoaderReadsValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := DefaultDocument()
	doc.Purpose.Fallback = "Helper"
	doc.Version = 7
	writeRulesFile(t, path, doc)

	l := NewLoader(path, testLogger())
	defer l.Close()

	cfg := l.Active()
	assert.Equal(t, "Helper", cfg.Fallback)
	assert.Equal(t, 7, cfg.Version)
}

func TestLoaderInvalidFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("purpose: [not, a, document"), 0644))

	l := NewLoader(path, testLogger())
	defer l.Close()

	cfg := l.Active()
	require.NotNil(t, cfg)
	assert.Equal(t, "Utility", cfg.Fallback)
}

func TestReloadRejectsInvalidInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := DefaultDocument()
	doc.Purpose.Fallback = "Helper"
	writeRulesFile(t, path, doc)

	l := NewLoader(path, testLogger())
	defer l.Close()
	require.Equal(t, "Helper", l.Active().Fallback)

	// Corrupt the file: the reload fails and the active snapshot is
	// untouched.
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0644))
	assert.Error(t, l.Reload())
	assert.Equal(t, "Helper", l.Active().Fallback)
}

func TestReloadSwapsValidInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	writeRulesFile(t, path, DefaultDocument())

	l := NewLoader(path, testLogger())
	defer l.Close()

	doc := DefaultDocument()
	doc.Purpose.Fallback = "Updated"
	writeRulesFile(t, path, doc)

	require.NoError(t, l.Reload())
	assert.Equal(t, "Updated", l.Active().Fallback)
}

func TestUpdatePersistsAndActivates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	l := NewLoader(path, testLogger())
	defer l.Close()

	doc := DefaultDocument()
	doc.Purpose.Fallback = "Persisted"
	doc.Version = 2
	require.NoError(t, l.Update(doc))

	assert.Equal(t, "Persisted", l.Active().Fallback)
	assert.Equal(t, 2, l.Active().Version)

	// A fresh loader reads the persisted document back.
	l2 := NewLoader(path, testLogger())
	defer l2.Close()
	assert.Equal(t, "Persisted", l2.Active().Fallback)
}

func TestUpdateRejectsInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	l := NewLoader(path, testLogger())
	defer l.Close()
	before := l.Active()

	doc := DefaultDocument()
	doc.Purpose.Rules = nil
	assert.Error(t, l.Update(doc))

	// Snapshot unchanged, nothing persisted.
	assert.Same(t, before, l.Active())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWatchReloadsOnModification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	writeRulesFile(t, path, DefaultDocument())

	l := NewLoader(path, testLogger())
	defer l.Close()
	require.NoError(t, l.Watch())

	doc := DefaultDocument()
	doc.Purpose.Fallback = "Watched"
	writeRulesFile(t, path, doc)

	require.Eventually(t, func() bool {
		return l.Active().Fallback == "Watched"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	l := NewLoader(path, testLogger())
	require.NoError(t, l.Watch())

	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close())
}
