package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundlesSuggestCommand(t *testing.T) {
	setupProject(t)

	out, err := runCLI(t, "bundles", "suggest", "src/auth/login.ts")
	require.NoError(t, err)
	assert.Contains(t, out, "authentication")
}

func TestBundlesSuggestCommandNoMatch(t *testing.T) {
	setupProject(t)

	out, err := runCLI(t, "bundles", "suggest", "src/utils/math.ts")
	require.NoError(t, err)
	assert.Contains(t, out, "No bundle suggestions")
}

func TestBundlesListCommandNoIndex(t *testing.T) {
	setupProject(t)

	_, err := runCLI(t, "bundles", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}

func TestBundlesListCommand(t *testing.T) {
	setupProject(t)
	indexProject(t)

	_, err := runCLI(t, "bundles", "list")
	assert.NoError(t, err)
}

func TestBundlesResolveCommandUnknownLabel(t *testing.T) {
	setupProject(t)
	indexProject(t)

	out, err := runCLI(t, "bundles", "resolve", "nonexistent-bundle")
	require.NoError(t, err)
	assert.Contains(t, out, "matched no files")
}

func TestBundlesResolveCommandJSON(t *testing.T) {
	setupProject(t)
	indexProject(t)

	out, err := runCLI(t, "bundles", "resolve", "nonexistent-bundle", "--format", "json")
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "nonexistent-bundle", payload["label"])
}
