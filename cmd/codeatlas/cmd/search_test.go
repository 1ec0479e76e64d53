package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCommandNoIndex(t *testing.T) {
	setupProject(t)

	_, err := runCLI(t, "search", "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}

func TestSearchCommandNoQuery(t *testing.T) {
	setupProject(t)

	_, err := runCLI(t, "search")
	assert.Error(t, err)
}

func TestSearchCommand(t *testing.T) {
	setupProject(t)
	indexProject(t)

	out, err := runCLI(t, "search", "validate email address")
	require.NoError(t, err)
	assert.Contains(t, out, "validateEmail")
	assert.Contains(t, out, "src/utils/validate.ts")
}

func TestSearchCommandKeyword(t *testing.T) {
	setupProject(t)
	indexProject(t)

	out, err := runCLI(t, "search", "validateEmail", "--keyword")
	require.NoError(t, err)
	assert.Contains(t, out, "validateEmail")
}

func TestSearchCommandJSON(t *testing.T) {
	setupProject(t)
	indexProject(t)

	out, err := runCLI(t, "search", "user profile", "--format", "json")
	require.NoError(t, err)

	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.NotEmpty(t, results)
	assert.NotEmpty(t, results[0]["identity"])
	assert.NotEmpty(t, results[0]["file_path"])
}

func TestSearchCommandLimit(t *testing.T) {
	setupProject(t)
	indexProject(t)

	out, err := runCLI(t, "search", "function", "--limit", "1", "--format", "json")
	require.NoError(t, err)

	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.LessOrEqual(t, len(results), 1)
}

func TestSearchCommandUnknownLabel(t *testing.T) {
	setupProject(t)
	indexProject(t)

	out, err := runCLI(t, "search", "--purpose", "No Such Purpose")
	require.NoError(t, err)
	assert.Contains(t, out, "No results")
}
