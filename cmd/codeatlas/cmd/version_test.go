package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas/codeatlas/pkg/version"
)

func TestVersionCommand(t *testing.T) {
	setupProject(t)

	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "codeatlas")
	assert.Contains(t, out, version.Version)
}

func TestVersionCommandJSON(t *testing.T) {
	setupProject(t)

	out, err := runCLI(t, "version", "--json")
	require.NoError(t, err)

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}
