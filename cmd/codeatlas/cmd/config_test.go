package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas/codeatlas/internal/config"
)

func TestConfigShowCommand(t *testing.T) {
	setupProject(t)

	out, err := runCLI(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "embeddings:")
	assert.Contains(t, out, "provider: hash")
	assert.Contains(t, out, "transport: stdio")
}

func TestConfigPathCommand(t *testing.T) {
	setupProject(t)

	out, err := runCLI(t, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "user:")
	assert.Contains(t, out, ".codeatlas.yaml")
}

func TestConfigInitCommand(t *testing.T) {
	root := setupProject(t)

	out, err := runCLI(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")
	assert.FileExists(t, filepath.Join(root, ".codeatlas.yaml"))

	// A second init refuses to clobber without --force.
	_, err = runCLI(t, "config", "init")
	require.Error(t, err)

	_, err = runCLI(t, "config", "init", "--force")
	assert.NoError(t, err)
}

func TestConfigBackupAndRestoreCommands(t *testing.T) {
	setupProject(t)

	// Seed a user config to back up.
	userPath := config.GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o755))
	require.NoError(t, os.WriteFile(userPath, []byte("version: 1\n"), 0o644))

	out, err := runCLI(t, "config", "backup")
	require.NoError(t, err)
	assert.Contains(t, out, "backed up")

	out, err = runCLI(t, "config", "backups")
	require.NoError(t, err)
	backups, err := config.ListUserConfigBackups()
	require.NoError(t, err)
	require.NotEmpty(t, backups)
	assert.Contains(t, out, filepath.Base(backups[0]))

	// Mutate the live config, then restore the backup over it.
	require.NoError(t, os.WriteFile(userPath, []byte("version: 2\n"), 0o644))
	_, err = runCLI(t, "config", "restore", backups[0])
	require.NoError(t, err)

	data, err := os.ReadFile(userPath)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestConfigBackupCommandNoUserConfig(t *testing.T) {
	setupProject(t)

	_, err := runCLI(t, "config", "backup")
	assert.Error(t, err)
}

func TestConfigRestoreCommandMissingBackup(t *testing.T) {
	setupProject(t)

	_, err := runCLI(t, "config", "restore", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
