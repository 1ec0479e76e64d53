package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeUserConfig(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(GetUserConfigDir(), 0o755))
	require.NoError(t, os.WriteFile(GetUserConfigPath(), []byte(content), 0o644))
}

func TestBackupUserConfigNoConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := BackupUserConfig()
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupUserConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	writeUserConfig(t, "version: 1\n")

	backupPath, err := BackupUserConfig()
	require.NoError(t, err)
	require.NotEmpty(t, backupPath)

	data, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestBackupPruning(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	writeUserConfig(t, "version: 1\n")

	// Seed more backups than the limit with distinct mtimes.
	configPath := GetUserConfigPath()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < MaxBackups+2; i++ {
		p := fmt.Sprintf("%s%s.2026010%d-000000", configPath, backupSuffix, i)
		require.NoError(t, os.WriteFile(p, []byte("old"), 0o644))
		mtime := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(p, mtime, mtime))
	}

	_, err := BackupUserConfig()
	require.NoError(t, err)

	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	assert.Len(t, backups, MaxBackups)
}

func TestRestoreUserConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	writeUserConfig(t, "version: 1\n")

	backupPath, err := BackupUserConfig()
	require.NoError(t, err)

	writeUserConfig(t, "version: 2\n")
	require.NoError(t, RestoreUserConfig(backupPath))

	data, err := os.ReadFile(GetUserConfigPath())
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestRestoreUserConfigMissingBackup(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	err := RestoreUserConfig(filepath.Join(t.TempDir(), "nope.bak"))
	assert.Error(t, err)
}
