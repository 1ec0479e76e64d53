package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupProject creates a temp project with a few source files, makes it
// the working directory, and isolates config, home, and embedder state.
func setupProject(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("CODEATLAS_EMBEDDER", "hash")
	t.Chdir(root)

	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	writeSource(t, root, "package.json", `{"name": "sample"}`)
	writeSource(t, root, "src/api/users.ts", `
export async function getUserProfile(id: string) {
  const res = await fetch('/api/users/' + id);
  return res.json();
}
`)
	writeSource(t, root, "src/utils/validate.ts", `
export function validateEmail(email: string): boolean {
  return /^[^@]+@[^@]+$/.test(email);
}
`)
	writeSource(t, root, "src/auth/login.ts", `
export function login(user: string, password: string) {
  return post('/auth/login', { user, password });
}
`)
	return root
}

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// runCLI executes the root command with args and captures its output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// indexProject runs a full index so search and bundle tests have data.
func indexProject(t *testing.T) {
	t.Helper()
	out, err := runCLI(t, "index")
	require.NoError(t, err, "index output: %s", out)
}
