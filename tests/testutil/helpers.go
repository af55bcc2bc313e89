// Package testutil provides shared test helpers used across integration
// and unit test packages.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tagmigrate/internal/types"
)

// RepoRoot returns the absolute path to the repository root by walking
// up from the current working directory. It fails the test if the
// working directory cannot be determined.
func RepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(dir, "..", ".."))
}

// RequireTool skips the test when an external binary is not installed.
func RequireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not installed", name)
	}
}

// Snapshot builds a release snapshot literal for tests.
func Snapshot(name string, timestamp int64, tags ...types.PackageTagState) types.ReleaseSnapshot {
	return types.ReleaseSnapshot{
		Release: types.ReleaseInfo{Name: name, Timestamp: timestamp},
		Tags:    tags,
	}
}
