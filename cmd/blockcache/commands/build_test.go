package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestRunBuildSucceedsWithValidConfig(t *testing.T) {
	t.Parallel()

	path := writeTestConfig(t, "root:\n  kind: array\n  capacity: 1MiB\n")

	err := runBuild(path, 10)
	require.NoError(t, err)
}

func TestRunBuildFailsOnMissingConfig(t *testing.T) {
	t.Parallel()

	err := runBuild(filepath.Join(t.TempDir(), "missing.yaml"), 0)
	require.Error(t, err)
}

func TestNewBuildCommandRejectsNegativeSmokeEntries(t *testing.T) {
	t.Parallel()

	path := writeTestConfig(t, "root:\n  kind: array\n  capacity: 1MiB\n")

	cmd := NewBuildCommand()
	cmd.SetArgs([]string{path, "--smoke-entries", "-1"})

	err := cmd.Execute()
	require.ErrorIs(t, err, ErrSmokeEntriesNegative)
}
