package commands

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunBenchSucceedsWithValidConfig(t *testing.T) {
	t.Parallel()

	path := writeTestConfig(t, "root:\n  kind: array\n  capacity: 4MiB\n")

	err := runBench(path, 50, 2, 64, "")
	require.NoError(t, err)
}

func TestRunBenchWritesHTMLChart(t *testing.T) {
	t.Parallel()

	path := writeTestConfig(t, "root:\n  kind: array\n  capacity: 4MiB\n")
	chartPath := filepath.Join(t.TempDir(), "report.html")

	err := runBench(path, 20, 2, 32, chartPath)
	require.NoError(t, err)
	require.FileExists(t, chartPath)
}

func TestNewBenchCommandRejectsNonPositiveFlags(t *testing.T) {
	t.Parallel()

	path := writeTestConfig(t, "root:\n  kind: array\n  capacity: 1MiB\n")

	cmd := NewBenchCommand()
	cmd.SetArgs([]string{path, "--entries", "0"})

	err := cmd.Execute()
	require.ErrorIs(t, err, ErrNonPositiveFlag)
}
