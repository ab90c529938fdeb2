package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sluicehq/sluice/internal/archive"
	"github.com/sluicehq/sluice/internal/registry"
)

func writeArchiveFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := archive.Open(path)
	require.NoError(t, err)
	defer store.Close()

	rec := registry.FlatRecord{
		SessionID: "s1",
		FlowID:    "checkout",
		FlowName:  "Checkout",
		Record: registry.PayloadRecord{
			ID:        "r1",
			Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Status:    registry.StatusInvalid,
			Errors:    []string{"amount must be positive"},
			Payload:   map[string]any{"amount": float64(-1)},
		},
	}
	require.NoError(t, store.Append(context.Background(), rec))
	return path
}

func TestExport_ToStdout(t *testing.T) {
	path := writeArchiveFixture(t)

	out, err := runCLI(t, "export", "--archive", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "checkout")
	assert.Contains(t, lines[1], "amount must be positive")
}

func TestExport_ToFile(t *testing.T) {
	path := writeArchiveFixture(t)
	outPath := filepath.Join(t.TempDir(), "export.csv")

	_, err := runCLI(t, "export", "--archive", path, "--out", outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "checkout")
}

func TestExport_Filtered(t *testing.T) {
	path := writeArchiveFixture(t)

	out, err := runCLI(t, "export", "--archive", path, "--flow", "refund")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 1, "header only when nothing matches")

	out, err = runCLI(t, "export", "--archive", path, "--flow", "checkout", "--status", "invalid")
	require.NoError(t, err)
	assert.Contains(t, out, "checkout")
}

func TestExport_MissingArchive(t *testing.T) {
	_, err := runCLI(t, "export", "--archive", filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
