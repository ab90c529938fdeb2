package archive

import (
	"context"
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sluicehq/sluice/internal/registry"
)

func testRecord(id string, status registry.Status, errs []string) registry.FlatRecord {
	return registry.FlatRecord{
		SessionID: "s1",
		FlowID:    "checkout",
		FlowName:  "Checkout",
		Record: registry.PayloadRecord{
			ID:        id,
			Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Status:    status,
			Errors:    errs,
			Payload:   map[string]any{"amount": 10.0},
		},
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, testRecord("r1", registry.StatusValid, nil)))
	require.NoError(t, s.Append(ctx, testRecord("r2", registry.StatusInvalid, []string{"amount must be positive"})))

	rows, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "r1", rows[0].RecordID)
	assert.Equal(t, "valid", rows[0].Status)
	assert.Empty(t, rows[0].Errors)
	assert.JSONEq(t, `{"amount": 10}`, string(rows[0].Payload))

	assert.Equal(t, "invalid", rows[1].Status)
	assert.Equal(t, []string{"amount must be positive"}, rows[1].Errors)
	assert.Equal(t, "2025-06-01T12:00:00Z", rows[1].RecordedAt)
}

func TestAppend_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord("r1", registry.StatusValid, nil)
	require.NoError(t, s.Append(ctx, rec))
	require.NoError(t, s.Append(ctx, rec))

	rows, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestList_Filtered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, testRecord("r1", registry.StatusValid, nil)))
	require.NoError(t, s.Append(ctx, testRecord("r2", registry.StatusInvalid, []string{"nope"})))
	other := testRecord("r3", registry.StatusValid, nil)
	other.SessionID = "s2"
	other.FlowID = "refund"
	require.NoError(t, s.Append(ctx, other))

	rows, err := s.List(ctx, Filter{Status: "invalid"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "r2", rows[0].RecordID)

	rows, err = s.List(ctx, Filter{SessionID: "s1", FlowID: "checkout", Status: "valid"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "r1", rows[0].RecordID)

	rows, err = s.List(ctx, Filter{FlowID: "ghost"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestExportCSV(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, testRecord("r1", registry.StatusInvalid, []string{"first", "second"})))

	var buf strings.Builder
	require.NoError(t, s.ExportCSV(ctx, &buf, Filter{}))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "r1", records[1][0])
	assert.Equal(t, "first; second", records[1][6])
}

func TestExportCSV_Empty(t *testing.T) {
	s := openTestStore(t)

	var buf strings.Builder
	require.NoError(t, s.ExportCSV(context.Background(), &buf, Filter{}))
	assert.Equal(t, strings.Join(csvHeader, ",")+"\n", buf.String())
}
