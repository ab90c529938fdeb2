package archive

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// csvHeader is the column layout of an export. One row per record; error
// sentences are joined with "; " into a single cell.
var csvHeader = []string{
	"record_id", "session_id", "flow_id", "flow_name",
	"recorded_at", "status", "errors", "payload",
}

// ExportCSV writes the archived records matching f to w as CSV, header
// first.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer, f Filter) error {
	rows, err := s.List(ctx, f)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("archive export: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.RecordID,
			r.SessionID,
			r.FlowID,
			r.FlowName,
			r.RecordedAt,
			r.Status,
			strings.Join(r.Errors, "; "),
			string(r.Payload),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("archive export: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("archive export: %w", err)
	}
	return nil
}
