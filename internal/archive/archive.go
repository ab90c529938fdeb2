// Package archive persists an audit log of payload verdicts to SQLite and
// exports it as CSV.
//
// The archive is a write-behind sink: the service appends one row per
// recorded payload, and the export command reads them back. Nothing in the
// validation path ever reads the archive, so losing it cannot affect
// verdicts or session state.
package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sluicehq/sluice/internal/registry"
)

//go:embed schema.sql
var schemaSQL string

// Store is the SQLite-backed archive.
type Store struct {
	db *sql.DB
}

// Open creates or opens the archive database at path. Use ":memory:" for a
// process-lifetime archive.
//
// The database is configured with WAL mode, NORMAL synchronous mode, and a
// 5-second busy timeout. SQLite allows one writer at a time, so the
// connection pool is capped at a single connection.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect archive: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("archive pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append inserts one record. Duplicate record ids are silently ignored so
// a replayed append stays idempotent. Implements service.RecordSink.
func (s *Store) Append(ctx context.Context, rec registry.FlatRecord) error {
	errsJSON, err := json.Marshal(sentences(rec.Record.Errors))
	if err != nil {
		return fmt.Errorf("archive append: %w", err)
	}
	payloadJSON, err := json.Marshal(rec.Record.Payload)
	if err != nil {
		return fmt.Errorf("archive append: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records
		(id, session_id, flow_id, flow_name, recorded_at, status, errors, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.Record.ID,
		rec.SessionID,
		rec.FlowID,
		rec.FlowName,
		rec.Record.Timestamp.UTC().Format(time.RFC3339Nano),
		string(rec.Record.Status),
		string(errsJSON),
		string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("archive append: %w", err)
	}
	return nil
}

// Row is one archived record as read back for export.
type Row struct {
	RecordID   string
	SessionID  string
	FlowID     string
	FlowName   string
	RecordedAt string
	Status     string
	Errors     []string
	Payload    json.RawMessage
}

// List returns archived records matching f, ordered by record id. Record
// ids are UUIDv7, so this is creation order.
func (s *Store) List(ctx context.Context, f Filter) ([]Row, error) {
	where, params := f.compile()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, flow_id, flow_name, recorded_at, status, errors, payload
		FROM records`+where+`
		ORDER BY id COLLATE BINARY
	`, params...)
	if err != nil {
		return nil, fmt.Errorf("archive list: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var errsJSON, payloadJSON string
		if err := rows.Scan(&r.RecordID, &r.SessionID, &r.FlowID, &r.FlowName,
			&r.RecordedAt, &r.Status, &errsJSON, &payloadJSON); err != nil {
			return nil, fmt.Errorf("archive list: %w", err)
		}
		if err := json.Unmarshal([]byte(errsJSON), &r.Errors); err != nil {
			return nil, fmt.Errorf("archive list: decode errors: %w", err)
		}
		r.Payload = json.RawMessage(payloadJSON)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive list: %w", err)
	}
	return out, nil
}

// sentences normalizes a nil error slice to empty so the stored JSON is
// always an array.
func sentences(errs []string) []string {
	if errs == nil {
		return []string{}
	}
	return errs
}
