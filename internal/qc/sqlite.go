// Package qc holds the sinks for quality-control events raised while
// resolving and reconciling sources.
package qc

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/mgijax/srcload/internal/source"
)

// SQLiteReporter writes QC events to a SQLite report database. Every row is
// tagged with the run ID so several loads can share one file.
type SQLiteReporter struct {
	db    *sql.DB
	runID string
}

var _ source.Reporter = (*SQLiteReporter)(nil)

// NewSQLite opens the report database at dsn and configures WAL mode. A new
// run ID is generated for the reporter.
func NewSQLite(dsn string) (*SQLiteReporter, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "qc: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "qc: exec %s", pragma)
		}
	}
	return &SQLiteReporter{db: db, runID: uuid.New().String()}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS qc_attr_discrepancy (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         TEXT NOT NULL,
	sequence_key   INTEGER NOT NULL,
	source_key     INTEGER NOT NULL,
	attribute      TEXT NOT NULL,
	existing_key   INTEGER NOT NULL,
	incoming_key   INTEGER NOT NULL,
	incoming_value TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS qc_name_conflict (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	sequence_key INTEGER NOT NULL,
	clone_ids    TEXT NOT NULL,
	names        TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS qc_changed_library (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	sequence_key INTEGER NOT NULL,
	old_name     TEXT,
	new_name     TEXT,
	method       TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_qc_attr_discrepancy_run ON qc_attr_discrepancy(run_id);
CREATE INDEX IF NOT EXISTS idx_qc_name_conflict_run ON qc_name_conflict(run_id);
CREATE INDEX IF NOT EXISTS idx_qc_changed_library_run ON qc_changed_library(run_id);
`

// Migrate creates the report tables.
func (r *SQLiteReporter) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "qc: migrate")
}

// Close closes the database.
func (r *SQLiteReporter) Close() error {
	return r.db.Close()
}

// RunID returns the identifier tagged on this reporter's rows.
func (r *SQLiteReporter) RunID() string {
	return r.runID
}

// ReportAttributeDiscrepancy implements source.Reporter.
func (r *SQLiteReporter) ReportAttributeDiscrepancy(ctx context.Context, e source.AttributeDiscrepancy) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO qc_attr_discrepancy
		 (run_id, sequence_key, source_key, attribute, existing_key, incoming_key, incoming_value, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID, e.SequenceKey, e.SourceKey, string(e.Attribute), e.ExistingKey, e.IncomingKey, e.IncomingValue, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "qc: insert attribute discrepancy for sequence %d", e.SequenceKey)
	}
	return checkRowsAffected(res, "attribute discrepancy")
}

// ReportNameConflict implements source.Reporter.
func (r *SQLiteReporter) ReportNameConflict(ctx context.Context, e source.NameConflict) error {
	cloneJSON, err := json.Marshal(e.CloneIDs)
	if err != nil {
		return eris.Wrap(err, "qc: marshal clone ids")
	}
	namesJSON, err := json.Marshal(e.Names)
	if err != nil {
		return eris.Wrap(err, "qc: marshal names")
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO qc_name_conflict (run_id, sequence_key, clone_ids, names, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.runID, e.SequenceKey, string(cloneJSON), string(namesJSON), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "qc: insert name conflict for sequence %d", e.SequenceKey)
	}
	return checkRowsAffected(res, "name conflict")
}

// ReportChangedLibrary implements source.Reporter.
func (r *SQLiteReporter) ReportChangedLibrary(ctx context.Context, e source.ChangedLibrary) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO qc_changed_library (run_id, sequence_key, old_name, new_name, method, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.runID, e.SequenceKey, nullString(e.OldName), nullString(e.NewName), e.Method.String(), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "qc: insert changed library for sequence %d", e.SequenceKey)
	}
	return checkRowsAffected(res, "changed library")
}

// Summary counts the rows of one run per report table.
type Summary struct {
	AttributeDiscrepancies int
	NameConflicts          int
	ChangedLibraries       int
}

// Total returns the number of events in the summary.
func (s Summary) Total() int {
	return s.AttributeDiscrepancies + s.NameConflicts + s.ChangedLibraries
}

// Summary returns the event counts recorded under this reporter's run ID.
func (r *SQLiteReporter) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"qc_attr_discrepancy", &s.AttributeDiscrepancies},
		{"qc_name_conflict", &s.NameConflicts},
		{"qc_changed_library", &s.ChangedLibraries},
	} {
		row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+q.table+` WHERE run_id = ?`, r.runID)
		if err := row.Scan(q.dst); err != nil {
			return Summary{}, eris.Wrapf(err, "qc: count %s", q.table)
		}
	}
	return s, nil
}

func checkRowsAffected(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "qc: rows affected")
	}
	if n == 0 {
		return eris.Errorf("qc: %s not recorded", entity)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
