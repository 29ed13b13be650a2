package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

const ledgerSchemaSQL = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id            TEXT PRIMARY KEY,
	day           TEXT NOT NULL,
	status        TEXT NOT NULL,
	items         INTEGER NOT NULL DEFAULT 0,
	new_items     INTEGER NOT NULL DEFAULT 0,
	chunks        INTEGER NOT NULL DEFAULT 0,
	cached_chunks INTEGER NOT NULL DEFAULT 0,
	overall       INTEGER NOT NULL DEFAULT 0,
	notified      INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started ON pipeline_runs(started_at);
`

const runsTable = "pipeline_runs"

var runColumns = []string{
	"id", "day", "status", "items", "new_items", "chunks", "cached_chunks",
	"overall", "notified", "error", "started_at", "finished_at",
}

// SQLiteLedger persists pipeline run records into a local SQLite file.
type SQLiteLedger struct {
	db *sql.DB
}

var _ ports.RunLedger = (*SQLiteLedger)(nil)

// OpenSQLiteLedger opens (or creates) the database at path and applies the schema.
func OpenSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if _, err := db.Exec(ledgerSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// Close closes the underlying database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// Record upserts one run.
func (l *SQLiteLedger) Record(ctx context.Context, record domain.RunRecord) error {
	if record.ID == "" {
		return fmt.Errorf("ledger: record without id")
	}

	query, args, err := sq.Insert(runsTable).
		Columns(runColumns...).
		Values(
			record.ID,
			record.Day,
			string(record.Status),
			record.Items,
			record.NewItems,
			record.Chunks,
			record.CachedChunks,
			boolToInt(record.Overall),
			boolToInt(record.Notified),
			record.Error,
			formatTime(record.StartedAt),
			formatTime(record.FinishedAt),
		).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			items = excluded.items,
			new_items = excluded.new_items,
			chunks = excluded.chunks,
			cached_chunks = excluded.cached_chunks,
			overall = excluded.overall,
			notified = excluded.notified,
			error = excluded.error,
			finished_at = excluded.finished_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run %s: %w", record.ID, err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (l *SQLiteLedger) Recent(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	builder := sq.Select(runColumns...).
		From(runsTable).
		OrderBy("started_at DESC", "id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []domain.RunRecord
	for rows.Next() {
		var (
			rec                 domain.RunRecord
			status              string
			overall, notified   int
			startedAt, finished string
		)
		if err := rows.Scan(
			&rec.ID, &rec.Day, &status, &rec.Items, &rec.NewItems, &rec.Chunks, &rec.CachedChunks,
			&overall, &notified, &rec.Error, &startedAt, &finished,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Status = domain.RunStatus(status)
		rec.Overall = overall != 0
		rec.Notified = notified != 0
		if rec.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("run %s started_at: %w", rec.ID, err)
		}
		if rec.FinishedAt, err = parseTime(finished); err != nil {
			return nil, fmt.Errorf("run %s finished_at: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return records, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}
