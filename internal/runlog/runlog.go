// Package runlog keeps the ingestion run ledger: one SQLite row per
// ingestion run, recording what was ingested, from where, how many
// rows, and how the run ended.
package runlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Status is the lifecycle state of one ingestion run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one ledger entry.
type Run struct {
	ID         string
	Dataset    string
	Source     string
	Status     Status
	RowCount   int
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

const migration = `
CREATE TABLE IF NOT EXISTS ingestion_runs (
	id          TEXT PRIMARY KEY,
	dataset     TEXT NOT NULL,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	row_count   INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_ingestion_runs_dataset ON ingestion_runs(dataset);
CREATE INDEX IF NOT EXISTS idx_ingestion_runs_status ON ingestion_runs(status);
`

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Ledger) { ld.logger = l }
}

// Ledger records ingestion runs in a SQLite database.
type Ledger struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens the ledger database at path, configures WAL mode, and
// applies the schema.
func Open(path string, opts ...Option) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "runlog: exec %s", pragma)
		}
	}
	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "runlog: migrate")
	}

	ld := &Ledger{db: db, logger: zap.L()}
	for _, opt := range opts {
		opt(ld)
	}
	return ld, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Start records a new running ingestion.
func (l *Ledger) Start(ctx context.Context, dataset, source string) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Dataset:   dataset,
		Source:    source,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO ingestion_runs (id, dataset, source, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Dataset, run.Source, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: insert run")
	}

	l.logger.Info("ingestion run started",
		zap.String("run_id", run.ID),
		zap.String("dataset", dataset),
		zap.String("source", source))
	return run, nil
}

// Complete marks a run as completed with its final row count.
func (l *Ledger) Complete(ctx context.Context, runID string, rowCount int) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE ingestion_runs SET status = ?, row_count = ?, finished_at = ? WHERE id = ?`,
		string(StatusCompleted), rowCount, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

// Fail marks a run as failed, keeping the cause.
func (l *Ledger) Fail(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE ingestion_runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(StatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

// Get returns one run by id.
func (l *Ledger) Get(ctx context.Context, runID string) (*Run, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, dataset, source, status, row_count, error, started_at, finished_at
		 FROM ingestion_runs WHERE id = ?`, runID)
	return scanRun(row)
}

// Filter narrows List results.
type Filter struct {
	Dataset string
	Status  Status
	Limit   int
}

// List returns runs newest first.
func (l *Ledger) List(ctx context.Context, filter Filter) ([]Run, error) {
	query := `SELECT id, dataset, source, status, row_count, error, started_at, finished_at
	          FROM ingestion_runs WHERE 1=1`
	var args []any

	if filter.Dataset != "" {
		query += ` AND dataset = ?`
		args = append(args, filter.Dataset)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "runlog: list runs iterate")
}

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "runlog: rows affected")
	}
	if n == 0 {
		return eris.Errorf("runlog: run not found: %s", runID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var errMsg sql.NullString
	var finished sql.NullTime

	err := row.Scan(&r.ID, &r.Dataset, &r.Source, &r.Status, &r.RowCount, &errMsg, &r.StartedAt, &finished)
	if err == sql.ErrNoRows {
		return nil, eris.New("runlog: run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "runlog: scan run")
	}

	if errMsg.Valid {
		r.Error = errMsg.String
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}
