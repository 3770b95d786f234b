package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/getherald/herald/internal/model"

	_ "modernc.org/sqlite"
)

// OpenDB opens the herald sqlite database shared by the job and secret
// stores. A single connection serializes writers and keeps :memory:
// databases on one connection.
func OpenDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}
	return db, nil
}

// SQLite backs a Registry with the jobs table. Records survive process
// restarts, though in-flight jobs are not resumed.
type SQLite struct {
	db *sql.DB
}

// NewSQLite ensures the jobs table exists on db.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	_, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			transform TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('running','completed','failed')),
			progress INTEGER NOT NULL CHECK (progress BETWEEN 0 AND 100),
			message TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			finished_at INTEGER DEFAULT NULL
		)`,
	)
	if err != nil {
		return nil, fmt.Errorf("creating jobs table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Put(ctx context.Context, job model.Job) error {
	var finishedAt sql.NullInt64
	if !job.FinishedAt.IsZero() {
		finishedAt = sql.NullInt64{Int64: job.FinishedAt.Unix(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, tenant_id, transform, status, progress, message, created_at, finished_at)
		 VALUES (?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			progress=excluded.progress,
			message=excluded.message,
			finished_at=excluded.finished_at`,
		job.ID, job.TenantID, job.Transform, string(job.Status),
		job.Progress, job.Message, job.CreatedAt.Unix(), finishedAt,
	)
	if err != nil {
		return fmt.Errorf("executing sql upsert failed: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id string) (model.Job, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, transform, status, progress, message, created_at, finished_at
		 FROM jobs WHERE id=?`, id,
	)

	var job model.Job
	var status string
	var createdAt int64
	var finishedAt sql.NullInt64
	err := row.Scan(&job.TenantID, &job.Transform, &status, &job.Progress, &job.Message, &createdAt, &finishedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.Job{}, false, nil
	case err != nil:
		return model.Job{}, false, fmt.Errorf("executing sql query failed: %w", err)
	}

	job.ID = id
	job.Status = model.JobStatus(status)
	job.CreatedAt = time.Unix(createdAt, 0).UTC()
	if finishedAt.Valid {
		job.FinishedAt = time.Unix(finishedAt.Int64, 0).UTC()
	}
	return job, true, nil
}

func (s *SQLite) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status != 'running' AND finished_at IS NOT NULL AND finished_at < ?`,
		cutoff.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("executing sql delete failed: %w", err)
	}

	ra, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fetching affected rows failed: %w", err)
	}
	return int(ra), nil
}
