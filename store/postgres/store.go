// Package postgres implements the job store on Postgres via pgx, used
// by server-side deployments that retain terminal jobs for history.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	queueErrors "github.com/greengoods/gardenqueue/errors"
	"github.com/greengoods/gardenqueue/job"
)

// Store wraps pgxpool for Postgres persistence.
type Store struct {
	dsn  string
	pool *pgxpool.Pool
}

// NewStore creates a store; call Connect before use.
func NewStore(dsn string) *Store {
	return &Store{dsn: dsn}
}

// Connect creates the pooled connection and ensures the schema.
func (s *Store) Connect(ctx context.Context) error {
	cfg, err := pgxpool.ParseConfig(s.dsn)
	if err != nil {
		return queueErrors.NewConnectionError(s.dsn, fmt.Errorf("parse postgres dsn: %w", err))
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return queueErrors.NewConnectionError(s.dsn, fmt.Errorf("connect postgres: %w", err))
	}
	s.pool = pool
	return s.migrate(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Health pings the database.
func (s *Store) Health() error {
	if s.pool == nil {
		return queueErrors.ErrNotConnected
	}
	return s.pool.Ping(context.Background())
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS queue_jobs (
			seq        BIGSERIAL,
			id         TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			payload    JSONB NOT NULL,
			meta       JSONB,
			sender     TEXT NOT NULL DEFAULT '',
			chain_id   BIGINT NOT NULL DEFAULT 0,
			status     TEXT NOT NULL,
			attempts   INT NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			synced     BOOLEAN NOT NULL DEFAULT FALSE,
			tx_hash    TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS queue_jobs_status_idx ON queue_jobs (status)`,
		`CREATE INDEX IF NOT EXISTS queue_jobs_synced_idx ON queue_jobs (synced)`,
		`CREATE TABLE IF NOT EXISTS queue_attachments (
			job_id       TEXT NOT NULL,
			name         TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT '',
			data         BYTEA NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (job_id, name)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// wrapWriteErr maps disk-full failures onto the typed quota error.
func wrapWriteErr(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if queueErrors.As(err, &pgErr) && pgErr.Code == "53100" { // disk_full
		return queueErrors.NewQuota("postgres", err)
	}
	return queueErrors.NewStoreError(op, id, err)
}

// Put upserts a job row.
func (s *Store) Put(ctx context.Context, j job.Job) error {
	meta, err := json.Marshal(j.Meta)
	if err != nil {
		return queueErrors.NewStoreError("put", j.ID, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO queue_jobs
			(id, kind, payload, meta, sender, chain_id, status, attempts, last_error, synced, tx_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			last_error = EXCLUDED.last_error,
			synced = EXCLUDED.synced,
			tx_hash = EXCLUDED.tx_hash,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, j.ID, string(j.Kind), []byte(j.Payload), meta, j.Sender, j.ChainID, string(j.Status),
		j.Attempts, j.LastError, j.Synced, j.TxHash, j.CreatedAt, j.UpdatedAt)
	return wrapWriteErr("put", j.ID, err)
}

func scanJob(row pgx.Row) (job.Job, error) {
	var (
		j       job.Job
		kind    string
		status  string
		payload []byte
		meta    []byte
	)
	err := row.Scan(&j.ID, &kind, &payload, &meta, &j.Sender, &j.ChainID, &status,
		&j.Attempts, &j.LastError, &j.Synced, &j.TxHash, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return job.Job{}, err
	}
	j.Kind = job.Kind(kind)
	j.Status = job.Status(status)
	j.Payload = json.RawMessage(payload)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &j.Meta); err != nil {
			return job.Job{}, err
		}
	}
	return j, nil
}

const jobColumns = `id, kind, payload, meta, sender, chain_id, status, attempts, last_error, synced, tx_hash, created_at, updated_at`

// Get reads one job.
func (s *Store) Get(ctx context.Context, id string) (job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM queue_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err == pgx.ErrNoRows {
		return job.Job{}, queueErrors.NewStoreError("get", id, queueErrors.ErrJobNotFound)
	}
	if err != nil {
		return job.Job{}, queueErrors.NewStoreError("get", id, err)
	}
	return j, nil
}

// List returns jobs matching the filter in creation order.
func (s *Store) List(ctx context.Context, f job.Filter) ([]job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM queue_jobs WHERE TRUE`
	args := []any{}
	n := 0

	add := func(clause string, v any) {
		n++
		query += fmt.Sprintf(" AND %s = $%d", clause, n)
		args = append(args, v)
	}

	if f.Kind != "" {
		add("kind", string(f.Kind))
	}
	if f.Status != "" {
		add("status", string(f.Status))
	}
	if f.Sender != "" {
		add("sender", f.Sender)
	}
	if f.Synced != nil {
		add("synced", *f.Synced)
	}
	query += " ORDER BY seq ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, queueErrors.NewStoreError("list", "", err)
	}
	defer rows.Close()

	var out []job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, queueErrors.NewStoreError("list", "", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Remove deletes a job and its attachments in one transaction.
func (s *Store) Remove(ctx context.Context, id string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return queueErrors.NewStoreError("remove", id, err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	if _, err := tx.Exec(ctx, `DELETE FROM queue_attachments WHERE job_id = $1`, id); err != nil {
		return queueErrors.NewStoreError("remove", id, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM queue_jobs WHERE id = $1`, id); err != nil {
		return queueErrors.NewStoreError("remove", id, err)
	}
	return tx.Commit(ctx)
}

// PutAttachment upserts a binary blob for a job.
func (s *Store) PutAttachment(ctx context.Context, att job.Attachment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO queue_attachments (job_id, name, content_type, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id, name) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			data = EXCLUDED.data
	`, att.JobID, att.Name, att.ContentType, att.Data)
	return wrapWriteErr("put_attachment", att.JobID, err)
}

// GetAttachments returns all blobs for a job in creation order.
func (s *Store) GetAttachments(ctx context.Context, jobID string) ([]job.Attachment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, content_type, data FROM queue_attachments
		WHERE job_id = $1 ORDER BY created_at ASC, name ASC
	`, jobID)
	if err != nil {
		return nil, queueErrors.NewStoreError("get_attachments", jobID, err)
	}
	defer rows.Close()

	var out []job.Attachment
	for rows.Next() {
		att := job.Attachment{JobID: jobID}
		if err := rows.Scan(&att.Name, &att.ContentType, &att.Data); err != nil {
			return nil, queueErrors.NewStoreError("get_attachments", jobID, err)
		}
		out = append(out, att)
	}
	return out, rows.Err()
}

// RemoveAttachment deletes a single blob.
func (s *Store) RemoveAttachment(ctx context.Context, jobID, name string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM queue_attachments WHERE job_id = $1 AND name = $2`, jobID, name)
	if err != nil {
		return queueErrors.NewStoreError("remove_attachment", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return queueErrors.NewStoreError("remove_attachment", jobID, queueErrors.ErrAttachmentNotFound)
	}
	return nil
}
