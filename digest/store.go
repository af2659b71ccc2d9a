package digest

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ChineseLsh/x-feed-digest/errors"
)

// Store handles persistence of digest jobs and their batches
type Store struct {
	db *sql.DB
}

// NewStore creates a new digest job store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateJob inserts a job and all of its planned batches in one
// transaction.
func (s *Store) CreateJob(job *Job) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin create job")
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO digest_jobs (id, status, batch_size, total_handles, summary_text, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Status,
		job.BatchSize,
		job.TotalHandles,
		nullString(job.SummaryText),
		nullString(job.Error),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create job")
	}

	for _, b := range job.Batches {
		handlesJSON, err := json.Marshal(b.Handles)
		if err != nil {
			return errors.Wrapf(err, "marshal handles for batch %d", b.Index)
		}
		_, err = tx.Exec(`
			INSERT INTO digest_job_batches (job_id, batch_index, status, attempts, max_attempts, handles, result_csv, error, started_at, finished_at, last_attempt_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.JobID,
			b.Index,
			b.Status,
			b.Attempts,
			b.MaxAttempts,
			string(handlesJSON),
			nullString(b.ResultCSV),
			nullString(b.Error),
			b.StartedAt,
			b.FinishedAt,
			b.LastAttemptAt,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to create batch %d", b.Index)
		}
	}

	return errors.Wrap(tx.Commit(), "commit create job")
}

// GetJob retrieves a job with its batches in index order
func (s *Store) GetJob(id string) (*Job, error) {
	var job Job
	var summary, jobErr sql.NullString

	err := s.db.QueryRow(`
		SELECT id, status, batch_size, total_handles, summary_text, error, created_at, updated_at
		FROM digest_jobs WHERE id = ?`, id).Scan(
		&job.ID, &job.Status, &job.BatchSize, &job.TotalHandles,
		&summary, &jobErr, &job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}
	job.SummaryText = summary.String
	job.Error = jobErr.String

	batches, err := s.getBatches(id)
	if err != nil {
		return nil, err
	}
	job.Batches = batches

	return &job, nil
}

// getBatches loads all batches for a job ordered by index
func (s *Store) getBatches(jobID string) ([]*Batch, error) {
	rows, err := s.db.Query(`
		SELECT job_id, batch_index, status, attempts, max_attempts, handles, result_csv, error, started_at, finished_at, last_attempt_at
		FROM digest_job_batches WHERE job_id = ? ORDER BY batch_index ASC`, jobID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list batches")
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating batches")
	}
	return batches, nil
}

func scanBatch(rows *sql.Rows) (*Batch, error) {
	var b Batch
	var handlesJSON string
	var resultCSV, batchErr sql.NullString
	var startedAt, finishedAt, lastAttemptAt sql.NullTime

	err := rows.Scan(
		&b.JobID, &b.Index, &b.Status, &b.Attempts, &b.MaxAttempts,
		&handlesJSON, &resultCSV, &batchErr,
		&startedAt, &finishedAt, &lastAttemptAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan batch")
	}

	if err := json.Unmarshal([]byte(handlesJSON), &b.Handles); err != nil {
		return nil, errors.Wrapf(err, "unmarshal handles for batch %d", b.Index)
	}
	b.ResultCSV = resultCSV.String
	b.Error = batchErr.String
	b.StartedAt = nullTimePtr(startedAt)
	b.FinishedAt = nullTimePtr(finishedAt)
	b.LastAttemptAt = nullTimePtr(lastAttemptAt)

	return &b, nil
}

// UpdateJob persists the job's mutable fields (status, summary, error)
func (s *Store) UpdateJob(job *Job) error {
	job.UpdatedAt = time.Now()
	result, err := s.db.Exec(`
		UPDATE digest_jobs
		SET status = ?, summary_text = ?, error = ?, updated_at = ?
		WHERE id = ?`,
		job.Status,
		nullString(job.SummaryText),
		nullString(job.Error),
		job.UpdatedAt,
		job.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update job")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job %s", job.ID)
	}
	return nil
}

// UpdateBatch persists a batch's attempt state and result
func (s *Store) UpdateBatch(b *Batch) error {
	_, err := s.db.Exec(`
		UPDATE digest_job_batches
		SET status = ?, attempts = ?, max_attempts = ?, result_csv = ?, error = ?, started_at = ?, finished_at = ?, last_attempt_at = ?
		WHERE job_id = ? AND batch_index = ?`,
		b.Status,
		b.Attempts,
		b.MaxAttempts,
		nullString(b.ResultCSV),
		nullString(b.Error),
		b.StartedAt,
		b.FinishedAt,
		b.LastAttemptAt,
		b.JobID,
		b.Index,
	)
	return errors.Wrap(err, "failed to update batch")
}

// ListJobs returns jobs newest first, optionally filtered by status.
// Batches are loaded so callers can report per-batch progress.
func (s *Store) ListJobs(status *JobStatus, limit int) ([]*Job, error) {
	query := `SELECT id FROM digest_jobs`
	var args []interface{}
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan job id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating jobs")
	}

	var jobs []*Job
	for _, id := range ids {
		job, err := s.GetJob(id)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
