// Package digest implements the job engine that turns a handle list into a
// curated daily digest: batch planning, concurrent fetching with retries,
// and ordered summarization.
package digest

import (
	"time"

	"github.com/google/uuid"

	"github.com/ChineseLsh/x-feed-digest/errors"
	"github.com/ChineseLsh/x-feed-digest/feed"
)

// JobStatus represents the current state of a digest job
type JobStatus string

const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusRunning     JobStatus = "running"
	JobStatusSummarizing JobStatus = "summarizing"
	JobStatusDone        JobStatus = "done"
	JobStatusFailed      JobStatus = "failed"
)

// IsValidJobStatus returns true if the status string is a valid JobStatus
func IsValidJobStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusQueued, JobStatusRunning, JobStatusSummarizing,
		JobStatusDone, JobStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether a job in this status will make no further
// progress on its own.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// jobTransitions is the allowed state machine. Terminal jobs may re-enter
// running through an explicit batch retry; failed jobs may additionally
// re-enter summarizing through forced aggregation.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusQueued:      {JobStatusRunning, JobStatusFailed},
	JobStatusRunning:     {JobStatusSummarizing, JobStatusFailed},
	JobStatusSummarizing: {JobStatusDone, JobStatusFailed},
	JobStatusDone:        {JobStatusRunning},
	JobStatusFailed:      {JobStatusRunning, JobStatusSummarizing},
}

// BatchStatus represents the current state of a single batch
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusSucceeded BatchStatus = "succeeded"
	BatchStatusFailed    BatchStatus = "failed"
)

// Terminal reports whether the batch has finished, successfully or not.
func (s BatchStatus) Terminal() bool {
	return s == BatchStatusSucceeded || s == BatchStatusFailed
}

// Batch is one unit of fetch work: a slice of the job's handle list with
// its own attempt counter.
type Batch struct {
	JobID         string              `json:"job_id"`
	Index         int                 `json:"index"`
	Status        BatchStatus         `json:"status"`
	Attempts      int                 `json:"attempts"`
	MaxAttempts   int                 `json:"max_attempts"`
	Handles       []feed.HandleRecord `json:"handles"`
	ResultCSV     string              `json:"-"` // fetched tweets, canonical CSV
	Error         string              `json:"error,omitempty"`
	StartedAt     *time.Time          `json:"started_at,omitempty"`
	FinishedAt    *time.Time          `json:"finished_at,omitempty"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// Job is one digest run over a handle list.
type Job struct {
	ID           string    `json:"id"`
	Status       JobStatus `json:"status"`
	BatchSize    int       `json:"batch_size"`
	TotalHandles int       `json:"total_handles"`
	SummaryText  string    `json:"summary_text,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Batches      []*Batch  `json:"batches,omitempty"`
}

// NewJob plans a handle list into batches and returns a queued job.
// maxAttempts covers the first try plus retries.
func NewJob(handles []feed.HandleRecord, batchSize int, maxAttempts int) (*Job, error) {
	chunks, err := PlanBatches(handles, batchSize)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	job := &Job{
		ID:           uuid.NewString(),
		Status:       JobStatusQueued,
		BatchSize:    batchSize,
		TotalHandles: len(handles),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for i, chunk := range chunks {
		job.Batches = append(job.Batches, &Batch{
			JobID:       job.ID,
			Index:       i,
			Status:      BatchStatusPending,
			MaxAttempts: maxAttempts,
			Handles:     chunk,
		})
	}
	return job, nil
}

// Transition moves the job to the given status, rejecting moves the state
// machine does not allow.
func (j *Job) Transition(to JobStatus) error {
	for _, allowed := range jobTransitions[j.Status] {
		if allowed == to {
			j.Status = to
			j.UpdatedAt = time.Now()
			return nil
		}
	}
	return errors.Wrapf(errors.ErrInvalidState, "job %s: cannot move %s -> %s", j.ID, j.Status, to)
}

// BatchCounts summarizes batch states for status reporting.
type BatchCounts struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Counts tallies the job's batches by status.
func (j *Job) Counts() BatchCounts {
	var c BatchCounts
	for _, b := range j.Batches {
		switch b.Status {
		case BatchStatusPending:
			c.Pending++
		case BatchStatusRunning:
			c.Running++
		case BatchStatusSucceeded:
			c.Succeeded++
		case BatchStatusFailed:
			c.Failed++
		}
	}
	return c
}

// AllBatchesTerminal reports whether every batch has finished.
func (j *Job) AllBatchesTerminal() bool {
	for _, b := range j.Batches {
		if !b.Status.Terminal() {
			return false
		}
	}
	return true
}

// SucceededResults returns the result payloads of succeeded batches in
// batch index order. Summaries must be stable across reruns, so order
// matters here.
func (j *Job) SucceededResults() []string {
	var results []string
	for _, b := range j.Batches {
		if b.Status == BatchStatusSucceeded {
			results = append(results, b.ResultCSV)
		}
	}
	return results
}

// markAttemptStarted records the start of a fetch attempt.
func (b *Batch) markAttemptStarted() {
	now := time.Now()
	b.Attempts++
	b.Status = BatchStatusRunning
	b.LastAttemptAt = &now
	if b.StartedAt == nil {
		b.StartedAt = &now
	}
}

// markSucceeded records a successful fetch.
func (b *Batch) markSucceeded(resultCSV string) {
	now := time.Now()
	b.Status = BatchStatusSucceeded
	b.ResultCSV = resultCSV
	b.Error = ""
	b.FinishedAt = &now
}

// markFailed records a terminal fetch failure.
func (b *Batch) markFailed(err error) {
	now := time.Now()
	b.Status = BatchStatusFailed
	b.Error = err.Error()
	b.FinishedAt = &now
}
