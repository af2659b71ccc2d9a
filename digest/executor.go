package digest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ChineseLsh/x-feed-digest/config"
	"github.com/ChineseLsh/x-feed-digest/errors"
	"github.com/ChineseLsh/x-feed-digest/feed"
)

// Fetcher retrieves recent tweets for a batch of handles and returns them
// as canonical tweet CSV.
type Fetcher interface {
	FetchBatch(ctx context.Context, handles []feed.HandleRecord) (string, error)
}

// Summarizer turns the merged tweet CSV of a finished job into digest
// prose.
type Summarizer interface {
	Summarize(ctx context.Context, tweetCSV string) (string, error)
}

// Executor runs digest jobs: it plans batches, fans them out over a
// bounded worker pool shared by every job in the process, and summarizes
// the merged results.
type Executor struct {
	store      *Store
	fetcher    Fetcher
	summarizer Summarizer
	cfg        config.DigestConfig
	backoff    BackoffPolicy
	limiter    *RateLimiter
	sem        chan struct{} // process-wide fetch concurrency gate
	parentCtx  context.Context
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	logger     *zap.SugaredLogger

	mu       sync.Mutex
	jobLocks map[string]*sync.Mutex // one in-flight state mutation per job
}

// NewExecutor creates a job executor. The context bounds every job the
// executor runs; cancelling it (or calling Stop) interrupts in-flight
// fetches.
func NewExecutor(ctx context.Context, db *sql.DB, cfg config.DigestConfig, fetcher Fetcher, summarizer Summarizer, logger *zap.SugaredLogger) *Executor {
	execCtx, cancel := context.WithCancel(ctx)
	return &Executor{
		store:      NewStore(db),
		fetcher:    fetcher,
		summarizer: summarizer,
		cfg:        cfg,
		backoff:    BackoffPolicy{Base: cfg.BackoffBase(), Max: cfg.BackoffMax()},
		limiter:    NewRateLimiter(cfg.MaxRequestsPerMinute),
		sem:        make(chan struct{}, cfg.MaxWorkers),
		parentCtx:  ctx,
		ctx:        execCtx,
		cancel:     cancel,
		logger:     logger.Named("digest"),
		jobLocks:   make(map[string]*sync.Mutex),
	}
}

// jobLock returns the mutex serializing lifecycle decisions for one job,
// so concurrent RetryBatch/ForceAggregate calls and finalization never act
// on stale copies of the same job.
func (e *Executor) jobLock(id string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.jobLocks[id]
	if !ok {
		l = &sync.Mutex{}
		e.jobLocks[id] = l
	}
	return l
}

// Store exposes the persistence layer for read-side callers.
func (e *Executor) Store() *Store {
	return e.store
}

// Submit plans a job for the given handles and starts it in the
// background. A batchSize of 0 uses the configured default; anything
// outside [1, max] is rejected.
func (e *Executor) Submit(handles []feed.HandleRecord, batchSize int) (*Job, error) {
	if batchSize == 0 {
		batchSize = e.cfg.DefaultBatchSize
	}
	if batchSize < 1 || batchSize > e.cfg.MaxBatchSize {
		return nil, errors.Wrapf(errors.ErrInvalidConfig,
			"batch size %d outside allowed range [1, %d]", batchSize, e.cfg.MaxBatchSize)
	}

	job, err := NewJob(handles, batchSize, e.cfg.MaxRetries+1)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateJob(job); err != nil {
		return nil, err
	}

	e.logger.Infow("Job submitted",
		"job_id", job.ID,
		"handles", job.TotalHandles,
		"batches", len(job.Batches),
		"batch_size", batchSize,
	)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(job)
	}()

	return job, nil
}

// run drives a freshly submitted job from queued through its terminal
// state.
func (e *Executor) run(job *Job) {
	if err := job.Transition(JobStatusRunning); err != nil {
		e.logger.Errorw("Job cannot start", "job_id", job.ID, "error", err)
		return
	}
	if err := e.store.UpdateJob(job); err != nil {
		e.logger.Errorw("Failed to persist job start", "job_id", job.ID, "error", err)
	}

	var batchWG sync.WaitGroup
	for _, b := range job.Batches {
		if b.Status != BatchStatusPending {
			continue
		}
		batchWG.Add(1)
		go func(b *Batch) {
			defer batchWG.Done()
			e.runBatch(b)
		}(b)
	}
	batchWG.Wait()

	e.finalize(job.ID)
}

// finalize decides a job's fate once every batch is terminal: any failed
// batch fails the whole job, summarization runs only on a clean sweep.
// Recovering a partially failed job takes an explicit RetryBatch or
// ForceAggregate call. The job is re-read under its lock so the decision
// is made on current state, not the caller's copy.
func (e *Executor) finalize(jobID string) {
	lock := e.jobLock(jobID)
	lock.Lock()

	job, err := e.store.GetJob(jobID)
	if err != nil {
		lock.Unlock()
		e.logger.Errorw("Failed to load job for finalization", "job_id", jobID, "error", err)
		return
	}
	if !job.AllBatchesTerminal() {
		// Another retry is still running batches; its finalize decides.
		lock.Unlock()
		return
	}

	counts := job.Counts()
	if counts.Failed > 0 {
		job.Error = fmt.Sprintf("%d of %d batches failed", counts.Failed, len(job.Batches))
		if err := job.Transition(JobStatusFailed); err != nil {
			lock.Unlock()
			e.logger.Errorw("Failed job transition rejected", "job_id", job.ID, "error", err)
			return
		}
		if err := e.store.UpdateJob(job); err != nil {
			e.logger.Errorw("Failed to persist job failure", "job_id", job.ID, "error", err)
		}
		lock.Unlock()
		e.logger.Warnw("Job failed",
			"job_id", job.ID,
			"failed_batches", counts.Failed,
			"succeeded_batches", counts.Succeeded,
		)
		return
	}

	if err := job.Transition(JobStatusSummarizing); err != nil {
		lock.Unlock()
		e.logger.Errorw("Summarizing transition rejected", "job_id", job.ID, "error", err)
		return
	}
	if err := e.store.UpdateJob(job); err != nil {
		e.logger.Errorw("Failed to persist summarizing state", "job_id", job.ID, "error", err)
	}
	lock.Unlock()

	e.summarize(job)
}

// summarize merges succeeded batch results in batch index order and asks
// the summarizer for digest prose. Expects the job to already be in
// summarizing state.
func (e *Executor) summarize(job *Job) {
	merged, tweets := feed.MergeTweetCSV(job.SucceededResults())
	e.logger.Infow("Summarizing job",
		"job_id", job.ID,
		"tweets", tweets,
		"succeeded_batches", job.Counts().Succeeded,
	)

	summary, err := e.summarizer.Summarize(e.ctx, merged)
	if err != nil {
		job.Error = errors.Wrap(err, "summarize").Error()
		if terr := job.Transition(JobStatusFailed); terr != nil {
			e.logger.Errorw("Failed job transition rejected", "job_id", job.ID, "error", terr)
			return
		}
		if perr := e.store.UpdateJob(job); perr != nil {
			e.logger.Errorw("Failed to persist summarize failure", "job_id", job.ID, "error", perr)
		}
		e.logger.Warnw("Summarization failed", "job_id", job.ID, "error", err)
		return
	}

	job.SummaryText = summary
	job.Error = ""
	if err := job.Transition(JobStatusDone); err != nil {
		e.logger.Errorw("Done transition rejected", "job_id", job.ID, "error", err)
		return
	}
	if err := e.store.UpdateJob(job); err != nil {
		e.logger.Errorw("Failed to persist completed job", "job_id", job.ID, "error", err)
		return
	}
	e.logger.Infow("Job done", "job_id", job.ID, "summary_chars", len(summary))
}

// RetryBatch re-runs one failed batch of a terminal job with a fresh retry
// budget, then re-finalizes the job. The attempt counter keeps counting
// from where it stopped.
func (e *Executor) RetryBatch(jobID string, batchIndex int) (*Job, error) {
	lock := e.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := e.store.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	if batchIndex < 0 || batchIndex >= len(job.Batches) {
		return nil, errors.Wrapf(errors.ErrInvalidBatchIndex,
			"job %s has %d batches, got index %d", jobID, len(job.Batches), batchIndex)
	}
	if !job.Status.Terminal() {
		return nil, errors.Wrapf(errors.ErrInvalidState,
			"job %s is still %s, batches can only be retried once the job is terminal", jobID, job.Status)
	}
	batch := job.Batches[batchIndex]
	if batch.Status != BatchStatusFailed {
		return nil, errors.Wrapf(errors.ErrInvalidState,
			"batch %d is %s, only failed batches can be retried", batchIndex, batch.Status)
	}

	batch.Status = BatchStatusPending
	batch.Error = ""
	batch.MaxAttempts = batch.Attempts + e.cfg.MaxRetries + 1
	if err := e.store.UpdateBatch(batch); err != nil {
		return nil, err
	}
	if err := job.Transition(JobStatusRunning); err != nil {
		return nil, err
	}
	job.Error = ""
	if err := e.store.UpdateJob(job); err != nil {
		return nil, err
	}

	e.logger.Infow("Batch retry requested",
		"job_id", jobID,
		"batch_index", batchIndex,
		"attempts_so_far", batch.Attempts,
		"new_max_attempts", batch.MaxAttempts,
	)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runBatch(batch)
		e.finalize(jobID)
	}()

	return job, nil
}

// ForceAggregate summarizes whatever succeeded batches a failed job has,
// ignoring the failed remainder. Re-invocable when summarization itself
// fails.
func (e *Executor) ForceAggregate(jobID string) (*Job, error) {
	lock := e.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := e.store.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != JobStatusFailed {
		return nil, errors.Wrapf(errors.ErrInvalidState,
			"job %s is %s, only failed jobs can be force-aggregated", jobID, job.Status)
	}
	if job.Counts().Succeeded == 0 {
		return nil, errors.Wrapf(errors.ErrNoSucceededBatches, "job %s", jobID)
	}

	if err := job.Transition(JobStatusSummarizing); err != nil {
		return nil, err
	}
	job.Error = ""
	if err := e.store.UpdateJob(job); err != nil {
		return nil, err
	}

	e.logger.Infow("Forced aggregation", "job_id", jobID, "succeeded_batches", job.Counts().Succeeded)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.summarize(job)
	}()

	return job, nil
}

// GetJob returns a job with its batches.
func (e *Executor) GetJob(id string) (*Job, error) {
	return e.store.GetJob(id)
}

// ListJobs returns recent jobs, optionally filtered by status.
func (e *Executor) ListJobs(status *JobStatus, limit int) ([]*Job, error) {
	return e.store.ListJobs(status, limit)
}

// MergedCSV returns the concatenated tweet CSV of a job's succeeded
// batches for download.
func (e *Executor) MergedCSV(jobID string) (string, int, error) {
	job, err := e.store.GetJob(jobID)
	if err != nil {
		return "", 0, err
	}
	merged, tweets := feed.MergeTweetCSV(job.SucceededResults())
	if tweets == 0 {
		return "", 0, errors.Wrapf(errors.ErrNoSucceededBatches, "job %s", jobID)
	}
	return merged, tweets, nil
}

// Wait blocks until every in-flight job goroutine has finished. Test
// helper.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Stop cancels in-flight work and waits for job goroutines to exit, with
// a timeout so shutdown never hangs on a stuck provider call.
func (e *Executor) Stop() {
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Infow("Executor stopped, all jobs exited cleanly")
	case <-time.After(30 * time.Second):
		e.logger.Warnw("Executor stop timeout, jobs may still be finishing")
	}
}
