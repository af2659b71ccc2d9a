package digest

import (
	"context"
	"time"
)

// runBatch drives one batch through its fetch attempts. It holds a worker
// pool slot for the whole batch so retries of one batch never starve
// other batches of their first attempt order, then persists every state
// change so a crash loses at most the in-flight attempt.
func (e *Executor) runBatch(batch *Batch) {
	select {
	case e.sem <- struct{}{}:
	case <-e.ctx.Done():
		batch.markFailed(e.ctx.Err())
		e.persistBatch(batch)
		return
	}
	defer func() { <-e.sem }()

	var lastErr error
	for batch.Attempts < batch.MaxAttempts {
		batch.markAttemptStarted()
		e.persistBatch(batch)

		if err := e.limiter.Wait(e.ctx); err != nil {
			lastErr = err
			break
		}

		fetchCtx, cancel := context.WithTimeout(e.ctx, e.cfg.FetchTimeout())
		resultCSV, err := e.fetcher.FetchBatch(fetchCtx, batch.Handles)
		cancel()

		if err == nil {
			batch.markSucceeded(resultCSV)
			e.persistBatch(batch)
			e.logger.Infow("Batch succeeded",
				"job_id", batch.JobID,
				"batch_index", batch.Index,
				"attempts", batch.Attempts,
			)
			return
		}

		lastErr = err
		if !IsRetryable(err) {
			e.logger.Warnw("Batch failed with non-retryable error",
				"job_id", batch.JobID,
				"batch_index", batch.Index,
				"attempt", batch.Attempts,
				"error", err,
			)
			break
		}

		if batch.Attempts < batch.MaxAttempts {
			delay := e.backoff.Delay(batch.Attempts)
			e.logger.Infow("Batch attempt failed, backing off",
				"job_id", batch.JobID,
				"batch_index", batch.Index,
				"attempt", batch.Attempts,
				"max_attempts", batch.MaxAttempts,
				"backoff", delay,
				"error", err,
			)
			if !sleepCtx(e.ctx, delay) {
				break
			}
		}
	}

	batch.markFailed(lastErr)
	e.persistBatch(batch)
	e.logger.Warnw("Batch failed",
		"job_id", batch.JobID,
		"batch_index", batch.Index,
		"attempts", batch.Attempts,
		"error", lastErr,
	)
}

func (e *Executor) persistBatch(batch *Batch) {
	if err := e.store.UpdateBatch(batch); err != nil {
		e.logger.Errorw("Failed to persist batch state",
			"job_id", batch.JobID,
			"batch_index", batch.Index,
			"error", err,
		)
	}
}

// sleepCtx waits for d or until ctx is cancelled. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
