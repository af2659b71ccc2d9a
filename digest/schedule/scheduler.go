package schedule

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ChineseLsh/x-feed-digest/digest"
	"github.com/ChineseLsh/x-feed-digest/errors"
	"github.com/ChineseLsh/x-feed-digest/feed"
)

// JobRunner is the slice of the job engine the scheduler needs. Satisfied
// by *digest.Executor.
type JobRunner interface {
	Submit(handles []feed.HandleRecord, batchSize int) (*digest.Job, error)
	GetJob(id string) (*digest.Job, error)
}

// SchedulerConfig contains configuration for the subscription scheduler
type SchedulerConfig struct {
	TickInterval  time.Duration // how often to check fire times (default: 1 minute)
	WatchInterval time.Duration // how often to poll a fired job for its outcome
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TickInterval:  time.Minute,
		WatchInterval: 5 * time.Second,
	}
}

// Scheduler fires subscriptions whose daily time was crossed since the
// previous tick. Edge-triggered: the first tick after startup only
// records the boundary, so fire times missed while the process was down
// are not replayed.
type Scheduler struct {
	store    *Store
	runner   JobRunner
	cfg      SchedulerConfig
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *zap.SugaredLogger
	mu       sync.Mutex
	lastTick time.Time
	timeNow  func() time.Time // Injectable for testing
}

// NewScheduler creates a subscription scheduler
func NewScheduler(ctx context.Context, db *sql.DB, runner JobRunner, cfg SchedulerConfig, logger *zap.SugaredLogger) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = 5 * time.Second
	}
	schedCtx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		store:   NewStore(db),
		runner:  runner,
		cfg:     cfg,
		ctx:     schedCtx,
		cancel:  cancel,
		logger:  logger.Named("scheduler"),
		timeNow: time.Now,
	}
}

// Store exposes subscription persistence for the API layer.
func (s *Scheduler) Store() *Store {
	return s.store
}

// Start begins the ticker loop
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
	s.logger.Infow("Subscription scheduler started", "tick_interval", s.cfg.TickInterval)
}

// Stop gracefully stops the scheduler and its job watchers
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Infow("Subscription scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick(s.timeNow())
		}
	}
}

// tick fires every enabled subscription whose daily instant falls in
// (lastTick, now].
func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	last := s.lastTick
	s.lastTick = now
	s.mu.Unlock()

	if last.IsZero() {
		// First tick establishes the boundary
		return
	}

	subs, err := s.store.ListSubscriptions(true)
	if err != nil {
		s.logger.Warnw("Failed to list subscriptions", "error", err)
		return
	}

	for _, sub := range subs {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		occ := sub.LastOccurrence(now)
		if occ.After(last) && !occ.After(now) {
			s.fire(sub, now)
		}
	}
}

// fire submits a digest job for the subscription's handle snapshot and
// records the run.
func (s *Scheduler) fire(sub *Subscription, now time.Time) {
	s.logger.Infow("Subscription due, submitting digest job",
		"subscription_id", sub.ID,
		"name", sub.Name,
		"handles", len(sub.Handles),
	)

	next := sub.NextOccurrence(now)

	job, err := s.runner.Submit(sub.Handles, 0)
	if err != nil {
		s.logger.Errorw("Subscription job submit failed",
			"subscription_id", sub.ID,
			"error", err,
		)
		if uerr := s.store.UpdateRunState(sub.ID, &now, &next, "", string(digest.JobStatusFailed), err.Error()); uerr != nil {
			s.logger.Errorw("Failed to record subscription failure", "subscription_id", sub.ID, "error", uerr)
		}
		return
	}

	if err := s.store.UpdateRunState(sub.ID, &now, &next, job.ID, string(job.Status), ""); err != nil {
		s.logger.Errorw("Failed to record subscription run", "subscription_id", sub.ID, "error", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.watchJob(sub.ID, job.ID)
	}()
}

// RunNow fires a subscription immediately, bypassing the schedule. Works
// on disabled subscriptions too since it is an explicit request.
func (s *Scheduler) RunNow(id string) (*digest.Job, error) {
	sub, err := s.store.GetSubscription(id)
	if err != nil {
		return nil, err
	}

	now := s.timeNow()
	job, err := s.runner.Submit(sub.Handles, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "run subscription %s", id)
	}

	// A manual run records its outcome but leaves the schedule alone; only
	// ticker fires advance next_run.
	if uerr := s.store.UpdateRunState(sub.ID, &now, nil, job.ID, string(job.Status), ""); uerr != nil {
		s.logger.Errorw("Failed to record manual run", "subscription_id", sub.ID, "error", uerr)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.watchJob(sub.ID, job.ID)
	}()

	return job, nil
}

// watchJob polls a submitted job until it reaches a terminal state, then
// reflects the outcome onto the subscription.
func (s *Scheduler) watchJob(subID, jobID string) {
	ticker := time.NewTicker(s.cfg.WatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			job, err := s.runner.GetJob(jobID)
			if err != nil {
				// Transient lookup failures must not orphan the watch.
				s.logger.Warnw("Subscription job lookup failed",
					"subscription_id", subID,
					"job_id", jobID,
					"error", err,
				)
				continue
			}
			if !job.Status.Terminal() {
				continue
			}
			if err := s.store.UpdateRunState(subID, nil, nil, jobID, string(job.Status), job.Error); err != nil {
				s.logger.Errorw("Failed to record subscription outcome",
					"subscription_id", subID,
					"job_id", jobID,
					"error", err,
				)
			}
			s.logger.Infow("Subscription run finished",
				"subscription_id", subID,
				"job_id", jobID,
				"status", job.Status,
			)
			return
		}
	}
}
