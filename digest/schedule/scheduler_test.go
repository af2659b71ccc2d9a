package schedule

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ChineseLsh/x-feed-digest/digest"
	"github.com/ChineseLsh/x-feed-digest/errors"
	"github.com/ChineseLsh/x-feed-digest/feed"
	qt "github.com/ChineseLsh/x-feed-digest/internal/testing"
)

// fakeRunner records submissions and lets tests drive job outcomes.
type fakeRunner struct {
	mu        sync.Mutex
	submitted [][]feed.HandleRecord
	jobs      map[string]*digest.Job
	fail      bool
	getErrs   int // GetJob fails this many times before recovering
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{jobs: make(map[string]*digest.Job)}
}

func (r *fakeRunner) Submit(handles []feed.HandleRecord, batchSize int) (*digest.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errors.New("engine unavailable")
	}
	job := &digest.Job{
		ID:           fmt.Sprintf("job-%d", len(r.jobs)+1),
		Status:       digest.JobStatusQueued,
		TotalHandles: len(handles),
	}
	r.jobs[job.ID] = job
	r.submitted = append(r.submitted, handles)
	return job, nil
}

func (r *fakeRunner) GetJob(id string) (*digest.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErrs > 0 {
		r.getErrs--
		return nil, errors.New("database is locked")
	}
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "job %s", id)
	}
	snapshot := *job
	return &snapshot, nil
}

func (r *fakeRunner) finish(id string, status digest.JobStatus, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id].Status = status
	r.jobs[id].Error = errMsg
}

func (r *fakeRunner) submissions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.submitted)
}

func newTestScheduler(t *testing.T, runner JobRunner) *Scheduler {
	t.Helper()
	cfg := SchedulerConfig{TickInterval: time.Hour, WatchInterval: 10 * time.Millisecond}
	s := NewScheduler(context.Background(), qt.CreateTestDB(t), runner, cfg, zap.NewNop().Sugar())
	t.Cleanup(s.Stop)
	return s
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 24, hour, minute, 0, 0, time.UTC)
}

func TestSchedulerFiresOnCrossing(t *testing.T) {
	runner := newFakeRunner()
	s := newTestScheduler(t, runner)

	sub, err := NewSubscription("morning", someHandles(), 8, 0)
	require.NoError(t, err)
	require.NoError(t, s.store.CreateSubscription(sub))

	s.tick(at(7, 59)) // first tick only records the boundary
	assert.Equal(t, 0, runner.submissions())

	s.tick(at(8, 1)) // 08:00 crossed
	assert.Equal(t, 1, runner.submissions())

	s.tick(at(8, 2)) // already fired today
	assert.Equal(t, 1, runner.submissions())

	loaded, err := s.store.GetSubscription(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "job-1", loaded.LastJobID)
	require.NotNil(t, loaded.NextRun)
	assert.Equal(t, at(8, 0).AddDate(0, 0, 1), loaded.NextRun.UTC())
}

func TestSchedulerFirstTickDoesNotReplay(t *testing.T) {
	runner := newFakeRunner()
	s := newTestScheduler(t, runner)

	sub, err := NewSubscription("morning", someHandles(), 8, 0)
	require.NoError(t, err)
	require.NoError(t, s.store.CreateSubscription(sub))

	// Process starts well after 08:00; the missed run is not replayed
	s.tick(at(12, 0))
	s.tick(at(12, 1))
	assert.Equal(t, 0, runner.submissions())
}

func TestSchedulerSkipsDisabled(t *testing.T) {
	runner := newFakeRunner()
	s := newTestScheduler(t, runner)

	sub, err := NewSubscription("morning", someHandles(), 8, 0)
	require.NoError(t, err)
	require.NoError(t, sub.Reschedule("morning", someHandles(), 8, 0, false))
	require.NoError(t, s.store.CreateSubscription(sub))

	s.tick(at(7, 59))
	s.tick(at(8, 1))
	assert.Equal(t, 0, runner.submissions())
}

func TestSchedulerFiresAcrossMidnight(t *testing.T) {
	runner := newFakeRunner()
	s := newTestScheduler(t, runner)

	sub, err := NewSubscription("late", someHandles(), 23, 59)
	require.NoError(t, err)
	require.NoError(t, s.store.CreateSubscription(sub))

	s.tick(at(23, 58))
	s.tick(at(23, 59).Add(2 * time.Minute)) // 00:01 next day
	assert.Equal(t, 1, runner.submissions())
}

func TestSchedulerRecordsSubmitFailure(t *testing.T) {
	runner := newFakeRunner()
	runner.fail = true
	s := newTestScheduler(t, runner)

	sub, err := NewSubscription("morning", someHandles(), 8, 0)
	require.NoError(t, err)
	require.NoError(t, s.store.CreateSubscription(sub))

	s.tick(at(7, 59))
	s.tick(at(8, 1))

	loaded, err := s.store.GetSubscription(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, string(digest.JobStatusFailed), loaded.LastStatus)
	assert.Contains(t, loaded.LastError, "engine unavailable")
}

func TestSchedulerWatchesJobOutcome(t *testing.T) {
	runner := newFakeRunner()
	s := newTestScheduler(t, runner)

	sub, err := NewSubscription("morning", someHandles(), 8, 0)
	require.NoError(t, err)
	require.NoError(t, s.store.CreateSubscription(sub))

	job, err := s.RunNow(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, runner.submissions())

	runner.finish(job.ID, digest.JobStatusDone, "")

	assert.Eventually(t, func() bool {
		loaded, err := s.store.GetSubscription(sub.ID)
		return err == nil && loaded.LastStatus == string(digest.JobStatusDone)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSchedulerWatchSurvivesLookupFailures(t *testing.T) {
	runner := newFakeRunner()
	s := newTestScheduler(t, runner)

	sub, err := NewSubscription("morning", someHandles(), 8, 0)
	require.NoError(t, err)
	require.NoError(t, s.store.CreateSubscription(sub))

	job, err := s.RunNow(sub.ID)
	require.NoError(t, err)

	// A few failed polls must not stop the watcher from seeing the outcome.
	runner.mu.Lock()
	runner.getErrs = 3
	runner.mu.Unlock()
	runner.finish(job.ID, digest.JobStatusDone, "")

	assert.Eventually(t, func() bool {
		loaded, err := s.store.GetSubscription(sub.ID)
		return err == nil && loaded.LastStatus == string(digest.JobStatusDone)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRunNowLeavesScheduleUntouched(t *testing.T) {
	runner := newFakeRunner()
	s := newTestScheduler(t, runner)

	sub, err := NewSubscription("morning", someHandles(), 8, 0)
	require.NoError(t, err)
	require.NoError(t, s.store.CreateSubscription(sub))

	// A scheduled fire establishes next_run.
	s.tick(at(7, 59))
	s.tick(at(8, 1))
	require.Equal(t, 1, runner.submissions())

	before, err := s.store.GetSubscription(sub.ID)
	require.NoError(t, err)
	require.NotNil(t, before.NextRun)

	// Manual run records the job but does not move the schedule.
	s.timeNow = func() time.Time { return at(15, 0) }
	job, err := s.RunNow(sub.ID)
	require.NoError(t, err)

	after, err := s.store.GetSubscription(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, after.LastJobID)
	require.NotNil(t, after.NextRun)
	assert.True(t, after.NextRun.Equal(*before.NextRun))
}

func TestRunNowUnknownSubscription(t *testing.T) {
	runner := newFakeRunner()
	s := newTestScheduler(t, runner)

	_, err := s.RunNow("nope")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
