package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChineseLsh/x-feed-digest/errors"
	qt "github.com/ChineseLsh/x-feed-digest/internal/testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(qt.CreateTestDB(t))
}

func TestStoreCreateAndGetJob(t *testing.T) {
	store := newTestStore(t)

	job, err := NewJob(makeHandles(5), 2, 3)
	require.NoError(t, err)
	require.NoError(t, store.CreateJob(job))

	loaded, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, loaded.ID)
	assert.Equal(t, JobStatusQueued, loaded.Status)
	assert.Equal(t, 5, loaded.TotalHandles)
	require.Len(t, loaded.Batches, 3)
	assert.Equal(t, "user0", loaded.Batches[0].Handles[0].Handle)
	assert.Equal(t, 3, loaded.Batches[0].MaxAttempts)
}

func TestStoreGetJobNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetJob("nope")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestStoreUpdateJob(t *testing.T) {
	store := newTestStore(t)

	job, err := NewJob(makeHandles(2), 2, 1)
	require.NoError(t, err)
	require.NoError(t, store.CreateJob(job))

	require.NoError(t, job.Transition(JobStatusRunning))
	require.NoError(t, job.Transition(JobStatusSummarizing))
	job.SummaryText = "today's digest"
	require.NoError(t, job.Transition(JobStatusDone))
	require.NoError(t, store.UpdateJob(job))

	loaded, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusDone, loaded.Status)
	assert.Equal(t, "today's digest", loaded.SummaryText)
}

func TestStoreUpdateBatch(t *testing.T) {
	store := newTestStore(t)

	job, err := NewJob(makeHandles(4), 2, 3)
	require.NoError(t, err)
	require.NoError(t, store.CreateJob(job))

	batch := job.Batches[1]
	batch.markAttemptStarted()
	batch.markSucceeded("username,tweet_id,created_at,text,original_url\n")
	require.NoError(t, store.UpdateBatch(batch))

	loaded, err := store.GetJob(job.ID)
	require.NoError(t, err)
	got := loaded.Batches[1]
	assert.Equal(t, BatchStatusSucceeded, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.NotEmpty(t, got.ResultCSV)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.FinishedAt)
}

func TestStoreListJobsFilterByStatus(t *testing.T) {
	store := newTestStore(t)

	done, err := NewJob(makeHandles(1), 1, 1)
	require.NoError(t, err)
	require.NoError(t, store.CreateJob(done))
	require.NoError(t, done.Transition(JobStatusRunning))
	require.NoError(t, done.Transition(JobStatusFailed))
	require.NoError(t, store.UpdateJob(done))

	queued, err := NewJob(makeHandles(1), 1, 1)
	require.NoError(t, err)
	require.NoError(t, store.CreateJob(queued))

	failed := JobStatusFailed
	jobs, err := store.ListJobs(&failed, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, done.ID, jobs[0].ID)

	all, err := store.ListJobs(nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStoreUpdateJobNotFound(t *testing.T) {
	store := newTestStore(t)

	job, err := NewJob(makeHandles(1), 1, 1)
	require.NoError(t, err)
	// Never created
	assert.True(t, errors.Is(store.UpdateJob(job), errors.ErrNotFound))
}
