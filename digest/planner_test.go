package digest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChineseLsh/x-feed-digest/errors"
	"github.com/ChineseLsh/x-feed-digest/feed"
)

func makeHandles(n int) []feed.HandleRecord {
	handles := make([]feed.HandleRecord, n)
	for i := range handles {
		handles[i] = feed.HandleRecord{Handle: fmt.Sprintf("user%d", i)}
	}
	return handles
}

func TestPlanBatchesChunking(t *testing.T) {
	// Five handles at batch size two yields chunks of 2, 2, 1
	chunks, err := PlanBatches(makeHandles(5), 2)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 2)
	assert.Len(t, chunks[1], 2)
	assert.Len(t, chunks[2], 1)
	assert.Equal(t, "user0", chunks[0][0].Handle)
	assert.Equal(t, "user4", chunks[2][0].Handle)
}

func TestPlanBatchesCeilCount(t *testing.T) {
	cases := []struct {
		handles   int
		batchSize int
		want      int
	}{
		{1, 1, 1},
		{10, 10, 1},
		{11, 10, 2},
		{100, 7, 15},
	}
	for _, tc := range cases {
		chunks, err := PlanBatches(makeHandles(tc.handles), tc.batchSize)
		require.NoError(t, err)
		assert.Len(t, chunks, tc.want, "handles=%d batchSize=%d", tc.handles, tc.batchSize)
	}
}

func TestPlanBatchesRejectsBadSize(t *testing.T) {
	_, err := PlanBatches(makeHandles(3), 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))

	_, err = PlanBatches(makeHandles(3), -1)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestPlanBatchesRejectsEmptyList(t *testing.T) {
	// Empty input is a caller mistake, not an internal failure.
	_, err := PlanBatches(nil, 5)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))

	_, err = PlanBatches([]feed.HandleRecord{}, 5)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}
