package digest

import (
	"github.com/ChineseLsh/x-feed-digest/errors"
	"github.com/ChineseLsh/x-feed-digest/feed"
)

// PlanBatches splits a handle list into consecutive chunks of at most
// batchSize handles. The final chunk holds the remainder.
func PlanBatches(handles []feed.HandleRecord, batchSize int) ([][]feed.HandleRecord, error) {
	if batchSize < 1 {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "batch size must be >= 1, got %d", batchSize)
	}
	if len(handles) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidConfig, "handle list is empty")
	}

	var chunks [][]feed.HandleRecord
	for start := 0; start < len(handles); start += batchSize {
		end := start + batchSize
		if end > len(handles) {
			end = len(handles)
		}
		chunks = append(chunks, handles[start:end])
	}
	return chunks, nil
}
