package digest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ChineseLsh/x-feed-digest/errors"
)

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))

	// Explicit classification wins
	assert.True(t, IsRetryable(NewFetchError(errors.New("timeout"), true)))
	assert.False(t, IsRetryable(NewFetchError(errors.New("invalid api key"), false)))

	// Wrapped FetchError keeps its classification
	wrapped := errors.Wrap(NewFetchError(errors.New("bad prompt"), false), "batch 3")
	assert.False(t, IsRetryable(wrapped))

	// Cancellation never retries
	assert.False(t, IsRetryable(context.Canceled))

	// Unknown errors default to retryable
	assert.True(t, IsRetryable(errors.New("connection reset")))
}

func TestFetchErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	fe := NewFetchError(inner, true)
	assert.True(t, errors.Is(fe, inner))
	assert.Contains(t, fe.Error(), "boom")
}
