package digest

import (
	"context"
	"fmt"

	"github.com/ChineseLsh/x-feed-digest/errors"
)

// FetchError is a batch fetch failure carrying retryability. Provider
// errors like auth failures or rejected prompts will not heal on retry;
// timeouts and transport errors usually do.
type FetchError struct {
	Err       error
	Retryable bool
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps a provider error with an explicit retryability
// decision.
func NewFetchError(err error, retryable bool) *FetchError {
	return &FetchError{Err: err, Retryable: retryable}
}

// IsRetryable decides whether a failed fetch attempt should be tried
// again. Unknown errors default to retryable since transient transport
// failures are the common case; an explicit FetchError overrides that, and
// cancellation never retries.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
