package receiver

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/streamhub-io/streamhub-go-sdk/internal/backoff"
)

// retryExecutor wraps the ensure-open-and-pull operation in a bounded
// retry loop. It owns no receiver state: classification, backoff and the
// per-retry hook are injected, so every call site shares one loop shape.
type retryExecutor struct {
	clock      clockwork.Clock
	backoff    backoff.Backoff
	maxRetries int
	classify   func(err error) (errCategory, error)
}

// Do executes op until it succeeds, a fatal category surfaces, or the
// retry budget is spent. A budget of maxRetries permits maxRetries+1
// attempts in total.
//
// onRetry runs after every retryable failure, before the backoff delay.
// Returning false aborts the loop silently: that is the clean-stop path
// for a receiver closed from outside mid-retry.
func (e *retryExecutor) Do(ctx context.Context, op func(ctx context.Context) error, onRetry func(attempt int, cause error) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	retried := 0
	for {
		err := op(ctx)
		if err == nil {
			return nil
		}

		category, classified := e.classify(err)
		if category != categoryRetryable {
			return classified
		}

		if onRetry != nil && !onRetry(retried, err) {
			return nil
		}

		retried++
		if retried > e.maxRetries {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, retried, err)
		}

		timer := e.clock.NewTimer(e.backoff.Delay(retried - 1))
		select {
		case <-ctx.Done():
			timer.Stop()

			return ctx.Err()
		case <-timer.Chan():
		}
	}
}
