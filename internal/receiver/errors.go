package receiver

import (
	"context"
	"errors"
	"fmt"

	"github.com/streamhub-io/streamhub-go-sdk/internal/rawhub"
)

var (
	// ErrClosed is returned by Receive after the receiver was closed.
	ErrClosed = errors.New("receiver: closed")

	// ErrRetriesExhausted wraps the last transport error once the retry
	// budget is spent.
	ErrRetriesExhausted = errors.New("receiver: retry budget exhausted")
)

// PreemptedError reports that the partition link was stolen by a consumer
// with a higher owner level. The receiver must not resume after it.
type PreemptedError struct {
	Partition string
	Err       error
}

func (e *PreemptedError) Error() string {
	return fmt.Sprintf("receiver: partition %q link stolen by higher owner level consumer: %v", e.Partition, e.Err)
}

func (e *PreemptedError) Unwrap() error {
	return e.Err
}

type errCategory int8

const (
	// categoryRetryable - absorbed by the retry executor up to the budget.
	categoryRetryable errCategory = iota
	// categoryFatal - unmet capability or dependency, never retried.
	categoryFatal
	// categoryPreempted - epoch takeover, never retried, no resume.
	categoryPreempted
)

// classifier maps a raised transport failure to a category and to the
// error that should propagate for that category. Preemption detection is
// delegated to the transport, which knows its own wire-level signal.
type classifier struct {
	transport rawhub.Transport
	partition string
}

func (c classifier) Classify(err error) (errCategory, error) {
	switch {
	case errors.Is(err, rawhub.ErrCapabilityUnsupported):
		return categoryFatal, err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Caller-owned cancellation, not a transport fault.
		return categoryFatal, err
	case c.transport.IsPreempted(err):
		return categoryPreempted, &PreemptedError{Partition: c.partition, Err: err}
	default:
		return categoryRetryable, err
	}
}
