package receiver

import "time"

// flushPolicy decides whether the buffered messages are delivered now.
// It is a pure function of buffer occupancy, the batch-size target, the
// deadline anchor of the current receive cycle and the wall clock.
type flushPolicy struct{}

// ShouldFlush reports whether to deliver. The rules, in order:
//
//   - the buffer reached the batch-size target;
//   - no max wait is configured and the buffer is non-empty
//     (immediate delivery mode);
//   - a max wait is configured and the deadline anchored at the first
//     call of this cycle has elapsed (delivering whatever is buffered,
//     possibly nothing).
func (flushPolicy) ShouldFlush(occupancy, maxBatchSize int, started time.Time, maxWait time.Duration, now time.Time) bool {
	switch {
	case occupancy >= maxBatchSize:
		return true
	case maxWait <= 0:
		return occupancy > 0
	default:
		return !now.Before(started.Add(maxWait))
	}
}
