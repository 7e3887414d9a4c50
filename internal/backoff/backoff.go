package backoff

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Backoff maps a zero-based attempt number to the delay applied before
// the next attempt.
type Backoff interface {
	Delay(attempt int) time.Duration
}

const (
	fastSlot = 5 * time.Millisecond
	slowSlot = 1 * time.Second

	defaultCeiling = 6
)

var (
	// Fast is the delay policy for transient link-level failures.
	Fast = New(WithSlotDuration(fastSlot))

	// Slow is the delay policy for failures that suggest the service is
	// overloaded or the endpoint is unreachable.
	Slow = New(WithSlotDuration(slowSlot))
)

var _ Backoff = (*logBackoff)(nil)

// logBackoff grows delays exponentially per slot up to 2^ceiling slots,
// with a random jitter portion controlled by jitterLimit.
type logBackoff struct {
	slotDuration time.Duration
	ceiling      uint
	jitterLimit  float64

	mu sync.Mutex
	r  *rand.Rand
}

type Option func(b *logBackoff)

func WithSlotDuration(d time.Duration) Option {
	return func(b *logBackoff) {
		b.slotDuration = d
	}
}

func WithCeiling(ceiling uint) Option {
	return func(b *logBackoff) {
		b.ceiling = ceiling
	}
}

// WithJitterLimit fixes the guaranteed portion of each delay. A limit of 1
// disables jitter entirely, which keeps tests deterministic.
func WithJitterLimit(limit float64) Option {
	return func(b *logBackoff) {
		b.jitterLimit = limit
	}
}

func WithSeed(seed int64) Option {
	return func(b *logBackoff) {
		b.r = rand.New(rand.NewSource(seed)) //nolint:gosec
	}
}

func New(opts ...Option) Backoff {
	b := &logBackoff{
		ceiling: defaultCeiling,
		r:       rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	return b
}

func (b *logBackoff) Delay(attempt int) time.Duration {
	s := b.slotDuration
	if s <= 0 {
		s = time.Second
	}
	if attempt < 0 {
		attempt = 0
	}
	n := 1 << minUint(uint(attempt), b.ceiling)
	d := s * time.Duration(n)
	f := time.Duration(math.Min(1, math.Abs(b.jitterLimit)) * float64(d))
	if f == d {
		return f
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return f + time.Duration(b.r.Int63n(int64(d-f)+1))
}

func minUint(a, b uint) uint {
	if a < b {
		return a
	}

	return b
}
