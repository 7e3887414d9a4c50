package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLogBackoffDelayGrowth(t *testing.T) {
	b := New(
		WithSlotDuration(time.Millisecond),
		WithCeiling(3),
		WithJitterLimit(1),
	)

	for _, tt := range []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 1 * time.Millisecond},
		{attempt: 1, want: 2 * time.Millisecond},
		{attempt: 2, want: 4 * time.Millisecond},
		{attempt: 3, want: 8 * time.Millisecond},
		{attempt: 4, want: 8 * time.Millisecond}, // capped by ceiling
		{attempt: 100, want: 8 * time.Millisecond},
		{attempt: -1, want: 1 * time.Millisecond},
	} {
		require.Equal(t, tt.want, b.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestLogBackoffJitterBounds(t *testing.T) {
	b := New(
		WithSlotDuration(time.Second),
		WithCeiling(6),
		WithJitterLimit(0.5),
		WithSeed(42),
	)

	for attempt := 0; attempt < 10; attempt++ {
		full := time.Second * time.Duration(1<<minUint(uint(attempt), 6))
		for i := 0; i < 100; i++ {
			d := b.Delay(attempt)
			require.GreaterOrEqual(t, d, full/2)
			require.LessOrEqual(t, d, full)
		}
	}
}

func TestLogBackoffDefaultSlot(t *testing.T) {
	b := New(WithJitterLimit(1), WithCeiling(1))
	require.Equal(t, time.Second, b.Delay(0))
}
