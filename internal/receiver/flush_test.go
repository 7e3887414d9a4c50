package receiver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFlushPolicy(t *testing.T) {
	var p flushPolicy
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for _, tt := range []struct {
		name      string
		occupancy int
		maxBatch  int
		maxWait   time.Duration
		elapsed   time.Duration
		want      bool
	}{
		{
			name:      "BatchSizeReached",
			occupancy: 10, maxBatch: 10,
			maxWait: time.Minute, elapsed: 0,
			want: true,
		},
		{
			name:      "BatchSizeExceeded",
			occupancy: 15, maxBatch: 10,
			want: true,
		},
		{
			name:      "ImmediateModeNonEmpty",
			occupancy: 1, maxBatch: 10,
			maxWait: 0,
			want:    true,
		},
		{
			name:      "ImmediateModeEmpty",
			occupancy: 0, maxBatch: 10,
			maxWait: 0,
			want:    false,
		},
		{
			name:      "DeadlineNotElapsed",
			occupancy: 3, maxBatch: 10,
			maxWait: 5 * time.Second, elapsed: 4 * time.Second,
			want: false,
		},
		{
			name:      "DeadlineElapsed",
			occupancy: 3, maxBatch: 10,
			maxWait: 5 * time.Second, elapsed: 5 * time.Second,
			want: true,
		},
		{
			name:      "DeadlineElapsedEmptyBuffer",
			occupancy: 0, maxBatch: 10,
			maxWait: 5 * time.Second, elapsed: 6 * time.Second,
			want: true,
		},
		{
			name:      "BelowTargetBeforeDeadline",
			occupancy: 9, maxBatch: 10,
			maxWait: time.Hour, elapsed: time.Second,
			want: false,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ShouldFlush(tt.occupancy, tt.maxBatch, start, tt.maxWait, start.Add(tt.elapsed))
			require.Equal(t, tt.want, got)
		})
	}
}
