package receiver

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamhub-io/streamhub-go-sdk/internal/rawhub"
)

func TestMessageBufferFIFO(t *testing.T) {
	b := &messageBuffer{}
	require.Equal(t, 0, b.Len())

	for i := 0; i < 100; i++ {
		b.Enqueue(rawhub.Message{SequenceNumber: int64(i), Offset: strconv.Itoa(i)})
	}
	require.Equal(t, 100, b.Len())

	for i := 0; i < 100; i++ {
		m, ok := b.Dequeue()
		require.True(t, ok)
		require.Equal(t, int64(i), m.SequenceNumber)
	}

	_, ok := b.Dequeue()
	require.False(t, ok)
	require.Equal(t, 0, b.Len())
}

func TestMessageBufferInterleaved(t *testing.T) {
	b := &messageBuffer{}

	next := int64(0)
	expect := int64(0)
	push := func(n int) {
		for i := 0; i < n; i++ {
			b.Enqueue(rawhub.Message{SequenceNumber: next})
			next++
		}
	}
	pop := func(n int) {
		for i := 0; i < n; i++ {
			m, ok := b.Dequeue()
			require.True(t, ok)
			require.Equal(t, expect, m.SequenceNumber)
			expect++
		}
	}

	push(3)
	pop(2)
	push(5)
	pop(6)
	require.Equal(t, 0, b.Len())
	push(1)
	pop(1)

	_, ok := b.Dequeue()
	require.False(t, ok)
}

func TestMessageBufferReusesStorageAfterDrain(t *testing.T) {
	b := &messageBuffer{}
	b.Enqueue(rawhub.Message{SequenceNumber: 1})
	b.Enqueue(rawhub.Message{SequenceNumber: 2})

	_, _ = b.Dequeue()
	_, _ = b.Dequeue()
	require.Equal(t, 0, b.head)
	require.Empty(t, b.items)
}
