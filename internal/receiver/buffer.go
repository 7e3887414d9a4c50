package receiver

import (
	"github.com/streamhub-io/streamhub-go-sdk/internal/rawhub"
)

// messageBuffer is an ordered FIFO of raw messages that were pulled from
// the link but not yet delivered to the caller. Insertion order is arrival
// order is partition order; nothing may reorder it.
//
// The buffer is owned by the caller goroutine, same as the receiver.
type messageBuffer struct {
	items []rawhub.Message
	head  int
}

func (b *messageBuffer) Enqueue(m rawhub.Message) {
	b.items = append(b.items, m)
}

func (b *messageBuffer) Dequeue() (rawhub.Message, bool) {
	if b.head >= len(b.items) {
		return rawhub.Message{}, false
	}

	m := b.items[b.head]
	b.items[b.head] = rawhub.Message{}
	b.head++

	if b.head == len(b.items) {
		b.items = b.items[:0]
		b.head = 0
	}

	return m, true
}

func (b *messageBuffer) Len() int {
	return len(b.items) - b.head
}
