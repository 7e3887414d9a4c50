package receiver

import (
	"time"

	"github.com/streamhub-io/streamhub-go-sdk/internal/rawhub"
)

// PublicEvent is the structured domain event delivered to the caller's
// handler. Events carry the resumable position markers of the partition.
type PublicEvent struct {
	SequenceNumber int64
	Offset         string
	PartitionKey   string
	EnqueuedAt     time.Time
	Payload        []byte
	Properties     map[string]string

	// LastEnqueued carries partition metadata attached by the service to
	// each delivery. Nil unless last-enqueued tracking was enabled at
	// construction.
	LastEnqueued *rawhub.PartitionMetadata
}

// EventConverter turns a raw transport message into a domain event.
type EventConverter interface {
	Convert(msg rawhub.Message) (*PublicEvent, error)
}

// IdentityConverter is the default EventConverter: a field-for-field
// mapping of the raw message.
type IdentityConverter struct{}

func (IdentityConverter) Convert(msg rawhub.Message) (*PublicEvent, error) {
	return &PublicEvent{
		SequenceNumber: msg.SequenceNumber,
		Offset:         msg.Offset,
		PartitionKey:   msg.PartitionKey,
		EnqueuedAt:     msg.EnqueuedAt,
		Payload:        msg.Payload,
		Properties:     msg.Properties,
		LastEnqueued:   msg.LastEnqueued,
	}, nil
}
