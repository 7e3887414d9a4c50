// Package streamhub is the consumption-side client for one partition of a
// log-structured message hub. A PartitionConsumer keeps a resumable read
// position, pulls raw messages over a transport-managed link, buffers
// them, and delivers them to a caller-supplied handler one at a time or
// in bounded batches.
//
// The consumer is pull-driven and single-threaded: the caller makes
// progress by invoking Receive repeatedly, and all consumer state belongs
// to that one calling goroutine. Calling Receive or Close concurrently is
// not supported.
//
// The wire protocol, connection sharing and token acquisition live behind
// the Transport, ConnectionPool and TokenProvider interfaces supplied at
// construction.
package streamhub

import (
	"context"

	"github.com/streamhub-io/streamhub-go-sdk/internal/backoff"
	"github.com/streamhub-io/streamhub-go-sdk/internal/rawhub"
	"github.com/streamhub-io/streamhub-go-sdk/internal/receiver"
)

type (
	// Event is the structured domain event delivered to handlers.
	Event = receiver.PublicEvent

	// EventConverter turns raw transport messages into Events.
	EventConverter = receiver.EventConverter

	// ReceiveOptions parameterizes one Receive call group.
	ReceiveOptions = receiver.ReceiveOptions

	// PreemptedError reports an epoch takeover by a higher owner level.
	PreemptedError = receiver.PreemptedError

	// Backoff is the delay policy applied between retry attempts.
	Backoff = backoff.Backoff

	// Transport collaborator contracts, implemented by wire-level packages.
	Transport           = rawhub.Transport
	Handler             = rawhub.Handler
	Connection          = rawhub.Connection
	ConnectionPool      = rawhub.ConnectionPool
	TokenProvider       = rawhub.TokenProvider
	RawMessage          = rawhub.Message
	ReceiveClientConfig = rawhub.ReceiveClientConfig
	PartitionMetadata   = rawhub.PartitionMetadata

	// StartPosition identifies where reading begins on the partition.
	StartPosition = rawhub.StartPosition
	StartKind     = rawhub.StartKind
)

const (
	StartEarliest = rawhub.StartEarliest
	StartLatest   = rawhub.StartLatest
	StartAtOffset = rawhub.StartAtOffset
)

var (
	// ErrClosed is returned by Receive after Close.
	ErrClosed = receiver.ErrClosed

	// ErrRetriesExhausted wraps the last transport error once the retry
	// budget is spent.
	ErrRetriesExhausted = receiver.ErrRetriesExhausted

	// ErrCapabilityUnsupported marks an unmet transport capability. It is
	// never retried.
	ErrCapabilityUnsupported = rawhub.ErrCapabilityUnsupported
)

// PartitionAddress locates the partition this consumer reads and the
// consumer group it reads on behalf of.
type PartitionAddress struct {
	// Endpoint keys the shared connection in the pool.
	Endpoint string
	// Source is the partition source path handed to the transport.
	Source string
	// Partition is the partition identifier.
	Partition string
	// ConsumerGroup names the group membership.
	ConsumerGroup string
}

// PartitionConsumer reads one partition as a member of one consumer
// group. Construct with NewPartitionConsumer; each instance is bound to
// its starting position and owner level for life, a fresh instance is
// needed to re-read from elsewhere.
type PartitionConsumer struct {
	r *receiver.PartitionReceiver
}

// NewPartitionConsumer builds a consumer. A handler must be supplied with
// WithEventHandler and/or WithBatchHandler; the zero start position means
// the earliest available event.
func NewPartitionConsumer(
	addr PartitionAddress,
	transport Transport,
	pool ConnectionPool,
	tokens TokenProvider,
	opts ...Option,
) (*PartitionConsumer, error) {
	cfg := receiver.Config{
		Endpoint:      addr.Endpoint,
		Source:        addr.Source,
		Partition:     addr.Partition,
		ConsumerGroup: addr.ConsumerGroup,
		Transport:     transport,
		Pool:          pool,
		Tokens:        tokens,
		AutoReconnect: true,
		MaxRetries:    receiver.DefaultMaxRetries,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	r, err := receiver.New(cfg)
	if err != nil {
		return nil, err
	}

	return &PartitionConsumer{r: r}, nil
}

// Receive runs one receive cycle and invokes the handler when the flush
// policy allows. See ReceiveOptions for batch and deadline semantics.
func (c *PartitionConsumer) Receive(ctx context.Context, opts ReceiveOptions) error {
	return c.r.Receive(ctx, opts)
}

// Close tears the consumer down permanently. Idempotent.
func (c *PartitionConsumer) Close(ctx context.Context) error {
	return c.r.Close(ctx)
}

// Name returns the diagnostic consumer name, useful for correlating logs
// with service-side link diagnostics.
func (c *PartitionConsumer) Name() string {
	return c.r.Name()
}
