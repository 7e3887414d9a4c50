// Package rawhub declares the contracts between the partition receiver and
// the wire-level transport. The receiver never sees frames or link credit
// bookkeeping: it constructs receive clients through Transport, borrows
// shared connections from ConnectionPool and gets raw messages pushed into
// its buffer through the OnMessage callback.
package rawhub

import (
	"context"
	"errors"
	"time"
)

// Link property keys attached to every receive link for diagnostics.
const (
	PropertyEpoch       = "hub:epoch"
	PropertyLinkTimeout = "hub:link-timeout-ms"
)

// Capabilities requested from the service at link attach.
const (
	CapabilityGeoReplication = "hub:geo-replication"
	CapabilityRuntimeMetrics = "hub:runtime-metric"
)

// ErrCapabilityUnsupported is returned by a transport when a desired
// capability cannot be satisfied at runtime. It is never retried.
var ErrCapabilityUnsupported = errors.New("rawhub: desired capability unsupported")

type StartKind int8

const (
	StartEarliest StartKind = iota
	StartLatest
	StartAtOffset
)

// StartPosition identifies where in the partition's order reading begins.
// Offset is meaningful only for StartAtOffset; Inclusive reports whether
// the event at Offset itself is included.
type StartPosition struct {
	Kind      StartKind
	Offset    string
	Inclusive bool
}

// PartitionMetadata describes the last event enqueued to the partition, as
// reported by the service when the runtime-metrics capability is granted.
type PartitionMetadata struct {
	SequenceNumber int64
	Offset         string
	EnqueuedAt     time.Time
	RetrievedAt    time.Time
}

// Message is a raw transport message. Arrival order matches the
// partition's total order.
type Message struct {
	SequenceNumber int64
	Offset         string
	PartitionKey   string
	EnqueuedAt     time.Time
	Payload        []byte
	Properties     map[string]string

	// LastEnqueued is nil unless the runtime-metrics capability was
	// requested and granted on the link.
	LastEnqueued *PartitionMetadata
}

type MessageFunc func(msg Message)

// ReceiveClientConfig carries everything a transport needs to build a
// receive link bound to one partition.
type ReceiveClientConfig struct {
	// Source is the partition source path, e.g. "hub/ConsumerGroups/$default/Partitions/0".
	Source string

	Position            StartPosition
	LinkCredit          int
	LinkProperties      map[string]int64
	DesiredCapabilities []string
	IdleTimeout         time.Duration
	KeepAlive           time.Duration
	ClientName          string

	// OnMessage is invoked for every message delivered during PullWork,
	// in partition order, on the caller's goroutine.
	OnMessage MessageFunc
}

// Handler is one receive link. A handler is single-use: once closed it is
// discarded and a new one is constructed for the next open.
type Handler interface {
	Open(ctx context.Context, conn Connection) error

	// Ready reports whether the link finished attaching.
	Ready() (bool, error)

	// PullWork blocks up to the configured idle timeout and delivers zero
	// or more messages through OnMessage.
	PullWork(ctx context.Context, credit int) error

	Close(ctx context.Context) error
}

type Transport interface {
	NewReceiveClient(cfg ReceiveClientConfig) (Handler, error)

	// IsPreempted reports whether err means the link was stolen by a
	// higher owner-level consumer on the same partition.
	IsPreempted(err error) bool
}

// Connection is a shared transport connection. The receiver borrows it
// while a handler is open; its lifetime belongs to the pool.
type Connection interface {
	Endpoint() string
}

// ConnectionPool hands out shared connections keyed by (endpoint, auth).
type ConnectionPool interface {
	GetConnection(ctx context.Context, endpoint, token string) (Connection, error)
}

// TokenProvider produces the credential consumed at handler construction.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}
