package receiver

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/streamhub-io/streamhub-go-sdk/internal/backoff"
	"github.com/streamhub-io/streamhub-go-sdk/internal/rawhub"
)

const (
	DefaultPrefetch     = 300
	DefaultMaxBatchSize = 300
	DefaultMaxRetries   = 3
	DefaultKeepAlive    = 30 * time.Second
)

var errMissingDependency = errors.New("receiver: missing required dependency")

// Config carries construction parameters and collaborators for one
// partition receiver. The external assignment component fills it in.
type Config struct {
	// Endpoint is the hub endpoint the connection pool keys on.
	Endpoint string
	// Source is the partition source path passed to the transport.
	Source string
	// Partition is the partition identifier, used for logging, metrics
	// and preemption reporting.
	Partition string
	// ConsumerGroup this receiver reads on behalf of.
	ConsumerGroup string

	// Position is the starting read position. It is rewound to just after
	// the last delivered event on every reconnect.
	Position rawhub.StartPosition

	// OwnerLevel, when set, makes this an exclusive (epoch) receiver.
	OwnerLevel *int64

	Prefetch          int
	IdleTimeout       time.Duration
	ReceiveTimeout    time.Duration
	KeepAlive         time.Duration
	AutoReconnect     bool
	MaxRetries        int
	TrackLastEnqueued bool

	Transport rawhub.Transport
	Pool      rawhub.ConnectionPool
	Tokens    rawhub.TokenProvider
	Converter EventConverter

	// OnEvent receives the converted event in single-delivery mode. A nil
	// event signals that the wait deadline elapsed with nothing buffered.
	OnEvent func(event *PublicEvent)
	// OnEventBatch receives the ordered batch in batch mode.
	OnEventBatch func(events []*PublicEvent)

	Logger  *zap.Logger
	Clock   clockwork.Clock
	Backoff backoff.Backoff
	Metrics *Metrics

	// NewID generates the random part of the diagnostic receiver name.
	// Injectable so tests stay deterministic.
	NewID func() string
}

func (c *Config) validate() error {
	for name, missing := range map[string]bool{
		"transport":       c.Transport == nil,
		"connection pool": c.Pool == nil,
		"token provider":  c.Tokens == nil,
		"event handler":   c.OnEvent == nil && c.OnEventBatch == nil,
	} {
		if missing {
			return fmt.Errorf("%w: %s", errMissingDependency, name)
		}
	}

	return nil
}

func (c *Config) setDefaults() {
	if c.Prefetch <= 0 {
		c.Prefetch = DefaultPrefetch
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = DefaultKeepAlive
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if !c.AutoReconnect {
		c.MaxRetries = 0
	}
	if c.Converter == nil {
		c.Converter = IdentityConverter{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Backoff == nil {
		c.Backoff = backoff.Fast
	}
	if c.Metrics == nil {
		c.Metrics = NewMetrics(nil, c.Partition)
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
}
