package streamhub

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/streamhub-io/streamhub-go-sdk/internal/receiver"
)

// Option customizes a PartitionConsumer at construction time.
type Option func(cfg *receiver.Config)

// WithStartPosition sets where reading begins. Zero value means the
// earliest available event on the partition.
func WithStartPosition(pos StartPosition) Option {
	return func(cfg *receiver.Config) {
		cfg.Position = pos
	}
}

// WithOwnerLevel makes the consumer exclusive. A consumer carrying a
// higher owner level preempts any active lower-level consumer on the same
// partition and group; the preempted side observes a *PreemptedError.
func WithOwnerLevel(level int64) Option {
	return func(cfg *receiver.Config) {
		cfg.OwnerLevel = &level
	}
}

// WithPrefetch sets the link credit granted to the service per pull
// cycle. Default 300.
func WithPrefetch(n int) Option {
	return func(cfg *receiver.Config) {
		cfg.Prefetch = n
	}
}

// WithIdleTimeout tears the link down service-side after the given period
// without traffic. Zero disables.
func WithIdleTimeout(d time.Duration) Option {
	return func(cfg *receiver.Config) {
		cfg.IdleTimeout = d
	}
}

// WithKeepAlive sets the transport keep-alive interval. Default 30s.
func WithKeepAlive(d time.Duration) Option {
	return func(cfg *receiver.Config) {
		cfg.KeepAlive = d
	}
}

// WithReceiveTimeout is advertised to the service as the link timeout
// property.
func WithReceiveTimeout(d time.Duration) Option {
	return func(cfg *receiver.Config) {
		cfg.ReceiveTimeout = d
	}
}

// WithMaxRetries bounds reconnect attempts per Receive call: a failing
// call makes at most n+1 attempts. Ignored when auto-reconnect is off.
func WithMaxRetries(n int) Option {
	return func(cfg *receiver.Config) {
		cfg.MaxRetries = n
	}
}

// WithAutoReconnect toggles transparent reconnection on retryable
// transport errors. On by default; when off, the first transport error of
// any kind is returned to the caller.
func WithAutoReconnect(enabled bool) Option {
	return func(cfg *receiver.Config) {
		cfg.AutoReconnect = enabled
	}
}

// WithTrackLastEnqueued requests partition watermark metadata on every
// delivered message. Requires the runtime-metrics capability on the
// service side.
func WithTrackLastEnqueued(enabled bool) Option {
	return func(cfg *receiver.Config) {
		cfg.TrackLastEnqueued = enabled
	}
}

// WithConverter replaces the raw-message-to-event conversion step.
func WithConverter(c EventConverter) Option {
	return func(cfg *receiver.Config) {
		cfg.Converter = c
	}
}

// WithEventHandler delivers events one at a time. A nil event signals
// that the receive deadline elapsed with nothing buffered.
func WithEventHandler(fn func(event *Event)) Option {
	return func(cfg *receiver.Config) {
		cfg.OnEvent = fn
	}
}

// WithBatchHandler delivers events in ordered batches.
func WithBatchHandler(fn func(events []*Event)) Option {
	return func(cfg *receiver.Config) {
		cfg.OnEventBatch = fn
	}
}

// WithLogger attaches a structured logger. Consumer name, partition and
// group fields are added automatically.
func WithLogger(l *zap.Logger) Option {
	return func(cfg *receiver.Config) {
		cfg.Logger = l
	}
}

// WithClock substitutes the time source, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(cfg *receiver.Config) {
		cfg.Clock = c
	}
}

// WithRetryBackoff replaces the delay policy applied between reconnect
// attempts.
func WithRetryBackoff(b Backoff) Option {
	return func(cfg *receiver.Config) {
		cfg.Backoff = b
	}
}

// WithMetricsRegisterer registers consumer metrics with reg. Without this
// option metrics are collected but not exported.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(cfg *receiver.Config) {
		cfg.Metrics = receiver.NewMetrics(reg, cfg.Partition)
	}
}

// WithIDGenerator replaces the random-ID source used in the diagnostic
// consumer name, for tests.
func WithIDGenerator(fn func() string) Option {
	return func(cfg *receiver.Config) {
		cfg.NewID = fn
	}
}
