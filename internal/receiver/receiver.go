// Package receiver implements the consumption-side engine for a single
// partition: a resumable read position, a handler lifecycle state
// machine, a bounded-retry wrapper around the blocking pull primitive,
// and a buffer with a batch/deadline flush policy.
//
// A receiver is driven entirely by its caller: there is no background
// goroutine, progress happens only inside Receive. All state is owned by
// that single caller; invoking Receive or Close concurrently from several
// goroutines is not supported.
package receiver

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/streamhub-io/streamhub-go-sdk/internal/rawhub"
)

//nolint:lll
//go:generate mockgen -destination rawhub_mock_test.go -package receiver -write_package_comment=false github.com/streamhub-io/streamhub-go-sdk/internal/rawhub Handler,Transport,Connection,ConnectionPool,TokenProvider

// ReceiveOptions parameterizes one Receive call group.
type ReceiveOptions struct {
	// Batch selects delivery of an ordered slice instead of one event at
	// a time.
	Batch bool

	// MaxBatchSize bounds a batch flush and is the buffer top-up target.
	// Zero means DefaultMaxBatchSize.
	MaxBatchSize int

	// MaxWait bounds how long a receive cycle accumulates before flushing
	// whatever is buffered. Zero means immediate delivery mode: flush as
	// soon as the buffer is non-empty.
	MaxWait time.Duration
}

// PartitionReceiver reads one partition on behalf of a consumer group
// member. Use New, then call Receive repeatedly; Close tears the receiver
// down permanently.
type PartitionReceiver struct {
	cfg   Config
	log   *zap.Logger
	clock clockwork.Clock
	name  string

	state    lifecycle
	handler  rawhub.Handler
	buffer   messageBuffer
	flush    flushPolicy
	retry    *retryExecutor
	classify classifier

	position     rawhub.StartPosition
	lastReceived *PublicEvent
	receiveStart time.Time

	linkProperties map[string]int64
	capabilities   []string
	metrics        *Metrics
}

func New(cfg Config) (*PartitionReceiver, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	r := &PartitionReceiver{
		cfg:      cfg,
		clock:    cfg.Clock,
		name:     fmt.Sprintf("receiver-%s-partition%s", cfg.NewID(), cfg.Partition),
		position: cfg.Position,
		metrics:  cfg.Metrics,
		classify: classifier{transport: cfg.Transport, partition: cfg.Partition},
	}
	r.log = cfg.Logger.With(
		zap.String("name", r.name),
		zap.String("partition", cfg.Partition),
		zap.String("group", cfg.ConsumerGroup),
	)
	r.retry = &retryExecutor{
		clock:      r.clock,
		backoff:    cfg.Backoff,
		maxRetries: cfg.MaxRetries,
		classify:   r.classify.Classify,
	}

	r.linkProperties = map[string]int64{
		rawhub.PropertyLinkTimeout: cfg.ReceiveTimeout.Milliseconds(),
	}
	if cfg.OwnerLevel != nil {
		r.linkProperties[rawhub.PropertyEpoch] = *cfg.OwnerLevel
	}

	r.capabilities = []string{rawhub.CapabilityGeoReplication}
	if cfg.TrackLastEnqueued {
		r.capabilities = append(r.capabilities, rawhub.CapabilityRuntimeMetrics)
	}

	return r, nil
}

// Name returns the diagnostic receiver name.
func (r *PartitionReceiver) Name() string {
	return r.name
}

// Receive runs one cycle: top up the buffer with a retried pull if it is
// below the batch-size target, then flush to the handler if the flush
// policy allows. When the policy does not allow yet, Receive returns nil
// without invoking the handler and the caller is expected to call again.
//
// Retryable transport errors are absorbed up to the retry budget;
// capability errors, preemption and an exhausted budget propagate and
// abort the call. Buffered messages survive a failed call and are
// delivered by the next successful one.
func (r *PartitionReceiver) Receive(ctx context.Context, opts ReceiveOptions) error {
	if r.state.Closed() {
		return ErrClosed
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = DefaultMaxBatchSize
	}
	if opts.Batch && r.cfg.OnEventBatch == nil {
		return fmt.Errorf("%w: batch event handler", errMissingDependency)
	}
	if !opts.Batch && r.cfg.OnEvent == nil {
		return fmt.Errorf("%w: event handler", errMissingDependency)
	}

	if r.receiveStart.IsZero() {
		r.receiveStart = r.clock.Now()
	}

	if r.buffer.Len() < opts.MaxBatchSize {
		if err := r.retry.Do(ctx, r.pullCycle, r.onRetry); err != nil {
			return err
		}
	}

	if !r.flush.ShouldFlush(r.buffer.Len(), opts.MaxBatchSize, r.receiveStart, opts.MaxWait, r.clock.Now()) {
		return nil
	}

	defer func() {
		r.receiveStart = time.Time{}
	}()

	if opts.Batch {
		return r.flushBatch(opts.MaxBatchSize)
	}

	return r.flushSingle()
}

// Close tears down the handler and moves the receiver to its terminal
// state. It is idempotent; Receive permanently fails afterwards.
func (r *PartitionReceiver) Close(ctx context.Context) error {
	if r.state.Closed() {
		return nil
	}

	var err error
	if r.handler != nil {
		err = r.handler.Close(ctx)
		r.handler = nil
	}
	_ = r.state.To(StateClosed)

	r.log.Info("receiver closed")

	return err
}

// pullCycle is the retried operation: ensure the handler is open and
// ready, then run one blocking pull. A not-yet-ready link ends the cycle
// without error; readiness is probed again on the next call.
func (r *PartitionReceiver) pullCycle(ctx context.Context) error {
	ready, err := r.ensureOpen(ctx)
	if err != nil {
		return err
	}
	if !ready {
		return nil
	}

	return r.handler.PullWork(ctx, r.cfg.Prefetch)
}

// ensureOpen drives the lifecycle toward StateReady. Each reopen builds
// the handler from scratch at the current position; the prior handler, if
// any, is closed first.
func (r *PartitionReceiver) ensureOpen(ctx context.Context) (bool, error) {
	if r.state.Closed() {
		return false, ErrClosed
	}

	if !r.state.Running() {
		if r.handler != nil {
			_ = r.handler.Close(ctx)
			r.handler = nil
		}
		if err := r.state.To(StateOpening); err != nil {
			return false, err
		}

		handler, err := r.openHandler(ctx)
		if err != nil {
			_ = r.state.To(StateIdle)

			return false, err
		}

		r.handler = handler
		if err := r.state.To(StateRunning); err != nil {
			return false, err
		}
		r.metrics.opens.Inc()
		r.log.Debug("handler opened", zap.String("position", r.position.Offset))
	}

	if r.state.Current() == StateRunning {
		ready, err := r.handler.Ready()
		if err != nil {
			return false, err
		}
		if ready {
			if err := r.state.To(StateReady); err != nil {
				return false, err
			}
		}
	}

	return r.state.Current() == StateReady, nil
}

func (r *PartitionReceiver) openHandler(ctx context.Context) (rawhub.Handler, error) {
	token, err := r.cfg.Tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}

	handler, err := r.cfg.Transport.NewReceiveClient(rawhub.ReceiveClientConfig{
		Source:              r.cfg.Source,
		Position:            r.position,
		LinkCredit:          r.cfg.Prefetch,
		LinkProperties:      r.linkProperties,
		DesiredCapabilities: r.capabilities,
		IdleTimeout:         r.cfg.IdleTimeout,
		KeepAlive:           r.cfg.KeepAlive,
		ClientName:          r.name,
		OnMessage:           r.onMessage,
	})
	if err != nil {
		return nil, fmt.Errorf("create receive client: %w", err)
	}

	conn, err := r.cfg.Pool.GetConnection(ctx, r.cfg.Endpoint, token)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	if err := handler.Open(ctx, conn); err != nil {
		return nil, fmt.Errorf("open handler: %w", err)
	}

	return handler, nil
}

// onMessage is the push-style callback the transport invokes during
// PullWork. It only appends: the flush decision is a separate stage.
func (r *PartitionReceiver) onMessage(m rawhub.Message) {
	r.buffer.Enqueue(m)
	r.metrics.messagesBuffered.Inc()
	r.metrics.bufferOccupancy.Set(float64(r.buffer.Len()))
}

// onRetry prepares the next attempt after a retryable failure: abort
// silently when the receiver was closed from outside, otherwise tear the
// handler down so the next attempt reopens from scratch, rewound to just
// after the last delivered event.
func (r *PartitionReceiver) onRetry(attempt int, cause error) bool {
	if r.state.Closed() {
		return false
	}

	if r.handler != nil {
		_ = r.handler.Close(context.Background())
		r.handler = nil
	}
	_ = r.state.To(StateIdle)

	if r.lastReceived != nil {
		r.position = rawhub.StartPosition{
			Kind:   rawhub.StartAtOffset,
			Offset: r.lastReceived.Offset,
		}
	}

	r.metrics.retries.Inc()
	r.log.Warn("pull cycle failed, will retry",
		zap.Int("attempt", attempt),
		zap.String("position", r.position.Offset),
		zap.Error(cause),
	)

	return true
}

func (r *PartitionReceiver) flushBatch(maxBatchSize int) error {
	n := r.buffer.Len()
	if n > maxBatchSize {
		n = maxBatchSize
	}

	events := make([]*PublicEvent, 0, n)
	for i := 0; i < n; i++ {
		event, err := r.nextEvent()
		if err != nil {
			return err
		}
		events = append(events, event)
	}

	r.cfg.OnEventBatch(events)
	r.metrics.flushes.WithLabelValues("batch").Inc()

	return nil
}

func (r *PartitionReceiver) flushSingle() error {
	if r.buffer.Len() == 0 {
		// Deadline elapsed with nothing buffered: the nil event tells the
		// caller the wait timed out without data.
		r.cfg.OnEvent(nil)
		r.metrics.flushes.WithLabelValues("single").Inc()

		return nil
	}

	event, err := r.nextEvent()
	if err != nil {
		return err
	}

	r.cfg.OnEvent(event)
	r.metrics.flushes.WithLabelValues("single").Inc()

	return nil
}

// nextEvent dequeues and converts one message, advancing the
// last-received cursor used for resume after failure.
func (r *PartitionReceiver) nextEvent() (*PublicEvent, error) {
	m, ok := r.buffer.Dequeue()
	if !ok {
		panic("receiver: nextEvent on empty buffer")
	}

	event, err := r.cfg.Converter.Convert(m)
	if err != nil {
		return nil, fmt.Errorf("convert message at offset %q: %w", m.Offset, err)
	}

	if ce := r.log.Check(zap.DebugLevel, "received event"); ce != nil {
		ce.Write(
			zap.Int64("seq-num", event.SequenceNumber),
			zap.String("offset", event.Offset),
			zap.String("partition-key", event.PartitionKey),
		)
	}

	r.lastReceived = event
	r.metrics.eventsDelivered.Inc()
	r.metrics.bufferOccupancy.Set(float64(r.buffer.Len()))

	return event, nil
}
