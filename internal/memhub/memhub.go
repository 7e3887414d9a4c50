// Package memhub is a fully in-memory hub transport. It keeps an ordered
// append-only log per partition and implements the receive-side contracts
// end to end, including exclusive owner-level takeover, so consumers can
// be exercised without a service.
package memhub

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/streamhub-io/streamhub-go-sdk/internal/rawhub"
)

type stolenLinkError struct {
	partition  string
	ownerLevel int64
}

func (e *stolenLinkError) Error() string {
	return fmt.Sprintf(
		"memhub: link on partition %q stolen by owner level %d",
		e.partition, e.ownerLevel,
	)
}

// Option customizes a Hub.
type Option func(h *Hub)

// WithClock substitutes the time source used for enqueue timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(h *Hub) {
		h.clock = clock
	}
}

// WithoutRuntimeMetrics makes the hub reject links desiring the
// runtime-metrics capability, mimicking an older service version.
func WithoutRuntimeMetrics() Option {
	return func(h *Hub) {
		h.noRuntimeMetrics = true
	}
}

// Hub is an in-memory multi-partition log. It implements
// rawhub.Transport and rawhub.ConnectionPool; producers feed it through
// Append.
type Hub struct {
	endpoint string
	clock    clockwork.Clock

	noRuntimeMetrics bool

	mu         sync.Mutex
	partitions map[string]*partitionLog
}

type partitionLog struct {
	id       string
	messages []rawhub.Message
	arrived  chan struct{}

	// owner is the active exclusive link, nil when the partition is open
	// to non-exclusive readers.
	owner *receiveLink
}

func New(endpoint string, opts ...Option) *Hub {
	h := &Hub{
		endpoint:   endpoint,
		clock:      clockwork.NewRealClock(),
		partitions: make(map[string]*partitionLog),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	return h
}

// Append adds one message to the end of the partition's log and wakes
// blocked readers. Sequence numbers and offsets are assigned here.
func (h *Hub) Append(partitionID, key string, payload []byte, properties map[string]string) rawhub.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	part := h.partition(partitionID)

	msg := rawhub.Message{
		SequenceNumber: int64(len(part.messages)),
		Offset:         strconv.Itoa(len(part.messages)),
		PartitionKey:   key,
		EnqueuedAt:     h.clock.Now(),
		Payload:        payload,
		Properties:     properties,
	}
	part.messages = append(part.messages, msg)

	close(part.arrived)
	part.arrived = make(chan struct{})

	return msg
}

// PartitionIDs lists partitions that have seen at least one append.
func (h *Hub) PartitionIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.partitions))
	for id := range h.partitions {
		ids = append(ids, id)
	}

	return ids
}

// partition lazily creates the log. Callers hold h.mu.
func (h *Hub) partition(id string) *partitionLog {
	part, ok := h.partitions[id]
	if !ok {
		part = &partitionLog{
			id:      id,
			arrived: make(chan struct{}),
		}
		h.partitions[id] = part
	}

	return part
}

// NewReceiveClient implements rawhub.Transport.
func (h *Hub) NewReceiveClient(cfg rawhub.ReceiveClientConfig) (rawhub.Handler, error) {
	if cfg.OnMessage == nil {
		return nil, errors.New("memhub: receive client without message callback")
	}

	link := &receiveLink{hub: h, cfg: cfg}
	if level, ok := cfg.LinkProperties[rawhub.PropertyEpoch]; ok {
		link.ownerLevel = &level
	}
	for _, capability := range cfg.DesiredCapabilities {
		if capability == rawhub.CapabilityRuntimeMetrics {
			link.wantMetadata = true
		}
	}

	return link, nil
}

// IsPreempted implements rawhub.Transport.
func (h *Hub) IsPreempted(err error) bool {
	var stolen *stolenLinkError

	return errors.As(err, &stolen)
}

// GetConnection implements rawhub.ConnectionPool. Everything shares one
// logical connection per endpoint; only the token is checked.
func (h *Hub) GetConnection(_ context.Context, endpoint, token string) (rawhub.Connection, error) {
	if token == "" {
		return nil, errors.New("memhub: empty token")
	}
	if endpoint != h.endpoint {
		return nil, fmt.Errorf("memhub: unknown endpoint %q", endpoint)
	}

	return memConnection{endpoint: endpoint}, nil
}

type memConnection struct {
	endpoint string
}

func (c memConnection) Endpoint() string {
	return c.endpoint
}

type receiveLink struct {
	hub *Hub
	cfg rawhub.ReceiveClientConfig

	ownerLevel   *int64
	wantMetadata bool

	// Fields below are guarded by hub.mu once the link is open.
	part     *partitionLog
	cursor   int
	ready    bool
	closed   bool
	stolenBy *stolenLinkError
}

// Open implements rawhub.Handler. An exclusive link with a higher owner
// level takes the partition over and marks the previous owner stolen; a
// lower or equal level is rejected immediately.
func (l *receiveLink) Open(_ context.Context, conn rawhub.Connection) error {
	if conn == nil {
		return errors.New("memhub: open without connection")
	}
	if l.wantMetadata && l.hub.noRuntimeMetrics {
		return fmt.Errorf("%w: %s", rawhub.ErrCapabilityUnsupported, rawhub.CapabilityRuntimeMetrics)
	}

	l.hub.mu.Lock()
	defer l.hub.mu.Unlock()

	part := l.hub.partition(partitionFromSource(l.cfg.Source))

	if prev := part.owner; prev != nil && prev != l && !prev.closed {
		switch {
		case l.ownerLevel == nil:
			return &stolenLinkError{partition: part.id, ownerLevel: *prev.ownerLevel}
		case *l.ownerLevel <= *prev.ownerLevel:
			return &stolenLinkError{partition: part.id, ownerLevel: *prev.ownerLevel}
		default:
			prev.stolenBy = &stolenLinkError{partition: part.id, ownerLevel: *l.ownerLevel}
		}
	}
	if l.ownerLevel != nil {
		part.owner = l
	}

	l.part = part
	l.cursor = startCursor(part, l.cfg.Position)
	l.ready = true

	return nil
}

// Ready implements rawhub.Handler.
func (l *receiveLink) Ready() (bool, error) {
	l.hub.mu.Lock()
	defer l.hub.mu.Unlock()

	if l.stolenBy != nil {
		return false, l.stolenBy
	}

	return l.ready && !l.closed, nil
}

// PullWork implements rawhub.Handler. It delivers whatever is already
// buffered past the cursor, up to credit messages; with nothing pending
// it blocks for new appends until the idle timeout or ctx expires.
func (l *receiveLink) PullWork(ctx context.Context, credit int) error {
	if credit <= 0 {
		return nil
	}

	var idle <-chan time.Time
	if l.cfg.IdleTimeout > 0 {
		timer := l.hub.clock.NewTimer(l.cfg.IdleTimeout)
		defer timer.Stop()
		idle = timer.Chan()
	}

	for {
		batch, arrived, err := l.take(credit)
		if err != nil {
			return err
		}
		if len(batch) > 0 {
			for _, msg := range batch {
				l.cfg.OnMessage(msg)
			}

			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
			return nil
		case <-arrived:
		}
	}
}

// take pops up to credit messages past the cursor, or returns the current
// arrival channel to wait on when the log end was reached.
func (l *receiveLink) take(credit int) ([]rawhub.Message, <-chan struct{}, error) {
	l.hub.mu.Lock()
	defer l.hub.mu.Unlock()

	if l.stolenBy != nil {
		return nil, nil, l.stolenBy
	}
	if l.closed || l.part == nil {
		return nil, nil, errors.New("memhub: pull on closed link")
	}

	end := l.cursor + credit
	if end > len(l.part.messages) {
		end = len(l.part.messages)
	}
	if end == l.cursor {
		return nil, l.part.arrived, nil
	}

	batch := make([]rawhub.Message, end-l.cursor)
	copy(batch, l.part.messages[l.cursor:end])
	l.cursor = end

	if l.wantMetadata {
		last := l.part.messages[len(l.part.messages)-1]
		now := l.hub.clock.Now()
		for i := range batch {
			batch[i].LastEnqueued = &rawhub.PartitionMetadata{
				SequenceNumber: last.SequenceNumber,
				Offset:         last.Offset,
				EnqueuedAt:     last.EnqueuedAt,
				RetrievedAt:    now,
			}
		}
	}

	return batch, nil, nil
}

// Close implements rawhub.Handler.
func (l *receiveLink) Close(_ context.Context) error {
	l.hub.mu.Lock()
	defer l.hub.mu.Unlock()

	l.closed = true
	l.ready = false
	if l.part != nil && l.part.owner == l {
		l.part.owner = nil
	}

	return nil
}

func startCursor(part *partitionLog, pos rawhub.StartPosition) int {
	switch pos.Kind {
	case rawhub.StartLatest:
		return len(part.messages)
	case rawhub.StartAtOffset:
		for i, msg := range part.messages {
			if msg.Offset == pos.Offset {
				if pos.Inclusive {
					return i
				}

				return i + 1
			}
		}

		return len(part.messages)
	default:
		return 0
	}
}

// partitionFromSource extracts the trailing partition id from a source
// path like "hub/ConsumerGroups/$default/Partitions/0".
func partitionFromSource(source string) string {
	for i := len(source) - 1; i >= 0; i-- {
		if source[i] == '/' {
			return source[i+1:]
		}
	}

	return source
}
