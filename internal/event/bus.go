package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ajirohack/API/internal/core/domain"
)

const (
	defaultHistorySize      = 100
	defaultSubscriberBuffer = 100
)

// Bus is a topic-based in-process publish/subscribe hub with bounded
// per-topic history for late-joiner catch-up.
//
// Subscribers are bounded channels rather than callbacks: a slow consumer
// drops its own messages instead of stalling delivery to everyone else.
// Per topic, both live delivery and Poll observe publish order; no ordering
// holds across topics.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]map[string]*subscriber
	history     map[string][]domain.EventMessage
	historySize int
	buffer      int
	logger      *zap.Logger
	now         func() time.Time
}

type subscriber struct {
	id string
	ch chan domain.EventMessage
}

// Option configures the bus.
type Option func(*Bus)

// WithHistorySize caps the per-topic history retained for Poll.
func WithHistorySize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.historySize = n
		}
	}
}

// WithSubscriberBuffer sets the per-subscriber channel capacity.
func WithSubscriberBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithLogger attaches a logger for dropped-message reporting.
func WithLogger(log *zap.Logger) Option {
	return func(b *Bus) {
		if log != nil {
			b.logger = log
		}
	}
}

// WithClock overrides the bus clock for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(b *Bus) {
		if clock != nil {
			b.now = clock
		}
	}
}

// NewBus constructs an event bus. Each caller owns its instance; there is
// no package-level default.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subscribers: make(map[string]map[string]*subscriber),
		history:     make(map[string][]domain.EventMessage),
		historySize: defaultHistorySize,
		buffer:      defaultSubscriberBuffer,
		logger:      zap.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish appends the message to the topic history, evicting the oldest
// entry beyond capacity, then delivers it to every current subscriber.
// Returns the enriched message.
func (b *Bus) Publish(topic string, payload map[string]any) domain.EventMessage {
	msg := domain.EventMessage{
		ID:        uuid.NewString(),
		Topic:     topic,
		Timestamp: b.now(),
		Payload:   payload,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entries := append(b.history[topic], msg)
	if len(entries) > b.historySize {
		entries = entries[len(entries)-b.historySize:]
	}
	b.history[topic] = entries

	for _, sub := range b.subscribers[topic] {
		select {
		case sub.ch <- msg:
		default:
			// Full buffer means this consumer stopped keeping up. Drop for
			// it alone; the rest of the fan-out proceeds.
			b.logger.Warn("event subscriber buffer full, dropping message",
				zap.String("topic", topic),
				zap.String("subscriber", sub.id),
				zap.String("event_id", msg.ID),
			)
		}
	}

	return msg
}

// Subscribe registers a new subscriber for the topic. The returned cancel
// function removes the subscription and closes the channel; calling it more
// than once is safe.
func (b *Bus) Subscribe(topic string) (<-chan domain.EventMessage, func()) {
	sub := &subscriber{
		id: uuid.NewString(),
		ch: make(chan domain.EventMessage, b.buffer),
	}

	b.mu.Lock()
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[string]*subscriber)
	}
	b.subscribers[topic][sub.id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if subs, ok := b.subscribers[topic]; ok {
				delete(subs, sub.id)
				if len(subs) == 0 {
					delete(b.subscribers, topic)
				}
			}
			b.mu.Unlock()
			close(sub.ch)
		})
	}

	return sub.ch, cancel
}

// Poll returns the retained history for the topic in publish order. With a
// non-zero since, only messages strictly newer than it are returned — the
// catch-up path for clients that joined after publication.
func (b *Bus) Poll(topic string, since time.Time) []domain.EventMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.history[topic]
	if len(entries) == 0 {
		return nil
	}

	if since.IsZero() {
		out := make([]domain.EventMessage, len(entries))
		copy(out, entries)
		return out
	}

	var out []domain.EventMessage
	for _, msg := range entries {
		if msg.Timestamp.After(since) {
			out = append(out, msg)
		}
	}
	return out
}

// ClearHistory drops retained history for the named topics, or for every
// topic when none are named.
func (b *Bus) ClearHistory(topics ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(topics) == 0 {
		b.history = make(map[string][]domain.EventMessage)
		return
	}
	for _, topic := range topics {
		delete(b.history, topic)
	}
}
