// Package eventbus is an in-process publish/subscribe bus. Delivery is
// synchronous and at most once: Publish calls every handler subscribed to
// the topic, in subscription order, before returning. Nothing is persisted.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MKhiriev/go-miniservice/internal/logger"
)

// ErrHandlerPanic is wrapped when a handler panics during Publish.
var ErrHandlerPanic = errors.New("event handler panicked")

// Event is a message published on a topic.
type Event struct {
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Handler processes one event.
type Handler func(ctx context.Context, e Event) error

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]subscription
	nextID uint64
	log    *logger.Logger
}

func New(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &Bus{
		topics: make(map[string][]subscription),
		log:    log.WithComponent("eventbus"),
	}
}

// Subscribe adds h to topic and returns a func that removes it. Calling the
// returned func more than once is a no-op.
func (b *Bus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscription{id: id, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(topic, id) })
	}
}

func (b *Bus) unsubscribe(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	for i, s := range subs {
		if s.id == id {
			b.topics[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
}

// Publish delivers e to the topic's current subscribers. Handler errors and
// recovered panics are joined into the returned error; every handler runs
// regardless of earlier failures. A zero Timestamp is set to now.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := append([]subscription(nil), b.topics[e.Topic]...)
	b.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := deliver(ctx, s.handler, e); err != nil {
			errs = append(errs, err)
		}
	}

	b.log.Debug().
		Str("topic", e.Topic).
		Int("subscribers", len(subs)).
		Int("failed", len(errs)).
		Msg("event published")

	return errors.Join(errs...)
}

// SubscriberCount returns the number of handlers subscribed to topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func deliver(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: topic %q: %v", ErrHandlerPanic, e.Topic, r)
		}
	}()
	return h(ctx, e)
}
