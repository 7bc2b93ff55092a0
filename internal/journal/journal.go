// Package journal records events published on the event bus into the
// service_events table of the relational store.
//
// Bus handlers only enqueue; a single worker drains the queue and writes.
// Events that arrive while the queue is full are dropped and counted. Once the
// worker has stopped, events are refused with ErrJournalStopped.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	sq "github.com/Masterminds/squirrel"

	"github.com/MKhiriev/go-miniservice/internal/eventbus"
	"github.com/MKhiriev/go-miniservice/internal/logger"
	"github.com/MKhiriev/go-miniservice/internal/persistence"
)

// Table is created by the embedded migrations of the host.
const Table = "service_events"

// DefaultBuffer is the queue length used when New gets a non-positive one.
const DefaultBuffer = 256

var (
	ErrNilDB     = errors.New("journal requires a relational db")
	ErrQueueFull = errors.New("journal queue is full")

	ErrJournalStopped = errors.New("journal is stopped")
)

type Journal struct {
	db      *persistence.DB
	queue   chan eventbus.Event
	dropped atomic.Int64

	mu      sync.RWMutex
	stopped bool

	logger *logger.Logger
}

func New(db *persistence.DB, buffer int, log *logger.Logger) (*Journal, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Journal{
		db:     db,
		queue:  make(chan eventbus.Event, buffer),
		logger: log.WithComponent("journal"),
	}, nil
}

func (j *Journal) Name() string { return "journal" }

// Attach subscribes the journal to topics. The returned func unsubscribes
// from all of them.
func (j *Journal) Attach(bus *eventbus.Bus, topics ...string) func() {
	unsubs := make([]func(), 0, len(topics))
	for _, topic := range topics {
		unsubs = append(unsubs, bus.Subscribe(topic, j.enqueue))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (j *Journal) enqueue(_ context.Context, e eventbus.Event) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.stopped {
		return fmt.Errorf("%w: topic %q", ErrJournalStopped, e.Topic)
	}

	select {
	case j.queue <- e:
		return nil
	default:
		j.dropped.Add(1)
		return fmt.Errorf("%w: topic %q", ErrQueueFull, e.Topic)
	}
}

// Dropped returns how many events were refused because the queue was full.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Run writes queued events until ctx is done, then stops accepting events
// and flushes what is left with a background context.
func (j *Journal) Run(ctx context.Context) error {
	j.logger.Info().Msg("journal started")
	for {
		select {
		case e := <-j.queue:
			j.write(ctx, e)
		case <-ctx.Done():
			j.stop()
			j.flush()
			j.logger.Info().Int64("dropped", j.Dropped()).Msg("journal stopped")
			return nil
		}
	}
}

// stop waits for in-flight enqueues, so nothing lands in the queue after
// the final flush.
func (j *Journal) stop() {
	j.mu.Lock()
	j.stopped = true
	j.mu.Unlock()
}

func (j *Journal) flush() {
	for {
		select {
		case e := <-j.queue:
			j.write(context.Background(), e)
		default:
			return
		}
	}
}

func (j *Journal) write(ctx context.Context, e eventbus.Event) {
	if err := j.Record(ctx, e); err != nil {
		j.logger.Err(err).Str("topic", e.Topic).Msg("error recording event")
	}
}

// Record inserts e synchronously.
func (j *Journal) Record(ctx context.Context, e eventbus.Event) error {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("error encoding event payload: %w", err)
	}

	query, args, err := InsertQuery(j.db.Dialect(), e, payload)
	if err != nil {
		return fmt.Errorf("error building insert: %w", err)
	}
	if _, err = j.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error inserting event: %w", err)
	}
	return nil
}

// InsertQuery builds the insert of one event row.
func InsertQuery(dialect persistence.Dialect, e eventbus.Event, payload []byte) (string, []any, error) {
	return sq.Insert(Table).
		Columns("topic", "payload", "occurred_at").
		Values(e.Topic, string(payload), e.Timestamp.UTC()).
		PlaceholderFormat(dialect.Placeholder()).
		ToSql()
}

// Count returns the number of recorded events of topic.
func (j *Journal) Count(ctx context.Context, topic string) (int64, error) {
	query, args, err := sq.Select("COUNT(*)").
		From(Table).
		Where(sq.Eq{"topic": topic}).
		PlaceholderFormat(j.db.Dialect().Placeholder()).
		ToSql()
	if err != nil {
		return 0, err
	}

	var n int64
	if err = j.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting events: %w", err)
	}
	return n, nil
}
