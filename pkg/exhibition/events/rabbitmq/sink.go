// Package rabbitmq publishes exhibition lifecycle events to RabbitMQ.
//
// Every event is a persistent JSON message sent through the default exchange
// to a single durable queue. Publish failures are logged and returned; the
// service logs them again and never fails the operation that produced the
// event.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tendant/simple-exhibition/pkg/exhibition"
)

// DefaultQueue is the queue events are published to when none is configured.
const DefaultQueue = "exhibition.events"

// Event types
const (
	EventExhibitionCreated = "exhibition.created"
	EventExhibitionUpdated = "exhibition.updated"
	EventExhibitionDeleted = "exhibition.deleted"
	EventBookDeleted       = "book.deleted"
	EventAssetOrphaned     = "asset.orphaned"
)

// Event is the JSON body of a published message.
type Event struct {
	Type          string                 `json:"type"`
	OccurredAt    time.Time              `json:"occurred_at"`
	ExhibitionID  *uuid.UUID             `json:"exhibition_id,omitempty"`
	Exhibition    *exhibition.Exhibition `json:"exhibition,omitempty"`
	BookID        *uuid.UUID             `json:"book_id,omitempty"`
	RemovedBlocks *int                   `json:"removed_blocks,omitempty"`
	Asset         exhibition.AssetRef    `json:"asset,omitempty"`
	Cause         string                 `json:"cause,omitempty"`
}

// Publisher is the subset of *amqp.Channel the sink uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Sink implements exhibition.EventSink over an AMQP channel.
type Sink struct {
	mu     sync.Mutex
	pub    Publisher
	queue  string
	logger *slog.Logger
	now    func() time.Time
	close  func() error
}

// Option configures a Sink
type Option func(*Sink)

// WithQueue overrides DefaultQueue
func WithQueue(queue string) Option {
	return func(s *Sink) {
		s.queue = queue
	}
}

// WithLogger sets the logger publish failures are reported to
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

// WithClock overrides the event timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Sink) {
		s.now = now
	}
}

// Dial connects to the broker at url, opens a channel and declares the
// durable event queue.
func Dial(url string, opts ...Option) (*Sink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}

	s := NewSink(ch, opts...)
	if _, err := ch.QueueDeclare(
		s.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: queue declare failed: %w", err)
	}

	s.close = func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return s, nil
}

// NewSink wraps an already open publisher. The queue must exist.
func NewSink(pub Publisher, opts ...Option) *Sink {
	s := &Sink{
		pub:    pub,
		queue:  DefaultQueue,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the channel and connection opened by Dial
func (s *Sink) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func (s *Sink) ExhibitionCreated(ctx context.Context, e *exhibition.Exhibition) error {
	return s.publish(ctx, Event{Type: EventExhibitionCreated, ExhibitionID: &e.ID, Exhibition: e})
}

func (s *Sink) ExhibitionUpdated(ctx context.Context, e *exhibition.Exhibition) error {
	return s.publish(ctx, Event{Type: EventExhibitionUpdated, ExhibitionID: &e.ID, Exhibition: e})
}

func (s *Sink) ExhibitionDeleted(ctx context.Context, id uuid.UUID) error {
	return s.publish(ctx, Event{Type: EventExhibitionDeleted, ExhibitionID: &id})
}

func (s *Sink) BookDeleted(ctx context.Context, id uuid.UUID, removedBlocks int) error {
	return s.publish(ctx, Event{Type: EventBookDeleted, BookID: &id, RemovedBlocks: &removedBlocks})
}

func (s *Sink) AssetOrphaned(ctx context.Context, ref exhibition.AssetRef, cause error) error {
	ev := Event{Type: EventAssetOrphaned, Asset: ref}
	if cause != nil {
		ev.Cause = cause.Error()
	}
	return s.publish(ctx, ev)
}

func (s *Sink) publish(ctx context.Context, ev Event) error {
	ev.OccurredAt = s.now()
	body, err := json.Marshal(ev)
	if err != nil {
		s.logger.ErrorContext(ctx, "rabbitmq: marshal event failed", "type", ev.Type, "err", err)
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt,
		Type:         ev.Type,
		Body:         body,
	}

	// channels are not safe for concurrent publishing
	s.mu.Lock()
	err = s.pub.PublishWithContext(ctx,
		"",      // default exchange
		s.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		msg,
	)
	s.mu.Unlock()
	if err != nil {
		s.logger.ErrorContext(ctx, "rabbitmq: publish failed", "type", ev.Type, "queue", s.queue, "err", err)
		return err
	}
	return nil
}
