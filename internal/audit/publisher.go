package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kevanbtc/cleargate/pkg/requestcontext"
)

// Publisher captures audit events with fail-closed semantics: the store write
// is synchronous and a failure must fail the calling operation. The optional
// Kafka sink is best-effort fan-out for external reporting and never blocks
// or fails the caller; the store remains the source of truth.
type Publisher struct {
	store  Store
	sink   *KafkaSink
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithSink attaches a Kafka sink for asynchronous fan-out.
func WithSink(sink *KafkaSink) Option {
	return func(p *Publisher) { p.sink = sink }
}

// WithLogger sets a logger for sink error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// NewPublisher creates a publisher over an append-only store.
func NewPublisher(store Store, opts ...Option) (*Publisher, error) {
	if store == nil {
		return nil, fmt.Errorf("audit: store is required")
	}
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Emit enriches and persists an event. ID, timestamp, and request id are
// filled when absent so call sites stay terse.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit: event requires an action")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Category == "" {
		event.Category = CategoryOperations
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if err := p.store.Append(ctx, event); err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	if p.sink != nil {
		if err := p.sink.Enqueue(event); err != nil && p.logger != nil {
			p.logger.WarnContext(ctx, "audit sink enqueue failed",
				"action", event.Action, "error", err)
		}
	}
	return nil
}

// List returns the trail for one subject.
func (p *Publisher) List(ctx context.Context, subject string) ([]Event, error) {
	return p.store.ListBySubject(ctx, subject)
}
