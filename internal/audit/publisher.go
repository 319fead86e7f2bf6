// Package audit keeps an append-only trail of submitted batches.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Store persists events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Sink forwards events to an external consumer.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher writes every event to the store, then fans it out to sinks.
// Sink failures are logged and never fail the caller.
type Publisher struct {
	store  Store
	sinks  []Sink
	logger *slog.Logger
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithSink(sink Sink) Option {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

func NewPublisher(store Store, opts ...Option) (*Publisher, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			p.logger.WarnContext(ctx, "audit sink failed", "batch_id", event.BatchID, "error", err)
		}
	}
	return nil
}

func (p *Publisher) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	return p.store.ListRecent(ctx, limit)
}
