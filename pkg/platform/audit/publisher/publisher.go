// Package publisher emits audit events to a configured sink.
//
// The default mode is synchronous: Emit blocks until the sink write succeeds,
// which gives compliance events fail-closed semantics. WithAsyncBuffer opts
// into buffered background delivery for operational events where losing an
// event on crash is acceptable.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	audit "fecguard/pkg/platform/audit"
)

// Publisher routes audit events to a sink (memory store, Kafka, ...).
type Publisher struct {
	sink   audit.Store
	logger *slog.Logger

	inbox  chan audit.Event
	done   chan struct{}
	closed sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for delivery error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAsyncBuffer switches Emit to buffered background delivery with the
// given channel capacity.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// NewPublisher creates a publisher writing to the given sink.
func NewPublisher(sink audit.Store, opts ...Option) *Publisher {
	p := &Publisher{sink: sink, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.run()
	}
	return p
}

// Emit records an audit event. In synchronous mode the error reflects the
// sink write; in async mode a full buffer drops the event and reports it via
// the logger rather than blocking the business operation.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit event requires Action")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.inbox == nil {
		return p.sink.Append(ctx, event)
	}

	select {
	case p.inbox <- event:
		return nil
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, event dropped",
				"action", event.Action,
				"donor_id", event.DonorID,
			)
		}
		return nil
	}
}

// Close drains the async buffer and stops the background worker.
func (p *Publisher) Close() {
	p.closed.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			<-p.done
		}
	})
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.inbox {
		if err := p.sink.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("audit event delivery failed",
				"action", event.Action,
				"error", err,
			)
		}
	}
}
