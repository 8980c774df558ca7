package audit

import (
	"context"
	"log/slog"
	"sync"
)

// Sink receives audit events. Implementations: InMemorySink for tests and
// single-node deployments, KafkaSink for a durable trail.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher decouples event emission from sink latency. With an async buffer
// events are handed to a worker goroutine; without one they are appended
// inline. Either way Emit never fails the calling operation: sink errors are
// logged and dropped.
type Publisher struct {
	sink   Sink
	logger *slog.Logger

	inbox chan Event
	done  chan struct{}
	once  sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to asynchronous delivery with the
// given channel capacity. A full buffer drops the event rather than blocking
// the request path.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

func NewPublisher(sink Sink, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{sink: sink, logger: logger, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.run()
	}
	return p
}

// Emit records an event. Best-effort by design.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p.inbox == nil {
		if err := p.sink.Append(ctx, event); err != nil {
			p.logger.WarnContext(ctx, "audit append failed", "action", event.Action, "error", err)
		}
		return
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event", "action", event.Action)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.inbox {
		if err := p.sink.Append(context.Background(), event); err != nil {
			p.logger.Warn("audit append failed", "action", event.Action, "error", err)
		}
	}
}

// Close drains the async buffer and waits for the worker to finish.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox == nil {
			return
		}
		close(p.inbox)
		<-p.done
	})
}
