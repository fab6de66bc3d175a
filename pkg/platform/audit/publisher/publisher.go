// Package publisher fronts an audit.Store. In sync mode Emit appends
// directly; with WithAsyncBuffer events are queued and a background worker
// persists them, draining the queue on Close.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	audit "vehicle-sanctions/pkg/platform/audit"
	"vehicle-sanctions/pkg/platform/audit/worker"
)

var errBufferFull = errors.New("audit buffer full")

type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	bufferSize int
	mu         sync.RWMutex
	closed     bool
	queue      chan audit.Event
	done       chan struct{}
}

type Option func(*Publisher)

// WithAsyncBuffer queues up to n events for background persistence.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.bufferSize = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.queue = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		w := worker.NewWorker(store, p.queue, p.logger)
		go func() {
			defer close(p.done)
			_ = w.Run(context.Background())
		}()
	}
	return p
}

// Emit prepares the event and persists or queues it.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event = audit.Prepare(ctx, event)

	if p.queue == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return p.store.Append(ctx, event)
	}
	select {
	case p.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errBufferFull
	}
}

func (p *Publisher) List(ctx context.Context, vehicleID string) ([]audit.Event, error) {
	return p.store.ListByVehicle(ctx, vehicleID)
}

// Close stops accepting queued events and waits for the worker to persist
// what is already buffered.
func (p *Publisher) Close() {
	if p.queue == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	<-p.done
}
