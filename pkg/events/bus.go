package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soroforge/soroforge/pkg/async"
	"github.com/soroforge/soroforge/pkg/observability"
)

// Handler consumes envelopes published on the bus. Implementations must
// tolerate concurrent calls and should return quickly; slow work belongs
// behind a queue of their own.
type Handler interface {
	Handle(ctx context.Context, env Envelope) error
}

// HandlerFunc adapts a plain function to the Handler interface
type HandlerFunc func(ctx context.Context, env Envelope) error

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

const handlerTimeout = 30 * time.Second

// Bus fans envelopes out to registered handlers. Publishing is
// non-blocking: when the buffer is full the envelope is dropped and
// counted instead of stalling the producer.
type Bus struct {
	logger  *observability.Logger
	metrics *observability.Metrics

	mu       sync.RWMutex
	handlers []Handler

	ch        chan Envelope
	done      chan struct{}
	pumpDone  chan struct{}
	started   atomic.Bool
	closeOnce sync.Once
	startOnce sync.Once
}

// NewBus creates a bus with the given intake buffer size
func NewBus(buffer int, logger *observability.Logger, metrics *observability.Metrics) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{
		logger:   logger,
		metrics:  metrics,
		ch:       make(chan Envelope, buffer),
		done:     make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
}

// Subscribe registers a handler. Safe to call before or after Start.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish enqueues env for every registered handler. It returns false
// when the bus is shutting down or the buffer is full; the envelope is
// dropped in both cases.
func (b *Bus) Publish(env Envelope) (ok bool) {
	select {
	case <-b.done:
		b.drop(env, "closed")
		return false
	default:
	}

	// The send below races with Close. A send on the closed channel
	// panics, which we convert back into a drop.
	defer func() {
		if r := recover(); r != nil {
			b.drop(env, "closed")
			ok = false
		}
	}()

	select {
	case b.ch <- env:
		if b.metrics != nil {
			b.metrics.EventsEmittedTotal.WithLabelValues(string(env.Event)).Inc()
		}
		return true
	default:
		b.drop(env, "buffer_full")
		return false
	}
}

func (b *Bus) drop(env Envelope, reason string) {
	if b.metrics != nil {
		b.metrics.EventsDroppedTotal.WithLabelValues(reason).Inc()
	}
	if b.logger != nil {
		b.logger.Warnf("dropped event %s (%s): %s", env.ID, env.Event, reason)
	}
}

// Start launches the pump goroutine. Cancelling ctx stops the pump
// without draining; use Close for an orderly drain.
func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		b.started.Store(true)
		go b.pump(ctx)
	})
}

func (b *Bus) pump(ctx context.Context) {
	defer close(b.pumpDone)
	for {
		select {
		case <-ctx.Done():
			return
		case env, open := <-b.ch:
			if !open {
				return
			}
			b.dispatch(env)
		}
	}
}

func (b *Bus) dispatch(env Envelope) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		handler := h
		// Background parent so envelopes drained during shutdown still
		// reach their handlers.
		async.SafeGo(context.Background(), handlerTimeout, fmt.Sprintf("event handler %s", env.Event), func(ctx context.Context) error {
			return handler.Handle(ctx, env)
		})
	}
}

// Close stops intake and waits up to timeout for queued envelopes to be
// handed to handlers. Handlers already running are not waited on.
func (b *Bus) Close(timeout time.Duration) error {
	b.closeOnce.Do(func() {
		close(b.done)
		close(b.ch)
	})

	if !b.started.Load() {
		return nil
	}

	select {
	case <-b.pumpDone:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("event bus close timed out after %v", timeout)
	}
}
