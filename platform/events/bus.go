package events

import (
	"context"
	"sync"
	"time"

	"leadmarket_backend/platform/logger"
)

const defaultHandlerTimeout = 5 * time.Second

// InMemoryBus dispatches events to handlers registered in the same process.
type InMemoryBus struct {
	mu             sync.RWMutex
	handlers       map[string][]Handler
	log            *logger.Logger
	handlerTimeout time.Duration
	wg             sync.WaitGroup
}

// NewInMemoryBus creates an event bus with the default per-handler timeout.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return NewInMemoryBusWithTimeout(log, defaultHandlerTimeout)
}

// NewInMemoryBusWithTimeout creates an event bus whose async handlers are
// cancelled after timeout.
func NewInMemoryBusWithTimeout(log *logger.Logger, timeout time.Duration) *InMemoryBus {
	if timeout <= 0 {
		timeout = defaultHandlerTimeout
	}
	return &InMemoryBus{
		handlers:       make(map[string][]Handler),
		log:            log,
		handlerTimeout: timeout,
	}
}

// Subscribe registers a handler for eventName.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish runs every handler on its own goroutine and returns immediately.
// Handler errors are logged and never reach the publisher.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	handlers := b.handlersFor(event.EventName())
	if len(handlers) == 0 {
		return
	}

	// Detach from the request: the publisher's context is usually cancelled
	// as soon as the response is written.
	base := context.WithoutCancel(ctx)

	for _, h := range handlers {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			hctx, cancel := context.WithTimeout(base, b.handlerTimeout)
			defer cancel()

			defer func() {
				if r := recover(); r != nil {
					b.log.Error("event handler panicked", "event", event.EventName(), "panic", r)
				}
			}()

			if err := h.Handle(hctx, event); err != nil {
				b.log.Error("event handler failed", "event", event.EventName(), "error", err)
			}
		}(h)
	}
}

// Wait blocks until all in-flight async handlers have returned.
func (b *InMemoryBus) Wait() {
	b.wg.Wait()
}

func (b *InMemoryBus) handlersFor(eventName string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := b.handlers[eventName]
	out := make([]Handler, len(handlers))
	copy(out, handlers)
	return out
}
