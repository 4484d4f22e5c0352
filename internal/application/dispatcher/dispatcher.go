package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/event"
)

// Dispatcher routes committed invoice events to in-process subscribers.
// Handlers never influence the transition that produced the event.
type Dispatcher interface {
	// Subscribe registers a handler for an event type
	Subscribe(eventType event.Type, handler Handler)

	// SubscribeNamed registers a handler with a name for debugging
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// Dispatch sends event to all registered handlers synchronously.
	// Returns first error encountered (handlers run in order)
	Dispatch(ctx context.Context, evt *event.InvoiceEvent) error

	// DispatchAsync sends event to handlers asynchronously
	DispatchAsync(ctx context.Context, evt *event.InvoiceEvent)

	// ListHandlers returns registered handlers for an event type
	ListHandlers(eventType event.Type) []HandlerInfo

	// Close shuts down the dispatcher and waits for async handlers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	// mu guards handlers and closed; async dispatch calls wg.Add under it
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo
	closed   bool
	logger   Logger

	wg sync.WaitGroup
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers: make(map[event.Type][]HandlerInfo),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Subscribe registers a handler for an event type with an auto-generated name
func (d *eventDispatcher) Subscribe(eventType event.Type, handler Handler) {
	d.mu.RLock()
	name := fmt.Sprintf("%s-handler-%d", eventType, len(d.handlers[eventType]))
	d.mu.RUnlock()

	d.SubscribeNamed(eventType, name, handler)
}

// SubscribeNamed registers a handler with a specific name
func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	d.handlers[eventType] = append(d.handlers[eventType], HandlerInfo{
		Name:      name,
		EventType: eventType,
		Handler:   handler,
	})
	d.mu.Unlock()

	if d.logger != nil {
		d.logger.Info("Handler registered", "event_type", eventType, "handler_name", name)
	}
}

// Dispatch sends event to all registered handlers synchronously
func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.InvoiceEvent) error {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return fmt.Errorf("dispatcher is closed")
	}

	for _, info := range d.snapshot(evt.Type) {
		if err := d.safeExecute(ctx, evt, info); err != nil {
			d.logHandlerError("Handler error", evt, info, err)
			return fmt.Errorf("handler %s failed: %w", info.Name, err)
		}
	}

	return nil
}

// DispatchAsync sends event to handlers asynchronously.
// The handlers get a context detached from the caller's cancellation.
func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.InvoiceEvent) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		if d.logger != nil {
			d.logger.Error("Cannot dispatch async event, dispatcher is closed",
				"event_type", evt.Type,
				"invoice_id", evt.InvoiceID,
			)
		}
		return
	}

	handlers := append([]HandlerInfo(nil), d.handlers[evt.Type]...)
	d.wg.Add(len(handlers))
	d.mu.RUnlock()

	detached := context.WithoutCancel(ctx)
	for _, info := range handlers {
		go func(h HandlerInfo) {
			defer d.wg.Done()
			if err := d.safeExecute(detached, evt, h); err != nil {
				d.logHandlerError("Async handler error", evt, h, err)
			}
		}(info)
	}
}

// ListHandlers returns registered handlers for an event type, without their functions
func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	handlers := d.snapshot(eventType)
	for i := range handlers {
		handlers[i].Handler = nil
	}
	return handlers
}

// Close shuts down the dispatcher and waits for async handlers to complete
func (d *eventDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already closed")
	}
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()

	if d.logger != nil {
		d.logger.Info("Dispatcher closed")
	}

	return nil
}

func (d *eventDispatcher) snapshot(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]HandlerInfo(nil), d.handlers[eventType]...)
}

func (d *eventDispatcher) logHandlerError(msg string, evt *event.InvoiceEvent, info HandlerInfo, err error) {
	if d.logger == nil {
		return
	}
	d.logger.Error(msg,
		"event_type", evt.Type,
		"event_id", evt.ID,
		"invoice_id", evt.InvoiceID,
		"handler_name", info.Name,
		"error", err,
	)
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.InvoiceEvent, info HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return info.Handler(ctx, evt)
}
