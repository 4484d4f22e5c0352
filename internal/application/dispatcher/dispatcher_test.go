package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/event"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func newRejected() *event.InvoiceEvent {
	return event.NewInvoiceEvent("inv-1", event.TypeRejected, "alice",
		workflow.StateInRegistry, workflow.StateCancelled, time.Now())
}

func TestDispatcher_Dispatch(t *testing.T) {
	t.Run("calls handlers in order", func(t *testing.T) {
		d := NewDispatcher()
		var order []string

		d.Subscribe(event.TypeRejected, func(ctx context.Context, evt *event.InvoiceEvent) error {
			order = append(order, "first")
			return nil
		})
		d.Subscribe(event.TypeRejected, func(ctx context.Context, evt *event.InvoiceEvent) error {
			order = append(order, "second")
			return nil
		})

		require.NoError(t, d.Dispatch(context.Background(), newRejected()))
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("ignores other event types", func(t *testing.T) {
		d := NewDispatcher()
		called := false
		d.Subscribe(event.TypePaid, func(ctx context.Context, evt *event.InvoiceEvent) error {
			called = true
			return nil
		})

		require.NoError(t, d.Dispatch(context.Background(), newRejected()))
		assert.False(t, called)
	})

	t.Run("stops at first error", func(t *testing.T) {
		d := NewDispatcher(WithLogger(&mockLogger{}))
		boom := errors.New("boom")
		secondCalled := false

		d.SubscribeNamed(event.TypeRejected, "failing", func(ctx context.Context, evt *event.InvoiceEvent) error {
			return boom
		})
		d.Subscribe(event.TypeRejected, func(ctx context.Context, evt *event.InvoiceEvent) error {
			secondCalled = true
			return nil
		})

		err := d.Dispatch(context.Background(), newRejected())
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "failing")
		assert.False(t, secondCalled)
	})

	t.Run("recovers handler panic", func(t *testing.T) {
		d := NewDispatcher()
		d.Subscribe(event.TypeRejected, func(ctx context.Context, evt *event.InvoiceEvent) error {
			panic("handler exploded")
		})

		err := d.Dispatch(context.Background(), newRejected())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "handler exploded")
	})
}

func TestDispatcher_DispatchAsync(t *testing.T) {
	t.Run("runs every handler before Close returns", func(t *testing.T) {
		d := NewDispatcher()
		var count atomic.Int32

		for i := 0; i < 3; i++ {
			d.Subscribe(event.TypeRescheduled, func(ctx context.Context, evt *event.InvoiceEvent) error {
				time.Sleep(10 * time.Millisecond)
				count.Add(1)
				return nil
			})
		}

		evt := event.NewInvoiceEvent("inv-1", event.TypeRescheduled, "bob",
			workflow.StateInRegistry, workflow.StateInRegistry, time.Now())
		d.DispatchAsync(context.Background(), evt)

		require.NoError(t, d.Close())
		assert.Equal(t, int32(3), count.Load())
	})

	t.Run("handlers outlive the caller context", func(t *testing.T) {
		d := NewDispatcher()
		var ctxErr atomic.Value

		d.Subscribe(event.TypeRejected, func(ctx context.Context, evt *event.InvoiceEvent) error {
			time.Sleep(20 * time.Millisecond)
			ctxErr.Store(fmt.Sprint(ctx.Err()))
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		d.DispatchAsync(ctx, newRejected())
		cancel()

		require.NoError(t, d.Close())
		assert.Equal(t, "<nil>", ctxErr.Load())
	})

	t.Run("logs handler errors", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		d.Subscribe(event.TypeRejected, func(ctx context.Context, evt *event.InvoiceEvent) error {
			return errors.New("lark unavailable")
		})

		d.DispatchAsync(context.Background(), newRejected())
		require.NoError(t, d.Close())
		assert.Equal(t, 1, logger.ErrorCount())
	})

	t.Run("refuses events after close", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		require.NoError(t, d.Close())

		d.DispatchAsync(context.Background(), newRejected())
		assert.Equal(t, 1, logger.ErrorCount())
		assert.Error(t, d.Dispatch(context.Background(), newRejected()))
		assert.Error(t, d.Close())
	})
}

func TestDispatcher_ListHandlers(t *testing.T) {
	d := NewDispatcher()
	noop := func(ctx context.Context, evt *event.InvoiceEvent) error { return nil }

	d.SubscribeNamed(event.TypeRejected, "notify", noop)
	d.SubscribeNamed(event.TypeRejected, "audit", noop)
	d.SubscribeNamed(event.TypePaid, "ledger", noop)

	handlers := d.ListHandlers(event.TypeRejected)
	require.Len(t, handlers, 2)
	assert.Equal(t, "notify", handlers[0].Name)
	assert.Equal(t, "audit", handlers[1].Name)
	assert.Nil(t, handlers[0].Handler)
	assert.Empty(t, d.ListHandlers(event.TypeApproved))
}

func TestDispatcher_ConcurrentSubscribe(t *testing.T) {
	d := NewDispatcher()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.SubscribeNamed(event.TypeApproved, fmt.Sprintf("handler-%d", id), func(ctx context.Context, evt *event.InvoiceEvent) error {
				return nil
			})
		}(i)
	}
	wg.Wait()

	assert.Len(t, d.ListHandlers(event.TypeApproved), 20)
}

func TestDispatcher_DispatchAsyncRacingClose(t *testing.T) {
	for round := 0; round < 20; round++ {
		d := NewDispatcher(WithLogger(&mockLogger{}))
		var started, finished atomic.Int32

		d.Subscribe(event.TypeRejected, func(ctx context.Context, evt *event.InvoiceEvent) error {
			started.Add(1)
			time.Sleep(time.Millisecond)
			finished.Add(1)
			return nil
		})

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					d.DispatchAsync(context.Background(), newRejected())
				}
			}()
		}

		require.NoError(t, d.Close())
		// everything accepted before close has run to completion
		assert.Equal(t, started.Load(), finished.Load())

		wg.Wait()
		assert.Equal(t, started.Load(), finished.Load(), "no handler starts after close")
	}
}
