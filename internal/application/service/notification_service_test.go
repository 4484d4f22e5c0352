package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/dispatcher"
	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/event"
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

func TestNotificationService_Register(t *testing.T) {
	d := dispatcher.NewDispatcher()
	NewNotificationService(&mockNotifier{}, nopLogger{}).Register(d)

	assert.Len(t, d.ListHandlers(event.TypeRejected), 1)
	assert.Len(t, d.ListHandlers(event.TypeRescheduled), 1)
	assert.Empty(t, d.ListHandlers(event.TypeApproved))
}

func TestNotificationService_ShowsStoredReason(t *testing.T) {
	notifier := &mockNotifier{}
	d := dispatcher.NewDispatcher()
	NewNotificationService(notifier, nopLogger{}).Register(d)
	ctx := context.Background()

	rejected := event.NewInvoiceEvent("INV-1", event.TypeRejected, "bob",
		domainwf.StateInRegistry, domainwf.StateCancelled, testNow).
		WithComment("duplicate of INV-0")
	require.NoError(t, d.Dispatch(ctx, rejected))

	rescheduled := event.NewInvoiceEvent("INV-2", event.TypeRescheduled, "carol",
		domainwf.StateInRegistry, domainwf.StateInRegistry, testNow).
		WithComment("cash gap").
		WithPayload("old_due_date", "2026-03-10").
		WithPayload("new_due_date", "2026-04-10")
	require.NoError(t, d.Dispatch(ctx, rescheduled))

	sent := notifier.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "INV-1", sent[0].InvoiceID)
	assert.Contains(t, sent[0].Body, "duplicate of INV-0")
	assert.Contains(t, sent[1].Body, "2026-03-10")
	assert.Contains(t, sent[1].Body, "2026-04-10")
	assert.Contains(t, sent[1].Body, "cash gap")
}

func TestNotificationService_WebhookFailureSwallowsSendErrors(t *testing.T) {
	notifier := &mockNotifier{err: errors.New("lark unavailable")}
	svc := NewNotificationService(notifier, nopLogger{})

	assert.NotPanics(t, func() {
		svc.NotifyWebhookFailure(context.Background(), &entity.WebhookRequest{ID: "R1", Error: "boom"})
	})
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier(nopLogger{}).Notify(context.Background(), port.Notification{Title: "Invoice rejected", Body: "reason"}))
}
