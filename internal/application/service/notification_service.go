package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/dispatcher"
	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/event"
)

// NotificationService tells operators about events that need a human
type NotificationService interface {
	// Register subscribes the service to the events operators must see
	Register(d dispatcher.Dispatcher)

	NotifyWebhookFailure(ctx context.Context, req *entity.WebhookRequest)
}

type notificationServiceImpl struct {
	notifier port.Notifier
	logger   Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifier port.Notifier, logger Logger) NotificationService {
	return &notificationServiceImpl{
		notifier: notifier,
		logger:   logger,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeRejected, "notify_rejected", s.onRejected)
	d.SubscribeNamed(event.TypeRescheduled, "notify_rescheduled", s.onRescheduled)
}

func (s *notificationServiceImpl) onRejected(ctx context.Context, evt *event.InvoiceEvent) error {
	return s.send(ctx, port.Notification{
		Title:     "Invoice rejected",
		Body:      fmt.Sprintf("Invoice %s was rejected by %s.\nReason: %s", evt.InvoiceID, evt.Actor, evt.Comment),
		InvoiceID: evt.InvoiceID,
	})
}

func (s *notificationServiceImpl) onRescheduled(ctx context.Context, evt *event.InvoiceEvent) error {
	return s.send(ctx, port.Notification{
		Title: "Invoice rescheduled",
		Body: fmt.Sprintf("Invoice %s was rescheduled by %s from %s to %s.\nReason: %s",
			evt.InvoiceID, evt.Actor,
			orDash(evt.GetPayloadString("old_due_date")),
			orDash(evt.GetPayloadString("new_due_date")),
			evt.Comment),
		InvoiceID: evt.InvoiceID,
	})
}

// NotifyWebhookFailure reports a CRM call that could not be mapped to an invoice
func (s *notificationServiceImpl) NotifyWebhookFailure(ctx context.Context, req *entity.WebhookRequest) {
	body := fmt.Sprintf("CRM request %s could not be imported.\nDeal: %s\nError: %s",
		req.ID, orDash(req.ExternalRef), req.Error)
	if err := s.send(ctx, port.Notification{Title: "CRM import failed", Body: body}); err != nil {
		s.logger.Error("Failed to notify webhook failure", "request_id", req.ID, "error", err)
	}
}

func (s *notificationServiceImpl) send(ctx context.Context, n port.Notification) error {
	if err := s.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// LogNotifier writes notifications to the log when no messenger is configured
type LogNotifier struct {
	logger Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification
func (n *LogNotifier) Notify(_ context.Context, msg port.Notification) error {
	n.logger.Info("Operator notification", "title", msg.Title, "body", msg.Body, "invoice_id", msg.InvoiceID)
	return nil
}
