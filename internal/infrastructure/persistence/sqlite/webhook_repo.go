package sqlite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
)

// WebhookRequestRepository implements port.WebhookRequestRepository
type WebhookRequestRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewWebhookRequestRepository creates a new webhook request repository
func NewWebhookRequestRepository(db *DB, logger *zap.Logger) port.WebhookRequestRepository {
	return &WebhookRequestRepository{
		db:     db,
		logger: logger,
	}
}

func (r *WebhookRequestRepository) Create(ctx context.Context, req *entity.WebhookRequest) error {
	_, err := r.db.getExecutor(ctx).ExecContext(ctx,
		`INSERT INTO webhook_requests (id, source, external_ref, payload, status, error, invoice_id, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.Source, req.ExternalRef, req.Payload, req.Status, req.Error, req.InvoiceID, req.ReceivedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to record webhook request", zap.String("request_id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to record webhook request: %w", err)
	}
	return nil
}

// List returns requests newest first, optionally filtered by status
func (r *WebhookRequestRepository) List(ctx context.Context, status string, limit int) ([]*entity.WebhookRequest, error) {
	query := `SELECT id, source, external_ref, payload, status, error, invoice_id, received_at FROM webhook_requests`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY received_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook requests: %w", err)
	}
	defer rows.Close()

	requests := []*entity.WebhookRequest{}
	for rows.Next() {
		var req entity.WebhookRequest
		if err := rows.Scan(&req.ID, &req.Source, &req.ExternalRef, &req.Payload, &req.Status,
			&req.Error, &req.InvoiceID, &req.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook request: %w", err)
		}
		req.ReceivedAt = req.ReceivedAt.UTC()
		requests = append(requests, &req)
	}
	return requests, rows.Err()
}

// Verify interface compliance
var _ port.WebhookRequestRepository = (*WebhookRequestRepository)(nil)
