package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/event"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

const eventColumns = `id, invoice_id, sequence, type, actor, comment, from_status, to_status, payload, created_at`

// EventRepository implements port.EventRepository.
// Rows are never updated or deleted; the schema enforces it with triggers.
type EventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB, logger *zap.Logger) port.EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// Append assigns the next sequence number of the invoice and inserts the event
func (r *EventRepository) Append(ctx context.Context, evt *event.InvoiceEvent) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := r.db.getExecutor(txCtx)

		var next int64
		err := exec.QueryRowContext(txCtx,
			`SELECT COALESCE(MAX(sequence), 0) + 1 FROM invoice_events WHERE invoice_id = ?`,
			evt.InvoiceID,
		).Scan(&next)
		if err != nil {
			return fmt.Errorf("failed to read event sequence: %w", err)
		}

		_, err = exec.ExecContext(txCtx,
			`INSERT INTO invoice_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			evt.ID, evt.InvoiceID, next, string(evt.Type), evt.Actor, evt.Comment,
			string(evt.FromStatus), string(evt.ToStatus), string(payload), evt.Timestamp.UTC(),
		)
		if err != nil {
			if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
				return fmt.Errorf("%w: invoice %s", workflow.ErrNotFound, evt.InvoiceID)
			}
			r.logger.Error("Failed to append event",
				zap.String("invoice_id", evt.InvoiceID),
				zap.String("type", string(evt.Type)),
				zap.Error(err))
			return fmt.Errorf("failed to append event: %w", err)
		}

		evt.Sequence = next
		return nil
	})
}

// ListByInvoice returns the invoice's events in sequence order
func (r *EventRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]*event.InvoiceEvent, error) {
	return r.query(ctx,
		`SELECT `+eventColumns+` FROM invoice_events WHERE invoice_id = ? ORDER BY sequence ASC`,
		invoiceID)
}

// Query returns events matching the query ordered by timestamp
func (r *EventRepository) Query(ctx context.Context, q event.Query) ([]*event.InvoiceEvent, error) {
	var conditions []string
	var args []interface{}

	if q.Actor != "" {
		conditions = append(conditions, "actor = ?")
		args = append(args, q.Actor)
	}
	if q.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(q.Type))
	}
	if q.InvoiceID != "" {
		conditions = append(conditions, "invoice_id = ?")
		args = append(args, q.InvoiceID)
	}
	if q.From != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, q.From.UTC())
	}
	if q.To != nil {
		conditions = append(conditions, "created_at < ?")
		args = append(args, q.To.UTC())
	}

	query := `SELECT ` + eventColumns + ` FROM invoice_events`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at ASC, invoice_id ASC, sequence ASC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	return r.query(ctx, query, args...)
}

func (r *EventRepository) query(ctx context.Context, query string, args ...interface{}) ([]*event.InvoiceEvent, error) {
	rows, err := r.db.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query events", zap.Error(err))
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []*event.InvoiceEvent{}
	for rows.Next() {
		var (
			evt                          event.InvoiceEvent
			eventType, from, to, payload string
		)
		if err := rows.Scan(&evt.ID, &evt.InvoiceID, &evt.Sequence, &eventType, &evt.Actor, &evt.Comment,
			&from, &to, &payload, &evt.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		evt.Type = event.Type(eventType)
		evt.FromStatus = workflow.State(from)
		evt.ToStatus = workflow.State(to)
		evt.Timestamp = evt.Timestamp.UTC()
		if err := json.Unmarshal([]byte(payload), &evt.Payload); err != nil {
			return nil, fmt.Errorf("invalid payload of event %s: %w", evt.ID, err)
		}
		if evt.Payload == nil {
			evt.Payload = map[string]interface{}{}
		}
		events = append(events, &evt)
	}
	return events, rows.Err()
}

// Verify interface compliance
var _ port.EventRepository = (*EventRepository)(nil)
