package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

const invoiceColumns = `
	id, number, source, status,
	amount_gross, amount_net, amount_vat,
	invoice_date, due_date,
	counterparty_id, object_id, contract_id, category_id, legal_entity_id,
	account_id, supply_request_id, deal_id, recurring_payment_id,
	confidence, line_items, document_path,
	created_by, reviewed_by, reviewed_at, approved_by, approved_at, paid_at,
	version, created_at, updated_at`

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new invoice
func (r *InvoiceRepository) Create(ctx context.Context, inv *entity.Invoice) error {
	lineItems, err := marshalLineItems(inv.LineItems)
	if err != nil {
		return err
	}

	query := `INSERT INTO invoices (` + invoiceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.getExecutor(ctx).ExecContext(ctx, query,
		inv.ID, stringValue(inv.Number), inv.Source, string(inv.Status),
		inv.AmountGross, inv.AmountNet, inv.AmountVAT,
		dateValue(inv.InvoiceDate), dateValue(inv.DueDate),
		inv.CounterpartyID, inv.ObjectID, inv.ContractID, inv.CategoryID, inv.LegalEntityID,
		inv.AccountID, inv.SupplyRequestID, inv.DealID, inv.RecurringPaymentID,
		floatValue(inv.Confidence), lineItems, inv.DocumentPath,
		inv.CreatedBy, inv.ReviewedBy, timeValue(inv.ReviewedAt), inv.ApprovedBy, timeValue(inv.ApprovedAt), timeValue(inv.PaidAt),
		inv.Version, inv.CreatedAt.UTC(), inv.UpdatedAt.UTC(),
	)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintUnique) {
			if strings.Contains(err.Error(), "recurring_payment_id") {
				return fmt.Errorf("%w: recurring payment %s already generated for %s",
					workflow.ErrDuplicateGeneration, inv.RecurringPaymentID, entity.FormatDate(inv.DueDate))
			}
			if strings.Contains(err.Error(), "deal_id") {
				return fmt.Errorf("%w: deal %s already imported", workflow.ErrValidation, inv.DealID)
			}
		}
		r.logger.Error("Failed to create invoice",
			zap.String("invoice_id", inv.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	return nil
}

// GetByID retrieves an invoice by its ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByDealID retrieves the invoice imported from a CRM deal
func (r *InvoiceRepository) GetByDealID(ctx context.Context, dealID string) (*entity.Invoice, error) {
	if dealID == "" {
		return nil, nil
	}
	return r.getOne(ctx, "deal_id = ?", dealID)
}

// GetByGenerationKey retrieves the invoice generated from a recurring payment for a due date
func (r *InvoiceRepository) GetByGenerationKey(ctx context.Context, recurringPaymentID string, dueDate time.Time) (*entity.Invoice, error) {
	return r.getOne(ctx, "recurring_payment_id = ? AND due_date = ?", recurringPaymentID, dueDate.Format(entity.DateLayout))
}

func (r *InvoiceRepository) getOne(ctx context.Context, where string, args ...interface{}) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE ` + where

	inv, err := scanInvoice(r.db.getExecutor(ctx).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice",
			zap.String("where", where),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// Update writes every mutable field when the stored version still matches
func (r *InvoiceRepository) Update(ctx context.Context, inv *entity.Invoice, expectedVersion int64) error {
	lineItems, err := marshalLineItems(inv.LineItems)
	if err != nil {
		return err
	}

	query := `
		UPDATE invoices SET
			number = ?, status = ?,
			amount_gross = ?, amount_net = ?, amount_vat = ?,
			invoice_date = ?, due_date = ?,
			counterparty_id = ?, object_id = ?, contract_id = ?, category_id = ?, legal_entity_id = ?,
			account_id = ?, supply_request_id = ?,
			confidence = ?, line_items = ?, document_path = ?,
			reviewed_by = ?, reviewed_at = ?, approved_by = ?, approved_at = ?, paid_at = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.getExecutor(ctx).ExecContext(ctx, query,
		stringValue(inv.Number), string(inv.Status),
		inv.AmountGross, inv.AmountNet, inv.AmountVAT,
		dateValue(inv.InvoiceDate), dateValue(inv.DueDate),
		inv.CounterpartyID, inv.ObjectID, inv.ContractID, inv.CategoryID, inv.LegalEntityID,
		inv.AccountID, inv.SupplyRequestID,
		floatValue(inv.Confidence), lineItems, inv.DocumentPath,
		inv.ReviewedBy, timeValue(inv.ReviewedAt), inv.ApprovedBy, timeValue(inv.ApprovedAt), timeValue(inv.PaidAt),
		inv.UpdatedAt.UTC(),
		inv.ID, expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update invoice",
			zap.String("invoice_id", inv.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update invoice: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		current, err := r.GetByID(ctx, inv.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: invoice %s", workflow.ErrNotFound, inv.ID)
		}
		return fmt.Errorf("%w: invoice %s is at version %d, expected %d",
			workflow.ErrConcurrentModification, inv.ID, current.Version, expectedVersion)
	}
	return nil
}

// List returns a filtered page of invoices, newest first, and the total match count
func (r *InvoiceRepository) List(ctx context.Context, filter entity.InvoiceFilter) ([]*entity.Invoice, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		conditions = append(conditions,
			"(LOWER(COALESCE(number, '')) LIKE ? OR LOWER(counterparty_id) LIKE ? OR LOWER(deal_id) LIKE ? OR LOWER(id) LIKE ?)")
		args = append(args, pattern, pattern, pattern, pattern)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	exec := r.db.getExecutor(ctx)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices`+where, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count invoices", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices` + where + ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	invoices, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// ListByStatus returns invoices in a status, oldest first; limit <= 0 returns all
func (r *InvoiceRepository) ListByStatus(ctx context.Context, status workflow.State, limit int) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE status = ? ORDER BY id ASC`
	args := []interface{}{string(status)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

func (r *InvoiceRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Invoice, error) {
	rows, err := r.db.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	invoices := []*entity.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var (
		inv                            entity.Invoice
		number                         sql.NullString
		status                         string
		invoiceDate, dueDate           sql.NullString
		confidence                     sql.NullFloat64
		lineItems                      string
		reviewedAt, approvedAt, paidAt sql.NullTime
	)

	err := row.Scan(
		&inv.ID, &number, &inv.Source, &status,
		&inv.AmountGross, &inv.AmountNet, &inv.AmountVAT,
		&invoiceDate, &dueDate,
		&inv.CounterpartyID, &inv.ObjectID, &inv.ContractID, &inv.CategoryID, &inv.LegalEntityID,
		&inv.AccountID, &inv.SupplyRequestID, &inv.DealID, &inv.RecurringPaymentID,
		&confidence, &lineItems, &inv.DocumentPath,
		&inv.CreatedBy, &inv.ReviewedBy, &reviewedAt, &inv.ApprovedBy, &approvedAt, &paidAt,
		&inv.Version, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.Number = nullString(number)
	inv.Status = workflow.State(status)
	inv.Confidence = nullFloat(confidence)
	inv.ReviewedAt = nullTime(reviewedAt)
	inv.ApprovedAt = nullTime(approvedAt)
	inv.PaidAt = nullTime(paidAt)
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.UpdatedAt = inv.UpdatedAt.UTC()

	if inv.InvoiceDate, err = nullDate(invoiceDate); err != nil {
		return nil, err
	}
	if inv.DueDate, err = nullDate(dueDate); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(lineItems), &inv.LineItems); err != nil {
		return nil, fmt.Errorf("invalid line items of invoice %s: %w", inv.ID, err)
	}
	if len(inv.LineItems) == 0 {
		inv.LineItems = nil
	}

	return &inv, nil
}

func marshalLineItems(items []entity.LineItem) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal line items: %w", err)
	}
	return string(data), nil
}

// Verify interface compliance
var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
