package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

const recurringColumns = `
	id, name, counterparty_id, category_id, account_id, legal_entity_id, object_id,
	amount, is_approximate, frequency, day_of_month, valid_from, valid_to, is_active,
	next_generation_date, created_at, updated_at`

// RecurringPaymentRepository implements port.RecurringPaymentRepository
type RecurringPaymentRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRecurringPaymentRepository creates a new recurring payment repository
func NewRecurringPaymentRepository(db *DB, logger *zap.Logger) port.RecurringPaymentRepository {
	return &RecurringPaymentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *RecurringPaymentRepository) Create(ctx context.Context, p *entity.RecurringPayment) error {
	_, err := r.db.getExecutor(ctx).ExecContext(ctx,
		`INSERT INTO recurring_payments (`+recurringColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.CounterpartyID, p.CategoryID, p.AccountID, p.LegalEntityID, p.ObjectID,
		p.Amount, p.IsApproximate, p.Frequency, p.DayOfMonth,
		p.ValidFrom.Format(entity.DateLayout), dateValue(p.ValidTo), p.IsActive,
		p.NextGenerationDate.Format(entity.DateLayout), p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create recurring payment", zap.String("recurring_payment_id", p.ID), zap.Error(err))
		return fmt.Errorf("failed to create recurring payment: %w", err)
	}
	return nil
}

func (r *RecurringPaymentRepository) GetByID(ctx context.Context, id string) (*entity.RecurringPayment, error) {
	p, err := scanRecurring(r.db.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_payments WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recurring payment: %w", err)
	}
	return p, nil
}

func (r *RecurringPaymentRepository) List(ctx context.Context) ([]*entity.RecurringPayment, error) {
	return r.query(ctx, `SELECT `+recurringColumns+` FROM recurring_payments ORDER BY id ASC`)
}

// ListDue returns active templates whose next generation date is on or before today
func (r *RecurringPaymentRepository) ListDue(ctx context.Context, today time.Time) ([]*entity.RecurringPayment, error) {
	return r.query(ctx,
		`SELECT `+recurringColumns+` FROM recurring_payments
		WHERE is_active = 1 AND next_generation_date <= ?
		ORDER BY id ASC`,
		entity.DateOf(today).Format(entity.DateLayout))
}

// AdvanceNextGeneration moves the next generation date only if it still equals from
func (r *RecurringPaymentRepository) AdvanceNextGeneration(ctx context.Context, id string, from, to time.Time) error {
	result, err := r.db.getExecutor(ctx).ExecContext(ctx,
		`UPDATE recurring_payments SET next_generation_date = ?, updated_at = ?
		WHERE id = ? AND next_generation_date = ?`,
		entity.DateOf(to).Format(entity.DateLayout), time.Now().UTC(),
		id, entity.DateOf(from).Format(entity.DateLayout),
	)
	if err != nil {
		r.logger.Error("Failed to advance recurring payment", zap.String("recurring_payment_id", id), zap.Error(err))
		return fmt.Errorf("failed to advance recurring payment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: recurring payment %s", workflow.ErrNotFound, id)
		}
		return fmt.Errorf("%w: recurring payment %s already advanced past %s",
			workflow.ErrConcurrentModification, id, from.Format(entity.DateLayout))
	}
	return nil
}

func (r *RecurringPaymentRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.RecurringPayment, error) {
	rows, err := r.db.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query recurring payments", zap.Error(err))
		return nil, fmt.Errorf("failed to query recurring payments: %w", err)
	}
	defer rows.Close()

	payments := []*entity.RecurringPayment{}
	for rows.Next() {
		p, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanRecurring(row rowScanner) (*entity.RecurringPayment, error) {
	var (
		p                   entity.RecurringPayment
		validFrom, nextDate string
		validTo             sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.CounterpartyID, &p.CategoryID, &p.AccountID, &p.LegalEntityID, &p.ObjectID,
		&p.Amount, &p.IsApproximate, &p.Frequency, &p.DayOfMonth, &validFrom, &validTo, &p.IsActive,
		&nextDate, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if p.ValidFrom, err = parseDate(validFrom); err != nil {
		return nil, err
	}
	if p.ValidTo, err = nullDate(validTo); err != nil {
		return nil, err
	}
	if p.NextGenerationDate, err = parseDate(nextDate); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// Verify interface compliance
var _ port.RecurringPaymentRepository = (*RecurringPaymentRepository)(nil)
