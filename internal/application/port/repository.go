package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/event"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// InvoiceRepository defines persistence operations for Invoice.
// Getters return nil, nil when the record does not exist.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	GetByDealID(ctx context.Context, dealID string) (*entity.Invoice, error)
	GetByGenerationKey(ctx context.Context, recurringPaymentID string, dueDate time.Time) (*entity.Invoice, error)

	// Update writes every mutable field and bumps the version, only if the stored
	// version still equals expectedVersion. A miss returns workflow.ErrConcurrentModification.
	Update(ctx context.Context, invoice *entity.Invoice, expectedVersion int64) error

	List(ctx context.Context, filter entity.InvoiceFilter) ([]*entity.Invoice, int, error)
	ListByStatus(ctx context.Context, status workflow.State, limit int) ([]*entity.Invoice, error)
}

// EventRepository is the append-only invoice event log
type EventRepository interface {
	// Append assigns the next sequence number of the invoice and stores the event
	Append(ctx context.Context, evt *event.InvoiceEvent) error

	// ListByInvoice returns the invoice's events oldest first
	ListByInvoice(ctx context.Context, invoiceID string) ([]*event.InvoiceEvent, error)

	// Query returns events matching the query ordered by timestamp
	Query(ctx context.Context, q event.Query) ([]*event.InvoiceEvent, error)
}

// LedgerAccountRepository defines persistence operations for LedgerAccount
type LedgerAccountRepository interface {
	Create(ctx context.Context, account *entity.LedgerAccount) error
	GetByID(ctx context.Context, id string) (*entity.LedgerAccount, error)
	List(ctx context.Context) ([]*entity.LedgerAccount, error)

	// Debit decreases the internal balance by amount and returns the new balance
	Debit(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error)

	UpdateBankBalance(ctx context.Context, id string, balance decimal.Decimal, asOf time.Time) error
}

// RecurringPaymentRepository defines persistence operations for RecurringPayment
type RecurringPaymentRepository interface {
	Create(ctx context.Context, payment *entity.RecurringPayment) error
	GetByID(ctx context.Context, id string) (*entity.RecurringPayment, error)
	List(ctx context.Context) ([]*entity.RecurringPayment, error)

	// ListDue returns active templates whose next generation date is on or before today
	ListDue(ctx context.Context, today time.Time) ([]*entity.RecurringPayment, error)

	// AdvanceNextGeneration moves the next generation date from `from` to `to`.
	// A template no longer at `from` returns workflow.ErrConcurrentModification.
	AdvanceNextGeneration(ctx context.Context, id string, from, to time.Time) error
}

// WebhookRequestRepository records inbound CRM calls
type WebhookRequestRepository interface {
	Create(ctx context.Context, req *entity.WebhookRequest) error
	List(ctx context.Context, status string, limit int) ([]*entity.WebhookRequest, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
