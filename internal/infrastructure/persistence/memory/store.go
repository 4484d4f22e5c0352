// Package memory provides in-memory implementations of every persistence port,
// used by tests and by the memory database driver.
package memory

import (
	"context"
	"sync"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/event"
)

type contextKey string

const txKey contextKey = "memory-tx"

// Store holds all records. Transactions are serialized; a failed transaction
// restores the state captured when it began.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data state
}

type state struct {
	invoices  map[string]entity.Invoice
	events    map[string][]event.InvoiceEvent
	accounts  map[string]entity.LedgerAccount
	recurring map[string]entity.RecurringPayment
	webhooks  []entity.WebhookRequest
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		data: state{
			invoices:  make(map[string]entity.Invoice),
			events:    make(map[string][]event.InvoiceEvent),
			accounts:  make(map[string]entity.LedgerAccount),
			recurring: make(map[string]entity.RecurringPayment),
		},
	}
}

// WithTransaction implements port.TransactionManager.
// Nested calls reuse the outer transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	saved := s.data.copy()
	s.mu.RUnlock()

	committed := false
	defer func() {
		if !committed {
			s.mu.Lock()
			s.data = saved
			s.mu.Unlock()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey, true)); err != nil {
		return err
	}
	committed = true
	return nil
}

// write runs a mutation inside the caller's transaction or a new one
func (s *Store) write(ctx context.Context, fn func(d *state) error) error {
	return s.WithTransaction(ctx, func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(&s.data)
	})
}

func (s *Store) read(fn func(d *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.data)
}

func (d state) copy() state {
	c := state{
		invoices:  make(map[string]entity.Invoice, len(d.invoices)),
		events:    make(map[string][]event.InvoiceEvent, len(d.events)),
		accounts:  make(map[string]entity.LedgerAccount, len(d.accounts)),
		recurring: make(map[string]entity.RecurringPayment, len(d.recurring)),
		webhooks:  append([]entity.WebhookRequest(nil), d.webhooks...),
	}
	for k, v := range d.invoices {
		c.invoices[k] = v
	}
	for k, v := range d.events {
		c.events[k] = append([]event.InvoiceEvent(nil), v...)
	}
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	for k, v := range d.recurring {
		c.recurring[k] = v
	}
	return c
}

// Invoices returns the invoice repository view of the store
func (s *Store) Invoices() *InvoiceRepository { return &InvoiceRepository{s: s} }

// Events returns the event log view of the store
func (s *Store) Events() *EventRepository { return &EventRepository{s: s} }

// Accounts returns the ledger account repository view of the store
func (s *Store) Accounts() *LedgerAccountRepository { return &LedgerAccountRepository{s: s} }

// RecurringPayments returns the recurring payment repository view of the store
func (s *Store) RecurringPayments() *RecurringPaymentRepository {
	return &RecurringPaymentRepository{s: s}
}

// WebhookRequests returns the webhook request log view of the store
func (s *Store) WebhookRequests() *WebhookRequestRepository {
	return &WebhookRequestRepository{s: s}
}

var _ port.TransactionManager = (*Store)(nil)
