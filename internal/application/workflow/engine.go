package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/dispatcher"
	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/event"
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
	"github.com/Prygunov-Andrei/finance-sub003/pkg/clock"
)

type engineImpl struct {
	invoiceRepo port.InvoiceRepository
	eventRepo   port.EventRepository
	accountRepo port.LedgerAccountRepository
	txManager   port.TransactionManager
	clock       clock.Clock

	dispatcher dispatcher.Dispatcher
	observer   port.TransitionObserver
	logger     port.Logger
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher publishes committed transition events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithObserver records transition outcomes
func WithObserver(o port.TransitionObserver) EngineOption {
	return func(e *engineImpl) {
		e.observer = o
	}
}

// WithLogger sets the engine logger
func WithLogger(l port.Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithClock overrides the wall clock
func WithClock(c clock.Clock) EngineOption {
	return func(e *engineImpl) {
		e.clock = c
	}
}

// NewEngine creates a new invoice workflow engine
func NewEngine(
	invoiceRepo port.InvoiceRepository,
	eventRepo port.EventRepository,
	accountRepo port.LedgerAccountRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		invoiceRepo: invoiceRepo,
		eventRepo:   eventRepo,
		accountRepo: accountRepo,
		txManager:   txManager,
		clock:       clock.NewSystem(nil),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Create stores a new invoice and its created event in one transaction.
// Reuses the caller's transaction when ctx already carries one.
func (e *engineImpl) Create(ctx context.Context, invoice *entity.Invoice, actor string) error {
	if strings.TrimSpace(actor) == "" {
		return fmt.Errorf("%w: actor is required", domainwf.ErrValidation)
	}
	if invoice.Status != domainwf.StateRecognition && invoice.Status != domainwf.StateReview {
		return fmt.Errorf("%w: invoices start in recognition or review, not %q", domainwf.ErrValidation, invoice.Status)
	}
	if err := invoice.Validate(); err != nil {
		return err
	}

	now := e.clock.Now()
	if invoice.ID == "" {
		invoice.ID = entity.NewID()
	}
	invoice.CreatedBy = actor
	invoice.Version = 1
	invoice.CreatedAt = now
	invoice.UpdatedAt = now

	evt := event.NewInvoiceEvent(invoice.ID, event.TypeCreated, actor, "", invoice.Status, now).
		WithPayload("source", invoice.Source)

	return e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.invoiceRepo.Create(txCtx, invoice); err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		if err := e.eventRepo.Append(txCtx, evt); err != nil {
			return fmt.Errorf("failed to append created event: %w", err)
		}
		return nil
	})
}

// Transition validates the action against one snapshot of the invoice, then
// commits the status change, side effects and event atomically.
func (e *engineImpl) Transition(ctx context.Context, invoiceID string, action domainwf.Trigger, params TransitionParams) (*entity.Invoice, error) {
	started := time.Now()
	updated, err := e.transition(ctx, invoiceID, action, params)
	if e.observer != nil {
		e.observer.ObserveTransition(action.String(), domainwf.Code(err), time.Since(started))
	}
	return updated, err
}

func (e *engineImpl) transition(ctx context.Context, invoiceID string, action domainwf.Trigger, params TransitionParams) (*entity.Invoice, error) {
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: unknown action %q", domainwf.ErrValidation, action)
	}
	if strings.TrimSpace(params.Actor) == "" {
		return nil, fmt.Errorf("%w: actor is required", domainwf.ErrValidation)
	}

	current, err := e.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	if current == nil {
		return nil, fmt.Errorf("%w: invoice %s", domainwf.ErrNotFound, invoiceID)
	}
	if !current.Status.IsValid() {
		return nil, fmt.Errorf("%w: invoice %s has status %q", domainwf.ErrInvalidState, invoiceID, current.Status)
	}

	// a stale caller loses to the committed change, whatever status it moved to
	if params.ExpectedVersion != nil && *params.ExpectedVersion != current.Version {
		return nil, fmt.Errorf("%w: invoice %s is at version %d, caller expected %d",
			domainwf.ErrConcurrentModification, invoiceID, current.Version, *params.ExpectedVersion)
	}

	machine := BuildInvoiceStateMachine(current.Status, e.guards(current, params))
	from := machine.State()
	if err := machine.Fire(ctx, action); err != nil {
		return nil, err
	}

	now := e.clock.Now()
	updated := current.Clone()
	updated.Status = machine.State()
	updated.UpdatedAt = now

	evtType, _ := event.TypeForTrigger(action)
	evt := event.NewInvoiceEvent(invoiceID, evtType, params.Actor, from, updated.Status, now).
		WithComment(strings.TrimSpace(params.Comment))
	evt = applySideEffects(updated, evt, action, params, now)

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if action == domainwf.TriggerMarkPaid {
			balance, err := e.accountRepo.Debit(txCtx, updated.AccountID, updated.Gross())
			if errors.Is(err, domainwf.ErrNotFound) {
				return fmt.Errorf("%w: ledger account %s does not exist", domainwf.ErrInsufficientContext, updated.AccountID)
			}
			if err != nil {
				return fmt.Errorf("failed to debit account %s: %w", updated.AccountID, err)
			}
			evt = evt.WithPayload("account_balance", balance.StringFixed(2))
		}
		if err := e.invoiceRepo.Update(txCtx, updated, current.Version); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		if err := e.eventRepo.Append(txCtx, evt); err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
		return nil
	})
	if err != nil {
		e.logError("Transition failed", invoiceID, action, err)
		return nil, err
	}
	updated.Version = current.Version + 1

	if e.logger != nil {
		e.logger.Info("Invoice transitioned",
			"invoice_id", invoiceID,
			"action", action.String(),
			"from", from.String(),
			"to", updated.Status.String(),
			"actor", params.Actor,
		)
	}

	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, evt)
	}

	return updated, nil
}

// guards wires the invoice snapshot into the table's guarded transitions
func (e *engineImpl) guards(inv *entity.Invoice, params TransitionParams) Guards {
	requireComment := func(ctx context.Context) error {
		if strings.TrimSpace(params.Comment) == "" {
			return fmt.Errorf("%w: a reason must be stated", domainwf.ErrMissingComment)
		}
		return nil
	}

	return Guards{
		SubmitToRegistry: []domainwf.GuardFunc{func(ctx context.Context) error {
			if missing := inv.MissingForRegistry(params.OverrideDueDate); len(missing) > 0 {
				return fmt.Errorf("%w: missing %s", domainwf.ErrIncompleteInvoice, strings.Join(missing, ", "))
			}
			return nil
		}},
		Reject: []domainwf.GuardFunc{requireComment},
		Reschedule: []domainwf.GuardFunc{
			requireComment,
			func(ctx context.Context) error {
				if params.NewDueDate == nil {
					return fmt.Errorf("%w: missing new_due_date", domainwf.ErrIncompleteInvoice)
				}
				return nil
			},
		},
		MarkPaid: []domainwf.GuardFunc{
			func(ctx context.Context) error {
				if strings.TrimSpace(inv.AccountID) == "" {
					return fmt.Errorf("%w: no ledger account attached", domainwf.ErrInsufficientContext)
				}
				account, err := e.accountRepo.GetByID(ctx, inv.AccountID)
				if err != nil {
					return fmt.Errorf("failed to load ledger account: %w", err)
				}
				if account == nil {
					return fmt.Errorf("%w: ledger account %s does not exist", domainwf.ErrInsufficientContext, inv.AccountID)
				}
				return nil
			},
			func(ctx context.Context) error {
				if !inv.AmountGross.Valid {
					return fmt.Errorf("%w: missing amount_gross", domainwf.ErrIncompleteInvoice)
				}
				return nil
			},
		},
	}
}

// applySideEffects fills the fields produced by the action and returns the event enriched with its payload
func applySideEffects(inv *entity.Invoice, evt *event.InvoiceEvent, action domainwf.Trigger, params TransitionParams, now time.Time) *event.InvoiceEvent {
	switch action {
	case domainwf.TriggerCompleteRecognition:
		confidence := 1.0
		if params.Recognition != nil {
			applyRecognition(inv, params.Recognition)
			confidence = params.Recognition.Confidence
		}
		inv.Confidence = &confidence
		evt = evt.WithPayload("confidence", confidence)

	case domainwf.TriggerSubmitToRegistry:
		if inv.ReviewedAt == nil {
			inv.ReviewedBy = params.Actor
			inv.ReviewedAt = &now
		}
		if params.OverrideDueDate && inv.DueDate == nil {
			evt = evt.WithPayload("due_date_overridden", true)
		}

	case domainwf.TriggerApprove:
		if inv.ApprovedAt == nil {
			inv.ApprovedBy = params.Actor
			inv.ApprovedAt = &now
		}

	case domainwf.TriggerReschedule:
		newDue := entity.DateOf(*params.NewDueDate)
		evt = evt.WithPayload("old_due_date", entity.FormatDate(inv.DueDate)).
			WithPayload("new_due_date", entity.FormatDate(&newDue))
		inv.DueDate = &newDue

	case domainwf.TriggerMarkPaid:
		if inv.PaidAt == nil {
			inv.PaidAt = &now
		}
		evt = evt.WithPayload("account_id", inv.AccountID).
			WithPayload("amount", inv.Gross().StringFixed(2))
	}

	return evt
}

// applyRecognition fills unset invoice fields from a recognition result.
// Net and VAT are only taken together and only when they add up to the gross amount.
func applyRecognition(inv *entity.Invoice, r *port.RecognitionResult) {
	if inv.Number == nil && r.Number != "" {
		number := r.Number
		inv.Number = &number
	}
	if inv.InvoiceDate == nil && r.InvoiceDate != nil {
		d := entity.DateOf(*r.InvoiceDate)
		inv.InvoiceDate = &d
	}
	if inv.DueDate == nil && r.DueDate != nil {
		d := entity.DateOf(*r.DueDate)
		inv.DueDate = &d
	}
	if !inv.AmountGross.Valid && r.AmountGross.Valid {
		inv.AmountGross = r.AmountGross
	}
	if !inv.AmountNet.Valid && !inv.AmountVAT.Valid && r.AmountNet.Valid && r.AmountVAT.Valid && inv.AmountGross.Valid {
		if r.AmountNet.Decimal.Add(r.AmountVAT.Decimal).Equal(inv.AmountGross.Decimal) {
			inv.AmountNet = r.AmountNet
			inv.AmountVAT = r.AmountVAT
		}
	}
	if len(inv.LineItems) == 0 && len(r.LineItems) > 0 {
		inv.LineItems = append([]entity.LineItem(nil), r.LineItems...)
	}
}

// VerifyConsistency replays the event log and compares it with the stored status
func (e *engineImpl) VerifyConsistency(ctx context.Context, invoiceID string) (*ConsistencyReport, error) {
	inv, err := e.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: invoice %s", domainwf.ErrNotFound, invoiceID)
	}

	events, err := e.eventRepo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	report := &ConsistencyReport{
		InvoiceID:    invoiceID,
		StoredStatus: inv.Status,
		EventCount:   len(events),
	}

	replayed, err := Replay(events)
	if err != nil {
		report.Error = err.Error()
		return report, nil
	}
	report.ReplayedStatus = replayed
	report.Consistent = replayed == inv.Status

	return report, nil
}

func (e *engineImpl) logError(msg, invoiceID string, action domainwf.Trigger, err error) {
	if e.logger == nil {
		return
	}
	e.logger.Error(msg, "invoice_id", invoiceID, "action", action.String(), "error", err)
}
