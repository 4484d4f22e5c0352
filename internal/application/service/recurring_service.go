package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/application/workflow"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
	"github.com/Prygunov-Andrei/finance-sub003/pkg/clock"
)

// DefaultMaxCatchUp bounds how many missed periods one tick generates per template
const DefaultMaxCatchUp = 12

// GenerationReport summarizes one scheduler tick
type GenerationReport struct {
	Date       string   `json:"date"`
	Generated  int      `json:"generated"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	InvoiceIDs []string `json:"invoice_ids"`
	Errors     []string `json:"errors,omitempty"`
}

// RecurringService turns recurring payment templates into invoices
type RecurringService interface {
	// GenerateDue creates the invoices of every template due on or before today.
	// It is idempotent and may be re-run for the same day.
	GenerateDue(ctx context.Context, today time.Time) (*GenerationReport, error)

	CreateTemplate(ctx context.Context, payment *entity.RecurringPayment) error
	ListTemplates(ctx context.Context) ([]*entity.RecurringPayment, error)
}

type recurringServiceImpl struct {
	recurringRepo port.RecurringPaymentRepository
	invoiceRepo   port.InvoiceRepository
	engine        workflow.Engine
	txManager     port.TransactionManager
	observer      port.TransitionObserver
	clock         clock.Clock
	maxCatchUp    int
	logger        Logger
}

// NewRecurringService creates a new RecurringService; observer may be nil
func NewRecurringService(
	recurringRepo port.RecurringPaymentRepository,
	invoiceRepo port.InvoiceRepository,
	engine workflow.Engine,
	txManager port.TransactionManager,
	observer port.TransitionObserver,
	clk clock.Clock,
	maxCatchUp int,
	logger Logger,
) RecurringService {
	if maxCatchUp <= 0 {
		maxCatchUp = DefaultMaxCatchUp
	}
	return &recurringServiceImpl{
		recurringRepo: recurringRepo,
		invoiceRepo:   invoiceRepo,
		engine:        engine,
		txManager:     txManager,
		observer:      observer,
		clock:         clk,
		maxCatchUp:    maxCatchUp,
		logger:        logger,
	}
}

type generationOutcome int

const (
	outcomeGenerated generationOutcome = iota
	outcomeSkipped
	// another tick advanced the template first
	outcomeSuperseded
)

// GenerateDue runs one scheduler tick
func (s *recurringServiceImpl) GenerateDue(ctx context.Context, today time.Time) (*GenerationReport, error) {
	day := entity.DateOf(today)
	report := &GenerationReport{Date: day.Format(entity.DateLayout), InvoiceIDs: []string{}}

	templates, err := s.recurringRepo.ListDue(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list due recurring payments: %w", err)
	}

	for _, tpl := range templates {
		date := tpl.NextGenerationDate
		for n := 0; n < s.maxCatchUp && !date.After(day); n++ {
			if err := ctx.Err(); err != nil {
				return report, err
			}

			invoiceID, outcome, err := s.generateOne(ctx, tpl, date)
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("%s on %s: %v", tpl.ID, date.Format(entity.DateLayout), err))
				s.logger.Error("Recurring generation failed",
					"recurring_payment_id", tpl.ID,
					"date", date.Format(entity.DateLayout),
					"error", err,
				)
				s.observe("failed")
				break
			}

			if outcome == outcomeSuperseded {
				break
			}
			switch outcome {
			case outcomeGenerated:
				report.Generated++
				report.InvoiceIDs = append(report.InvoiceIDs, invoiceID)
				s.observe("generated")
			case outcomeSkipped:
				report.Skipped++
				s.observe("skipped")
			}
			date = tpl.NextAfter(date)
		}
	}

	s.logger.Info("Scheduler tick completed",
		"date", report.Date,
		"generated", report.Generated,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

// generateOne creates the invoice of one period and advances the template in a single transaction.
// An already generated period is a no-op that still advances the template.
func (s *recurringServiceImpl) generateOne(ctx context.Context, tpl *entity.RecurringPayment, date time.Time) (string, generationOutcome, error) {
	var invoiceID string
	outcome := outcomeSkipped
	next := tpl.NextAfter(date)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if tpl.ActiveOn(date) {
			existing, err := s.invoiceRepo.GetByGenerationKey(txCtx, tpl.ID, date)
			if err != nil {
				return fmt.Errorf("failed to check generation key: %w", err)
			}
			if existing == nil {
				inv := invoiceFromTemplate(tpl, date)
				err := s.engine.Create(txCtx, inv, entity.ActorSystem)
				switch {
				case errors.Is(err, domainwf.ErrDuplicateGeneration):
				case err != nil:
					return err
				default:
					invoiceID = inv.ID
					outcome = outcomeGenerated
				}
			}
		}
		return s.recurringRepo.AdvanceNextGeneration(txCtx, tpl.ID, date, next)
	})

	if errors.Is(err, domainwf.ErrConcurrentModification) {
		return "", outcomeSuperseded, nil
	}
	if err != nil {
		return "", outcome, err
	}
	return invoiceID, outcome, nil
}

func invoiceFromTemplate(tpl *entity.RecurringPayment, date time.Time) *entity.Invoice {
	due := entity.DateOf(date)
	return &entity.Invoice{
		ID:                 entity.NewID(),
		Source:             entity.SourceRecurring,
		Status:             domainwf.StateReview,
		AmountGross:        entity.NullAmount(tpl.Amount),
		DueDate:            &due,
		CounterpartyID:     tpl.CounterpartyID,
		CategoryID:         tpl.CategoryID,
		AccountID:          tpl.AccountID,
		LegalEntityID:      tpl.LegalEntityID,
		ObjectID:           tpl.ObjectID,
		RecurringPaymentID: tpl.ID,
	}
}

// CreateTemplate validates and stores a recurring payment, scheduling its first generation
func (s *recurringServiceImpl) CreateTemplate(ctx context.Context, payment *entity.RecurringPayment) error {
	if err := payment.Validate(); err != nil {
		return err
	}
	now := s.clock.Now()
	if payment.ID == "" {
		payment.ID = entity.NewID()
	}
	payment.ValidFrom = entity.DateOf(payment.ValidFrom)
	if payment.NextGenerationDate.IsZero() {
		payment.NextGenerationDate = payment.FirstGenerationDate()
	}
	payment.CreatedAt = now
	payment.UpdatedAt = now

	if err := s.recurringRepo.Create(ctx, payment); err != nil {
		return fmt.Errorf("failed to create recurring payment: %w", err)
	}
	return nil
}

// ListTemplates returns every recurring payment
func (s *recurringServiceImpl) ListTemplates(ctx context.Context) ([]*entity.RecurringPayment, error) {
	return s.recurringRepo.List(ctx)
}

func (s *recurringServiceImpl) observe(result string) {
	if s.observer != nil {
		s.observer.ObserveGeneration(result, 1)
	}
}
