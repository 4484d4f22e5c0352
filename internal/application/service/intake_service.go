package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
	"github.com/Prygunov-Andrei/finance-sub003/pkg/clock"
)

// ErrUnauthorized is returned when a CRM call carries a wrong application token
var ErrUnauthorized = errors.New("unauthorized")

// ActorBitrix is recorded as the creator of CRM-sourced invoices
const ActorBitrix = "bitrix"

// TokenVerifier checks the application token of an inbound CRM call
type TokenVerifier func(token string) bool

// BitrixDealPayload is the body of a CRM deal webhook
type BitrixDealPayload struct {
	Event string `json:"event"`
	Auth  struct {
		ApplicationToken string `json:"application_token"`
	} `json:"auth"`
	Deal BitrixDeal `json:"deal"`
}

// BitrixDeal carries the deal fields mapped onto an invoice
type BitrixDeal struct {
	ID              string              `json:"id"`
	Title           string              `json:"title"`
	InvoiceNumber   string              `json:"invoice_number"`
	Amount          decimal.NullDecimal `json:"amount"`
	DueDate         string              `json:"due_date"`
	CounterpartyID  string              `json:"counterparty_id"`
	ObjectID        string              `json:"object_id"`
	CategoryID      string              `json:"category_id"`
	LegalEntityID   string              `json:"legal_entity_id"`
	AccountID       string              `json:"account_id"`
	SupplyRequestID string              `json:"supply_request_id"`
}

// IntakeResult describes what became of one CRM call
type IntakeResult struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	InvoiceID string `json:"invoice_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// IntakeService maps CRM deals to invoices
type IntakeService interface {
	// HandleBitrixDeal records the call and creates the deal's invoice once.
	// Mapping failures are recorded, reported to operators and returned.
	HandleBitrixDeal(ctx context.Context, raw []byte) (*IntakeResult, error)

	ListRequests(ctx context.Context, status string, limit int) ([]*entity.WebhookRequest, error)
}

type intakeServiceImpl struct {
	invoices    InvoiceService
	invoiceRepo port.InvoiceRepository
	webhookRepo port.WebhookRequestRepository
	verify      TokenVerifier
	notifier    NotificationService
	observer    port.TransitionObserver
	clock       clock.Clock
	logger      Logger
}

// NewIntakeService creates a new IntakeService; notifier and observer may be nil
func NewIntakeService(
	invoices InvoiceService,
	invoiceRepo port.InvoiceRepository,
	webhookRepo port.WebhookRequestRepository,
	verify TokenVerifier,
	notifier NotificationService,
	observer port.TransitionObserver,
	clk clock.Clock,
	logger Logger,
) IntakeService {
	return &intakeServiceImpl{
		invoices:    invoices,
		invoiceRepo: invoiceRepo,
		webhookRepo: webhookRepo,
		verify:      verify,
		notifier:    notifier,
		observer:    observer,
		clock:       clk,
		logger:      logger,
	}
}

// HandleBitrixDeal processes one deal webhook
func (s *intakeServiceImpl) HandleBitrixDeal(ctx context.Context, raw []byte) (*IntakeResult, error) {
	req := &entity.WebhookRequest{
		ID:         entity.NewID(),
		Source:     entity.SourceBitrix,
		Payload:    string(raw),
		ReceivedAt: s.clock.Now(),
	}

	var payload BitrixDealPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return s.fail(ctx, req, fmt.Errorf("%w: malformed deal payload: %v", domainwf.ErrValidation, err), true)
	}
	req.ExternalRef = strings.TrimSpace(payload.Deal.ID)

	if s.verify != nil && !s.verify(payload.Auth.ApplicationToken) {
		return s.fail(ctx, req, fmt.Errorf("%w: invalid application token", ErrUnauthorized), false)
	}

	if req.ExternalRef == "" {
		return s.fail(ctx, req, fmt.Errorf("%w: deal id is required", domainwf.ErrValidation), true)
	}

	existing, err := s.invoiceRepo.GetByDealID(ctx, req.ExternalRef)
	if err != nil {
		return nil, fmt.Errorf("failed to look up deal: %w", err)
	}
	if existing != nil {
		return s.duplicate(ctx, req, existing.ID)
	}

	input, err := mapDeal(payload.Deal)
	if err != nil {
		return s.fail(ctx, req, err, true)
	}

	inv, err := s.invoices.CreateInvoice(ctx, entity.SourceBitrix, input, ActorBitrix)
	if err != nil {
		// a concurrent call for the same deal may have won the unique deal constraint
		if winner, lookupErr := s.invoiceRepo.GetByDealID(ctx, req.ExternalRef); lookupErr == nil && winner != nil {
			return s.duplicate(ctx, req, winner.ID)
		}
		return s.fail(ctx, req, err, true)
	}

	req.Status = entity.WebhookStatusAccepted
	req.InvoiceID = inv.ID
	if err := s.record(ctx, req); err != nil {
		return nil, err
	}
	s.logger.Info("Bitrix deal accepted", "deal_id", req.ExternalRef, "invoice_id", inv.ID)
	return resultOf(req), nil
}

func mapDeal(deal BitrixDeal) (CreateInvoiceInput, error) {
	input := CreateInvoiceInput{
		AmountGross:     deal.Amount,
		CounterpartyID:  strings.TrimSpace(deal.CounterpartyID),
		ObjectID:        deal.ObjectID,
		CategoryID:      deal.CategoryID,
		LegalEntityID:   deal.LegalEntityID,
		AccountID:       deal.AccountID,
		SupplyRequestID: deal.SupplyRequestID,
		DealID:          strings.TrimSpace(deal.ID),
	}
	if n := strings.TrimSpace(deal.InvoiceNumber); n != "" {
		input.Number = &n
	}
	if deal.DueDate != "" {
		due, err := entity.ParseDate(deal.DueDate)
		if err != nil {
			return input, fmt.Errorf("%w: due_date %q: %v", domainwf.ErrValidation, deal.DueDate, err)
		}
		input.DueDate = &due
	}
	return input, nil
}

func (s *intakeServiceImpl) duplicate(ctx context.Context, req *entity.WebhookRequest, invoiceID string) (*IntakeResult, error) {
	req.Status = entity.WebhookStatusDuplicate
	req.InvoiceID = invoiceID
	if err := s.record(ctx, req); err != nil {
		return nil, err
	}
	s.logger.Info("Bitrix deal already imported", "deal_id", req.ExternalRef, "invoice_id", invoiceID)
	return resultOf(req), nil
}

func (s *intakeServiceImpl) fail(ctx context.Context, req *entity.WebhookRequest, cause error, notify bool) (*IntakeResult, error) {
	req.Status = entity.WebhookStatusFailed
	req.Error = cause.Error()
	if err := s.record(ctx, req); err != nil {
		return nil, errors.Join(cause, err)
	}

	s.logger.Error("Bitrix deal rejected", "request_id", req.ID, "deal_id", req.ExternalRef, "error", cause)
	if notify && s.notifier != nil {
		s.notifier.NotifyWebhookFailure(ctx, req)
	}
	return resultOf(req), cause
}

func (s *intakeServiceImpl) record(ctx context.Context, req *entity.WebhookRequest) error {
	if s.observer != nil {
		s.observer.ObserveWebhook(req.Status)
	}
	if err := s.webhookRepo.Create(ctx, req); err != nil {
		s.logger.Error("Failed to record webhook request", "request_id", req.ID, "error", err)
		return fmt.Errorf("failed to record webhook request: %w", err)
	}
	return nil
}

func resultOf(req *entity.WebhookRequest) *IntakeResult {
	return &IntakeResult{
		RequestID: req.ID,
		Status:    req.Status,
		InvoiceID: req.InvoiceID,
		Error:     req.Error,
	}
}

// ListRequests returns the webhook request log, newest first
func (s *intakeServiceImpl) ListRequests(ctx context.Context, status string, limit int) ([]*entity.WebhookRequest, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return s.webhookRepo.List(ctx, status, limit)
}
