package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/application/workflow"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/event"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/overdue"
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
	"github.com/Prygunov-Andrei/finance-sub003/pkg/clock"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// CreateInvoiceInput holds the caller-supplied fields of a new invoice
type CreateInvoiceInput struct {
	Number          *string
	AmountGross     decimal.NullDecimal
	AmountNet       decimal.NullDecimal
	AmountVAT       decimal.NullDecimal
	InvoiceDate     *time.Time
	DueDate         *time.Time
	CounterpartyID  string
	ObjectID        string
	ContractID      string
	CategoryID      string
	LegalEntityID   string
	AccountID       string
	SupplyRequestID string
	DealID          string
	LineItems       []entity.LineItem

	// Document is the uploaded invoice file awaiting recognition
	Document     []byte
	DocumentName string
}

// DetailsPatch edits invoice fields before the invoice reaches the registry.
// Nil fields are left unchanged.
type DetailsPatch struct {
	Number         *string
	AmountGross    *decimal.Decimal
	AmountNet      *decimal.Decimal
	AmountVAT      *decimal.Decimal
	InvoiceDate    *time.Time
	DueDate        *time.Time
	CounterpartyID *string
	ObjectID       *string
	ContractID     *string
	CategoryID     *string
	LegalEntityID  *string
	AccountID      *string
}

// InvoiceDetails is an invoice with its history and derived state
type InvoiceDetails struct {
	Invoice          *entity.Invoice       `json:"invoice"`
	Events           []*event.InvoiceEvent `json:"events"`
	LineItems        []entity.LineItem     `json:"line_items"`
	Bucket           overdue.Bucket        `json:"overdue_bucket"`
	IsOverdue        bool                  `json:"is_overdue"`
	PermittedActions []domainwf.Trigger    `json:"permitted_actions"`
}

// InvoiceSummary is one row of an invoice listing
type InvoiceSummary struct {
	ID             string              `json:"id"`
	Number         *string             `json:"number"`
	Source         string              `json:"source"`
	Status         domainwf.State      `json:"status"`
	AmountGross    decimal.NullDecimal `json:"amount_gross"`
	DueDate        *time.Time          `json:"due_date"`
	CounterpartyID string              `json:"counterparty_id"`
	ObjectID       string              `json:"object_id"`
	CategoryID     string              `json:"category_id"`
	Bucket         overdue.Bucket      `json:"overdue_bucket"`
	Version        int64               `json:"version"`
}

// InvoicePage is a page of invoice summaries
type InvoicePage struct {
	Items  []*InvoiceSummary `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// InvoiceService is the request/response contract of the invoice core
type InvoiceService interface {
	CreateInvoice(ctx context.Context, source string, input CreateInvoiceInput, actor string) (*entity.Invoice, error)
	// UpdateDetails edits descriptive fields and records who changed what in a details_updated event
	UpdateDetails(ctx context.Context, id string, patch DetailsPatch, actor string, expectedVersion *int64) (*entity.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*InvoiceDetails, error)
	ListInvoices(ctx context.Context, filter entity.InvoiceFilter) (*InvoicePage, error)
	ListEvents(ctx context.Context, id string) ([]*event.InvoiceEvent, error)
	QueryEvents(ctx context.Context, q event.Query) ([]*event.InvoiceEvent, error)
}

type invoiceServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	eventRepo   port.EventRepository
	engine      workflow.Engine
	txManager   port.TransactionManager
	storage     port.FileStorage
	clock       clock.Clock
	logger      Logger
}

// NewInvoiceService creates a new InvoiceService; storage may be nil when uploads are disabled
func NewInvoiceService(
	invoiceRepo port.InvoiceRepository,
	eventRepo port.EventRepository,
	engine workflow.Engine,
	txManager port.TransactionManager,
	storage port.FileStorage,
	clk clock.Clock,
	logger Logger,
) InvoiceService {
	return &invoiceServiceImpl{
		invoiceRepo: invoiceRepo,
		eventRepo:   eventRepo,
		engine:      engine,
		txManager:   txManager,
		storage:     storage,
		clock:       clk,
		logger:      logger,
	}
}

// CreateInvoice creates an invoice from a public intake channel
func (s *invoiceServiceImpl) CreateInvoice(ctx context.Context, source string, input CreateInvoiceInput, actor string) (*entity.Invoice, error) {
	switch source {
	case entity.SourceManual:
		var missing []string
		if !input.AmountGross.Valid {
			missing = append(missing, "amount_gross")
		}
		if strings.TrimSpace(input.CounterpartyID) == "" {
			missing = append(missing, "counterparty")
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("%w: manual invoice requires %s", domainwf.ErrValidation, strings.Join(missing, ", "))
		}
	case entity.SourceBitrix:
		if strings.TrimSpace(input.DealID) == "" {
			return nil, fmt.Errorf("%w: bitrix invoice requires a deal reference", domainwf.ErrValidation)
		}
	case entity.SourceRecurring:
		return nil, fmt.Errorf("%w: recurring invoices are generated by the scheduler", domainwf.ErrValidation)
	default:
		return nil, fmt.Errorf("%w: unknown source %q", domainwf.ErrValidation, source)
	}

	inv := &entity.Invoice{
		ID:              entity.NewID(),
		Number:          input.Number,
		Source:          source,
		Status:          domainwf.StateRecognition,
		AmountGross:     input.AmountGross,
		AmountNet:       input.AmountNet,
		AmountVAT:       input.AmountVAT,
		InvoiceDate:     dateOnly(input.InvoiceDate),
		DueDate:         dateOnly(input.DueDate),
		CounterpartyID:  strings.TrimSpace(input.CounterpartyID),
		ObjectID:        input.ObjectID,
		ContractID:      input.ContractID,
		CategoryID:      input.CategoryID,
		LegalEntityID:   input.LegalEntityID,
		AccountID:       input.AccountID,
		SupplyRequestID: input.SupplyRequestID,
		DealID:          input.DealID,
		LineItems:       input.LineItems,
	}

	if len(input.Document) > 0 {
		if s.storage == nil {
			return nil, fmt.Errorf("%w: document uploads are not configured", domainwf.ErrValidation)
		}
		path := filepath.Join("documents", inv.ID, filepath.Base(input.DocumentName))
		if err := s.storage.Save(ctx, path, input.Document); err != nil {
			return nil, fmt.Errorf("failed to store document: %w", err)
		}
		inv.DocumentPath = path
	}

	if err := s.engine.Create(ctx, inv, actor); err != nil {
		if inv.DocumentPath != "" {
			if delErr := s.storage.Delete(ctx, inv.DocumentPath); delErr != nil {
				s.logger.Error("Failed to remove document of rejected invoice",
					"path", inv.DocumentPath,
					"error", delErr,
				)
			}
		}
		return nil, err
	}

	s.logger.Info("Invoice created",
		"invoice_id", inv.ID,
		"source", source,
		"actor", actor,
	)
	return inv, nil
}

// UpdateDetails edits an invoice still in recognition or review
func (s *invoiceServiceImpl) UpdateDetails(ctx context.Context, id string, patch DetailsPatch, actor string, expectedVersion *int64) (*entity.Invoice, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, fmt.Errorf("%w: actor is required", domainwf.ErrValidation)
	}

	current, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	if current == nil {
		return nil, fmt.Errorf("%w: invoice %s", domainwf.ErrNotFound, id)
	}
	if current.Status != domainwf.StateRecognition && current.Status != domainwf.StateReview {
		return nil, fmt.Errorf("%w: invoice in status %s can no longer be edited", domainwf.ErrInvalidTransition, current.Status)
	}
	if expectedVersion != nil && *expectedVersion != current.Version {
		return nil, fmt.Errorf("%w: invoice %s is at version %d", domainwf.ErrConcurrentModification, id, current.Version)
	}

	now := s.clock.Now()
	updated := current.Clone()
	patch.applyTo(updated)
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	changes := detailChanges(current, updated)
	if len(changes) == 0 {
		return current, nil
	}
	updated.UpdatedAt = now

	evt := event.NewInvoiceEvent(id, event.TypeDetailsUpdated, actor, current.Status, current.Status, now).
		WithPayload("changes", changes)

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.invoiceRepo.Update(txCtx, updated, current.Version); err != nil {
			return err
		}
		if err := s.eventRepo.Append(txCtx, evt); err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	updated.Version = current.Version + 1

	s.logger.Info("Invoice details updated",
		"invoice_id", id,
		"actor", actor,
		"fields", len(changes),
	)
	return updated, nil
}

// detailChanges lists the edited fields with their old and new values
func detailChanges(before, after *entity.Invoice) map[string]interface{} {
	fields := []struct {
		name     string
		old, new string
	}{
		{"number", stringOf(before.Number), stringOf(after.Number)},
		{"amount_gross", amountOf(before.AmountGross), amountOf(after.AmountGross)},
		{"amount_net", amountOf(before.AmountNet), amountOf(after.AmountNet)},
		{"amount_vat", amountOf(before.AmountVAT), amountOf(after.AmountVAT)},
		{"invoice_date", entity.FormatDate(before.InvoiceDate), entity.FormatDate(after.InvoiceDate)},
		{"due_date", entity.FormatDate(before.DueDate), entity.FormatDate(after.DueDate)},
		{"counterparty_id", before.CounterpartyID, after.CounterpartyID},
		{"object_id", before.ObjectID, after.ObjectID},
		{"contract_id", before.ContractID, after.ContractID},
		{"category_id", before.CategoryID, after.CategoryID},
		{"legal_entity_id", before.LegalEntityID, after.LegalEntityID},
		{"account_id", before.AccountID, after.AccountID},
	}

	changes := make(map[string]interface{})
	for _, f := range fields {
		if f.old != f.new {
			changes[f.name] = map[string]interface{}{"old": f.old, "new": f.new}
		}
	}
	return changes
}

func stringOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func amountOf(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func (p DetailsPatch) applyTo(inv *entity.Invoice) {
	if p.Number != nil {
		inv.Number = p.Number
	}
	if p.AmountGross != nil {
		inv.AmountGross = entity.NullAmount(*p.AmountGross)
	}
	if p.AmountNet != nil {
		inv.AmountNet = entity.NullAmount(*p.AmountNet)
	}
	if p.AmountVAT != nil {
		inv.AmountVAT = entity.NullAmount(*p.AmountVAT)
	}
	if p.InvoiceDate != nil {
		inv.InvoiceDate = dateOnly(p.InvoiceDate)
	}
	if p.DueDate != nil {
		inv.DueDate = dateOnly(p.DueDate)
	}
	setString(&inv.CounterpartyID, p.CounterpartyID)
	setString(&inv.ObjectID, p.ObjectID)
	setString(&inv.ContractID, p.ContractID)
	setString(&inv.CategoryID, p.CategoryID)
	setString(&inv.LegalEntityID, p.LegalEntityID)
	setString(&inv.AccountID, p.AccountID)
}

// GetInvoice returns an invoice with its events, line items and overdue bucket
func (s *invoiceServiceImpl) GetInvoice(ctx context.Context, id string) (*InvoiceDetails, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: invoice %s", domainwf.ErrNotFound, id)
	}

	events, err := s.eventRepo.ListByInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	bucket := overdue.Classify(inv.Status, inv.DueDate, s.clock.Now())
	lineItems := inv.LineItems
	if lineItems == nil {
		lineItems = []entity.LineItem{}
	}

	return &InvoiceDetails{
		Invoice:          inv,
		Events:           events,
		LineItems:        lineItems,
		Bucket:           bucket,
		IsOverdue:        bucket == overdue.BucketOverdue,
		PermittedActions: workflow.PermittedActions(inv.Status),
	}, nil
}

// ListInvoices returns a page of invoice summaries
func (s *invoiceServiceImpl) ListInvoices(ctx context.Context, filter entity.InvoiceFilter) (*InvoicePage, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domainwf.ErrValidation, filter.Status)
	}
	if filter.Source != "" && !entity.IsValidSource(filter.Source) {
		return nil, fmt.Errorf("%w: unknown source %q", domainwf.ErrValidation, filter.Source)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	invoices, total, err := s.invoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	now := s.clock.Now()
	items := make([]*InvoiceSummary, 0, len(invoices))
	for _, inv := range invoices {
		items = append(items, &InvoiceSummary{
			ID:             inv.ID,
			Number:         inv.Number,
			Source:         inv.Source,
			Status:         inv.Status,
			AmountGross:    inv.AmountGross,
			DueDate:        inv.DueDate,
			CounterpartyID: inv.CounterpartyID,
			ObjectID:       inv.ObjectID,
			CategoryID:     inv.CategoryID,
			Bucket:         overdue.Classify(inv.Status, inv.DueDate, now),
			Version:        inv.Version,
		})
	}

	return &InvoicePage{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// ListEvents returns an invoice's history oldest first
func (s *invoiceServiceImpl) ListEvents(ctx context.Context, id string) ([]*event.InvoiceEvent, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: invoice %s", domainwf.ErrNotFound, id)
	}
	return s.eventRepo.ListByInvoice(ctx, id)
}

// QueryEvents answers audit questions such as who approved what and when
func (s *invoiceServiceImpl) QueryEvents(ctx context.Context, q event.Query) ([]*event.InvoiceEvent, error) {
	if q.Type != "" && !q.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown event type %q", domainwf.ErrValidation, q.Type)
	}
	if q.From != nil && q.To != nil && !q.From.Before(*q.To) {
		return nil, fmt.Errorf("%w: from must precede to", domainwf.ErrValidation)
	}
	if q.Limit <= 0 || q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	return s.eventRepo.Query(ctx, q)
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := entity.DateOf(*t)
	return &d
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}
