package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// Invoice is a payable document tracked from intake through payment
type Invoice struct {
	ID     string         `json:"id"`
	Number *string        `json:"number"`
	Source string         `json:"source"`
	Status workflow.State `json:"status"`

	AmountGross decimal.NullDecimal `json:"amount_gross"`
	AmountNet   decimal.NullDecimal `json:"amount_net"`
	AmountVAT   decimal.NullDecimal `json:"amount_vat"`

	InvoiceDate *time.Time `json:"invoice_date"`
	DueDate     *time.Time `json:"due_date"`

	CounterpartyID     string `json:"counterparty_id"`
	ObjectID           string `json:"object_id"`
	ContractID         string `json:"contract_id"`
	CategoryID         string `json:"category_id"`
	LegalEntityID      string `json:"legal_entity_id"`
	AccountID          string `json:"account_id"`
	SupplyRequestID    string `json:"supply_request_id"`
	DealID             string `json:"deal_id"`
	RecurringPaymentID string `json:"recurring_payment_id"`

	Confidence   *float64   `json:"confidence"`
	LineItems    []LineItem `json:"line_items"`
	DocumentPath string     `json:"document_path"`

	CreatedBy  string     `json:"created_by"`
	ReviewedBy string     `json:"reviewed_by"`
	ReviewedAt *time.Time `json:"reviewed_at"`
	ApprovedBy string     `json:"approved_by"`
	ApprovedAt *time.Time `json:"approved_at"`
	PaidAt     *time.Time `json:"paid_at"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineItem is one recognized row of an invoice document
type LineItem struct {
	RawName   string              `json:"raw_name"`
	Quantity  decimal.NullDecimal `json:"quantity"`
	Unit      string              `json:"unit"`
	Price     decimal.NullDecimal `json:"price"`
	Amount    decimal.NullDecimal `json:"amount"`
	ProductID *string             `json:"product_id"`
}

// InvoiceFilter narrows an invoice listing
type InvoiceFilter struct {
	Status workflow.State
	Source string
	Search string
	Limit  int
	Offset int
}

// Validate checks field-level invariants that hold in every status
func (i *Invoice) Validate() error {
	if !IsValidSource(i.Source) {
		return fmt.Errorf("%w: unknown source %q", workflow.ErrValidation, i.Source)
	}
	if !i.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", workflow.ErrValidation, i.Status)
	}
	for name, amount := range map[string]decimal.NullDecimal{
		"amount_gross": i.AmountGross,
		"amount_net":   i.AmountNet,
		"amount_vat":   i.AmountVAT,
	} {
		if amount.Valid && amount.Decimal.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", workflow.ErrValidation, name)
		}
	}
	if i.AmountGross.Valid && i.AmountNet.Valid && i.AmountVAT.Valid {
		if !i.AmountNet.Decimal.Add(i.AmountVAT.Decimal).Equal(i.AmountGross.Decimal) {
			return fmt.Errorf("%w: net %s + vat %s does not equal gross %s", workflow.ErrValidation,
				i.AmountNet.Decimal.StringFixed(2), i.AmountVAT.Decimal.StringFixed(2), i.AmountGross.Decimal.StringFixed(2))
		}
	}
	if i.Confidence != nil && (*i.Confidence < 0 || *i.Confidence > 1) {
		return fmt.Errorf("%w: confidence must be within 0..1", workflow.ErrValidation)
	}
	return nil
}

// MissingForRegistry lists the fields that block submission to the payment registry
func (i *Invoice) MissingForRegistry(overrideDueDate bool) []string {
	var missing []string
	if !i.AmountGross.Valid {
		missing = append(missing, "amount_gross")
	}
	if strings.TrimSpace(i.CounterpartyID) == "" {
		missing = append(missing, "counterparty")
	}
	if i.DueDate == nil && !overrideDueDate {
		missing = append(missing, "due_date")
	}
	return missing
}

// Gross returns the gross amount, zero when unset
func (i *Invoice) Gross() decimal.Decimal {
	if !i.AmountGross.Valid {
		return decimal.Zero
	}
	return i.AmountGross.Decimal
}

// Clone returns a copy that shares no mutable state with the receiver
func (i *Invoice) Clone() *Invoice {
	if i == nil {
		return nil
	}
	c := *i
	if i.LineItems != nil {
		c.LineItems = make([]LineItem, len(i.LineItems))
		copy(c.LineItems, i.LineItems)
	}
	return &c
}

// NullAmount wraps a decimal into a set NullDecimal
func NullAmount(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
