package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// RecurringPayment is a template that periodically spawns invoices
type RecurringPayment struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	CounterpartyID     string          `json:"counterparty_id"`
	CategoryID         string          `json:"category_id"`
	AccountID          string          `json:"account_id"`
	LegalEntityID      string          `json:"legal_entity_id"`
	ObjectID           string          `json:"object_id"`
	Amount             decimal.Decimal `json:"amount"`
	IsApproximate      bool            `json:"is_approximate"`
	Frequency          string          `json:"frequency"`
	DayOfMonth         int             `json:"day_of_month"`
	ValidFrom          time.Time       `json:"valid_from"`
	ValidTo            *time.Time      `json:"valid_to"`
	IsActive           bool            `json:"is_active"`
	NextGenerationDate time.Time       `json:"next_generation_date"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Validate checks the template's field invariants
func (r *RecurringPayment) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", workflow.ErrValidation)
	}
	if strings.TrimSpace(r.CounterpartyID) == "" {
		return fmt.Errorf("%w: counterparty is required", workflow.ErrValidation)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", workflow.ErrValidation)
	}
	switch r.Frequency {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
	default:
		return fmt.Errorf("%w: unknown frequency %q", workflow.ErrValidation, r.Frequency)
	}
	if r.DayOfMonth < 1 || r.DayOfMonth > 28 {
		return fmt.Errorf("%w: day_of_month must be within 1..28", workflow.ErrValidation)
	}
	if r.ValidTo != nil && r.ValidTo.Before(r.ValidFrom) {
		return fmt.Errorf("%w: valid_to precedes valid_from", workflow.ErrValidation)
	}
	return nil
}

// FirstGenerationDate returns the first cadence date on or after ValidFrom
func (r *RecurringPayment) FirstGenerationDate() time.Time {
	from := DateOf(r.ValidFrom)
	candidate := time.Date(from.Year(), from.Month(), r.DayOfMonth, 0, 0, 0, 0, time.UTC)
	if candidate.Before(from) {
		candidate = r.advance(candidate)
	}
	return candidate
}

// NextAfter returns the cadence date following date
func (r *RecurringPayment) NextAfter(date time.Time) time.Time {
	return r.advance(DateOf(date))
}

// ActiveOn reports whether the template may generate an invoice dated date
func (r *RecurringPayment) ActiveOn(date time.Time) bool {
	if !r.IsActive {
		return false
	}
	d := DateOf(date)
	if d.Before(DateOf(r.ValidFrom)) {
		return false
	}
	return r.ValidTo == nil || !d.After(DateOf(*r.ValidTo))
}

func (r *RecurringPayment) advance(date time.Time) time.Time {
	months := 1
	switch r.Frequency {
	case FrequencyQuarterly:
		months = 3
	case FrequencyYearly:
		months = 12
	}
	// day_of_month never exceeds 28, so the month arithmetic cannot overflow
	return time.Date(date.Year(), date.Month()+time.Month(months), r.DayOfMonth, 0, 0, 0, 0, time.UTC)
}
