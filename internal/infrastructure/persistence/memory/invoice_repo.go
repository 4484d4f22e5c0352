package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// InvoiceRepository implements port.InvoiceRepository in memory
type InvoiceRepository struct {
	s *Store
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	return r.s.write(ctx, func(d *state) error {
		if _, exists := d.invoices[invoice.ID]; exists {
			return fmt.Errorf("%w: invoice %s already exists", workflow.ErrValidation, invoice.ID)
		}
		for _, existing := range d.invoices {
			if invoice.DealID != "" && existing.DealID == invoice.DealID {
				return fmt.Errorf("%w: deal %s already has invoice %s", workflow.ErrValidation, invoice.DealID, existing.ID)
			}
			if invoice.RecurringPaymentID != "" && existing.RecurringPaymentID == invoice.RecurringPaymentID &&
				sameDate(existing.DueDate, invoice.DueDate) {
				return fmt.Errorf("%w: recurring payment %s on %s", workflow.ErrDuplicateGeneration,
					invoice.RecurringPaymentID, entity.FormatDate(invoice.DueDate))
			}
		}
		d.invoices[invoice.ID] = *invoice.Clone()
		return nil
	})
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	var found *entity.Invoice
	r.s.read(func(d *state) {
		if inv, ok := d.invoices[id]; ok {
			found = inv.Clone()
		}
	})
	return found, nil
}

func (r *InvoiceRepository) GetByDealID(ctx context.Context, dealID string) (*entity.Invoice, error) {
	return r.find(func(inv *entity.Invoice) bool { return inv.DealID == dealID }), nil
}

func (r *InvoiceRepository) GetByGenerationKey(ctx context.Context, recurringPaymentID string, dueDate time.Time) (*entity.Invoice, error) {
	return r.find(func(inv *entity.Invoice) bool {
		return inv.RecurringPaymentID == recurringPaymentID && sameDate(inv.DueDate, &dueDate)
	}), nil
}

func (r *InvoiceRepository) Update(ctx context.Context, invoice *entity.Invoice, expectedVersion int64) error {
	return r.s.write(ctx, func(d *state) error {
		stored, ok := d.invoices[invoice.ID]
		if !ok {
			return fmt.Errorf("%w: invoice %s", workflow.ErrNotFound, invoice.ID)
		}
		if stored.Version != expectedVersion {
			return fmt.Errorf("%w: invoice %s is at version %d, expected %d",
				workflow.ErrConcurrentModification, invoice.ID, stored.Version, expectedVersion)
		}
		next := *invoice.Clone()
		next.Version = expectedVersion + 1
		next.CreatedAt = stored.CreatedAt
		d.invoices[invoice.ID] = next
		return nil
	})
}

func (r *InvoiceRepository) List(ctx context.Context, filter entity.InvoiceFilter) ([]*entity.Invoice, int, error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := r.filter(func(inv *entity.Invoice) bool {
		if filter.Status != "" && inv.Status != filter.Status {
			return false
		}
		if filter.Source != "" && inv.Source != filter.Source {
			return false
		}
		if search != "" {
			number := ""
			if inv.Number != nil {
				number = *inv.Number
			}
			haystack := strings.ToLower(strings.Join([]string{inv.ID, number, inv.CounterpartyID, inv.DealID}, " "))
			if !strings.Contains(haystack, search) {
				return false
			}
		}
		return true
	})

	// newest first
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	if filter.Offset >= total {
		return []*entity.Invoice{}, total, nil
	}
	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < total {
		end = filter.Offset + filter.Limit
	}
	return matched[filter.Offset:end], total, nil
}

func (r *InvoiceRepository) ListByStatus(ctx context.Context, status workflow.State, limit int) ([]*entity.Invoice, error) {
	matched := r.filter(func(inv *entity.Invoice) bool { return inv.Status == status })
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *InvoiceRepository) find(match func(*entity.Invoice) bool) *entity.Invoice {
	matched := r.filter(match)
	if len(matched) == 0 {
		return nil
	}
	return matched[0]
}

func (r *InvoiceRepository) filter(match func(*entity.Invoice) bool) []*entity.Invoice {
	var result []*entity.Invoice
	r.s.read(func(d *state) {
		for _, inv := range d.invoices {
			inv := inv
			if match(&inv) {
				result = append(result, inv.Clone())
			}
		}
	})
	return result
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return entity.DateOf(*a).Equal(entity.DateOf(*b))
}

var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
