package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// RecurringPaymentRepository implements port.RecurringPaymentRepository in memory
type RecurringPaymentRepository struct {
	s *Store
}

func (r *RecurringPaymentRepository) Create(ctx context.Context, payment *entity.RecurringPayment) error {
	return r.s.write(ctx, func(d *state) error {
		if _, exists := d.recurring[payment.ID]; exists {
			return fmt.Errorf("%w: recurring payment %s already exists", workflow.ErrValidation, payment.ID)
		}
		d.recurring[payment.ID] = *payment
		return nil
	})
}

func (r *RecurringPaymentRepository) GetByID(ctx context.Context, id string) (*entity.RecurringPayment, error) {
	var found *entity.RecurringPayment
	r.s.read(func(d *state) {
		if p, ok := d.recurring[id]; ok {
			found = &p
		}
	})
	return found, nil
}

func (r *RecurringPaymentRepository) List(ctx context.Context) ([]*entity.RecurringPayment, error) {
	return r.filter(func(*entity.RecurringPayment) bool { return true }), nil
}

func (r *RecurringPaymentRepository) ListDue(ctx context.Context, today time.Time) ([]*entity.RecurringPayment, error) {
	day := entity.DateOf(today)
	return r.filter(func(p *entity.RecurringPayment) bool {
		return p.IsActive && !p.NextGenerationDate.After(day)
	}), nil
}

func (r *RecurringPaymentRepository) AdvanceNextGeneration(ctx context.Context, id string, from, to time.Time) error {
	return r.s.write(ctx, func(d *state) error {
		p, ok := d.recurring[id]
		if !ok {
			return fmt.Errorf("%w: recurring payment %s", workflow.ErrNotFound, id)
		}
		if !p.NextGenerationDate.Equal(entity.DateOf(from)) {
			return fmt.Errorf("%w: recurring payment %s already advanced past %s",
				workflow.ErrConcurrentModification, id, from.Format(entity.DateLayout))
		}
		p.NextGenerationDate = entity.DateOf(to)
		p.UpdatedAt = time.Now()
		d.recurring[id] = p
		return nil
	})
}

func (r *RecurringPaymentRepository) filter(match func(*entity.RecurringPayment) bool) []*entity.RecurringPayment {
	result := []*entity.RecurringPayment{}
	r.s.read(func(d *state) {
		for _, p := range d.recurring {
			p := p
			if match(&p) {
				result = append(result, &p)
			}
		}
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

var _ port.RecurringPaymentRepository = (*RecurringPaymentRepository)(nil)
