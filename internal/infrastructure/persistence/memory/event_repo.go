package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/event"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// EventRepository implements the append-only event log in memory
type EventRepository struct {
	s *Store
}

func (r *EventRepository) Append(ctx context.Context, evt *event.InvoiceEvent) error {
	return r.s.write(ctx, func(d *state) error {
		if _, ok := d.invoices[evt.InvoiceID]; !ok {
			return fmt.Errorf("%w: invoice %s", workflow.ErrNotFound, evt.InvoiceID)
		}
		log := d.events[evt.InvoiceID]
		evt.Sequence = int64(len(log)) + 1
		d.events[evt.InvoiceID] = append(log, copyEvent(evt))
		return nil
	})
}

func (r *EventRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]*event.InvoiceEvent, error) {
	result := []*event.InvoiceEvent{}
	r.s.read(func(d *state) {
		for _, evt := range d.events[invoiceID] {
			c := copyEvent(&evt)
			result = append(result, &c)
		}
	})
	return result, nil
}

func (r *EventRepository) Query(ctx context.Context, q event.Query) ([]*event.InvoiceEvent, error) {
	result := []*event.InvoiceEvent{}
	r.s.read(func(d *state) {
		for _, log := range d.events {
			for _, evt := range log {
				if q.Matches(&evt) {
					c := copyEvent(&evt)
					result = append(result, &c)
				}
			}
		}
	})

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].ID < result[j].ID
		}
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

func copyEvent(evt *event.InvoiceEvent) event.InvoiceEvent {
	c := *evt
	c.Payload = make(map[string]interface{}, len(evt.Payload))
	for k, v := range evt.Payload {
		c.Payload[k] = v
	}
	return c
}

var _ port.EventRepository = (*EventRepository)(nil)
