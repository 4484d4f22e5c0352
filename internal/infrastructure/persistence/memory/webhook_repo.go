package memory

import (
	"context"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
)

// WebhookRequestRepository implements port.WebhookRequestRepository in memory
type WebhookRequestRepository struct {
	s *Store
}

func (r *WebhookRequestRepository) Create(ctx context.Context, req *entity.WebhookRequest) error {
	return r.s.write(ctx, func(d *state) error {
		d.webhooks = append(d.webhooks, *req)
		return nil
	})
}

// List returns requests newest first
func (r *WebhookRequestRepository) List(ctx context.Context, status string, limit int) ([]*entity.WebhookRequest, error) {
	result := []*entity.WebhookRequest{}
	r.s.read(func(d *state) {
		for i := len(d.webhooks) - 1; i >= 0; i-- {
			req := d.webhooks[i]
			if status != "" && req.Status != status {
				continue
			}
			result = append(result, &req)
			if limit > 0 && len(result) == limit {
				return
			}
		}
	})
	return result, nil
}

var _ port.WebhookRequestRepository = (*WebhookRequestRepository)(nil)
