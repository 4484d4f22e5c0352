package dispatcher

import (
	"context"

	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/event"
)

// Handler reacts to a committed invoice event
type Handler func(ctx context.Context, evt *event.InvoiceEvent) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
