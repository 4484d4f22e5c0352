package workflow

import (
	"context"
	"time"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// TransitionParams carries the caller-supplied inputs of one transition
type TransitionParams struct {
	Actor           string
	Comment         string
	NewDueDate      *time.Time
	OverrideDueDate bool
	ExpectedVersion *int64

	// Recognition is applied by complete_recognition when present
	Recognition *port.RecognitionResult
}

// ConsistencyReport compares the stored status with the one rebuilt from events
type ConsistencyReport struct {
	InvoiceID      string         `json:"invoice_id"`
	StoredStatus   domainwf.State `json:"stored_status"`
	ReplayedStatus domainwf.State `json:"replayed_status"`
	EventCount     int            `json:"event_count"`
	Consistent     bool           `json:"consistent"`
	Error          string         `json:"error,omitempty"`
}

// Engine owns the invoice lifecycle: it validates transitions, applies their
// side effects and appends exactly one event per accepted transition.
type Engine interface {
	// Create stores a new invoice together with its created event
	Create(ctx context.Context, invoice *entity.Invoice, actor string) error

	// Transition applies an action to an invoice and returns the updated invoice
	Transition(ctx context.Context, invoiceID string, action domainwf.Trigger, params TransitionParams) (*entity.Invoice, error)

	// VerifyConsistency replays the invoice's event log against its stored status
	VerifyConsistency(ctx context.Context, invoiceID string) (*ConsistencyReport, error)
}
