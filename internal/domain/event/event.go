package event

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// InvoiceEvent is an immutable record of one invoice transition
type InvoiceEvent struct {
	ID         string                 `json:"id"`
	InvoiceID  string                 `json:"invoice_id"`
	Sequence   int64                  `json:"sequence"`
	Type       Type                   `json:"type"`
	Actor      string                 `json:"actor"`
	Comment    string                 `json:"comment,omitempty"`
	FromStatus workflow.State         `json:"from_status,omitempty"`
	ToStatus   workflow.State         `json:"to_status"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// NewInvoiceEvent creates an event with a generated ID; the sequence is assigned on append
func NewInvoiceEvent(invoiceID string, eventType Type, actor string, from, to workflow.State, at time.Time) *InvoiceEvent {
	return &InvoiceEvent{
		ID:         ulid.Make().String(),
		InvoiceID:  invoiceID,
		Type:       eventType,
		Actor:      actor,
		FromStatus: from,
		ToStatus:   to,
		Payload:    map[string]interface{}{},
		Timestamp:  at,
	}
}

// WithComment returns a copy of the event carrying the comment
func (e *InvoiceEvent) WithComment(comment string) *InvoiceEvent {
	c := e.clone()
	c.Comment = comment
	return c
}

// WithPayload returns a copy of the event with an added payload key-value pair
func (e *InvoiceEvent) WithPayload(key string, value interface{}) *InvoiceEvent {
	c := e.clone()
	c.Payload[key] = value
	return c
}

// GetPayloadString retrieves a string value from the payload
func (e *InvoiceEvent) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadFloat retrieves a float64 value from the payload
func (e *InvoiceEvent) GetPayloadFloat(key string) float64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		case int:
			return float64(v)
		}
	}
	return 0.0
}

func (e *InvoiceEvent) clone() *InvoiceEvent {
	c := *e
	c.Payload = make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		c.Payload[k] = v
	}
	return &c
}

// Query selects events for compliance lookups
type Query struct {
	Actor     string
	Type      Type
	InvoiceID string
	From      *time.Time
	To        *time.Time
	Limit     int
}

// Matches reports whether the event satisfies every set criterion of the query.
// The time range is half-open: From inclusive, To exclusive.
func (q Query) Matches(e *InvoiceEvent) bool {
	if q.Actor != "" && e.Actor != q.Actor {
		return false
	}
	if q.Type != "" && e.Type != q.Type {
		return false
	}
	if q.InvoiceID != "" && e.InvoiceID != q.InvoiceID {
		return false
	}
	if q.From != nil && e.Timestamp.Before(*q.From) {
		return false
	}
	if q.To != nil && !e.Timestamp.Before(*q.To) {
		return false
	}
	return true
}
