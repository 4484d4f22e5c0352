package entity

import "time"

// WebhookRequest records one inbound CRM call and what became of it
type WebhookRequest struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	ExternalRef string    `json:"external_ref"`
	Payload     string    `json:"payload"`
	Status      string    `json:"status"`
	Error       string    `json:"error"`
	InvoiceID   string    `json:"invoice_id"`
	ReceivedAt  time.Time `json:"received_at"`
}
