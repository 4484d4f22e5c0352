package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
)

// RecognitionResult holds the fields extracted from an invoice document.
// Unset fields are left as zero values and never overwrite existing invoice data.
type RecognitionResult struct {
	Number           string
	InvoiceDate      *time.Time
	DueDate          *time.Time
	AmountGross      decimal.NullDecimal
	AmountNet        decimal.NullDecimal
	AmountVAT        decimal.NullDecimal
	CounterpartyName string
	CounterpartyINN  string
	LineItems        []entity.LineItem
	Confidence       float64
}

// DocumentRecognizer extracts invoice fields from an uploaded document
type DocumentRecognizer interface {
	Recognize(ctx context.Context, path string) (*RecognitionResult, error)
}

// DocumentTextExtractor turns a document into plain text
type DocumentTextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// Notification is a message to back-office operators
type Notification struct {
	Title     string
	Body      string
	InvoiceID string
}

// Notifier delivers operator notifications
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// TransitionObserver records transition outcomes for monitoring
type TransitionObserver interface {
	ObserveTransition(action, result string, duration time.Duration)
	ObserveGeneration(result string, count int)
	ObserveWebhook(status string)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
