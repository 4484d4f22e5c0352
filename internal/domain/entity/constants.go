package entity

// Invoice source constants
const (
	SourceManual    = "manual"
	SourceBitrix    = "bitrix"
	SourceRecurring = "recurring"
)

// Recurring payment frequency constants
const (
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
	FrequencyYearly    = "yearly"
)

// Webhook request status constants
const (
	WebhookStatusAccepted  = "accepted"
	WebhookStatusFailed    = "failed"
	WebhookStatusDuplicate = "duplicate"
)

// Actor used for transitions performed by background workers
const ActorSystem = "system"

// DateLayout is the wire and storage format of calendar dates
const DateLayout = "2006-01-02"

// IsValidSource checks if the source is one of the known intake channels
func IsValidSource(source string) bool {
	switch source {
	case SourceManual, SourceBitrix, SourceRecurring:
		return true
	default:
		return false
	}
}
