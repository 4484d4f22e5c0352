package event

import "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"

// Type identifies the kind of invoice event
type Type string

const (
	TypeCreated              Type = "created"
	TypeRecognitionCompleted Type = "recognition_completed"
	TypeSubmittedToRegistry  Type = "submitted_to_registry"
	TypeApproved             Type = "approved"
	TypeRejected             Type = "rejected"
	TypeRescheduled          Type = "rescheduled"
	TypePaid                 Type = "paid"
	TypeCancelled            Type = "cancelled"

	// TypeDetailsUpdated records an edit of descriptive fields; the status does not change
	TypeDetailsUpdated Type = "details_updated"
)

var triggerTypes = map[workflow.Trigger]Type{
	workflow.TriggerCompleteRecognition: TypeRecognitionCompleted,
	workflow.TriggerSubmitToRegistry:    TypeSubmittedToRegistry,
	workflow.TriggerApprove:             TypeApproved,
	workflow.TriggerReject:              TypeRejected,
	workflow.TriggerReschedule:          TypeRescheduled,
	workflow.TriggerMarkPaid:            TypePaid,
	workflow.TriggerCancel:              TypeCancelled,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	if t == TypeCreated || t == TypeDetailsUpdated {
		return true
	}
	_, ok := t.Trigger()
	return ok
}

// Trigger returns the action that produces this event type.
// TypeCreated and TypeDetailsUpdated have no trigger.
func (t Type) Trigger() (workflow.Trigger, bool) {
	for trigger, typ := range triggerTypes {
		if typ == t {
			return trigger, true
		}
	}
	return "", false
}

// TypeForTrigger returns the event type recorded for an accepted action
func TypeForTrigger(trigger workflow.Trigger) (Type, bool) {
	t, ok := triggerTypes[trigger]
	return t, ok
}
