package workflow

// Trigger is an action that drives an invoice transition
type Trigger string

const (
	TriggerCompleteRecognition Trigger = "complete_recognition"
	TriggerSubmitToRegistry    Trigger = "submit_to_registry"
	TriggerApprove             Trigger = "approve"
	TriggerReject              Trigger = "reject"
	TriggerReschedule          Trigger = "reschedule"
	TriggerMarkPaid            Trigger = "mark_paid"
	TriggerCancel              Trigger = "cancel"
)

var validTriggers = map[Trigger]bool{
	TriggerCompleteRecognition: true,
	TriggerSubmitToRegistry:    true,
	TriggerApprove:             true,
	TriggerReject:              true,
	TriggerReschedule:          true,
	TriggerMarkPaid:            true,
	TriggerCancel:              true,
}

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// IsValid returns true if the trigger is a known action
func (t Trigger) IsValid() bool {
	return validTriggers[t]
}

// RequiresComment reports whether the action must carry a stated reason
func (t Trigger) RequiresComment() bool {
	return t == TriggerReject || t == TriggerReschedule
}
