package workflow

import (
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// Guards holds the precondition checks attached to guarded actions.
// A nil guard always passes, which is how replay rebuilds status from the log.
type Guards struct {
	SubmitToRegistry []domainwf.GuardFunc
	Reject           []domainwf.GuardFunc
	Reschedule       []domainwf.GuardFunc
	MarkPaid         []domainwf.GuardFunc
}

// BuildInvoiceStateMachine creates a state machine configured with the invoice lifecycle
func BuildInvoiceStateMachine(initialState domainwf.State, guards Guards) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StateRecognition).
		Permit(domainwf.TriggerCompleteRecognition, domainwf.StateReview).
		Permit(domainwf.TriggerCancel, domainwf.StateCancelled)

	builder.Configure(domainwf.StateReview).
		PermitIf(domainwf.TriggerSubmitToRegistry, domainwf.StateInRegistry, guards.SubmitToRegistry...).
		Permit(domainwf.TriggerCancel, domainwf.StateCancelled)

	// reschedule is a self-transition so the event records both due dates
	builder.Configure(domainwf.StateInRegistry).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		PermitIf(domainwf.TriggerReject, domainwf.StateCancelled, guards.Reject...).
		PermitIf(domainwf.TriggerReschedule, domainwf.StateInRegistry, guards.Reschedule...).
		Permit(domainwf.TriggerCancel, domainwf.StateCancelled)

	builder.Configure(domainwf.StateApproved).
		PermitIf(domainwf.TriggerMarkPaid, domainwf.StatePaid, guards.MarkPaid...).
		Permit(domainwf.TriggerCancel, domainwf.StateCancelled)

	// sending has no inbound transition but an invoice stuck there can still be cancelled
	builder.Configure(domainwf.StateSending).
		Permit(domainwf.TriggerCancel, domainwf.StateCancelled)

	// paid and cancelled are terminal

	return builder.Build(initialState)
}

// PermittedActions returns the actions configured for a status, guards aside
func PermittedActions(status domainwf.State) []domainwf.Trigger {
	if !status.IsValid() {
		return []domainwf.Trigger{}
	}
	return BuildInvoiceStateMachine(status, Guards{}).PermittedTriggers()
}
