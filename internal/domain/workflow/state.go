package workflow

// State represents an invoice status in the payables lifecycle
type State string

const (
	StateRecognition State = "recognition"
	StateReview      State = "review"
	StateInRegistry  State = "in_registry"
	StateApproved    State = "approved"
	StateSending     State = "sending"
	StatePaid        State = "paid"
	StateCancelled   State = "cancelled"
)

var validStates = map[State]bool{
	StateRecognition: true,
	StateReview:      true,
	StateInRegistry:  true,
	StateApproved:    true,
	StateSending:     true,
	StatePaid:        true,
	StateCancelled:   true,
}

var terminalStates = map[State]bool{
	StatePaid:      true,
	StateCancelled: true,
}

// AllStates lists every status in lifecycle order
func AllStates() []State {
	return []State{
		StateRecognition,
		StateReview,
		StateInRegistry,
		StateApproved,
		StateSending,
		StatePaid,
		StateCancelled,
	}
}

// IsTerminal returns true if no transition is accepted out of the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsPayable returns true while money for the invoice may still leave the company
func (s State) IsPayable() bool {
	return s.IsValid() && !s.IsTerminal()
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known invoice status
func (s State) IsValid() bool {
	return validStates[s]
}
