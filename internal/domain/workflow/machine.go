package workflow

import "context"

// StateMachine tracks the current status of one invoice and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state, guards aside
	CanFire(trigger Trigger) bool

	// Fire evaluates the trigger's guards and moves to the target state when they pass
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger
}
