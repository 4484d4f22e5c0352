package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when the action is not permitted from the current status
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrIncompleteInvoice is returned when a required field is missing for the requested action
	ErrIncompleteInvoice = errors.New("incomplete invoice")

	// ErrMissingComment is returned when reject or reschedule is requested without a reason
	ErrMissingComment = errors.New("missing comment")

	// ErrInsufficientContext is returned when reference data needed by the action is not configured
	ErrInsufficientContext = errors.New("insufficient context")

	// ErrConcurrentModification is returned when another transition committed first
	ErrConcurrentModification = errors.New("concurrent modification")
)

var (
	// ErrDuplicateGeneration is returned when a recurring period already produced an invoice
	ErrDuplicateGeneration = errors.New("duplicate generation")

	// ErrNotFound is returned when the requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when input fails field validation
	ErrValidation = errors.New("validation failed")
)

// Code returns the stable machine-readable name of a workflow error, or "internal"
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrIncompleteInvoice):
		return "incomplete_invoice"
	case errors.Is(err, ErrMissingComment):
		return "missing_comment"
	case errors.Is(err, ErrInsufficientContext):
		return "insufficient_context"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, ErrDuplicateGeneration):
		return "duplicate_generation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidState):
		return "validation_failed"
	default:
		return "internal"
	}
}
