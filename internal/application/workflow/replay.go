package workflow

import (
	"context"
	"fmt"

	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/event"
	domainwf "github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// Replay rebuilds an invoice's status purely from its event log, oldest first,
// using the same transition table as live transitions.
func Replay(events []*event.InvoiceEvent) (domainwf.State, error) {
	if len(events) == 0 {
		return "", fmt.Errorf("%w: event log is empty", domainwf.ErrInvalidState)
	}

	first := events[0]
	if first.Type != event.TypeCreated {
		return "", fmt.Errorf("%w: log starts with %s instead of created", domainwf.ErrInvalidState, first.Type)
	}
	if first.ToStatus != domainwf.StateRecognition && first.ToStatus != domainwf.StateReview {
		return "", fmt.Errorf("%w: invoice created in status %q", domainwf.ErrInvalidState, first.ToStatus)
	}

	machine := BuildInvoiceStateMachine(first.ToStatus, Guards{})
	lastSeq := first.Sequence

	for _, evt := range events[1:] {
		if evt.Sequence <= lastSeq {
			return "", fmt.Errorf("%w: event %s out of order (sequence %d after %d)",
				domainwf.ErrInvalidState, evt.ID, evt.Sequence, lastSeq)
		}
		lastSeq = evt.Sequence

		if evt.Type == event.TypeDetailsUpdated {
			if evt.ToStatus != "" && evt.ToStatus != machine.State() {
				return "", fmt.Errorf("%w: edit %s recorded in %s but log is at %s",
					domainwf.ErrInvalidState, evt.ID, evt.ToStatus, machine.State())
			}
			continue
		}

		trigger, ok := evt.Type.Trigger()
		if !ok {
			return "", fmt.Errorf("%w: event %s has non-transition type %s", domainwf.ErrInvalidState, evt.ID, evt.Type)
		}
		if evt.FromStatus != "" && evt.FromStatus != machine.State() {
			return "", fmt.Errorf("%w: event %s starts from %s but log is at %s",
				domainwf.ErrInvalidState, evt.ID, evt.FromStatus, machine.State())
		}
		if err := machine.Fire(context.Background(), trigger); err != nil {
			return "", fmt.Errorf("replaying event %s: %w", evt.ID, err)
		}
		if evt.ToStatus != "" && evt.ToStatus != machine.State() {
			return "", fmt.Errorf("%w: event %s records %s but table yields %s",
				domainwf.ErrInvalidState, evt.ID, evt.ToStatus, machine.State())
		}
	}

	return machine.State(), nil
}
