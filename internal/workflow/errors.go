package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition occurs when an action is illegal for the current
	// status. Recoverable by re-inspecting status.
	ErrInvalidTransition = errors.New("workflow: invalid transition")
	// ErrRoleMismatch occurs when the actor lacks authority for the action.
	ErrRoleMismatch = errors.New("workflow: actor role not permitted")
	// ErrMissingReason occurs when a rejection omits a reason.
	ErrMissingReason = errors.New("workflow: rejection reason required")
	// ErrAlreadyFinalized guards terminal-only operations against repeats.
	ErrAlreadyFinalized = errors.New("workflow: document already finalized")
	// ErrStaleVersion indicates an optimistic-concurrency conflict. Callers
	// must re-fetch and re-evaluate, not blindly replay.
	ErrStaleVersion = errors.New("workflow: stale document version")
	// ErrQuantityOutOfRange indicates a quantity outside its legal bounds.
	ErrQuantityOutOfRange = errors.New("workflow: quantity out of range")
	// ErrNoIssuableItems occurs when every derived issue quantity is zero.
	ErrNoIssuableItems = errors.New("workflow: no issuable items")
	// ErrNoQuotationSelected occurs when PO creation finds no selected quotation.
	ErrNoQuotationSelected = errors.New("workflow: no quotation selected")
	// ErrMultipleQuotationsSelected occurs when more than one quotation is selected.
	ErrMultipleQuotationsSelected = errors.New("workflow: multiple quotations selected")
	// ErrUnknownLineItem occurs when a received line references no PO line.
	ErrUnknownLineItem = errors.New("workflow: unknown line item")
	// ErrOverReceiptNotAllowed occurs when received quantity exceeds ordered
	// quantity without the over-receipt flag.
	ErrOverReceiptNotAllowed = errors.New("workflow: over-receipt not allowed")
)

// TransitionError carries the context of a rejected transition attempt.
type TransitionError struct {
	Current Status
	Action  Action
	Reason  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("workflow: action %q illegal in status %q: %s", e.Action, e.Current, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func invalidTransition(current Status, action Action, reason string) error {
	return &TransitionError{Current: current, Action: action, Reason: reason}
}
