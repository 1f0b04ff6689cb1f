// Package ledger reconciles per-line quantities across workflow stages.
// All functions are pure; the state machine calls them before committing a
// transition that touches quantities.
package ledger

import (
	"fmt"

	"github.com/Digigit24/kumsserp-sub000/internal/workflow"
)

// Line holds the quantity fields of one document line item. Quantities are
// unit-scoped and non-negative.
type Line struct {
	Requested   float64
	Approved    float64
	Available   float64
	Issued      float64
	Received    float64
	Accepted    float64
	Rejected    float64
	HasShortage bool
}

// Pending is the quantity still owed against the approval. Derived, never
// stored independently.
func (l Line) Pending() float64 {
	if p := l.Approved - l.Issued; p > 0 {
		return p
	}
	return 0
}

// ReconcileApproval applies the approver's quantity. Approved quantity may be
// reduced but never increased beyond the requested quantity.
func ReconcileApproval(l Line, approvedQty float64) (Line, error) {
	if approvedQty < 0 {
		return l, fmt.Errorf("%w: approved quantity %.2f is negative", workflow.ErrQuantityOutOfRange, approvedQty)
	}
	if approvedQty > l.Requested {
		return l, fmt.Errorf("%w: approved quantity %.2f exceeds requested %.2f", workflow.ErrQuantityOutOfRange, approvedQty, l.Requested)
	}
	l.Approved = approvedQty
	return l, nil
}

// ReconcileIssue clamps the issued quantity to the approved quantity and the
// available stock snapshot. Shortage is a flagged outcome, never an error:
// partial fulfillment is a valid business path.
func ReconcileIssue(l Line, desiredQty, availableQty float64) Line {
	issued := desiredQty
	if issued > l.Approved {
		issued = l.Approved
	}
	if issued > availableQty {
		issued = availableQty
	}
	if issued < 0 {
		issued = 0
	}
	l.Available = availableQty
	l.Issued = issued
	l.HasShortage = issued < l.Approved
	return l
}

// ReconcileReceipt splits a received quantity into accepted and rejected.
// Invariant: accepted + rejected == received.
func ReconcileReceipt(l Line, receivedQty, acceptedQty float64) (Line, error) {
	if receivedQty < 0 {
		return l, fmt.Errorf("%w: received quantity %.2f is negative", workflow.ErrQuantityOutOfRange, receivedQty)
	}
	if acceptedQty < 0 || acceptedQty > receivedQty {
		return l, fmt.Errorf("%w: accepted quantity %.2f outside [0, %.2f]", workflow.ErrQuantityOutOfRange, acceptedQty, receivedQty)
	}
	l.Received = receivedQty
	l.Accepted = acceptedQty
	l.Rejected = receivedQty - acceptedQty
	return l, nil
}

// Outcome summarises a dispatch-stage document's fulfillment.
type Outcome int

const (
	// OutcomeUnchanged means nothing has been issued yet.
	OutcomeUnchanged Outcome = iota
	// OutcomePartial means at least one line was issued short.
	OutcomePartial
	// OutcomeFulfilled means every line was issued in full.
	OutcomeFulfilled
)

// AggregateStatus derives the document-level fulfillment outcome from all
// reconciled lines. This is the single source of truth for the
// fulfilled/partially-fulfilled distinction in both pipelines.
func AggregateStatus(lines []Line) Outcome {
	if len(lines) == 0 {
		return OutcomeUnchanged
	}
	full := true
	anyIssued := false
	for _, l := range lines {
		if l.Issued > 0 {
			anyIssued = true
		}
		if l.Issued < l.Approved {
			full = false
		}
	}
	switch {
	case full:
		return OutcomeFulfilled
	case anyIssued:
		return OutcomePartial
	default:
		return OutcomeUnchanged
	}
}
