// Package fulfillment coordinates cross-document operations: it reads one
// pipeline document, derives another and commits both sides through their
// owning services. It holds no state of its own.
package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Digigit24/kumsserp-sub000/internal/indent"
	"github.com/Digigit24/kumsserp-sub000/internal/inventory"
	"github.com/Digigit24/kumsserp-sub000/internal/issue"
	"github.com/Digigit24/kumsserp-sub000/internal/ledger"
	"github.com/Digigit24/kumsserp-sub000/internal/procurement"
	"github.com/Digigit24/kumsserp-sub000/internal/shared"
	"github.com/Digigit24/kumsserp-sub000/internal/workflow"
)

// IndentPort is the slice of the indent service the orchestrator needs.
type IndentPort interface {
	Get(ctx context.Context, id int64) (indent.Indent, error)
	RecordIssue(ctx context.Context, id int64, actor shared.Actor, issues []indent.LineIssue) (indent.Indent, error)
}

// IssuePort creates and finalizes material issue notes.
type IssuePort interface {
	Create(ctx context.Context, input issue.CreateInput) (issue.MaterialIssue, error)
	GetByIndent(ctx context.Context, indentID int64) (issue.MaterialIssue, error)
}

// ProcurementPort is the slice of the procurement service the orchestrator
// needs.
type ProcurementPort interface {
	GetRequirement(ctx context.Context, id int64) (procurement.Requirement, error)
	ListQuotations(ctx context.Context, requirementID int64) ([]procurement.Quotation, error)
	CreatePO(ctx context.Context, requirementID int64, actor shared.Actor, input procurement.POInput) (procurement.PurchaseOrder, error)
	GetPO(ctx context.Context, id int64) (procurement.PurchaseOrder, error)
	RecordReceipt(ctx context.Context, poID int64, actor shared.Actor, input procurement.ReceiptInput) (procurement.GoodsReceipt, error)
	GetGRN(ctx context.Context, id int64) (procurement.GoodsReceipt, error)
	MarkGRNPosted(ctx context.Context, id int64, actor shared.Actor) (procurement.GoodsReceipt, error)
	ClosePO(ctx context.Context, id int64, actor shared.Actor) (procurement.PurchaseOrder, error)
	MarkRequirementFulfilled(ctx context.Context, id int64, actor shared.Actor) (procurement.Requirement, error)
}

// InventoryPort reads snapshots and posts accepted stock.
type InventoryPort interface {
	AvailableQuantity(ctx context.Context, storeID, itemID int64) (float64, error)
	PostInbound(ctx context.Context, input inventory.InboundInput) (inventory.Balance, error)
}

// Orchestrator wires the four pipelines together.
type Orchestrator struct {
	indents     IndentPort
	issues      IssuePort
	procurement ProcurementPort
	inventory   InventoryPort
	idempotency *shared.IdempotencyStore
}

// NewOrchestrator constructs the orchestrator.
func NewOrchestrator(indents IndentPort, issues IssuePort, proc ProcurementPort, inv InventoryPort, idem *shared.IdempotencyStore) *Orchestrator {
	return &Orchestrator{indents: indents, issues: issues, procurement: proc, inventory: inv, idempotency: idem}
}

// DispatchInput names the MIN to prepare from an approved indent.
type DispatchInput struct {
	IndentID int64
	Number   string
	StoreID  int64
}

// PrepareDispatchFromIndent derives a material issue note from an approved
// indent: it snapshots available stock per line, clamps issue quantities to
// approval and availability, and records the issue back on the indent. When
// every derived quantity is zero nothing is persisted and NoIssuableItems is
// returned. Lines already issued in full are left off the new MIN, so its
// quantities are the delta for this round. Repeating the call for the same
// round returns the existing MIN.
func (o *Orchestrator) PrepareDispatchFromIndent(ctx context.Context, actor shared.Actor, input DispatchInput) (issue.MaterialIssue, error) {
	ind, err := o.indents.Get(ctx, input.IndentID)
	if err != nil {
		return issue.MaterialIssue{}, err
	}
	if ind.Status != indent.StatusSuperAdminApproved && ind.Status != indent.StatusPartiallyFulfilled {
		return issue.MaterialIssue{}, &workflow.TransitionError{Current: ind.Status, Action: "prepare_dispatch", Reason: "indent not approved for dispatch"}
	}

	var lines []issue.LineInput
	issuable := false
	for _, line := range ind.Lines {
		pending := line.ApprovedQty - line.IssuedQty
		if pending <= 0 {
			// Fully issued in an earlier round; keep it off this MIN so the
			// recorded quantities stay per-round deltas.
			continue
		}
		available, err := o.inventory.AvailableQuantity(ctx, input.StoreID, line.ItemID)
		if err != nil {
			return issue.MaterialIssue{}, err
		}
		reconciled := ledger.ReconcileIssue(ledger.Line{Approved: pending}, pending, available)
		if reconciled.Issued > 0 {
			issuable = true
		}
		lines = append(lines, issue.LineInput{
			IndentLineID: line.ID,
			ItemID:       line.ItemID,
			ApprovedQty:  line.ApprovedQty,
			AvailableQty: available,
			IssuedQty:    reconciled.Issued,
			HasShortage:  reconciled.HasShortage,
		})
	}
	if !issuable {
		return issue.MaterialIssue{}, fmt.Errorf("%w: indent %d has no stock to issue", workflow.ErrNoIssuableItems, ind.ID)
	}

	// One MIN per indent per fulfillment round; replays return the existing
	// document instead of double-issuing. The version scopes the key to the
	// round, so a later round against the updated indent gets a fresh key.
	idemKey := fmt.Sprintf("MIN:IND:%d:v%d", ind.ID, ind.Version)
	if o.idempotency != nil {
		if err := o.idempotency.CheckAndInsert(ctx, idemKey, issue.DocType); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return o.issues.GetByIndent(ctx, ind.ID)
			}
			return issue.MaterialIssue{}, err
		}
	}

	min, err := o.issues.Create(ctx, issue.CreateInput{
		Number:    input.Number,
		IndentID:  ind.ID,
		CollegeID: ind.CollegeID,
		StoreID:   input.StoreID,
		Lines:     lines,
	})
	if err != nil {
		if o.idempotency != nil {
			_ = o.idempotency.Delete(ctx, idemKey)
		}
		return issue.MaterialIssue{}, err
	}

	issues := make([]indent.LineIssue, 0, len(min.Lines))
	for _, line := range min.Lines {
		issues = append(issues, indent.LineIssue{
			LineID:      line.IndentLineID,
			IssuedQty:   line.IssuedQty,
			HasShortage: line.HasShortage,
		})
	}
	if _, err := o.indents.RecordIssue(ctx, ind.ID, actor, issues); err != nil {
		return issue.MaterialIssue{}, err
	}
	return min, nil
}

// POFromQuotationInput names the PO to create.
type POFromQuotationInput struct {
	RequirementID int64
	Number        string
}

// CreatePOFromSelectedQuotation issues a purchase order priced from the
// single selected quotation. Exactly one selection must exist; prices lock
// into the PO lines at this point and later quotation edits have no effect.
func (o *Orchestrator) CreatePOFromSelectedQuotation(ctx context.Context, actor shared.Actor, input POFromQuotationInput) (procurement.PurchaseOrder, error) {
	quotations, err := o.procurement.ListQuotations(ctx, input.RequirementID)
	if err != nil {
		return procurement.PurchaseOrder{}, err
	}
	var selected *procurement.Quotation
	for i := range quotations {
		if !quotations[i].IsSelected {
			continue
		}
		if selected != nil {
			return procurement.PurchaseOrder{}, fmt.Errorf("%w: requirement %d", workflow.ErrMultipleQuotationsSelected, input.RequirementID)
		}
		selected = &quotations[i]
	}
	if selected == nil {
		return procurement.PurchaseOrder{}, fmt.Errorf("%w: requirement %d", workflow.ErrNoQuotationSelected, input.RequirementID)
	}

	poInput := procurement.POInput{
		Number:      input.Number,
		QuotationID: selected.ID,
		VendorID:    selected.VendorID,
	}
	for _, line := range selected.Lines {
		poInput.Lines = append(poInput.Lines, procurement.POLineInput{
			ItemID:     line.ItemID,
			OrderedQty: line.Qty,
			UnitPrice:  line.UnitPrice,
		})
	}
	return o.procurement.CreatePO(ctx, input.RequirementID, actor, poInput)
}

// ReceiveGoodsFromPO records a delivery against the purchase order. Line
// validation and the over-receipt policy live in the procurement service.
func (o *Orchestrator) ReceiveGoodsFromPO(ctx context.Context, actor shared.Actor, poID int64, input procurement.ReceiptInput) (procurement.GoodsReceipt, error) {
	return o.procurement.RecordReceipt(ctx, poID, actor, input)
}

// PostGRNToInventory posts every accepted quantity of an approved goods
// receipt into stock, then finalizes the receipt. Posting is one-way: a
// replay against a posted GRN fails with AlreadyFinalized before any stock
// moves, and the per-movement idempotency key in the inventory service keeps
// a crash between lines from double-counting on retry.
func (o *Orchestrator) PostGRNToInventory(ctx context.Context, actor shared.Actor, grnID int64) (procurement.GoodsReceipt, error) {
	grn, err := o.procurement.GetGRN(ctx, grnID)
	if err != nil {
		return procurement.GoodsReceipt{}, err
	}
	if grn.Status == procurement.GRNStatusPosted {
		return procurement.GoodsReceipt{}, workflow.ErrAlreadyFinalized
	}
	if grn.Status != procurement.GRNStatusApproved && grn.Status != procurement.GRNStatusReceived {
		return procurement.GoodsReceipt{}, &workflow.TransitionError{Current: grn.Status, Action: procurement.GRNActionPost, Reason: "receipt not approved for posting"}
	}

	for _, line := range grn.Lines {
		accepted := line.AcceptedQty
		if grn.Status == procurement.GRNStatusReceived {
			// Inspection skipped by policy; everything received counts.
			accepted = line.ReceivedQty
		}
		if accepted <= 0 {
			continue
		}
		refID := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("GRN:%d:%d", grn.ID, line.ID)))
		_, err := o.inventory.PostInbound(ctx, inventory.InboundInput{
			Code:      fmt.Sprintf("GRN-%s-%d", grn.Number, line.ItemID),
			StoreID:   grn.StoreID,
			ItemID:    line.ItemID,
			Qty:       accepted,
			Note:      fmt.Sprintf("GRN %s posted", grn.Number),
			ActorID:   actor.ID,
			RefModule: procurement.DocTypeGRN,
			RefID:     refID.String(),
		})
		if err != nil && !errors.Is(err, shared.ErrIdempotencyConflict) {
			return procurement.GoodsReceipt{}, err
		}
	}
	return o.procurement.MarkGRNPosted(ctx, grnID, actor)
}

// CloseOutPO closes the purchase order and, when it was the requirement's
// only PO, marks the requirement fulfilled.
func (o *Orchestrator) CloseOutPO(ctx context.Context, actor shared.Actor, poID int64) (procurement.PurchaseOrder, error) {
	po, err := o.procurement.ClosePO(ctx, poID, actor)
	if err != nil {
		return procurement.PurchaseOrder{}, err
	}
	if po.RequirementID != 0 {
		if _, err := o.procurement.MarkRequirementFulfilled(ctx, po.RequirementID, actor); err != nil &&
			!errors.Is(err, workflow.ErrInvalidTransition) && !errors.Is(err, workflow.ErrAlreadyFinalized) {
			return po, err
		}
	}
	return po, nil
}
