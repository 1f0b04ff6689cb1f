package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Digigit24/kumsserp-sub000/internal/ledger"
	"github.com/Digigit24/kumsserp-sub000/internal/notify"
	"github.com/Digigit24/kumsserp-sub000/internal/shared"
	"github.com/Digigit24/kumsserp-sub000/internal/workflow"
)

// ErrValidation indicates invalid input.
var ErrValidation = errors.New("procurement: invalid input")

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	GetRequirement(ctx context.Context, id int64) (Requirement, error)
	CreateRequirement(ctx context.Context, req Requirement) (Requirement, error)
	SaveRequirement(ctx context.Context, req Requirement, expectedVersion int64) (Requirement, error)
	DeleteRequirementDraft(ctx context.Context, id int64) error
	ListRequirements(ctx context.Context, limit, offset int, filters ListFilters) ([]RequirementListItem, int, error)

	CreateQuotation(ctx context.Context, q Quotation) (Quotation, error)
	// DeleteQuotation compensates a quotation whose requirement save failed.
	DeleteQuotation(ctx context.Context, id int64) error
	GetQuotation(ctx context.Context, id int64) (Quotation, error)
	ListQuotations(ctx context.Context, requirementID int64) ([]Quotation, error)
	// MarkQuotationSelected sets IsSelected on one quotation and clears it on
	// every sibling in the same transaction.
	MarkQuotationSelected(ctx context.Context, requirementID, quotationID int64) error

	CreatePO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	DeletePO(ctx context.Context, id int64) error
	GetPO(ctx context.Context, id int64) (PurchaseOrder, error)
	SavePO(ctx context.Context, po PurchaseOrder, expectedVersion int64) (PurchaseOrder, error)

	CreateGRN(ctx context.Context, grn GoodsReceipt) (GoodsReceipt, error)
	DeleteGRN(ctx context.Context, id int64) error
	GetGRN(ctx context.Context, id int64) (GoodsReceipt, error)
	SaveGRN(ctx context.Context, grn GoodsReceipt, expectedVersion int64) (GoodsReceipt, error)
	ListGRNsForPO(ctx context.Context, poID int64) ([]GoodsReceipt, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// Config tunes the procurement pipeline.
type Config struct {
	// SingleTierApproval collapses the approval chain to one super-admin step.
	SingleTierApproval bool
	// SkipInspection lets goods receipts post straight from RECEIVED.
	SkipInspection bool
	// AllowOverReceipt accepts received quantities beyond the ordered quantity.
	AllowOverReceipt bool
}

// Service owns requirement, quotation, purchase order and goods receipt
// transitions. Cross-document orchestration lives in the fulfillment package.
type Service struct {
	repo       RepositoryPort
	approvals  *shared.ApprovalRecorder
	audit      AuditPort
	locks      *shared.DocLock
	notifier   notify.Notifier
	cfg        Config
	reqMachine *workflow.Machine
	poMachine  *workflow.Machine
	grnMachine *workflow.Machine
}

// NewService constructs the procurement service.
func NewService(repo RepositoryPort, approvals *shared.ApprovalRecorder, audit AuditPort, locks *shared.DocLock, notifier notify.Notifier, cfg Config) *Service {
	return &Service{
		repo:       repo,
		approvals:  approvals,
		audit:      audit,
		locks:      locks,
		notifier:   notifier,
		cfg:        cfg,
		reqMachine: NewRequirementMachine(cfg.SingleTierApproval),
		poMachine:  NewPOMachine(),
		grnMachine: NewGRNMachine(cfg.SkipInspection),
	}
}

// RequirementMachine exposes the requirement transition table.
func (s *Service) RequirementMachine() *workflow.Machine { return s.reqMachine }

// POMachine exposes the purchase order transition table.
func (s *Service) POMachine() *workflow.Machine { return s.poMachine }

// GRNMachine exposes the goods receipt transition table.
func (s *Service) GRNMachine() *workflow.Machine { return s.grnMachine }

// RequirementInput describes requirement draft creation.
type RequirementInput struct {
	Number        string
	CollegeID     int64
	RequestedBy   int64
	Justification string
	Lines         []RequirementLineInput
}

// RequirementLineInput describes one requested line.
type RequirementLineInput struct {
	ItemID       int64
	RequestedQty float64
	Note         string
}

// CreateRequirement persists a new draft requirement.
func (s *Service) CreateRequirement(ctx context.Context, input RequirementInput) (Requirement, error) {
	if strings.TrimSpace(input.Number) == "" {
		return Requirement{}, fmt.Errorf("%w: document number required", ErrValidation)
	}
	if input.CollegeID == 0 || input.RequestedBy == 0 {
		return Requirement{}, fmt.Errorf("%w: college and requester required", ErrValidation)
	}
	req := Requirement{
		Number:        input.Number,
		CollegeID:     input.CollegeID,
		RequestedBy:   input.RequestedBy,
		Status:        s.reqMachine.Initial(),
		Justification: input.Justification,
	}
	for _, line := range input.Lines {
		if line.ItemID == 0 || line.RequestedQty < 0 {
			return Requirement{}, fmt.Errorf("%w: line requires item and non-negative quantity", ErrValidation)
		}
		req.Lines = append(req.Lines, RequirementLine{ItemID: line.ItemID, RequestedQty: line.RequestedQty, Note: line.Note})
	}
	created, err := s.repo.CreateRequirement(ctx, req)
	if err != nil {
		return Requirement{}, shared.ClassifyRepoError(err)
	}
	s.recordAudit(ctx, shared.Actor{ID: input.RequestedBy, Role: shared.RoleProcurementOfficer}, DocTypeRequirement, "procurement:create_requirement", created.ID, created.Number, nil)
	return created, nil
}

// UpdateRequirementDraft replaces justification and lines of a draft.
func (s *Service) UpdateRequirementDraft(ctx context.Context, id int64, actor shared.Actor, justification string, lines []RequirementLineInput) (Requirement, error) {
	return s.requirementTransition(ctx, id, actor, "procurement:update_requirement", nil, func(req *Requirement) error {
		if req.Status != ReqStatusDraft {
			return &workflow.TransitionError{Current: req.Status, Action: "edit", Reason: "only drafts can be edited"}
		}
		req.Justification = justification
		req.Lines = req.Lines[:0]
		for _, line := range lines {
			if line.ItemID == 0 || line.RequestedQty < 0 {
				return fmt.Errorf("%w: line requires item and non-negative quantity", ErrValidation)
			}
			req.Lines = append(req.Lines, RequirementLine{RequirementID: req.ID, ItemID: line.ItemID, RequestedQty: line.RequestedQty, Note: line.Note})
		}
		return nil
	})
}

// DeleteRequirementDraft removes an unsubmitted requirement.
func (s *Service) DeleteRequirementDraft(ctx context.Context, id int64, actor shared.Actor) error {
	token, err := s.locks.Acquire(ctx, DocTypeRequirement, id)
	if err != nil {
		return err
	}
	defer func() { _ = s.locks.Release(ctx, DocTypeRequirement, id, token) }()

	req, err := s.repo.GetRequirement(ctx, id)
	if err != nil {
		return shared.ClassifyRepoError(err)
	}
	if req.Status != ReqStatusDraft {
		return &workflow.TransitionError{Current: req.Status, Action: "delete", Reason: "only drafts can be deleted"}
	}
	if err := s.repo.DeleteRequirementDraft(ctx, id); err != nil {
		return shared.ClassifyRepoError(err)
	}
	s.recordAudit(ctx, actor, DocTypeRequirement, "procurement:delete_requirement", id, req.Number, nil)
	return nil
}

// SubmitRequirement moves a draft into the approval chain. At least one line
// with a positive quantity and a justification are required.
func (s *Service) SubmitRequirement(ctx context.Context, id int64, actor shared.Actor) (Requirement, error) {
	return s.requirementTransition(ctx, id, actor, "procurement:submit", func(ctx context.Context, req Requirement) {
		if s.approvals != nil {
			_ = s.approvals.EnsureSubmit(ctx, DocTypeRequirement, shared.ApprovalRef(DocTypeRequirement, req.ID), actor, fmt.Sprintf("Requirement %s submitted", req.Number))
		}
	}, func(req *Requirement) error {
		next, err := s.reqMachine.Apply(workflow.Request{Current: req.Status, Action: ReqActionSubmit, Actor: actor})
		if err != nil {
			return err
		}
		if strings.TrimSpace(req.Justification) == "" {
			return &workflow.TransitionError{Current: req.Status, Action: ReqActionSubmit, Reason: "justification required"}
		}
		requestable := false
		for _, line := range req.Lines {
			if line.RequestedQty > 0 {
				requestable = true
				break
			}
		}
		if !requestable {
			return &workflow.TransitionError{Current: req.Status, Action: ReqActionSubmit, Reason: "at least one line with requested quantity > 0 required"}
		}
		for i := range req.Lines {
			req.Lines[i].ApprovedQty = req.Lines[i].RequestedQty
		}
		req.Status = next
		req.PendingRole = shared.RoleSuperAdmin
		return nil
	})
}

// MarkForApproval forwards a submitted requirement to the final approver.
// No-op in single-tier mode, where approval is legal straight from SUBMITTED.
func (s *Service) MarkForApproval(ctx context.Context, id int64, actor shared.Actor) (Requirement, error) {
	return s.requirementTransition(ctx, id, actor, "procurement:mark_for_approval", nil, func(req *Requirement) error {
		next, err := s.reqMachine.Apply(workflow.Request{Current: req.Status, Action: ReqActionMarkForApproval, Actor: actor})
		if err != nil {
			return err
		}
		req.Status = next
		return nil
	})
}

// RequirementAdjustment reduces a line's approved quantity during review.
type RequirementAdjustment struct {
	LineID      int64
	ApprovedQty float64
}

// ApproveRequirement approves, optionally reducing approved quantities.
func (s *Service) ApproveRequirement(ctx context.Context, id int64, actor shared.Actor, adjustments []RequirementAdjustment) (Requirement, error) {
	return s.requirementReview(ctx, id, actor, ReqActionApprove, "", adjustments)
}

// RejectRequirement rejects with a mandatory reason.
func (s *Service) RejectRequirement(ctx context.Context, id int64, actor shared.Actor, reason string) (Requirement, error) {
	return s.requirementReview(ctx, id, actor, ReqActionReject, reason, nil)
}

// CancelRequirement exits any non-terminal status.
func (s *Service) CancelRequirement(ctx context.Context, id int64, actor shared.Actor, note string) (Requirement, error) {
	return s.requirementTransition(ctx, id, actor, "procurement:cancel_requirement", nil, func(req *Requirement) error {
		next, err := s.reqMachine.Apply(workflow.Request{Current: req.Status, Action: ReqActionCancel, Actor: actor, Reason: note})
		if err != nil {
			return err
		}
		req.Status = next
		req.PendingRole = ""
		return nil
	})
}

// MarkRequirementFulfilled closes the requirement after its PO is closed out.
func (s *Service) MarkRequirementFulfilled(ctx context.Context, id int64, actor shared.Actor) (Requirement, error) {
	return s.requirementTransition(ctx, id, actor, "procurement:mark_fulfilled", nil, func(req *Requirement) error {
		next, err := s.reqMachine.Apply(workflow.Request{Current: req.Status, Action: ReqActionMarkFulfilled, Actor: actor})
		if err != nil {
			return err
		}
		req.Status = next
		return nil
	})
}

// GetRequirement returns the requirement with lines.
func (s *Service) GetRequirement(ctx context.Context, id int64) (Requirement, error) {
	req, err := s.repo.GetRequirement(ctx, id)
	return req, shared.ClassifyRepoError(err)
}

// ListRequirements returns requirement list rows with pagination.
func (s *Service) ListRequirements(ctx context.Context, limit, offset int, filters ListFilters) ([]RequirementListItem, int, error) {
	items, total, err := s.repo.ListRequirements(ctx, limit, offset, filters)
	return items, total, shared.ClassifyRepoError(err)
}

// QuotationInput records one vendor offer.
type QuotationInput struct {
	VendorID   int64
	VendorName string
	Reference  string
	Lines      []QuotationLineInput
}

// QuotationLineInput is one offered unit price.
type QuotationLineInput struct {
	ItemID    int64
	Qty       float64
	UnitPrice float64
}

// RecordQuotation attaches a vendor offer to an approved requirement and
// moves it to QUOTATIONS_RECEIVED.
func (s *Service) RecordQuotation(ctx context.Context, requirementID int64, actor shared.Actor, input QuotationInput) (Quotation, error) {
	if input.VendorID == 0 {
		return Quotation{}, fmt.Errorf("%w: vendor required", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return Quotation{}, fmt.Errorf("%w: at least one priced line required", ErrValidation)
	}
	for _, line := range input.Lines {
		if line.ItemID == 0 || line.Qty <= 0 || line.UnitPrice < 0 {
			return Quotation{}, fmt.Errorf("%w: line requires item, positive quantity and non-negative price", ErrValidation)
		}
	}
	var created Quotation
	_, err := s.requirementTransition(ctx, requirementID, actor, "procurement:record_quotation", nil, func(req *Requirement) error {
		next, err := s.reqMachine.Apply(workflow.Request{Current: req.Status, Action: ReqActionRecordQuotation, Actor: actor})
		if err != nil {
			return err
		}
		q := Quotation{
			RequirementID: req.ID,
			VendorID:      input.VendorID,
			VendorName:    input.VendorName,
			Reference:     input.Reference,
		}
		for _, line := range input.Lines {
			q.Lines = append(q.Lines, QuotationLine{ItemID: line.ItemID, Qty: line.Qty, UnitPrice: line.UnitPrice})
		}
		created, err = s.repo.CreateQuotation(ctx, q)
		if err != nil {
			return shared.ClassifyRepoError(err)
		}
		req.Status = next
		return nil
	})
	if err != nil {
		// The requirement save failed after the quotation committed; take
		// the orphan back out.
		if created.ID != 0 {
			_ = s.repo.DeleteQuotation(ctx, created.ID)
		}
		return Quotation{}, err
	}
	return created, nil
}

// SelectQuotation picks the winning offer. Any previously selected sibling is
// deselected in the same transaction, so at most one selection exists.
func (s *Service) SelectQuotation(ctx context.Context, requirementID, quotationID int64, actor shared.Actor) error {
	token, err := s.locks.Acquire(ctx, DocTypeRequirement, requirementID)
	if err != nil {
		return err
	}
	defer func() { _ = s.locks.Release(ctx, DocTypeRequirement, requirementID, token) }()

	req, err := s.repo.GetRequirement(ctx, requirementID)
	if err != nil {
		return shared.ClassifyRepoError(err)
	}
	if req.Status != ReqStatusQuotationsReceived {
		return &workflow.TransitionError{Current: req.Status, Action: "select_quotation", Reason: "quotations not open for selection"}
	}
	if actor.Role != shared.RoleProcurementOfficer && actor.Role != shared.RoleSuperAdmin {
		return workflow.ErrRoleMismatch
	}
	q, err := s.repo.GetQuotation(ctx, quotationID)
	if err != nil {
		return shared.ClassifyRepoError(err)
	}
	if q.RequirementID != requirementID {
		return fmt.Errorf("%w: quotation %d does not belong to requirement %d", ErrValidation, quotationID, requirementID)
	}
	if err := s.repo.MarkQuotationSelected(ctx, requirementID, quotationID); err != nil {
		return shared.ClassifyRepoError(err)
	}
	s.recordAudit(ctx, actor, DocTypeRequirement, "procurement:select_quotation", requirementID, req.Number, map[string]any{"quotation_id": quotationID})
	return nil
}

// ListQuotations returns all offers against a requirement.
func (s *Service) ListQuotations(ctx context.Context, requirementID int64) ([]Quotation, error) {
	qs, err := s.repo.ListQuotations(ctx, requirementID)
	return qs, shared.ClassifyRepoError(err)
}

// POInput carries the locked prices for purchase order creation. Built by the
// fulfillment orchestrator from the selected quotation.
type POInput struct {
	Number      string
	QuotationID int64
	VendorID    int64
	Lines       []POLineInput
}

// POLineInput is one ordered line at its locked price.
type POLineInput struct {
	ItemID     int64
	OrderedQty float64
	UnitPrice  float64
}

// CreatePO issues a purchase order and moves the requirement to PO_CREATED.
func (s *Service) CreatePO(ctx context.Context, requirementID int64, actor shared.Actor, input POInput) (PurchaseOrder, error) {
	if strings.TrimSpace(input.Number) == "" {
		return PurchaseOrder{}, fmt.Errorf("%w: document number required", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: at least one line required", ErrValidation)
	}
	var created PurchaseOrder
	_, err := s.requirementTransition(ctx, requirementID, actor, "procurement:create_po", nil, func(req *Requirement) error {
		next, err := s.reqMachine.Apply(workflow.Request{Current: req.Status, Action: ReqActionCreatePO, Actor: actor})
		if err != nil {
			return err
		}
		po := PurchaseOrder{
			Number:        input.Number,
			RequirementID: req.ID,
			QuotationID:   input.QuotationID,
			VendorID:      input.VendorID,
			Status:        s.poMachine.Initial(),
			IssuedBy:      actor.ID,
			IssuedAt:      time.Now().UTC(),
		}
		for _, line := range input.Lines {
			po.Lines = append(po.Lines, POLine{ItemID: line.ItemID, OrderedQty: line.OrderedQty, UnitPrice: line.UnitPrice})
		}
		created, err = s.repo.CreatePO(ctx, po)
		if err != nil {
			return shared.ClassifyRepoError(err)
		}
		req.Status = next
		return nil
	})
	if err != nil {
		if created.ID != 0 {
			_ = s.repo.DeletePO(ctx, created.ID)
		}
		return PurchaseOrder{}, err
	}
	return created, nil
}

// GetPO returns the purchase order with lines.
func (s *Service) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := s.repo.GetPO(ctx, id)
	return po, shared.ClassifyRepoError(err)
}

// ReceiptInput records one delivery against a purchase order.
type ReceiptInput struct {
	Number  string
	StoreID int64
	Lines   []ReceiptLineInput
}

// ReceiptLineInput is one received quantity against a PO line.
type ReceiptLineInput struct {
	POLineID    int64
	ReceivedQty float64
}

// RecordReceipt creates a goods receipt against the PO and accumulates
// received quantities on its lines. Lines that reference no PO line fail with
// UnknownLineItem; quantities beyond the ordered quantity fail with
// OverReceiptNotAllowed unless the policy allows them.
func (s *Service) RecordReceipt(ctx context.Context, poID int64, actor shared.Actor, input ReceiptInput) (GoodsReceipt, error) {
	if strings.TrimSpace(input.Number) == "" {
		return GoodsReceipt{}, fmt.Errorf("%w: document number required", ErrValidation)
	}
	if input.StoreID == 0 {
		return GoodsReceipt{}, fmt.Errorf("%w: receiving store required", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return GoodsReceipt{}, fmt.Errorf("%w: at least one received line required", ErrValidation)
	}

	token, err := s.locks.Acquire(ctx, DocTypePO, poID)
	if err != nil {
		return GoodsReceipt{}, err
	}
	defer func() { _ = s.locks.Release(ctx, DocTypePO, poID, token) }()

	po, err := s.repo.GetPO(ctx, poID)
	if err != nil {
		return GoodsReceipt{}, shared.ClassifyRepoError(err)
	}
	expected := po.Version
	next, err := s.poMachine.Apply(workflow.Request{Current: po.Status, Action: POActionRecordReceipt, Actor: actor})
	if err != nil {
		return GoodsReceipt{}, err
	}

	byID := make(map[int64]*POLine, len(po.Lines))
	for i := range po.Lines {
		byID[po.Lines[i].ID] = &po.Lines[i]
	}
	grn := GoodsReceipt{
		Number:     input.Number,
		POID:       po.ID,
		StoreID:    input.StoreID,
		Status:     s.grnMachine.Initial(),
		ReceivedBy: actor.ID,
		ReceivedAt: time.Now().UTC(),
	}
	for _, line := range input.Lines {
		poLine, ok := byID[line.POLineID]
		if !ok {
			return GoodsReceipt{}, fmt.Errorf("%w: po line %d", workflow.ErrUnknownLineItem, line.POLineID)
		}
		if line.ReceivedQty <= 0 {
			return GoodsReceipt{}, fmt.Errorf("%w: received quantity %.2f must be positive", workflow.ErrQuantityOutOfRange, line.ReceivedQty)
		}
		if !s.cfg.AllowOverReceipt && poLine.ReceivedQty+line.ReceivedQty > poLine.OrderedQty {
			return GoodsReceipt{}, fmt.Errorf("%w: line %d would receive %.2f of ordered %.2f",
				workflow.ErrOverReceiptNotAllowed, line.POLineID, poLine.ReceivedQty+line.ReceivedQty, poLine.OrderedQty)
		}
		poLine.ReceivedQty += line.ReceivedQty
		grn.Lines = append(grn.Lines, GRNLine{
			POLineID:    line.POLineID,
			ItemID:      poLine.ItemID,
			ReceivedQty: line.ReceivedQty,
		})
	}

	created, err := s.repo.CreateGRN(ctx, grn)
	if err != nil {
		return GoodsReceipt{}, shared.ClassifyRepoError(err)
	}
	po.Status = next
	if _, err := s.repo.SavePO(ctx, po, expected); err != nil {
		// Without the PO's accumulated quantities the receipt never
		// happened; drop the orphan GRN.
		_ = s.repo.DeleteGRN(ctx, created.ID)
		return GoodsReceipt{}, shared.ClassifyRepoError(err)
	}
	s.recordAudit(ctx, actor, DocTypeGRN, "procurement:record_receipt", created.ID, created.Number, map[string]any{"po_id": po.ID})
	if s.notifier != nil {
		s.notifier.TransitionCommitted(ctx, notify.Event{
			DocType:   DocTypeGRN,
			DocID:     created.ID,
			Number:    created.Number,
			NewStatus: string(created.Status),
			ActorRole: actor.Role,
		})
	}
	return created, nil
}

// ClosePO closes out a partially or fully received purchase order.
func (s *Service) ClosePO(ctx context.Context, id int64, actor shared.Actor) (PurchaseOrder, error) {
	return s.poTransition(ctx, id, actor, POActionClose, "")
}

// CancelPO cancels an issued purchase order. Reason is mandatory.
func (s *Service) CancelPO(ctx context.Context, id int64, actor shared.Actor, reason string) (PurchaseOrder, error) {
	return s.poTransition(ctx, id, actor, POActionCancel, reason)
}

// GetGRN returns the goods receipt with lines.
func (s *Service) GetGRN(ctx context.Context, id int64) (GoodsReceipt, error) {
	grn, err := s.repo.GetGRN(ctx, id)
	return grn, shared.ClassifyRepoError(err)
}

// SendToInspection queues a received GRN for quality inspection.
func (s *Service) SendToInspection(ctx context.Context, id int64, actor shared.Actor) (GoodsReceipt, error) {
	return s.grnTransition(ctx, id, actor, GRNActionSendToInspection, "", func(grn *GoodsReceipt, next workflow.Status) error {
		grn.Status = next
		return nil
	})
}

// InspectionLineInput splits one received quantity after inspection.
type InspectionLineInput struct {
	GRNLineID   int64
	AcceptedQty float64
}

// RecordInspection records per-line accepted quantities. The rejected
// remainder is derived so accepted + rejected always equals received.
func (s *Service) RecordInspection(ctx context.Context, id int64, actor shared.Actor, note string, lines []InspectionLineInput) (GoodsReceipt, error) {
	return s.grnTransition(ctx, id, actor, GRNActionRecordInspection, "", func(grn *GoodsReceipt, next workflow.Status) error {
		byID := make(map[int64]*GRNLine, len(grn.Lines))
		for i := range grn.Lines {
			byID[grn.Lines[i].ID] = &grn.Lines[i]
		}
		for _, input := range lines {
			line, ok := byID[input.GRNLineID]
			if !ok {
				return fmt.Errorf("%w: grn line %d", workflow.ErrUnknownLineItem, input.GRNLineID)
			}
			reconciled, err := ledger.ReconcileReceipt(ledger.Line{}, line.ReceivedQty, input.AcceptedQty)
			if err != nil {
				return err
			}
			line.AcceptedQty = reconciled.Accepted
			line.RejectedQty = reconciled.Rejected
		}
		grn.InspectionNote = note
		grn.Status = next
		return nil
	})
}

// ApproveGRN accepts the inspection result.
func (s *Service) ApproveGRN(ctx context.Context, id int64, actor shared.Actor) (GoodsReceipt, error) {
	return s.grnTransition(ctx, id, actor, GRNActionApprove, "", func(grn *GoodsReceipt, next workflow.Status) error {
		grn.Status = next
		return nil
	})
}

// RejectGRN rejects the whole receipt. Reason is mandatory; nothing posts to
// inventory.
func (s *Service) RejectGRN(ctx context.Context, id int64, actor shared.Actor, reason string) (GoodsReceipt, error) {
	return s.grnTransition(ctx, id, actor, GRNActionReject, reason, func(grn *GoodsReceipt, next workflow.Status) error {
		grn.RejectionReason = strings.TrimSpace(reason)
		grn.Status = next
		return nil
	})
}

// MarkGRNPosted finalizes the receipt after its accepted quantities were
// posted to inventory. One-way; repeating it fails with AlreadyFinalized.
func (s *Service) MarkGRNPosted(ctx context.Context, id int64, actor shared.Actor) (GoodsReceipt, error) {
	return s.grnTransition(ctx, id, actor, GRNActionPost, "", func(grn *GoodsReceipt, next workflow.Status) error {
		if s.cfg.SkipInspection && grn.Status == GRNStatusReceived {
			// No inspection split happened; everything received is accepted.
			for i := range grn.Lines {
				grn.Lines[i].AcceptedQty = grn.Lines[i].ReceivedQty
				grn.Lines[i].RejectedQty = 0
			}
		}
		grn.Status = next
		grn.PostedAt = time.Now().UTC()
		return nil
	})
}

func (s *Service) requirementReview(ctx context.Context, id int64, actor shared.Actor, action workflow.Action, reason string, adjustments []RequirementAdjustment) (Requirement, error) {
	decision := shared.ApprovalApprove
	return s.requirementTransition(ctx, id, actor, "procurement:"+string(action), func(ctx context.Context, req Requirement) {
		if s.approvals != nil {
			_ = s.approvals.Record(ctx, shared.ApprovalLog{
				Module:    DocTypeRequirement,
				RefID:     shared.ApprovalRef(DocTypeRequirement, req.ID),
				ActorID:   actor.ID,
				ActorRole: actor.Role,
				Action:    decision,
				Note:      reason,
			})
		}
	}, func(req *Requirement) error {
		next, err := s.reqMachine.Apply(workflow.Request{Current: req.Status, Action: action, Actor: actor, Reason: reason})
		if err != nil {
			return err
		}
		if action == ReqActionReject {
			decision = shared.ApprovalReject
			req.RejectionReason = strings.TrimSpace(reason)
			req.PendingRole = ""
		} else {
			if err := s.applyAdjustments(req, adjustments); err != nil {
				return err
			}
			req.PendingRole = ""
		}
		req.Status = next
		return nil
	})
}

func (s *Service) applyAdjustments(req *Requirement, adjustments []RequirementAdjustment) error {
	if len(adjustments) == 0 {
		return nil
	}
	byID := make(map[int64]*RequirementLine, len(req.Lines))
	for i := range req.Lines {
		byID[req.Lines[i].ID] = &req.Lines[i]
	}
	for _, adj := range adjustments {
		line, ok := byID[adj.LineID]
		if !ok {
			return fmt.Errorf("%w: requirement line %d", workflow.ErrUnknownLineItem, adj.LineID)
		}
		reconciled, err := ledger.ReconcileApproval(ledger.Line{Requested: line.RequestedQty, Approved: line.ApprovedQty}, adj.ApprovedQty)
		if err != nil {
			return err
		}
		line.ApprovedQty = reconciled.Approved
	}
	return nil
}

func (s *Service) requirementTransition(ctx context.Context, id int64, actor shared.Actor, auditAction string, after func(context.Context, Requirement), mutate func(*Requirement) error) (Requirement, error) {
	token, err := s.locks.Acquire(ctx, DocTypeRequirement, id)
	if err != nil {
		return Requirement{}, err
	}
	defer func() { _ = s.locks.Release(ctx, DocTypeRequirement, id, token) }()

	req, err := s.repo.GetRequirement(ctx, id)
	if err != nil {
		return Requirement{}, shared.ClassifyRepoError(err)
	}
	expected := req.Version
	if err := mutate(&req); err != nil {
		return Requirement{}, err
	}
	saved, err := s.repo.SaveRequirement(ctx, req, expected)
	if err != nil {
		return Requirement{}, shared.ClassifyRepoError(err)
	}
	if after != nil {
		after(ctx, saved)
	}
	s.recordAudit(ctx, actor, DocTypeRequirement, auditAction, saved.ID, saved.Number, map[string]any{"status": string(saved.Status)})
	if s.notifier != nil {
		s.notifier.TransitionCommitted(ctx, notify.Event{
			DocType:   DocTypeRequirement,
			DocID:     saved.ID,
			Number:    saved.Number,
			NewStatus: string(saved.Status),
			ActorRole: actor.Role,
		})
	}
	return saved, nil
}

func (s *Service) poTransition(ctx context.Context, id int64, actor shared.Actor, action workflow.Action, reason string) (PurchaseOrder, error) {
	token, err := s.locks.Acquire(ctx, DocTypePO, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer func() { _ = s.locks.Release(ctx, DocTypePO, id, token) }()

	po, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return PurchaseOrder{}, shared.ClassifyRepoError(err)
	}
	expected := po.Version
	next, err := s.poMachine.Apply(workflow.Request{Current: po.Status, Action: action, Actor: actor, Reason: reason})
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Status = next
	saved, err := s.repo.SavePO(ctx, po, expected)
	if err != nil {
		return PurchaseOrder{}, shared.ClassifyRepoError(err)
	}
	s.recordAudit(ctx, actor, DocTypePO, "procurement:po_"+string(action), saved.ID, saved.Number, map[string]any{"status": string(saved.Status)})
	if s.notifier != nil {
		s.notifier.TransitionCommitted(ctx, notify.Event{
			DocType:   DocTypePO,
			DocID:     saved.ID,
			Number:    saved.Number,
			NewStatus: string(saved.Status),
			ActorRole: actor.Role,
		})
	}
	return saved, nil
}

func (s *Service) grnTransition(ctx context.Context, id int64, actor shared.Actor, action workflow.Action, reason string, mutate func(*GoodsReceipt, workflow.Status) error) (GoodsReceipt, error) {
	token, err := s.locks.Acquire(ctx, DocTypeGRN, id)
	if err != nil {
		return GoodsReceipt{}, err
	}
	defer func() { _ = s.locks.Release(ctx, DocTypeGRN, id, token) }()

	grn, err := s.repo.GetGRN(ctx, id)
	if err != nil {
		return GoodsReceipt{}, shared.ClassifyRepoError(err)
	}
	expected := grn.Version
	next, err := s.grnMachine.Apply(workflow.Request{Current: grn.Status, Action: action, Actor: actor, Reason: reason})
	if err != nil {
		return GoodsReceipt{}, err
	}
	if err := mutate(&grn, next); err != nil {
		return GoodsReceipt{}, err
	}
	saved, err := s.repo.SaveGRN(ctx, grn, expected)
	if err != nil {
		return GoodsReceipt{}, shared.ClassifyRepoError(err)
	}
	s.recordAudit(ctx, actor, DocTypeGRN, "procurement:grn_"+string(action), saved.ID, saved.Number, map[string]any{"status": string(saved.Status)})
	if s.notifier != nil {
		s.notifier.TransitionCommitted(ctx, notify.Event{
			DocType:   DocTypeGRN,
			DocID:     saved.ID,
			Number:    saved.Number,
			NewStatus: string(saved.Status),
			ActorRole: actor.Role,
		})
	}
	return saved, nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, docType, action string, docID int64, number string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["number"] = number
	_ = s.audit.Record(ctx, shared.AuditEntry{
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    action,
		DocType:   docType,
		DocID:     docID,
		Meta:      meta,
	})
}
