package procurement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Digigit24/kumsserp-sub000/internal/shared"
	"github.com/Digigit24/kumsserp-sub000/internal/workflow"
)

type memoryProcRepo struct {
	requirements map[int64]Requirement
	quotations   map[int64]Quotation
	pos          map[int64]PurchaseOrder
	grns         map[int64]GoodsReceipt
	nextID       int64

	// onGetPO runs after a PO read, to slip concurrent writes between a
	// service's Get and Save.
	onGetPO func(r *memoryProcRepo)
}

func newMemoryProcRepo() *memoryProcRepo {
	return &memoryProcRepo{
		requirements: make(map[int64]Requirement),
		quotations:   make(map[int64]Quotation),
		pos:          make(map[int64]PurchaseOrder),
		grns:         make(map[int64]GoodsReceipt),
	}
}

func (r *memoryProcRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func cloneRequirement(req Requirement) Requirement {
	out := req
	out.Lines = append([]RequirementLine(nil), req.Lines...)
	return out
}

func cloneQuotation(q Quotation) Quotation {
	out := q
	out.Lines = append([]QuotationLine(nil), q.Lines...)
	return out
}

func clonePO(po PurchaseOrder) PurchaseOrder {
	out := po
	out.Lines = append([]POLine(nil), po.Lines...)
	return out
}

func cloneGRN(grn GoodsReceipt) GoodsReceipt {
	out := grn
	out.Lines = append([]GRNLine(nil), grn.Lines...)
	return out
}

func (r *memoryProcRepo) GetRequirement(ctx context.Context, id int64) (Requirement, error) {
	req, ok := r.requirements[id]
	if !ok {
		return Requirement{}, shared.ErrNotFound
	}
	return cloneRequirement(req), nil
}

func (r *memoryProcRepo) CreateRequirement(ctx context.Context, req Requirement) (Requirement, error) {
	req.ID = r.id()
	req.Version = 1
	for i := range req.Lines {
		req.Lines[i].ID = r.id()
		req.Lines[i].RequirementID = req.ID
	}
	r.requirements[req.ID] = cloneRequirement(req)
	return cloneRequirement(req), nil
}

func (r *memoryProcRepo) SaveRequirement(ctx context.Context, req Requirement, expectedVersion int64) (Requirement, error) {
	stored, ok := r.requirements[req.ID]
	if !ok {
		return Requirement{}, shared.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return Requirement{}, workflow.ErrStaleVersion
	}
	req.Version = expectedVersion + 1
	for i := range req.Lines {
		if req.Lines[i].ID == 0 {
			req.Lines[i].ID = r.id()
			req.Lines[i].RequirementID = req.ID
		}
	}
	r.requirements[req.ID] = cloneRequirement(req)
	return cloneRequirement(req), nil
}

func (r *memoryProcRepo) DeleteRequirementDraft(ctx context.Context, id int64) error {
	if _, ok := r.requirements[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.requirements, id)
	return nil
}

func (r *memoryProcRepo) ListRequirements(ctx context.Context, limit, offset int, filters ListFilters) ([]RequirementListItem, int, error) {
	var items []RequirementListItem
	for _, req := range r.requirements {
		items = append(items, RequirementListItem{ID: req.ID, Number: req.Number, Status: string(req.Status)})
	}
	return items, len(items), nil
}

func (r *memoryProcRepo) CreateQuotation(ctx context.Context, q Quotation) (Quotation, error) {
	q.ID = r.id()
	for i := range q.Lines {
		q.Lines[i].ID = r.id()
		q.Lines[i].QuotationID = q.ID
	}
	r.quotations[q.ID] = cloneQuotation(q)
	return cloneQuotation(q), nil
}

func (r *memoryProcRepo) DeleteQuotation(ctx context.Context, id int64) error {
	delete(r.quotations, id)
	return nil
}

func (r *memoryProcRepo) GetQuotation(ctx context.Context, id int64) (Quotation, error) {
	q, ok := r.quotations[id]
	if !ok {
		return Quotation{}, shared.ErrNotFound
	}
	return cloneQuotation(q), nil
}

func (r *memoryProcRepo) ListQuotations(ctx context.Context, requirementID int64) ([]Quotation, error) {
	var out []Quotation
	for _, q := range r.quotations {
		if q.RequirementID == requirementID {
			out = append(out, cloneQuotation(q))
		}
	}
	return out, nil
}

func (r *memoryProcRepo) MarkQuotationSelected(ctx context.Context, requirementID, quotationID int64) error {
	found := false
	for id, q := range r.quotations {
		if q.RequirementID != requirementID {
			continue
		}
		q.IsSelected = id == quotationID
		if q.IsSelected {
			found = true
		}
		r.quotations[id] = q
	}
	if !found {
		return shared.ErrNotFound
	}
	return nil
}

func (r *memoryProcRepo) CreatePO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	po.ID = r.id()
	po.Version = 1
	for i := range po.Lines {
		po.Lines[i].ID = r.id()
		po.Lines[i].POID = po.ID
	}
	r.pos[po.ID] = clonePO(po)
	return clonePO(po), nil
}

func (r *memoryProcRepo) DeletePO(ctx context.Context, id int64) error {
	delete(r.pos, id)
	return nil
}

func (r *memoryProcRepo) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, ok := r.pos[id]
	if !ok {
		return PurchaseOrder{}, shared.ErrNotFound
	}
	out := clonePO(po)
	if r.onGetPO != nil {
		r.onGetPO(r)
	}
	return out, nil
}

func (r *memoryProcRepo) SavePO(ctx context.Context, po PurchaseOrder, expectedVersion int64) (PurchaseOrder, error) {
	stored, ok := r.pos[po.ID]
	if !ok {
		return PurchaseOrder{}, shared.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return PurchaseOrder{}, workflow.ErrStaleVersion
	}
	po.Version = expectedVersion + 1
	r.pos[po.ID] = clonePO(po)
	return clonePO(po), nil
}

func (r *memoryProcRepo) CreateGRN(ctx context.Context, grn GoodsReceipt) (GoodsReceipt, error) {
	grn.ID = r.id()
	grn.Version = 1
	for i := range grn.Lines {
		grn.Lines[i].ID = r.id()
		grn.Lines[i].GRNID = grn.ID
	}
	r.grns[grn.ID] = cloneGRN(grn)
	return cloneGRN(grn), nil
}

func (r *memoryProcRepo) DeleteGRN(ctx context.Context, id int64) error {
	delete(r.grns, id)
	return nil
}

func (r *memoryProcRepo) GetGRN(ctx context.Context, id int64) (GoodsReceipt, error) {
	grn, ok := r.grns[id]
	if !ok {
		return GoodsReceipt{}, shared.ErrNotFound
	}
	return cloneGRN(grn), nil
}

func (r *memoryProcRepo) SaveGRN(ctx context.Context, grn GoodsReceipt, expectedVersion int64) (GoodsReceipt, error) {
	stored, ok := r.grns[grn.ID]
	if !ok {
		return GoodsReceipt{}, shared.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return GoodsReceipt{}, workflow.ErrStaleVersion
	}
	grn.Version = expectedVersion + 1
	r.grns[grn.ID] = cloneGRN(grn)
	return cloneGRN(grn), nil
}

func (r *memoryProcRepo) ListGRNsForPO(ctx context.Context, poID int64) ([]GoodsReceipt, error) {
	var out []GoodsReceipt
	for _, grn := range r.grns {
		if grn.POID == poID {
			out = append(out, cloneGRN(grn))
		}
	}
	return out, nil
}

type memoryAudit struct {
	entries []shared.AuditEntry
}

func (a *memoryAudit) Record(ctx context.Context, entry shared.AuditEntry) error {
	a.entries = append(a.entries, entry)
	return nil
}

var (
	officer      = shared.Actor{ID: 50, Role: shared.RoleProcurementOfficer}
	superAdmin   = shared.Actor{ID: 30, Role: shared.RoleSuperAdmin}
	centralStore = shared.Actor{ID: 40, Role: shared.RoleCentralStore}
	inspector    = shared.Actor{ID: 60, Role: shared.RoleInspector}
)

func newTestService(t *testing.T, cfg Config) (*Service, *memoryProcRepo) {
	t.Helper()
	repo := newMemoryProcRepo()
	return NewService(repo, nil, &memoryAudit{}, nil, nil, cfg), repo
}

func approvedRequirement(t *testing.T, svc *Service) Requirement {
	t.Helper()
	ctx := context.Background()
	req, err := svc.CreateRequirement(ctx, RequirementInput{
		Number:        "REQ-2026-0001",
		CollegeID:     1,
		RequestedBy:   officer.ID,
		Justification: "projectors for the new lecture halls",
		Lines: []RequirementLineInput{
			{ItemID: 100, RequestedQty: 10},
			{ItemID: 200, RequestedQty: 2},
		},
	})
	require.NoError(t, err)
	_, err = svc.SubmitRequirement(ctx, req.ID, officer)
	require.NoError(t, err)
	_, err = svc.MarkForApproval(ctx, req.ID, officer)
	require.NoError(t, err)
	approved, err := svc.ApproveRequirement(ctx, req.ID, superAdmin, nil)
	require.NoError(t, err)
	require.Equal(t, ReqStatusApproved, approved.Status)
	return approved
}

func quotedRequirement(t *testing.T, svc *Service) (Requirement, Quotation, Quotation) {
	t.Helper()
	ctx := context.Background()
	req := approvedRequirement(t, svc)

	q1, err := svc.RecordQuotation(ctx, req.ID, officer, QuotationInput{
		VendorID: 7, VendorName: "Acme Supplies", Reference: "ACME-118",
		Lines: []QuotationLineInput{
			{ItemID: 100, Qty: 10, UnitPrice: 450},
			{ItemID: 200, Qty: 2, UnitPrice: 30000},
		},
	})
	require.NoError(t, err)

	q2, err := svc.RecordQuotation(ctx, req.ID, officer, QuotationInput{
		VendorID: 8, VendorName: "Bharat Traders", Reference: "BT-52",
		Lines: []QuotationLineInput{
			{ItemID: 100, Qty: 10, UnitPrice: 420},
			{ItemID: 200, Qty: 2, UnitPrice: 31500},
		},
	})
	require.NoError(t, err)

	current, err := svc.GetRequirement(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, ReqStatusQuotationsReceived, current.Status)
	return current, q1, q2
}

func issuedPO(t *testing.T, svc *Service) PurchaseOrder {
	t.Helper()
	ctx := context.Background()
	req, _, q2 := quotedRequirement(t, svc)
	require.NoError(t, svc.SelectQuotation(ctx, req.ID, q2.ID, officer))

	po, err := svc.CreatePO(ctx, req.ID, officer, POInput{
		Number:      "PO-2026-0001",
		QuotationID: q2.ID,
		VendorID:    q2.VendorID,
		Lines: []POLineInput{
			{ItemID: 100, OrderedQty: 10, UnitPrice: 420},
			{ItemID: 200, OrderedQty: 2, UnitPrice: 31500},
		},
	})
	require.NoError(t, err)
	require.Equal(t, POStatusIssued, po.Status)
	return po
}

func TestRequirementApprovalChain(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	req, err := svc.CreateRequirement(ctx, RequirementInput{
		Number: "REQ-1", CollegeID: 1, RequestedBy: officer.ID, Justification: "x",
		Lines: []RequirementLineInput{{ItemID: 100, RequestedQty: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, ReqStatusDraft, req.Status)

	submitted, err := svc.SubmitRequirement(ctx, req.ID, officer)
	require.NoError(t, err)
	require.Equal(t, ReqStatusSubmitted, submitted.Status)
	require.Equal(t, 5.0, submitted.Lines[0].ApprovedQty)

	// Approval is gated behind the forwarding step in two-tier mode.
	_, err = svc.ApproveRequirement(ctx, req.ID, superAdmin, nil)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	forwarded, err := svc.MarkForApproval(ctx, req.ID, officer)
	require.NoError(t, err)
	require.Equal(t, ReqStatusPendingApproval, forwarded.Status)

	_, err = svc.ApproveRequirement(ctx, req.ID, officer, nil)
	require.ErrorIs(t, err, workflow.ErrRoleMismatch)

	approved, err := svc.ApproveRequirement(ctx, req.ID, superAdmin, []RequirementAdjustment{
		{LineID: submitted.Lines[0].ID, ApprovedQty: 3},
	})
	require.NoError(t, err)
	require.Equal(t, ReqStatusApproved, approved.Status)
	require.Equal(t, 3.0, approved.Lines[0].ApprovedQty)
}

func TestSingleTierApprovesFromSubmitted(t *testing.T) {
	svc, _ := newTestService(t, Config{SingleTierApproval: true})
	ctx := context.Background()

	req, err := svc.CreateRequirement(ctx, RequirementInput{
		Number: "REQ-1", CollegeID: 1, RequestedBy: officer.ID, Justification: "x",
		Lines: []RequirementLineInput{{ItemID: 100, RequestedQty: 5}},
	})
	require.NoError(t, err)
	_, err = svc.SubmitRequirement(ctx, req.ID, officer)
	require.NoError(t, err)

	approved, err := svc.ApproveRequirement(ctx, req.ID, superAdmin, nil)
	require.NoError(t, err)
	require.Equal(t, ReqStatusApproved, approved.Status)
}

func TestRejectRequirementNeedsReason(t *testing.T) {
	svc, _ := newTestService(t, Config{SingleTierApproval: true})
	ctx := context.Background()

	req, err := svc.CreateRequirement(ctx, RequirementInput{
		Number: "REQ-1", CollegeID: 1, RequestedBy: officer.ID, Justification: "x",
		Lines: []RequirementLineInput{{ItemID: 100, RequestedQty: 5}},
	})
	require.NoError(t, err)
	_, err = svc.SubmitRequirement(ctx, req.ID, officer)
	require.NoError(t, err)

	_, err = svc.RejectRequirement(ctx, req.ID, superAdmin, "")
	require.ErrorIs(t, err, workflow.ErrMissingReason)

	rejected, err := svc.RejectRequirement(ctx, req.ID, superAdmin, "no budget head")
	require.NoError(t, err)
	require.Equal(t, ReqStatusRejected, rejected.Status)
	require.Equal(t, "no budget head", rejected.RejectionReason)
}

func TestRecordQuotationValidatesAndTransitions(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()
	req := approvedRequirement(t, svc)

	_, err := svc.RecordQuotation(ctx, req.ID, officer, QuotationInput{VendorID: 0})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.RecordQuotation(ctx, req.ID, officer, QuotationInput{
		VendorID: 7,
		Lines:    []QuotationLineInput{{ItemID: 100, Qty: 0, UnitPrice: 5}},
	})
	require.ErrorIs(t, err, ErrValidation)

	// Only the procurement officer records offers.
	_, err = svc.RecordQuotation(ctx, req.ID, centralStore, QuotationInput{
		VendorID: 7,
		Lines:    []QuotationLineInput{{ItemID: 100, Qty: 10, UnitPrice: 450}},
	})
	require.ErrorIs(t, err, workflow.ErrRoleMismatch)

	q, err := svc.RecordQuotation(ctx, req.ID, officer, QuotationInput{
		VendorID: 7,
		Lines:    []QuotationLineInput{{ItemID: 100, Qty: 10, UnitPrice: 450}},
	})
	require.NoError(t, err)
	require.False(t, q.IsSelected)

	current, err := svc.GetRequirement(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, ReqStatusQuotationsReceived, current.Status)
}

func TestSelectQuotationClearsSiblings(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()
	req, q1, q2 := quotedRequirement(t, svc)

	require.NoError(t, svc.SelectQuotation(ctx, req.ID, q1.ID, officer))
	require.NoError(t, svc.SelectQuotation(ctx, req.ID, q2.ID, officer))

	quotations, err := svc.ListQuotations(ctx, req.ID)
	require.NoError(t, err)
	selected := 0
	for _, q := range quotations {
		if q.IsSelected {
			selected++
			require.Equal(t, q2.ID, q.ID)
		}
	}
	require.Equal(t, 1, selected, "at most one quotation may be selected")
}

func TestSelectQuotationGuards(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()
	req, q1, _ := quotedRequirement(t, svc)

	err := svc.SelectQuotation(ctx, req.ID, q1.ID, centralStore)
	require.ErrorIs(t, err, workflow.ErrRoleMismatch)

	// A quotation from another requirement cannot be selected.
	other := approvedRequirement(t, svc)
	foreign, err := svc.RecordQuotation(ctx, other.ID, officer, QuotationInput{
		VendorID: 9,
		Lines:    []QuotationLineInput{{ItemID: 100, Qty: 1, UnitPrice: 5}},
	})
	require.NoError(t, err)
	err = svc.SelectQuotation(ctx, req.ID, foreign.ID, officer)
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreatePOMovesRequirementForward(t *testing.T) {
	svc, repo := newTestService(t, Config{})
	ctx := context.Background()

	po := issuedPO(t, svc)
	req, err := svc.GetRequirement(ctx, po.RequirementID)
	require.NoError(t, err)
	require.Equal(t, ReqStatusPOCreated, req.Status)
	require.Len(t, repo.pos, 1)
	require.Equal(t, 420.0, po.Lines[0].UnitPrice)
}

func TestRecordReceiptCreatesGRNAndAccumulates(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()
	po := issuedPO(t, svc)

	grn, err := svc.RecordReceipt(ctx, po.ID, centralStore, ReceiptInput{
		Number: "GRN-2026-0001", StoreID: 5,
		Lines: []ReceiptLineInput{
			{POLineID: po.Lines[0].ID, ReceivedQty: 6},
		},
	})
	require.NoError(t, err)
	require.Equal(t, GRNStatusReceived, grn.Status)
	require.Equal(t, 6.0, grn.Lines[0].ReceivedQty)

	current, err := svc.GetPO(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusPartiallyReceived, current.Status)
	require.Equal(t, 6.0, current.Lines[0].ReceivedQty)

	// A second delivery keeps accumulating against the same line.
	_, err = svc.RecordReceipt(ctx, po.ID, centralStore, ReceiptInput{
		Number: "GRN-2026-0002", StoreID: 5,
		Lines: []ReceiptLineInput{
			{POLineID: po.Lines[0].ID, ReceivedQty: 4},
		},
	})
	require.NoError(t, err)
	current, err = svc.GetPO(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, 10.0, current.Lines[0].ReceivedQty)
}

func TestRecordReceiptCompensatesOnStalePO(t *testing.T) {
	svc, repo := newTestService(t, Config{})
	ctx := context.Background()
	po := issuedPO(t, svc)

	// A concurrent writer bumps the PO between the read and the save; the
	// receipt must not survive as an orphan GRN.
	repo.onGetPO = func(r *memoryProcRepo) {
		stored := r.pos[po.ID]
		stored.Version++
		r.pos[po.ID] = stored
	}

	_, err := svc.RecordReceipt(ctx, po.ID, centralStore, ReceiptInput{
		Number:  "GRN-2026-0001",
		StoreID: 5,
		Lines:   []ReceiptLineInput{{POLineID: po.Lines[0].ID, ReceivedQty: 6}},
	})
	require.ErrorIs(t, err, workflow.ErrStaleVersion)
	require.Empty(t, repo.grns)

	grns, err := repo.ListGRNsForPO(ctx, po.ID)
	require.NoError(t, err)
	require.Empty(t, grns)
}

func TestRecordReceiptRejectsOverReceipt(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()
	po := issuedPO(t, svc)

	_, err := svc.RecordReceipt(ctx, po.ID, centralStore, ReceiptInput{
		Number: "GRN-2026-0001", StoreID: 5,
		Lines: []ReceiptLineInput{
			{POLineID: po.Lines[1].ID, ReceivedQty: 3},
		},
	})
	require.ErrorIs(t, err, workflow.ErrOverReceiptNotAllowed)

	// Nothing was persisted on rejection.
	current, err := svc.GetPO(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusIssued, current.Status)
	require.Equal(t, 0.0, current.Lines[1].ReceivedQty)
}

func TestRecordReceiptOverReceiptPolicy(t *testing.T) {
	svc, _ := newTestService(t, Config{AllowOverReceipt: true})
	ctx := context.Background()
	po := issuedPO(t, svc)

	grn, err := svc.RecordReceipt(ctx, po.ID, centralStore, ReceiptInput{
		Number: "GRN-2026-0001", StoreID: 5,
		Lines: []ReceiptLineInput{
			{POLineID: po.Lines[1].ID, ReceivedQty: 3},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 3.0, grn.Lines[0].ReceivedQty)
}

func TestRecordReceiptUnknownLine(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()
	po := issuedPO(t, svc)

	_, err := svc.RecordReceipt(ctx, po.ID, centralStore, ReceiptInput{
		Number: "GRN-2026-0001", StoreID: 5,
		Lines:  []ReceiptLineInput{{POLineID: 9999, ReceivedQty: 1}},
	})
	require.ErrorIs(t, err, workflow.ErrUnknownLineItem)
}

func TestInspectionSplitsAcceptedRejected(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()
	po := issuedPO(t, svc)

	grn, err := svc.RecordReceipt(ctx, po.ID, centralStore, ReceiptInput{
		Number: "GRN-2026-0001", StoreID: 5,
		Lines: []ReceiptLineInput{
			{POLineID: po.Lines[0].ID, ReceivedQty: 10},
		},
	})
	require.NoError(t, err)

	_, err = svc.SendToInspection(ctx, grn.ID, centralStore)
	require.NoError(t, err)

	// Inspection is the inspector's call.
	_, err = svc.RecordInspection(ctx, grn.ID, centralStore, "", nil)
	require.ErrorIs(t, err, workflow.ErrRoleMismatch)

	inspected, err := svc.RecordInspection(ctx, grn.ID, inspector, "two units damaged in transit", []InspectionLineInput{
		{GRNLineID: grn.Lines[0].ID, AcceptedQty: 8},
	})
	require.NoError(t, err)
	require.Equal(t, GRNStatusInspected, inspected.Status)
	require.Equal(t, 8.0, inspected.Lines[0].AcceptedQty)
	require.Equal(t, 2.0, inspected.Lines[0].RejectedQty)
	require.Equal(t, "two units damaged in transit", inspected.InspectionNote)

	approved, err := svc.ApproveGRN(ctx, grn.ID, inspector)
	require.NoError(t, err)
	require.Equal(t, GRNStatusApproved, approved.Status)
}

func TestInspectionAcceptedBeyondReceived(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()
	po := issuedPO(t, svc)

	grn, err := svc.RecordReceipt(ctx, po.ID, centralStore, ReceiptInput{
		Number: "GRN-2026-0001", StoreID: 5,
		Lines:  []ReceiptLineInput{{POLineID: po.Lines[0].ID, ReceivedQty: 5}},
	})
	require.NoError(t, err)
	_, err = svc.SendToInspection(ctx, grn.ID, centralStore)
	require.NoError(t, err)

	_, err = svc.RecordInspection(ctx, grn.ID, inspector, "", []InspectionLineInput{
		{GRNLineID: grn.Lines[0].ID, AcceptedQty: 6},
	})
	require.ErrorIs(t, err, workflow.ErrQuantityOutOfRange)
}

func TestRejectGRNNeedsReason(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()
	po := issuedPO(t, svc)

	grn, err := svc.RecordReceipt(ctx, po.ID, centralStore, ReceiptInput{
		Number: "GRN-2026-0001", StoreID: 5,
		Lines:  []ReceiptLineInput{{POLineID: po.Lines[0].ID, ReceivedQty: 5}},
	})
	require.NoError(t, err)
	_, err = svc.SendToInspection(ctx, grn.ID, centralStore)
	require.NoError(t, err)
	_, err = svc.RecordInspection(ctx, grn.ID, inspector, "", nil)
	require.NoError(t, err)

	_, err = svc.RejectGRN(ctx, grn.ID, inspector, " ")
	require.ErrorIs(t, err, workflow.ErrMissingReason)

	rejected, err := svc.RejectGRN(ctx, grn.ID, inspector, "entire batch counterfeit")
	require.NoError(t, err)
	require.Equal(t, GRNStatusRejected, rejected.Status)
	require.Equal(t, "entire batch counterfeit", rejected.RejectionReason)
}

func TestMarkGRNPostedIsOneWay(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()
	po := issuedPO(t, svc)

	grn, err := svc.RecordReceipt(ctx, po.ID, centralStore, ReceiptInput{
		Number: "GRN-2026-0001", StoreID: 5,
		Lines:  []ReceiptLineInput{{POLineID: po.Lines[0].ID, ReceivedQty: 5}},
	})
	require.NoError(t, err)
	_, err = svc.SendToInspection(ctx, grn.ID, centralStore)
	require.NoError(t, err)
	_, err = svc.RecordInspection(ctx, grn.ID, inspector, "", []InspectionLineInput{
		{GRNLineID: grn.Lines[0].ID, AcceptedQty: 5},
	})
	require.NoError(t, err)
	_, err = svc.ApproveGRN(ctx, grn.ID, inspector)
	require.NoError(t, err)

	posted, err := svc.MarkGRNPosted(ctx, grn.ID, centralStore)
	require.NoError(t, err)
	require.Equal(t, GRNStatusPosted, posted.Status)
	require.False(t, posted.PostedAt.IsZero())

	_, err = svc.MarkGRNPosted(ctx, grn.ID, centralStore)
	require.ErrorIs(t, err, workflow.ErrAlreadyFinalized)
}

func TestSkipInspectionPostsFromReceived(t *testing.T) {
	svc, _ := newTestService(t, Config{SkipInspection: true})
	ctx := context.Background()
	po := issuedPO(t, svc)

	grn, err := svc.RecordReceipt(ctx, po.ID, centralStore, ReceiptInput{
		Number: "GRN-2026-0001", StoreID: 5,
		Lines:  []ReceiptLineInput{{POLineID: po.Lines[0].ID, ReceivedQty: 5}},
	})
	require.NoError(t, err)

	posted, err := svc.MarkGRNPosted(ctx, grn.ID, centralStore)
	require.NoError(t, err)
	require.Equal(t, GRNStatusPosted, posted.Status)
	require.Equal(t, 5.0, posted.Lines[0].AcceptedQty, "everything received counts when inspection is skipped")
	require.Equal(t, 0.0, posted.Lines[0].RejectedQty)
}

func TestClosePOAndCancelPO(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	po := issuedPO(t, svc)
	// Closing requires at least one recorded receipt.
	_, err := svc.ClosePO(ctx, po.ID, officer)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = svc.RecordReceipt(ctx, po.ID, centralStore, ReceiptInput{
		Number: "GRN-2026-0001", StoreID: 5,
		Lines:  []ReceiptLineInput{{POLineID: po.Lines[0].ID, ReceivedQty: 5}},
	})
	require.NoError(t, err)

	closed, err := svc.ClosePO(ctx, po.ID, officer)
	require.NoError(t, err)
	require.Equal(t, POStatusClosed, closed.Status)

	po2 := issuedPO(t, svc)
	_, err = svc.CancelPO(ctx, po2.ID, officer, "")
	require.ErrorIs(t, err, workflow.ErrMissingReason)
	cancelled, err := svc.CancelPO(ctx, po2.ID, officer, "vendor backed out")
	require.NoError(t, err)
	require.Equal(t, POStatusCancelled, cancelled.Status)
}
