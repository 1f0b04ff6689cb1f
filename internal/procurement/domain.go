package procurement

import (
	"time"

	"github.com/Digigit24/kumsserp-sub000/internal/shared"
	"github.com/Digigit24/kumsserp-sub000/internal/workflow"
)

// Document types used in audit, lock and idempotency records.
const (
	DocTypeRequirement = "REQUIREMENT"
	DocTypePO          = "PURCHASE_ORDER"
	DocTypeGRN         = "GOODS_RECEIPT"
)

// Purchase requirement lifecycle statuses.
const (
	ReqStatusDraft              workflow.Status = "DRAFT"
	ReqStatusSubmitted          workflow.Status = "SUBMITTED"
	ReqStatusPendingApproval    workflow.Status = "PENDING_APPROVAL"
	ReqStatusApproved           workflow.Status = "APPROVED"
	ReqStatusQuotationsReceived workflow.Status = "QUOTATIONS_RECEIVED"
	ReqStatusPOCreated          workflow.Status = "PO_CREATED"
	ReqStatusFulfilled          workflow.Status = "FULFILLED"
	ReqStatusRejected           workflow.Status = "REJECTED"
	ReqStatusCancelled          workflow.Status = "CANCELLED"
)

// Purchase requirement transition actions.
const (
	ReqActionSubmit          workflow.Action = "submit"
	ReqActionMarkForApproval workflow.Action = "mark_for_approval"
	ReqActionApprove         workflow.Action = "approve"
	ReqActionReject          workflow.Action = "reject"
	ReqActionRecordQuotation workflow.Action = "record_quotation"
	ReqActionCreatePO        workflow.Action = "create_po"
	ReqActionMarkFulfilled   workflow.Action = "mark_fulfilled"
	ReqActionCancel          workflow.Action = "cancel"
)

// Purchase order lifecycle statuses.
const (
	POStatusIssued            workflow.Status = "ISSUED"
	POStatusPartiallyReceived workflow.Status = "PARTIALLY_RECEIVED"
	POStatusClosed            workflow.Status = "CLOSED"
	POStatusCancelled         workflow.Status = "CANCELLED"
)

// Purchase order transition actions.
const (
	POActionRecordReceipt workflow.Action = "record_receipt"
	POActionClose         workflow.Action = "close"
	POActionCancel        workflow.Action = "cancel"
)

// Goods receipt lifecycle statuses.
const (
	GRNStatusReceived          workflow.Status = "RECEIVED"
	GRNStatusInspectionPending workflow.Status = "INSPECTION_PENDING"
	GRNStatusInspected         workflow.Status = "INSPECTED"
	GRNStatusApproved          workflow.Status = "APPROVED"
	GRNStatusRejected          workflow.Status = "REJECTED"
	GRNStatusPosted            workflow.Status = "POSTED_TO_INVENTORY"
)

// Goods receipt transition actions.
const (
	GRNActionSendToInspection workflow.Action = "send_to_inspection"
	GRNActionRecordInspection workflow.Action = "record_inspection"
	GRNActionApprove          workflow.Action = "approve"
	GRNActionReject           workflow.Action = "reject"
	GRNActionPost             workflow.Action = "post_to_inventory"
)

// Requirement is the purchase requirement heading the procurement pipeline.
type Requirement struct {
	ID              int64
	Number          string
	CollegeID       int64
	RequestedBy     int64
	Status          workflow.Status
	Justification   string
	RejectionReason string
	PendingRole     shared.Role
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Lines           []RequirementLine
}

// RequirementLine is one requested item.
type RequirementLine struct {
	ID            int64
	RequirementID int64
	ItemID        int64
	RequestedQty  float64
	ApprovedQty   float64
	Note          string
}

// Quotation is a vendor offer against an approved requirement. Prices lock
// into the PO at selection time.
type Quotation struct {
	ID            int64
	RequirementID int64
	VendorID      int64
	VendorName    string
	Reference     string
	IsSelected    bool
	Version       int64
	CreatedAt     time.Time
	Lines         []QuotationLine
}

// QuotationLine carries a unit price offer for one item.
type QuotationLine struct {
	ID          int64
	QuotationID int64
	ItemID      int64
	Qty         float64
	UnitPrice   float64
}

// PurchaseOrder is issued from the selected quotation.
type PurchaseOrder struct {
	ID            int64
	Number        string
	RequirementID int64
	QuotationID   int64
	VendorID      int64
	Status        workflow.Status
	Version       int64
	IssuedBy      int64
	IssuedAt      time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Lines         []POLine
}

// POLine carries ordered and received quantities at the locked unit price.
type POLine struct {
	ID          int64
	POID        int64
	ItemID      int64
	OrderedQty  float64
	ReceivedQty float64
	UnitPrice   float64
}

// GoodsReceipt records one delivery against a PO.
type GoodsReceipt struct {
	ID              int64
	Number          string
	POID            int64
	StoreID         int64
	Status          workflow.Status
	InspectionNote  string
	RejectionReason string
	Version         int64
	ReceivedBy      int64
	ReceivedAt      time.Time
	PostedAt        time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Lines           []GRNLine
}

// GRNLine splits each received quantity into accepted and rejected after
// inspection. AcceptedQty + RejectedQty must equal ReceivedQty.
type GRNLine struct {
	ID          int64
	GRNID       int64
	POLineID    int64
	ItemID      int64
	ReceivedQty float64
	AcceptedQty float64
	RejectedQty float64
}

// NewRequirementMachine builds the requirement transition table. The two-step
// approval (SUBMITTED → PENDING_APPROVAL → APPROVED) mirrors the indent gate;
// single-tier institutions approve straight from SUBMITTED.
func NewRequirementMachine(singleTier bool) *workflow.Machine {
	approvers := []shared.Role{shared.RoleSuperAdmin, shared.RoleProcurementOfficer}
	table := map[workflow.Status]map[workflow.Action]workflow.Rule{
		ReqStatusDraft: {
			ReqActionSubmit: {To: ReqStatusSubmitted},
			ReqActionCancel: {To: ReqStatusCancelled},
		},
		ReqStatusSubmitted: {
			ReqActionReject: {To: ReqStatusRejected, Roles: approvers, RequireReason: true},
			ReqActionCancel: {To: ReqStatusCancelled},
		},
		ReqStatusPendingApproval: {
			ReqActionApprove: {To: ReqStatusApproved, Roles: []shared.Role{shared.RoleSuperAdmin}},
			ReqActionReject:  {To: ReqStatusRejected, Roles: []shared.Role{shared.RoleSuperAdmin}, RequireReason: true},
			ReqActionCancel:  {To: ReqStatusCancelled},
		},
		ReqStatusApproved: {
			ReqActionRecordQuotation: {To: ReqStatusQuotationsReceived, Roles: []shared.Role{shared.RoleProcurementOfficer}},
			ReqActionCancel:          {To: ReqStatusCancelled},
		},
		ReqStatusQuotationsReceived: {
			ReqActionRecordQuotation: {To: ReqStatusQuotationsReceived, Roles: []shared.Role{shared.RoleProcurementOfficer}},
			ReqActionCreatePO:        {To: ReqStatusPOCreated, Roles: []shared.Role{shared.RoleProcurementOfficer}},
			ReqActionCancel:          {To: ReqStatusCancelled},
		},
		ReqStatusPOCreated: {
			ReqActionMarkFulfilled: {To: ReqStatusFulfilled},
			ReqActionCancel:        {To: ReqStatusCancelled},
		},
	}
	if singleTier {
		table[ReqStatusSubmitted][ReqActionApprove] = workflow.Rule{To: ReqStatusApproved, Roles: []shared.Role{shared.RoleSuperAdmin}}
	} else {
		table[ReqStatusSubmitted][ReqActionMarkForApproval] = workflow.Rule{To: ReqStatusPendingApproval, Roles: approvers}
	}
	return workflow.NewMachine(DocTypeRequirement, ReqStatusDraft, table,
		[]workflow.Status{ReqStatusFulfilled, ReqStatusRejected, ReqStatusCancelled})
}

// NewPOMachine builds the purchase order transition table. record_receipt
// loops on PARTIALLY_RECEIVED until close.
func NewPOMachine() *workflow.Machine {
	receivers := []shared.Role{shared.RoleCentralStore, shared.RoleStoreManager}
	table := map[workflow.Status]map[workflow.Action]workflow.Rule{
		POStatusIssued: {
			POActionRecordReceipt: {To: POStatusPartiallyReceived, Roles: receivers},
			POActionCancel:        {To: POStatusCancelled, Roles: []shared.Role{shared.RoleProcurementOfficer, shared.RoleSuperAdmin}, RequireReason: true},
		},
		POStatusPartiallyReceived: {
			POActionRecordReceipt: {To: POStatusPartiallyReceived, Roles: receivers},
			POActionClose:         {To: POStatusClosed, Roles: []shared.Role{shared.RoleProcurementOfficer, shared.RoleSuperAdmin}},
		},
	}
	return workflow.NewMachine(DocTypePO, POStatusIssued, table,
		[]workflow.Status{POStatusClosed, POStatusCancelled})
}

// NewGRNMachine builds the goods receipt transition table. When inspection is
// skipped by policy the post action is legal straight from RECEIVED.
func NewGRNMachine(skipInspection bool) *workflow.Machine {
	table := map[workflow.Status]map[workflow.Action]workflow.Rule{
		GRNStatusReceived: {
			GRNActionSendToInspection: {To: GRNStatusInspectionPending, Roles: []shared.Role{shared.RoleCentralStore, shared.RoleStoreManager}},
		},
		GRNStatusInspectionPending: {
			GRNActionRecordInspection: {To: GRNStatusInspected, Roles: []shared.Role{shared.RoleInspector}},
		},
		GRNStatusInspected: {
			GRNActionApprove: {To: GRNStatusApproved, Roles: []shared.Role{shared.RoleInspector, shared.RoleSuperAdmin}},
			GRNActionReject:  {To: GRNStatusRejected, Roles: []shared.Role{shared.RoleInspector, shared.RoleSuperAdmin}, RequireReason: true},
		},
		GRNStatusApproved: {
			GRNActionPost: {To: GRNStatusPosted, Roles: []shared.Role{shared.RoleCentralStore, shared.RoleStoreManager}, Finalizing: true},
		},
	}
	if skipInspection {
		table[GRNStatusReceived][GRNActionPost] = workflow.Rule{To: GRNStatusPosted, Roles: []shared.Role{shared.RoleCentralStore, shared.RoleStoreManager}, Finalizing: true}
	}
	return workflow.NewMachine(DocTypeGRN, GRNStatusReceived, table,
		[]workflow.Status{GRNStatusPosted, GRNStatusRejected})
}
