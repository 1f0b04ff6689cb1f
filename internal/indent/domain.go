package indent

import (
	"time"

	"github.com/Digigit24/kumsserp-sub000/internal/shared"
	"github.com/Digigit24/kumsserp-sub000/internal/workflow"
)

// DocType identifies indent documents in audit, lock and approval records.
const DocType = "INDENT"

// Indent lifecycle statuses.
const (
	StatusDraft                  workflow.Status = "DRAFT"
	StatusPendingCollegeApproval workflow.Status = "PENDING_COLLEGE_APPROVAL"
	StatusPendingSuperAdmin      workflow.Status = "PENDING_SUPER_ADMIN"
	StatusSuperAdminApproved     workflow.Status = "SUPER_ADMIN_APPROVED"
	StatusPartiallyFulfilled     workflow.Status = "PARTIALLY_FULFILLED"
	StatusFulfilled              workflow.Status = "FULFILLED"
	StatusRejectedByCollege      workflow.Status = "REJECTED_BY_COLLEGE"
	StatusRejectedBySuperAdmin   workflow.Status = "REJECTED_BY_SUPER_ADMIN"
	StatusCancelled              workflow.Status = "CANCELLED"
)

// Indent transition actions.
const (
	ActionSubmit            workflow.Action = "submit"
	ActionCollegeApprove    workflow.Action = "college_approve"
	ActionCollegeReject     workflow.Action = "college_reject"
	ActionSuperAdminApprove workflow.Action = "super_admin_approve"
	ActionSuperAdminReject  workflow.Action = "super_admin_reject"
	ActionRecordIssue       workflow.Action = "record_issue"
	ActionCancel            workflow.Action = "cancel"
)

// Indent is a college's formal request for materials from the central store.
type Indent struct {
	ID              int64
	Number          string
	CollegeID       int64
	RequestedBy     int64
	Status          workflow.Status
	Justification   string
	RejectionReason string
	// PendingRole is the approver role the next review must match.
	PendingRole shared.Role
	// Version is the optimistic-concurrency stamp; every committed
	// transition increments it.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	Lines     []Line
}

// Line is one requested item. Requested quantity is immutable after
// submission; approved quantity may be reduced but never raised above it.
type Line struct {
	ID           int64
	IndentID     int64
	ItemID       int64
	RequestedQty float64
	ApprovedQty  float64
	IssuedQty    float64
	HasShortage  bool
	Note         string
}

// IsTerminal reports whether the indent accepts no further transitions.
func (i Indent) IsTerminal() bool {
	switch i.Status {
	case StatusFulfilled, StatusRejectedByCollege, StatusRejectedBySuperAdmin, StatusCancelled:
		return true
	default:
		return false
	}
}

// ApprovalTiers builds the sequential approval chain. tierCount 1 keeps only
// the super-admin tier for institutions that disable college review.
func ApprovalTiers(tierCount int) []workflow.Tier {
	tiers := []workflow.Tier{
		{Role: shared.RoleCollegeAdmin, Pending: StatusPendingCollegeApproval, Rejected: StatusRejectedByCollege},
		{Role: shared.RoleSuperAdmin, Pending: StatusPendingSuperAdmin, Rejected: StatusRejectedBySuperAdmin},
	}
	if tierCount == 1 {
		return tiers[1:]
	}
	return tiers
}

// NewMachine builds the indent transition table over the configured approval
// tiers. Every pair not in the table is an invalid transition.
func NewMachine(gate *workflow.Gate, tiers []workflow.Tier) *workflow.Machine {
	firstPending, _ := gate.RequestApproval()

	table := map[workflow.Status]map[workflow.Action]workflow.Rule{
		StatusDraft: {
			ActionSubmit: {To: firstPending, Roles: []shared.Role{shared.RoleStoreManager}},
			ActionCancel: {To: StatusCancelled},
		},
		StatusSuperAdminApproved: {
			ActionRecordIssue: {To: StatusPartiallyFulfilled, Roles: []shared.Role{shared.RoleCentralStore, shared.RoleStoreManager}},
			ActionCancel:      {To: StatusCancelled},
		},
		StatusPartiallyFulfilled: {
			ActionRecordIssue: {To: StatusPartiallyFulfilled, Roles: []shared.Role{shared.RoleCentralStore, shared.RoleStoreManager}},
			ActionCancel:      {To: StatusCancelled},
		},
	}
	for i, tier := range tiers {
		next := StatusSuperAdminApproved
		if i < len(tiers)-1 {
			next = tiers[i+1].Pending
		}
		approve, reject := reviewActions(tier.Role)
		table[tier.Pending] = map[workflow.Action]workflow.Rule{
			approve:      {To: next, Roles: []shared.Role{tier.Role}},
			reject:       {To: tier.Rejected, Roles: []shared.Role{tier.Role}, RequireReason: true},
			ActionCancel: {To: StatusCancelled},
		}
	}
	return workflow.NewMachine(DocType, StatusDraft, table, []workflow.Status{
		StatusFulfilled, StatusRejectedByCollege, StatusRejectedBySuperAdmin, StatusCancelled,
	})
}

func reviewActions(role shared.Role) (workflow.Action, workflow.Action) {
	if role == shared.RoleCollegeAdmin {
		return ActionCollegeApprove, ActionCollegeReject
	}
	return ActionSuperAdminApprove, ActionSuperAdminReject
}
