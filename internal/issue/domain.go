package issue

import (
	"time"

	"github.com/Digigit24/kumsserp-sub000/internal/shared"
	"github.com/Digigit24/kumsserp-sub000/internal/workflow"
)

// DocType identifies material issue notes in audit, lock and stock records.
const DocType = "MATERIAL_ISSUE"

// Material issue lifecycle statuses.
const (
	StatusPrepared   workflow.Status = "PREPARED"
	StatusDispatched workflow.Status = "DISPATCHED"
	StatusInTransit  workflow.Status = "IN_TRANSIT"
	StatusReceived   workflow.Status = "RECEIVED"
)

// Material issue transition actions.
const (
	ActionDispatch       workflow.Action = "dispatch"
	ActionMarkInTransit  workflow.Action = "mark_in_transit"
	ActionConfirmReceipt workflow.Action = "confirm_receipt"
)

// MaterialIssue is the dispatch document fulfilling an approved indent.
type MaterialIssue struct {
	ID           int64
	Number       string
	IndentID     int64
	CollegeID    int64
	StoreID      int64
	Status       workflow.Status
	Version      int64
	DispatchedBy int64
	DispatchedAt time.Time
	ReceivedBy   int64
	ReceivedAt   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Lines        []Line
}

// Line carries the issued quantity for one indent line. AvailableQty is the
// stock snapshot taken at preparation time, read-only thereafter.
type Line struct {
	ID           int64
	IssueID      int64
	IndentLineID int64
	ItemID       int64
	ApprovedQty  float64
	AvailableQty float64
	IssuedQty    float64
	HasShortage  bool
}

// NewMachine builds the MIN transition table.
func NewMachine() *workflow.Machine {
	table := map[workflow.Status]map[workflow.Action]workflow.Rule{
		StatusPrepared: {
			ActionDispatch: {To: StatusDispatched, Roles: []shared.Role{shared.RoleCentralStore, shared.RoleStoreManager}},
		},
		StatusDispatched: {
			ActionMarkInTransit: {To: StatusInTransit, Roles: []shared.Role{shared.RoleCentralStore, shared.RoleStoreManager}},
		},
		StatusInTransit: {
			ActionConfirmReceipt: {To: StatusReceived, Roles: []shared.Role{shared.RoleStoreManager}, Finalizing: true},
		},
	}
	return workflow.NewMachine(DocType, StatusPrepared, table, []workflow.Status{StatusReceived})
}
