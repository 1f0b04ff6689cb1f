package issue

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Digigit24/kumsserp-sub000/internal/inventory"
	"github.com/Digigit24/kumsserp-sub000/internal/shared"
	"github.com/Digigit24/kumsserp-sub000/internal/workflow"
)

type memoryIssueRepo struct {
	issues     map[int64]MaterialIssue
	nextID     int64
	nextLineID int64
}

func newMemoryIssueRepo() *memoryIssueRepo {
	return &memoryIssueRepo{issues: make(map[int64]MaterialIssue)}
}

func cloneIssue(min MaterialIssue) MaterialIssue {
	out := min
	out.Lines = append([]Line(nil), min.Lines...)
	return out
}

func (r *memoryIssueRepo) Get(ctx context.Context, id int64) (MaterialIssue, error) {
	min, ok := r.issues[id]
	if !ok {
		return MaterialIssue{}, shared.ErrNotFound
	}
	return cloneIssue(min), nil
}

func (r *memoryIssueRepo) GetByIndent(ctx context.Context, indentID int64) (MaterialIssue, error) {
	for _, min := range r.issues {
		if min.IndentID == indentID {
			return cloneIssue(min), nil
		}
	}
	return MaterialIssue{}, shared.ErrNotFound
}

func (r *memoryIssueRepo) Create(ctx context.Context, min MaterialIssue) (MaterialIssue, error) {
	r.nextID++
	min.ID = r.nextID
	min.Version = 1
	for i := range min.Lines {
		r.nextLineID++
		min.Lines[i].ID = r.nextLineID
		min.Lines[i].IssueID = min.ID
	}
	r.issues[min.ID] = cloneIssue(min)
	return cloneIssue(min), nil
}

func (r *memoryIssueRepo) Save(ctx context.Context, min MaterialIssue, expectedVersion int64) (MaterialIssue, error) {
	stored, ok := r.issues[min.ID]
	if !ok {
		return MaterialIssue{}, shared.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return MaterialIssue{}, workflow.ErrStaleVersion
	}
	min.Version = expectedVersion + 1
	r.issues[min.ID] = cloneIssue(min)
	return cloneIssue(min), nil
}

type outboundCall struct {
	itemID int64
	qty    float64
	refID  string
}

type memoryInventory struct {
	outbound []outboundCall
	failNext error
}

func (m *memoryInventory) PostOutbound(ctx context.Context, input inventory.OutboundInput) (inventory.Balance, error) {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return inventory.Balance{}, err
	}
	m.outbound = append(m.outbound, outboundCall{itemID: input.ItemID, qty: input.Qty, refID: input.RefID})
	return inventory.Balance{StoreID: input.StoreID, ItemID: input.ItemID}, nil
}

type memoryAudit struct {
	entries []shared.AuditEntry
}

func (a *memoryAudit) Record(ctx context.Context, entry shared.AuditEntry) error {
	a.entries = append(a.entries, entry)
	return nil
}

var (
	centralStore = shared.Actor{ID: 40, Role: shared.RoleCentralStore}
	storeManager = shared.Actor{ID: 10, Role: shared.RoleStoreManager}
)

func newTestService(t *testing.T) (*Service, *memoryIssueRepo, *memoryInventory, *memoryAudit) {
	t.Helper()
	repo := newMemoryIssueRepo()
	inv := &memoryInventory{}
	audit := &memoryAudit{}
	return NewService(repo, inv, audit, nil, nil), repo, inv, audit
}

func preparedMIN(t *testing.T, svc *Service) MaterialIssue {
	t.Helper()
	min, err := svc.Create(context.Background(), CreateInput{
		Number:    "MIN-2026-0001",
		IndentID:  1,
		CollegeID: 1,
		StoreID:   5,
		Lines: []LineInput{
			{IndentLineID: 11, ItemID: 100, ApprovedQty: 6, AvailableQty: 6, IssuedQty: 6},
			{IndentLineID: 12, ItemID: 200, ApprovedQty: 4, AvailableQty: 1, IssuedQty: 1, HasShortage: true},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPrepared, min.Status)
	return min
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{IndentID: 1, StoreID: 5, Lines: []LineInput{{ItemID: 1}}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Number: "MIN-1", StoreID: 5, Lines: []LineInput{{ItemID: 1}}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Number: "MIN-1", IndentID: 1, StoreID: 5})
	require.ErrorIs(t, err, ErrValidation)
}

func TestDispatchDecrementsStockPerIssuedLine(t *testing.T) {
	svc, _, inv, _ := newTestService(t)
	ctx := context.Background()

	min := preparedMIN(t, svc)
	dispatched, err := svc.Dispatch(ctx, min.ID, centralStore)
	require.NoError(t, err)
	require.Equal(t, StatusDispatched, dispatched.Status)
	require.Equal(t, centralStore.ID, dispatched.DispatchedBy)
	require.False(t, dispatched.DispatchedAt.IsZero())

	require.Len(t, inv.outbound, 2)
	require.Equal(t, int64(100), inv.outbound[0].itemID)
	require.Equal(t, 6.0, inv.outbound[0].qty)
	require.Equal(t, 1.0, inv.outbound[1].qty)
}

func TestDispatchSkipsZeroQuantityLines(t *testing.T) {
	svc, _, inv, _ := newTestService(t)
	ctx := context.Background()

	min, err := svc.Create(ctx, CreateInput{
		Number: "MIN-2026-0002", IndentID: 2, CollegeID: 1, StoreID: 5,
		Lines: []LineInput{
			{IndentLineID: 21, ItemID: 100, ApprovedQty: 5, AvailableQty: 5, IssuedQty: 5},
			{IndentLineID: 22, ItemID: 200, ApprovedQty: 4, AvailableQty: 0, IssuedQty: 0, HasShortage: true},
		},
	})
	require.NoError(t, err)

	_, err = svc.Dispatch(ctx, min.ID, centralStore)
	require.NoError(t, err)
	require.Len(t, inv.outbound, 1, "zero-quantity lines must not post movements")
}

func TestDispatchRejectsWhenNothingIssuable(t *testing.T) {
	svc, _, inv, _ := newTestService(t)
	ctx := context.Background()

	min, err := svc.Create(ctx, CreateInput{
		Number: "MIN-2026-0003", IndentID: 3, CollegeID: 1, StoreID: 5,
		Lines: []LineInput{
			{IndentLineID: 31, ItemID: 100, ApprovedQty: 5, AvailableQty: 0, IssuedQty: 0, HasShortage: true},
		},
	})
	require.NoError(t, err)

	_, err = svc.Dispatch(ctx, min.ID, centralStore)
	require.ErrorIs(t, err, workflow.ErrNoIssuableItems)
	require.Empty(t, inv.outbound)
}

func TestDispatchRetryToleratesCommittedMovements(t *testing.T) {
	svc, _, inv, _ := newTestService(t)
	ctx := context.Background()

	// First attempt crashed after committing line one's movement; its replay
	// guard answers with a conflict on the retry. The retry must still carry
	// the MIN to DISPATCHED and post the remaining line.
	min := preparedMIN(t, svc)
	inv.failNext = fmt.Errorf("inventory outbound: %w", shared.ErrIdempotencyConflict)

	dispatched, err := svc.Dispatch(ctx, min.ID, centralStore)
	require.NoError(t, err)
	require.Equal(t, StatusDispatched, dispatched.Status)
	require.Len(t, inv.outbound, 1, "the already-committed line must not post again")
	require.Equal(t, int64(200), inv.outbound[0].itemID)
}

func TestDispatchAbortsOnInventoryFailure(t *testing.T) {
	svc, repo, inv, _ := newTestService(t)
	ctx := context.Background()

	min := preparedMIN(t, svc)
	inv.failNext = shared.ErrRepositoryUnavailable

	_, err := svc.Dispatch(ctx, min.ID, centralStore)
	require.Error(t, err)

	stored, err := repo.Get(ctx, min.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPrepared, stored.Status, "status must not advance when a movement fails")
}

func TestDispatchRoleRestricted(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	min := preparedMIN(t, svc)
	_, err := svc.Dispatch(ctx, min.ID, shared.Actor{ID: 99, Role: shared.RoleInspector})
	require.ErrorIs(t, err, workflow.ErrRoleMismatch)
}

func TestReceiptConfirmationIsOneWay(t *testing.T) {
	svc, _, _, audit := newTestService(t)
	ctx := context.Background()

	min := preparedMIN(t, svc)
	_, err := svc.Dispatch(ctx, min.ID, centralStore)
	require.NoError(t, err)
	_, err = svc.MarkInTransit(ctx, min.ID, centralStore)
	require.NoError(t, err)

	received, err := svc.ConfirmReceipt(ctx, min.ID, storeManager)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, received.Status)
	require.Equal(t, storeManager.ID, received.ReceivedBy)
	require.False(t, received.ReceivedAt.IsZero())

	// A replayed confirmation fails and leaves only a guard-rejection entry.
	_, err = svc.ConfirmReceipt(ctx, min.ID, storeManager)
	require.ErrorIs(t, err, workflow.ErrAlreadyFinalized)

	last := audit.entries[len(audit.entries)-1]
	require.Equal(t, "issue:confirm_receipt_rejected", last.Action)
	require.Equal(t, "already received", last.Meta["reason"])
}

func TestConfirmReceiptRequiresInTransit(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	min := preparedMIN(t, svc)
	_, err := svc.ConfirmReceipt(ctx, min.ID, storeManager)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
}

func TestGetByIndent(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	min := preparedMIN(t, svc)
	found, err := svc.GetByIndent(ctx, min.IndentID)
	require.NoError(t, err)
	require.Equal(t, min.ID, found.ID)

	_, err = svc.GetByIndent(ctx, 777)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
