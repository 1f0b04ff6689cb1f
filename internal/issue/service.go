package issue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Digigit24/kumsserp-sub000/internal/inventory"
	"github.com/Digigit24/kumsserp-sub000/internal/notify"
	"github.com/Digigit24/kumsserp-sub000/internal/shared"
	"github.com/Digigit24/kumsserp-sub000/internal/workflow"
)

// ErrValidation indicates invalid input.
var ErrValidation = errors.New("issue: invalid input")

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (MaterialIssue, error)
	GetByIndent(ctx context.Context, indentID int64) (MaterialIssue, error)
	Create(ctx context.Context, min MaterialIssue) (MaterialIssue, error)
	Save(ctx context.Context, min MaterialIssue, expectedVersion int64) (MaterialIssue, error)
}

// InventoryPort posts the atomic stock decrement at dispatch time.
type InventoryPort interface {
	PostOutbound(ctx context.Context, input inventory.OutboundInput) (inventory.Balance, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// Service owns material issue transitions.
type Service struct {
	repo      RepositoryPort
	inventory InventoryPort
	audit     AuditPort
	locks     *shared.DocLock
	notifier  notify.Notifier
	machine   *workflow.Machine
}

// NewService constructs the material issue service.
func NewService(repo RepositoryPort, inv InventoryPort, audit AuditPort, locks *shared.DocLock, notifier notify.Notifier) *Service {
	return &Service{repo: repo, inventory: inv, audit: audit, locks: locks, notifier: notifier, machine: NewMachine()}
}

// Machine exposes the transition table.
func (s *Service) Machine() *workflow.Machine { return s.machine }

// CreateInput describes MIN preparation, derived from an approved indent.
type CreateInput struct {
	Number    string
	IndentID  int64
	CollegeID int64
	StoreID   int64
	Lines     []LineInput
}

// LineInput carries one derived line.
type LineInput struct {
	IndentLineID int64
	ItemID       int64
	ApprovedQty  float64
	AvailableQty float64
	IssuedQty    float64
	HasShortage  bool
}

// Create persists a prepared MIN. Called by the fulfillment orchestrator.
func (s *Service) Create(ctx context.Context, input CreateInput) (MaterialIssue, error) {
	if strings.TrimSpace(input.Number) == "" {
		return MaterialIssue{}, fmt.Errorf("%w: document number required", ErrValidation)
	}
	if input.IndentID == 0 || input.StoreID == 0 {
		return MaterialIssue{}, fmt.Errorf("%w: indent and store required", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return MaterialIssue{}, fmt.Errorf("%w: at least one line required", ErrValidation)
	}
	min := MaterialIssue{
		Number:    input.Number,
		IndentID:  input.IndentID,
		CollegeID: input.CollegeID,
		StoreID:   input.StoreID,
		Status:    s.machine.Initial(),
	}
	for _, line := range input.Lines {
		min.Lines = append(min.Lines, Line{
			IndentLineID: line.IndentLineID,
			ItemID:       line.ItemID,
			ApprovedQty:  line.ApprovedQty,
			AvailableQty: line.AvailableQty,
			IssuedQty:    line.IssuedQty,
			HasShortage:  line.HasShortage,
		})
	}
	created, err := s.repo.Create(ctx, min)
	if err != nil {
		return MaterialIssue{}, shared.ClassifyRepoError(err)
	}
	return created, nil
}

// GetByIndent returns the MIN derived from an indent, if any.
func (s *Service) GetByIndent(ctx context.Context, indentID int64) (MaterialIssue, error) {
	min, err := s.repo.GetByIndent(ctx, indentID)
	return min, shared.ClassifyRepoError(err)
}

// Get returns the MIN with lines.
func (s *Service) Get(ctx context.Context, id int64) (MaterialIssue, error) {
	min, err := s.repo.Get(ctx, id)
	return min, shared.ClassifyRepoError(err)
}

// Dispatch sends the MIN out and decrements stock atomically per line.
// Requires at least one line with an issued quantity above zero.
func (s *Service) Dispatch(ctx context.Context, id int64, actor shared.Actor) (MaterialIssue, error) {
	return s.transition(ctx, id, actor, ActionDispatch, func(min *MaterialIssue, next workflow.Status) error {
		issuable := false
		for _, line := range min.Lines {
			if line.IssuedQty > 0 {
				issuable = true
				break
			}
		}
		if !issuable {
			return fmt.Errorf("%w: nothing to dispatch", workflow.ErrNoIssuableItems)
		}
		for _, line := range min.Lines {
			if line.IssuedQty <= 0 {
				continue
			}
			refID := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("MIN:%d:%d", min.ID, line.ItemID)))
			_, err := s.inventory.PostOutbound(ctx, inventory.OutboundInput{
				Code:      fmt.Sprintf("MIN-%s-%d", min.Number, line.ItemID),
				StoreID:   min.StoreID,
				ItemID:    line.ItemID,
				Qty:       line.IssuedQty,
				Note:      fmt.Sprintf("MIN %s dispatch", min.Number),
				ActorID:   actor.ID,
				RefModule: DocType,
				RefID:     refID.String(),
			})
			// A retry after a partial failure finds some movements already
			// committed; the replay guard means the stock is out, not stuck.
			if err != nil && !errors.Is(err, shared.ErrIdempotencyConflict) {
				return err
			}
		}
		min.Status = next
		min.DispatchedBy = actor.ID
		min.DispatchedAt = time.Now().UTC()
		return nil
	})
}

// MarkInTransit records the handover to transport.
func (s *Service) MarkInTransit(ctx context.Context, id int64, actor shared.Actor) (MaterialIssue, error) {
	return s.transition(ctx, id, actor, ActionMarkInTransit, func(min *MaterialIssue, next workflow.Status) error {
		min.Status = next
		return nil
	})
}

// ConfirmReceipt finalizes the MIN. Re-confirming an already received MIN
// fails with ErrAlreadyFinalized; only the guard rejection is logged.
func (s *Service) ConfirmReceipt(ctx context.Context, id int64, actor shared.Actor) (MaterialIssue, error) {
	min, err := s.transition(ctx, id, actor, ActionConfirmReceipt, func(min *MaterialIssue, next workflow.Status) error {
		min.Status = next
		min.ReceivedBy = actor.ID
		min.ReceivedAt = time.Now().UTC()
		return nil
	})
	if errors.Is(err, workflow.ErrAlreadyFinalized) {
		s.recordAudit(ctx, actor, "issue:confirm_receipt_rejected", id, "", map[string]any{"reason": "already received"})
	}
	return min, err
}

func (s *Service) transition(ctx context.Context, id int64, actor shared.Actor, action workflow.Action, mutate func(*MaterialIssue, workflow.Status) error) (MaterialIssue, error) {
	token, err := s.locks.Acquire(ctx, DocType, id)
	if err != nil {
		return MaterialIssue{}, err
	}
	defer func() { _ = s.locks.Release(ctx, DocType, id, token) }()

	min, err := s.repo.Get(ctx, id)
	if err != nil {
		return MaterialIssue{}, shared.ClassifyRepoError(err)
	}
	expected := min.Version
	next, err := s.machine.Apply(workflow.Request{Current: min.Status, Action: action, Actor: actor})
	if err != nil {
		return MaterialIssue{}, err
	}
	if err := mutate(&min, next); err != nil {
		return MaterialIssue{}, err
	}
	saved, err := s.repo.Save(ctx, min, expected)
	if err != nil {
		return MaterialIssue{}, shared.ClassifyRepoError(err)
	}
	s.recordAudit(ctx, actor, "issue:"+string(action), saved.ID, saved.Number, map[string]any{"status": string(saved.Status)})
	if s.notifier != nil {
		s.notifier.TransitionCommitted(ctx, notify.Event{
			DocType:   DocType,
			DocID:     saved.ID,
			Number:    saved.Number,
			NewStatus: string(saved.Status),
			ActorRole: actor.Role,
		})
	}
	return saved, nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, docID int64, number string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	if number != "" {
		meta["number"] = number
	}
	_ = s.audit.Record(ctx, shared.AuditEntry{
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    action,
		DocType:   DocType,
		DocID:     docID,
		Meta:      meta,
	})
}
