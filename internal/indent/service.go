package indent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Digigit24/kumsserp-sub000/internal/ledger"
	"github.com/Digigit24/kumsserp-sub000/internal/notify"
	"github.com/Digigit24/kumsserp-sub000/internal/shared"
	"github.com/Digigit24/kumsserp-sub000/internal/workflow"
)

// ErrValidation indicates invalid input.
var ErrValidation = errors.New("indent: invalid input")

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Indent, error)
	Create(ctx context.Context, ind Indent) (Indent, error)
	// Save commits header and line changes; fails with
	// workflow.ErrStaleVersion when expectedVersion no longer matches.
	Save(ctx context.Context, ind Indent, expectedVersion int64) (Indent, error)
	DeleteDraft(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int, filters ListFilters) ([]ListItem, int, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// Service owns indent transitions. Every mutation is one read-modify-write
// cycle guarded by the document lock and the version stamp.
type Service struct {
	repo      RepositoryPort
	approvals *shared.ApprovalRecorder
	audit     AuditPort
	locks     *shared.DocLock
	notifier  notify.Notifier
	gate      *workflow.Gate
	machine   *workflow.Machine
}

// NewService constructs the indent service. tierCount configures the
// approval chain (1 disables the college tier).
func NewService(repo RepositoryPort, approvals *shared.ApprovalRecorder, audit AuditPort, locks *shared.DocLock, notifier notify.Notifier, tierCount int) (*Service, error) {
	tiers := ApprovalTiers(tierCount)
	gate, err := workflow.NewGate(StatusSuperAdminApproved, tiers...)
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:      repo,
		approvals: approvals,
		audit:     audit,
		locks:     locks,
		notifier:  notifier,
		gate:      gate,
		machine:   NewMachine(gate, tiers),
	}, nil
}

// Machine exposes the transition table, e.g. for permitted-action listings.
func (s *Service) Machine() *workflow.Machine { return s.machine }

// CreateInput describes draft creation.
type CreateInput struct {
	Number        string
	CollegeID     int64
	RequestedBy   int64
	Justification string
	Lines         []LineInput
}

// LineInput describes one requested line.
type LineInput struct {
	ItemID       int64
	RequestedQty float64
	Note         string
}

// LineApproval adjusts one line's approved quantity during review.
type LineApproval struct {
	LineID      int64
	ApprovedQty float64
}

// LineIssue records the quantity dispatched against one line in a single
// fulfillment round.
type LineIssue struct {
	LineID      int64
	IssuedQty   float64
	HasShortage bool
}

// Create persists a new draft. Line items may still be empty; the non-empty
// invariant is enforced at submission.
func (s *Service) Create(ctx context.Context, input CreateInput) (Indent, error) {
	if strings.TrimSpace(input.Number) == "" {
		return Indent{}, fmt.Errorf("%w: document number required", ErrValidation)
	}
	if input.CollegeID == 0 || input.RequestedBy == 0 {
		return Indent{}, fmt.Errorf("%w: college and requester required", ErrValidation)
	}
	ind := Indent{
		Number:        input.Number,
		CollegeID:     input.CollegeID,
		RequestedBy:   input.RequestedBy,
		Status:        s.machine.Initial(),
		Justification: input.Justification,
	}
	for _, line := range input.Lines {
		if line.ItemID == 0 || line.RequestedQty < 0 {
			return Indent{}, fmt.Errorf("%w: line requires item and non-negative quantity", ErrValidation)
		}
		ind.Lines = append(ind.Lines, Line{ItemID: line.ItemID, RequestedQty: line.RequestedQty, Note: line.Note})
	}
	created, err := s.repo.Create(ctx, ind)
	if err != nil {
		return Indent{}, shared.ClassifyRepoError(err)
	}
	s.recordAudit(ctx, shared.Actor{ID: input.RequestedBy, Role: shared.RoleStoreManager}, "indent:create", created.ID, created.Number, nil)
	return created, nil
}

// UpdateDraft replaces justification and lines while the indent is a draft.
func (s *Service) UpdateDraft(ctx context.Context, id int64, actor shared.Actor, justification string, lines []LineInput) (Indent, error) {
	return s.transition(ctx, id, actor, func(ind *Indent) error {
		if ind.Status != StatusDraft {
			return &workflow.TransitionError{Current: ind.Status, Action: "edit", Reason: "only drafts can be edited"}
		}
		ind.Justification = justification
		ind.Lines = ind.Lines[:0]
		for _, line := range lines {
			if line.ItemID == 0 || line.RequestedQty < 0 {
				return fmt.Errorf("%w: line requires item and non-negative quantity", ErrValidation)
			}
			ind.Lines = append(ind.Lines, Line{IndentID: ind.ID, ItemID: line.ItemID, RequestedQty: line.RequestedQty, Note: line.Note})
		}
		return nil
	}, "indent:update", nil)
}

// DeleteDraft removes an unsubmitted indent. Deleting a draft is the only
// permitted document deletion.
func (s *Service) DeleteDraft(ctx context.Context, id int64, actor shared.Actor) error {
	token, err := s.locks.Acquire(ctx, DocType, id)
	if err != nil {
		return err
	}
	defer func() { _ = s.locks.Release(ctx, DocType, id, token) }()

	ind, err := s.repo.Get(ctx, id)
	if err != nil {
		return shared.ClassifyRepoError(err)
	}
	if ind.Status != StatusDraft {
		return &workflow.TransitionError{Current: ind.Status, Action: "delete", Reason: "only drafts can be deleted"}
	}
	if err := s.repo.DeleteDraft(ctx, id); err != nil {
		return shared.ClassifyRepoError(err)
	}
	s.recordAudit(ctx, actor, "indent:delete", id, ind.Number, nil)
	return nil
}

// Submit moves a draft into the approval chain. Requires at least one line
// with a positive requested quantity and a non-empty justification.
func (s *Service) Submit(ctx context.Context, id int64, actor shared.Actor) (Indent, error) {
	return s.transition(ctx, id, actor, func(ind *Indent) error {
		next, err := s.machine.Apply(workflow.Request{Current: ind.Status, Action: ActionSubmit, Actor: actor})
		if err != nil {
			return err
		}
		if strings.TrimSpace(ind.Justification) == "" {
			return &workflow.TransitionError{Current: ind.Status, Action: ActionSubmit, Reason: "justification required"}
		}
		requestable := false
		for _, line := range ind.Lines {
			if line.RequestedQty > 0 {
				requestable = true
				break
			}
		}
		if !requestable {
			return &workflow.TransitionError{Current: ind.Status, Action: ActionSubmit, Reason: "at least one line with requested quantity > 0 required"}
		}
		// Approved defaults to requested until an approver reduces it.
		for i := range ind.Lines {
			ind.Lines[i].ApprovedQty = ind.Lines[i].RequestedQty
		}
		_, firstRole := s.gate.RequestApproval()
		ind.Status = next
		ind.PendingRole = firstRole
		return nil
	}, "indent:submit", func(ctx context.Context, ind Indent) {
		if s.approvals != nil {
			_ = s.approvals.EnsureSubmit(ctx, DocType, shared.ApprovalRef(DocType, ind.ID), actor, fmt.Sprintf("Indent %s submitted", ind.Number))
		}
	})
}

// CollegeApprove approves at the college tier, optionally reducing approved
// quantities per line.
func (s *Service) CollegeApprove(ctx context.Context, id int64, actor shared.Actor, adjustments []LineApproval) (Indent, error) {
	return s.review(ctx, id, actor, ActionCollegeApprove, "", adjustments)
}

// CollegeReject rejects at the college tier. Reason is mandatory.
func (s *Service) CollegeReject(ctx context.Context, id int64, actor shared.Actor, reason string) (Indent, error) {
	return s.review(ctx, id, actor, ActionCollegeReject, reason, nil)
}

// SuperAdminApprove approves at the final tier.
func (s *Service) SuperAdminApprove(ctx context.Context, id int64, actor shared.Actor, adjustments []LineApproval) (Indent, error) {
	return s.review(ctx, id, actor, ActionSuperAdminApprove, "", adjustments)
}

// SuperAdminReject rejects at the final tier. Reason is mandatory.
func (s *Service) SuperAdminReject(ctx context.Context, id int64, actor shared.Actor, reason string) (Indent, error) {
	return s.review(ctx, id, actor, ActionSuperAdminReject, reason, nil)
}

// Cancel exits any non-terminal status.
func (s *Service) Cancel(ctx context.Context, id int64, actor shared.Actor, note string) (Indent, error) {
	return s.transition(ctx, id, actor, func(ind *Indent) error {
		next, err := s.machine.Apply(workflow.Request{Current: ind.Status, Action: ActionCancel, Actor: actor, Reason: note})
		if err != nil {
			return err
		}
		ind.Status = next
		ind.PendingRole = ""
		return nil
	}, "indent:cancel", nil)
}

// RecordIssue accumulates dispatched quantities after a material issue was
// prepared and derives the aggregate fulfillment status from the lines. Each
// entry carries the quantity issued in this round, not a running total.
func (s *Service) RecordIssue(ctx context.Context, id int64, actor shared.Actor, issues []LineIssue) (Indent, error) {
	return s.transition(ctx, id, actor, func(ind *Indent) error {
		if _, err := s.machine.Apply(workflow.Request{Current: ind.Status, Action: ActionRecordIssue, Actor: actor}); err != nil {
			return err
		}
		byID := make(map[int64]*Line, len(ind.Lines))
		for i := range ind.Lines {
			byID[ind.Lines[i].ID] = &ind.Lines[i]
		}
		for _, issue := range issues {
			line, ok := byID[issue.LineID]
			if !ok {
				return fmt.Errorf("%w: indent line %d", workflow.ErrUnknownLineItem, issue.LineID)
			}
			remaining := line.ApprovedQty - line.IssuedQty
			if issue.IssuedQty < 0 || issue.IssuedQty > remaining {
				return fmt.Errorf("%w: issued %.2f outside [0, %.2f]", workflow.ErrQuantityOutOfRange, issue.IssuedQty, remaining)
			}
			line.IssuedQty += issue.IssuedQty
			line.HasShortage = issue.HasShortage
		}
		switch ledger.AggregateStatus(ledgerLines(ind.Lines)) {
		case ledger.OutcomeFulfilled:
			ind.Status = StatusFulfilled
		case ledger.OutcomePartial:
			ind.Status = StatusPartiallyFulfilled
		}
		return nil
	}, "indent:record_issue", nil)
}

// Get returns the indent with lines.
func (s *Service) Get(ctx context.Context, id int64) (Indent, error) {
	ind, err := s.repo.Get(ctx, id)
	return ind, shared.ClassifyRepoError(err)
}

// List returns indent list rows with pagination.
func (s *Service) List(ctx context.Context, limit, offset int, filters ListFilters) ([]ListItem, int, error) {
	items, total, err := s.repo.List(ctx, limit, offset, filters)
	return items, total, shared.ClassifyRepoError(err)
}

func (s *Service) review(ctx context.Context, id int64, actor shared.Actor, action workflow.Action, reason string, adjustments []LineApproval) (Indent, error) {
	decision := shared.ApprovalApprove
	return s.transition(ctx, id, actor, func(ind *Indent) error {
		next, err := s.machine.Apply(workflow.Request{Current: ind.Status, Action: action, Actor: actor, Reason: reason})
		if err != nil {
			return err
		}
		if actor.Role != ind.PendingRole {
			return workflow.ErrRoleMismatch
		}
		switch action {
		case ActionCollegeReject, ActionSuperAdminReject:
			decision = shared.ApprovalReject
			ind.RejectionReason = strings.TrimSpace(reason)
			ind.PendingRole = ""
		default:
			if err := s.applyAdjustments(ind, adjustments); err != nil {
				return err
			}
			ind.PendingRole = s.gate.PendingRole(next)
		}
		ind.Status = next
		return nil
	}, "indent:"+string(action), func(ctx context.Context, ind Indent) {
		if s.approvals != nil {
			_ = s.approvals.Record(ctx, shared.ApprovalLog{
				Module:    DocType,
				RefID:     shared.ApprovalRef(DocType, ind.ID),
				ActorID:   actor.ID,
				ActorRole: actor.Role,
				Action:    decision,
				Note:      reason,
			})
		}
	})
}

func (s *Service) applyAdjustments(ind *Indent, adjustments []LineApproval) error {
	if len(adjustments) == 0 {
		return nil
	}
	byID := make(map[int64]*Line, len(ind.Lines))
	for i := range ind.Lines {
		byID[ind.Lines[i].ID] = &ind.Lines[i]
	}
	for _, adj := range adjustments {
		line, ok := byID[adj.LineID]
		if !ok {
			return fmt.Errorf("%w: indent line %d", workflow.ErrUnknownLineItem, adj.LineID)
		}
		reconciled, err := ledger.ReconcileApproval(ledger.Line{Requested: line.RequestedQty, Approved: line.ApprovedQty}, adj.ApprovedQty)
		if err != nil {
			return err
		}
		line.ApprovedQty = reconciled.Approved
	}
	return nil
}

// transition runs one locked read-modify-write cycle. mutate must either
// return an error or leave the indent in its post-transition state; commit
// is all-or-nothing via the version stamp.
func (s *Service) transition(ctx context.Context, id int64, actor shared.Actor, mutate func(*Indent) error, auditAction string, after func(context.Context, Indent)) (Indent, error) {
	token, err := s.locks.Acquire(ctx, DocType, id)
	if err != nil {
		return Indent{}, err
	}
	defer func() { _ = s.locks.Release(ctx, DocType, id, token) }()

	ind, err := s.repo.Get(ctx, id)
	if err != nil {
		return Indent{}, shared.ClassifyRepoError(err)
	}
	expected := ind.Version
	if err := mutate(&ind); err != nil {
		return Indent{}, err
	}
	saved, err := s.repo.Save(ctx, ind, expected)
	if err != nil {
		return Indent{}, shared.ClassifyRepoError(err)
	}
	if after != nil {
		after(ctx, saved)
	}
	s.recordAudit(ctx, actor, auditAction, saved.ID, saved.Number, map[string]any{"status": string(saved.Status)})
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
	meta["number"] = number
	_ = s.audit.Record(ctx, shared.AuditEntry{
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    action,
		DocType:   DocType,
		DocID:     docID,
		Meta:      meta,
	})
}

func ledgerLines(lines []Line) []ledger.Line {
	out := make([]ledger.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, ledger.Line{
			Requested:   l.RequestedQty,
			Approved:    l.ApprovedQty,
			Issued:      l.IssuedQty,
			HasShortage: l.HasShortage,
		})
	}
	return out
}
