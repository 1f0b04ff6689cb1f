package workflow

import (
	"errors"
	"strings"

	"github.com/Digigit24/kumsserp-sub000/internal/shared"
)

// Status is a document lifecycle status. Each document type owns a closed set.
type Status string

// Action names a requested transition.
type Action string

// Rule describes one legal transition.
type Rule struct {
	To Status
	// Roles allowed to perform the action. Empty means any authenticated role.
	Roles []shared.Role
	// RequireReason forces a non-empty reason (rejections).
	RequireReason bool
	// Finalizing marks the action as one-way; repeating it against the
	// resulting status fails with ErrAlreadyFinalized instead of
	// ErrInvalidTransition.
	Finalizing bool
}

// Machine owns the transition table for one document type and rejects any
// transition not explicitly legal for {current status, action, actor role}.
type Machine struct {
	docType     string
	initial     Status
	transitions map[Status]map[Action]Rule
	terminal    map[Status]bool
	observer    Observer
}

// Observer receives the outcome of every Apply call, e.g. a transition
// counter. The outcome is one of applied, invalid_transition, role_mismatch,
// missing_reason, already_finalized or error.
type Observer func(docType, action, outcome string)

// NewMachine builds a machine from an explicit table.
func NewMachine(docType string, initial Status, table map[Status]map[Action]Rule, terminal []Status) *Machine {
	term := make(map[Status]bool, len(terminal))
	for _, s := range terminal {
		term[s] = true
	}
	return &Machine{docType: docType, initial: initial, transitions: table, terminal: term}
}

// DocType returns the document type the machine governs.
func (m *Machine) DocType() string { return m.docType }

// Initial returns the creation status.
func (m *Machine) Initial() Status { return m.initial }

// IsTerminal reports whether no further status-mutating transition is legal.
func (m *Machine) IsTerminal(s Status) bool { return m.terminal[s] }

// Request carries one transition attempt.
type Request struct {
	Current Status
	Action  Action
	Actor   shared.Actor
	Reason  string
}

// Observe installs the observer. Passing nil removes it.
func (m *Machine) Observe(fn Observer) { m.observer = fn }

// Apply validates the request and returns the next status. It performs no
// side effects; committing the result is the caller's responsibility, so a
// retried call against an unchanged document is safe to re-attempt.
func (m *Machine) Apply(req Request) (Status, error) {
	next, err := m.apply(req)
	if m.observer != nil {
		m.observer(m.docType, string(req.Action), outcomeLabel(err))
	}
	return next, err
}

func (m *Machine) apply(req Request) (Status, error) {
	actions, ok := m.transitions[req.Current]
	if !ok || len(actions) == 0 {
		if m.terminal[req.Current] && m.isFinalizing(req.Action) {
			return "", ErrAlreadyFinalized
		}
		return "", invalidTransition(req.Current, req.Action, "status is terminal")
	}
	rule, ok := actions[req.Action]
	if !ok {
		return "", invalidTransition(req.Current, req.Action, "action not legal for status")
	}
	if len(rule.Roles) > 0 && !roleAllowed(rule.Roles, req.Actor.Role) {
		return "", ErrRoleMismatch
	}
	if rule.RequireReason && strings.TrimSpace(req.Reason) == "" {
		return "", ErrMissingReason
	}
	return rule.To, nil
}

// PermittedActions returns actions legal in the given status, for callers
// that surface available operations.
func (m *Machine) PermittedActions(current Status, role shared.Role) []Action {
	var out []Action
	for action, rule := range m.transitions[current] {
		if len(rule.Roles) == 0 || roleAllowed(rule.Roles, role) {
			out = append(out, action)
		}
	}
	return out
}

// isFinalizing reports whether any rule for the action is marked finalizing.
func (m *Machine) isFinalizing(action Action) bool {
	for _, actions := range m.transitions {
		if rule, ok := actions[action]; ok && rule.Finalizing {
			return true
		}
	}
	return false
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, ErrAlreadyFinalized):
		return "already_finalized"
	case errors.Is(err, ErrRoleMismatch):
		return "role_mismatch"
	case errors.Is(err, ErrMissingReason):
		return "missing_reason"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "error"
	}
}

func roleAllowed(roles []shared.Role, role shared.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
