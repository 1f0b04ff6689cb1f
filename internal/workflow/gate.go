package workflow

import (
	"errors"
	"strings"

	"github.com/Digigit24/kumsserp-sub000/internal/shared"
)

// Decision is an approval tier outcome.
type Decision string

const (
	// DecisionApprove advances to the next tier or the approved status.
	DecisionApprove Decision = "approve"
	// DecisionReject moves to the tier-specific rejected status.
	DecisionReject Decision = "reject"
)

// Tier is one sequential approval stage. Each tier is scoped to exactly one
// approver role and owns its rejected terminal status.
type Tier struct {
	Role     shared.Role
	Pending  Status
	Rejected Status
}

// Gate enforces sequential role-scoped approval. The tier list is
// configuration: smaller institutions can run a single tier, in which case
// the only approve decision lands directly on the approved status.
type Gate struct {
	tiers    []Tier
	approved Status
}

// NewGate builds a gate over the given tiers in order.
func NewGate(approved Status, tiers ...Tier) (*Gate, error) {
	if len(tiers) == 0 {
		return nil, errors.New("workflow: approval gate requires at least one tier")
	}
	for _, t := range tiers {
		if t.Role == "" || t.Pending == "" || t.Rejected == "" {
			return nil, errors.New("workflow: approval tier requires role, pending and rejected statuses")
		}
	}
	return &Gate{tiers: append([]Tier(nil), tiers...), approved: approved}, nil
}

// Tiers returns the configured tier count.
func (g *Gate) Tiers() int { return len(g.tiers) }

// RequestApproval returns the first tier's pending status and the role that
// must review it next.
func (g *Gate) RequestApproval() (Status, shared.Role) {
	return g.tiers[0].Pending, g.tiers[0].Role
}

// PendingRole returns the approver role recorded for the given pending
// status, or the empty role when the status is not an approval stage.
func (g *Gate) PendingRole(current Status) shared.Role {
	for _, t := range g.tiers {
		if t.Pending == current {
			return t.Role
		}
	}
	return ""
}

// Review evaluates a tier decision. A lower tier can never bypass a higher
// one: each decision only moves to the immediately following tier.
func (g *Gate) Review(current Status, actor shared.Actor, decision Decision, reason string) (Status, error) {
	idx := -1
	for i, t := range g.tiers {
		if t.Pending == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", invalidTransition(current, Action(decision), "status is not awaiting approval")
	}
	tier := g.tiers[idx]
	if actor.Role != tier.Role {
		return "", ErrRoleMismatch
	}
	switch decision {
	case DecisionApprove:
		if idx == len(g.tiers)-1 {
			return g.approved, nil
		}
		return g.tiers[idx+1].Pending, nil
	case DecisionReject:
		if strings.TrimSpace(reason) == "" {
			return "", ErrMissingReason
		}
		return tier.Rejected, nil
	default:
		return "", invalidTransition(current, Action(decision), "unknown decision")
	}
}
