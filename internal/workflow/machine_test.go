package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Digigit24/kumsserp-sub000/internal/shared"
)

const (
	statusOpen   Status = "OPEN"
	statusSent   Status = "SENT"
	statusClosed Status = "CLOSED"
)

const (
	actionSend  Action = "send"
	actionClose Action = "close"
	actionDrop  Action = "drop"
)

func testMachine() *Machine {
	return NewMachine("TEST_DOC", statusOpen, map[Status]map[Action]Rule{
		statusOpen: {
			actionSend: {To: statusSent, Roles: []shared.Role{shared.RoleStoreManager}},
			actionDrop: {To: statusClosed, RequireReason: true},
		},
		statusSent: {
			actionClose: {To: statusClosed, Finalizing: true},
		},
	}, []Status{statusClosed})
}

func TestApplyLegalTransition(t *testing.T) {
	m := testMachine()
	next, err := m.Apply(Request{
		Current: statusOpen,
		Action:  actionSend,
		Actor:   shared.Actor{ID: 1, Role: shared.RoleStoreManager},
	})
	require.NoError(t, err)
	require.Equal(t, statusSent, next)
}

func TestApplyRejectsUnlistedPair(t *testing.T) {
	m := testMachine()
	_, err := m.Apply(Request{
		Current: statusOpen,
		Action:  actionClose,
		Actor:   shared.Actor{ID: 1, Role: shared.RoleStoreManager},
	})
	require.ErrorIs(t, err, ErrInvalidTransition)

	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, statusOpen, terr.Current)
	require.Equal(t, actionClose, terr.Action)
}

func TestApplyRejectsWrongRole(t *testing.T) {
	m := testMachine()
	_, err := m.Apply(Request{
		Current: statusOpen,
		Action:  actionSend,
		Actor:   shared.Actor{ID: 1, Role: shared.RoleInspector},
	})
	require.ErrorIs(t, err, ErrRoleMismatch)
}

func TestApplyRequiresReason(t *testing.T) {
	m := testMachine()
	_, err := m.Apply(Request{Current: statusOpen, Action: actionDrop, Reason: "   "})
	require.ErrorIs(t, err, ErrMissingReason)

	next, err := m.Apply(Request{Current: statusOpen, Action: actionDrop, Reason: "no longer needed"})
	require.NoError(t, err)
	require.Equal(t, statusClosed, next)
}

func TestFinalizingActionOnTerminalStatus(t *testing.T) {
	m := testMachine()
	_, err := m.Apply(Request{Current: statusClosed, Action: actionClose})
	require.ErrorIs(t, err, ErrAlreadyFinalized)

	// Non-finalizing actions on terminal statuses stay invalid transitions.
	_, err = m.Apply(Request{Current: statusClosed, Action: actionSend})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestObserverSeesEveryOutcome(t *testing.T) {
	m := testMachine()
	type observed struct {
		docType, action, outcome string
	}
	var seen []observed
	m.Observe(func(docType, action, outcome string) {
		seen = append(seen, observed{docType, action, outcome})
	})

	manager := shared.Actor{ID: 1, Role: shared.RoleStoreManager}
	_, _ = m.Apply(Request{Current: statusOpen, Action: actionSend, Actor: manager})
	_, _ = m.Apply(Request{Current: statusOpen, Action: actionClose, Actor: manager})
	_, _ = m.Apply(Request{Current: statusOpen, Action: actionSend, Actor: shared.Actor{ID: 2, Role: shared.RoleInspector}})
	_, _ = m.Apply(Request{Current: statusOpen, Action: actionDrop, Actor: manager})
	_, _ = m.Apply(Request{Current: statusClosed, Action: actionClose, Actor: manager})

	require.Equal(t, []observed{
		{"TEST_DOC", "send", "applied"},
		{"TEST_DOC", "close", "invalid_transition"},
		{"TEST_DOC", "send", "role_mismatch"},
		{"TEST_DOC", "drop", "missing_reason"},
		{"TEST_DOC", "close", "already_finalized"},
	}, seen)
}

func TestApplyUnknownStatus(t *testing.T) {
	m := testMachine()
	_, err := m.Apply(Request{Current: Status("NO_SUCH"), Action: actionSend})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestIsTerminal(t *testing.T) {
	m := testMachine()
	require.True(t, m.IsTerminal(statusClosed))
	require.False(t, m.IsTerminal(statusOpen))
	require.Equal(t, statusOpen, m.Initial())
	require.Equal(t, "TEST_DOC", m.DocType())
}

func TestPermittedActions(t *testing.T) {
	m := testMachine()

	actions := m.PermittedActions(statusOpen, shared.RoleStoreManager)
	require.ElementsMatch(t, []Action{actionSend, actionDrop}, actions)

	// Role-restricted actions drop out for other roles.
	actions = m.PermittedActions(statusOpen, shared.RoleInspector)
	require.ElementsMatch(t, []Action{actionDrop}, actions)

	require.Empty(t, m.PermittedActions(statusClosed, shared.RoleStoreManager))
}
