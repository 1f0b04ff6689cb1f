package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Digigit24/kumsserp-sub000/internal/workflow"
)

func TestReconcileApproval(t *testing.T) {
	line := Line{Requested: 10}

	reduced, err := ReconcileApproval(line, 6)
	require.NoError(t, err)
	require.Equal(t, 6.0, reduced.Approved)

	full, err := ReconcileApproval(line, 10)
	require.NoError(t, err)
	require.Equal(t, 10.0, full.Approved)

	zero, err := ReconcileApproval(line, 0)
	require.NoError(t, err)
	require.Equal(t, 0.0, zero.Approved)

	_, err = ReconcileApproval(line, 11)
	require.ErrorIs(t, err, workflow.ErrQuantityOutOfRange)

	_, err = ReconcileApproval(line, -1)
	require.ErrorIs(t, err, workflow.ErrQuantityOutOfRange)
}

func TestReconcileIssueClampsToStock(t *testing.T) {
	line := ReconcileIssue(Line{Approved: 10}, 10, 4)
	require.Equal(t, 4.0, line.Issued)
	require.Equal(t, 4.0, line.Available)
	require.True(t, line.HasShortage)
}

func TestReconcileIssueClampsToApproval(t *testing.T) {
	line := ReconcileIssue(Line{Approved: 5}, 9, 100)
	require.Equal(t, 5.0, line.Issued)
	require.False(t, line.HasShortage)
}

func TestReconcileIssueZeroStock(t *testing.T) {
	line := ReconcileIssue(Line{Approved: 5}, 5, 0)
	require.Equal(t, 0.0, line.Issued)
	require.True(t, line.HasShortage)
}

func TestReconcileIssueNegativeDesired(t *testing.T) {
	line := ReconcileIssue(Line{Approved: 5}, -3, 10)
	require.Equal(t, 0.0, line.Issued)
}

func TestPending(t *testing.T) {
	require.Equal(t, 3.0, Line{Approved: 5, Issued: 2}.Pending())
	require.Equal(t, 0.0, Line{Approved: 5, Issued: 5}.Pending())
	require.Equal(t, 0.0, Line{Approved: 2, Issued: 5}.Pending())
}

func TestReconcileReceiptSplitsAcceptedRejected(t *testing.T) {
	line, err := ReconcileReceipt(Line{}, 10, 7)
	require.NoError(t, err)
	require.Equal(t, 10.0, line.Received)
	require.Equal(t, 7.0, line.Accepted)
	require.Equal(t, 3.0, line.Rejected)
	require.Equal(t, line.Received, line.Accepted+line.Rejected)

	_, err = ReconcileReceipt(Line{}, 10, 11)
	require.ErrorIs(t, err, workflow.ErrQuantityOutOfRange)

	_, err = ReconcileReceipt(Line{}, 10, -1)
	require.ErrorIs(t, err, workflow.ErrQuantityOutOfRange)

	_, err = ReconcileReceipt(Line{}, -1, 0)
	require.ErrorIs(t, err, workflow.ErrQuantityOutOfRange)
}

func TestAggregateStatus(t *testing.T) {
	require.Equal(t, OutcomeUnchanged, AggregateStatus(nil))
	require.Equal(t, OutcomeUnchanged, AggregateStatus([]Line{
		{Approved: 5, Issued: 0},
		{Approved: 3, Issued: 0},
	}))
	require.Equal(t, OutcomePartial, AggregateStatus([]Line{
		{Approved: 5, Issued: 5},
		{Approved: 3, Issued: 1},
	}))
	require.Equal(t, OutcomeFulfilled, AggregateStatus([]Line{
		{Approved: 5, Issued: 5},
		{Approved: 3, Issued: 3},
	}))
}
