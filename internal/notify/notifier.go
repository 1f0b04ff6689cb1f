// Package notify delivers post-commit transition notifications. Delivery is
// fire-and-forget: failures are logged and never block or roll back the
// committed transition.
package notify

import (
	"context"
	"log/slog"

	"github.com/Digigit24/kumsserp-sub000/internal/shared"
	"github.com/Digigit24/kumsserp-sub000/jobs"
)

// Event describes one committed workflow transition.
type Event struct {
	DocType   string
	DocID     int64
	Number    string
	NewStatus string
	ActorRole shared.Role
}

// Notifier is the notification sink boundary.
type Notifier interface {
	TransitionCommitted(ctx context.Context, evt Event)
}

// AsynqNotifier enqueues notification tasks for the background worker.
type AsynqNotifier struct {
	client *jobs.Client
	logger *slog.Logger
}

// NewAsynqNotifier constructs an AsynqNotifier.
func NewAsynqNotifier(client *jobs.Client, logger *slog.Logger) *AsynqNotifier {
	return &AsynqNotifier{client: client, logger: logger}
}

// TransitionCommitted enqueues the event. Errors are logged only.
func (n *AsynqNotifier) TransitionCommitted(ctx context.Context, evt Event) {
	if n == nil || n.client == nil {
		return
	}
	_, err := n.client.EnqueueNotifyTransition(ctx, jobs.NotifyTransitionPayload{
		DocType:   evt.DocType,
		DocID:     evt.DocID,
		Number:    evt.Number,
		NewStatus: evt.NewStatus,
		ActorRole: string(evt.ActorRole),
	})
	if err != nil && n.logger != nil {
		n.logger.Warn("enqueue transition notification",
			slog.String("doc_type", evt.DocType),
			slog.Int64("doc_id", evt.DocID),
			slog.Any("error", err))
	}
}

// Noop discards all events.
type Noop struct{}

// TransitionCommitted does nothing.
func (Noop) TransitionCommitted(context.Context, Event) {}
