package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeNotifyTransition fans out a committed workflow transition to
	// the notification channels.
	TaskTypeNotifyTransition = "workflow:notify_transition"
	// TaskTypeIdempotencyCleanup prunes expired idempotency keys.
	TaskTypeIdempotencyCleanup = "workflow:idempotency_cleanup"
)

// NotifyTransitionPayload describes a committed transition.
type NotifyTransitionPayload struct {
	DocType   string `json:"doc_type"`
	DocID     int64  `json:"doc_id"`
	Number    string `json:"number"`
	NewStatus string `json:"new_status"`
	ActorRole string `json:"actor_role"`
}

// NewNotifyTransitionTask constructs an Asynq task.
func NewNotifyTransitionTask(payload NotifyTransitionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNotifyTransition, data), nil
}

// HandleNotifyTransitionTask processes TaskTypeNotifyTransition tasks.
// Delivery is fire-and-forget relative to the workflow: a failure here never
// rolls back the committed transition.
func HandleNotifyTransitionTask(ctx context.Context, t *asynq.Task) error {
	var payload NotifyTransitionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	slog.Default().Info("notify transition",
		slog.String("doc_type", payload.DocType),
		slog.Int64("doc_id", payload.DocID),
		slog.String("number", payload.Number),
		slog.String("new_status", payload.NewStatus),
		slog.String("actor_role", payload.ActorRole))
	return nil
}

// IdempotencyCleaner prunes processed keys older than the retention window.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewIdempotencyCleanupTask constructs the periodic cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIdempotencyCleanup, nil)
}

// NewIdempotencyCleanupHandler returns a handler bound to the given store.
func NewIdempotencyCleanupHandler(store IdempotencyCleaner, retention time.Duration) asynq.HandlerFunc {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return func(ctx context.Context, t *asynq.Task) error {
		if store == nil {
			return nil
		}
		return store.Cleanup(ctx, retention)
	}
}
