package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEntry is one append-only audit trail record for a workflow document.
// Entries are only ever appended, never mutated or reordered.
type AuditEntry struct {
	ID        int64
	ActorID   int64
	ActorRole Role
	Action    string
	DocType   string
	DocID     int64
	Notes     string
	Meta      map[string]any
	At        time.Time
}

// AuditLogger appends entries to the audit_trail table.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record appends the audit entry.
func (l *AuditLogger) Record(ctx context.Context, entry AuditEntry) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if entry.Action == "" || entry.DocType == "" || entry.DocID == 0 {
		return errors.New("audit entry requires action/doc_type/doc_id")
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_trail (actor_id, actor_role, action, doc_type, doc_id, notes, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`,
		entry.ActorID, string(entry.ActorRole), entry.Action, entry.DocType, entry.DocID, entry.Notes, metaJSON, nullableTime(entry.At))
	return err
}

// ListForDocument returns the trail for one document in append order.
func (l *AuditLogger) ListForDocument(ctx context.Context, docType string, docID int64) ([]AuditEntry, error) {
	if l == nil {
		return nil, errors.New("audit logger not initialised")
	}
	rows, err := l.pool.Query(ctx, `SELECT id, actor_id, actor_role, action, doc_type, doc_id, notes, occurred_at
FROM audit_trail WHERE doc_type=$1 AND doc_id=$2 ORDER BY id ASC`, docType, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var role string
		if err := rows.Scan(&e.ID, &e.ActorID, &role, &e.Action, &e.DocType, &e.DocID, &e.Notes, &e.At); err != nil {
			return nil, err
		}
		e.ActorRole = Role(role)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
