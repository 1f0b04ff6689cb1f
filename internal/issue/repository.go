package issue

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Digigit24/kumsserp-sub000/internal/shared"
	"github.com/Digigit24/kumsserp-sub000/internal/workflow"
)

// Repository provides PostgreSQL backed persistence for material issues.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts header and lines. A document number collision maps to
// shared.ErrDuplicateNumber.
func (r *Repository) Create(ctx context.Context, min MaterialIssue) (MaterialIssue, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return MaterialIssue{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO material_issues (number, indent_id, college_id, store_id, status, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 1, NOW(), NOW()) RETURNING id, version, created_at, updated_at`,
		min.Number, min.IndentID, min.CollegeID, min.StoreID, string(min.Status)).
		Scan(&min.ID, &min.Version, &min.CreatedAt, &min.UpdatedAt)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return MaterialIssue{}, shared.ErrDuplicateNumber
		}
		return MaterialIssue{}, err
	}
	for i := range min.Lines {
		line := &min.Lines[i]
		line.IssueID = min.ID
		if err := tx.QueryRow(ctx, `INSERT INTO material_issue_lines (issue_id, indent_line_id, item_id, approved_qty, available_qty, issued_qty, has_shortage)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			line.IssueID, line.IndentLineID, line.ItemID, line.ApprovedQty, line.AvailableQty, line.IssuedQty, line.HasShortage).Scan(&line.ID); err != nil {
			return MaterialIssue{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return MaterialIssue{}, err
	}
	return min, nil
}

// Get returns the material issue and its lines.
func (r *Repository) Get(ctx context.Context, id int64) (MaterialIssue, error) {
	return r.getBy(ctx, `id=$1`, id)
}

// GetByIndent returns the material issue derived from an indent.
func (r *Repository) GetByIndent(ctx context.Context, indentID int64) (MaterialIssue, error) {
	return r.getBy(ctx, `indent_id=$1`, indentID)
}

func (r *Repository) getBy(ctx context.Context, where string, arg any) (MaterialIssue, error) {
	var min MaterialIssue
	var status string
	var dispatchedBy, receivedBy *int64
	var dispatchedAt, receivedAt *time.Time
	err := r.pool.QueryRow(ctx, `SELECT id, number, indent_id, college_id, store_id, status, version,
dispatched_by, dispatched_at, received_by, received_at, created_at, updated_at
FROM material_issues WHERE `+where, arg).
		Scan(&min.ID, &min.Number, &min.IndentID, &min.CollegeID, &min.StoreID, &status, &min.Version,
			&dispatchedBy, &dispatchedAt, &receivedBy, &receivedAt, &min.CreatedAt, &min.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MaterialIssue{}, shared.ErrNotFound
		}
		return MaterialIssue{}, err
	}
	min.Status = workflow.Status(status)
	if dispatchedBy != nil {
		min.DispatchedBy = *dispatchedBy
	}
	if dispatchedAt != nil {
		min.DispatchedAt = *dispatchedAt
	}
	if receivedBy != nil {
		min.ReceivedBy = *receivedBy
	}
	if receivedAt != nil {
		min.ReceivedAt = *receivedAt
	}

	rows, err := r.pool.Query(ctx, `SELECT id, issue_id, indent_line_id, item_id, approved_qty, available_qty, issued_qty, has_shortage
FROM material_issue_lines WHERE issue_id=$1 ORDER BY id ASC`, min.ID)
	if err != nil {
		return MaterialIssue{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.IssueID, &line.IndentLineID, &line.ItemID, &line.ApprovedQty, &line.AvailableQty, &line.IssuedQty, &line.HasShortage); err != nil {
			return MaterialIssue{}, err
		}
		min.Lines = append(min.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return MaterialIssue{}, err
	}
	return min, nil
}

// Save commits header changes iff the version stamp still matches. Lines are
// immutable after preparation and never rewritten here.
func (r *Repository) Save(ctx context.Context, min MaterialIssue, expectedVersion int64) (MaterialIssue, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE material_issues SET status=$1,
dispatched_by=$2, dispatched_at=$3, received_by=$4, received_at=$5,
version=version+1, updated_at=NOW()
WHERE id=$6 AND version=$7`,
		string(min.Status), nullableID(min.DispatchedBy), nullableTime(min.DispatchedAt),
		nullableID(min.ReceivedBy), nullableTime(min.ReceivedAt), min.ID, expectedVersion)
	if err != nil {
		return MaterialIssue{}, err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT true FROM material_issues WHERE id=$1`, min.ID).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return MaterialIssue{}, shared.ErrNotFound
			}
			return MaterialIssue{}, err
		}
		return MaterialIssue{}, workflow.ErrStaleVersion
	}
	min.Version = expectedVersion + 1
	return min, nil
}

func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
