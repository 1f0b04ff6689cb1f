package indent

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Digigit24/kumsserp-sub000/internal/shared"
	"github.com/Digigit24/kumsserp-sub000/internal/workflow"
)

// ListFilters narrows indent listings.
type ListFilters struct {
	Status    string
	CollegeID int64
	Search    string
	SortBy    string
	SortDir   string
}

// ListItem is one indent list row with denormalized display fields.
type ListItem struct {
	ID          int64
	Number      string
	CollegeID   int64
	CollegeName string
	Status      string
	LineCount   int
	CreatedAt   string
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts header and lines. A document number collision maps to
// shared.ErrDuplicateNumber.
func (r *Repository) Create(ctx context.Context, ind Indent) (Indent, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return Indent{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO indents (number, college_id, requested_by, status, justification, pending_role, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 1, NOW(), NOW()) RETURNING id, version, created_at, updated_at`,
		ind.Number, ind.CollegeID, ind.RequestedBy, string(ind.Status), ind.Justification, string(ind.PendingRole)).
		Scan(&ind.ID, &ind.Version, &ind.CreatedAt, &ind.UpdatedAt)
	if err != nil {
		return Indent{}, mapUniqueViolation(err)
	}
	for i := range ind.Lines {
		line := &ind.Lines[i]
		line.IndentID = ind.ID
		if err := tx.QueryRow(ctx, `INSERT INTO indent_lines (indent_id, item_id, requested_qty, approved_qty, issued_qty, has_shortage, note)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			line.IndentID, line.ItemID, line.RequestedQty, line.ApprovedQty, line.IssuedQty, line.HasShortage, line.Note).Scan(&line.ID); err != nil {
			return Indent{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Indent{}, err
	}
	return ind, nil
}

// Get returns the indent and its lines in insertion order.
func (r *Repository) Get(ctx context.Context, id int64) (Indent, error) {
	var ind Indent
	var status, pendingRole string
	err := r.pool.QueryRow(ctx, `SELECT id, number, college_id, requested_by, status, justification, rejection_reason, pending_role, version, created_at, updated_at
FROM indents WHERE id=$1`, id).
		Scan(&ind.ID, &ind.Number, &ind.CollegeID, &ind.RequestedBy, &status, &ind.Justification, &ind.RejectionReason, &pendingRole, &ind.Version, &ind.CreatedAt, &ind.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Indent{}, shared.ErrNotFound
		}
		return Indent{}, err
	}
	ind.Status = workflow.Status(status)
	ind.PendingRole = shared.Role(pendingRole)

	rows, err := r.pool.Query(ctx, `SELECT id, indent_id, item_id, requested_qty, approved_qty, issued_qty, has_shortage, note
FROM indent_lines WHERE indent_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Indent{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.IndentID, &line.ItemID, &line.RequestedQty, &line.ApprovedQty, &line.IssuedQty, &line.HasShortage, &line.Note); err != nil {
			return Indent{}, err
		}
		ind.Lines = append(ind.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Indent{}, err
	}
	return ind, nil
}

// Save commits header and line changes iff the version stamp still matches.
func (r *Repository) Save(ctx context.Context, ind Indent, expectedVersion int64) (Indent, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return Indent{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE indents SET status=$1, justification=$2, rejection_reason=$3, pending_role=$4, version=version+1, updated_at=NOW()
WHERE id=$5 AND version=$6`,
		string(ind.Status), ind.Justification, ind.RejectionReason, string(ind.PendingRole), ind.ID, expectedVersion)
	if err != nil {
		return Indent{}, err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT true FROM indents WHERE id=$1`, ind.ID).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Indent{}, shared.ErrNotFound
			}
			return Indent{}, err
		}
		return Indent{}, workflow.ErrStaleVersion
	}
	if _, err := tx.Exec(ctx, `DELETE FROM indent_lines WHERE indent_id=$1`, ind.ID); err != nil {
		return Indent{}, err
	}
	for i := range ind.Lines {
		line := &ind.Lines[i]
		line.IndentID = ind.ID
		if line.ID != 0 {
			if _, err := tx.Exec(ctx, `INSERT INTO indent_lines (id, indent_id, item_id, requested_qty, approved_qty, issued_qty, has_shortage, note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				line.ID, line.IndentID, line.ItemID, line.RequestedQty, line.ApprovedQty, line.IssuedQty, line.HasShortage, line.Note); err != nil {
				return Indent{}, err
			}
			continue
		}
		if err := tx.QueryRow(ctx, `INSERT INTO indent_lines (indent_id, item_id, requested_qty, approved_qty, issued_qty, has_shortage, note)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			line.IndentID, line.ItemID, line.RequestedQty, line.ApprovedQty, line.IssuedQty, line.HasShortage, line.Note).Scan(&line.ID); err != nil {
			return Indent{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Indent{}, err
	}
	ind.Version = expectedVersion + 1
	return ind, nil
}

// DeleteDraft removes header and lines of an unsubmitted indent.
func (r *Repository) DeleteDraft(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `DELETE FROM indent_lines WHERE indent_id=$1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM indents WHERE id=$1 AND status=$2`, id, string(StatusDraft))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return tx.Commit(ctx)
}

// List returns indent rows with college names and line counts.
func (r *Repository) List(ctx context.Context, limit, offset int, filters ListFilters) ([]ListItem, int, error) {
	countSQL := `SELECT COUNT(*) FROM indents i WHERE 1=1`
	args := []any{}
	argNum := 1
	if filters.Status != "" {
		countSQL += ` AND i.status = $` + itoa(argNum)
		args = append(args, filters.Status)
		argNum++
	}
	if filters.CollegeID > 0 {
		countSQL += ` AND i.college_id = $` + itoa(argNum)
		args = append(args, filters.CollegeID)
		argNum++
	}
	if filters.Search != "" {
		countSQL += ` AND i.number ILIKE $` + itoa(argNum)
		args = append(args, "%"+filters.Search+"%")
		argNum++
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT i.id, i.number, i.college_id, COALESCE(c.name, '') AS college_name,
		i.status, COALESCE((SELECT COUNT(*) FROM indent_lines WHERE indent_id = i.id), 0) AS line_count,
		i.created_at::text
	FROM indents i
	LEFT JOIN colleges c ON c.id = i.college_id
	WHERE 1=1`
	args2 := []any{}
	argNum2 := 1
	if filters.Status != "" {
		dataSQL += ` AND i.status = $` + itoa(argNum2)
		args2 = append(args2, filters.Status)
		argNum2++
	}
	if filters.CollegeID > 0 {
		dataSQL += ` AND i.college_id = $` + itoa(argNum2)
		args2 = append(args2, filters.CollegeID)
		argNum2++
	}
	if filters.Search != "" {
		dataSQL += ` AND i.number ILIKE $` + itoa(argNum2)
		args2 = append(args2, "%"+filters.Search+"%")
		argNum2++
	}
	dataSQL += ` ORDER BY ` + sortOrderIndent(filters.SortBy, filters.SortDir) + ` LIMIT $` + itoa(argNum2) + ` OFFSET $` + itoa(argNum2+1)
	args2 = append(args2, limit, offset)

	rows, err := r.pool.Query(ctx, dataSQL, args2...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []ListItem
	for rows.Next() {
		var item ListItem
		if err := rows.Scan(&item.ID, &item.Number, &item.CollegeID, &item.CollegeName, &item.Status, &item.LineCount, &item.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func sortOrderIndent(sortBy, sortDir string) string {
	dir := "DESC"
	if sortDir == "asc" {
		dir = "ASC"
	}
	switch sortBy {
	case "number":
		return "i.number " + dir
	case "college":
		return "college_name " + dir
	case "status":
		return "i.status " + dir
	default:
		return "i.created_at DESC"
	}
}

func itoa(i int) string {
	return fmt.Sprintf("%d", i)
}

func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	if shared.IsUniqueViolation(err) {
		return shared.ErrDuplicateNumber
	}
	return err
}
