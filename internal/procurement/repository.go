package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Digigit24/kumsserp-sub000/internal/shared"
	"github.com/Digigit24/kumsserp-sub000/internal/workflow"
)

// ListFilters narrows requirement listings.
type ListFilters struct {
	Status    string
	CollegeID int64
	Search    string
	SortBy    string
	SortDir   string
}

// RequirementListItem is one requirement list row.
type RequirementListItem struct {
	ID        int64
	Number    string
	CollegeID int64
	Status    string
	LineCount int
	CreatedAt string
}

// Repository provides PostgreSQL backed persistence for the procurement
// pipeline.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateRequirement inserts header and lines.
func (r *Repository) CreateRequirement(ctx context.Context, req Requirement) (Requirement, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return Requirement{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO requirements (number, college_id, requested_by, status, justification, pending_role, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 1, NOW(), NOW()) RETURNING id, version, created_at, updated_at`,
		req.Number, req.CollegeID, req.RequestedBy, string(req.Status), req.Justification, string(req.PendingRole)).
		Scan(&req.ID, &req.Version, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return Requirement{}, mapUnique(err)
	}
	for i := range req.Lines {
		line := &req.Lines[i]
		line.RequirementID = req.ID
		if err := tx.QueryRow(ctx, `INSERT INTO requirement_lines (requirement_id, item_id, requested_qty, approved_qty, note)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			line.RequirementID, line.ItemID, line.RequestedQty, line.ApprovedQty, line.Note).Scan(&line.ID); err != nil {
			return Requirement{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Requirement{}, err
	}
	return req, nil
}

// GetRequirement returns the requirement and its lines.
func (r *Repository) GetRequirement(ctx context.Context, id int64) (Requirement, error) {
	var req Requirement
	var status, pendingRole string
	err := r.pool.QueryRow(ctx, `SELECT id, number, college_id, requested_by, status, justification, rejection_reason, pending_role, version, created_at, updated_at
FROM requirements WHERE id=$1`, id).
		Scan(&req.ID, &req.Number, &req.CollegeID, &req.RequestedBy, &status, &req.Justification, &req.RejectionReason, &pendingRole, &req.Version, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Requirement{}, shared.ErrNotFound
		}
		return Requirement{}, err
	}
	req.Status = workflow.Status(status)
	req.PendingRole = shared.Role(pendingRole)

	rows, err := r.pool.Query(ctx, `SELECT id, requirement_id, item_id, requested_qty, approved_qty, note
FROM requirement_lines WHERE requirement_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Requirement{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line RequirementLine
		if err := rows.Scan(&line.ID, &line.RequirementID, &line.ItemID, &line.RequestedQty, &line.ApprovedQty, &line.Note); err != nil {
			return Requirement{}, err
		}
		req.Lines = append(req.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Requirement{}, err
	}
	return req, nil
}

// SaveRequirement commits header and line changes iff the version matches.
func (r *Repository) SaveRequirement(ctx context.Context, req Requirement, expectedVersion int64) (Requirement, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return Requirement{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE requirements SET status=$1, justification=$2, rejection_reason=$3, pending_role=$4, version=version+1, updated_at=NOW()
WHERE id=$5 AND version=$6`,
		string(req.Status), req.Justification, req.RejectionReason, string(req.PendingRole), req.ID, expectedVersion)
	if err != nil {
		return Requirement{}, err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT true FROM requirements WHERE id=$1`, req.ID).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Requirement{}, shared.ErrNotFound
			}
			return Requirement{}, err
		}
		return Requirement{}, workflow.ErrStaleVersion
	}
	if _, err := tx.Exec(ctx, `DELETE FROM requirement_lines WHERE requirement_id=$1`, req.ID); err != nil {
		return Requirement{}, err
	}
	for i := range req.Lines {
		line := &req.Lines[i]
		line.RequirementID = req.ID
		if line.ID != 0 {
			if _, err := tx.Exec(ctx, `INSERT INTO requirement_lines (id, requirement_id, item_id, requested_qty, approved_qty, note)
VALUES ($1, $2, $3, $4, $5, $6)`,
				line.ID, line.RequirementID, line.ItemID, line.RequestedQty, line.ApprovedQty, line.Note); err != nil {
				return Requirement{}, err
			}
			continue
		}
		if err := tx.QueryRow(ctx, `INSERT INTO requirement_lines (requirement_id, item_id, requested_qty, approved_qty, note)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			line.RequirementID, line.ItemID, line.RequestedQty, line.ApprovedQty, line.Note).Scan(&line.ID); err != nil {
			return Requirement{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Requirement{}, err
	}
	req.Version = expectedVersion + 1
	return req, nil
}

// DeleteRequirementDraft removes header and lines of an unsubmitted
// requirement.
func (r *Repository) DeleteRequirementDraft(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `DELETE FROM requirement_lines WHERE requirement_id=$1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM requirements WHERE id=$1 AND status=$2`, id, string(ReqStatusDraft))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return tx.Commit(ctx)
}

// ListRequirements returns requirement list rows.
func (r *Repository) ListRequirements(ctx context.Context, limit, offset int, filters ListFilters) ([]RequirementListItem, int, error) {
	countSQL := `SELECT COUNT(*) FROM requirements r WHERE 1=1`
	dataSQL := `SELECT r.id, r.number, r.college_id, r.status,
		COALESCE((SELECT COUNT(*) FROM requirement_lines WHERE requirement_id = r.id), 0) AS line_count,
		r.created_at::text
	FROM requirements r WHERE 1=1`
	var conds string
	args := []any{}
	argNum := 1
	if filters.Status != "" {
		conds += ` AND r.status = $` + itoa(argNum)
		args = append(args, filters.Status)
		argNum++
	}
	if filters.CollegeID > 0 {
		conds += ` AND r.college_id = $` + itoa(argNum)
		args = append(args, filters.CollegeID)
		argNum++
	}
	if filters.Search != "" {
		conds += ` AND r.number ILIKE $` + itoa(argNum)
		args = append(args, "%"+filters.Search+"%")
		argNum++
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL+conds, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	dataSQL += conds + ` ORDER BY ` + requirementSortOrder(filters.SortBy, filters.SortDir) +
		` LIMIT $` + itoa(argNum) + ` OFFSET $` + itoa(argNum+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []RequirementListItem
	for rows.Next() {
		var item RequirementListItem
		if err := rows.Scan(&item.ID, &item.Number, &item.CollegeID, &item.Status, &item.LineCount, &item.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CreateQuotation inserts quotation header and priced lines.
func (r *Repository) CreateQuotation(ctx context.Context, q Quotation) (Quotation, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return Quotation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO quotations (requirement_id, vendor_id, vendor_name, reference, is_selected, version, created_at)
VALUES ($1, $2, $3, $4, false, 1, NOW()) RETURNING id, version, created_at`,
		q.RequirementID, q.VendorID, q.VendorName, q.Reference).
		Scan(&q.ID, &q.Version, &q.CreatedAt)
	if err != nil {
		return Quotation{}, err
	}
	for i := range q.Lines {
		line := &q.Lines[i]
		line.QuotationID = q.ID
		if err := tx.QueryRow(ctx, `INSERT INTO quotation_lines (quotation_id, item_id, qty, unit_price)
VALUES ($1, $2, $3, $4) RETURNING id`,
			line.QuotationID, line.ItemID, line.Qty, line.UnitPrice).Scan(&line.ID); err != nil {
			return Quotation{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Quotation{}, err
	}
	return q, nil
}

// DeleteQuotation removes a quotation and its lines.
func (r *Repository) DeleteQuotation(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `DELETE FROM quotation_lines WHERE quotation_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM quotations WHERE id=$1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetQuotation returns one quotation with lines.
func (r *Repository) GetQuotation(ctx context.Context, id int64) (Quotation, error) {
	var q Quotation
	err := r.pool.QueryRow(ctx, `SELECT id, requirement_id, vendor_id, vendor_name, reference, is_selected, version, created_at
FROM quotations WHERE id=$1`, id).
		Scan(&q.ID, &q.RequirementID, &q.VendorID, &q.VendorName, &q.Reference, &q.IsSelected, &q.Version, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, shared.ErrNotFound
		}
		return Quotation{}, err
	}
	if err := r.loadQuotationLines(ctx, &q); err != nil {
		return Quotation{}, err
	}
	return q, nil
}

// ListQuotations returns every quotation against one requirement.
func (r *Repository) ListQuotations(ctx context.Context, requirementID int64) ([]Quotation, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, requirement_id, vendor_id, vendor_name, reference, is_selected, version, created_at
FROM quotations WHERE requirement_id=$1 ORDER BY id ASC`, requirementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quotation
	for rows.Next() {
		var q Quotation
		if err := rows.Scan(&q.ID, &q.RequirementID, &q.VendorID, &q.VendorName, &q.Reference, &q.IsSelected, &q.Version, &q.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadQuotationLines(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repository) loadQuotationLines(ctx context.Context, q *Quotation) error {
	rows, err := r.pool.Query(ctx, `SELECT id, quotation_id, item_id, qty, unit_price
FROM quotation_lines WHERE quotation_id=$1 ORDER BY id ASC`, q.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var line QuotationLine
		if err := rows.Scan(&line.ID, &line.QuotationID, &line.ItemID, &line.Qty, &line.UnitPrice); err != nil {
			return err
		}
		q.Lines = append(q.Lines, line)
	}
	return rows.Err()
}

// MarkQuotationSelected flips the selection atomically: clears every sibling
// then sets the winner, so at most one quotation per requirement is selected.
func (r *Repository) MarkQuotationSelected(ctx context.Context, requirementID, quotationID int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `UPDATE quotations SET is_selected=false WHERE requirement_id=$1`, requirementID); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `UPDATE quotations SET is_selected=true, version=version+1 WHERE id=$1 AND requirement_id=$2`, quotationID, requirementID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return tx.Commit(ctx)
}

// CreatePO inserts purchase order header and lines.
func (r *Repository) CreatePO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO purchase_orders (number, requirement_id, quotation_id, vendor_id, status, version, issued_by, issued_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 1, $6, $7, NOW(), NOW()) RETURNING id, version, created_at, updated_at`,
		po.Number, po.RequirementID, po.QuotationID, po.VendorID, string(po.Status), po.IssuedBy, po.IssuedAt).
		Scan(&po.ID, &po.Version, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		return PurchaseOrder{}, mapUnique(err)
	}
	for i := range po.Lines {
		line := &po.Lines[i]
		line.POID = po.ID
		if err := tx.QueryRow(ctx, `INSERT INTO purchase_order_lines (po_id, item_id, ordered_qty, received_qty, unit_price)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			line.POID, line.ItemID, line.OrderedQty, line.ReceivedQty, line.UnitPrice).Scan(&line.ID); err != nil {
			return PurchaseOrder{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// DeletePO removes a purchase order and its lines.
func (r *Repository) DeletePO(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE po_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id=$1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetPO returns the purchase order and its lines.
func (r *Repository) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	var po PurchaseOrder
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, number, requirement_id, quotation_id, vendor_id, status, version, issued_by, issued_at, created_at, updated_at
FROM purchase_orders WHERE id=$1`, id).
		Scan(&po.ID, &po.Number, &po.RequirementID, &po.QuotationID, &po.VendorID, &status, &po.Version, &po.IssuedBy, &po.IssuedAt, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, shared.ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	po.Status = workflow.Status(status)

	rows, err := r.pool.Query(ctx, `SELECT id, po_id, item_id, ordered_qty, received_qty, unit_price
FROM purchase_order_lines WHERE po_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line POLine
		if err := rows.Scan(&line.ID, &line.POID, &line.ItemID, &line.OrderedQty, &line.ReceivedQty, &line.UnitPrice); err != nil {
			return PurchaseOrder{}, err
		}
		po.Lines = append(po.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// SavePO commits header and received quantities iff the version matches.
func (r *Repository) SavePO(ctx context.Context, po PurchaseOrder, expectedVersion int64) (PurchaseOrder, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE purchase_orders SET status=$1, version=version+1, updated_at=NOW()
WHERE id=$2 AND version=$3`, string(po.Status), po.ID, expectedVersion)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT true FROM purchase_orders WHERE id=$1`, po.ID).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return PurchaseOrder{}, shared.ErrNotFound
			}
			return PurchaseOrder{}, err
		}
		return PurchaseOrder{}, workflow.ErrStaleVersion
	}
	for _, line := range po.Lines {
		if _, err := tx.Exec(ctx, `UPDATE purchase_order_lines SET received_qty=$1 WHERE id=$2 AND po_id=$3`,
			line.ReceivedQty, line.ID, po.ID); err != nil {
			return PurchaseOrder{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return PurchaseOrder{}, err
	}
	po.Version = expectedVersion + 1
	return po, nil
}

// CreateGRN inserts goods receipt header and lines.
func (r *Repository) CreateGRN(ctx context.Context, grn GoodsReceipt) (GoodsReceipt, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return GoodsReceipt{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO goods_receipts (number, po_id, store_id, status, inspection_note, rejection_reason, version, received_by, received_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, '', '', 1, $5, $6, NOW(), NOW()) RETURNING id, version, created_at, updated_at`,
		grn.Number, grn.POID, grn.StoreID, string(grn.Status), grn.ReceivedBy, grn.ReceivedAt).
		Scan(&grn.ID, &grn.Version, &grn.CreatedAt, &grn.UpdatedAt)
	if err != nil {
		return GoodsReceipt{}, mapUnique(err)
	}
	for i := range grn.Lines {
		line := &grn.Lines[i]
		line.GRNID = grn.ID
		if err := tx.QueryRow(ctx, `INSERT INTO goods_receipt_lines (grn_id, po_line_id, item_id, received_qty, accepted_qty, rejected_qty)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			line.GRNID, line.POLineID, line.ItemID, line.ReceivedQty, line.AcceptedQty, line.RejectedQty).Scan(&line.ID); err != nil {
			return GoodsReceipt{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return GoodsReceipt{}, err
	}
	return grn, nil
}

// DeleteGRN removes a goods receipt and its lines.
func (r *Repository) DeleteGRN(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `DELETE FROM goods_receipt_lines WHERE grn_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM goods_receipts WHERE id=$1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetGRN returns the goods receipt and its lines.
func (r *Repository) GetGRN(ctx context.Context, id int64) (GoodsReceipt, error) {
	var grn GoodsReceipt
	var status string
	var postedAt *time.Time
	err := r.pool.QueryRow(ctx, `SELECT id, number, po_id, store_id, status, inspection_note, rejection_reason, version, received_by, received_at, posted_at, created_at, updated_at
FROM goods_receipts WHERE id=$1`, id).
		Scan(&grn.ID, &grn.Number, &grn.POID, &grn.StoreID, &status, &grn.InspectionNote, &grn.RejectionReason, &grn.Version, &grn.ReceivedBy, &grn.ReceivedAt, &postedAt, &grn.CreatedAt, &grn.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GoodsReceipt{}, shared.ErrNotFound
		}
		return GoodsReceipt{}, err
	}
	grn.Status = workflow.Status(status)
	if postedAt != nil {
		grn.PostedAt = *postedAt
	}

	rows, err := r.pool.Query(ctx, `SELECT id, grn_id, po_line_id, item_id, received_qty, accepted_qty, rejected_qty
FROM goods_receipt_lines WHERE grn_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return GoodsReceipt{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line GRNLine
		if err := rows.Scan(&line.ID, &line.GRNID, &line.POLineID, &line.ItemID, &line.ReceivedQty, &line.AcceptedQty, &line.RejectedQty); err != nil {
			return GoodsReceipt{}, err
		}
		grn.Lines = append(grn.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return GoodsReceipt{}, err
	}
	return grn, nil
}

// SaveGRN commits header and inspection splits iff the version matches.
func (r *Repository) SaveGRN(ctx context.Context, grn GoodsReceipt, expectedVersion int64) (GoodsReceipt, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return GoodsReceipt{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE goods_receipts SET status=$1, inspection_note=$2, rejection_reason=$3, posted_at=$4, version=version+1, updated_at=NOW()
WHERE id=$5 AND version=$6`,
		string(grn.Status), grn.InspectionNote, grn.RejectionReason, nullableTime(grn.PostedAt), grn.ID, expectedVersion)
	if err != nil {
		return GoodsReceipt{}, err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT true FROM goods_receipts WHERE id=$1`, grn.ID).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return GoodsReceipt{}, shared.ErrNotFound
			}
			return GoodsReceipt{}, err
		}
		return GoodsReceipt{}, workflow.ErrStaleVersion
	}
	for _, line := range grn.Lines {
		if _, err := tx.Exec(ctx, `UPDATE goods_receipt_lines SET accepted_qty=$1, rejected_qty=$2 WHERE id=$3 AND grn_id=$4`,
			line.AcceptedQty, line.RejectedQty, line.ID, grn.ID); err != nil {
			return GoodsReceipt{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return GoodsReceipt{}, err
	}
	grn.Version = expectedVersion + 1
	return grn, nil
}

// ListGRNsForPO returns every receipt recorded against a PO.
func (r *Repository) ListGRNsForPO(ctx context.Context, poID int64) ([]GoodsReceipt, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM goods_receipts WHERE po_id=$1 ORDER BY id ASC`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]GoodsReceipt, 0, len(ids))
	for _, id := range ids {
		grn, err := r.GetGRN(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, grn)
	}
	return out, nil
}

func requirementSortOrder(sortBy, sortDir string) string {
	dir := "DESC"
	if sortDir == "asc" {
		dir = "ASC"
	}
	switch sortBy {
	case "number":
		return "r.number " + dir
	case "status":
		return "r.status " + dir
	default:
		return "r.created_at DESC"
	}
}

func itoa(i int) string {
	return fmt.Sprintf("%d", i)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func mapUnique(err error) error {
	if err == nil {
		return nil
	}
	if shared.IsUniqueViolation(err) {
		return shared.ErrDuplicateNumber
	}
	return err
}
