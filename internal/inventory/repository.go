package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Digigit24/kumsserp-sub000/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetBalanceForUpdate(ctx context.Context, storeID, itemID int64) (Balance, error)
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	InsertMovementLine(ctx context.Context, line MovementLine) error
	UpsertBalance(ctx context.Context, b Balance) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetBalance reads the current balance without locking.
func (r *Repository) GetBalance(ctx context.Context, storeID, itemID int64) (Balance, error) {
	return scanBalance(r.pool.QueryRow(ctx, `SELECT store_id, item_id, qty, updated_at
FROM stock_balances WHERE store_id=$1 AND item_id=$2`, storeID, itemID))
}

func (tx *txRepo) GetBalanceForUpdate(ctx context.Context, storeID, itemID int64) (Balance, error) {
	return scanBalance(tx.tx.QueryRow(ctx, `SELECT store_id, item_id, qty, updated_at
FROM stock_balances WHERE store_id=$1 AND item_id=$2 FOR UPDATE`, storeID, itemID))
}

func (tx *txRepo) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO stock_movements (code, type, store_id, ref_module, ref_id, note, posted_at, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW()) RETURNING id`,
		m.Code, string(m.Type), m.StoreID, m.RefModule, m.RefID, m.Note, m.PostedAt, m.CreatedBy).Scan(&id)
	return id, err
}

func (tx *txRepo) InsertMovementLine(ctx context.Context, line MovementLine) error {
	_, err := tx.tx.Exec(ctx, `INSERT INTO stock_movement_lines (movement_id, item_id, qty) VALUES ($1, $2, $3)`,
		line.MovementID, line.ItemID, line.Qty)
	return err
}

func (tx *txRepo) UpsertBalance(ctx context.Context, b Balance) error {
	_, err := tx.tx.Exec(ctx, `INSERT INTO stock_balances (store_id, item_id, qty, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (store_id, item_id) DO UPDATE SET qty = EXCLUDED.qty, updated_at = EXCLUDED.updated_at`,
		b.StoreID, b.ItemID, b.Qty, b.UpdatedAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBalance(row rowScanner) (Balance, error) {
	var b Balance
	if err := row.Scan(&b.StoreID, &b.ItemID, &b.Qty, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return b, nil
}
