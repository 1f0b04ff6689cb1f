package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Digigit24/kumsserp-sub000/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBalance(ctx context.Context, storeID, itemID int64) (Balance, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// Service posts stock movements and serves point-in-time balance snapshots.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	allowNeg    bool
}

// ServiceConfig toggles stock policies.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, allowNeg: cfg.AllowNegativeStock}
}

// AvailableQuantity returns the current stock of an item at a store. It is a
// point-in-time snapshot, not a reservation.
func (s *Service) AvailableQuantity(ctx context.Context, storeID, itemID int64) (float64, error) {
	balance, err := s.repo.GetBalance(ctx, storeID, itemID)
	if err != nil {
		if errors.Is(err, ErrBalanceNotFound) {
			return 0, nil
		}
		return 0, shared.ClassifyRepoError(err)
	}
	return balance.Qty, nil
}

// PostInbound posts an inbound movement (GRN posting).
func (s *Service) PostInbound(ctx context.Context, input InboundInput) (Balance, error) {
	if input.Qty <= 0 {
		return Balance{}, ErrInvalidQuantity
	}
	return s.postMovement(ctx, movementParams{
		Code:      input.Code,
		StoreID:   input.StoreID,
		ItemID:    input.ItemID,
		QtyChange: input.Qty,
		TxType:    MovementIn,
		Note:      input.Note,
		ActorID:   input.ActorID,
		RefModule: input.RefModule,
		RefID:     input.RefID,
	})
}

// PostOutbound posts an outbound movement (MIN dispatch). The balance check
// and decrement happen inside one transaction.
func (s *Service) PostOutbound(ctx context.Context, input OutboundInput) (Balance, error) {
	if input.Qty <= 0 {
		return Balance{}, ErrInvalidQuantity
	}
	return s.postMovement(ctx, movementParams{
		Code:      input.Code,
		StoreID:   input.StoreID,
		ItemID:    input.ItemID,
		QtyChange: -input.Qty,
		TxType:    MovementOut,
		Note:      input.Note,
		ActorID:   input.ActorID,
		RefModule: input.RefModule,
		RefID:     input.RefID,
	})
}

type movementParams struct {
	Code      string
	StoreID   int64
	ItemID    int64
	QtyChange float64
	TxType    MovementType
	Note      string
	ActorID   int64
	RefModule string
	RefID     string
}

func (s *Service) postMovement(ctx context.Context, params movementParams) (Balance, error) {
	if params.StoreID == 0 || params.ItemID == 0 {
		return Balance{}, errors.New("inventory: store and item required")
	}
	now := time.Now().UTC()
	code := params.Code
	if code == "" {
		code = fmt.Sprintf("INV-%d", now.UnixNano())
	}
	if params.RefID != "" {
		if _, err := uuid.Parse(params.RefID); err != nil {
			return Balance{}, fmt.Errorf("inventory: invalid ref id: %w", err)
		}
	}
	key := fmt.Sprintf("%s:%s:%d:%d", params.TxType, code, params.StoreID, params.ItemID)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
			return Balance{}, err
		}
		insertedKey = true
	}

	var result Balance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balance, err := tx.GetBalanceForUpdate(ctx, params.StoreID, params.ItemID)
		if err != nil && !errors.Is(err, ErrBalanceNotFound) {
			return err
		}
		if errors.Is(err, ErrBalanceNotFound) {
			balance = Balance{StoreID: params.StoreID, ItemID: params.ItemID}
		}
		newQty := balance.Qty + params.QtyChange
		if !s.allowNeg && newQty < -0.0001 {
			return ErrNegativeStock
		}
		movementID, err := tx.InsertMovement(ctx, Movement{
			Code:      code,
			Type:      params.TxType,
			StoreID:   params.StoreID,
			RefModule: params.RefModule,
			RefID:     params.RefID,
			Note:      params.Note,
			PostedAt:  now,
			CreatedBy: params.ActorID,
		})
		if err != nil {
			return err
		}
		if err := tx.InsertMovementLine(ctx, MovementLine{MovementID: movementID, ItemID: params.ItemID, Qty: params.QtyChange}); err != nil {
			return err
		}
		balance.Qty = newQty
		balance.UpdatedAt = now
		if err := tx.UpsertBalance(ctx, balance); err != nil {
			return err
		}
		result = balance
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Balance{}, shared.ClassifyRepoError(err)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditEntry{
			ActorID: params.ActorID,
			Action:  fmt.Sprintf("inventory:%s", params.TxType),
			DocType: "inventory_movement",
			DocID:   params.ItemID,
			Notes:   params.Note,
			Meta: map[string]any{
				"store_id": params.StoreID,
				"item_id":  params.ItemID,
				"qty":      params.QtyChange,
				"code":     code,
			},
		})
	}
	return result, nil
}
