package inventory

import (
	"errors"
	"time"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound movement (GRN posting).
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound movement (MIN dispatch).
	MovementOut MovementType = "OUT"
	// MovementAdjust indicates manual adjustments.
	MovementAdjust MovementType = "ADJUST"
)

// Movement models the header of a stock movement.
type Movement struct {
	ID        int64
	Code      string
	Type      MovementType
	StoreID   int64
	RefModule string
	RefID     string
	Note      string
	PostedAt  time.Time
	CreatedBy int64
	CreatedAt time.Time
}

// MovementLine models each item movement line.
type MovementLine struct {
	ID         int64
	MovementID int64
	ItemID     int64
	Qty        float64
}

// Balance summarises stock per store and item.
type Balance struct {
	StoreID   int64
	ItemID    int64
	Qty       float64
	UpdatedAt time.Time
}

// InboundInput describes a stock increment (GRN posting).
type InboundInput struct {
	Code      string
	StoreID   int64
	ItemID    int64
	Qty       float64
	Note      string
	ActorID   int64
	RefModule string
	RefID     string
}

// OutboundInput describes a stock decrement (MIN dispatch). The decrement is
// a single atomic decrement-with-check against the live balance.
type OutboundInput struct {
	Code      string
	StoreID   int64
	ItemID    int64
	Qty       float64
	Note      string
	ActorID   int64
	RefModule string
	RefID     string
}

var (
	// ErrNegativeStock triggered when a movement would make quantity negative.
	ErrNegativeStock = errors.New("inventory: negative stock not allowed")
	// ErrInvalidQuantity indicates a non-positive movement quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrBalanceNotFound indicates no balance row exists yet.
	ErrBalanceNotFound = errors.New("inventory: balance not found")
)
