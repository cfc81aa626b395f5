package stock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TxStore exposes the storage operations ApplyDelta needs inside an open
// transaction. The Sale Workflow and Online Order Fulfillment implement it
// over their own transactions so their stock deltas commit or roll back with
// the rest of their atomic unit.
type TxStore interface {
	GetLevelForUpdate(ctx context.Context, variantID, locationID int64) (Level, error)
	CreateLevel(ctx context.Context, variantID, locationID int64) error
	SetOnHand(ctx context.Context, variantID, locationID, qty int64) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

// ApplyDelta is the single point of inventory mutation. It reads the current
// level under a row lock (zero-initializing it on first movement), applies the
// signed delta, and records the movement. Sale-driven deductions may push the
// on-hand quantity negative; manual adjustments and transfers may not.
func ApplyDelta(ctx context.Context, store TxStore, in DeltaInput) (Movement, error) {
	if in.Delta == 0 || !in.Type.IsValid() {
		return Movement{}, ErrInvalidDelta
	}
	if in.VariantID == 0 || in.LocationID == 0 {
		return Movement{}, errors.New("stock: variant and location required")
	}

	level, err := store.GetLevelForUpdate(ctx, in.VariantID, in.LocationID)
	if errors.Is(err, ErrLevelNotFound) {
		if err := store.CreateLevel(ctx, in.VariantID, in.LocationID); err != nil {
			return Movement{}, fmt.Errorf("create level: %w", err)
		}
		level, err = store.GetLevelForUpdate(ctx, in.VariantID, in.LocationID)
	}
	if err != nil {
		return Movement{}, err
	}

	before := level.QuantityOnHand
	after := before + in.Delta
	if after < 0 {
		switch in.Type {
		case TransactionTypeAdjustment:
			return Movement{}, ErrNegativeAdjustment
		case TransactionTypeTransfer:
			return Movement{}, fmt.Errorf("%w: transfer exceeds on-hand quantity", ErrNegativeAdjustment)
		}
	}

	if err := store.SetOnHand(ctx, in.VariantID, in.LocationID, after); err != nil {
		return Movement{}, fmt.Errorf("set on-hand: %w", err)
	}

	movement := Movement{
		VariantID:      in.VariantID,
		LocationID:     in.LocationID,
		Type:           in.Type,
		QuantityChange: in.Delta,
		QuantityBefore: before,
		QuantityAfter:  after,
		ReferenceType:  in.ReferenceType,
		ReferenceID:    in.ReferenceID,
		ActorID:        in.ActorID,
		Notes:          in.Notes,
		CreatedAt:      time.Now().UTC(),
	}
	id, err := store.InsertMovement(ctx, movement)
	if err != nil {
		return Movement{}, fmt.Errorf("insert movement: %w", err)
	}
	movement.ID = id
	return movement, nil
}
