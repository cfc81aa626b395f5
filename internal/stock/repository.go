package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a read-committed transaction. Writers
// touching the same level rows serialize through the FOR UPDATE lock.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	if err := fn(ctx, NewTxStore(tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// GetLevel reads the level without locking. Used for the advisory
// pre-checkout availability display only.
func (r *Repository) GetLevel(ctx context.Context, variantID, locationID int64) (Level, error) {
	if r == nil {
		return Level{}, errors.New("stock repository not initialised")
	}
	var level Level
	err := r.pool.QueryRow(ctx, `SELECT variant_id, location_id, quantity_on_hand, quantity_reserved, reorder_level, reorder_quantity, updated_at
FROM stock_levels WHERE variant_id=$1 AND location_id=$2`, variantID, locationID).
		Scan(&level.VariantID, &level.LocationID, &level.QuantityOnHand, &level.QuantityReserved, &level.ReorderLevel, &level.ReorderQuantity, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Level{}, ErrLevelNotFound
		}
		return Level{}, err
	}
	return level, nil
}

// ListMovements returns ledger entries for a (variant, location) pair.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if r == nil {
		return nil, errors.New("stock repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, variant_id, location_id, transaction_type, quantity_change, quantity_before, quantity_after, reference_type, reference_id, actor_id, notes, created_at
FROM stock_movements
WHERE variant_id=$1 AND location_id=$2 AND created_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY created_at ASC, id ASC
LIMIT $5`, filter.VariantID, filter.LocationID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		var txType string
		if err := rows.Scan(&m.ID, &m.VariantID, &m.LocationID, &txType, &m.QuantityChange, &m.QuantityBefore, &m.QuantityAfter, &m.ReferenceType, &m.ReferenceID, &m.ActorID, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = TransactionType(txType)
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

type txStore struct {
	tx pgx.Tx
}

// NewTxStore adapts an open pgx transaction to the ledger's TxStore. Other
// modules use it so their stock deltas share their transaction boundary.
func NewTxStore(tx pgx.Tx) TxStore {
	return &txStore{tx: tx}
}

func (s *txStore) GetLevelForUpdate(ctx context.Context, variantID, locationID int64) (Level, error) {
	var level Level
	err := s.tx.QueryRow(ctx, `SELECT variant_id, location_id, quantity_on_hand, quantity_reserved, reorder_level, reorder_quantity, updated_at
FROM stock_levels WHERE variant_id=$1 AND location_id=$2 FOR UPDATE`, variantID, locationID).
		Scan(&level.VariantID, &level.LocationID, &level.QuantityOnHand, &level.QuantityReserved, &level.ReorderLevel, &level.ReorderQuantity, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Level{}, ErrLevelNotFound
		}
		return Level{}, err
	}
	return level, nil
}

func (s *txStore) CreateLevel(ctx context.Context, variantID, locationID int64) error {
	// Concurrent first movements race here; ON CONFLICT keeps both alive and
	// the follow-up locking read serializes them.
	_, err := s.tx.Exec(ctx, `INSERT INTO stock_levels (variant_id, location_id, quantity_on_hand, quantity_reserved, reorder_level, reorder_quantity, updated_at)
VALUES ($1, $2, 0, 0, 0, 0, NOW())
ON CONFLICT (variant_id, location_id) DO NOTHING`, variantID, locationID)
	return err
}

func (s *txStore) SetOnHand(ctx context.Context, variantID, locationID, qty int64) error {
	tag, err := s.tx.Exec(ctx, `UPDATE stock_levels SET quantity_on_hand=$3, updated_at=NOW()
WHERE variant_id=$1 AND location_id=$2`, variantID, locationID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLevelNotFound
	}
	return nil
}

func (s *txStore) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO stock_movements (variant_id, location_id, transaction_type, quantity_change, quantity_before, quantity_after, reference_type, reference_id, actor_id, notes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`, m.VariantID, m.LocationID, string(m.Type), m.QuantityChange, m.QuantityBefore, m.QuantityAfter, m.ReferenceType, m.ReferenceID, m.ActorID, m.Notes, m.CreatedAt).Scan(&id)
	return id, err
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
