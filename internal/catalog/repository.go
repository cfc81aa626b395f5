package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads variant data from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetVariant returns a single variant by id.
func (r *Repository) GetVariant(ctx context.Context, variantID int64) (Variant, error) {
	if r == nil {
		return Variant{}, errors.New("catalog repository not initialised")
	}
	var v Variant
	err := r.pool.QueryRow(ctx, `SELECT v.id, v.product_id, v.sku, v.name, v.price, v.active AND p.active
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE v.id=$1`, variantID).Scan(&v.ID, &v.ProductID, &v.SKU, &v.Name, &v.Price, &v.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Variant{}, ErrVariantNotFound
		}
		return Variant{}, err
	}
	return v, nil
}
