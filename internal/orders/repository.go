package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillworks/tillworks/internal/platform/db"
	"github.com/tillworks/tillworks/internal/stock"
)

// TxRepository is the transactional surface for order mutations. Stock()
// exposes the ledger over the same open transaction so fulfillment deltas
// commit or roll back with the status change.
type TxRepository interface {
	NextOrderNumber(ctx context.Context, date time.Time) (string, error)
	InsertOrder(ctx context.Context, order Order) (int64, error)
	InsertItem(ctx context.Context, item Item) error
	GetForUpdate(ctx context.Context, orderID int64) (*Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status Status, processedBy *int64) error
	Stock() stock.TxStore
}

// Repository persists online orders in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `id, order_number, source, customer_name,
	COALESCE(customer_phone, ''), COALESCE(customer_email, ''),
	subtotal, total_amount, status, processed_by, processed_at,
	COALESCE(notes, ''), created_at, updated_at`

// Get loads an order with its items.
func (r *Repository) Get(ctx context.Context, orderID int64) (*Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM online_orders WHERE id = $1`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	order.Items, err = r.loadItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// List returns orders, optionally filtered by status, newest first.
func (r *Repository) List(ctx context.Context, status Status, limit int) ([]Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var (
		rows pgx.Rows
		err  error
	)
	if status == "" {
		rows, err = r.pool.Query(ctx,
			`SELECT `+orderColumns+` FROM online_orders ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT `+orderColumns+` FROM online_orders WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
			status, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *order)
	}
	return out, rows.Err()
}

func (r *Repository) loadItems(ctx context.Context, orderID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, variant_id, quantity, unit_price, line_total
		FROM online_order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.VariantID,
			&item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// WithTx runs fn in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

// NextOrderNumber allocates ONL-{YYYYMMDD}-{seq} from a per-day counter row.
func (t *txRepo) NextOrderNumber(ctx context.Context, date time.Time) (string, error) {
	var seq int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_number_counters (order_date, seq)
		VALUES ($1, 1)
		ON CONFLICT (order_date) DO UPDATE SET seq = order_number_counters.seq + 1
		RETURNING seq`,
		date.Format("2006-01-02"),
	).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("allocate order number: %w", err)
	}
	return fmt.Sprintf("ONL-%s-%d", date.Format("20060102"), seq), nil
}

func (t *txRepo) InsertOrder(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO online_orders (
			order_number, source, customer_name, customer_phone, customer_email,
			subtotal, total_amount, status, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING id`,
		order.OrderNumber, order.Source, order.CustomerName, order.CustomerPhone,
		order.CustomerEmail, order.Subtotal, order.TotalAmount, order.Status, order.Notes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

func (t *txRepo) InsertItem(ctx context.Context, item Item) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO online_order_items (order_id, variant_id, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5)`,
		item.OrderID, item.VariantID, item.Quantity, item.UnitPrice, item.LineTotal)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, orderID int64) (*Order, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM online_orders WHERE id = $1 FOR UPDATE`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	rows, err := t.tx.Query(ctx, `
		SELECT id, order_id, variant_id, quantity, unit_price, line_total
		FROM online_order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.VariantID,
			&item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	return order, rows.Err()
}

func (t *txRepo) UpdateStatus(ctx context.Context, orderID int64, status Status, processedBy *int64) error {
	var err error
	if processedBy != nil {
		_, err = t.tx.Exec(ctx, `
			UPDATE online_orders
			SET status = $1, processed_by = $2, processed_at = now(), updated_at = now()
			WHERE id = $3`,
			status, *processedBy, orderID)
	} else {
		_, err = t.tx.Exec(ctx, `
			UPDATE online_orders SET status = $1, updated_at = now() WHERE id = $2`,
			status, orderID)
	}
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

func (t *txRepo) Stock() stock.TxStore {
	return stock.NewTxStore(t.tx)
}

func scanOrder(row pgx.Row) (*Order, error) {
	var order Order
	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.Source, &order.CustomerName,
		&order.CustomerPhone, &order.CustomerEmail, &order.Subtotal,
		&order.TotalAmount, &order.Status, &order.ProcessedBy, &order.ProcessedAt,
		&order.Notes, &order.CreatedAt, &order.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &order, nil
}
