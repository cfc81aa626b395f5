package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillworks/tillworks/internal/stock"
)

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service. Stock gives
// access to the ledger inside the same transaction so a sale and its
// deductions commit or roll back as one unit.
type TxRepository interface {
	NextSaleNumber(ctx context.Context, locationID int64, date time.Time) (string, error)
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	InsertPayment(ctx context.Context, payment Payment) error
	UpdateSaleStatus(ctx context.Context, saleID int64, status Status, voidedBy int64, reason string) error
	IncrementCustomerTotals(ctx context.Context, customerID, amount int64) error
	DeleteParked(ctx context.Context, saleID int64) error
	Stock() stock.TxStore
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a read-committed transaction. Writers
// touching the same rows serialize through the FOR UPDATE locks taken in fn.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// GetSale loads a sale with its items and payments.
func (r *Repository) GetSale(ctx context.Context, saleID int64) (*Sale, error) {
	if r == nil {
		return nil, errors.New("sales repository not initialised")
	}
	var s Sale
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, sale_number, location_id, shift_id, customer_id, actor_id, subtotal, discount_amount, discount_reason, tax_amount, total_amount, status, is_parked, notes, voided_by, void_reason, voided_at, created_at, updated_at
FROM sales WHERE id=$1`, saleID).Scan(
		&s.ID, &s.SaleNumber, &s.LocationID, &s.ShiftID, &s.CustomerID, &s.ActorID,
		&s.Subtotal, &s.DiscountAmount, &s.DiscountReason, &s.TaxAmount, &s.TotalAmount,
		&status, &s.IsParked, &s.Notes, &s.VoidedBy, &s.VoidReason, &s.VoidedAt,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	s.Status = Status(status)

	items, err := r.listItems(ctx, saleID)
	if err != nil {
		return nil, err
	}
	s.Items = items

	payments, err := r.listPayments(ctx, saleID)
	if err != nil {
		return nil, err
	}
	s.Payments = payments
	return &s, nil
}

// ListParked returns parked drafts for a location, oldest first.
func (r *Repository) ListParked(ctx context.Context, locationID int64) ([]Sale, error) {
	if r == nil {
		return nil, errors.New("sales repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, sale_number, location_id, shift_id, customer_id, actor_id, subtotal, discount_amount, discount_reason, tax_amount, total_amount, status, is_parked, notes, created_at, updated_at
FROM sales WHERE location_id=$1 AND status='PARKED' ORDER BY created_at ASC`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sales := []Sale{}
	for rows.Next() {
		var s Sale
		var status string
		if err := rows.Scan(&s.ID, &s.SaleNumber, &s.LocationID, &s.ShiftID, &s.CustomerID, &s.ActorID,
			&s.Subtotal, &s.DiscountAmount, &s.DiscountReason, &s.TaxAmount, &s.TotalAmount,
			&status, &s.IsParked, &s.Notes, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Status = Status(status)
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

// GetCustomerContact reads the receipt contact for a customer. Used after
// commit for the best-effort SMS enqueue.
func (r *Repository) GetCustomerContact(ctx context.Context, customerID int64) (phone string, optedIn bool, err error) {
	if r == nil {
		return "", false, errors.New("sales repository not initialised")
	}
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(phone, ''), sms_opt_in FROM customers WHERE id=$1`, customerID).Scan(&phone, &optedIn)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	return phone, optedIn, err
}

func (r *Repository) listItems(ctx context.Context, saleID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, variant_id, quantity, unit_price, original_price, discount_amount, line_total
FROM sale_items WHERE sale_id=$1 ORDER BY id ASC`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.SaleID, &item.VariantID, &item.Quantity, &item.UnitPrice, &item.OriginalPrice, &item.DiscountAmount, &item.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) listPayments(ctx context.Context, saleID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, payment_method_id, amount, tendered_amount, change_amount, reference_number
FROM sale_payments WHERE sale_id=$1 ORDER BY id ASC`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	payments := []Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.PaymentMethodID, &p.Amount, &p.TenderedAmount, &p.ChangeAmount, &p.ReferenceNumber); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// NextSaleNumber allocates the next per-location per-day sequence and formats
// {locationCode}-{YYYYMMDD}-{seq}. The counter row upsert serializes
// concurrent allocations on the same day.
func (r *txRepository) NextSaleNumber(ctx context.Context, locationID int64, date time.Time) (string, error) {
	var code string
	if err := r.tx.QueryRow(ctx, `SELECT code FROM locations WHERE id=$1`, locationID).Scan(&code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("location %d not found", locationID)
		}
		return "", err
	}
	day := date.Format("2006-01-02")
	var seq int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_number_counters (location_id, sale_date, seq)
VALUES ($1, $2, 1)
ON CONFLICT (location_id, sale_date) DO UPDATE SET seq = sale_number_counters.seq + 1
RETURNING seq`, locationID, day).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%d", code, date.Format("20060102"), seq), nil
}

func (r *txRepository) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sales (sale_number, location_id, shift_id, customer_id, actor_id, subtotal, discount_amount, discount_reason, tax_amount, total_amount, status, is_parked, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
RETURNING id`,
		sale.SaleNumber, sale.LocationID, sale.ShiftID, sale.CustomerID, sale.ActorID,
		sale.Subtotal, sale.DiscountAmount, sale.DiscountReason, sale.TaxAmount, sale.TotalAmount,
		string(sale.Status), sale.IsParked, sale.Notes).Scan(&id)
	return id, err
}

func (r *txRepository) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_items (sale_id, variant_id, quantity, unit_price, original_price, discount_amount, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`, item.SaleID, item.VariantID, item.Quantity, item.UnitPrice, item.OriginalPrice, item.DiscountAmount, item.LineTotal).Scan(&id)
	return id, err
}

func (r *txRepository) InsertPayment(ctx context.Context, payment Payment) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO sale_payments (sale_id, payment_method_id, amount, tendered_amount, change_amount, reference_number)
VALUES ($1, $2, $3, $4, $5, $6)`, payment.SaleID, payment.PaymentMethodID, payment.Amount, payment.TenderedAmount, payment.ChangeAmount, payment.ReferenceNumber)
	return err
}

func (r *txRepository) UpdateSaleStatus(ctx context.Context, saleID int64, status Status, voidedBy int64, reason string) error {
	var tag pgconn.CommandTag
	var err error
	if status == StatusVoided {
		// The predicate makes a concurrent double void lose the race:
		// whichever transaction commits second matches zero rows.
		tag, err = r.tx.Exec(ctx, `UPDATE sales SET status=$2, voided_by=$3, void_reason=$4, voided_at=NOW(), updated_at=NOW() WHERE id=$1 AND status=$5`, saleID, string(status), voidedBy, reason, string(StatusCompleted))
		if err == nil && tag.RowsAffected() == 0 {
			return ErrCannotVoid
		}
	} else {
		tag, err = r.tx.Exec(ctx, `UPDATE sales SET status=$2, updated_at=NOW() WHERE id=$1`, saleID, string(status))
		if err == nil && tag.RowsAffected() == 0 {
			return ErrSaleNotFound
		}
	}
	return err
}

func (r *txRepository) IncrementCustomerTotals(ctx context.Context, customerID, amount int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE customers SET total_spent = total_spent + $2, visit_count = visit_count + 1, last_visit_at = NOW() WHERE id=$1`, customerID, amount)
	return err
}

// DeleteParked removes a parked draft and its items. The status is checked
// under a row lock so a committed sale can never be deleted through this
// path, whatever id the client supplies.
func (r *txRepository) DeleteParked(ctx context.Context, saleID int64) error {
	var status string
	err := r.tx.QueryRow(ctx, `SELECT status FROM sales WHERE id=$1 FOR UPDATE`, saleID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSaleNotFound
	}
	if err != nil {
		return err
	}
	if Status(status) != StatusParked {
		return ErrNotParked
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM sale_items WHERE sale_id=$1`, saleID); err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `DELETE FROM sales WHERE id=$1`, saleID)
	return err
}

func (r *txRepository) Stock() stock.TxStore {
	return stock.NewTxStore(r.tx)
}
