package shift

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillworks/tillworks/internal/platform/db"
)

// TxRepository is the transactional surface used by clock-out and reconcile.
type TxRepository interface {
	GetOpenForUpdate(ctx context.Context, actorID int64) (*Shift, error)
	GetForUpdate(ctx context.Context, shiftID int64) (*Shift, error)
	// CashTotals sums CASH-type payments on completed sales attributed to the
	// shift: cashIn is the amounts applied to sales, cashOut the change
	// handed back.
	CashTotals(ctx context.Context, shiftID int64) (cashIn, cashOut int64, err error)
	Close(ctx context.Context, params CloseParams) error
	Reconcile(ctx context.Context, shiftID, approverID int64, notes string) error
}

// CloseParams carries the frozen financial fields written at clock-out.
type CloseParams struct {
	ShiftID        int64
	ClosingCash    int64
	ExpectedCash   int64
	Variance       int64
	VarianceStatus VarianceStatus
	Notes          string
}

// Repository persists shifts in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const shiftColumns = `id, actor_id, location_id, COALESCE(terminal, ''), opening_cash, closing_cash,
	expected_cash, cash_variance, COALESCE(variance_status, ''), status, COALESCE(notes, ''),
	approver_id, opened_at, closed_at, reconciled_at`

// Open inserts a new OPEN shift. A partial unique index on (actor_id) WHERE
// status = 'OPEN' makes the one-open-shift-per-actor check atomic against
// concurrent clock-ins.
func (r *Repository) Open(ctx context.Context, sh Shift) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO shifts (actor_id, location_id, terminal, opening_cash, status, opened_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id`,
		sh.ActorID, sh.LocationID, sh.Terminal, sh.OpeningCash, StatusOpen,
	).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, ErrShiftAlreadyOpen
		}
		return 0, fmt.Errorf("insert shift: %w", err)
	}
	return id, nil
}

// Get loads a shift by id.
func (r *Repository) Get(ctx context.Context, shiftID int64) (*Shift, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+shiftColumns+` FROM shifts WHERE id = $1`, shiftID)
	return scanShift(row)
}

// ListByLocation returns shifts at a location, newest first.
func (r *Repository) ListByLocation(ctx context.Context, locationID int64, limit int) ([]Shift, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+shiftColumns+` FROM shifts
		 WHERE location_id = $1
		 ORDER BY opened_at DESC
		 LIMIT $2`, locationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	defer rows.Close()

	var out []Shift
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sh)
	}
	return out, rows.Err()
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

func (t *txRepo) GetOpenForUpdate(ctx context.Context, actorID int64) (*Shift, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+shiftColumns+` FROM shifts
		 WHERE actor_id = $1 AND status = $2
		 FOR UPDATE`, actorID, StatusOpen)
	sh, err := scanShift(row)
	if errors.Is(err, ErrShiftNotFound) {
		return nil, ErrNoOpenShift
	}
	return sh, err
}

func (t *txRepo) GetForUpdate(ctx context.Context, shiftID int64) (*Shift, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+shiftColumns+` FROM shifts WHERE id = $1 FOR UPDATE`, shiftID)
	return scanShift(row)
}

func (t *txRepo) CashTotals(ctx context.Context, shiftID int64) (int64, int64, error) {
	var cashIn, cashOut int64
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(sp.amount), 0), COALESCE(SUM(sp.change_amount), 0)
		FROM sale_payments sp
		JOIN sales s ON s.id = sp.sale_id
		JOIN payment_methods pm ON pm.id = sp.payment_method_id
		WHERE s.shift_id = $1 AND s.status = $2 AND pm.kind = 'CASH'`,
		shiftID, "COMPLETED",
	).Scan(&cashIn, &cashOut)
	if err != nil {
		return 0, 0, fmt.Errorf("sum shift cash: %w", err)
	}
	return cashIn, cashOut, nil
}

func (t *txRepo) Close(ctx context.Context, params CloseParams) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE shifts
		SET status = $1, closing_cash = $2, expected_cash = $3, cash_variance = $4,
		    variance_status = $5, notes = $6, closed_at = now()
		WHERE id = $7 AND status = $8`,
		StatusClosed, params.ClosingCash, params.ExpectedCash, params.Variance,
		params.VarianceStatus, params.Notes, params.ShiftID, StatusOpen)
	if err != nil {
		return fmt.Errorf("close shift: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoOpenShift
	}
	return nil
}

func (t *txRepo) Reconcile(ctx context.Context, shiftID, approverID int64, notes string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE shifts
		SET status = $1, approver_id = $2,
		    notes = CASE WHEN $3 = '' THEN notes ELSE $3 END,
		    reconciled_at = now()
		WHERE id = $4 AND status = $5`,
		StatusReconciled, approverID, notes, shiftID, StatusClosed)
	if err != nil {
		return fmt.Errorf("reconcile shift: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrShiftNotClosed
	}
	return nil
}

func scanShift(row pgx.Row) (*Shift, error) {
	var sh Shift
	err := row.Scan(
		&sh.ID, &sh.ActorID, &sh.LocationID, &sh.Terminal, &sh.OpeningCash,
		&sh.ClosingCash, &sh.ExpectedCash, &sh.CashVariance, &sh.VarianceStatus,
		&sh.Status, &sh.Notes, &sh.ApproverID, &sh.OpenedAt, &sh.ClosedAt,
		&sh.ReconciledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrShiftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan shift: %w", err)
	}
	return &sh, nil
}
