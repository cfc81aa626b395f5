package shared

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// ErrApproverDenied indicates the supplied PIN does not grant manager authority.
var ErrApproverDenied = errors.New("approver authority denied")

// ApproverVerifier resolves a manager PIN to an approver id. Verification
// happens at the invocation surface; engine operations receive the resolved
// approver id as a precondition and never re-check the PIN.
type ApproverVerifier struct {
	pool *pgxpool.Pool
}

// NewApproverVerifier constructs ApproverVerifier.
func NewApproverVerifier(pool *pgxpool.Pool) *ApproverVerifier {
	return &ApproverVerifier{pool: pool}
}

// Verify compares pin against the stored hash for any manager at the location
// and returns the matching approver id.
func (v *ApproverVerifier) Verify(ctx context.Context, locationID int64, pin string) (int64, error) {
	if v == nil {
		return 0, errors.New("approver verifier not initialised")
	}
	if pin == "" {
		return 0, ErrApproverDenied
	}
	rows, err := v.pool.Query(ctx, `SELECT id, pin_hash FROM users
WHERE role='MANAGER' AND (location_id=$1 OR location_id IS NULL) AND active`, locationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrApproverDenied
		}
		return 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return 0, err
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil {
			return id, nil
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return 0, ErrApproverDenied
}
