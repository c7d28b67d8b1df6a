package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Record is one row of the payments table.
type Record struct {
	ChargeID         string    `db:"charge_id"`
	ProviderChargeID string    `db:"provider_charge_id"`
	UserID           int64     `db:"user_id"`
	OptionID         string    `db:"option_id"`
	Currency         string    `db:"currency"`
	Amount           int       `db:"amount"`
	Payload          string    `db:"payload"`
	CreatedAt        time.Time `db:"created_at"`
}

// Repository stores confirmed payments.
type Repository interface {
	// Insert stores rec; inserted is false when the charge id already exists.
	Insert(ctx context.Context, rec Record) (inserted bool, err error)
	ByUser(ctx context.Context, userID int64) ([]Record, error)
}

// SQLRepo implements Repository with sqlx.
type SQLRepo struct {
	db *sqlx.DB
}

// NewSQLRepo stores payments through db.
func NewSQLRepo(db *sqlx.DB) *SQLRepo {
	return &SQLRepo{db: db}
}

const insertPayment = `INSERT INTO payments
	(charge_id, provider_charge_id, user_id, option_id, currency, amount, payload)
VALUES
	(:charge_id, :provider_charge_id, :user_id, :option_id, :currency, :amount, :payload)
ON CONFLICT (charge_id) DO NOTHING`

// Insert saves rec and reports false when its charge id was already recorded.
func (r *SQLRepo) Insert(ctx context.Context, rec Record) (bool, error) {
	res, err := r.db.NamedExecContext(ctx, insertPayment, rec)
	if err != nil {
		return false, fmt.Errorf("insert payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert payment rows: %w", err)
	}
	return n == 1, nil
}

// ByUser lists the payments of userID, oldest first.
func (r *SQLRepo) ByUser(ctx context.Context, userID int64) ([]Record, error) {
	var out []Record
	q := r.db.Rebind(`SELECT charge_id, provider_charge_id, user_id, option_id, currency, amount, payload, created_at
FROM payments WHERE user_id = ? ORDER BY created_at, charge_id`)
	if err := r.db.SelectContext(ctx, &out, q, userID); err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	return out, nil
}
