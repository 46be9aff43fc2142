package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/arbengine/internal/arb/store"
)

type transfersRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewTransfersRepo builds a store.TransfersRepo backed by Postgres.
func NewTransfersRepo(db *sqlx.DB, timeout time.Duration) store.TransfersRepo {
	return &transfersRepo{db: db, timeout: timeout}
}

func (r *transfersRepo) Insert(ctx context.Context, t store.TransferRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fund_transfers
			(id, from_venue, to_venue, currency, amount, network, fee, withdraw_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.FromVenue, t.ToVenue, t.Currency, t.Amount, t.Network, t.Fee, t.WithdrawID, t.Status)
	if err != nil {
		return fmt.Errorf("insert transfer %s: %w", t.ID, err)
	}
	return nil
}

func (r *transfersRepo) UpdateStatus(ctx context.Context, id, status string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`UPDATE fund_transfers SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update transfer status %s: %w", id, err)
	}
	return nil
}

func (r *transfersRepo) GetByID(ctx context.Context, id string) (*store.TransferRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var t store.TransferRecord
	row := r.db.QueryRowxContext(ctx, `
		SELECT id, from_venue, to_venue, currency, amount, network, fee, withdraw_id, status, created_at, updated_at
		FROM fund_transfers WHERE id = $1`, id)
	err := row.Scan(&t.ID, &t.FromVenue, &t.ToVenue, &t.Currency, &t.Amount, &t.Network,
		&t.Fee, &t.WithdrawID, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get transfer %s: %w", id, err)
	}
	return &t, nil
}

func (r *transfersRepo) ListPending(ctx context.Context) ([]store.TransferRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT id, from_venue, to_venue, currency, amount, network, fee, withdraw_id, status, created_at, updated_at
		FROM fund_transfers WHERE status IN ('pending', 'sent') ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pending transfers: %w", err)
	}
	defer rows.Close()

	var out []store.TransferRecord
	for rows.Next() {
		var t store.TransferRecord
		if err := rows.Scan(&t.ID, &t.FromVenue, &t.ToVenue, &t.Currency, &t.Amount, &t.Network,
			&t.Fee, &t.WithdrawID, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
