package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/arbengine/internal/arb/store"
)

type tradesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewTradesRepo builds a store.TradesRepo backed by Postgres.
func NewTradesRepo(db *sqlx.DB, timeout time.Duration) store.TradesRepo {
	return &tradesRepo{db: db, timeout: timeout}
}

func (r *tradesRepo) Insert(ctx context.Context, t store.TradeRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO trades
			(id, opportunity_id, venue, symbol, side, order_id, planned_price, filled_price, amount, filled_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.OpportunityID, t.Venue, t.Symbol, t.Side, t.OrderID,
		t.PlannedPrice, t.FilledPrice, t.Amount, t.FilledAmount, t.Status)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate trade %s: %w", t.ID, err)
		}
		return fmt.Errorf("insert trade %s: %w", t.ID, err)
	}
	return nil
}

func (r *tradesRepo) ListByOpportunity(ctx context.Context, opportunityID string) ([]store.TradeRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT id, opportunity_id, venue, symbol, side, order_id, planned_price, filled_price, amount, filled_amount, status, created_at
		FROM trades WHERE opportunity_id = $1 ORDER BY created_at ASC`, opportunityID)
	if err != nil {
		return nil, fmt.Errorf("list trades for opportunity %s: %w", opportunityID, err)
	}
	defer rows.Close()

	var out []store.TradeRecord
	for rows.Next() {
		var t store.TradeRecord
		if err := rows.Scan(&t.ID, &t.OpportunityID, &t.Venue, &t.Symbol, &t.Side, &t.OrderID,
			&t.PlannedPrice, &t.FilledPrice, &t.Amount, &t.FilledAmount, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *tradesRepo) GetByOrderID(ctx context.Context, orderID string) (*store.TradeRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var t store.TradeRecord
	row := r.db.QueryRowxContext(ctx, `
		SELECT id, opportunity_id, venue, symbol, side, order_id, planned_price, filled_price, amount, filled_amount, status, created_at
		FROM trades WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID)
	err := row.Scan(&t.ID, &t.OpportunityID, &t.Venue, &t.Symbol, &t.Side, &t.OrderID,
		&t.PlannedPrice, &t.FilledPrice, &t.Amount, &t.FilledAmount, &t.Status, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get trade by order id %s: %w", orderID, err)
	}
	return &t, nil
}

func (r *tradesRepo) CountByVenue(ctx context.Context, tr store.TimeRange) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT venue, COUNT(*) FROM trades
		WHERE created_at >= $1 AND created_at <= $2
		GROUP BY venue ORDER BY venue`, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("count trades by venue: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var venue string
		var n int64
		if err := rows.Scan(&venue, &n); err != nil {
			return nil, fmt.Errorf("scan venue count: %w", err)
		}
		counts[venue] = n
	}
	return counts, rows.Err()
}
