// Package postgres implements the durable-log repositories against
// PostgreSQL using sqlx and lib/pq.
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

type opportunityRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewOpportunityRepo builds a store.OpportunityRepo backed by Postgres.
func NewOpportunityRepo(db *sqlx.DB, timeout time.Duration) store.OpportunityRepo {
	return &opportunityRepo{db: db, timeout: timeout}
}

func (r *opportunityRepo) Insert(ctx context.Context, o store.OpportunityRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO arbitrage_opportunities
			(id, detected_at, main_pair, main_venue, profit_margin, volume, status, cycle)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		o.ID, o.DetectedAt, o.MainPair, o.MainVenue, o.ProfitMargin, o.Volume, o.Status, o.CycleJSON)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate opportunity %s: %w", o.ID, err)
		}
		return fmt.Errorf("insert opportunity %s: %w", o.ID, err)
	}
	return nil
}

func (r *opportunityRepo) UpdateStatus(ctx context.Context, id, status string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`UPDATE arbitrage_opportunities SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update opportunity status %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update opportunity status %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("opportunity %s not found", id)
	}
	return nil
}

func (r *opportunityRepo) GetByID(ctx context.Context, id string) (*store.OpportunityRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rec store.OpportunityRecord
	row := r.db.QueryRowxContext(ctx, `
		SELECT id, detected_at, main_pair, main_venue, profit_margin, volume, status, cycle, created_at
		FROM arbitrage_opportunities WHERE id = $1`, id)
	if err := scanOpportunity(row, &rec); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get opportunity %s: %w", id, err)
	}
	return &rec, nil
}

func (r *opportunityRepo) ListByStatus(ctx context.Context, status string, limit int) ([]store.OpportunityRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT id, detected_at, main_pair, main_venue, profit_margin, volume, status, cycle, created_at
		FROM arbitrage_opportunities WHERE status = $1 ORDER BY detected_at DESC LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list opportunities by status %s: %w", status, err)
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

func (r *opportunityRepo) ListRecent(ctx context.Context, tr store.TimeRange, limit int) ([]store.OpportunityRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT id, detected_at, main_pair, main_venue, profit_margin, volume, status, cycle, created_at
		FROM arbitrage_opportunities
		WHERE detected_at >= $1 AND detected_at <= $2
		ORDER BY detected_at DESC LIMIT $3`, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent opportunities: %w", err)
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanOpportunity(row scannable, rec *store.OpportunityRecord) error {
	return row.Scan(&rec.ID, &rec.DetectedAt, &rec.MainPair, &rec.MainVenue,
		&rec.ProfitMargin, &rec.Volume, &rec.Status, &rec.CycleJSON, &rec.CreatedAt)
}

func scanOpportunities(rows *sqlx.Rows) ([]store.OpportunityRecord, error) {
	var out []store.OpportunityRecord
	for rows.Next() {
		var rec store.OpportunityRecord
		if err := scanOpportunity(rows, &rec); err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate opportunities: %w", err)
	}
	return out, nil
}
