package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/arbengine/internal/arb/store"
)

type metricsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewMetricsRepo builds a store.MetricsRepo backed by Postgres.
func NewMetricsRepo(db *sqlx.DB, timeout time.Duration) store.MetricsRepo {
	return &metricsRepo{db: db, timeout: timeout}
}

func (r *metricsRepo) Insert(ctx context.Context, m store.MetricRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO system_metrics (service, name, value, ts)
		VALUES ($1, $2, $3, $4)`, m.Service, m.Name, m.Value, m.Timestamp)
	if err != nil {
		return fmt.Errorf("insert metric %s/%s: %w", m.Service, m.Name, err)
	}
	return nil
}

func (r *metricsRepo) ListRecent(ctx context.Context, service, name string, limit int) ([]store.MetricRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT service, name, value, ts FROM system_metrics
		WHERE service = $1 AND name = $2
		ORDER BY ts DESC LIMIT $3`, service, name, limit)
	if err != nil {
		return nil, fmt.Errorf("list metrics %s/%s: %w", service, name, err)
	}
	defer rows.Close()

	var out []store.MetricRecord
	for rows.Next() {
		var m store.MetricRecord
		if err := rows.Scan(&m.Service, &m.Name, &m.Value, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
