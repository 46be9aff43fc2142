package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/arbengine/internal/arb/store"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock
}

func TestOpportunityRepo_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	repo := NewOpportunityRepo(db, 2*time.Second)

	rec := store.OpportunityRecord{
		ID:           "opp-1",
		DetectedAt:   time.Now(),
		MainPair:     "BTC/USD",
		MainVenue:    "kraken",
		ProfitMargin: 0.004,
		Volume:       1000,
		Status:       "detected",
		CycleJSON:    []byte(`{}`),
	}

	mock.ExpectExec("INSERT INTO arbitrage_opportunities").
		WithArgs(rec.ID, rec.DetectedAt, rec.MainPair, rec.MainVenue, rec.ProfitMargin, rec.Volume, rec.Status, rec.CycleJSON).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Insert(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpportunityRepo_UpdateStatus_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	repo := NewOpportunityRepo(db, 2*time.Second)

	mock.ExpectExec("UPDATE arbitrage_opportunities").
		WithArgs("missing", "executing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", "executing")
	assert.Error(t, err)
}

func TestOpportunityRepo_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	repo := NewOpportunityRepo(db, 2*time.Second)

	mock.ExpectQuery("SELECT id, detected_at").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "detected_at", "main_pair", "main_venue", "profit_margin", "volume", "status", "cycle", "created_at",
		}))

	rec, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
