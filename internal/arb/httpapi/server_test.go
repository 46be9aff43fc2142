package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/arbengine/internal/arb/approval"
	"github.com/sawpanic/arbengine/internal/arb/domain"
	"github.com/sawpanic/arbengine/internal/arb/store"
)

type fakeOpportunities struct {
	records []store.OpportunityRecord
}

func (f *fakeOpportunities) Insert(ctx context.Context, o store.OpportunityRecord) error { return nil }
func (f *fakeOpportunities) UpdateStatus(ctx context.Context, id, status string) error   { return nil }
func (f *fakeOpportunities) GetByID(ctx context.Context, id string) (*store.OpportunityRecord, error) {
	for _, r := range f.records {
		if r.ID == id {
			rec := r
			return &rec, nil
		}
	}
	return nil, nil
}
func (f *fakeOpportunities) ListByStatus(ctx context.Context, status string, limit int) ([]store.OpportunityRecord, error) {
	return f.records, nil
}
func (f *fakeOpportunities) ListRecent(ctx context.Context, tr store.TimeRange, limit int) ([]store.OpportunityRecord, error) {
	return f.records, nil
}

type fakeTrades struct{}

func (f fakeTrades) Insert(ctx context.Context, t store.TradeRecord) error { return nil }
func (f fakeTrades) ListByOpportunity(ctx context.Context, opportunityID string) ([]store.TradeRecord, error) {
	return nil, nil
}
func (f fakeTrades) GetByOrderID(ctx context.Context, orderID string) (*store.TradeRecord, error) {
	return nil, nil
}
func (f fakeTrades) CountByVenue(ctx context.Context, tr store.TimeRange) (map[string]int64, error) {
	return nil, nil
}

type fakeTransfers struct{}

func (f fakeTransfers) Insert(ctx context.Context, t store.TransferRecord) error      { return nil }
func (f fakeTransfers) UpdateStatus(ctx context.Context, id, status string) error     { return nil }
func (f fakeTransfers) GetByID(ctx context.Context, id string) (*store.TransferRecord, error) {
	return nil, nil
}
func (f fakeTransfers) ListPending(ctx context.Context) ([]store.TransferRecord, error) {
	return []store.TransferRecord{{ID: "t1"}}, nil
}

type fakeMetrics struct{}

func (f fakeMetrics) Insert(ctx context.Context, m store.MetricRecord) error { return nil }
func (f fakeMetrics) ListRecent(ctx context.Context, service, name string, limit int) ([]store.MetricRecord, error) {
	return nil, nil
}

type fakeHealth struct{}

func (fakeHealth) Status(venue domain.Venue) (domain.VenueStatus, bool) {
	return domain.VenueStatus{Venue: venue, State: domain.VenueStateHealthy}, true
}
func (fakeHealth) All() []domain.VenueStatus {
	return []domain.VenueStatus{{Venue: "kraken", State: domain.VenueStateHealthy}}
}

func newTestServer() *Server {
	repo := store.Repository{
		Opportunities: &fakeOpportunities{records: []store.OpportunityRecord{{ID: "opp-1", Status: "detected"}}},
		Trades:        fakeTrades{},
		Transfers:     fakeTransfers{},
		Metrics:       fakeMetrics{},
	}
	manager := approval.NewManager(approval.NewInMemoryChannel(approval.DecisionApprove))
	return New(DefaultConfig(), repo, fakeHealth{}, manager, zerolog.Nop())
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "kraken")
}

func TestHandleOpportunity_NotFound(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/opportunities/missing", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleOpportunity_Found(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/opportunities/opp-1", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "opp-1")
}

func TestHandleDecide_RequiresPendingApproval(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/approvals/not-pending", strings.NewReader(`{"decision":"approve"}`))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlePendingTransfers(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/transfers/pending", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "t1")
}
