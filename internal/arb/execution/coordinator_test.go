package execution

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/arbengine/internal/arb/domain"
	arbmetrics "github.com/sawpanic/arbengine/internal/arb/metrics"
	"github.com/sawpanic/arbengine/internal/arb/venue"
)

type fakeAdapter struct {
	name        domain.Venue
	bid, ask    float64
	failPlace   bool
	neverFills  bool
	filledPrice float64
}

func (f *fakeAdapter) Name() domain.Venue { return f.name }
func (f *fakeAdapter) FetchTicker(ctx context.Context, pair domain.Pair) (domain.TickerSnapshot, error) {
	return domain.TickerSnapshot{Venue: f.name, Pair: pair, Bid: f.bid, Ask: f.ask, Timestamp: time.Now()}, nil
}
func (f *fakeAdapter) FetchOrderBook(ctx context.Context, pair domain.Pair) (domain.OrderBookSnapshot, error) {
	return domain.OrderBookSnapshot{}, nil
}
func (f *fakeAdapter) FetchBalance(ctx context.Context, c domain.Currency) (domain.Balance, error) {
	return domain.Balance{}, nil
}
func (f *fakeAdapter) PlaceOrder(ctx context.Context, req venue.OrderRequest) (string, error) {
	if f.failPlace {
		return "", assert.AnError
	}
	return "order-1", nil
}
func (f *fakeAdapter) FetchOrder(ctx context.Context, orderID string) (venue.OrderStatus, error) {
	if f.neverFills {
		return venue.OrderStatus{OrderID: orderID, Filled: false}, nil
	}
	return venue.OrderStatus{OrderID: orderID, Filled: true, FilledAmount: 1, FilledPrice: f.filledPrice}, nil
}
func (f *fakeAdapter) CancelOrder(ctx context.Context, orderID string) error { return nil }
func (f *fakeAdapter) Withdraw(ctx context.Context, req venue.WithdrawalRequest) (string, error) {
	return "", nil
}
func (f *fakeAdapter) DepositAddress(ctx context.Context, c domain.Currency, network string) (string, error) {
	return "", nil
}
func (f *fakeAdapter) WithdrawalFee(ctx context.Context, c domain.Currency, network string) (float64, bool, error) {
	return 0, false, nil
}
func (f *fakeAdapter) FetchWithdrawalStatus(ctx context.Context, id string) (domain.TransferStatus, error) {
	return domain.TransferUnknown, nil
}
func (f *fakeAdapter) Health(ctx context.Context) error { return nil }

type recordingSink struct {
	trades []domain.Trade
}

func (s *recordingSink) Record(ctx context.Context, t domain.Trade) error {
	s.trades = append(s.trades, t)
	return nil
}

func testMetrics() *arbmetrics.Metrics {
	return arbmetrics.New(prometheus.NewRegistry())
}

func TestCoordinator_ExecutesAllLegs(t *testing.T) {
	kraken := &fakeAdapter{name: "kraken", bid: 100, ask: 100.01, filledPrice: 100}
	venues := map[domain.Venue]venue.Adapter{"kraken": kraken}
	sink := &recordingSink{}

	c := New(Config{PriceDriftTolerance: 0.005, FillWaitTimeout: time.Second, FillPollInterval: time.Millisecond}, venues, sink, testMetrics(), zerolog.Nop())

	opp := &domain.Opportunity{
		ID:     "opp-1",
		Status: domain.OpportunityPendingApproval,
		Volume: 1,
		Cycle: domain.Cycle{Edges: []domain.Edge{
			{From: "USD", To: "BTC", Base: "BTC", Quote: "USD", Venue: "kraken"},
			{From: "BTC", To: "USD", Base: "BTC", Quote: "USD", Venue: "kraken"},
		}},
	}

	require.NoError(t, c.Execute(context.Background(), opp))
	assert.Equal(t, domain.OpportunityCompleted, opp.Status)
	assert.Len(t, sink.trades, 4) // open+filled per leg, 2 legs
}

func TestCoordinator_RollsBackOnDriftedLeg(t *testing.T) {
	kraken := &fakeAdapter{name: "kraken", bid: 100, ask: 200, filledPrice: 100} // huge ask triggers drift
	venues := map[domain.Venue]venue.Adapter{"kraken": kraken}
	sink := &recordingSink{}

	c := New(Config{PriceDriftTolerance: 0.005, FillWaitTimeout: time.Second, FillPollInterval: time.Millisecond}, venues, sink, testMetrics(), zerolog.Nop())

	opp := &domain.Opportunity{
		ID:     "opp-2",
		Status: domain.OpportunityPendingApproval,
		Volume: 1,
		Cycle: domain.Cycle{Edges: []domain.Edge{
			{From: "USD", To: "BTC", Base: "BTC", Quote: "USD", Venue: "kraken"},
		}},
	}

	err := c.Execute(context.Background(), opp)
	assert.Error(t, err)
	assert.Equal(t, domain.OpportunityFailed, opp.Status)
}
