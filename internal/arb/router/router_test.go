package router

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

type stubAdapter struct {
	name       domain.Venue
	free       float64
	withdrawID string
	fee        float64
	feeOK      bool
	address    string
	status     domain.TransferStatus
}

func (s *stubAdapter) Name() domain.Venue { return s.name }
func (s *stubAdapter) FetchTicker(ctx context.Context, pair domain.Pair) (domain.TickerSnapshot, error) {
	return domain.TickerSnapshot{}, nil
}
func (s *stubAdapter) FetchOrderBook(ctx context.Context, pair domain.Pair) (domain.OrderBookSnapshot, error) {
	return domain.OrderBookSnapshot{}, nil
}
func (s *stubAdapter) FetchBalance(ctx context.Context, c domain.Currency) (domain.Balance, error) {
	return domain.Balance{Venue: s.name, Currency: c, Free: s.free}, nil
}
func (s *stubAdapter) PlaceOrder(ctx context.Context, req venue.OrderRequest) (string, error) {
	return "", nil
}
func (s *stubAdapter) FetchOrder(ctx context.Context, orderID string) (venue.OrderStatus, error) {
	return venue.OrderStatus{}, nil
}
func (s *stubAdapter) CancelOrder(ctx context.Context, orderID string) error { return nil }
func (s *stubAdapter) Withdraw(ctx context.Context, req venue.WithdrawalRequest) (string, error) {
	return s.withdrawID, nil
}
func (s *stubAdapter) DepositAddress(ctx context.Context, c domain.Currency, network string) (string, error) {
	return s.address, nil
}
func (s *stubAdapter) WithdrawalFee(ctx context.Context, c domain.Currency, network string) (float64, bool, error) {
	return s.fee, s.feeOK, nil
}
func (s *stubAdapter) FetchWithdrawalStatus(ctx context.Context, id string) (domain.TransferStatus, error) {
	return s.status, nil
}
func (s *stubAdapter) Health(ctx context.Context) error { return nil }

func testMetrics() *arbmetrics.Metrics {
	return arbmetrics.New(prometheus.NewRegistry())
}

func TestRouter_ResolveFee_PrefersAdapterFee(t *testing.T) {
	r := &Router{cfg: Config{NetworkFees: map[string]float64{"BTC:bitcoin": 0.0005}}}
	adapter := &stubAdapter{fee: 0.0001, feeOK: true}
	fee, err := r.resolveFee(context.Background(), adapter, "BTC", "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 0.0001, fee)
}

func TestRouter_ResolveFee_FallsBackToStaticTable(t *testing.T) {
	r := &Router{cfg: Config{NetworkFees: map[string]float64{"BTC:bitcoin": 0.0005}}}
	adapter := &stubAdapter{feeOK: false}
	fee, err := r.resolveFee(context.Background(), adapter, "BTC", "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 0.0005, fee)
}

func TestRouter_PreferredNetwork(t *testing.T) {
	r := &Router{cfg: Config{PreferredNetworks: map[domain.Currency]string{"USDT": "trc20"}}}
	assert.Equal(t, "trc20", r.preferredNetwork("USDT"))
	assert.Equal(t, "", r.preferredNetwork("BTC"))
}

func TestRouter_Transfer_RejectsUnknownVenue(t *testing.T) {
	venues := map[domain.Venue]venue.Adapter{}
	r := New(Config{LockTTL: time.Second, MaxTransferTime: time.Second, MonitorInterval: 10 * time.Millisecond}, venues, nil, nil, testMetrics(), zerolog.Nop())

	_, err := r.Transfer(context.Background(), "kraken", "binance", "BTC", 1.0)
	assert.Error(t, err)
}
