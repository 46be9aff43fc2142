package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/arbengine/internal/arb/domain"
)

func baseConfig() Config {
	return Config{
		MaxBidAskSpread:     0.004,
		VolatilityThreshold: 0.03,
		VolatilityWindow:    300 * time.Second,
		MinProfitMargin:     0.003,
		SlippageAllowance:   0.0005,
		MaxCapitalPerTrade:  0.1,
		DefaultVolumeStub:   1000,
	}
}

func TestCheckLiquidity_RejectsWideSpread(t *testing.T) {
	f := New(baseConfig(), nil)
	t1 := domain.TickerSnapshot{Bid: 100, Ask: 101}
	assert.Equal(t, RejectSpread, f.CheckLiquidity(t1))

	t2 := domain.TickerSnapshot{Bid: 100, Ask: 100.1}
	assert.Equal(t, RejectNone, f.CheckLiquidity(t2))
}

func TestCheckVolatility_RejectsLargeSwing(t *testing.T) {
	f := New(baseConfig(), nil)
	pair := domain.Pair{Base: "BTC", Quote: "USD"}
	now := time.Now()

	f.Observe(domain.TickerSnapshot{Venue: "kraken", Pair: pair, Bid: 9900, Ask: 9910}, now)
	f.Observe(domain.TickerSnapshot{Venue: "kraken", Pair: pair, Bid: 10300, Ask: 10310}, now.Add(time.Second))

	assert.Equal(t, RejectVolatility, f.CheckVolatility("kraken", pair))
}

func TestCheckVolatility_PassesWithoutHistory(t *testing.T) {
	f := New(baseConfig(), nil)
	assert.Equal(t, RejectNone, f.CheckVolatility("kraken", domain.Pair{Base: "BTC", Quote: "USD"}))
}

func TestCheckProfitMargin(t *testing.T) {
	f := New(baseConfig(), nil)

	profitable := domain.Cycle{Edges: []domain.Edge{
		{From: "USD", To: "BTC", Rate: 1.02},
		{From: "BTC", To: "USD", Rate: 1.0},
	}}
	margin, reason := f.CheckProfitMargin(profitable)
	assert.Equal(t, RejectNone, reason)
	assert.Greater(t, margin, 0.0)

	unprofitable := domain.Cycle{Edges: []domain.Edge{
		{From: "USD", To: "BTC", Rate: 1.0001},
		{From: "BTC", To: "USD", Rate: 1.0},
	}}
	_, reason = f.CheckProfitMargin(unprofitable)
	assert.Equal(t, RejectProfitMargin, reason)
}

func TestSelectMainPair_PrefersUSDLeg(t *testing.T) {
	cycle := domain.Cycle{Edges: []domain.Edge{
		{From: "BTC", To: "ETH", Base: "ETH", Quote: "BTC", Venue: "kraken"},
		{From: "ETH", To: "USD", Base: "ETH", Quote: "USD", Venue: "kraken"},
		{From: "USD", To: "BTC", Base: "BTC", Quote: "USD", Venue: "kraken"},
	}}
	pair, venue, ok := SelectMainPair(cycle)
	require.True(t, ok)
	assert.Equal(t, domain.Currency("USD"), pair.Quote)
	assert.Equal(t, domain.Venue("kraken"), venue)
}

type stubBalances struct {
	free float64
	ok   bool
}

func (s stubBalances) FreeBalance(venue domain.Venue, currency domain.Currency) (float64, bool) {
	return s.free, s.ok
}

func TestEstimateVolume_UsesBalanceWhenAvailable(t *testing.T) {
	f := New(baseConfig(), stubBalances{free: 5000, ok: true})
	assert.Equal(t, 500.0, f.EstimateVolume("USD", "kraken"))
}

func TestEstimateVolume_FallsBackToStub(t *testing.T) {
	f := New(baseConfig(), stubBalances{ok: false})
	assert.Equal(t, 1000.0, f.EstimateVolume("USD", "kraken"))
}
