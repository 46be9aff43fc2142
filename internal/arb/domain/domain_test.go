package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickerSnapshot_Mid(t *testing.T) {
	ts := TickerSnapshot{Bid: 100, Ask: 102}
	assert.Equal(t, 101.0, ts.Mid())
}

func TestTickerSnapshot_Spread(t *testing.T) {
	ts := TickerSnapshot{Bid: 99, Ask: 100}
	assert.InDelta(t, 0.01, ts.Spread(), 1e-9)
}

func TestPriceHistory_EvictsOldPoints(t *testing.T) {
	h := NewPriceHistory(10 * time.Second)
	now := time.Now()
	h.Add(100, now)
	h.Add(110, now.Add(20*time.Second))

	assert.Equal(t, 1, h.Len())
	min, max, ok := h.MinMax()
	require.True(t, ok)
	assert.Equal(t, 110.0, min)
	assert.Equal(t, 110.0, max)
}

func TestPriceHistory_Volatility(t *testing.T) {
	h := NewPriceHistory(time.Minute)
	now := time.Now()
	h.Add(100, now)
	h.Add(105, now.Add(time.Second))

	vol, ok := h.Volatility()
	require.True(t, ok)
	assert.InDelta(t, 0.05, vol, 1e-9)
}

func TestOpportunityStatus_Transitions(t *testing.T) {
	o := Opportunity{Status: OpportunityDetected}
	now := time.Now()

	require.NoError(t, o.Transition(OpportunityPendingApproval, now))
	require.NoError(t, o.Transition(OpportunityExecuting, now))
	require.NoError(t, o.Transition(OpportunityCompleted, now))

	err := o.Transition(OpportunityPendingApproval, now)
	assert.Error(t, err)
	assert.True(t, o.Status.Terminal())
}

func TestTrade_PriceDrifted(t *testing.T) {
	buy := Trade{Side: TradeBuy, PlannedPrice: 100}
	assert.False(t, buy.PriceDrifted(100.4, 0.005))
	assert.True(t, buy.PriceDrifted(100.6, 0.005))

	sell := Trade{Side: TradeSell, PlannedPrice: 100}
	assert.False(t, sell.PriceDrifted(99.6, 0.005))
	assert.True(t, sell.PriceDrifted(99.4, 0.005))
}
