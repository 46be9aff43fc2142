package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/arbengine/internal/arb/domain"
)

func ticker(venue domain.Venue, base, quote domain.Currency, bid, ask float64) domain.TickerSnapshot {
	return domain.TickerSnapshot{
		Venue:     venue,
		Pair:      domain.Pair{Base: base, Quote: quote},
		Bid:       bid,
		Ask:       ask,
		Timestamp: time.Now(),
	}
}

func TestFindNegativeCycles_DetectsTriangularArbitrage(t *testing.T) {
	g := NewBuilder()

	// USD -> BTC at the 10000 ask, BTC -> ETH at 5 ETH/BTC (0.2 ask),
	// ETH -> USD at the 2099 bid: one USD comes back as about 1.0495 USD
	// with zero fees, a profitable triangle.
	g.AddTicker(ticker("kraken", "BTC", "USD", 9999, 10000), 0)
	g.AddTicker(ticker("kraken", "ETH", "BTC", 0.2, 0.2), 0)
	g.AddTicker(ticker("kraken", "ETH", "USD", 2099, 2100), 0)

	cycles := g.FindNegativeCycles()
	require.NotEmpty(t, cycles)

	foundProfitable := false
	for _, c := range cycles {
		if c.Gain() > 1 {
			foundProfitable = true
		}
		// every cycle must chain From/To correctly
		for i, e := range c.Edges {
			next := c.Edges[(i+1)%len(c.Edges)]
			assert.Equal(t, e.To, next.From)
		}
	}
	assert.True(t, foundProfitable, "expected at least one cycle with gain > 1")
}

func TestFindNegativeCycles_NoArbitrageWhenBalanced(t *testing.T) {
	g := NewBuilder()
	// Symmetric fair pricing implies no cycle with gain > 1 once a
	// non-trivial taker fee is applied.
	g.AddTicker(ticker("kraken", "BTC", "USD", 10000, 10000), 0.01)
	g.AddTicker(ticker("kraken", "ETH", "BTC", 0.2, 0.2), 0.01)
	g.AddTicker(ticker("kraken", "ETH", "USD", 2000, 2000), 0.01)

	cycles := g.FindNegativeCycles()
	for _, c := range cycles {
		assert.LessOrEqual(t, c.Gain(), 1.0)
	}
}

func TestEdge_CarriesBaseAndQuote(t *testing.T) {
	g := NewBuilder()
	g.AddTicker(ticker("kraken", "BTC", "USD", 9999, 10000), 0)

	for _, e := range g.Edges() {
		assert.Equal(t, domain.Currency("BTC"), e.Base)
		assert.Equal(t, domain.Currency("USD"), e.Quote)
	}
}
