// Package filter screens detected cycles for liquidity, volatility and
// minimum-profit requirements before they are handed to the execution
// coordinator.
package filter

import (
	"fmt"
	"time"

	"github.com/sawpanic/arbengine/internal/arb/domain"
)

// Config carries the gate thresholds the filter enforces.
type Config struct {
	MaxBidAskSpread     float64
	VolatilityThreshold float64
	VolatilityWindow    time.Duration
	MinProfitMargin     float64
	SlippageAllowance   float64
	MaxCapitalPerTrade  float64
	DefaultVolumeStub   float64
}

// BalanceProvider supplies free balances so the filter can size a trade
// from available capital rather than a configured stub.
type BalanceProvider interface {
	FreeBalance(venue domain.Venue, currency domain.Currency) (float64, bool)
}

// RejectReason names why a cycle failed to clear the filter.
type RejectReason string

const (
	RejectNone           RejectReason = ""
	RejectSpread         RejectReason = "spread"
	RejectVolatility     RejectReason = "volatility"
	RejectProfitMargin   RejectReason = "profit_margin"
	RejectNoMainPair     RejectReason = "no_main_pair"
	RejectStaleTicker    RejectReason = "stale_ticker"
)

// Filter evaluates candidate cycles against the configured gates,
// tracking a rolling price history per venue/pair for the volatility
// gate.
type Filter struct {
	cfg      Config
	balances BalanceProvider
	history  map[string]*domain.PriceHistory
}

// New builds a Filter. balances may be nil, in which case volume is
// always estimated from DefaultVolumeStub.
func New(cfg Config, balances BalanceProvider) *Filter {
	return &Filter{cfg: cfg, balances: balances, history: make(map[string]*domain.PriceHistory)}
}

func historyKey(venue domain.Venue, pair domain.Pair) string {
	return fmt.Sprintf("%s:%s", venue, pair)
}

// Observe records a new mid-price sample for the venue/pair's rolling
// volatility window. Callers feed this from every ticker update.
func (f *Filter) Observe(t domain.TickerSnapshot, now time.Time) {
	key := historyKey(t.Venue, t.Pair)
	h, ok := f.history[key]
	if !ok {
		h = domain.NewPriceHistory(f.cfg.VolatilityWindow)
		f.history[key] = h
	}
	h.Add(t.Mid(), now)
}

// CheckLiquidity rejects a ticker whose relative bid/ask spread exceeds
// the configured maximum.
func (f *Filter) CheckLiquidity(t domain.TickerSnapshot) RejectReason {
	if t.Spread() > f.cfg.MaxBidAskSpread {
		return RejectSpread
	}
	return RejectNone
}

// CheckVolatility rejects a venue/pair whose rolling (max-min)/min mid
// price swing exceeds the configured threshold. Pairs with insufficient
// history pass by default.
func (f *Filter) CheckVolatility(venue domain.Venue, pair domain.Pair) RejectReason {
	h, ok := f.history[historyKey(venue, pair)]
	if !ok {
		return RejectNone
	}
	vol, ok := h.Volatility()
	if !ok {
		return RejectNone
	}
	if vol > f.cfg.VolatilityThreshold {
		return RejectVolatility
	}
	return RejectNone
}

// EffectiveGain applies the configured slippage allowance to a cycle's
// raw gain, modeling the execution cost of actually crossing every leg's
// spread.
func (f *Filter) EffectiveGain(cycle domain.Cycle) float64 {
	gain := cycle.Gain()
	return gain * (1 - f.cfg.SlippageAllowance*float64(len(cycle.Edges)))
}

// CheckProfitMargin rejects a cycle whose effective gain, net of
// slippage, does not clear MinProfitMargin above break-even.
func (f *Filter) CheckProfitMargin(cycle domain.Cycle) (margin float64, reason RejectReason) {
	effective := f.EffectiveGain(cycle)
	margin = effective - 1
	if margin < f.cfg.MinProfitMargin {
		return margin, RejectProfitMargin
	}
	return margin, RejectNone
}

// SelectMainPair picks the pair/venue the opportunity will be sized
// against, preferring a USD-quoted leg so volume estimation can work off
// a single stable-valued balance.
func SelectMainPair(cycle domain.Cycle) (domain.Pair, domain.Venue, bool) {
	for _, e := range cycle.Edges {
		if e.Quote == "USD" || e.Quote == "USDT" || e.Quote == "USDC" {
			return domain.Pair{Base: e.Base, Quote: e.Quote}, e.Venue, true
		}
	}
	if len(cycle.Edges) == 0 {
		return domain.Pair{}, "", false
	}
	first := cycle.Edges[0]
	return domain.Pair{Base: first.Base, Quote: first.Quote}, first.Venue, true
}

// EstimateVolume sizes a trade from the main venue's free balance in the
// cycle's starting currency, capped by MaxCapitalPerTrade. When no
// balance provider is configured, or the venue reports none, it falls
// back to the configured stub constant.
func (f *Filter) EstimateVolume(startCurrency domain.Currency, venue domain.Venue) float64 {
	if f.balances != nil {
		if free, ok := f.balances.FreeBalance(venue, startCurrency); ok {
			return free * f.cfg.MaxCapitalPerTrade
		}
	}
	return f.cfg.DefaultVolumeStub
}

// Evaluate runs every gate against a candidate cycle's current tickers
// and returns the first rejection reason encountered, or RejectNone if
// the cycle clears all gates. tickers must contain one snapshot per edge
// in the cycle, keyed identically to how Observe was called.
func (f *Filter) Evaluate(cycle domain.Cycle, tickers map[string]domain.TickerSnapshot) (domain.Opportunity, RejectReason) {
	for _, e := range cycle.Edges {
		t, ok := tickers[historyKey(e.Venue, domain.Pair{Base: e.Base, Quote: e.Quote})]
		if !ok {
			return domain.Opportunity{}, RejectStaleTicker
		}
		if reason := f.CheckLiquidity(t); reason != RejectNone {
			return domain.Opportunity{}, reason
		}
		if reason := f.CheckVolatility(t.Venue, t.Pair); reason != RejectNone {
			return domain.Opportunity{}, reason
		}
	}

	margin, reason := f.CheckProfitMargin(cycle)
	if reason != RejectNone {
		return domain.Opportunity{}, reason
	}

	mainPair, mainVenue, ok := SelectMainPair(cycle)
	if !ok {
		return domain.Opportunity{}, RejectNoMainPair
	}

	volume := f.EstimateVolume(cycle.StartCurrency(), mainVenue)

	return domain.Opportunity{
		Cycle:        cycle,
		MainPair:     mainPair,
		MainVenue:    mainVenue,
		ProfitMargin: margin,
		Volume:       volume,
		Status:       domain.OpportunityDetected,
	}, RejectNone
}
