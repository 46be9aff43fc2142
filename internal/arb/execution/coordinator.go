// Package execution drives an approved opportunity through order
// placement, verifying each leg fills within tolerance before moving to
// the next and rolling back earlier legs if one aborts.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawpanic/arbengine/internal/arb/domain"
	"github.com/sawpanic/arbengine/internal/arb/metrics"
	"github.com/sawpanic/arbengine/internal/arb/venue"
)

// Config tunes the coordinator's fill-wait behavior and price-drift
// tolerance.
type Config struct {
	PriceDriftTolerance float64
	FillWaitTimeout     time.Duration
	FillPollInterval    time.Duration
}

// TradeSink persists each leg's lifecycle. Implementations typically
// write through to the durable log.
type TradeSink interface {
	Record(ctx context.Context, t domain.Trade) error
}

// Coordinator executes an approved opportunity leg by leg.
type Coordinator struct {
	cfg     Config
	venues  map[domain.Venue]venue.Adapter
	sink    TradeSink
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// New builds a Coordinator over the given venue adapters.
func New(cfg Config, venues map[domain.Venue]venue.Adapter, sink TradeSink, m *metrics.Metrics, log zerolog.Logger) *Coordinator {
	return &Coordinator{cfg: cfg, venues: venues, sink: sink, metrics: m, log: log, now: time.Now}
}

// Execute walks an opportunity's cycle leg by leg: detected ->
// pending_approval (already granted by the caller before Execute is
// called) -> executing -> completed/failed/canceled. It submits each
// leg's order only after verifying the current market price has not
// drifted beyond tolerance from the plan, waits for the leg to fill, and
// rolls back the legs it already opened if a later leg aborts.
func (c *Coordinator) Execute(ctx context.Context, opp *domain.Opportunity) error {
	if err := opp.Transition(domain.OpportunityExecuting, c.now()); err != nil {
		return err
	}

	var filled []domain.Trade
	for i, e := range opp.Cycle.Edges {
		trade, err := c.executeLeg(ctx, opp.ID, e, opp.Volume)
		if err != nil {
			c.log.Warn().Err(err).Str("opportunity", opp.ID).Int("leg", i).Msg("leg execution failed, rolling back")
			c.rollback(ctx, filled)
			opp.FailureReason = err.Error()
			_ = opp.Transition(domain.OpportunityFailed, c.now())
			c.metrics.ExecutionOutcomeTotal.WithLabelValues(string(domain.OpportunityFailed)).Inc()
			return err
		}
		filled = append(filled, trade)
	}

	_ = opp.Transition(domain.OpportunityCompleted, c.now())
	c.metrics.ExecutionOutcomeTotal.WithLabelValues(string(domain.OpportunityCompleted)).Inc()
	return nil
}

func (c *Coordinator) executeLeg(ctx context.Context, opportunityID string, e domain.Edge, amount float64) (domain.Trade, error) {
	adapter, ok := c.venues[e.Venue]
	if !ok {
		return domain.Trade{}, fmt.Errorf("no adapter for venue %s", e.Venue)
	}
	pair := domain.Pair{Base: e.Base, Quote: e.Quote}
	side := legSide(e)

	planned, err := adapter.FetchTicker(ctx, pair)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("fetch planning ticker: %w", err)
	}
	plannedPrice := legPrice(side, planned)

	current, err := adapter.FetchTicker(ctx, pair)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("fetch confirmation ticker: %w", err)
	}
	currentPrice := legPrice(side, current)

	trade := domain.Trade{
		ID:            uuid.NewString(),
		OpportunityID: opportunityID,
		Venue:         e.Venue,
		Pair:          pair,
		Side:          side,
		PlannedPrice:  plannedPrice,
		Amount:        amount,
		Status:        domain.TradeSubmitted,
		CreatedAt:     c.now(),
	}

	if trade.PriceDrifted(currentPrice, c.cfg.PriceDriftTolerance) {
		trade.Status = domain.TradeRejected
		_ = c.sink.Record(ctx, trade)
		return domain.Trade{}, fmt.Errorf("price drifted beyond tolerance for %s on %s: planned %.8f current %.8f", pair, e.Venue, plannedPrice, currentPrice)
	}

	orderID, err := adapter.PlaceOrder(ctx, venue.OrderRequest{Pair: pair, Side: side, Price: currentPrice, Amount: amount})
	if err != nil {
		trade.Status = domain.TradeRejected
		_ = c.sink.Record(ctx, trade)
		return domain.Trade{}, fmt.Errorf("place order: %w", err)
	}
	trade.OrderID = orderID
	trade.Status = domain.TradeOpen
	trade.UpdatedAt = c.now()
	_ = c.sink.Record(ctx, trade)

	filled, err := c.waitForFill(ctx, adapter, orderID)
	if err != nil {
		_ = adapter.CancelOrder(ctx, orderID)
		trade.Status = domain.TradeCanceled
		trade.UpdatedAt = c.now()
		_ = c.sink.Record(ctx, trade)
		return domain.Trade{}, err
	}

	trade.Status = domain.TradeFilled
	trade.FilledAmount = filled.FilledAmount
	trade.FilledPrice = filled.FilledPrice
	trade.UpdatedAt = c.now()
	_ = c.sink.Record(ctx, trade)
	return trade, nil
}

// waitForFill polls at FillPollInterval cadence until the order reports
// filled or FillWaitTimeout elapses.
func (c *Coordinator) waitForFill(ctx context.Context, adapter venue.Adapter, orderID string) (venue.OrderStatus, error) {
	deadline := c.now().Add(c.cfg.FillWaitTimeout)
	ticker := time.NewTicker(c.cfg.FillPollInterval)
	defer ticker.Stop()

	for {
		status, err := adapter.FetchOrder(ctx, orderID)
		if err != nil {
			return venue.OrderStatus{}, fmt.Errorf("poll order %s: %w", orderID, err)
		}
		if status.Filled {
			return status, nil
		}
		if c.now().After(deadline) {
			return venue.OrderStatus{}, fmt.Errorf("order %s did not fill within %s", orderID, c.cfg.FillWaitTimeout)
		}
		select {
		case <-ctx.Done():
			return venue.OrderStatus{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// rollback cancels any earlier leg that is still open after a later leg
// aborted. It does not attempt to reverse a leg that already filled;
// imbalance from a filled leg is corrected by the funds router, not by
// the coordinator.
func (c *Coordinator) rollback(ctx context.Context, filled []domain.Trade) {
	for i := len(filled) - 1; i >= 0; i-- {
		t := filled[i]
		if t.Status != domain.TradeOpen {
			continue
		}
		adapter, ok := c.venues[t.Venue]
		if !ok {
			continue
		}
		if err := adapter.CancelOrder(ctx, t.OrderID); err != nil {
			c.log.Warn().Err(err).Str("order", t.OrderID).Msg("rollback cancel failed")
		}
	}
}

func legSide(e domain.Edge) domain.TradeSide {
	if e.From == e.Quote {
		return domain.TradeBuy
	}
	return domain.TradeSell
}

func legPrice(side domain.TradeSide, t domain.TickerSnapshot) float64 {
	if side == domain.TradeBuy {
		return t.Ask
	}
	return t.Bid
}
