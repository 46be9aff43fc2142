package main

import (
	"context"

	"github.com/sawpanic/arbengine/internal/arb/domain"
	"github.com/sawpanic/arbengine/internal/arb/store"
)

// repoTradeSink adapts a store.TradesRepo to the execution.TradeSink
// contract, translating domain.Trade into its durable representation.
type repoTradeSink struct {
	repo store.TradesRepo
}

func (s repoTradeSink) Record(ctx context.Context, t domain.Trade) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.Insert(ctx, store.TradeRecord{
		ID:            t.ID,
		OpportunityID: t.OpportunityID,
		Venue:         string(t.Venue),
		Symbol:        t.Pair.String(),
		Side:          string(t.Side),
		OrderID:       t.OrderID,
		PlannedPrice:  t.PlannedPrice,
		FilledPrice:   t.FilledPrice,
		Amount:        t.Amount,
		FilledAmount:  t.FilledAmount,
		Status:        string(t.Status),
		CreatedAt:     t.CreatedAt,
	})
}
