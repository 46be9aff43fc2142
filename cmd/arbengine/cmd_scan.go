package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/arbengine/internal/arb/domain"
	"github.com/sawpanic/arbengine/internal/arb/filter"
	"github.com/sawpanic/arbengine/internal/arb/graph"
)

func scanCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Build the rate graph from cached market data and print detected cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), *configPath)
		},
	}
}

func runScan(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	c := buildCache(cfg)
	defer c.Close()

	builder := graph.NewBuilder()
	tickers := make(map[string]domain.TickerSnapshot)
	pairs := pairsFromConfig(cfg)
	for name, vc := range cfg.Venues {
		if !vc.Enabled {
			continue
		}
		for _, pair := range pairs {
			t, ok, err := c.GetTicker(ctx, name, pair.String())
			if err != nil {
				log.Warn().Err(err).Str("venue", name).Str("pair", pair.String()).Msg("read ticker failed")
				continue
			}
			if !ok {
				continue
			}
			snap := domain.TickerSnapshot{
				Venue: domain.Venue(name),
				Pair:  pair,
				Bid:   t.Bid,
				Ask:   t.Ask,
			}
			builder.AddTicker(snap, vc.Fees.Taker)
			tickers[fmt.Sprintf("%s:%s", name, pair)] = snap
		}
	}

	cycles := builder.FindNegativeCycles()
	f := filter.New(filter.Config{
		MaxBidAskSpread:     cfg.MaxBidAskSpread,
		VolatilityThreshold: cfg.VolatilityThreshold,
		VolatilityWindow:    cfg.VolatilityWindow,
		MinProfitMargin:     cfg.MinProfitMargin,
		SlippageAllowance:   cfg.SlippageAllowance,
		MaxCapitalPerTrade:  cfg.MaxCapitalPerTrade,
		DefaultVolumeStub:   cfg.DefaultVolumeStub,
	}, nil)

	found := 0
	for _, cyc := range cycles {
		opp, reason := f.Evaluate(cyc, tickers)
		if reason != filter.RejectNone {
			continue
		}
		found++
		fmt.Printf("%-24s %-10s gain=%.6f margin=%.4f%% volume=%.2f\n",
			opp.MainPair, opp.MainVenue, cyc.Gain(), opp.ProfitMargin*100, opp.Volume)
	}
	if found == 0 {
		fmt.Println("no qualifying opportunities")
	}
	return nil
}
