package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/arbengine/internal/arb/approval"
	"github.com/sawpanic/arbengine/internal/arb/cache"
	"github.com/sawpanic/arbengine/internal/arb/config"
	"github.com/sawpanic/arbengine/internal/arb/domain"
	"github.com/sawpanic/arbengine/internal/arb/execution"
	"github.com/sawpanic/arbengine/internal/arb/fanout"
	"github.com/sawpanic/arbengine/internal/arb/filter"
	"github.com/sawpanic/arbengine/internal/arb/graph"
	"github.com/sawpanic/arbengine/internal/arb/httpapi"
	"github.com/sawpanic/arbengine/internal/arb/router"
	"github.com/sawpanic/arbengine/internal/arb/store"
	"github.com/sawpanic/arbengine/internal/arb/venue"
)

func runCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full engine: market data fanout, detection, approval and execution",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd.Context(), *configPath)
		},
	}
}

func runEngine(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := newLogger()
	venues := buildVenues(cfg)
	c := buildCache(cfg)
	defer c.Close()
	m := buildMetrics()

	repo, db, err := buildRepository(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	pairs := pairsFromConfig(cfg)

	fo := fanout.New(fanout.Config{
		TickerInterval:       cfg.TickerPollInterval,
		BookInterval:         cfg.BookPollInterval,
		MonitorInterval:      cfg.ConnectionMonitorInterval,
		StaleThreshold:       cfg.StaleThreshold,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
	}, c, m, logger, venues, pairs)
	go fo.Run(ctx)

	coordinator := execution.New(execution.Config{
		PriceDriftTolerance: cfg.PriceDriftTolerance,
		FillWaitTimeout:     cfg.FillWaitTimeout,
		FillPollInterval:    cfg.FillPollInterval,
	}, venues, repoTradeSink{repo: repo.Trades}, m, logger)

	fundsRouter := router.New(router.Config{
		LockTTL:           cfg.TransferLockTTL,
		MaxTransferTime:   cfg.MaxTransferTime,
		MonitorInterval:   cfg.TransferMonitorInterval,
		NetworkFees:       cfg.NetworkFees,
		PreferredNetworks: preferredNetworksFromConfig(cfg.PreferredNetworks),
	}, venues, c, repo.Transfers, m, logger)

	approver := approval.NewManager(approval.NewInMemoryChannel(approval.DecisionApprove))
	health := httpapi.NewCacheVenueHealth(c, venueNames(venues))
	server := httpapi.New(httpapi.Config{Addr: cfg.HTTPAddr, ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, IdleTimeout: 60 * time.Second}, repo, health, approver, logger)
	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.Warn().Err(err).Msg("http server stopped")
		}
	}()

	detectionFilter := filter.New(filter.Config{
		MaxBidAskSpread:     cfg.MaxBidAskSpread,
		VolatilityThreshold: cfg.VolatilityThreshold,
		VolatilityWindow:    cfg.VolatilityWindow,
		MinProfitMargin:     cfg.MinProfitMargin,
		SlippageAllowance:   cfg.SlippageAllowance,
		MaxCapitalPerTrade:  cfg.MaxCapitalPerTrade,
		DefaultVolumeStub:   cfg.DefaultVolumeStub,
	}, nil)

	loop := &detector{
		cfg:        cfg,
		cache:      c,
		venues:     venues,
		filter:     detectionFilter,
		coord:      coordinator,
		approver:   approver,
		repo:       repo,
		router:     fundsRouter,
		log:        logger,
		pairs:      pairs,
	}
	loop.run(ctx)

	return server.Shutdown(context.Background())
}

// detector owns the detect -> approve -> execute cycle: it rebuilds the
// rate graph from the shared cache at TickerPollInterval cadence,
// evaluates every negative cycle the filter accepts, and drives accepted
// opportunities through approval and execution.
type detector struct {
	cfg      *config.Config
	cache    *cache.Cache
	venues   map[domain.Venue]venue.Adapter
	filter   *filter.Filter
	coord    *execution.Coordinator
	approver *approval.Manager
	repo     store.Repository
	router   *router.Router
	log      zerolog.Logger
	pairs    []domain.Pair
}

func (d *detector) run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.TickerPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *detector) tick(ctx context.Context) {
	builder := graph.NewBuilder()
	tickers := make(map[string]domain.TickerSnapshot)

	for name, vc := range d.cfg.Venues {
		if !vc.Enabled {
			continue
		}
		for _, pair := range d.pairs {
			wt, ok, err := d.cache.GetTicker(ctx, name, pair.String())
			if err != nil || !ok {
				continue
			}
			snap := domain.TickerSnapshot{Venue: domain.Venue(name), Pair: pair, Bid: wt.Bid, Ask: wt.Ask}
			builder.AddTicker(snap, vc.Fees.Taker)
			tickers[tickerKey(domain.Venue(name), pair)] = snap
			d.filter.Observe(snap, time.Now())
		}
	}

	for _, cyc := range builder.FindNegativeCycles() {
		opp, reason := d.filter.Evaluate(cyc, tickers)
		if reason != filter.RejectNone {
			continue
		}
		opp.ID = uuid.NewString()
		opp.DetectedAt = time.Now()
		d.handle(ctx, opp)
	}
}

func tickerKey(v domain.Venue, p domain.Pair) string {
	return string(v) + ":" + p.String()
}

func (d *detector) handle(ctx context.Context, opp domain.Opportunity) {
	if err := d.persistDetected(ctx, opp); err != nil {
		d.log.Warn().Err(err).Str("opportunity", opp.ID).Msg("persist detected opportunity failed")
	}

	if err := opp.Transition(domain.OpportunityPendingApproval, time.Now()); err != nil {
		d.log.Warn().Err(err).Msg("transition to pending approval failed")
		return
	}

	decision, err := d.approver.RequestApproval(ctx, opp)
	if err != nil {
		d.log.Warn().Err(err).Str("opportunity", opp.ID).Msg("approval request failed")
		return
	}
	if decision != approval.DecisionApprove {
		_ = opp.Transition(domain.OpportunityCanceled, time.Now())
		d.updateStatus(ctx, opp)
		return
	}

	if err := d.coord.Execute(ctx, &opp); err != nil {
		d.log.Warn().Err(err).Str("opportunity", opp.ID).Msg("execution failed")
	}
	d.updateStatus(ctx, opp)
}

func (d *detector) persistDetected(ctx context.Context, opp domain.Opportunity) error {
	if d.repo.Opportunities == nil {
		return nil
	}
	cycleJSON, err := json.Marshal(opp.Cycle)
	if err != nil {
		return err
	}
	return d.repo.Opportunities.Insert(ctx, store.OpportunityRecord{
		ID:           opp.ID,
		DetectedAt:   opp.DetectedAt,
		MainPair:     opp.MainPair.String(),
		MainVenue:    string(opp.MainVenue),
		ProfitMargin: opp.ProfitMargin,
		Volume:       opp.Volume,
		Status:       string(domain.OpportunityDetected),
		CycleJSON:    cycleJSON,
	})
}

func (d *detector) updateStatus(ctx context.Context, opp domain.Opportunity) {
	if d.repo.Opportunities == nil {
		return
	}
	if err := d.repo.Opportunities.UpdateStatus(ctx, opp.ID, string(opp.Status)); err != nil {
		d.log.Warn().Err(err).Str("opportunity", opp.ID).Msg("update opportunity status failed")
	}
}
