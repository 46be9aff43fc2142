// Package fanout continuously polls every configured venue for ticker
// and order book data, writes the results to the shared cache, and
// tracks per-venue connection health.
package fanout

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/arbengine/internal/arb/cache"
	"github.com/sawpanic/arbengine/internal/arb/domain"
	"github.com/sawpanic/arbengine/internal/arb/metrics"
	"github.com/sawpanic/arbengine/internal/arb/venue"
)

// Config tunes the fanout's poll cadence and health thresholds.
type Config struct {
	TickerInterval       time.Duration
	BookInterval         time.Duration
	MonitorInterval      time.Duration
	StaleThreshold       time.Duration
	MaxConsecutiveErrors int
}

type venueState struct {
	errorCount int
	lastUpdate time.Time
}

// Fanout drives the market data polling loops for a set of venues and
// pairs.
type Fanout struct {
	cfg     Config
	cache   *cache.Cache
	metrics *metrics.Metrics
	log     zerolog.Logger
	venues  map[domain.Venue]venue.Adapter
	pairs   []domain.Pair

	states map[domain.Venue]*venueState
}

// New builds a Fanout over the given venues and pairs.
func New(cfg Config, c *cache.Cache, m *metrics.Metrics, log zerolog.Logger, venues map[domain.Venue]venue.Adapter, pairs []domain.Pair) *Fanout {
	states := make(map[domain.Venue]*venueState, len(venues))
	for v := range venues {
		states[v] = &venueState{}
	}
	return &Fanout{cfg: cfg, cache: c, metrics: m, log: log, venues: venues, pairs: pairs, states: states}
}

// Run starts the ticker loop, book loop and connection monitor, blocking
// until ctx is canceled.
func (f *Fanout) Run(ctx context.Context) {
	go f.tickerLoop(ctx)
	go f.bookLoop(ctx)
	f.monitorLoop(ctx)
}

func (f *Fanout) tickerLoop(ctx context.Context) {
	for {
		start := time.Now()
		for v, adapter := range f.venues {
			for _, pair := range f.pairs {
				f.fetchTicker(ctx, v, adapter, pair)
			}
		}
		cycle := time.Since(start)
		sleep := f.cfg.TickerInterval - cycle
		if sleep < 0 {
			sleep = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

func (f *Fanout) bookLoop(ctx context.Context) {
	for {
		start := time.Now()
		for v, adapter := range f.venues {
			for _, pair := range f.pairs {
				f.fetchBook(ctx, v, adapter, pair)
			}
		}
		cycle := time.Since(start)
		sleep := f.cfg.BookInterval - cycle
		if sleep < 0 {
			sleep = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

func (f *Fanout) fetchTicker(ctx context.Context, v domain.Venue, adapter venue.Adapter, pair domain.Pair) {
	start := time.Now()
	t, err := adapter.FetchTicker(ctx, pair)
	f.metrics.FanoutCycleSeconds.WithLabelValues(string(v), "ticker").Observe(time.Since(start).Seconds())
	if err != nil {
		f.recordError(ctx, v, "ticker", err)
		return
	}
	f.recordSuccess(ctx, v)
	if err := f.cache.SetTicker(ctx, string(v), pair.String(), cache.Ticker{
		Bid: t.Bid, Ask: t.Ask, Timestamp: float64(t.Timestamp.Unix()),
	}); err != nil {
		f.log.Warn().Err(err).Str("venue", string(v)).Str("pair", pair.String()).Msg("cache ticker write failed")
	}
}

func (f *Fanout) fetchBook(ctx context.Context, v domain.Venue, adapter venue.Adapter, pair domain.Pair) {
	start := time.Now()
	book, err := adapter.FetchOrderBook(ctx, pair)
	f.metrics.FanoutCycleSeconds.WithLabelValues(string(v), "book").Observe(time.Since(start).Seconds())
	if err != nil {
		f.recordError(ctx, v, "book", err)
		return
	}
	f.recordSuccess(ctx, v)
	payload, err := encodeBook(book)
	if err != nil {
		f.log.Warn().Err(err).Msg("encode order book failed")
		return
	}
	if err := f.cache.SetOrderBook(ctx, string(v), pair.String(), payload); err != nil {
		f.log.Warn().Err(err).Str("venue", string(v)).Str("pair", pair.String()).Msg("cache book write failed")
	}
}

func (f *Fanout) recordError(ctx context.Context, v domain.Venue, kind string, err error) {
	f.metrics.FanoutErrorsTotal.WithLabelValues(string(v), kind).Inc()
	st := f.states[v]
	st.errorCount++
	f.log.Warn().Err(err).Str("venue", string(v)).Int("error_count", st.errorCount).Msg("fanout fetch failed")
	if st.errorCount > f.cfg.MaxConsecutiveErrors {
		f.setStatus(ctx, v, domain.VenueStateDown, "too many consecutive errors")
	}
}

func (f *Fanout) recordSuccess(ctx context.Context, v domain.Venue) {
	st := f.states[v]
	st.errorCount = 0
	st.lastUpdate = time.Now()
	f.setStatus(ctx, v, domain.VenueStateHealthy, "")
}

func (f *Fanout) setStatus(ctx context.Context, v domain.Venue, state domain.VenueState, message string) {
	gaugeVal := 0.0
	if state == domain.VenueStateHealthy {
		gaugeVal = 1.0
	}
	f.metrics.VenueHealthGauge.WithLabelValues(string(v)).Set(gaugeVal)
	if err := f.cache.SetVenueStatus(ctx, string(v), string(state), message, time.Now()); err != nil {
		f.log.Warn().Err(err).Str("venue", string(v)).Msg("cache status write failed")
	}
}

// monitorLoop marks a venue degraded in the cache when its last
// successful update is older than StaleThreshold. It does not close or
// rebuild the venue's adapter; the poll loops keep using the same one.
func (f *Fanout) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(f.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			for v, st := range f.states {
				if st.lastUpdate.IsZero() {
					continue
				}
				if now.Sub(st.lastUpdate) > f.cfg.StaleThreshold {
					f.log.Warn().Str("venue", string(v)).Dur("age", now.Sub(st.lastUpdate)).Msg("venue connection stale")
					f.setStatus(ctx, v, domain.VenueStateDegraded, "stale connection")
				}
			}
		}
	}
}
