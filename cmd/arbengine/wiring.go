package main

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sawpanic/arbengine/internal/arb/cache"
	"github.com/sawpanic/arbengine/internal/arb/config"
	"github.com/sawpanic/arbengine/internal/arb/domain"
	arbmetrics "github.com/sawpanic/arbengine/internal/arb/metrics"
	"github.com/sawpanic/arbengine/internal/arb/store"
	"github.com/sawpanic/arbengine/internal/arb/store/postgres"
	"github.com/sawpanic/arbengine/internal/arb/venue"
	"github.com/sawpanic/arbengine/internal/arb/venue/binance"
	"github.com/sawpanic/arbengine/internal/arb/venue/coinbase"
	"github.com/sawpanic/arbengine/internal/arb/venue/kraken"
	"github.com/sawpanic/arbengine/internal/arb/venue/okx"
)

// loadConfig loads the engine config from path, or the baked-in defaults
// when path is empty.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// buildVenues constructs a circuit-broken, rate-limited adapter for
// every enabled venue in cfg.
func buildVenues(cfg *config.Config) map[domain.Venue]venue.Adapter {
	venues := make(map[domain.Venue]venue.Adapter)
	for name, vc := range cfg.Venues {
		if !vc.Enabled {
			continue
		}
		var inner venue.Adapter
		switch domain.Venue(name) {
		case domain.VenueKraken:
			inner = kraken.NewClient(kraken.Config{BaseURL: vc.BaseURL, APIKey: vc.APIKey, APISecret: vc.APISecret})
		case domain.VenueBinance:
			inner = binance.NewClient(binance.Config{BaseURL: vc.BaseURL, APIKey: vc.APIKey, APISecret: vc.APISecret})
		case domain.VenueOKX:
			inner = okx.NewClient(okx.Config{BaseURL: vc.BaseURL, APIKey: vc.APIKey, APISecret: vc.APISecret})
		case domain.VenueCoinbase:
			inner = coinbase.NewClient(coinbase.Config{BaseURL: vc.BaseURL, APIKey: vc.APIKey, APISecret: vc.APISecret})
		default:
			log.Warn().Str("venue", name).Msg("unknown venue in config, skipping")
			continue
		}
		venues[domain.Venue(name)] = venue.NewGuarded(inner, vc.RPS, vc.Burst)
	}
	return venues
}

func buildCache(cfg *config.Config) *cache.Cache {
	return cache.New(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Password)
}

func buildMetrics() *arbmetrics.Metrics {
	return arbmetrics.New(prometheus.DefaultRegisterer)
}

// buildRepository opens the Postgres durable log. It returns a zero
// Repository (every field nil) if cfg carries no DSN, letting commands
// that don't need durability run without a database.
func buildRepository(cfg *config.Config) (store.Repository, *sqlx.DB, error) {
	if cfg.Postgres.DSN == "" {
		return store.Repository{}, nil, nil
	}
	db, err := sqlx.Connect("postgres", cfg.Postgres.DSN)
	if err != nil {
		return store.Repository{}, nil, fmt.Errorf("connect postgres: %w", err)
	}
	const queryTimeout = 5 * time.Second
	return store.Repository{
		Opportunities: postgres.NewOpportunityRepo(db, queryTimeout),
		Trades:        postgres.NewTradesRepo(db, queryTimeout),
		Transfers:     postgres.NewTransfersRepo(db, queryTimeout),
		Metrics:       postgres.NewMetricsRepo(db, queryTimeout),
	}, db, nil
}

func newLogger() zerolog.Logger {
	return log.Logger
}

func pairsFromConfig(cfg *config.Config) []domain.Pair {
	pairs := make([]domain.Pair, 0, len(cfg.TopPairs))
	for _, p := range cfg.TopPairs {
		pair := parsePair(p)
		if pair.Base != "" {
			pairs = append(pairs, pair)
		}
	}
	return pairs
}

func parsePair(s string) domain.Pair {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return domain.Pair{Base: domain.Currency(s[:i]), Quote: domain.Currency(s[i+1:])}
		}
	}
	return domain.Pair{}
}

func venueNames(venues map[domain.Venue]venue.Adapter) []domain.Venue {
	names := make([]domain.Venue, 0, len(venues))
	for v := range venues {
		names = append(names, v)
	}
	return names
}

func preferredNetworksFromConfig(m map[string]string) map[domain.Currency]string {
	out := make(map[domain.Currency]string, len(m))
	for k, v := range m {
		out[domain.Currency(k)] = v
	}
	return out
}
