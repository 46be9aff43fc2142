// Package config loads and validates the arbitrage engine's runtime
// configuration from a YAML file, with environment variables overriding
// individual fields.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FeeSchedule is a venue's taker/maker fee rate, expressed as a fraction
// (0.001 = 10bps).
type FeeSchedule struct {
	Taker float64 `yaml:"taker"`
	Maker float64 `yaml:"maker"`
}

// VenueConfig configures one exchange adapter.
type VenueConfig struct {
	Enabled   bool        `yaml:"enabled"`
	APIKey    string      `yaml:"api_key"`
	APISecret string      `yaml:"api_secret"`
	BaseURL   string      `yaml:"base_url"`
	WSURL     string      `yaml:"ws_url"`
	RPS       float64     `yaml:"rps"`
	Burst     int         `yaml:"burst"`
	Fees      FeeSchedule `yaml:"fees"`
}

// Config is the complete engine configuration.
type Config struct {
	Redis struct {
		Addr     string `yaml:"addr"`
		DB       int    `yaml:"db"`
		Password string `yaml:"password"`
	} `yaml:"redis"`

	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`

	Venues map[string]VenueConfig `yaml:"venues"`

	TopPairs []string `yaml:"top_pairs"`

	// MinProfitMargin is the minimum net cycle gain, after fees and
	// slippage, required to surface an opportunity.
	MinProfitMargin float64 `yaml:"min_profit_margin"`
	// MaxCapitalPerTrade caps the fraction of a venue's free balance
	// committed to a single opportunity.
	MaxCapitalPerTrade float64 `yaml:"max_capital_per_trade"`
	// Min24hVolume is a minimum quote-currency 24h volume for a pair. It
	// is loaded and defaulted but no gate in the engine reads it.
	Min24hVolume float64 `yaml:"min_24h_volume"`
	// MaxBidAskSpread rejects a ticker whose relative spread exceeds this
	// fraction.
	MaxBidAskSpread float64 `yaml:"max_bid_ask_spread"`
	// VolatilityThreshold rejects a pair whose rolling (max-min)/min mid
	// price swing exceeds this fraction within VolatilityWindow.
	VolatilityThreshold float64       `yaml:"volatility_threshold"`
	VolatilityWindow    time.Duration `yaml:"volatility_window"`
	// SlippageAllowance is charged once per leg against a cycle's gain
	// when estimating achievable cycle gain.
	SlippageAllowance float64 `yaml:"slippage_allowance"`
	// DefaultVolumeStub is the fallback trade size used when no balance
	// provider is available for the venue.
	DefaultVolumeStub float64 `yaml:"default_volume_stub"`

	// PriceDriftTolerance is the maximum adverse price move tolerated
	// between planning a leg and submitting it.
	PriceDriftTolerance float64 `yaml:"price_drift_tolerance"`
	// FillWaitTimeout bounds how long the coordinator polls for a leg to
	// fill before aborting.
	FillWaitTimeout time.Duration `yaml:"fill_wait_timeout"`
	// FillPollInterval is the coordinator's fill-status poll cadence.
	FillPollInterval time.Duration `yaml:"fill_poll_interval"`

	// TransferLockTTL bounds how long a funds-router transfer lock is
	// held before it expires automatically.
	TransferLockTTL time.Duration `yaml:"transfer_lock_ttl"`
	// MaxTransferTime bounds how long the router waits for a transfer to
	// confirm before marking it unknown.
	MaxTransferTime time.Duration `yaml:"max_transfer_time"`
	// TransferMonitorInterval is the router's confirmation poll cadence.
	TransferMonitorInterval time.Duration `yaml:"transfer_monitor_interval"`
	// NetworkFees maps "currency:network" to a flat withdrawal fee, used
	// when a venue adapter cannot report its own fee.
	NetworkFees map[string]float64 `yaml:"network_fees"`
	// PreferredNetworks maps currency to the network the router prefers
	// when multiple are available.
	PreferredNetworks map[string]string `yaml:"preferred_networks"`

	// TickerPollInterval and BookPollInterval drive the market data
	// fanout's REST polling loops, which serve every venue.
	TickerPollInterval time.Duration `yaml:"ticker_poll_interval"`
	BookPollInterval   time.Duration `yaml:"book_poll_interval"`
	// ConnectionMonitorInterval and StaleThreshold drive the fanout's
	// health-check loop.
	ConnectionMonitorInterval time.Duration `yaml:"connection_monitor_interval"`
	StaleThreshold            time.Duration `yaml:"stale_threshold"`
	MaxConsecutiveErrors      int           `yaml:"max_consecutive_errors"`

	HTTPAddr string `yaml:"http_addr"`
}

// Defaults returns the configuration baseline before any file or
// environment override is applied.
func Defaults() *Config {
	c := &Config{
		MinProfitMargin:           0.003,
		MaxCapitalPerTrade:        0.1,
		Min24hVolume:              400000,
		MaxBidAskSpread:           0.004,
		VolatilityThreshold:       0.03,
		VolatilityWindow:          300 * time.Second,
		SlippageAllowance:         0.0005,
		DefaultVolumeStub:         1000.0,
		PriceDriftTolerance:       0.005,
		FillWaitTimeout:           60 * time.Second,
		FillPollInterval:          1 * time.Second,
		TransferLockTTL:           10 * time.Second,
		MaxTransferTime:           60 * time.Second,
		TransferMonitorInterval:   30 * time.Second,
		TickerPollInterval:        100 * time.Millisecond,
		BookPollInterval:          1 * time.Second,
		ConnectionMonitorInterval: 30 * time.Second,
		StaleThreshold:            60 * time.Second,
		MaxConsecutiveErrors:      5,
		HTTPAddr:                  ":8000",
		NetworkFees:               map[string]float64{},
		PreferredNetworks:         map[string]string{},
	}
	c.Redis.Addr = "localhost:6379"
	return c
}

// Load reads a YAML file on top of Defaults, then applies environment
// variable overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("MIN_PROFIT_MARGIN"), 64); err == nil {
		c.MinProfitMargin = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("MAX_CAPITAL_PER_TRADE"), 64); err == nil {
		c.MaxCapitalPerTrade = v
	}
}

// Validate rejects configurations that would make the engine behave
// nonsensically rather than failing at first use.
func (c *Config) Validate() error {
	if c.MinProfitMargin < 0 {
		return fmt.Errorf("min_profit_margin must be >= 0")
	}
	if c.MaxCapitalPerTrade <= 0 || c.MaxCapitalPerTrade > 1 {
		return fmt.Errorf("max_capital_per_trade must be in (0, 1]")
	}
	if c.MaxBidAskSpread <= 0 {
		return fmt.Errorf("max_bid_ask_spread must be > 0")
	}
	if c.VolatilityWindow <= 0 {
		return fmt.Errorf("volatility_window must be > 0")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	for name, vc := range c.Venues {
		if vc.Enabled && vc.RPS <= 0 {
			return fmt.Errorf("venue %s: rps must be > 0 when enabled", name)
		}
	}
	return nil
}

// FeeFor returns the configured taker fee for a venue, or 0 if unknown.
func (c *Config) FeeFor(venue string) float64 {
	if vc, ok := c.Venues[venue]; ok {
		return vc.Fees.Taker
	}
	return 0
}
