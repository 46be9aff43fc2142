// Package cache wraps Redis as the engine's shared low-latency store for
// ticker/book snapshots, venue status, cached opportunities, rolling
// metrics and distributed locks.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	marketDataTTL  = 1 * time.Hour
	opportunityTTL = 5 * time.Minute
	metricsListCap = 100
)

// Cache wraps a Redis client with the engine's key scheme.
type Cache struct {
	rdb *redis.Client
}

// New builds a Cache against addr/db, optionally authenticating with
// password (empty to disable).
func New(addr string, db int, password string) *Cache {
	return &Cache{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       db,
		Password: password,
	})}
}

// NewWithClient wraps an already-constructed client.
func NewWithClient(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func marketKey(venue, pair, kind string) string {
	return fmt.Sprintf("market:%s:%s:%s", venue, pair, kind)
}

func statusKey(venue string) string {
	return fmt.Sprintf("exchange:status:%s", venue)
}

func opportunityKey(id string) string {
	return fmt.Sprintf("arbitrage:opportunity:%s", id)
}

func metricKey(service, name string) string {
	return fmt.Sprintf("metrics:%s:%s", service, name)
}

func lockKey(name string) string {
	return fmt.Sprintf("lock:%s", name)
}

// Ticker is the wire shape stored for a market:*:ticker hash.
type Ticker struct {
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Timestamp float64 `json:"timestamp"`
}

// SetTicker writes a ticker snapshot and refreshes its TTL.
func (c *Cache) SetTicker(ctx context.Context, venue, pair string, t Ticker) error {
	key := marketKey(venue, pair, "ticker")
	if err := c.rdb.HSet(ctx, key, map[string]interface{}{
		"bid":       t.Bid,
		"ask":       t.Ask,
		"timestamp": t.Timestamp,
	}).Err(); err != nil {
		return fmt.Errorf("set ticker %s: %w", key, err)
	}
	return c.rdb.Expire(ctx, key, marketDataTTL).Err()
}

// GetTicker reads the last ticker snapshot for venue/pair. ok is false
// when no entry exists.
func (c *Cache) GetTicker(ctx context.Context, venue, pair string) (t Ticker, ok bool, err error) {
	key := marketKey(venue, pair, "ticker")
	vals, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return Ticker{}, false, fmt.Errorf("get ticker %s: %w", key, err)
	}
	if len(vals) == 0 {
		return Ticker{}, false, nil
	}
	var bid, ask, ts float64
	fmt.Sscanf(vals["bid"], "%g", &bid)
	fmt.Sscanf(vals["ask"], "%g", &ask)
	fmt.Sscanf(vals["timestamp"], "%g", &ts)
	return Ticker{Bid: bid, Ask: ask, Timestamp: ts}, true, nil
}

// OrderBook is the wire shape stored for a market:*:book hash.
type OrderBook struct {
	Bids      json.RawMessage `json:"bids"`
	Asks      json.RawMessage `json:"asks"`
	Timestamp float64         `json:"timestamp"`
}

// SetOrderBook writes an order book snapshot and refreshes its TTL.
func (c *Cache) SetOrderBook(ctx context.Context, venue, pair string, book OrderBook) error {
	key := marketKey(venue, pair, "book")
	if err := c.rdb.HSet(ctx, key, map[string]interface{}{
		"bids":      string(book.Bids),
		"asks":      string(book.Asks),
		"timestamp": book.Timestamp,
	}).Err(); err != nil {
		return fmt.Errorf("set book %s: %w", key, err)
	}
	return c.rdb.Expire(ctx, key, marketDataTTL).Err()
}

// SetVenueStatus records a venue's connection health.
func (c *Cache) SetVenueStatus(ctx context.Context, venue, status, message string, now time.Time) error {
	key := statusKey(venue)
	fields := map[string]interface{}{
		"status":    status,
		"timestamp": float64(now.Unix()),
	}
	if message != "" {
		fields["message"] = message
	}
	if err := c.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("set status %s: %w", key, err)
	}
	return nil
}

// GetVenueStatus reads a venue's connection health.
func (c *Cache) GetVenueStatus(ctx context.Context, venue string) (map[string]string, error) {
	vals, err := c.rdb.HGetAll(ctx, statusKey(venue)).Result()
	if err != nil {
		return nil, fmt.Errorf("get status %s: %w", venue, err)
	}
	return vals, nil
}

// CacheOpportunity stores an opportunity payload with a fixed 5-minute
// expiry so stale detections fall out of the cache without manual cleanup.
func (c *Cache) CacheOpportunity(ctx context.Context, id string, payload []byte) error {
	if err := c.rdb.Set(ctx, opportunityKey(id), payload, opportunityTTL).Err(); err != nil {
		return fmt.Errorf("cache opportunity %s: %w", id, err)
	}
	return nil
}

// GetOpportunity returns a cached opportunity payload, or ok=false if it
// has expired or was never cached.
func (c *Cache) GetOpportunity(ctx context.Context, id string) (payload []byte, ok bool, err error) {
	v, err := c.rdb.Get(ctx, opportunityKey(id)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get opportunity %s: %w", id, err)
	}
	return v, true, nil
}

// RecordMetric pushes a timestamped value onto a capped metrics list and
// updates the current-value key.
func (c *Cache) RecordMetric(ctx context.Context, service, name string, value float64, now time.Time) error {
	key := metricKey(service, name)
	point, err := json.Marshal(map[string]float64{"value": value, "timestamp": float64(now.Unix())})
	if err != nil {
		return fmt.Errorf("marshal metric point: %w", err)
	}
	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, key, point)
	pipe.LTrim(ctx, key, 0, metricsListCap-1)
	pipe.Set(ctx, key+":current", value, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record metric %s: %w", key, err)
	}
	return nil
}

// CurrentMetric returns the most recently recorded value for a metric.
func (c *Cache) CurrentMetric(ctx context.Context, service, name string) (float64, bool, error) {
	v, err := c.rdb.Get(ctx, metricKey(service, name)+":current").Float64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("current metric %s/%s: %w", service, name, err)
	}
	return v, true, nil
}

// Close releases the underlying Redis connection pool.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
