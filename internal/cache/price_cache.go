package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/clock"
	"github.com/irfndi/catalyst-ai-go/internal/market"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PriceCacheEntry is the cached quote for one ticker.
type PriceCacheEntry struct {
	Ticker    string          `json:"ticker"`
	Price     decimal.Decimal `json:"price"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// PriceCacheStats tracks cache performance.
type PriceCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
}

// RedisPriceCache is a read-through cache in front of a price source.
// Freshness is judged with the injected clock so tests control it; the Redis
// TTL only garbage-collects old keys.
type RedisPriceCache struct {
	redis  *redis.Client
	source market.PriceSource
	ttl    time.Duration
	clock  clock.Clock
	logger *logrus.Logger
	prefix string

	mu    sync.Mutex
	stats PriceCacheStats
}

func NewRedisPriceCache(client *redis.Client, source market.PriceSource, ttl time.Duration, clk clock.Clock, logger *logrus.Logger) *RedisPriceCache {
	if clk == nil {
		clk = clock.Real{}
	}
	return &RedisPriceCache{
		redis:  client,
		source: source,
		ttl:    ttl,
		clock:  clk,
		logger: logger,
		prefix: "price_cache:",
	}
}

func (c *RedisPriceCache) Name() string { return "cache(" + c.source.Name() + ")" }

// CurrentPrice serves a fresh cached quote or fetches and stores a new one.
// Redis failures degrade to a direct fetch.
func (c *RedisPriceCache) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	if entry, ok := c.Get(ctx, ticker); ok && c.clock.Now().Sub(entry.FetchedAt) < c.ttl {
		c.record(func(s *PriceCacheStats) { s.Hits++ })
		return entry.Price, nil
	}
	c.record(func(s *PriceCacheStats) { s.Misses++ })

	price, err := c.source.CurrentPrice(ctx, ticker)
	if err != nil {
		return decimal.Zero, err
	}

	c.Set(ctx, PriceCacheEntry{
		Ticker:    ticker,
		Price:     price,
		Source:    c.source.Name(),
		FetchedAt: c.clock.Now(),
	})
	return price, nil
}

// Get returns the stored entry regardless of age.
func (c *RedisPriceCache) Get(ctx context.Context, ticker string) (PriceCacheEntry, bool) {
	data, err := c.redis.Get(ctx, c.prefix+ticker).Bytes()
	if errors.Is(err, redis.Nil) {
		return PriceCacheEntry{}, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("ticker", ticker).Warn("Redis error reading cached price")
		return PriceCacheEntry{}, false
	}

	var entry PriceCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.WithError(err).WithField("ticker", ticker).Warn("Discarding undecodable cached price")
		return PriceCacheEntry{}, false
	}
	return entry, true
}

func (c *RedisPriceCache) Set(ctx context.Context, entry PriceCacheEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.WithError(err).WithField("ticker", entry.Ticker).Warn("Failed to encode price for cache")
		return
	}
	if err := c.redis.Set(ctx, c.prefix+entry.Ticker, data, 2*c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("ticker", entry.Ticker).Warn("Redis error caching price")
		return
	}
	c.record(func(s *PriceCacheStats) { s.Sets++ })
}

func (c *RedisPriceCache) Stats() PriceCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Clear removes every cached price.
func (c *RedisPriceCache) Clear(ctx context.Context) error {
	var keys []string
	iter := c.redis.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("error scanning price cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error clearing price cache: %w", err)
	}
	return nil
}

func (c *RedisPriceCache) record(fn func(*PriceCacheStats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}
