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
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// BlacklistEntry is a ticker no price source could resolve.
type BlacklistEntry struct {
	Ticker    string    `json:"ticker"`
	Reason    string    `json:"reason"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type BlacklistStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Adds   int64 `json:"adds"`
}

// TickerBlacklist remembers unresolvable tickers for a while so repeated
// lookups do not burn scraper quota.
type TickerBlacklist interface {
	IsBlacklisted(ctx context.Context, ticker string) (bool, string)
	Add(ctx context.Context, ticker, reason string, ttl time.Duration)
	Remove(ctx context.Context, ticker string)
	Stats() BlacklistStats
}

// RedisTickerBlacklist shares the blacklist between the server and CLI runs.
type RedisTickerBlacklist struct {
	client redis.Cmdable
	clock  clock.Clock
	logger *logrus.Logger
	prefix string

	mu    sync.Mutex
	stats BlacklistStats
}

func NewRedisTickerBlacklist(client redis.Cmdable, clk clock.Clock, logger *logrus.Logger) *RedisTickerBlacklist {
	if clk == nil {
		clk = clock.Real{}
	}
	return &RedisTickerBlacklist{client: client, clock: clk, logger: logger, prefix: "blacklist:"}
}

// IsBlacklisted treats Redis errors as a miss.
func (b *RedisTickerBlacklist) IsBlacklisted(ctx context.Context, ticker string) (bool, string) {
	val, err := b.client.Get(ctx, b.prefix+ticker).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			b.logger.WithError(err).WithField("ticker", ticker).Warn("Blacklist lookup failed")
		}
		b.count(func(s *BlacklistStats) { s.Misses++ })
		return false, ""
	}

	var entry BlacklistEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil || b.clock.Now().After(entry.ExpiresAt) {
		b.client.Del(ctx, b.prefix+ticker)
		b.count(func(s *BlacklistStats) { s.Misses++ })
		return false, ""
	}

	b.count(func(s *BlacklistStats) { s.Hits++ })
	return true, entry.Reason
}

func (b *RedisTickerBlacklist) Add(ctx context.Context, ticker, reason string, ttl time.Duration) {
	now := b.clock.Now()
	data, err := json.Marshal(BlacklistEntry{Ticker: ticker, Reason: reason, ExpiresAt: now.Add(ttl), CreatedAt: now})
	if err != nil {
		return
	}
	if err := b.client.Set(ctx, b.prefix+ticker, data, ttl).Err(); err != nil {
		b.logger.WithError(err).WithField("ticker", ticker).Warn("Failed to blacklist ticker")
		return
	}
	b.count(func(s *BlacklistStats) { s.Adds++ })
	b.logger.WithFields(logrus.Fields{"ticker": ticker, "reason": reason, "ttl": ttl}).Info("Blacklisted ticker")
}

func (b *RedisTickerBlacklist) Remove(ctx context.Context, ticker string) {
	b.client.Del(ctx, b.prefix+ticker)
}

func (b *RedisTickerBlacklist) Stats() BlacklistStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *RedisTickerBlacklist) count(fn func(*BlacklistStats)) {
	b.mu.Lock()
	fn(&b.stats)
	b.mu.Unlock()
}

// InMemoryTickerBlacklist is used when Redis is not configured.
type InMemoryTickerBlacklist struct {
	clock clock.Clock

	mu      sync.Mutex
	entries map[string]BlacklistEntry
	stats   BlacklistStats
}

func NewInMemoryTickerBlacklist(clk clock.Clock) *InMemoryTickerBlacklist {
	if clk == nil {
		clk = clock.Real{}
	}
	return &InMemoryTickerBlacklist{clock: clk, entries: make(map[string]BlacklistEntry)}
}

func (b *InMemoryTickerBlacklist) IsBlacklisted(_ context.Context, ticker string) (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[ticker]
	if ok && b.clock.Now().After(entry.ExpiresAt) {
		delete(b.entries, ticker)
		ok = false
	}
	if !ok {
		b.stats.Misses++
		return false, ""
	}
	b.stats.Hits++
	return true, entry.Reason
}

func (b *InMemoryTickerBlacklist) Add(_ context.Context, ticker, reason string, ttl time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clock.Now()
	b.entries[ticker] = BlacklistEntry{Ticker: ticker, Reason: reason, ExpiresAt: now.Add(ttl), CreatedAt: now}
	b.stats.Adds++
}

func (b *InMemoryTickerBlacklist) Remove(_ context.Context, ticker string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, ticker)
}

func (b *InMemoryTickerBlacklist) Stats() BlacklistStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// BlacklistedSource short-circuits tickers every source reported as unknown.
// Transient errors never blacklist.
type BlacklistedSource struct {
	inner market.PriceSource
	list  TickerBlacklist
	ttl   time.Duration
}

func NewBlacklistedSource(inner market.PriceSource, list TickerBlacklist, ttl time.Duration) *BlacklistedSource {
	return &BlacklistedSource{inner: inner, list: list, ttl: ttl}
}

func (s *BlacklistedSource) Name() string { return s.inner.Name() }

func (s *BlacklistedSource) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	if ok, reason := s.list.IsBlacklisted(ctx, ticker); ok {
		return decimal.Zero, fmt.Errorf("%s blacklisted (%s): %w", ticker, reason, market.ErrPriceNotFound)
	}
	price, err := s.inner.CurrentPrice(ctx, ticker)
	if errors.Is(err, market.ErrPriceNotFound) {
		s.list.Add(ctx, ticker, "no price from "+s.inner.Name(), s.ttl)
	}
	return price, err
}

func (s *BlacklistedSource) DailyBars(ctx context.Context, ticker string, days int) ([]models.Bar, error) {
	bs, ok := s.inner.(market.BarSource)
	if !ok {
		return nil, fmt.Errorf("%s serves no bars: %w", s.inner.Name(), market.ErrPriceNotFound)
	}
	if ok, reason := s.list.IsBlacklisted(ctx, ticker); ok {
		return nil, fmt.Errorf("%s blacklisted (%s): %w", ticker, reason, market.ErrPriceNotFound)
	}
	return bs.DailyBars(ctx, ticker, days)
}
