package barcache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/tradingfloor/platform/internal/domain/bar"
	"github.com/tradingfloor/platform/internal/metrics"
	"github.com/tradingfloor/platform/pkg/logger"
)

const (
	lockTTL       = 120 * time.Second
	pendingTTL    = 180 * time.Second
	entryTTL      = 12 * time.Hour
	renewInterval = 30 * time.Second

	waitStart        = 1 * time.Second
	waitStep         = 200 * time.Millisecond
	waitCap          = 5 * time.Second
	pendingGraceWait = 10 * time.Second
	pendingGoneLimit = 5
)

// Cache is the shared bar cache with distributed stampede protection
// (spec §4.1): concurrent callers for the same symbol/timeframe/range
// collapse into a single Provider fetch, with every other caller either
// hitting the populated cache entry or waiting on the holder.
type Cache struct {
	redis      Redis
	provider   Provider
	metrics    *metrics.BarCache
	log        *logger.Logger
	instanceID string
}

// New builds a Cache. A fresh instanceID is generated so lock values can be
// attributed to the process instance that holds them.
func New(redis Redis, provider Provider, m *metrics.BarCache, log *logger.Logger) *Cache {
	return &Cache{
		redis:      redis,
		provider:   provider,
		metrics:    m,
		log:        log,
		instanceID: uuid.NewString(),
	}
}

// Get returns the bars for symbol/timeframe/[startTs,endTs), fetching from
// the Provider at most once per key even under concurrent callers.
func (c *Cache) Get(ctx context.Context, symbol string, timeframe bar.Timeframe, sessionMode string, startTs, endTs time.Time, traceID string) ([]bar.Bar, error) {
	key := cacheKey(symbol, string(timeframe), sessionMode, startTs.Unix(), endTs.Unix())

	if bars, ok := c.tryRead(ctx, key); ok {
		c.metrics.CacheHit.Inc()
		return bars, nil
	}

	acquired, err := c.redis.SetNX(ctx, lockKey(key), c.instanceID+":"+traceID, lockTTL)
	if err != nil {
		// Any cache-layer failure degrades to a direct provider fetch; the
		// caller always gets bars or an error, never partial data.
		return c.fetchDirect(ctx, symbol, timeframe, startTs, endTs, traceID)
	}

	if acquired {
		c.metrics.CacheMiss.Inc()
		return c.populate(ctx, key, symbol, timeframe, startTs, endTs, traceID)
	}

	return c.waitForHolder(ctx, key, symbol, timeframe, startTs, endTs, traceID)
}

func (c *Cache) tryRead(ctx context.Context, key string) ([]bar.Bar, bool) {
	payload, err := c.redis.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	bars, err := decode(payload)
	if err != nil {
		return nil, false
	}
	return bars, true
}

// populate runs as the lock holder: it starts a renewal goroutine, fetches
// from the provider, writes the entry, then releases the lock and pending
// sentinel.
func (c *Cache) populate(ctx context.Context, key, symbol string, timeframe bar.Timeframe, startTs, endTs time.Time, traceID string) ([]bar.Bar, error) {
	if err := c.redis.Set(ctx, pendingKey(key), c.instanceID, pendingTTL); err != nil {
		return c.fetchDirect(ctx, symbol, timeframe, startTs, endTs, traceID)
	}

	renewCtx, stopRenew := context.WithCancel(ctx)
	renewDone := make(chan struct{})
	go c.renewLoop(renewCtx, key, renewDone)

	result, err := c.provider.Fetch(ctx, symbol, timeframe, startTs, endTs, traceID)

	stopRenew()
	<-renewDone

	if err != nil {
		_ = c.redis.Del(ctx, lockKey(key), pendingKey(key))
		return nil, err
	}
	c.metrics.ProviderFetch.Inc()

	payload, encErr := encode(result.Bars)
	if encErr == nil {
		if setErr := c.redis.Set(ctx, key, payload, entryTTL); setErr == nil {
			c.metrics.CacheSet.Inc()
			c.metrics.Bytes.Add(float64(len(payload)))
		}
	}

	_ = c.redis.Del(ctx, lockKey(key), pendingKey(key))
	return result.Bars, nil
}

func (c *Cache) renewLoop(ctx context.Context, key string, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(renewInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.redis.Expire(ctx, lockKey(key), lockTTL)
			_ = c.redis.Expire(ctx, pendingKey(key), pendingTTL)
		}
	}
}

// waitForHolder polls for the lock holder to populate the cache entry,
// using an increasing-backoff interval. If the pending sentinel disappears
// for pendingGoneLimit consecutive checks past a grace period, the holder
// is assumed dead and this caller falls back to fetching directly.
func (c *Cache) waitForHolder(ctx context.Context, key, symbol string, timeframe bar.Timeframe, startTs, endTs time.Time, traceID string) ([]bar.Bar, error) {
	c.metrics.LockWaits.Inc()

	interval := waitStart
	start := time.Now()
	pendingGoneStreak := 0

	for {
		if bars, ok := c.tryRead(ctx, key); ok {
			c.metrics.StampedePrevented.Inc()
			return bars, nil
		}

		if time.Since(start) > pendingGraceWait {
			exists, err := c.redis.Exists(ctx, pendingKey(key))
			if err == nil && !exists {
				pendingGoneStreak++
			} else {
				pendingGoneStreak = 0
			}
			if pendingGoneStreak >= pendingGoneLimit {
				if bars, ok := c.tryRead(ctx, key); ok {
					c.metrics.StampedePrevented.Inc()
					return bars, nil
				}
				c.metrics.StampedeFallback.Inc()
				return c.fetchDirect(ctx, symbol, timeframe, startTs, endTs, traceID)
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		interval += waitStep
		if interval > waitCap {
			interval = waitCap
		}
	}
}

func (c *Cache) fetchDirect(ctx context.Context, symbol string, timeframe bar.Timeframe, startTs, endTs time.Time, traceID string) ([]bar.Bar, error) {
	result, err := c.provider.Fetch(ctx, symbol, timeframe, startTs, endTs, traceID)
	if err != nil {
		return nil, err
	}
	c.metrics.ProviderFetch.Inc()
	return result.Bars, nil
}

// encode compresses bars to their compact array form, gzips, then
// base64-encodes the result for storage as a Redis string value.
func encode(bars []bar.Bar) (string, error) {
	compact := make([]bar.Compact, len(bars))
	for i, b := range bars {
		compact[i] = b.ToCompact()
	}
	raw, err := json.Marshal(compact)
	if err != nil {
		return "", fmt.Errorf("barcache: marshal: %w", err)
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(raw); err != nil {
		return "", fmt.Errorf("barcache: gzip: %w", err)
	}
	if err := gw.Close(); err != nil {
		return "", fmt.Errorf("barcache: gzip close: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func decode(payload string) ([]bar.Bar, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("barcache: base64: %w", err)
	}

	gr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("barcache: gzip reader: %w", err)
	}
	defer gr.Close()

	decompressed, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("barcache: gzip read: %w", err)
	}

	var compact []bar.Compact
	if err := json.Unmarshal(decompressed, &compact); err != nil {
		return nil, fmt.Errorf("barcache: unmarshal: %w", err)
	}

	bars := make([]bar.Bar, len(compact))
	for i, c := range compact {
		bars[i] = bar.FromCompact(c)
	}
	return bars, nil
}
