package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/tradingfloor/platform/internal/domain/idempotency"
	"github.com/tradingfloor/platform/internal/platform/lifecycle"
	"github.com/tradingfloor/platform/internal/storage"
)

const maxCachedResponseBytes = 1 << 20 // 1 MB, spec §4.5

const (
	storeOverflowLimit = 10000
	evictBatchFraction = 10 // evict the oldest 10% on overflow
)

// ErrStillProcessing signals the 409 "still processing" response.
var ErrStillProcessing = errors.New("idempotency: request still processing")

// ErrKeyReuseConflict signals the 422 "same key, different body" response.
var ErrKeyReuseConflict = errors.New("idempotency: key reused with different body")

// Outcome is what the caller should do after Begin.
type Outcome int

const (
	// OutcomeExecute means no prior record exists; the caller must execute
	// the underlying operation and call Complete or Fail.
	OutcomeExecute Outcome = iota
	// OutcomeReplay means a completed record exists; return CachedResponse.
	OutcomeReplay
)

// BeginResult is returned by Begin.
type BeginResult struct {
	Outcome  Outcome
	Replayed *idempotency.CachedResponse
}

// Middleware implements the exactly-once mutation contract of spec §4.5.
type Middleware struct {
	store storage.IdempotencyStore
}

// NewMiddleware wraps store with idempotency-key semantics.
func NewMiddleware(store storage.IdempotencyStore) *Middleware {
	return &Middleware{store: store}
}

// RequestHash computes sha256(method+path+canonicalBody) per spec §4.5.
func RequestHash(method, path string, canonicalBody []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write(canonicalBody)
	return hex.EncodeToString(h.Sum(nil))
}

// Begin looks up key and decides what the caller should do next.
func (m *Middleware) Begin(ctx context.Context, key, requestHash string) (BeginResult, error) {
	rec, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return BeginResult{}, err
	}
	if !ok {
		if err := m.insertProcessing(ctx, key, requestHash); err != nil {
			return BeginResult{}, err
		}
		return BeginResult{Outcome: OutcomeExecute}, nil
	}

	if rec.RequestHash != requestHash {
		return BeginResult{}, ErrKeyReuseConflict
	}

	switch rec.Status {
	case idempotency.StatusProcessing:
		return BeginResult{}, ErrStillProcessing
	case idempotency.StatusCompleted:
		return BeginResult{Outcome: OutcomeReplay, Replayed: rec.CachedResponse}, nil
	case idempotency.StatusFailed:
		// Failed → allow retry: delete the record, start fresh.
		if err := m.store.Delete(ctx, key); err != nil {
			return BeginResult{}, err
		}
		if err := m.insertProcessing(ctx, key, requestHash); err != nil {
			return BeginResult{}, err
		}
		return BeginResult{Outcome: OutcomeExecute}, nil
	}
	return BeginResult{Outcome: OutcomeExecute}, nil
}

func (m *Middleware) insertProcessing(ctx context.Context, key, requestHash string) error {
	if err := m.evictIfOverflowing(ctx); err != nil {
		return err
	}
	return m.store.Put(ctx, idempotency.Record{
		Key:         key,
		RequestHash: requestHash,
		Status:      idempotency.StatusProcessing,
		CreatedAt:   time.Now().UTC(),
	})
}

// Complete records a successful execution. Responses over the 1 MB cap are
// dropped (not stored) rather than truncated, forcing a clean re-execution
// on retry instead of serving a half-cached response.
func (m *Middleware) Complete(ctx context.Context, key, requestHash string, statusCode int, body []byte, headers map[string]string) error {
	if statusCode >= 500 {
		return m.Fail(ctx, key, requestHash)
	}
	if len(body) > maxCachedResponseBytes {
		return m.store.Delete(ctx, key)
	}
	rec := idempotency.Record{
		Key:         key,
		RequestHash: requestHash,
		Status:      idempotency.StatusCompleted,
		CreatedAt:   time.Now().UTC(),
	}
	if len(body) <= maxCachedResponseBytes {
		rec.CachedResponse = &idempotency.CachedResponse{
			StatusCode: statusCode,
			Body:       body,
			Headers:    headers,
		}
	}
	return m.store.Put(ctx, rec)
}

// Fail marks the record failed, allowing the next attempt to start fresh.
func (m *Middleware) Fail(ctx context.Context, key, requestHash string) error {
	return m.store.Put(ctx, idempotency.Record{
		Key:         key,
		RequestHash: requestHash,
		Status:      idempotency.StatusFailed,
		CreatedAt:   time.Now().UTC(),
	})
}

func (m *Middleware) evictIfOverflowing(ctx context.Context) error {
	count, err := m.store.Count(ctx)
	if err != nil {
		return err
	}
	if count < storeOverflowLimit {
		return nil
	}
	_, err = m.store.EvictOldest(ctx, count/evictBatchFraction)
	return err
}

// CleanupWorker returns a lifecycle.Service that sweeps TTL-expired records
// once an hour, per spec §4.5's "a cleanup task runs hourly."
func (m *Middleware) CleanupWorker() lifecycle.Service {
	return lifecycle.NewTickerWorker("idempotency-cleanup", time.Hour, func(ctx context.Context) {
		_, _ = m.store.Sweep(ctx, func(r idempotency.Record) bool {
			return r.Expired(time.Now().UTC())
		})
	})
}
