// Package storage defines the persistence interfaces used by the stage,
// risk, audit, and governance services, plus an in-memory implementation
// suitable for tests and single-process deployments. Grounded on the
// teacher's internal/app/storage package: small per-aggregate interfaces
// backed by one concrete Memory store guarded by a single mutex.
package storage

import (
	"context"
	"errors"

	"github.com/tradingfloor/platform/internal/domain/audit"
	"github.com/tradingfloor/platform/internal/domain/bot"
	"github.com/tradingfloor/platform/internal/domain/fleet"
	"github.com/tradingfloor/platform/internal/domain/generation"
	"github.com/tradingfloor/platform/internal/domain/governance"
	"github.com/tradingfloor/platform/internal/domain/idempotency"
	"github.com/tradingfloor/platform/internal/domain/session"
	"github.com/tradingfloor/platform/internal/domain/trade"
)

// ErrNotFound is returned by Get-style lookups when no row matches.
var ErrNotFound = errors.New("storage: not found")

// ErrAlreadyExists is returned by Create-style calls on a duplicate ID.
var ErrAlreadyExists = errors.New("storage: already exists")

// BotStore persists Bot aggregates.
type BotStore interface {
	Create(ctx context.Context, b bot.Bot) (bot.Bot, error)
	Update(ctx context.Context, b bot.Bot) (bot.Bot, error)
	Get(ctx context.Context, id string) (bot.Bot, error)
	List(ctx context.Context) ([]bot.Bot, error)
	ListByStage(ctx context.Context, stage bot.Stage) ([]bot.Bot, error)
}

// GenerationStore persists Generation snapshots.
type GenerationStore interface {
	Create(ctx context.Context, g generation.Generation) (generation.Generation, error)
	Update(ctx context.Context, g generation.Generation) (generation.Generation, error)
	Get(ctx context.Context, id string) (generation.Generation, error)
	ListByBot(ctx context.Context, botID string) ([]generation.Generation, error)
	LatestByBot(ctx context.Context, botID string) (generation.Generation, error)
}

// SessionStore persists BacktestSession rows.
type SessionStore interface {
	Create(ctx context.Context, s session.Session) (session.Session, error)
	Update(ctx context.Context, s session.Session) (session.Session, error)
	Get(ctx context.Context, id string) (session.Session, error)
	ListByBot(ctx context.Context, botID string) ([]session.Session, error)
}

// TradeStore persists TradeLog rows. CreateBatch is atomic per spec §5's
// "trade-log inserts for one backtest are atomic; either all or none."
type TradeStore interface {
	CreateBatch(ctx context.Context, trades []trade.Trade) error
	ListBySession(ctx context.Context, sessionID string) ([]trade.Trade, error)
}

// GovernanceStore persists dual-control approval rows.
type GovernanceStore interface {
	Create(ctx context.Context, a governance.Approval) (governance.Approval, error)
	Update(ctx context.Context, a governance.Approval) (governance.Approval, error)
	Get(ctx context.Context, id string) (governance.Approval, error)
	PendingByBot(ctx context.Context, botID string) (*governance.Approval, error)
	ListPending(ctx context.Context) ([]governance.Approval, error)
	HistoryByBot(ctx context.Context, botID string, limit int) ([]governance.Approval, error)
}

// AuditStore persists the append-only hash-chained audit log. Append
// assigns the next sequence number itself; callers never set it.
type AuditStore interface {
	Append(ctx context.Context, e audit.Entry) (audit.Entry, error)
	Last(ctx context.Context) (audit.Entry, bool, error)
	List(ctx context.Context) ([]audit.Entry, error)
	ListByEntity(ctx context.Context, entityType, entityID string) ([]audit.Entry, error)
}

// IdempotencyStore persists mutation idempotency records.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (idempotency.Record, bool, error)
	Put(ctx context.Context, r idempotency.Record) error
	Delete(ctx context.Context, key string) error
	Count(ctx context.Context) (int, error)
	Sweep(ctx context.Context, isExpired func(idempotency.Record) bool) (int, error)
	EvictOldest(ctx context.Context, n int) (int, error)
}

// FleetStore persists the singleton FleetRiskState.
type FleetStore interface {
	Get(ctx context.Context) (fleet.State, error)
	Save(ctx context.Context, s fleet.State) error
}
