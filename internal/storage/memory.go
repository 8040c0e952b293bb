package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tradingfloor/platform/internal/domain/audit"
	"github.com/tradingfloor/platform/internal/domain/bot"
	"github.com/tradingfloor/platform/internal/domain/fleet"
	"github.com/tradingfloor/platform/internal/domain/generation"
	"github.com/tradingfloor/platform/internal/domain/governance"
	"github.com/tradingfloor/platform/internal/domain/idempotency"
	"github.com/tradingfloor/platform/internal/domain/session"
	"github.com/tradingfloor/platform/internal/domain/trade"
)

// Memory is a thread-safe in-memory implementation of every store interface
// in this package, grounded on the teacher's internal/app/storage.Memory:
// one sync.RWMutex-guarded struct with a shared nextIDLocked() counter.
type Memory struct {
	mu     sync.RWMutex
	nextID int64

	bots        map[string]bot.Bot
	generations map[string]generation.Generation
	sessions    map[string]session.Session
	trades      map[string][]trade.Trade // by session id
	approvals   map[string]governance.Approval
	auditLog    []audit.Entry
	idempotent  map[string]idempotency.Record
	idemOrder   []string // insertion order, for LRU-by-insertion eviction
	fleetState  *fleet.State
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID:      1,
		bots:        make(map[string]bot.Bot),
		generations: make(map[string]generation.Generation),
		sessions:    make(map[string]session.Session),
		trades:      make(map[string][]trade.Trade),
		approvals:   make(map[string]governance.Approval),
		idempotent:  make(map[string]idempotency.Record),
	}
}

func (m *Memory) nextIDLocked() string {
	id := m.nextID
	m.nextID++
	return fmt.Sprintf("%d", id)
}

// Bot store -------------------------------------------------------------

// Bots returns a BotStore view of this Memory instance.
func (m *Memory) Bots() BotStore { return botView{m} }

type botView struct{ m *Memory }

func (v botView) Create(ctx context.Context, b bot.Bot) (bot.Bot, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if b.ID == "" {
		b.ID = m.nextIDLocked()
	} else if _, exists := m.bots[b.ID]; exists {
		return bot.Bot{}, ErrAlreadyExists
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	m.bots[b.ID] = b
	return b, nil
}

func (v botView) Update(ctx context.Context, b bot.Bot) (bot.Bot, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.bots[b.ID]
	if !ok {
		return bot.Bot{}, ErrNotFound
	}
	b.CreatedAt = original.CreatedAt
	b.UpdatedAt = time.Now().UTC()
	m.bots[b.ID] = b
	return b, nil
}

func (v botView) Get(ctx context.Context, id string) (bot.Bot, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bots[id]
	if !ok {
		return bot.Bot{}, ErrNotFound
	}
	return b, nil
}

func (v botView) List(ctx context.Context) ([]bot.Bot, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]bot.Bot, 0, len(m.bots))
	for _, b := range m.bots {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v botView) ListByStage(ctx context.Context, stage bot.Stage) ([]bot.Bot, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]bot.Bot, 0)
	for _, b := range m.bots {
		if b.Stage == stage {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Generation store --------------------------------------------------------

func (m *Memory) Generations() GenerationStore { return generationView{m} }

type generationView struct{ m *Memory }

func (v generationView) Create(ctx context.Context, g generation.Generation) (generation.Generation, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.ID == "" {
		g.ID = m.nextIDLocked()
	} else if _, exists := m.generations[g.ID]; exists {
		return generation.Generation{}, ErrAlreadyExists
	}
	g.CreatedAt = time.Now().UTC()
	m.generations[g.ID] = g
	return g, nil
}

func (v generationView) Update(ctx context.Context, g generation.Generation) (generation.Generation, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	original, ok := m.generations[g.ID]
	if !ok {
		return generation.Generation{}, ErrNotFound
	}
	g.CreatedAt = original.CreatedAt
	m.generations[g.ID] = g
	return g, nil
}

func (v generationView) Get(ctx context.Context, id string) (generation.Generation, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.generations[id]
	if !ok {
		return generation.Generation{}, ErrNotFound
	}
	return g, nil
}

func (v generationView) ListByBot(ctx context.Context, botID string) ([]generation.Generation, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]generation.Generation, 0)
	for _, g := range m.generations {
		if g.BotID == botID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (v generationView) LatestByBot(ctx context.Context, botID string) (generation.Generation, error) {
	all, _ := v.ListByBot(ctx, botID)
	if len(all) == 0 {
		return generation.Generation{}, ErrNotFound
	}
	return all[len(all)-1], nil
}

// Session store -------------------------------------------------------------

func (m *Memory) Sessions() SessionStore { return sessionView{m} }

type sessionView struct{ m *Memory }

func (v sessionView) Create(ctx context.Context, s session.Session) (session.Session, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = m.nextIDLocked()
	} else if _, exists := m.sessions[s.ID]; exists {
		return session.Session{}, ErrAlreadyExists
	}
	s.CreatedAt = time.Now().UTC()
	m.sessions[s.ID] = s
	return s, nil
}

func (v sessionView) Update(ctx context.Context, s session.Session) (session.Session, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	original, ok := m.sessions[s.ID]
	if !ok {
		return session.Session{}, ErrNotFound
	}
	s.CreatedAt = original.CreatedAt
	m.sessions[s.ID] = s
	return s, nil
}

func (v sessionView) Get(ctx context.Context, id string) (session.Session, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return session.Session{}, ErrNotFound
	}
	return s, nil
}

func (v sessionView) ListByBot(ctx context.Context, botID string) ([]session.Session, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]session.Session, 0)
	for _, s := range m.sessions {
		if s.BotID == botID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Trade store ---------------------------------------------------------------

func (m *Memory) Trades() TradeStore { return tradeView{m} }

type tradeView struct{ m *Memory }

// CreateBatch is atomic: it stages the batch locally and only mutates the
// store once every row is ready, so a panic or error mid-build leaves no
// partial session trade list behind.
func (v tradeView) CreateBatch(ctx context.Context, trades []trade.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	sessionID := trades[0].BacktestSessionID
	staged := make([]trade.Trade, len(trades))
	copy(staged, trades)

	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades[sessionID] = append(m.trades[sessionID], staged...)
	return nil
}

func (v tradeView) ListBySession(ctx context.Context, sessionID string) ([]trade.Trade, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]trade.Trade, len(m.trades[sessionID]))
	copy(out, m.trades[sessionID])
	return out, nil
}

// Governance store ------------------------------------------------------

func (m *Memory) Governance() GovernanceStore { return governanceView{m} }

type governanceView struct{ m *Memory }

func (v governanceView) Create(ctx context.Context, a governance.Approval) (governance.Approval, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = m.nextIDLocked()
	} else if _, exists := m.approvals[a.ID]; exists {
		return governance.Approval{}, ErrAlreadyExists
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	m.approvals[a.ID] = a
	return a, nil
}

func (v governanceView) Update(ctx context.Context, a governance.Approval) (governance.Approval, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	original, ok := m.approvals[a.ID]
	if !ok {
		return governance.Approval{}, ErrNotFound
	}
	a.CreatedAt = original.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	m.approvals[a.ID] = a
	return a, nil
}

func (v governanceView) Get(ctx context.Context, id string) (governance.Approval, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.approvals[id]
	if !ok {
		return governance.Approval{}, ErrNotFound
	}
	return a, nil
}

// PendingByBot enforces "duplicate PENDING requests per bot are rejected"
// by giving callers a cheap existence check before Create.
func (v governanceView) PendingByBot(ctx context.Context, botID string) (*governance.Approval, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.approvals {
		if a.BotID == botID && a.Status == governance.StatusPending {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (v governanceView) ListPending(ctx context.Context) ([]governance.Approval, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]governance.Approval, 0)
	for _, a := range m.approvals {
		if a.Status == governance.StatusPending {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (v governanceView) HistoryByBot(ctx context.Context, botID string, limit int) ([]governance.Approval, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]governance.Approval, 0)
	for _, a := range m.approvals {
		if a.BotID == botID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Audit store -----------------------------------------------------------

func (m *Memory) Audit() AuditStore { return auditView{m} }

type auditView struct{ m *Memory }

// Append assigns the next sequence number under the same lock that reads
// the prior row, so sequence numbers stay monotonic and gap-free (spec §8
// invariant 1) even under concurrent callers.
func (v auditView) Append(ctx context.Context, e audit.Entry) (audit.Entry, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	e.SequenceNumber = int64(len(m.auditLog)) + 1
	e.CreatedAt = time.Now().UTC()
	m.auditLog = append(m.auditLog, e)
	return e, nil
}

func (v auditView) Last(ctx context.Context) (audit.Entry, bool, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.auditLog) == 0 {
		return audit.Entry{}, false, nil
	}
	return m.auditLog[len(m.auditLog)-1], true, nil
}

func (v auditView) List(ctx context.Context) ([]audit.Entry, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]audit.Entry, len(m.auditLog))
	copy(out, m.auditLog)
	return out, nil
}

func (v auditView) ListByEntity(ctx context.Context, entityType, entityID string) ([]audit.Entry, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]audit.Entry, 0)
	for _, e := range m.auditLog {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Idempotency store -------------------------------------------------------

func (m *Memory) Idempotency() IdempotencyStore { return idempotencyView{m} }

type idempotencyView struct{ m *Memory }

func (v idempotencyView) Get(ctx context.Context, key string) (idempotency.Record, bool, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.idempotent[key]
	return r, ok, nil
}

func (v idempotencyView) Put(ctx context.Context, r idempotency.Record) error {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.idempotent[r.Key]; !exists {
		m.idemOrder = append(m.idemOrder, r.Key)
	}
	m.idempotent[r.Key] = r
	return nil
}

func (v idempotencyView) Delete(ctx context.Context, key string) error {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotent, key)
	m.removeFromOrderLocked(key)
	return nil
}

func (v idempotencyView) Count(ctx context.Context) (int, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.idempotent), nil
}

// Sweep removes every record for which isExpired reports true, returning
// the number removed. Grounds the hourly cleanup task (spec §4.5).
func (v idempotencyView) Sweep(ctx context.Context, isExpired func(idempotency.Record) bool) (int, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, key := range append([]string(nil), m.idemOrder...) {
		r, ok := m.idempotent[key]
		if !ok {
			continue
		}
		if isExpired(r) {
			delete(m.idempotent, key)
			m.removeFromOrderLocked(key)
			removed++
		}
	}
	return removed, nil
}

// EvictOldest removes the n oldest-inserted records (LRU by insertion time),
// implementing the 10k-record overflow policy (spec §4.5).
func (v idempotencyView) EvictOldest(ctx context.Context, n int) (int, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.idemOrder) {
		n = len(m.idemOrder)
	}
	removed := 0
	for i := 0; i < n; i++ {
		key := m.idemOrder[i]
		if _, ok := m.idempotent[key]; ok {
			delete(m.idempotent, key)
			removed++
		}
	}
	m.idemOrder = m.idemOrder[n:]
	return removed, nil
}

func (m *Memory) removeFromOrderLocked(key string) {
	for i, k := range m.idemOrder {
		if k == key {
			m.idemOrder = append(m.idemOrder[:i], m.idemOrder[i+1:]...)
			return
		}
	}
}

// Fleet store -------------------------------------------------------------

func (m *Memory) Fleet() FleetStore { return fleetView{m} }

type fleetView struct{ m *Memory }

func (v fleetView) Get(ctx context.Context) (fleet.State, error) {
	m := v.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fleetState == nil {
		return fleet.State{Tier: fleet.TierNormal}, nil
	}
	return *m.fleetState, nil
}

func (v fleetView) Save(ctx context.Context, s fleet.State) error {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fleetState = &s
	return nil
}
