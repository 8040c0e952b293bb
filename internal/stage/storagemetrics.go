package stage

import (
	"context"
	"sort"
	"time"

	domainaudit "github.com/tradingfloor/platform/internal/domain/audit"
	"github.com/tradingfloor/platform/internal/storage"
)

// ScoreSource supplies the confidence/uniqueness scores that spec §1 places
// behind an out-of-scope LLM signal-cascade provider. StorageMetricsSource
// treats it as an injectable external contract; callers with no real
// provider get a neutral pass-through default instead of a nil pointer.
type ScoreSource interface {
	ScoresFor(ctx context.Context, botID string) (confidence, uniqueness float64, err error)
}

// neutralScores is the ScoreSource used when no real provider is wired: it
// reports scores exactly at the TRIALS→PAPER gate threshold so an unwired
// bot neither promotes nor hard-stops purely on missing signal data.
type neutralScores struct{}

func (neutralScores) ScoresFor(ctx context.Context, botID string) (float64, float64, error) {
	return 65.0, 40.0, nil
}

// StorageMetricsSource implements MetricsSource by reading the bot's current
// generation snapshot, its audit history, and its trade log straight out of
// storage, grounded on the teacher's read-model pattern of composing several
// small stores instead of one denormalized metrics table.
type StorageMetricsSource struct {
	bots        storage.BotStore
	generations storage.GenerationStore
	sessions    storage.SessionStore
	trades      storage.TradeStore
	auditLog    storage.AuditStore
	scores      ScoreSource
	now         func() time.Time
}

// NewStorageMetricsSource builds a StorageMetricsSource. A nil scores falls
// back to neutralScores.
func NewStorageMetricsSource(bots storage.BotStore, generations storage.GenerationStore, sessions storage.SessionStore, trades storage.TradeStore, auditLog storage.AuditStore, scores ScoreSource) *StorageMetricsSource {
	if scores == nil {
		scores = neutralScores{}
	}
	return &StorageMetricsSource{
		bots:        bots,
		generations: generations,
		sessions:    sessions,
		trades:      trades,
		auditLog:    auditLog,
		scores:      scores,
		now:         time.Now,
	}
}

// MetricsFor assembles one Metrics value for botID. Trade-statistics fields
// come straight from the bot's current generation's PerformanceSnapshot
// (nil snapshot means every statistics field stays null, which correctly
// trips the SEV-0 hard stop upstream). DaysInStage and ConsecutiveLosingDays
// are derived, never stored directly.
func (s *StorageMetricsSource) MetricsFor(ctx context.Context, botID string) (Metrics, error) {
	b, err := s.bots.Get(ctx, botID)
	if err != nil {
		return Metrics{}, err
	}

	var m Metrics

	if b.CurrentGenerationID != "" {
		gen, err := s.generations.Get(ctx, b.CurrentGenerationID)
		if err == nil && gen.PerformanceSnapshot != nil {
			snap := gen.PerformanceSnapshot
			totalTrades := snap.TotalTrades
			m.TotalTrades = &totalTrades
			m.WinRate = floatPtr(snap.WinRate)
			m.Sharpe = floatPtr(snap.Sharpe)
			m.ProfitFactor = floatPtr(snap.ProfitFactor)
			m.MaxDrawdownPct = floatPtr(snap.MaxDrawdownPct)
			m.Expectancy = floatPtr(snap.Expectancy)
		}
	}

	if confidence, uniqueness, err := s.scores.ScoresFor(ctx, botID); err == nil {
		m.ConfidenceScore = &confidence
		m.UniquenessScore = &uniqueness
	}

	m.DaysInStage = s.daysInStage(ctx, botID, b.CreatedAt)
	m.ConsecutiveLosingDays = s.consecutiveLosingDays(ctx, botID)

	return m, nil
}

func floatPtr(v float64) *float64 { return &v }

// daysInStage counts whole days since the bot's most recent PROMOTED or
// DEMOTED audit entry, falling back to createdAt when no such entry exists:
// a bot that has never transitioned has been in its first stage since
// creation.
func (s *StorageMetricsSource) daysInStage(ctx context.Context, botID string, createdAt time.Time) int {
	since := createdAt
	entries, err := s.auditLog.ListByEntity(ctx, "bot", botID)
	if err == nil {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].SequenceNumber > entries[j].SequenceNumber
		})
		for _, e := range entries {
			if e.EventType == domainaudit.EventPromoted || e.EventType == domainaudit.EventDemoted {
				since = e.CreatedAt
				break
			}
		}
	}
	return int(s.now().Sub(since).Hours() / 24)
}

// consecutiveLosingDays walks the bot's sessions newest-first, grouping
// trades by calendar day and counting consecutive net-losing days from the
// most recent day backward, stopping at the first day that wasn't a net
// loss. Days with no trades do not appear and do not break the streak.
func (s *StorageMetricsSource) consecutiveLosingDays(ctx context.Context, botID string) int {
	sessions, err := s.sessions.ListByBot(ctx, botID)
	if err != nil || len(sessions) == 0 {
		return 0
	}

	dayPnl := map[string]float64{}
	for _, sess := range sessions {
		trades, err := s.trades.ListBySession(ctx, sess.ID)
		if err != nil {
			continue
		}
		for _, t := range trades {
			day := t.ExitTime.Format("2006-01-02")
			dayPnl[day] += t.NetPnl
		}
	}
	if len(dayPnl) == 0 {
		return 0
	}

	days := make([]string, 0, len(dayPnl))
	for d := range dayPnl {
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	streak := 0
	for _, d := range days {
		if dayPnl[d] < 0 {
			streak++
			continue
		}
		break
	}
	return streak
}
