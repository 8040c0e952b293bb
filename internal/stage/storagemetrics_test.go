package stage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainaudit "github.com/tradingfloor/platform/internal/domain/audit"
	"github.com/tradingfloor/platform/internal/domain/bot"
	"github.com/tradingfloor/platform/internal/domain/generation"
	"github.com/tradingfloor/platform/internal/domain/session"
	"github.com/tradingfloor/platform/internal/domain/trade"
	"github.com/tradingfloor/platform/internal/storage"
)

func TestStorageMetricsSourcePullsSnapshotFromCurrentGeneration(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()

	b, err := mem.Bots().Create(ctx, bot.Bot{Stage: bot.StageTrials})
	require.NoError(t, err)

	gen, err := mem.Generations().Create(ctx, generation.Generation{
		BotID:  b.ID,
		Number: 1,
		PerformanceSnapshot: &generation.PerformanceSnapshot{
			TotalTrades: 25, WinRate: 55, Sharpe: 1.1, ProfitFactor: 1.6, MaxDrawdownPct: 8, Expectancy: 12,
		},
	})
	require.NoError(t, err)

	b.CurrentGenerationID = gen.ID
	b, err = mem.Bots().Update(ctx, b)
	require.NoError(t, err)

	src := NewStorageMetricsSource(mem.Bots(), mem.Generations(), mem.Sessions(), mem.Trades(), mem.Audit(), nil)
	m, err := src.MetricsFor(ctx, b.ID)
	require.NoError(t, err)

	require.NotNil(t, m.TotalTrades)
	assert.Equal(t, 25, *m.TotalTrades)
	assert.Equal(t, 55.0, *m.WinRate)
	assert.Equal(t, 1.1, *m.Sharpe)
	require.NotNil(t, m.ConfidenceScore)
	assert.Equal(t, 65.0, *m.ConfidenceScore)
}

func TestStorageMetricsSourceNoGenerationLeavesStatisticsNull(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()

	b, err := mem.Bots().Create(ctx, bot.Bot{Stage: bot.StageTrials})
	require.NoError(t, err)

	src := NewStorageMetricsSource(mem.Bots(), mem.Generations(), mem.Sessions(), mem.Trades(), mem.Audit(), nil)
	m, err := src.MetricsFor(ctx, b.ID)
	require.NoError(t, err)

	assert.Nil(t, m.Sharpe)
	assert.Nil(t, m.TotalTrades)
}

type stubScores struct{ confidence, uniqueness float64 }

func (s stubScores) ScoresFor(_ context.Context, _ string) (float64, float64, error) {
	return s.confidence, s.uniqueness, nil
}

func TestStorageMetricsSourceUsesInjectedScoreSource(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()

	b, err := mem.Bots().Create(ctx, bot.Bot{Stage: bot.StageTrials})
	require.NoError(t, err)

	src := NewStorageMetricsSource(mem.Bots(), mem.Generations(), mem.Sessions(), mem.Trades(), mem.Audit(), stubScores{confidence: 90, uniqueness: 77})
	m, err := src.MetricsFor(ctx, b.ID)
	require.NoError(t, err)

	require.NotNil(t, m.ConfidenceScore)
	assert.Equal(t, 90.0, *m.ConfidenceScore)
	assert.Equal(t, 77.0, *m.UniquenessScore)
}

func TestStorageMetricsSourceDaysInStageFromMostRecentPromotion(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()

	b, err := mem.Bots().Create(ctx, bot.Bot{Stage: bot.StagePaper})
	require.NoError(t, err)

	_, err = mem.Audit().Append(ctx, domainaudit.Entry{
		EventType:  domainaudit.EventPromoted,
		EntityType: "bot",
		EntityID:   b.ID,
	})
	require.NoError(t, err)

	src := NewStorageMetricsSource(mem.Bots(), mem.Generations(), mem.Sessions(), mem.Trades(), mem.Audit(), nil)
	promotedAt := mustLastEntryCreatedAt(t, mem, b.ID)
	src.now = func() time.Time { return promotedAt.Add(3 * 24 * time.Hour) }

	m, err := src.MetricsFor(ctx, b.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, m.DaysInStage)
}

func TestStorageMetricsSourceDaysInStageFallsBackToCreatedAt(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()

	b, err := mem.Bots().Create(ctx, bot.Bot{Stage: bot.StageTrials})
	require.NoError(t, err)

	src := NewStorageMetricsSource(mem.Bots(), mem.Generations(), mem.Sessions(), mem.Trades(), mem.Audit(), nil)
	src.now = func() time.Time { return b.CreatedAt.Add(7 * 24 * time.Hour) }

	m, err := src.MetricsFor(ctx, b.ID)
	require.NoError(t, err)

	assert.Equal(t, 7, m.DaysInStage)
}

func mustLastEntryCreatedAt(t *testing.T, mem *storage.Memory, botID string) time.Time {
	t.Helper()
	entries, err := mem.Audit().ListByEntity(context.Background(), "bot", botID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	return entries[len(entries)-1].CreatedAt
}

func TestStorageMetricsSourceConsecutiveLosingDaysStopsAtFirstWinningDay(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()

	b, err := mem.Bots().Create(ctx, bot.Bot{Stage: bot.StageShadow})
	require.NoError(t, err)

	sess, err := mem.Sessions().Create(ctx, session.Session{BotID: b.ID})
	require.NoError(t, err)

	now := time.Now()
	err = mem.Trades().CreateBatch(ctx, []trade.Trade{
		{ID: "t1", BacktestSessionID: sess.ID, ExitTime: now, NetPnl: -10},
		{ID: "t2", BacktestSessionID: sess.ID, ExitTime: now.Add(-24 * time.Hour), NetPnl: -5},
		{ID: "t3", BacktestSessionID: sess.ID, ExitTime: now.Add(-48 * time.Hour), NetPnl: 20},
		{ID: "t4", BacktestSessionID: sess.ID, ExitTime: now.Add(-72 * time.Hour), NetPnl: -50},
	})
	require.NoError(t, err)

	src := NewStorageMetricsSource(mem.Bots(), mem.Generations(), mem.Sessions(), mem.Trades(), mem.Audit(), nil)
	m, err := src.MetricsFor(ctx, b.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, m.ConsecutiveLosingDays)
}
