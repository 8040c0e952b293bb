package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradingfloor/platform/internal/audit"
	"github.com/tradingfloor/platform/internal/barcache"
	"github.com/tradingfloor/platform/internal/domain/bar"
	"github.com/tradingfloor/platform/internal/domain/bot"
	"github.com/tradingfloor/platform/internal/domain/generation"
	"github.com/tradingfloor/platform/internal/domain/session"
	"github.com/tradingfloor/platform/internal/metrics"
	"github.com/tradingfloor/platform/internal/storage"
	"github.com/tradingfloor/platform/pkg/logger"
)

func newTestService(mem *storage.Memory) *Service {
	cache := barcache.New(newMemRedis(), barcache.SimulatedProvider{Seed: 12345}, metrics.NewBarCache(nil), logger.NewDefault("test"))
	executor := New(cache, metrics.NewFleet(nil), logger.NewDefault("test"))
	return NewService(executor, mem.Bots(), mem.Generations(), mem.Sessions(), mem.Trades(), audit.NewChain(mem.Audit()), logger.NewDefault("test"), true, false)
}

func createBotWithGeneration(t *testing.T, mem *storage.Memory) (bot.Bot, generation.Generation) {
	t.Helper()
	ctx := context.Background()

	b, err := mem.Bots().Create(ctx, bot.Bot{
		Name:        "MES Breakout",
		Symbol:      "MES",
		ArchetypeID: "breakout",
		Stage:       bot.StagePaper,
		SessionMode: bot.SessionRTHUS,
	})
	require.NoError(t, err)

	gen, err := mem.Generations().Create(ctx, generation.Generation{
		BotID:          b.ID,
		Number:         1,
		StrategyConfig: map[string]interface{}{"stopLossTicks": 20.0},
	})
	require.NoError(t, err)

	b.CurrentGenerationID = gen.ID
	b, err = mem.Bots().Update(ctx, b)
	require.NoError(t, err)

	return b, gen
}

func TestRunBacktestPersistsSessionTradesAndBaseline(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	b, gen := createBotWithGeneration(t, mem)

	svc := newTestService(mem)
	result, err := svc.RunBacktest(ctx, RunRequest{
		BotID:          b.ID,
		Timeframe:      bar.TF5m,
		StartTs:        time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		EndTs:          time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		InitialCapital: 10000,
	})
	require.NoError(t, err)
	require.Equal(t, session.StatusCompleted, result.Session.Status)

	storedSession, err := mem.Sessions().Get(ctx, result.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, storedSession.Status)

	trades, err := mem.Trades().ListBySession(ctx, result.Session.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, trades)
	for _, tr := range trades {
		assert.NotEmpty(t, tr.ID)
	}

	updatedGen, err := mem.Generations().Get(ctx, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Session.ID, updatedGen.BaselineBacktestID)
	require.NotNil(t, updatedGen.PerformanceSnapshot)
	assert.True(t, updatedGen.PerformanceSnapshot.TotalTrades > 0)

	entries, err := mem.Audit().ListByEntity(ctx, "bot", b.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "BACKTEST_COMPLETED", entries[0].EventType)
}

func TestRunBacktestFailureStillRecordsBaselineAttempt(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	b, gen := createBotWithGeneration(t, mem)
	b.Symbol = "BTC" // unsupported instrument, fails closed at step 1
	b, err := mem.Bots().Update(ctx, b)
	require.NoError(t, err)

	svc := newTestService(mem)
	result, err := svc.RunBacktest(ctx, RunRequest{
		BotID:          b.ID,
		Timeframe:      bar.TF5m,
		StartTs:        time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		EndTs:          time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		InitialCapital: 10000,
	})
	require.Error(t, err)
	require.Equal(t, session.StatusFailed, result.Session.Status)

	updatedGen, err := mem.Generations().Get(ctx, gen.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, updatedGen.BaselineBacktestID)
	assert.False(t, updatedGen.BaselineValid)
	assert.Nil(t, updatedGen.PerformanceSnapshot)
}

func TestRunCycleSkipsGenerationWithExistingBaseline(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	b, gen := createBotWithGeneration(t, mem)

	gen.BaselineBacktestID = "already-run"
	_, err := mem.Generations().Update(ctx, gen)
	require.NoError(t, err)

	svc := newTestService(mem)
	require.NoError(t, svc.RunCycle(ctx))

	sessions, err := mem.Sessions().ListByBot(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRunCycleSkipsKilledBots(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()

	b, err := mem.Bots().Create(ctx, bot.Bot{Stage: bot.StageKilled, CurrentGenerationID: "g1"})
	require.NoError(t, err)

	svc := newTestService(mem)
	require.NoError(t, svc.RunCycle(ctx))

	sessions, err := mem.Sessions().ListByBot(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRunCycleRunsBacktestForGenerationMissingBaseline(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	b, gen := createBotWithGeneration(t, mem)

	svc := newTestService(mem)
	require.NoError(t, svc.RunCycle(ctx))

	updatedGen, err := mem.Generations().Get(ctx, gen.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, updatedGen.BaselineBacktestID)

	sessions, err := mem.Sessions().ListByBot(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}
