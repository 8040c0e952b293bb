package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradingfloor/platform/internal/audit"
	"github.com/tradingfloor/platform/internal/domain/bot"
	"github.com/tradingfloor/platform/internal/storage"
	"github.com/tradingfloor/platform/pkg/logger"
)

type staticMetrics map[string]Metrics

func (s staticMetrics) MetricsFor(_ context.Context, botID string) (Metrics, error) {
	return s[botID], nil
}

func TestRunCycleAutoPromotesTrialsBot(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()

	b, err := mem.Bots().Create(ctx, bot.Bot{Stage: bot.StageTrials})
	require.NoError(t, err)

	metrics := staticMetrics{
		b.ID: {Sharpe: f(1), MaxDrawdownPct: f(5), WinRate: f(50), TotalTrades: n(15), ProfitFactor: f(1.5),
			ConfidenceScore: f(70), UniquenessScore: f(50)},
	}

	engine := New(mem.Bots(), metrics, audit.NewChain(mem.Audit()), logger.NewDefault("test"))
	require.NoError(t, engine.RunCycle(ctx))

	updated, err := mem.Bots().Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, bot.StagePaper, updated.Stage)

	entries, err := mem.Audit().List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "PROMOTED", entries[0].EventType)
}

func TestRunCycleDemotesBeforePromoting(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()

	b, err := mem.Bots().Create(ctx, bot.Bot{Stage: bot.StageLive})
	require.NoError(t, err)

	metrics := staticMetrics{
		b.ID: {MaxDrawdownPct: f(25), ProfitFactor: f(0.5)},
	}
	engine := New(mem.Bots(), metrics, audit.NewChain(mem.Audit()), logger.NewDefault("test"))
	require.NoError(t, engine.RunCycle(ctx))

	updated, err := mem.Bots().Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, bot.StageCanary, updated.Stage)
}

func TestRunCycleSkipsManualPromotionModeBot(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()

	b, err := mem.Bots().Create(ctx, bot.Bot{Stage: bot.StageTrials, ManualPromotionMode: true})
	require.NoError(t, err)

	metrics := staticMetrics{
		b.ID: {Sharpe: f(1), MaxDrawdownPct: f(5), WinRate: f(50), TotalTrades: n(15), ProfitFactor: f(1.5),
			ConfidenceScore: f(90), UniquenessScore: f(90)},
	}
	engine := New(mem.Bots(), metrics, audit.NewChain(mem.Audit()), logger.NewDefault("test"))
	require.NoError(t, engine.RunCycle(ctx))

	updated, err := mem.Bots().Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, bot.StageTrials, updated.Stage)
}

func TestRunCycleSkipsKilledAndLockedBots(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()

	killed, err := mem.Bots().Create(ctx, bot.Bot{Stage: bot.StageKilled})
	require.NoError(t, err)

	engine := New(mem.Bots(), staticMetrics{}, audit.NewChain(mem.Audit()), logger.NewDefault("test"))
	require.NoError(t, engine.RunCycle(ctx))

	entries, err := mem.Audit().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	reFetched, err := mem.Bots().Get(ctx, killed.ID)
	require.NoError(t, err)
	assert.Equal(t, bot.StageKilled, reFetched.Stage)
}
