package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradingfloor/platform/internal/audit"
	"github.com/tradingfloor/platform/internal/domain/fleet"
	"github.com/tradingfloor/platform/internal/storage"
	"github.com/tradingfloor/platform/pkg/logger"
)

type staticPositions []Position

func (s staticPositions) OpenPositions(_ context.Context) ([]Position, error) { return s, nil }

type staticAccounts struct {
	peak, current, dailyPnl float64
}

func (a staticAccounts) PeakEquity(_ context.Context) (float64, error)       { return a.peak, nil }
func (a staticAccounts) CurrentEquity(_ context.Context) (float64, error)    { return a.current, nil }
func (a staticAccounts) DailyRealizedPnl(_ context.Context) (float64, error) { return a.dailyPnl, nil }

func TestFleetCycleEntersSoftThenHardOnDrawdown(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()

	engine := NewFleetEngine(staticPositions{}, staticAccounts{peak: 100000, current: 88000}, mem.Fleet(), audit.NewChain(mem.Audit()), nil, logger.NewDefault("test"))
	require.NoError(t, engine.RunCycle(ctx))

	state, err := mem.Fleet().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, fleet.TierSoft, state.Tier)

	engine2 := NewFleetEngine(staticPositions{}, staticAccounts{peak: 100000, current: 83000}, mem.Fleet(), audit.NewChain(mem.Audit()), nil, logger.NewDefault("test"))
	require.NoError(t, engine2.RunCycle(ctx))
	state, err = mem.Fleet().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, fleet.TierHard, state.Tier)
}

func TestFleetSelfHealsOneTierPerCycle(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	chain := audit.NewChain(mem.Audit())

	require.NoError(t, mem.Fleet().Save(ctx, fleet.State{Tier: fleet.TierHard}))

	recovered := NewFleetEngine(staticPositions{}, staticAccounts{peak: 100000, current: 98000}, mem.Fleet(), chain, nil, logger.NewDefault("test"))
	require.NoError(t, recovered.RunCycle(ctx))

	state, err := mem.Fleet().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, fleet.TierSoft, state.Tier)
	assert.True(t, state.SelfHealingActive)

	require.NoError(t, recovered.RunCycle(ctx))
	state, err = mem.Fleet().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, fleet.TierNormal, state.Tier)
}

func TestFleetContractLimitViolation(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()

	positions := staticPositions{{Symbol: "MES", Sector: "index", GrossContracts: 600, NotionalDollar: 1000}}
	engine := NewFleetEngine(positions, staticAccounts{peak: 100000, current: 100000}, mem.Fleet(), audit.NewChain(mem.Audit()), nil, logger.NewDefault("test"))
	require.NoError(t, engine.RunCycle(ctx))

	state, err := mem.Fleet().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, fleet.TierHard, state.Tier)
}

func TestCanOpenPositionOnlyAtNormalTier(t *testing.T) {
	assert.True(t, CanOpenPosition(fleet.TierNormal))
	assert.False(t, CanOpenPosition(fleet.TierSoft))
	assert.False(t, CanOpenPosition(fleet.TierHard))
	assert.False(t, CanOpenPosition(fleet.TierEmergency))
}
