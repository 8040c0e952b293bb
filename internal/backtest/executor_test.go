package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradingfloor/platform/internal/barcache"
	"github.com/tradingfloor/platform/internal/domain/bar"
	"github.com/tradingfloor/platform/internal/domain/session"
	"github.com/tradingfloor/platform/internal/metrics"
	"github.com/tradingfloor/platform/pkg/logger"
)

type memRedis struct {
	values map[string]string
}

func newMemRedis() *memRedis { return &memRedis{values: map[string]string{}} }

func (m *memRedis) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", barcache.ErrNotFound
	}
	return v, nil
}
func (m *memRedis) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value
	return true, nil
}
func (m *memRedis) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.values[key] = value
	return nil
}
func (m *memRedis) Expire(_ context.Context, _ string, _ time.Duration) error { return nil }
func (m *memRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}
func (m *memRedis) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.values[key]
	return ok, nil
}

func newTestExecutor() *Executor {
	cache := barcache.New(newMemRedis(), barcache.SimulatedProvider{Seed: 12345}, metrics.NewBarCache(nil), logger.NewDefault("test"))
	return New(cache, metrics.NewFleet(nil), logger.NewDefault("test"))
}

func baseInput() Input {
	return Input{
		BotID:            "b1",
		SessionID:        "s1",
		GenerationID:     "g1",
		BotName:          "MES Breakout",
		StoredArchetypeID: "breakout",
		Stage:            "PAPER",
		SessionMode:      "RTH_US",
		Symbol:           "MES",
		Timeframe:        bar.TF5m,
		StartTs:          time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		EndTs:            time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		InitialCapital:   10000,
		AllowSimFallback: true,
		TraceID:          "trace-1",
		StrategyConfig:   map[string]interface{}{"stopLossTicks": 20.0},
	}
}

func TestDeterministicReplay(t *testing.T) {
	in := baseInput()
	in.EndTs = in.StartTs.Add(18 * 24 * time.Hour)

	r1, err1 := newTestExecutor().Run(context.Background(), in)
	r2, err2 := newTestExecutor().Run(context.Background(), in)

	assert.Equal(t, err1 == nil, err2 == nil)
	assert.Equal(t, r1.Session.RulesHash, r2.Session.RulesHash)
	assert.Equal(t, r1.Session.Status, r2.Session.Status)
	assert.Equal(t, len(r1.Trades), len(r2.Trades))

	if r1.Session.Status == session.StatusCompleted && r1.Session.Metrics != nil {
		require.NotNil(t, r2.Session.Metrics)
		assert.InDelta(t, r1.Session.Metrics.NetPnl, r2.Session.Metrics.NetPnl, 0.001)
	}
}

func TestArchetypeInferenceFromBotName(t *testing.T) {
	in := baseInput()
	in.StoredArchetypeID = ""
	in.ConfigArchetype = ""
	in.BotName = "MNQ Gap Fade"
	in.Symbol = "MNQ"

	result, _ := newTestExecutor().Run(context.Background(), in)
	assert.Equal(t, "GAP_FADE", result.Session.ExpectedEntryCondition)
}

func TestArchetypeInferenceFailureHaltsSession(t *testing.T) {
	in := baseInput()
	in.StoredArchetypeID = ""
	in.ConfigArchetype = ""
	in.BotName = "Zephyr Strategy 42"

	result, err := newTestExecutor().Run(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, session.StatusFailed, result.Session.Status)
	assert.Equal(t, "ARCHETYPE_INFERENCE_FAILED", string(result.Session.ErrorClassification.Code))
	assert.True(t, result.Session.ErrorClassification.ShouldHalt)
}

func TestInstrumentNotSupportedFailsClosed(t *testing.T) {
	in := baseInput()
	in.Symbol = "BTC"

	result, err := newTestExecutor().Run(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, session.StatusFailed, result.Session.Status)
	assert.Equal(t, "INSTRUMENT_NOT_SUPPORTED", string(result.Session.ErrorClassification.Code))
}

func TestNoRealProviderWithoutFallbackFails(t *testing.T) {
	in := baseInput()
	in.AllowSimFallback = false
	in.HasRealProvider = false

	result, err := newTestExecutor().Run(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, "DATA_PROVENANCE_VIOLATION", string(result.Session.ErrorClassification.Code))
}

func TestTrialsStageAppliesRelaxedProfile(t *testing.T) {
	in := baseInput()
	in.Stage = "TRIALS"

	result, _ := newTestExecutor().Run(context.Background(), in)
	assert.Equal(t, session.RulesProfileTrialsRelaxed, result.Session.RulesProfileUsed)
	assert.NotEmpty(t, result.Session.RelaxedFlagsApplied)
}
