package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradingfloor/platform/internal/domain/bot"
)

func f(v float64) *float64 { return &v }
func n(v int) *int         { return &v }

func TestEvaluatePromotionTrialsToPaper(t *testing.T) {
	m := Metrics{
		Sharpe: f(1), MaxDrawdownPct: f(5), WinRate: f(50), TotalTrades: n(15), ProfitFactor: f(1.5),
		ConfidenceScore: f(70), UniquenessScore: f(50),
	}
	eligible, reasons := EvaluatePromotion(bot.StageTrials, bot.StagePaper, m)
	assert.True(t, eligible, reasons)
}

func TestEvaluatePromotionHardStopOnNullMetric(t *testing.T) {
	m := Metrics{Sharpe: nil, MaxDrawdownPct: f(5), WinRate: f(50), TotalTrades: n(15), ProfitFactor: f(1.5)}
	eligible, reasons := EvaluatePromotion(bot.StageTrials, bot.StagePaper, m)
	assert.False(t, eligible)
	assert.Contains(t, reasons[0], "sharpe is null")
}

func TestEvaluatePromotionLiveRequires50Trades(t *testing.T) {
	m := Metrics{Sharpe: f(1), MaxDrawdownPct: f(5), WinRate: f(50), TotalTrades: n(49), ProfitFactor: f(1.5)}
	eligible, reasons := EvaluatePromotion(bot.StageCanary, bot.StageLive, m)
	assert.False(t, eligible)
	assert.Contains(t, reasons[0], "minimum sample size")
}

func TestEvaluatePromotionShadowToCanaryGates(t *testing.T) {
	m := Metrics{
		Sharpe: f(0.5), MaxDrawdownPct: f(20), WinRate: f(40), TotalTrades: n(30), ProfitFactor: f(1.0),
		DaysInStage: 2,
	}
	eligible, reasons := EvaluatePromotion(bot.StageShadow, bot.StageCanary, m)
	assert.False(t, eligible)
	assert.Len(t, reasons, 5)
}

func TestEvaluatePromotionRejectsNonOneStep(t *testing.T) {
	m := Metrics{Sharpe: f(1), MaxDrawdownPct: f(5), WinRate: f(50), TotalTrades: n(100), ProfitFactor: f(1.5)}
	eligible, _ := EvaluatePromotion(bot.StageTrials, bot.StageShadow, m)
	assert.False(t, eligible)
}

func TestEvaluateDemotionLiveToCanaryOnDrawdown(t *testing.T) {
	m := Metrics{MaxDrawdownPct: f(25), ProfitFactor: f(1.5)}
	d := EvaluateDemotion(bot.StageLive, m)
	assert.True(t, d.Demote)
	assert.Equal(t, bot.StageCanary, d.Target)
}

func TestEvaluateDemotionNoneWhenHealthy(t *testing.T) {
	m := Metrics{MaxDrawdownPct: f(5), ProfitFactor: f(2.0)}
	d := EvaluateDemotion(bot.StageLive, m)
	assert.False(t, d.Demote)
}

func TestEvaluateDemotionShadowToPaperOnWinRate(t *testing.T) {
	m := Metrics{WinRate: f(20)}
	d := EvaluateDemotion(bot.StageShadow, m)
	assert.True(t, d.Demote)
	assert.Equal(t, bot.StagePaper, d.Target)
}
