package evolution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideSkipsBelowMinimumSampleSize(t *testing.T) {
	p, _ := Decide(PerformanceInput{TotalTrades: 19, Sharpe: -1})
	assert.Equal(t, PriorityNone, p)
}

func TestDecideHighOnNegativeSharpe(t *testing.T) {
	p, _ := Decide(PerformanceInput{TotalTrades: 50, Sharpe: -0.2, ProfitFactor: 1.5, WinRate: 50})
	assert.Equal(t, PriorityHigh, p)
}

func TestDecideHighOnDeepDrawdown(t *testing.T) {
	p, _ := Decide(PerformanceInput{TotalTrades: 50, Sharpe: 1.0, MaxDrawdownPct: 20, ProfitFactor: 1.5, WinRate: 50})
	assert.Equal(t, PriorityHigh, p)
}

func TestDecideHighOnSubOneProfitFactor(t *testing.T) {
	p, _ := Decide(PerformanceInput{TotalTrades: 50, Sharpe: 1.0, ProfitFactor: 0.8, WinRate: 50})
	assert.Equal(t, PriorityHigh, p)
}

func TestDecideMediumOnLowWinRate(t *testing.T) {
	p, _ := Decide(PerformanceInput{TotalTrades: 50, Sharpe: 1.0, ProfitFactor: 1.5, WinRate: 30})
	assert.Equal(t, PriorityMedium, p)
}

func TestDecideNoneForHealthyGeneration(t *testing.T) {
	p, fitness := Decide(PerformanceInput{TotalTrades: 50, Sharpe: 1.5, ProfitFactor: 2.0, WinRate: 55, MaxDrawdownPct: 5, Expectancy: 20})
	assert.Equal(t, PriorityNone, p)
	assert.Greater(t, fitness, 0.4)
}

func TestCompositeFitnessWeightsSumToUnity(t *testing.T) {
	f := CompositeFitness(PerformanceInput{Sharpe: 2, ProfitFactor: 3, WinRate: 100, MaxDrawdownPct: 0, Expectancy: 50})
	assert.InDelta(t, 1.0, f, 0.001)
}
