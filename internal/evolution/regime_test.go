package evolution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradingfloor/platform/internal/domain/bar"
)

func dailyBars(closes []float64) []bar.Bar {
	bars := make([]bar.Bar, len(closes))
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = bar.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c, High: c * 1.01, Low: c * 0.99, Close: c,
			Volume: 1000,
		}
	}
	return bars
}

func TestDetectRegimeTooFewBarsIsUnknown(t *testing.T) {
	d := DetectRegime(dailyBars([]float64{100}))
	assert.Equal(t, RegimeUnknown, d.Regime)
}

func TestDetectRegimeBullTrend(t *testing.T) {
	closes := make([]float64, 30)
	price := 100.0
	for i := range closes {
		price *= 1.01
		closes[i] = price
	}
	d := DetectRegime(dailyBars(closes))
	assert.Equal(t, RegimeBull, d.Regime)
}

func TestDetectRegimeHighVolatilityDominatesTrend(t *testing.T) {
	closes := make([]float64, 30)
	price := 100.0
	for i := range closes {
		if i%2 == 0 {
			price *= 1.08
		} else {
			price *= 0.93
		}
		closes[i] = price
	}
	d := DetectRegime(dailyBars(closes))
	assert.Equal(t, RegimeHighVolatility, d.Regime)
}

func TestDetectRegimeCompletelyFlatIsLowVolatility(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	d := DetectRegime(dailyBars(closes))
	assert.Equal(t, RegimeLowVolatility, d.Regime)
}

func TestDetectRegimeChoppyRangeIsSideways(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100.8
		} else {
			closes[i] = 99.2
		}
	}
	d := DetectRegime(dailyBars(closes))
	assert.Equal(t, RegimeSideways, d.Regime)
}

func TestUnifyBullWithContractionMacro(t *testing.T) {
	assert.Equal(t, UnifiedBullContraction, Unify(RegimeBull, MacroContraction))
	assert.Equal(t, UnifiedBullExpansion, Unify(RegimeBull, MacroNone))
}

func TestUnifyHighVolIsAlwaysCrisisRegardlessOfMacro(t *testing.T) {
	assert.Equal(t, UnifiedHighVolCrisis, Unify(RegimeHighVolatility, MacroExpansion))
}

func TestProfileFallsBackToUnknownRow(t *testing.T) {
	p := Profile(UnifiedRegime("not-a-real-regime"))
	assert.Equal(t, 1.0, p.PositionMultiplier)
}

func TestRegimeMutationOverrideCrisisVsCompression(t *testing.T) {
	rate, strength := RegimeMutationOverride(UnifiedHighVolCrisis, 0.10, 0.15)
	assert.InDelta(t, 0.40, rate, 0.001)
	assert.InDelta(t, 0.50, strength, 0.001)

	rate, strength = RegimeMutationOverride(UnifiedLowVolCompression, 0.10, 0.15)
	assert.InDelta(t, 0.05, rate, 0.001)
	assert.InDelta(t, 0.10, strength, 0.001)
}
