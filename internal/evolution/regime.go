package evolution

import (
	"math"
	"time"

	"github.com/tradingfloor/platform/internal/domain/bar"
)

// MarketRegime is the per-symbol technical classification (spec §4.6).
type MarketRegime string

const (
	RegimeBull          MarketRegime = "BULL"
	RegimeBear          MarketRegime = "BEAR"
	RegimeSideways      MarketRegime = "SIDEWAYS"
	RegimeHighVolatility MarketRegime = "HIGH_VOLATILITY"
	RegimeLowVolatility  MarketRegime = "LOW_VOLATILITY"
	RegimeUnknown        MarketRegime = "UNKNOWN"
)

// MacroRegime is an optional externally-supplied macro overlay; empty
// means "not available" and the unified regime falls back to the
// technical regime alone.
type MacroRegime string

const (
	MacroExpansion  MacroRegime = "EXPANSION"
	MacroContraction MacroRegime = "CONTRACTION"
	MacroRecession   MacroRegime = "RECESSION"
	MacroNone        MacroRegime = ""
)

// UnifiedRegime is the combined technical+macro label that drives the
// static archetype/multiplier matrix.
type UnifiedRegime string

const (
	UnifiedBullExpansion    UnifiedRegime = "BULL_EXPANSION"
	UnifiedBullContraction  UnifiedRegime = "BULL_CONTRACTION"
	UnifiedBearExpansion    UnifiedRegime = "BEAR_EXPANSION"
	UnifiedBearRecession    UnifiedRegime = "BEAR_RECESSION"
	UnifiedSidewaysStable   UnifiedRegime = "SIDEWAYS_STABLE"
	UnifiedHighVolCrisis    UnifiedRegime = "HIGH_VOL_CRISIS"
	UnifiedLowVolCompression UnifiedRegime = "LOW_VOL_COMPRESSION"
	UnifiedTransition       UnifiedRegime = "TRANSITION"
	UnifiedUnknown          UnifiedRegime = "UNKNOWN"
)

// RegimeCacheTTL and BurstResearchCooldown are the cadence constants spec
// §4.6 pins: a 5-minute per-symbol regime cache, 4-hour research cooldown.
const (
	RegimeCacheTTL        = 5 * time.Minute
	BurstResearchCooldown = 4 * time.Hour
)

// Detection is the output of technical regime detection over a daily-bar
// window: the raw statistics plus the classified regime.
type Detection struct {
	Regime          MarketRegime
	Volatility      float64
	AverageReturn   float64
	TrendStrength   float64
	PriceRangePct   float64
	VolumeZScore    float64
}

// DetectRegime classifies a symbol's technical regime from ~30 days of
// daily bars (spec §4.6): volatility (stddev of daily returns), average
// return, trend strength (moving-average spread plus directional bias),
// price range, and volume profile.
func DetectRegime(bars []bar.Bar) Detection {
	if len(bars) < 2 {
		return Detection{Regime: RegimeUnknown}
	}

	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, (bars[i].Close-prev)/prev)
	}
	if len(returns) == 0 {
		return Detection{Regime: RegimeUnknown}
	}

	avgReturn := mean(returns)
	vol := stddev(returns, avgReturn)

	shortMA := movingAverage(bars, shortWindow(len(bars)))
	longMA := movingAverage(bars, len(bars))
	trendStrength := 0.0
	if longMA != 0 {
		trendStrength = (shortMA - longMA) / longMA
	}

	high, low := bars[0].High, bars[0].Low
	var volumeSum float64
	for _, b := range bars {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
		volumeSum += b.Volume
	}
	priceRangePct := 0.0
	last := bars[len(bars)-1].Close
	if last != 0 {
		priceRangePct = (high - low) / last * 100
	}
	avgVolume := volumeSum / float64(len(bars))
	volumeZScore := 0.0
	if avgVolume != 0 {
		volumeZScore = (bars[len(bars)-1].Volume - avgVolume) / avgVolume
	}

	d := Detection{
		Volatility:    vol,
		AverageReturn: avgReturn,
		TrendStrength: trendStrength,
		PriceRangePct: priceRangePct,
		VolumeZScore:  volumeZScore,
	}
	d.Regime = classify(d)
	return d
}

const (
	highVolThreshold = 0.020
	lowVolThreshold  = 0.006
	trendThreshold   = 0.02
)

func classify(d Detection) MarketRegime {
	switch {
	case d.Volatility >= highVolThreshold:
		return RegimeHighVolatility
	case d.Volatility <= lowVolThreshold && math.Abs(d.TrendStrength) < trendThreshold:
		return RegimeLowVolatility
	case d.TrendStrength >= trendThreshold && d.AverageReturn > 0:
		return RegimeBull
	case d.TrendStrength <= -trendThreshold && d.AverageReturn < 0:
		return RegimeBear
	case math.Abs(d.TrendStrength) < trendThreshold:
		return RegimeSideways
	default:
		return RegimeUnknown
	}
}

// Unify combines a technical regime with an optional macro overlay into
// the unified label that drives the archetype/multiplier matrix.
func Unify(technical MarketRegime, macro MacroRegime) UnifiedRegime {
	if technical == RegimeHighVolatility {
		return UnifiedHighVolCrisis
	}
	if technical == RegimeLowVolatility {
		return UnifiedLowVolCompression
	}
	switch technical {
	case RegimeBull:
		if macro == MacroContraction {
			return UnifiedBullContraction
		}
		return UnifiedBullExpansion
	case RegimeBear:
		if macro == MacroRecession {
			return UnifiedBearRecession
		}
		return UnifiedBearExpansion
	case RegimeSideways:
		return UnifiedSidewaysStable
	default:
		if macro == MacroNone {
			return UnifiedUnknown
		}
		return UnifiedTransition
	}
}

// RegimeProfile is one row of the static unified-regime matrix.
type RegimeProfile struct {
	OptimalArchetypes     []string
	AcceptableArchetypes  []string
	AvoidArchetypes       []string
	PositionMultiplier    float64
	StopLossMultiplier    float64
	TakeProfitMultiplier  float64
	MutationRate          float64
	MutationStrength      float64
}

// regimeMatrix is the static table spec §4.6 calls for: every unified
// regime maps to archetype guidance plus position/stop/target multipliers
// and the regime_aware mutation rate/strength override.
var regimeMatrix = map[UnifiedRegime]RegimeProfile{
	UnifiedBullExpansion: {
		OptimalArchetypes:    []string{"breakout", "trend_continuation", "momentum_surge"},
		AcceptableArchetypes: []string{"vwap_touch", "gap_fill"},
		AvoidArchetypes:      []string{"mean_reversion"},
		PositionMultiplier:   1.20, StopLossMultiplier: 1.10, TakeProfitMultiplier: 1.30,
		MutationRate: 0.15, MutationStrength: 0.20,
	},
	UnifiedBullContraction: {
		OptimalArchetypes:    []string{"vwap_touch", "gap_fill"},
		AcceptableArchetypes: []string{"breakout", "range_scalp"},
		AvoidArchetypes:      []string{"momentum_surge"},
		PositionMultiplier:   0.90, StopLossMultiplier: 0.90, TakeProfitMultiplier: 1.00,
		MutationRate: 0.15, MutationStrength: 0.20,
	},
	UnifiedBearExpansion: {
		OptimalArchetypes:    []string{"reversal", "gap_fade"},
		AcceptableArchetypes: []string{"mean_reversion"},
		AvoidArchetypes:      []string{"breakout", "momentum_surge"},
		PositionMultiplier:   0.80, StopLossMultiplier: 1.10, TakeProfitMultiplier: 0.90,
		MutationRate: 0.20, MutationStrength: 0.25,
	},
	UnifiedBearRecession: {
		OptimalArchetypes:    []string{"gap_fade", "mean_reversion"},
		AcceptableArchetypes: []string{"reversal"},
		AvoidArchetypes:      []string{"breakout", "trend_continuation", "momentum_surge"},
		PositionMultiplier:   0.50, StopLossMultiplier: 1.20, TakeProfitMultiplier: 0.80,
		MutationRate: 0.25, MutationStrength: 0.30,
	},
	UnifiedSidewaysStable: {
		OptimalArchetypes:    []string{"range_scalp", "mean_reversion"},
		AcceptableArchetypes: []string{"vwap_touch", "gap_fade"},
		AvoidArchetypes:      []string{"trend_continuation"},
		PositionMultiplier:   1.00, StopLossMultiplier: 1.00, TakeProfitMultiplier: 1.00,
		MutationRate: 0.10, MutationStrength: 0.15,
	},
	UnifiedHighVolCrisis: {
		OptimalArchetypes:    []string{"gap_fade"},
		AcceptableArchetypes: []string{"reversal"},
		AvoidArchetypes:      []string{"breakout", "momentum_surge", "trend_continuation"},
		PositionMultiplier:   0.40, StopLossMultiplier: 1.50, TakeProfitMultiplier: 0.70,
		MutationRate: 0.40, MutationStrength: 0.50,
	},
	UnifiedLowVolCompression: {
		OptimalArchetypes:    []string{"range_scalp"},
		AcceptableArchetypes: []string{"vwap_touch", "mean_reversion"},
		AvoidArchetypes:      []string{"momentum_surge"},
		PositionMultiplier:   1.10, StopLossMultiplier: 0.80, TakeProfitMultiplier: 0.90,
		MutationRate: 0.05, MutationStrength: 0.10,
	},
	UnifiedTransition: {
		OptimalArchetypes:    []string{},
		AcceptableArchetypes: []string{"vwap_touch", "range_scalp"},
		AvoidArchetypes:      []string{"breakout", "momentum_surge"},
		PositionMultiplier:   0.70, StopLossMultiplier: 1.20, TakeProfitMultiplier: 0.90,
		MutationRate: 0.20, MutationStrength: 0.25,
	},
	UnifiedUnknown: {
		PositionMultiplier: 1.00, StopLossMultiplier: 1.00, TakeProfitMultiplier: 1.00,
		MutationRate: 0.10, MutationStrength: 0.15,
	},
}

// Profile looks up the static matrix row for a unified regime, defaulting
// to the UNKNOWN row for any label not in the table.
func Profile(u UnifiedRegime) RegimeProfile {
	if p, ok := regimeMatrix[u]; ok {
		return p
	}
	return regimeMatrix[UnifiedUnknown]
}

// RegimeMutationOverride returns the regime_aware strategy's effective
// rate/strength: the matrix override if one applies, otherwise the
// archetype's own configured base values.
func RegimeMutationOverride(u UnifiedRegime, baseRate, baseStrength float64) (float64, float64) {
	p := Profile(u)
	rate, strength := baseRate, baseStrength
	if p.MutationRate > 0 {
		rate = p.MutationRate
	}
	if p.MutationStrength > 0 {
		strength = p.MutationStrength
	}
	return rate, strength
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, mu float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - mu
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

func movingAverage(bars []bar.Bar, window int) float64 {
	if window <= 0 || window > len(bars) {
		window = len(bars)
	}
	start := len(bars) - window
	var sum float64
	for _, b := range bars[start:] {
		sum += b.Close
	}
	return sum / float64(window)
}

func shortWindow(total int) int {
	w := total / 3
	if w < 1 {
		return 1
	}
	return w
}
