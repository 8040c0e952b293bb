package backtest

import (
	"github.com/tradingfloor/platform/internal/backtest/rules"
	"github.com/tradingfloor/platform/internal/domain/bar"
	"github.com/tradingfloor/platform/internal/domain/trade"
)

// evaluateEntry implements spec §4.2's entry-predicate switch: one branch
// per canonical entry-condition type, each consulting the params built by
// rules.Build (which already carries the TRIALS-relaxed alternates).
func evaluateEntry(sr rules.StrategyRules, ind *indicatorSet, window *rollingWindow, b bar.Bar, prevDayOpen, prevClose float64) (bool, trade.Side, string) {
	p := sr.EntryParams

	switch sr.EntryConditionType {
	case rules.Breakout:
		lookback := int(p["lookback"])
		threshold := p["thresholdPct"] / 100
		high := window.highN(lookback)
		low := window.lowN(lookback)
		if high > 0 && b.Close > high*(1+threshold) {
			return true, trade.Long, "breakout_up"
		}
		if low > 0 && b.Close < low*(1-threshold) {
			return true, trade.Short, "breakout_down"
		}

	case rules.MeanReversion:
		if ind.atr14.Value == 0 {
			return false, "", ""
		}
		deviation := (ind.vwap.Value - b.Close) / ind.atr14.Value
		if ind.rsi14.Value < p["rsiLow"] && deviation > p["deviationAtr"] {
			return true, trade.Long, "mean_reversion_long"
		}
		if ind.rsi14.Value > p["rsiHigh"] && -deviation > p["deviationAtr"] {
			return true, trade.Short, "mean_reversion_short"
		}

	case rules.VWAPTouch:
		if ind.atr14.Value == 0 {
			return false, "", ""
		}
		distance := absf(b.Close - ind.vwap.Value)
		if distance <= p["bandAtr"]*ind.atr14.Value {
			if b.Close >= ind.vwap.Value {
				return true, trade.Long, "vwap_touch_long"
			}
			return true, trade.Short, "vwap_touch_short"
		}

	case rules.TrendContinuation:
		momentumAgrees := p["momentumAgree"] == 0 || ind.momentum10.Value > 0
		momentumAgreesShort := p["momentumAgree"] == 0 || ind.momentum10.Value < 0
		if ind.emaFast.Value > ind.emaSlow.Value && b.Close > ind.emaFast.Value && momentumAgrees {
			return true, trade.Long, "trend_continuation_long"
		}
		if ind.emaFast.Value < ind.emaSlow.Value && b.Close < ind.emaFast.Value && momentumAgreesShort {
			return true, trade.Short, "trend_continuation_short"
		}

	case rules.GapFade:
		if ind.atr14.Value == 0 || prevDayOpen == 0 {
			return false, "", ""
		}
		gap := (b.Open - prevDayOpen) / ind.atr14.Value
		if gap > p["gapAtrThreshold"] {
			return true, trade.Short, "gap_fade_short"
		}
		if gap < -p["gapAtrThreshold"] {
			return true, trade.Long, "gap_fade_long"
		}

	case rules.GapFill:
		if ind.atr14.Value == 0 || prevDayOpen == 0 {
			return false, "", ""
		}
		gap := (b.Open - prevDayOpen) / ind.atr14.Value
		if gap > p["gapAtrThreshold"] {
			return true, trade.Short, "gap_fill_short"
		}
		if gap < -p["gapAtrThreshold"] {
			return true, trade.Long, "gap_fill_long"
		}

	case rules.Reversal:
		const localExtremeLookback = 10
		high := window.highN(localExtremeLookback)
		low := window.lowN(localExtremeLookback)
		candleOK := p["requireCandle"] == 0 || (b.Close != b.Open)
		if b.Close >= high && ind.rsi14.Value >= p["rsiExtreme"] && candleOK {
			return true, trade.Short, "reversal_short"
		}
		if b.Close <= low && ind.rsi14.Value <= (100-p["rsiExtreme"]) && candleOK {
			return true, trade.Long, "reversal_long"
		}

	case rules.RangeScalp:
		lookback := int(p["lookback"])
		high := window.highN(lookback)
		low := window.lowN(lookback)
		band := (high - low) * p["bandPct"]
		if high == 0 && low == 0 {
			return false, "", ""
		}
		if b.Close <= low+band {
			return true, trade.Long, "range_scalp_long"
		}
		if b.Close >= high-band {
			return true, trade.Short, "range_scalp_short"
		}

	case rules.MomentumSurge:
		if b.Close == 0 {
			return false, "", ""
		}
		pctMove := ind.momentum10.Value / b.Close * 100
		if pctMove > p["momentumThreshold"] && ind.emaFast.Value > ind.emaSlow.Value {
			return true, trade.Long, "momentum_surge_long"
		}
		if -pctMove > p["momentumThreshold"] && ind.emaFast.Value < ind.emaSlow.Value {
			return true, trade.Short, "momentum_surge_short"
		}
	}

	return false, "", ""
}

// passesConfirmations evaluates sr.Confirmations in order; a single failure
// rejects the signal (spec §4.2 "flat" branch).
func passesConfirmations(sr rules.StrategyRules, ind *indicatorSet, side trade.Side, volMultiple float64) bool {
	for _, c := range sr.Confirmations {
		switch c {
		case "volume_multiple":
			threshold := sr.EntryParams["volumeMultiple"]
			if threshold == 0 {
				threshold = 1.0
			}
			if volMultiple < threshold {
				return false
			}
		case "trend_side":
			if side == trade.Long && ind.emaFast.Value < ind.emaSlow.Value {
				return false
			}
			if side == trade.Short && ind.emaFast.Value > ind.emaSlow.Value {
				return false
			}
		case "momentum_sign":
			if side == trade.Long && ind.momentum10.Value < 0 {
				return false
			}
			if side == trade.Short && ind.momentum10.Value > 0 {
				return false
			}
		case "volatility_bound":
			if ind.atr14.Value <= 0 {
				return false
			}
		}
	}
	// "spread_too_wide" has no modeled bid/ask spread on compact OHLCV bars,
	// so the sole invalidation never rejects a signal here.
	return true
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
