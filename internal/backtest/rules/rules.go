package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// StrategyRules is the derived (never stored) structure the execution loop
// evaluates bar by bar.
type StrategyRules struct {
	Version            string
	Archetype           string
	EntryConditionType  EntryConditionType
	EntryParams         map[string]float64
	Confirmations       []string
	Invalidations       []string
	Exit                ExitRules
	Risk                RiskBlock
	Session             SessionBlock
	RelaxedFlagsApplied []string
}

// ExitRules bundles the exit parameters from spec §4.2's archetype-agnostic
// exit handling.
type ExitRules struct {
	StopLossTicks        float64
	TakeProfitTicks       float64
	TrailingEnabled       bool
	TrailingActivateTicks float64
	TrailingDistance      float64
	TimeStopEnabled       bool
	TimeStopBars          int
}

// RiskBlock carries the per-trade risk parameters baked into the rules.
type RiskBlock struct {
	MaxPositionSize float64
	Quantity        float64
	SlippageTicks   float64
}

// SessionBlock carries the trading-window parameters.
type SessionBlock struct {
	TradingDays     []string
	RTHStart        string // "HH:MM"
	RTHEnd          string
	NoTradeWindows  [][2]string
}

// relaxationFlags are the flag names activated in TRIALS profile.
var relaxationFlags = []string{"WIDER_RSI_BANDS", "SKIP_VOLUME_CONFIRM", "LOWER_THRESHOLDS", "RELAXED_ENTRY"}

// defaultEntryParams returns the production and TRIALS-relaxed parameter set
// for each archetype's entry predicate (spec §4.2's "entry predicates" list).
func defaultEntryParams(ec EntryConditionType, relaxed bool) map[string]float64 {
	switch ec {
	case Breakout:
		if relaxed {
			return map[string]float64{"lookback": 10, "thresholdPct": 0.05}
		}
		return map[string]float64{"lookback": 20, "thresholdPct": 0.15}
	case MeanReversion:
		if relaxed {
			return map[string]float64{"rsiLow": 35, "rsiHigh": 65, "deviationAtr": 1.0}
		}
		return map[string]float64{"rsiLow": 25, "rsiHigh": 75, "deviationAtr": 2.0}
	case VWAPTouch:
		if relaxed {
			return map[string]float64{"bandAtr": 0.5, "reclaim": 0}
		}
		return map[string]float64{"bandAtr": 0.25, "reclaim": 1}
	case TrendContinuation:
		if relaxed {
			return map[string]float64{"fastPeriod": 9, "slowPeriod": 21, "momentumAgree": 0}
		}
		return map[string]float64{"fastPeriod": 9, "slowPeriod": 21, "momentumAgree": 1}
	case GapFade, GapFill:
		if relaxed {
			return map[string]float64{"gapAtrThreshold": 0.5}
		}
		return map[string]float64{"gapAtrThreshold": 1.0}
	case Reversal:
		if relaxed {
			return map[string]float64{"rsiExtreme": 70, "requireCandle": 0, "volumeMultiple": 1.0}
		}
		return map[string]float64{"rsiExtreme": 80, "requireCandle": 1, "volumeMultiple": 1.5}
	case RangeScalp:
		if relaxed {
			return map[string]float64{"lookback": 10, "bandPct": 0.3}
		}
		return map[string]float64{"lookback": 20, "bandPct": 0.15}
	case MomentumSurge:
		if relaxed {
			return map[string]float64{"momentumThreshold": 0.3, "volumeMultiple": 1.2}
		}
		return map[string]float64{"momentumThreshold": 0.6, "volumeMultiple": 1.8}
	default:
		return map[string]float64{}
	}
}

// defaultConfirmations returns the confirmation checks for the archetype,
// dropping the TRIALS-only-excluded ones when relaxed is true.
func defaultConfirmations(ec EntryConditionType, relaxed bool) []string {
	all := map[EntryConditionType][]string{
		Breakout:          {"volume_multiple", "trend_side"},
		MeanReversion:     {"volatility_bound"},
		VWAPTouch:         {"trend_side"},
		TrendContinuation: {"momentum_sign"},
		GapFade:           {"volume_multiple"},
		GapFill:           {"volume_multiple"},
		Reversal:          {"volume_multiple"},
		RangeScalp:        {"volatility_bound"},
		MomentumSurge:     {"volume_multiple", "momentum_sign"},
	}
	confirmations := all[ec]
	if !relaxed {
		return confirmations
	}
	// TRIALS relaxation skips volume confirmation (SKIP_VOLUME_CONFIRM).
	out := make([]string, 0, len(confirmations))
	for _, c := range confirmations {
		if c == "volume_multiple" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Build constructs StrategyRules from an archetype and strategyConfig
// overrides, implementing spec §4.2 step 6.
func Build(archetype string, ec EntryConditionType, strategyConfig map[string]interface{}, relaxed bool) StrategyRules {
	params := defaultEntryParams(ec, relaxed)
	for k, v := range strategyConfig {
		if f, ok := toFloat(v); ok {
			if _, known := params[k]; known {
				params[k] = f
			}
		}
	}

	sr := StrategyRules{
		Version:           "1.0",
		Archetype:         archetype,
		EntryConditionType: ec,
		EntryParams:       params,
		Confirmations:     defaultConfirmations(ec, relaxed),
		Invalidations:     []string{"spread_too_wide"},
		Exit: ExitRules{
			StopLossTicks:         configFloat(strategyConfig, "stopLossTicks", 20),
			TakeProfitTicks:       configFloat(strategyConfig, "takeProfitTicks", 40),
			TrailingEnabled:       configBool(strategyConfig, "trailingEnabled", false),
			TrailingActivateTicks: configFloat(strategyConfig, "trailingActivateTicks", 20),
			TrailingDistance:      configFloat(strategyConfig, "trailingDistance", 10),
			TimeStopEnabled:       configBool(strategyConfig, "timeStopEnabled", false),
			TimeStopBars:          int(configFloat(strategyConfig, "timeStopBars", 40)),
		},
		Risk: RiskBlock{
			MaxPositionSize: configFloat(strategyConfig, "maxPositionSize", 1),
			Quantity:        configFloat(strategyConfig, "quantity", 1),
			SlippageTicks:   configFloat(strategyConfig, "slippageTicks", 1),
		},
		Session: SessionBlock{
			TradingDays: []string{"MON", "TUE", "WED", "THU", "FRI"},
			RTHStart:    "09:30",
			RTHEnd:      "16:15",
		},
	}
	if relaxed {
		sr.RelaxedFlagsApplied = relaxationFlags
	}
	return sr
}

// Hash computes the SHA-256 of the canonical (deterministically ordered)
// JSON serialization of rules, per spec §3's rulesHash definition.
func (r StrategyRules) Hash() string {
	canonical := canonicalize(r)
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// canonicalize serializes r with map keys sorted, so identical rules always
// hash identically regardless of Go map iteration order.
func canonicalize(r StrategyRules) []byte {
	type canon struct {
		Version            string
		Archetype          string
		EntryConditionType EntryConditionType
		EntryParams        []kv
		Confirmations      []string
		Invalidations      []string
		Exit               ExitRules
		Risk               RiskBlock
		Session             SessionBlock
		RelaxedFlagsApplied []string
	}
	c := canon{
		Version:            r.Version,
		Archetype:          r.Archetype,
		EntryConditionType: r.EntryConditionType,
		EntryParams:        sortedKV(r.EntryParams),
		Confirmations:      r.Confirmations,
		Invalidations:      r.Invalidations,
		Exit:               r.Exit,
		Risk:               r.Risk,
		Session:            r.Session,
		RelaxedFlagsApplied: r.RelaxedFlagsApplied,
	}
	b, _ := json.Marshal(c)
	return b
}

type kv struct {
	Key   string
	Value float64
}

func sortedKV(m map[string]float64) []kv {
	out := make([]kv, 0, len(m))
	for k, v := range m {
		out = append(out, kv{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func configFloat(m map[string]interface{}, key string, def float64) float64 {
	if v, ok := m[key]; ok {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return def
}

func configBool(m map[string]interface{}, key string, def bool) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}
