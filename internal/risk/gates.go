// Package risk implements the per-bot risk gates and the fleet-wide
// kill-switch engine (spec §4.4). Grounded on the stage engine's
// lifecycle-worker shape (internal/stage) and on the teacher's
// single-scheduled-task discipline for serializing shared mutable state.
package risk

import "math"

// Level is the block severity a gate returns. WARNING logs only;
// SOFT_BLOCK blocks new position opens but allows exits; HARD_BLOCK pauses
// the bot and routes exits through the broker adapter only.
type Level int

const (
	LevelNone Level = iota
	LevelWarning
	LevelSoftBlock
	LevelHardBlock
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "WARNING"
	case LevelSoftBlock:
		return "SOFT_BLOCK"
	case LevelHardBlock:
		return "HARD_BLOCK"
	default:
		return "NONE"
	}
}

// higher returns the more severe of a and b.
func higher(a, b Level) Level {
	if b > a {
		return b
	}
	return a
}

// DrawdownGate computes (peak-current)/peak*100 and tiers it WARNING
// (>=10%), SOFT_BLOCK (>=15%), HARD_BLOCK (>=20%).
func DrawdownGate(peakEquity, currentEquity float64) (Level, float64) {
	if peakEquity <= 0 {
		return LevelNone, 0
	}
	pct := (peakEquity - currentEquity) / peakEquity * 100
	return tierByThresholds(pct, 10, 15, 20), pct
}

// DailyLossGate computes |dailyPnl|/startOfDayBalance*100 when dailyPnl<0.
// Thresholds are WARNING 2%, SOFT_BLOCK 3%, HARD_BLOCK 5%.
func DailyLossGate(dailyPnl, startOfDayBalance float64) (Level, float64) {
	if dailyPnl >= 0 || startOfDayBalance <= 0 {
		return LevelNone, 0
	}
	pct := math.Abs(dailyPnl) / startOfDayBalance * 100
	return tierByThresholds(pct, 2, 3, 5), pct
}

func tierByThresholds(pct, warn, soft, hard float64) Level {
	switch {
	case pct >= hard:
		return LevelHardBlock
	case pct >= soft:
		return LevelSoftBlock
	case pct >= warn:
		return LevelWarning
	default:
		return LevelNone
	}
}

// BlownAccount reports whether the account is blown: drawdown >= 30% OR
// capital remaining < 10% of starting capital.
func BlownAccount(drawdownPct, capitalRemainingPct float64) bool {
	return drawdownPct >= 30 || capitalRemainingPct < 10
}

// PositionSizeGate blocks a requested size over the configured maximum.
func PositionSizeGate(requestedSize, maxSize float64) Level {
	if maxSize > 0 && requestedSize > maxSize {
		return LevelHardBlock
	}
	return LevelNone
}

// VaRLimitPct is the basic VaR limit: 5% of portfolio value (spec §4.4).
const VaRLimitPct = 0.05

// VaRGate hard-blocks when the computed value-at-risk exceeds 5% of
// portfolio value.
func VaRGate(valueAtRisk, portfolioValue float64) Level {
	if portfolioValue <= 0 {
		return LevelNone
	}
	if valueAtRisk > portfolioValue*VaRLimitPct {
		return LevelHardBlock
	}
	return LevelNone
}

// Evaluation is the combined gate verdict for one candidate position open.
type Evaluation struct {
	Level       Level
	Reasons     []string
	Blown       bool
	DrawdownPct float64
}

// BotInput carries every value the per-bot gates need for one evaluation.
type BotInput struct {
	Killed               bool
	PeakEquity           float64
	CurrentEquity        float64
	DailyPnl             float64
	StartOfDayBalance    float64
	CapitalRemainingPct  float64
	RequestedSize        float64
	MaxPositionSize      float64
	ValueAtRisk          float64
	PortfolioValue       float64
}

// Evaluate runs every per-bot gate and returns the combined, most-severe
// verdict along with the human-readable reasons that produced it.
func Evaluate(in BotInput) Evaluation {
	if in.Killed {
		return Evaluation{Level: LevelHardBlock, Reasons: []string{"bot is KILLED"}}
	}

	eval := Evaluation{}

	if lvl, pct := DrawdownGate(in.PeakEquity, in.CurrentEquity); lvl != LevelNone {
		eval.Level = higher(eval.Level, lvl)
		eval.DrawdownPct = pct
		eval.Reasons = append(eval.Reasons, "drawdown "+lvl.String())
	}
	if lvl, _ := DailyLossGate(in.DailyPnl, in.StartOfDayBalance); lvl != LevelNone {
		eval.Level = higher(eval.Level, lvl)
		eval.Reasons = append(eval.Reasons, "daily loss "+lvl.String())
	}
	if BlownAccount(eval.DrawdownPct, in.CapitalRemainingPct) {
		eval.Blown = true
		eval.Level = LevelHardBlock
		eval.Reasons = append(eval.Reasons, "account blown")
	}
	if lvl := PositionSizeGate(in.RequestedSize, in.MaxPositionSize); lvl != LevelNone {
		eval.Level = higher(eval.Level, lvl)
		eval.Reasons = append(eval.Reasons, "position size exceeds limit")
	}
	if lvl := VaRGate(in.ValueAtRisk, in.PortfolioValue); lvl != LevelNone {
		eval.Level = higher(eval.Level, lvl)
		eval.Reasons = append(eval.Reasons, "VaR exceeds 5% of portfolio")
	}

	return eval
}
