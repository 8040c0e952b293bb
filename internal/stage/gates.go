// Package stage implements the bot stage-transition engine and the
// CANARY→LIVE dual-control governance workflow (spec §4.3). Grounded on the
// teacher's internal/app/services/automation/scheduler.go lifecycle-service
// pattern for the background workers, and on internal/domain/bot's Stage
// ordering for the ladder itself.
package stage

import (
	"github.com/tradingfloor/platform/internal/domain/bot"
)

// Metrics carries the gate-relevant statistics for one evaluation. Pointer
// fields distinguish "null" (not yet computed) from a real zero value, since
// the SEV-0 hard stop (spec §4.3) treats null specially.
type Metrics struct {
	Sharpe                *float64
	WinRate                *float64 // percentage, e.g. 45.0 for 45%
	ProfitFactor           *float64
	MaxDrawdownPct         *float64
	TotalTrades            *int
	Expectancy             *float64
	ConfidenceScore        *float64
	UniquenessScore        *float64
	ConsecutiveLosingDays int
	DaysInStage           int
}

// HardStopResult is the outcome of the SEV-0 null/minimum-sample check that
// runs before any gate table, per spec §4.3.
type HardStopResult struct {
	Blocked bool
	Reason  string
}

// checkHardStop implements: "if any of {Sharpe, maxDrawdown%, winRate,
// totalTrades, profitFactor} is null, or totalTrades < 10 (or < 50 for
// →LIVE), promotion is rejected regardless of other gates. Expectancy-null
// is only a warning."
func checkHardStop(m Metrics, toLive bool) HardStopResult {
	if m.Sharpe == nil {
		return HardStopResult{true, "sharpe is null"}
	}
	if m.MaxDrawdownPct == nil {
		return HardStopResult{true, "maxDrawdownPct is null"}
	}
	if m.WinRate == nil {
		return HardStopResult{true, "winRate is null"}
	}
	if m.TotalTrades == nil {
		return HardStopResult{true, "totalTrades is null"}
	}
	if m.ProfitFactor == nil {
		return HardStopResult{true, "profitFactor is null"}
	}
	minTrades := 10
	if toLive {
		minTrades = 50
	}
	if *m.TotalTrades < minTrades {
		return HardStopResult{true, "totalTrades below minimum sample size"}
	}
	return HardStopResult{}
}

// EvaluatePromotion checks the hard stop then the gate table for the
// from->to transition (spec §4.3's promotion-gates table). CANARY->LIVE
// additionally requires dual-control approval, which this function does not
// grant — callers must check that separately via the governance workflow.
func EvaluatePromotion(from, to bot.Stage, m Metrics) (eligible bool, reasons []string) {
	if !from.IsOneStepPromotionFrom(to) {
		return false, []string{"not a one-step promotion"}
	}

	hs := checkHardStop(m, to == bot.StageLive)
	if hs.Blocked {
		return false, []string{hs.Reason}
	}

	switch {
	case from == bot.StageTrials && to == bot.StagePaper:
		if *m.ConfidenceScore < 65 {
			reasons = append(reasons, "confidenceScore below 65")
		}
		if *m.UniquenessScore < 40 {
			reasons = append(reasons, "uniquenessScore below 40")
		}

	case from == bot.StagePaper && to == bot.StageShadow:
		if *m.WinRate < 45 {
			reasons = append(reasons, "winRate below 45%")
		}
		if *m.ProfitFactor < 1.2 {
			reasons = append(reasons, "profitFactor below 1.2")
		}
		if *m.TotalTrades < 20 {
			reasons = append(reasons, "totalTrades below 20")
		}

	case from == bot.StageShadow && to == bot.StageCanary:
		if *m.WinRate < 50 {
			reasons = append(reasons, "winRate below 50%")
		}
		if *m.ProfitFactor < 1.4 {
			reasons = append(reasons, "profitFactor below 1.4")
		}
		if *m.Sharpe < 0.8 {
			reasons = append(reasons, "sharpe below 0.8")
		}
		if *m.MaxDrawdownPct > 15 {
			reasons = append(reasons, "maxDrawdownPct above 15%")
		}
		if m.DaysInStage < 5 {
			reasons = append(reasons, "daysInStage below 5")
		}

	case from == bot.StageCanary && to == bot.StageLive:
		// Gate is "dual-control approval required"; no metric thresholds of
		// its own beyond the hard stop already checked above.

	default:
		return false, []string{"unrecognized promotion transition"}
	}

	return len(reasons) == 0, reasons
}

// DemotionDecision is the outcome of EvaluateDemotion.
type DemotionDecision struct {
	Demote  bool
	Target  bot.Stage
	Trigger string
}

// EvaluateDemotion checks the demotion-triggers table (spec §4.3). Only one
// demotion rung is ever applied per cycle, matching the "never both in one
// cycle" evaluation-order rule alongside promotion.
func EvaluateDemotion(current bot.Stage, m Metrics) DemotionDecision {
	switch current {
	case bot.StageLive:
		if (m.MaxDrawdownPct != nil && *m.MaxDrawdownPct > 20) ||
			(m.ProfitFactor != nil && *m.ProfitFactor < 1.0) {
			return DemotionDecision{true, bot.StageCanary, "maxDD>20% or profitFactor<1.0"}
		}
	case bot.StageCanary:
		if (m.Sharpe != nil && *m.Sharpe < 0.5) || m.ConsecutiveLosingDays >= 3 {
			return DemotionDecision{true, bot.StageShadow, "sharpe<0.5 or consecutiveLosingDays>=3"}
		}
	case bot.StageShadow:
		if m.WinRate != nil && *m.WinRate < 35 {
			return DemotionDecision{true, bot.StagePaper, "winRate<35%"}
		}
	}
	return DemotionDecision{}
}
