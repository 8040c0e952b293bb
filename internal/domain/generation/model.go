// Package generation models an immutable snapshot of a bot's configuration.
package generation

import "time"

// PerformanceSnapshot is populated only when TotalTrades > 0, per spec §3's
// Generation invariant (never inherit a parent's P&L into a 0-trade child).
type PerformanceSnapshot struct {
	TotalTrades      int
	WinRate          float64
	NetPnl           float64
	Sharpe           float64
	ProfitFactor     float64
	MaxDrawdownPct   float64
	Expectancy       float64
	RulesProfileUsed string
	SessionModeUsed  string
}

// Generation is an immutable config snapshot, monotonically numbered per bot.
type Generation struct {
	ID                   string
	BotID                string
	Number               int
	ParentNumber         int
	StrategyConfig       map[string]interface{}
	BaselineValid        bool
	BaselineBacktestID   string
	BaselineFailureReason string
	PerformanceSnapshot  *PerformanceSnapshot
	CreatedAt            time.Time
}

// ApplyBaseline updates baseline fields after a backtest session completes,
// implementing spec §4.2's "generation baseline update" side effect:
// baseline validity requires >=20 trades, and PerformanceSnapshot is only
// overwritten when totalTrades > 0 so a 0-trade child never inherits a
// parent's P&L.
func (g *Generation) ApplyBaseline(backtestID string, totalTrades int, snap PerformanceSnapshot, failureReason string) {
	g.BaselineBacktestID = backtestID
	g.BaselineValid = totalTrades >= 20
	g.BaselineFailureReason = failureReason
	if totalTrades > 0 {
		snap.TotalTrades = totalTrades
		g.PerformanceSnapshot = &snap
	}
}
