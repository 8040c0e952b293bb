// Package trade models one executed simulated trade row.
package trade

import "time"

// Side is the trade direction.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// ExitReason is the canonical reason a position was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "STOP_LOSS"
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
	ExitTrailing   ExitReason = "TRAILING_STOP"
	ExitTimeStop   ExitReason = "TIME_STOP"
	ExitSessionEnd ExitReason = "SESSION_END"
)

// Metadata is embedded provenance carried on every trade row.
type Metadata struct {
	TraceID     string
	RuleVersion string
}

// Trade is one TradeLog row.
type Trade struct {
	ID                string
	BacktestSessionID string
	EntryReasonCode   string
	Side              Side
	EntryTime         time.Time
	EntryPrice        float64
	ExitTime          time.Time
	ExitPrice         float64
	ExitReason        ExitReason
	Quantity          float64
	GrossPnl          float64
	Fees              float64
	Slippage          float64
	NetPnl            float64
	HoldBars          int
	Metadata          Metadata
}
