package backtest

import (
	"math"

	"github.com/tradingfloor/platform/internal/domain/session"
	"github.com/tradingfloor/platform/internal/domain/trade"
)

// aggregate computes the session Metrics and equity curve from a completed
// trade list, per spec §4.2's "atomic persistence" step.
func aggregate(trades []trade.Trade, initialCapital float64) (session.Metrics, []session.EquityPoint) {
	var (
		winning, losing   int
		grossWin, grossLoss float64
		netTotal           float64
		returns            []float64
	)

	equity := initialCapital
	peak := initialCapital
	points := make([]session.EquityPoint, 0, len(trades))

	for _, t := range trades {
		netTotal += t.NetPnl
		if t.NetPnl > 0 {
			winning++
			grossWin += t.GrossPnl
		} else {
			losing++
			grossLoss += -t.GrossPnl
		}
		if initialCapital != 0 {
			returns = append(returns, t.NetPnl/initialCapital)
		}

		equity += t.NetPnl
		if equity > peak {
			peak = equity
		}
		drawdownPct := 0.0
		if peak > 0 {
			drawdownPct = (peak - equity) / peak * 100
		}
		points = append(points, session.EquityPoint{
			Timestamp:   t.ExitTime,
			Equity:      equity,
			DrawdownPct: drawdownPct,
		})
	}

	total := len(trades)
	winRate := 0.0
	if total > 0 {
		winRate = float64(winning) / float64(total) * 100
	}

	profitFactor := 999.0
	if grossLoss > 0 {
		profitFactor = grossWin / grossLoss
	}

	maxDD := 0.0
	for _, p := range points {
		if p.DrawdownPct > maxDD {
			maxDD = p.DrawdownPct
		}
	}

	expectancy := 0.0
	if total > 0 {
		expectancy = netTotal / float64(total)
	}

	sharpe := computeSharpe(returns)

	return session.Metrics{
		TotalTrades:    total,
		WinningTrades:  winning,
		LosingTrades:   losing,
		WinRate:        winRate,
		NetPnl:         netTotal,
		Sharpe:         sharpe,
		MaxDrawdownPct: maxDD,
		ProfitFactor:   profitFactor,
		Expectancy:     expectancy,
	}, points
}

// computeSharpe annualizes the per-trade return series assuming 252 trading
// periods, per spec §4.2's `avgReturn/stdDev × √252` formula.
func computeSharpe(returns []float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(n)

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(n - 1)
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return 0
	}
	return mean / stdDev * math.Sqrt(252)
}
