package backtest

import (
	"fmt"
	"time"

	"github.com/tradingfloor/platform/internal/backtest/indicator"
	"github.com/tradingfloor/platform/internal/backtest/instrument"
	"github.com/tradingfloor/platform/internal/backtest/rules"
	"github.com/tradingfloor/platform/internal/domain/bar"
	"github.com/tradingfloor/platform/internal/domain/trade"
)

const maxRollback = 30

// indicatorSet holds every incrementally-updated indicator the execution
// loop needs, seeded from the first warmupBars bars.
type indicatorSet struct {
	emaFast    *indicator.EMA // 9
	emaSlow    *indicator.EMA // 21
	sma50      *indicator.SMA
	vwap       *indicator.VWAP
	rsi14      *indicator.RSI
	atr14      *indicator.ATR
	momentum10 *indicator.Momentum
	dailyRange *indicator.DailyRange
	volHist20  *indicator.VolumeHistory
}

func newIndicatorSet() *indicatorSet {
	return &indicatorSet{
		emaFast:    indicator.NewEMA(9),
		emaSlow:    indicator.NewEMA(21),
		sma50:      indicator.NewSMA(50),
		vwap:       indicator.NewVWAP(),
		rsi14:      indicator.NewRSI(14),
		atr14:      indicator.NewATR(14),
		momentum10: indicator.NewMomentum(10),
		dailyRange: &indicator.DailyRange{},
		volHist20:  indicator.NewVolumeHistory(20),
	}
}

func (s *indicatorSet) update(b bar.Bar) float64 {
	s.emaFast.Update(b.Close)
	s.emaSlow.Update(b.Close)
	s.sma50.Update(b.Close)
	s.vwap.Update(b.High, b.Low, b.Close, b.Volume)
	s.rsi14.Update(b.Close)
	s.atr14.Update(b.High, b.Low, b.Close)
	s.momentum10.Update(b.Close)
	s.dailyRange.Update(b.Open, b.High, b.Low)
	return s.volHist20.Update(b.Volume)
}

// rollingWindow keeps the last maxRollback bars for lookback-window
// predicates (N-bar range breakouts, local extremes).
type rollingWindow struct {
	bars []bar.Bar
}

func (r *rollingWindow) push(b bar.Bar) {
	r.bars = append(r.bars, b)
	if len(r.bars) > maxRollback {
		r.bars = r.bars[1:]
	}
}

func (r *rollingWindow) highN(n int) float64 {
	return r.extreme(n, true)
}

func (r *rollingWindow) lowN(n int) float64 {
	return r.extreme(n, false)
}

func (r *rollingWindow) extreme(n int, high bool) float64 {
	if n <= 0 || len(r.bars) == 0 {
		return 0
	}
	start := len(r.bars) - n
	if start < 0 {
		start = 0
	}
	v := r.bars[start].Close
	for _, b := range r.bars[start:] {
		if high && b.High > v {
			v = b.High
		}
		if !high && b.Low < v {
			v = b.Low
		}
	}
	return v
}

type position struct {
	side             trade.Side
	entryPrice       float64
	entryTime        time.Time
	initialStop      float64
	takeProfit       float64
	highestFavorable float64
	trailingArmed    bool
	trailStop        float64
	holdBars         int
	entryReasonCode  string
}

// runLoop is the bar-by-bar execution loop described in spec §4.2. bars must
// already include the warmupBars-bar indicator seeding window at index 0.
func runLoop(bars []bar.Bar, spec instrument.Spec, sr rules.StrategyRules, profile ExecutionProfile, sessionStart, sessionEnd string, traceID string) []trade.Trade {
	ind := newIndicatorSet()
	window := &rollingWindow{}

	for i := 0; i < warmupBars && i < len(bars); i++ {
		ind.update(bars[i])
		window.push(bars[i])
	}

	var trades []trade.Trade
	var pos *position
	var prevDayOpen float64
	var prevDay int
	var prevBarClose float64
	haveBoundary := false

	for i := warmupBars; i < len(bars); i++ {
		b := bars[i]

		day := b.Timestamp.UTC().YearDay() + b.Timestamp.UTC().Year()*1000
		if haveBoundary && day != prevDay {
			prevDayOpen = ind.dailyRange.Open
			ind.dailyRange.Reset()
			ind.vwap.Reset()
		}
		prevDay = day
		haveBoundary = true

		volMultiple := ind.update(b)
		window.push(b)

		inSession := profile.SessionBypass || isWithinTradingSession(b.Timestamp, sessionStart, sessionEnd)
		inNoTradeWindow := !profile.SessionBypass && withinNoTradeWindow(b.Timestamp, sr.Session.NoTradeWindows)

		if !inSession {
			if pos != nil {
				trades = append(trades, closePosition(pos, b.Close, b.Timestamp, trade.ExitSessionEnd, spec, sr, traceID, len(trades)))
				pos = nil
			}
			prevBarClose = b.Close
			continue
		}

		if pos != nil {
			pos.holdBars++
			updateTrailing(pos, b, spec, sr)

			if closed, t := checkExits(pos, b, spec, sr, traceID, len(trades)); closed {
				trades = append(trades, t)
				pos = nil
			}
			prevBarClose = b.Close
			continue
		}

		if inNoTradeWindow {
			prevBarClose = b.Close
			continue
		}

		signal, side, reasonCode := evaluateEntry(sr, ind, window, b, prevDayOpen, prevBarClose)
		if signal && passesConfirmations(sr, ind, side, volMultiple) {
			pos = openPosition(side, b, spec, sr, reasonCode)
		}

		prevBarClose = b.Close
	}

	if pos != nil {
		last := bars[len(bars)-1]
		trades = append(trades, closePosition(pos, last.Close, last.Timestamp, trade.ExitSessionEnd, spec, sr, traceID, len(trades)))
	}

	return trades
}

func openPosition(side trade.Side, b bar.Bar, spec instrument.Spec, sr rules.StrategyRules, reasonCode string) *position {
	tickSize := spec.TickSize
	stopDist := sr.Exit.StopLossTicks * tickSize
	tpDist := sr.Exit.TakeProfitTicks * tickSize

	p := &position{
		side:             side,
		entryPrice:       b.Close,
		entryTime:        b.Timestamp,
		highestFavorable: b.Close,
		entryReasonCode:  reasonCode,
	}
	if side == trade.Long {
		p.initialStop = spec.RoundToTick(b.Close - stopDist)
		p.takeProfit = spec.RoundToTick(b.Close + tpDist)
	} else {
		p.initialStop = spec.RoundToTick(b.Close + stopDist)
		p.takeProfit = spec.RoundToTick(b.Close - tpDist)
	}
	return p
}

func updateTrailing(pos *position, b bar.Bar, spec instrument.Spec, sr rules.StrategyRules) {
	if !sr.Exit.TrailingEnabled {
		return
	}
	tickSize := spec.TickSize
	if pos.side == trade.Long {
		if b.High > pos.highestFavorable {
			pos.highestFavorable = b.High
		}
		favorableTicks := (pos.highestFavorable - pos.entryPrice) / tickSize
		if favorableTicks >= sr.Exit.TrailingActivateTicks {
			candidate := spec.RoundToTick(pos.highestFavorable - sr.Exit.TrailingDistance*tickSize)
			if !pos.trailingArmed || candidate > pos.trailStop {
				pos.trailStop = candidate
			}
			pos.trailingArmed = true
		}
	} else {
		if b.Low < pos.highestFavorable {
			pos.highestFavorable = b.Low
		}
		favorableTicks := (pos.entryPrice - pos.highestFavorable) / tickSize
		if favorableTicks >= sr.Exit.TrailingActivateTicks {
			candidate := spec.RoundToTick(pos.highestFavorable + sr.Exit.TrailingDistance*tickSize)
			if !pos.trailingArmed || candidate < pos.trailStop {
				pos.trailStop = candidate
			}
			pos.trailingArmed = true
		}
	}
}

// checkExits evaluates exits in spec §4.2's mandated order: stop-loss,
// take-profit, trailing stop, time stop.
func checkExits(pos *position, b bar.Bar, spec instrument.Spec, sr rules.StrategyRules, traceID string, idx int) (bool, trade.Trade) {
	if pos.side == trade.Long {
		if b.Low <= pos.initialStop {
			return true, closePosition(pos, pos.initialStop, b.Timestamp, trade.ExitStopLoss, spec, sr, traceID, idx)
		}
		if b.High >= pos.takeProfit {
			return true, closePosition(pos, pos.takeProfit, b.Timestamp, trade.ExitTakeProfit, spec, sr, traceID, idx)
		}
		if pos.trailingArmed && b.Low <= pos.trailStop {
			return true, closePosition(pos, pos.trailStop, b.Timestamp, trade.ExitTrailing, spec, sr, traceID, idx)
		}
	} else {
		if b.High >= pos.initialStop {
			return true, closePosition(pos, pos.initialStop, b.Timestamp, trade.ExitStopLoss, spec, sr, traceID, idx)
		}
		if b.Low <= pos.takeProfit {
			return true, closePosition(pos, pos.takeProfit, b.Timestamp, trade.ExitTakeProfit, spec, sr, traceID, idx)
		}
		if pos.trailingArmed && b.High >= pos.trailStop {
			return true, closePosition(pos, pos.trailStop, b.Timestamp, trade.ExitTrailing, spec, sr, traceID, idx)
		}
	}
	if sr.Exit.TimeStopEnabled && pos.holdBars >= sr.Exit.TimeStopBars {
		return true, closePosition(pos, b.Close, b.Timestamp, trade.ExitTimeStop, spec, sr, traceID, idx)
	}
	return false, trade.Trade{}
}

func closePosition(pos *position, exitPrice float64, exitTime time.Time, reason trade.ExitReason, spec instrument.Spec, sr rules.StrategyRules, traceID string, idx int) trade.Trade {
	exitPrice = spec.RoundToTick(exitPrice)
	gross, fees, slippage, net := TradePnl(spec, pos.side, pos.entryPrice, exitPrice, sr.Risk.Quantity, sr.Risk.SlippageTicks)

	g, _ := gross.Float64()
	f, _ := fees.Float64()
	s, _ := slippage.Float64()
	n, _ := net.Float64()

	return trade.Trade{
		ID:              fmt.Sprintf("%s-%d", traceID, idx),
		EntryReasonCode: pos.entryReasonCode,
		Side:            pos.side,
		EntryTime:       pos.entryTime,
		EntryPrice:      pos.entryPrice,
		ExitTime:        exitTime,
		ExitPrice:       exitPrice,
		ExitReason:      reason,
		Quantity:        sr.Risk.Quantity,
		GrossPnl:        g,
		Fees:            f,
		Slippage:        s,
		NetPnl:          n,
		HoldBars:        pos.holdBars,
		Metadata:        trade.Metadata{TraceID: traceID, RuleVersion: sr.Version},
	}
}

func isWithinTradingSession(ts time.Time, start, end string) bool {
	if start == "" || end == "" {
		return true
	}
	cur := ts.UTC().Format("15:04")
	if start <= end {
		return cur >= start && cur <= end
	}
	// Wrap-around window (e.g. ETH 18:00-09:30).
	return cur >= start || cur <= end
}

func withinNoTradeWindow(ts time.Time, windows [][2]string) bool {
	cur := ts.UTC().Format("15:04")
	for _, w := range windows {
		if w[0] <= w[1] {
			if cur >= w[0] && cur <= w[1] {
				return true
			}
		} else if cur >= w[0] || cur <= w[1] {
			return true
		}
	}
	return false
}
