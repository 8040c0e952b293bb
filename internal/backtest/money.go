package backtest

import (
	"github.com/shopspring/decimal"

	"github.com/tradingfloor/platform/internal/backtest/instrument"
	"github.com/tradingfloor/platform/internal/domain/trade"
)

func init() {
	decimal.DivisionPrecision = 20
}

// TradePnl computes one trade's gross/fee/slippage/net P&L using
// fixed-precision decimal arithmetic per spec §4.2, half-up rounded to the
// cent only at the very end so intermediate precision is preserved.
func TradePnl(spec instrument.Spec, side trade.Side, entry, exit, qty float64, slippageTicks float64) (gross, fees, slippage, net decimal.Decimal) {
	tickSize := decimal.NewFromFloat(spec.TickSize)
	pointValue := decimal.NewFromFloat(spec.PointValue)
	tickValue := pointValue.Mul(tickSize)

	entryD := decimal.NewFromFloat(entry)
	exitD := decimal.NewFromFloat(exit)
	qtyD := decimal.NewFromFloat(qty)

	ticks := exitD.Sub(entryD).DivRound(tickSize, 20)
	if side == trade.Short {
		ticks = ticks.Neg()
	}

	gross = ticks.Mul(tickValue).Mul(qtyD)
	fees = decimal.NewFromFloat(spec.Commission).Mul(decimal.NewFromInt(2)).Mul(qtyD)
	slippage = decimal.NewFromFloat(slippageTicks).Mul(tickValue).Mul(decimal.NewFromInt(2)).Mul(qtyD)
	net = gross.Sub(fees).Sub(slippage)

	return gross.Round(2), fees.Round(2), slippage.Round(2), net.Round(2)
}
