// Package instrument holds the fixed symbol registry and per-instrument
// contract specs referenced throughout the backtest executor.
package instrument

import plerrors "github.com/tradingfloor/platform/internal/errors"

// Spec describes one tradable instrument's contract terms.
type Spec struct {
	Symbol      string
	TickSize    float64
	PointValue  float64
	Commission  float64 // per contract, per side
	BasePrice   float64 // seed price for simulated-fallback generation
	MinPrice    float64
	MaxPrice    float64
}

// registry is the canonical symbol set from spec §6.
var registry = map[string]Spec{
	"MES": {Symbol: "MES", TickSize: 0.25, PointValue: 5, Commission: 0.47, BasePrice: 4500, MinPrice: 2000, MaxPrice: 8000},
	"MNQ": {Symbol: "MNQ", TickSize: 0.25, PointValue: 2, Commission: 0.47, BasePrice: 15500, MinPrice: 8000, MaxPrice: 25000},
	"ES":  {Symbol: "ES", TickSize: 0.25, PointValue: 50, Commission: 2.25, BasePrice: 4500, MinPrice: 2000, MaxPrice: 8000},
	"NQ":  {Symbol: "NQ", TickSize: 0.25, PointValue: 20, Commission: 2.25, BasePrice: 15500, MinPrice: 8000, MaxPrice: 25000},
	"YM":  {Symbol: "YM", TickSize: 1.0, PointValue: 5, Commission: 2.25, BasePrice: 35000, MinPrice: 15000, MaxPrice: 55000},
	"MYM": {Symbol: "MYM", TickSize: 1.0, PointValue: 0.5, Commission: 0.47, BasePrice: 35000, MinPrice: 15000, MaxPrice: 55000},
	"RTY": {Symbol: "RTY", TickSize: 0.1, PointValue: 50, Commission: 2.25, BasePrice: 2000, MinPrice: 800, MaxPrice: 4000},
	"M2K": {Symbol: "M2K", TickSize: 0.1, PointValue: 5, Commission: 0.47, BasePrice: 2000, MinPrice: 800, MaxPrice: 4000},
	"CL":  {Symbol: "CL", TickSize: 0.01, PointValue: 1000, Commission: 2.50, BasePrice: 75, MinPrice: 10, MaxPrice: 200},
	"GC":  {Symbol: "GC", TickSize: 0.1, PointValue: 100, Commission: 2.50, BasePrice: 2000, MinPrice: 800, MaxPrice: 3500},
}

// Lookup returns the Spec for symbol, or INSTRUMENT_NOT_SUPPORTED per spec
// §4.2 step 1.
func Lookup(symbol string) (Spec, error) {
	spec, ok := registry[symbol]
	if !ok {
		return Spec{}, plerrors.New(
			plerrors.CodeInstrumentNotSupported,
			"symbol "+symbol+" is not in the canonical instrument registry",
			plerrors.Sev0, plerrors.TierCritical,
		)
	}
	return spec, nil
}

// RoundToTick rounds price to the nearest tick for this instrument.
func (s Spec) RoundToTick(price float64) float64 {
	ticks := price / s.TickSize
	rounded := roundHalfAwayFromZero(ticks)
	return rounded * s.TickSize
}

// Clamp bounds price within the instrument's allowed price range.
func (s Spec) Clamp(price float64) float64 {
	if price < s.MinPrice {
		return s.MinPrice
	}
	if price > s.MaxPrice {
		return s.MaxPrice
	}
	return price
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}
