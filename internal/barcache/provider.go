package barcache

import (
	"context"
	"time"

	"github.com/tradingfloor/platform/internal/backtest/instrument"
	"github.com/tradingfloor/platform/internal/backtest/rng"
	"github.com/tradingfloor/platform/internal/domain/bar"
)

// FetchResult is the bar-fetch contract from spec §6: real market-data
// providers are out of scope (spec §1), so this interface and the
// SimulatedProvider below are the only concrete surface.
type FetchResult struct {
	Bars         []bar.Bar
	Dataset      string
	Schema       string
	RawRequestID string
}

// Provider fetches historical bars for one symbol/timeframe/range. Only a
// contract is specified; no real market-data provider ships in this repo.
type Provider interface {
	Fetch(ctx context.Context, symbol string, timeframe bar.Timeframe, startTs, endTs time.Time, traceID string) (FetchResult, error)
}

// SimulatedProvider generates bars using instrument-specific base prices
// with a mean-reverting seeded walk (spec §4.2 step 3). It is only used when
// ALLOW_SIM_FALLBACK is true and no real provider is configured.
type SimulatedProvider struct {
	Seed uint32
}

// Fetch implements Provider by synthesizing a deterministic bar series.
func (p SimulatedProvider) Fetch(_ context.Context, symbol string, timeframe bar.Timeframe, startTs, endTs time.Time, traceID string) (FetchResult, error) {
	spec, err := instrument.Lookup(symbol)
	if err != nil {
		return FetchResult{}, err
	}

	r := rng.New(p.Seed)
	step := timeframe.Duration()
	price := spec.BasePrice

	var bars []bar.Bar
	for ts := startTs; ts.Before(endTs); ts = ts.Add(step) {
		// Mean-reverting seeded walk: pull price back toward BasePrice,
		// perturbed by a small seeded random step each bar.
		reversion := (spec.BasePrice - price) * 0.02
		noise := r.Range(-1, 1) * spec.BasePrice * 0.002
		price = price + reversion + noise

		open := price
		high := open + r.Range(0, 1)*spec.TickSize*4
		low := open - r.Range(0, 1)*spec.TickSize*4
		close := r.Range(low, high)
		volume := 100 + r.Float64()*900

		high = spec.Clamp(high)
		low = spec.Clamp(low)
		open = spec.Clamp(open)
		close = spec.Clamp(close)
		if low > high {
			low, high = high, low
		}

		bars = append(bars, bar.Bar{
			Timestamp: ts,
			Open:      spec.RoundToTick(open),
			High:      spec.RoundToTick(high),
			Low:       spec.RoundToTick(low),
			Close:     spec.RoundToTick(close),
			Volume:    volume,
		})
		price = close
	}

	return FetchResult{
		Bars:         bars,
		Dataset:      "simulated",
		Schema:       "ohlcv-1." + string(timeframe),
		RawRequestID: traceID,
	}, nil
}
