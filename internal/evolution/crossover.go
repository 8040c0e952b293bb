package evolution

import "github.com/tradingfloor/platform/internal/backtest/rng"

// Crossover blends two parent configs per-parameter: 50/50 choice of
// either parent's value, with a 30% chance of a weighted average instead
// for float parameters (spec §4.6).
func Crossover(parentA, parentB map[string]interface{}, params []Parameter, r *rng.Mulberry32) map[string]interface{} {
	child := make(map[string]interface{}, len(params))
	for _, p := range params {
		a, aok := parentA[p.Name]
		b, bok := parentB[p.Name]

		switch {
		case p.Type == ParamFloat && aok && bok && r.Float64() < 0.30:
			af, _ := a.(float64)
			bf, _ := b.(float64)
			weight := r.Float64()
			child[p.Name] = p.clamp(af*weight + bf*(1-weight))
		case r.Sign() < 0 && aok:
			child[p.Name] = a
		case bok:
			child[p.Name] = b
		case aok:
			child[p.Name] = a
		default:
			child[p.Name] = p.Default
		}
	}
	return child
}
