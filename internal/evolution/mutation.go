package evolution

import (
	"math"

	"github.com/tradingfloor/platform/internal/backtest/rng"
)

// Strategy is one of the five canonical mutation kinds (spec §4.6).
type Strategy string

const (
	StrategyGaussian    Strategy = "gaussian"
	StrategyUniform     Strategy = "uniform"
	StrategyBoundary    Strategy = "boundary"
	StrategyAdaptive    Strategy = "adaptive"
	StrategyRegimeAware Strategy = "regime_aware"
)

// MutationInput carries the context a mutation function needs beyond the
// parameter and its current value: generation number for adaptive decay,
// and the current regime for regime_aware overrides.
type MutationInput struct {
	Generation int
	Regime     UnifiedRegime
	// BaseRate and BaseStrength are the archetype's configured mutation
	// rate/strength before any per-strategy override is applied.
	BaseRate     float64
	BaseStrength float64
}

// mutateFn is the shape every strategy table entry implements: given a
// parameter, its current value, the PRNG, and the mutation context, it
// returns the mutated value. Using function values here instead of an
// interface hierarchy matches the teacher's general preference for small
// data-driven tables (e.g. resilience.Config.OnStateChange).
type mutateFn func(p Parameter, current interface{}, r *rng.Mulberry32, in MutationInput) interface{}

// strategies is the mutation-strategy table spec §4.6 names.
var strategies = map[Strategy]mutateFn{
	StrategyGaussian:    gaussianMutate,
	StrategyUniform:     uniformMutate,
	StrategyBoundary:    boundaryMutate,
	StrategyAdaptive:    adaptiveMutate,
	StrategyRegimeAware: regimeAwareMutate,
}

// Mutate applies the named strategy to one parameter's current value. An
// unrecognized strategy name falls back to gaussian, the least destructive
// choice.
func Mutate(strategy Strategy, p Parameter, current interface{}, r *rng.Mulberry32, in MutationInput) interface{} {
	fn, ok := strategies[strategy]
	if !ok {
		fn = gaussianMutate
	}
	return fn(p, current, r, in)
}

func gaussianMutate(p Parameter, current interface{}, r *rng.Mulberry32, in MutationInput) interface{} {
	return gaussianStep(p, current, r, in.BaseStrength)
}

// gaussianStep perturbs a float/integer value by strength*span gaussian
// noise, clamped to bounds; boolean and enum parameters flip/reroll since a
// gaussian perturbation has no meaning for them.
func gaussianStep(p Parameter, current interface{}, r *rng.Mulberry32, strength float64) interface{} {
	switch p.Type {
	case ParamFloat:
		cur, ok := current.(float64)
		if !ok {
			cur = p.Min + p.span()/2
		}
		return p.clamp(cur + r.Gaussian()*strength*p.span())
	case ParamInteger:
		cur, ok := current.(float64)
		if !ok {
			cur = p.Min + p.span()/2
		}
		step := r.Gaussian() * strength * p.span()
		return float64(int(p.clamp(cur + step)))
	case ParamBoolean:
		if r.Float64() < strength {
			b, _ := current.(bool)
			return !b
		}
		return current
	case ParamEnum:
		if r.Float64() < strength && len(p.EnumValues) > 0 {
			return p.EnumValues[int(r.Float64()*float64(len(p.EnumValues)))%len(p.EnumValues)]
		}
		return current
	default:
		return current
	}
}

func uniformMutate(p Parameter, current interface{}, r *rng.Mulberry32, _ MutationInput) interface{} {
	switch p.Type {
	case ParamFloat:
		return p.clamp(r.Range(p.Min, p.Max))
	case ParamInteger:
		return float64(int(r.Range(p.Min, p.Max)))
	case ParamBoolean:
		return r.Float64() < 0.5
	case ParamEnum:
		if len(p.EnumValues) == 0 {
			return current
		}
		return p.EnumValues[int(r.Float64()*float64(len(p.EnumValues)))%len(p.EnumValues)]
	default:
		return current
	}
}

// boundaryMutate pushes the value to one of its extremes, useful for
// exploring whether a parameter's edge behavior is actually better than
// its interior.
func boundaryMutate(p Parameter, current interface{}, r *rng.Mulberry32, _ MutationInput) interface{} {
	switch p.Type {
	case ParamFloat:
		if r.Sign() < 0 {
			return p.Min
		}
		return p.Max
	case ParamInteger:
		if r.Sign() < 0 {
			return float64(int(p.Min))
		}
		return float64(int(p.Max))
	case ParamBoolean:
		return r.Sign() > 0
	case ParamEnum:
		if len(p.EnumValues) == 0 {
			return current
		}
		if r.Sign() < 0 {
			return p.EnumValues[0]
		}
		return p.EnumValues[len(p.EnumValues)-1]
	default:
		return current
	}
}

// adaptiveMutate decays strength with generation count per spec §4.6:
// strength * 0.95^(gen/10).
func adaptiveMutate(p Parameter, current interface{}, r *rng.Mulberry32, in MutationInput) interface{} {
	decay := math.Pow(0.95, float64(in.Generation)/10)
	return gaussianStep(p, current, r, in.BaseStrength*decay)
}

// regimeAwareMutate overrides rate/strength from the regime matrix before
// delegating to a gaussian perturbation; the mutation is only applied at
// all with probability equal to the overridden rate.
func regimeAwareMutate(p Parameter, current interface{}, r *rng.Mulberry32, in MutationInput) interface{} {
	rate, strength := RegimeMutationOverride(in.Regime, in.BaseRate, in.BaseStrength)
	if r.Float64() >= rate {
		return current
	}
	return gaussianStep(p, current, r, strength)
}
