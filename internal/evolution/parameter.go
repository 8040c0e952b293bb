// Package evolution implements the archetype parameter-space mutation,
// crossover, and evolution-decision logic of spec §4.6, plus the regime
// detection/classification that feeds the "regime_aware" mutation strategy.
package evolution

// ParamType is one of the canonical parameter-space value kinds.
type ParamType string

const (
	ParamInteger ParamType = "integer"
	ParamFloat   ParamType = "float"
	ParamBoolean ParamType = "boolean"
	ParamEnum    ParamType = "enum"
)

// Parameter describes one dimension of an archetype's fixed parameter
// space: name, type, bounds or enumerated values, default, and the weight
// that governs how often it is selected for mutation.
type Parameter struct {
	Name           string
	Type           ParamType
	Min            float64
	Max            float64
	EnumValues     []string
	Default        interface{}
	MutationWeight float64
}

// clamp keeps a float parameter's mutated value inside its declared bounds.
func (p Parameter) clamp(v float64) float64 {
	if v < p.Min {
		return p.Min
	}
	if v > p.Max {
		return p.Max
	}
	return v
}

func (p Parameter) span() float64 {
	return p.Max - p.Min
}
