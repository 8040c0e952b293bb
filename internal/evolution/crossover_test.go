package evolution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradingfloor/platform/internal/backtest/rng"
)

func TestCrossoverPicksOnlyFromParentsOrWeightedAverage(t *testing.T) {
	params := []Parameter{
		{Name: "stopLossAtr", Type: ParamFloat, Min: 0.5, Max: 3.0},
		{Name: "useTrailingStop", Type: ParamBoolean},
	}
	parentA := map[string]interface{}{"stopLossAtr": 1.0, "useTrailingStop": true}
	parentB := map[string]interface{}{"stopLossAtr": 2.0, "useTrailingStop": false}

	r := rng.New(4)
	for i := 0; i < 100; i++ {
		child := Crossover(parentA, parentB, params, r)
		sl := child["stopLossAtr"].(float64)
		assert.GreaterOrEqual(t, sl, 1.0)
		assert.LessOrEqual(t, sl, 2.0)

		ts := child["useTrailingStop"].(bool)
		assert.True(t, ts == true || ts == false)
	}
}

func TestCrossoverFallsBackToDefaultWhenNeitherParentHasValue(t *testing.T) {
	params := []Parameter{{Name: "lookback", Type: ParamInteger, Min: 5, Max: 50, Default: float64(20)}}
	r := rng.New(2)
	child := Crossover(map[string]interface{}{}, map[string]interface{}{}, params, r)
	assert.Equal(t, float64(20), child["lookback"])
}
