package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveArchetypeFromStoredID(t *testing.T) {
	key, err := ResolveArchetype("gap_fade", "", "irrelevant")
	require.NoError(t, err)
	assert.Equal(t, "gap_fade", key)
}

func TestResolveArchetypeInferredFromName(t *testing.T) {
	key, err := ResolveArchetype("", "", "MNQ Gap Fade")
	require.NoError(t, err)
	assert.Equal(t, "gap_fade", key)
}

func TestResolveArchetypeInferenceFailure(t *testing.T) {
	_, err := ResolveArchetype("", "", "Zephyr Strategy 42")
	require.Error(t, err)
	se, ok := err.(interface{ Error() string })
	require.True(t, ok)
	assert.Contains(t, se.Error(), "ARCHETYPE_INFERENCE_FAILED")
}

func TestEntryConditionForUnmappedArchetype(t *testing.T) {
	_, err := EntryConditionFor("totally_unknown")
	require.Error(t, err)
}

func TestRulesHashDeterministic(t *testing.T) {
	ec, err := EntryConditionFor("breakout")
	require.NoError(t, err)

	r1 := Build("breakout", ec, map[string]interface{}{"stopLossTicks": 20.0}, false)
	r2 := Build("breakout", ec, map[string]interface{}{"stopLossTicks": 20.0}, false)
	assert.Equal(t, r1.Hash(), r2.Hash())

	r3 := Build("breakout", ec, map[string]interface{}{"stopLossTicks": 30.0}, false)
	assert.NotEqual(t, r1.Hash(), r3.Hash())
}

func TestRelaxedFlagsOnlyInTrials(t *testing.T) {
	ec, _ := EntryConditionFor("breakout")
	relaxed := Build("breakout", ec, nil, true)
	production := Build("breakout", ec, nil, false)
	assert.NotEmpty(t, relaxed.RelaxedFlagsApplied)
	assert.Empty(t, production.RelaxedFlagsApplied)
}
