package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStageOrdinalAndTransitions(t *testing.T) {
	assert.True(t, StageTrials.IsOneStepPromotionFrom(StagePaper))
	assert.False(t, StageTrials.IsOneStepPromotionFrom(StageShadow))
	assert.True(t, StageLive.IsOneStepDemotionFrom(StageCanary))
	assert.Equal(t, -1, StageKilled.Ordinal())
}

func TestCanOpenPosition(t *testing.T) {
	live := Bot{Stage: StageLive}
	assert.True(t, live.CanOpenPosition())

	killed := Bot{Stage: StageKilled}
	assert.False(t, killed.CanOpenPosition())

	paused := Bot{Stage: StageLive, Paused: true}
	assert.False(t, paused.CanOpenPosition())
}

func TestIsLocked(t *testing.T) {
	now := time.Now()
	locked := Bot{StageLockedUntil: now.Add(time.Hour)}
	assert.True(t, locked.IsLocked(now))

	expired := Bot{StageLockedUntil: now.Add(-time.Hour)}
	assert.False(t, expired.IsLocked(now))

	unset := Bot{}
	assert.False(t, unset.IsLocked(now))
}
