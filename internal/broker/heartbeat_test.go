package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradingfloor/platform/pkg/logger"
)

func TestStateForMissesThresholds(t *testing.T) {
	assert.Equal(t, HeartbeatOK, stateForMisses(0))
	assert.Equal(t, HeartbeatWarning, stateForMisses(1))
	assert.Equal(t, HeartbeatWarning, stateForMisses(2))
	assert.Equal(t, HeartbeatDegraded, stateForMisses(3))
	assert.Equal(t, HeartbeatDegraded, stateForMisses(4))
	assert.Equal(t, HeartbeatDisconnected, stateForMisses(5))
}

func TestHeartbeatMonitorTracksMissesPerAdapter(t *testing.T) {
	failing := 0
	pingers := map[string]Pinger{
		"ibkr": func(_ context.Context) error {
			failing++
			return errors.New("timeout")
		},
		"databento": func(_ context.Context) error { return nil },
	}
	mon := NewHeartbeatMonitor(pingers, logger.NewDefault("test"))

	for i := 0; i < 5; i++ {
		mon.RunCycle(context.Background())
	}

	assert.Equal(t, HeartbeatDisconnected, mon.State("ibkr"))
	assert.Equal(t, HeartbeatOK, mon.State("databento"))
	assert.True(t, mon.GatesAutonomy("ibkr"))
	assert.False(t, mon.GatesAutonomy("databento"))
}

func TestHeartbeatMonitorRecoversResetsMisses(t *testing.T) {
	fail := true
	pingers := map[string]Pinger{
		"ibkr": func(_ context.Context) error {
			if fail {
				return errors.New("timeout")
			}
			return nil
		},
	}
	mon := NewHeartbeatMonitor(pingers, logger.NewDefault("test"))
	mon.RunCycle(context.Background())
	assert.Equal(t, HeartbeatWarning, mon.State("ibkr"))

	fail = false
	mon.RunCycle(context.Background())
	assert.Equal(t, HeartbeatOK, mon.State("ibkr"))
}

func TestUnregisteredAdapterDefaultsToOK(t *testing.T) {
	mon := NewHeartbeatMonitor(map[string]Pinger{}, logger.NewDefault("test"))
	assert.Equal(t, HeartbeatOK, mon.State("unknown"))
	assert.False(t, mon.GatesAutonomy("unknown"))
}
