package broker

import (
	"context"
	"sync"
	"time"

	"github.com/tradingfloor/platform/internal/platform/lifecycle"
	"github.com/tradingfloor/platform/pkg/logger"
)

// HeartbeatInterval is the 30s ping cadence spec §4.7 pins.
const HeartbeatInterval = 30 * time.Second

// HeartbeatState is the adapter liveness classification a heartbeat
// monitor tracks, distinct from HealthState (which an adapter call result
// reports directly): 1 missed ping -> WARNING, 3 -> DEGRADED, 5 -> DISCONNECTED.
type HeartbeatState string

const (
	HeartbeatOK           HeartbeatState = "OK"
	HeartbeatWarning      HeartbeatState = "WARNING"
	HeartbeatDegraded     HeartbeatState = "DEGRADED"
	HeartbeatDisconnected HeartbeatState = "DISCONNECTED"
)

// stateForMisses maps consecutive missed pings to a HeartbeatState.
func stateForMisses(misses int) HeartbeatState {
	switch {
	case misses >= 5:
		return HeartbeatDisconnected
	case misses >= 3:
		return HeartbeatDegraded
	case misses >= 1:
		return HeartbeatWarning
	default:
		return HeartbeatOK
	}
}

// Pinger checks one adapter's liveness; a non-nil error counts as a missed
// ping.
type Pinger func(ctx context.Context) error

// HeartbeatMonitor pings a named set of adapters on a fixed interval and
// tracks each one's consecutive-miss count and derived state.
type HeartbeatMonitor struct {
	pingers map[string]Pinger
	log     *logger.Logger

	mu            sync.RWMutex
	misses        map[string]int
	states        map[string]HeartbeatState
}

// NewHeartbeatMonitor builds a monitor over the given named pingers.
func NewHeartbeatMonitor(pingers map[string]Pinger, log *logger.Logger) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		pingers: pingers,
		log:     log,
		misses:  make(map[string]int, len(pingers)),
		states:  make(map[string]HeartbeatState, len(pingers)),
	}
}

// Worker wraps RunCycle in a lifecycle.Service ticking at HeartbeatInterval.
func (h *HeartbeatMonitor) Worker() lifecycle.Service {
	return lifecycle.NewTickerWorker("broker-heartbeat-monitor", HeartbeatInterval, func(ctx context.Context) {
		h.RunCycle(ctx)
	})
}

// RunCycle pings every registered adapter once and updates its miss count
// and derived state.
func (h *HeartbeatMonitor) RunCycle(ctx context.Context) {
	for name, ping := range h.pingers {
		err := ping(ctx)

		h.mu.Lock()
		if err != nil {
			h.misses[name]++
		} else {
			h.misses[name] = 0
		}
		newState := stateForMisses(h.misses[name])
		oldState := h.states[name]
		h.states[name] = newState
		h.mu.Unlock()

		if newState != oldState && h.log != nil {
			h.log.WithFields(map[string]interface{}{
				"adapter": name, "from": oldState, "to": newState,
			}).Warn("broker heartbeat state changed")
		}
	}
}

// State reports the current heartbeat state for a named adapter.
func (h *HeartbeatMonitor) State(name string) HeartbeatState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if s, ok := h.states[name]; ok {
		return s
	}
	return HeartbeatOK
}

// GatesAutonomy reports whether name's current heartbeat state should gate
// the autonomy loop (spec §4.7: a DEGRADED or DISCONNECTED broker gates
// new autonomous decisions; WARNING is log-only).
func (h *HeartbeatMonitor) GatesAutonomy(name string) bool {
	switch h.State(name) {
	case HeartbeatDegraded, HeartbeatDisconnected:
		return true
	default:
		return false
	}
}
