package broker

import (
	"time"

	"github.com/tradingfloor/platform/internal/platform/resilience"
)

// Class is the resilience-policy bucket an adapter call falls into (spec
// §4.7's per-class timeout/retry/circuit table).
type Class string

const (
	ClassBroker     Class = "broker"
	ClassMarketData Class = "market_data"
	ClassResearchAI Class = "research_ai"
)

// ClassPolicy is one class's timeout/retry/circuit-breaker configuration.
type ClassPolicy struct {
	Timeout          time.Duration
	RetryAttempts    int
	CircuitFailures  int
	CircuitCooldown  time.Duration
}

// classPolicies is the static table spec §4.7 pins literally: broker 10s
// timeout/2 retries/3-failure circuit/30s cooldown; market data
// 30s/3/5/60s; research/AI 60s/2/5/30s.
var classPolicies = map[Class]ClassPolicy{
	ClassBroker:     {Timeout: 10 * time.Second, RetryAttempts: 2, CircuitFailures: 3, CircuitCooldown: 30 * time.Second},
	ClassMarketData: {Timeout: 30 * time.Second, RetryAttempts: 3, CircuitFailures: 5, CircuitCooldown: 60 * time.Second},
	ClassResearchAI: {Timeout: 60 * time.Second, RetryAttempts: 2, CircuitFailures: 5, CircuitCooldown: 30 * time.Second},
}

// PolicyFor returns the configured policy for a class, or the broker
// class's conservative policy if class is unrecognized.
func PolicyFor(c Class) ClassPolicy {
	if p, ok := classPolicies[c]; ok {
		return p
	}
	return classPolicies[ClassBroker]
}

func (p ClassPolicy) circuitConfig(onStateChange func(from, to resilience.State)) resilience.Config {
	return resilience.Config{
		MaxFailures:   p.CircuitFailures,
		Timeout:       p.CircuitCooldown,
		HalfOpenMax:   1,
		OnStateChange: onStateChange,
	}
}

func (p ClassPolicy) retryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		// RetryAttempts counts retries after the first call; MaxAttempts
		// counts every call, the first one included.
		MaxAttempts:  p.RetryAttempts + 1,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     p.Timeout,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}
