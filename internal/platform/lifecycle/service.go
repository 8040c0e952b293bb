// Package lifecycle defines the shared interface every long-running worker
// in this platform implements: the baseline-backtest cycle, the promotion
// worker, the governance-expiration sweeper, the evolution cycle, the
// fleet-risk loop, the idempotency cleaner, the broker heartbeat monitor,
// and the platform stats reporter. Grounded on
// internal/app/system.Service plus its one concrete implementation,
// services/automation's ticker-driven Scheduler.
package lifecycle

import "context"

// Service is a background worker with an explicit start/stop boundary.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
