package broker

import (
	"context"

	"github.com/tradingfloor/platform/internal/platform/resilience"
	"github.com/tradingfloor/platform/pkg/logger"
)

// Client wraps a concrete Adapter with the circuit-breaker, retry, and
// per-call timeout policy for its class, so every caller goes through the
// same resilience envelope regardless of which adapter is plugged in.
type Client struct {
	adapter Adapter
	class   Class
	policy  ClassPolicy
	cb      *resilience.CircuitBreaker
	log     *logger.Logger
}

// NewClient builds a Client for adapter under the named resilience class.
func NewClient(adapter Adapter, class Class, log *logger.Logger) *Client {
	policy := PolicyFor(class)
	cfg := policy.circuitConfig(nil)
	if log != nil {
		cfg = resilience.WithLogging(cfg, log, string(class))
	}
	return &Client{
		adapter: adapter,
		class:   class,
		policy:  policy,
		cb:      resilience.New(cfg),
		log:     log,
	}
}

// State returns the wrapping circuit breaker's current state.
func (c *Client) State() resilience.State {
	return c.cb.State()
}

// SubmitOrder submits an order through the class's circuit-breaker, retry,
// and timeout envelope.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (ExecutionReport, error) {
	var report ExecutionReport
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		report, err = c.adapter.SubmitOrder(ctx, req)
		return err
	})
	return report, err
}

// CancelOrder cancels an order through the same resilience envelope.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (ExecutionReport, error) {
	var report ExecutionReport
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		report, err = c.adapter.CancelOrder(ctx, orderID)
		return err
	})
	return report, err
}

func (c *Client) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.policy.Timeout)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return resilience.Retry(ctx, c.policy.retryConfig(), func() error {
			return fn(ctx)
		})
	})
}
