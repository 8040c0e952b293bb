package lifecycle

import (
	"context"
	"fmt"
)

// Manager registers a set of Services and starts/stops them as one unit:
// Start in registration order, Stop in reverse, collecting (not aborting
// on) the first stop error per service so every service gets a chance to
// shut down cleanly.
type Manager struct {
	services []Service
}

// NewManager builds an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds svc to the managed set. Registering the same name twice is
// an error.
func (m *Manager) Register(svc Service) error {
	for _, existing := range m.services {
		if existing.Name() == svc.Name() {
			return fmt.Errorf("service %q already registered", svc.Name())
		}
	}
	m.services = append(m.services, svc)
	return nil
}

// Start starts every registered service in registration order, stopping
// already-started services and returning an error if any Start call fails.
func (m *Manager) Start(ctx context.Context) error {
	for i, svc := range m.services {
		if err := svc.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = m.services[j].Stop(ctx)
			}
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
	}
	return nil
}

// Stop stops every registered service in reverse registration order,
// returning the first error encountered but still attempting every stop.
func (m *Manager) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(m.services) - 1; i >= 0; i-- {
		if err := m.services[i].Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop %s: %w", m.services[i].Name(), err)
		}
	}
	return firstErr
}

// Names returns the registered service names in start order.
func (m *Manager) Names() []string {
	names := make([]string, len(m.services))
	for i, svc := range m.services {
		names[i] = svc.Name()
	}
	return names
}
