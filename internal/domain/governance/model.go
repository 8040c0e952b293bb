// Package governance models the dual-control approval workflow gating
// CANARY->LIVE promotion.
package governance

import "time"

// Status is the approval request lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusExpired   Status = "EXPIRED"
	StatusWithdrawn Status = "WITHDRAWN"
)

// RequestTTL is how long a PENDING request stands before the sweeper expires it.
const RequestTTL = 24 * time.Hour

// MetricsSnapshot freezes the bot's metrics and gate evaluation at request time.
type MetricsSnapshot struct {
	Sharpe         float64
	WinRate        float64
	ProfitFactor   float64
	MaxDrawdownPct float64
	TotalTrades    int
	GateEvaluation map[string]bool
}

// Approval is one GovernanceApproval row.
type Approval struct {
	ID              string
	BotID           string
	RequestedAction string
	FromStage       string
	ToStage         string
	RequestedBy     string
	Justification   string
	ReviewedBy      string
	ReviewNotes     string
	Status          Status
	ExpiresAt       time.Time
	MetricsSnapshot MetricsSnapshot
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsExpired reports whether a PENDING approval has outlived its TTL as of now.
func (a Approval) IsExpired(now time.Time) bool {
	return a.Status == StatusPending && now.After(a.ExpiresAt)
}

// ValidApproval enforces invariant 3 (spec §8): reviewer must differ from requester.
func (a Approval) ValidApproval() bool {
	return a.Status == StatusApproved && a.ReviewedBy != "" && a.ReviewedBy != a.RequestedBy
}
