package stage

import (
	"context"
	"time"

	"github.com/tradingfloor/platform/internal/audit"
	domainaudit "github.com/tradingfloor/platform/internal/domain/audit"
	"github.com/tradingfloor/platform/internal/domain/bot"
	"github.com/tradingfloor/platform/internal/domain/governance"
	plerrors "github.com/tradingfloor/platform/internal/errors"
	"github.com/tradingfloor/platform/internal/platform/lifecycle"
	"github.com/tradingfloor/platform/internal/storage"
)

// DefaultSweepInterval is how often expired PENDING requests are swept.
const DefaultSweepInterval = 10 * time.Minute

// Governance implements the CANARY→LIVE dual-control workflow of spec §4.3.
type Governance struct {
	bots        storage.BotStore
	approvals   storage.GovernanceStore
	metrics     MetricsSource
	chain       *audit.Chain
}

// NewGovernance builds a Governance workflow.
func NewGovernance(bots storage.BotStore, approvals storage.GovernanceStore, metrics MetricsSource, chain *audit.Chain) *Governance {
	return &Governance{bots: bots, approvals: approvals, metrics: metrics, chain: chain}
}

// Request files a CANARY→LIVE approval request. Duplicate PENDING requests
// per bot are rejected.
func (g *Governance) Request(ctx context.Context, botID, requestedBy, justification string) (governance.Approval, error) {
	b, err := g.bots.Get(ctx, botID)
	if err != nil {
		return governance.Approval{}, err
	}
	if b.Stage != bot.StageCanary {
		return governance.Approval{}, plerrors.New(plerrors.CodeIneligible, "bot is not in CANARY stage", plerrors.Sev0, plerrors.TierCritical)
	}

	existing, err := g.approvals.PendingByBot(ctx, botID)
	if err != nil {
		return governance.Approval{}, err
	}
	if existing != nil {
		return governance.Approval{}, plerrors.New(plerrors.CodeDuplicatePending, "a pending request already exists for this bot", plerrors.Sev1, plerrors.TierRecoverable)
	}

	m, err := g.metrics.MetricsFor(ctx, botID)
	if err != nil {
		return governance.Approval{}, err
	}
	eligible, reasons := EvaluatePromotion(bot.StageCanary, bot.StageLive, m)
	gateEval := map[string]bool{"eligible": eligible}
	for _, r := range reasons {
		gateEval[r] = false
	}

	snap := governance.MetricsSnapshot{
		TotalTrades:    derefInt(m.TotalTrades),
		GateEvaluation: gateEval,
	}
	if m.Sharpe != nil {
		snap.Sharpe = *m.Sharpe
	}
	if m.WinRate != nil {
		snap.WinRate = *m.WinRate
	}
	if m.ProfitFactor != nil {
		snap.ProfitFactor = *m.ProfitFactor
	}
	if m.MaxDrawdownPct != nil {
		snap.MaxDrawdownPct = *m.MaxDrawdownPct
	}

	now := time.Now().UTC()
	return g.approvals.Create(ctx, governance.Approval{
		BotID:           botID,
		RequestedAction: "PROMOTE",
		FromStage:       string(bot.StageCanary),
		ToStage:         string(bot.StageLive),
		RequestedBy:     requestedBy,
		Justification:   justification,
		Status:          governance.StatusPending,
		ExpiresAt:       now.Add(governance.RequestTTL),
		MetricsSnapshot: snap,
	})
}

// Approve executes the promotion atomically with the approval. Approver
// must differ from requester (spec §8 invariant 3). If execution fails, the
// approval row reverts to PENDING with the error recorded in reviewNotes.
func (g *Governance) Approve(ctx context.Context, approvalID, approverID string) (governance.Approval, error) {
	a, err := g.approvals.Get(ctx, approvalID)
	if err != nil {
		return governance.Approval{}, err
	}
	if a.Status != governance.StatusPending {
		return governance.Approval{}, plerrors.New(plerrors.CodeIneligible, "approval is not pending", plerrors.Sev1, plerrors.TierRecoverable)
	}
	if approverID == a.RequestedBy {
		return governance.Approval{}, plerrors.New(plerrors.CodeDualControlViolation, "Dual control violation", plerrors.Sev0, plerrors.TierCritical)
	}

	b, err := g.bots.Get(ctx, a.BotID)
	if err != nil {
		return g.revertToPending(ctx, a, err)
	}
	if b.Stage != bot.StageCanary {
		return g.revertToPending(ctx, a, plerrors.New(plerrors.CodeIneligible, "bot is no longer in CANARY stage", plerrors.Sev0, plerrors.TierCritical))
	}

	original := b
	b.Stage = bot.StageLive
	b.UpdatedAt = time.Now().UTC()
	if _, err := g.bots.Update(ctx, b); err != nil {
		return g.revertToPending(ctx, a, err)
	}

	if _, err := g.chain.Append(ctx, domainaudit.Entry{
		EventType:  domainaudit.EventPromoted,
		EntityType: "bot",
		EntityID:   a.BotID,
		ActorType:  "user",
		ActorID:    approverID,
		EventPayload: map[string]interface{}{
			"from":        string(bot.StageCanary),
			"to":          string(bot.StageLive),
			"approvalId":  a.ID,
			"requestedBy": a.RequestedBy,
		},
	}); err != nil {
		_, _ = g.bots.Update(ctx, original)
		return g.revertToPending(ctx, a, err)
	}

	a.Status = governance.StatusApproved
	a.ReviewedBy = approverID
	a.ReviewNotes = ""
	return g.approvals.Update(ctx, a)
}

func (g *Governance) revertToPending(ctx context.Context, a governance.Approval, cause error) (governance.Approval, error) {
	a.Status = governance.StatusPending
	a.ReviewNotes = cause.Error()
	updated, updateErr := g.approvals.Update(ctx, a)
	if updateErr != nil {
		return governance.Approval{}, updateErr
	}
	return updated, cause
}

// Reject marks a PENDING approval rejected.
func (g *Governance) Reject(ctx context.Context, approvalID, rejecterID, reason string) (governance.Approval, error) {
	a, err := g.approvals.Get(ctx, approvalID)
	if err != nil {
		return governance.Approval{}, err
	}
	if a.Status != governance.StatusPending {
		return governance.Approval{}, plerrors.New(plerrors.CodeIneligible, "approval is not pending", plerrors.Sev1, plerrors.TierRecoverable)
	}
	a.Status = governance.StatusRejected
	a.ReviewedBy = rejecterID
	a.ReviewNotes = reason
	return g.approvals.Update(ctx, a)
}

// Withdraw lets the original requester cancel a PENDING request.
func (g *Governance) Withdraw(ctx context.Context, approvalID, userID string) (governance.Approval, error) {
	a, err := g.approvals.Get(ctx, approvalID)
	if err != nil {
		return governance.Approval{}, err
	}
	if a.Status != governance.StatusPending {
		return governance.Approval{}, plerrors.New(plerrors.CodeIneligible, "approval is not pending", plerrors.Sev1, plerrors.TierRecoverable)
	}
	if a.RequestedBy != userID {
		return governance.Approval{}, plerrors.New(plerrors.CodeDualControlViolation, "only the requester may withdraw", plerrors.Sev1, plerrors.TierRecoverable)
	}
	a.Status = governance.StatusWithdrawn
	return g.approvals.Update(ctx, a)
}

// List returns every PENDING approval.
func (g *Governance) List(ctx context.Context) ([]governance.Approval, error) {
	return g.approvals.ListPending(ctx)
}

// History returns the most recent approvals for a bot, newest first.
func (g *Governance) History(ctx context.Context, botID string, limit int) ([]governance.Approval, error) {
	return g.approvals.HistoryByBot(ctx, botID, limit)
}

// SweepWorker expires PENDING requests past their TTL, per spec §4.3's
// "Expired rows are swept by a periodic worker."
func (g *Governance) SweepWorker(interval time.Duration) lifecycle.Service {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return lifecycle.NewTickerWorker("governance-sweeper", interval, func(ctx context.Context) {
		_ = g.sweepOnce(ctx)
	})
}

func (g *Governance) sweepOnce(ctx context.Context) error {
	pending, err := g.approvals.ListPending(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, a := range pending {
		if a.IsExpired(now) {
			a.Status = governance.StatusExpired
			if _, err := g.approvals.Update(ctx, a); err != nil {
				return err
			}
		}
	}
	return nil
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
