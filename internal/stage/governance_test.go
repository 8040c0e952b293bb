package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradingfloor/platform/internal/audit"
	"github.com/tradingfloor/platform/internal/domain/bot"
	"github.com/tradingfloor/platform/internal/domain/governance"
	"github.com/tradingfloor/platform/internal/storage"
)

func newTestGovernance(t *testing.T, botID string, m Metrics) (*Governance, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	ctx := context.Background()
	_, err := mem.Bots().Create(ctx, bot.Bot{ID: botID, Stage: bot.StageCanary})
	require.NoError(t, err)
	return NewGovernance(mem.Bots(), mem.Governance(), staticMetrics{botID: m}, audit.NewChain(mem.Audit())), mem
}

func TestGovernanceSelfApprovalRejected(t *testing.T) {
	gov, _ := newTestGovernance(t, "b42", Metrics{Sharpe: f(1), MaxDrawdownPct: f(5), WinRate: f(60), TotalTrades: n(60), ProfitFactor: f(1.5)})
	ctx := context.Background()

	req, err := gov.Request(ctx, "b42", "u1", "looks solid")
	require.NoError(t, err)

	_, err = gov.Approve(ctx, req.ID, "u1")
	assert.Error(t, err)
}

func TestGovernanceDifferentApproverPromotes(t *testing.T) {
	gov, mem := newTestGovernance(t, "b42", Metrics{Sharpe: f(1), MaxDrawdownPct: f(5), WinRate: f(60), TotalTrades: n(60), ProfitFactor: f(1.5)})
	ctx := context.Background()

	req, err := gov.Request(ctx, "b42", "u1", "looks solid")
	require.NoError(t, err)

	approved, err := gov.Approve(ctx, req.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, governance.StatusApproved, approved.Status)

	b, err := mem.Bots().Get(ctx, "b42")
	require.NoError(t, err)
	assert.Equal(t, bot.StageLive, b.Stage)

	entries, err := mem.Audit().List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "PROMOTED", entries[0].EventType)
	assert.Empty(t, entries[0].PreviousHash)
}

func TestGovernanceDuplicatePendingRejected(t *testing.T) {
	gov, _ := newTestGovernance(t, "b42", Metrics{Sharpe: f(1), MaxDrawdownPct: f(5), WinRate: f(60), TotalTrades: n(60), ProfitFactor: f(1.5)})
	ctx := context.Background()

	_, err := gov.Request(ctx, "b42", "u1", "first")
	require.NoError(t, err)

	_, err = gov.Request(ctx, "b42", "u1", "second")
	assert.Error(t, err)
}

func TestGovernanceWithdrawOnlyByRequester(t *testing.T) {
	gov, _ := newTestGovernance(t, "b42", Metrics{Sharpe: f(1), MaxDrawdownPct: f(5), WinRate: f(60), TotalTrades: n(60), ProfitFactor: f(1.5)})
	ctx := context.Background()

	req, err := gov.Request(ctx, "b42", "u1", "first")
	require.NoError(t, err)

	_, err = gov.Withdraw(ctx, req.ID, "u2")
	assert.Error(t, err)

	withdrawn, err := gov.Withdraw(ctx, req.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, governance.StatusWithdrawn, withdrawn.Status)
}
