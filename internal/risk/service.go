package risk

import (
	"context"
	"time"

	"github.com/tradingfloor/platform/internal/audit"
	domainaudit "github.com/tradingfloor/platform/internal/domain/audit"
	"github.com/tradingfloor/platform/internal/domain/bot"
	"github.com/tradingfloor/platform/internal/storage"
)

// AccountState supplies the equity/balance figures an account lookup would
// otherwise provide; callers (e.g. the backtest session pipeline, or a
// future live-trading loop) compute these from their own bookkeeping.
type AccountState struct {
	PeakEquity          float64
	CurrentEquity       float64
	DailyPnl            float64
	StartOfDayBalance   float64
	CapitalRemainingPct float64
}

// Service evaluates per-bot gates and, on a blown account, transitions the
// bot to KILLED and appends the blown-account audit record transactionally.
type Service struct {
	bots  storage.BotStore
	chain *audit.Chain
}

// NewService builds a per-bot risk gate Service.
func NewService(bots storage.BotStore, chain *audit.Chain) *Service {
	return &Service{bots: bots, chain: chain}
}

// CanOpenPosition is the HARD_BLOCK-to-bool projection callers use on the
// hot path before submitting an order (spec §8 invariant 6: a KILLED bot
// can never open a position, regardless of gate state).
func (s *Service) CanOpenPosition(b bot.Bot, acct AccountState, requestedSize, maxSize, valueAtRisk, portfolioValue float64) bool {
	if !b.CanOpenPosition() {
		return false
	}
	eval := Evaluate(BotInput{
		Killed:              b.Stage == bot.StageKilled,
		PeakEquity:          acct.PeakEquity,
		CurrentEquity:       acct.CurrentEquity,
		DailyPnl:            acct.DailyPnl,
		StartOfDayBalance:   acct.StartOfDayBalance,
		CapitalRemainingPct: acct.CapitalRemainingPct,
		RequestedSize:       requestedSize,
		MaxPositionSize:     maxSize,
		ValueAtRisk:         valueAtRisk,
		PortfolioValue:      portfolioValue,
	})
	return eval.Level != LevelHardBlock && eval.Level != LevelSoftBlock
}

// EvaluateAndEnforce runs the full per-bot gate set and, if the account is
// blown, kills the bot and appends the audit record in one transactional
// step (store update then audit append; revert on audit failure), matching
// the stage engine's transition discipline.
func (s *Service) EvaluateAndEnforce(ctx context.Context, b bot.Bot, acct AccountState, requestedSize, maxSize, valueAtRisk, portfolioValue float64) (Evaluation, error) {
	eval := Evaluate(BotInput{
		Killed:              b.Stage == bot.StageKilled,
		PeakEquity:          acct.PeakEquity,
		CurrentEquity:       acct.CurrentEquity,
		DailyPnl:            acct.DailyPnl,
		StartOfDayBalance:   acct.StartOfDayBalance,
		CapitalRemainingPct: acct.CapitalRemainingPct,
		RequestedSize:       requestedSize,
		MaxPositionSize:     maxSize,
		ValueAtRisk:         valueAtRisk,
		PortfolioValue:      portfolioValue,
	})

	if !eval.Blown || b.Stage == bot.StageKilled {
		return eval, nil
	}

	original := b
	b.Stage = bot.StageKilled
	b.Paused = true
	b.UpdatedAt = time.Now().UTC()

	if _, err := s.bots.Update(ctx, b); err != nil {
		return eval, err
	}
	if _, err := s.chain.Append(ctx, domainaudit.Entry{
		EventType:  domainaudit.EventKilled,
		EntityType: "bot",
		EntityID:   b.ID,
		ActorType:  "system",
		ActorID:    "risk-engine",
		EventPayload: map[string]interface{}{
			"reason":      "blown_account",
			"drawdownPct": eval.DrawdownPct,
		},
	}); err != nil {
		_, _ = s.bots.Update(ctx, original)
		return eval, err
	}
	return eval, nil
}
