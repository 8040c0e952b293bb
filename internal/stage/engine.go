package stage

import (
	"context"
	"time"

	"github.com/tradingfloor/platform/internal/audit"
	domainaudit "github.com/tradingfloor/platform/internal/domain/audit"
	"github.com/tradingfloor/platform/internal/domain/bot"
	"github.com/tradingfloor/platform/internal/platform/lifecycle"
	"github.com/tradingfloor/platform/pkg/logger"
	"github.com/tradingfloor/platform/internal/storage"
)

// DefaultEvaluationInterval is how often the promotion/demotion cycle runs.
const DefaultEvaluationInterval = 5 * time.Minute

var ladder = []bot.Stage{bot.StageTrials, bot.StagePaper, bot.StageShadow, bot.StageCanary, bot.StageLive}

func nextStage(s bot.Stage) (bot.Stage, bool) {
	for i, st := range ladder {
		if st == s && i+1 < len(ladder) {
			return ladder[i+1], true
		}
	}
	return "", false
}

// MetricsSource supplies the gate-relevant metrics for a bot at evaluation
// time; the stage engine does not compute metrics itself.
type MetricsSource interface {
	MetricsFor(ctx context.Context, botID string) (Metrics, error)
}

// Engine evaluates the bot population once per cycle: demotion first, then
// promotion, per spec §4.3's evaluation order.
type Engine struct {
	bots    storage.BotStore
	metrics MetricsSource
	chain   *audit.Chain
	log     *logger.Logger
}

// New builds a stage Engine.
func New(bots storage.BotStore, metrics MetricsSource, chain *audit.Chain, log *logger.Logger) *Engine {
	return &Engine{bots: bots, metrics: metrics, chain: chain, log: log}
}

// Worker wraps RunCycle in a lifecycle.Service ticking at interval.
func (e *Engine) Worker(interval time.Duration) lifecycle.Service {
	if interval <= 0 {
		interval = DefaultEvaluationInterval
	}
	return lifecycle.NewTickerWorker("stage-promotion-worker", interval, func(ctx context.Context) {
		if err := e.RunCycle(ctx); err != nil {
			e.log.WithField("error", err).Error("stage engine cycle failed")
		}
	})
}

// RunCycle evaluates every eligible bot once.
func (e *Engine) RunCycle(ctx context.Context) error {
	bots, err := e.bots.List(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, b := range bots {
		if b.Archived || b.Stage == bot.StageKilled || b.IsLocked(now) {
			continue
		}
		e.evaluateOne(ctx, b, now)
	}
	return nil
}

func (e *Engine) evaluateOne(ctx context.Context, b bot.Bot, now time.Time) {
	m, err := e.metrics.MetricsFor(ctx, b.ID)
	if err != nil {
		e.log.WithField("bot_id", b.ID).WithField("error", err).Warn("stage engine: metrics unavailable")
		return
	}

	if decision := EvaluateDemotion(b.Stage, m); decision.Demote {
		e.transactionalTransition(ctx, b, decision.Target, domainaudit.EventDemoted, map[string]interface{}{
			"from":    string(b.Stage),
			"to":      string(decision.Target),
			"trigger": decision.Trigger,
		})
		return
	}

	// CANARY→LIVE is never auto-executed here; it always routes through the
	// governance workflow regardless of manual-promotion mode.
	if b.Stage == bot.StageCanary {
		return
	}
	if b.ManualPromotionMode {
		return
	}

	target, ok := nextStage(b.Stage)
	if !ok {
		return
	}
	eligible, reasons := EvaluatePromotion(b.Stage, target, m)
	if !eligible {
		e.log.WithField("bot_id", b.ID).WithField("reasons", reasons).Debug("stage engine: promotion gate not met")
		return
	}
	e.transactionalTransition(ctx, b, target, domainaudit.EventPromoted, map[string]interface{}{
		"from": string(b.Stage),
		"to":   string(target),
	})
}

// transactionalTransition commits the stage change and its audit entry as
// one unit: if the audit append fails, the bot row is reverted so no
// unaudited transition is ever left standing (spec §4.3 "transactional").
func (e *Engine) transactionalTransition(ctx context.Context, b bot.Bot, target bot.Stage, eventType string, payload map[string]interface{}) {
	original := b
	b.Stage = target
	b.UpdatedAt = time.Now().UTC()

	if _, err := e.bots.Update(ctx, b); err != nil {
		e.log.WithField("bot_id", b.ID).WithField("error", err).Error("stage engine: transition update failed")
		return
	}

	if _, err := e.chain.Append(ctx, domainaudit.Entry{
		EventType:    eventType,
		EntityType:   "bot",
		EntityID:     b.ID,
		ActorType:    "system",
		ActorID:      "stage-engine",
		EventPayload: payload,
	}); err != nil {
		e.log.WithField("bot_id", b.ID).WithField("error", err).Error("stage engine: audit append failed, reverting transition")
		_, _ = e.bots.Update(ctx, original)
	}
}
