package evolution

import (
	"context"
	"time"

	"github.com/tradingfloor/platform/internal/audit"
	"github.com/tradingfloor/platform/internal/backtest/rng"
	domainaudit "github.com/tradingfloor/platform/internal/domain/audit"
	"github.com/tradingfloor/platform/internal/domain/bot"
	"github.com/tradingfloor/platform/internal/domain/generation"
	"github.com/tradingfloor/platform/internal/platform/lifecycle"
	"github.com/tradingfloor/platform/internal/storage"
	"github.com/tradingfloor/platform/pkg/logger"
)

// DefaultCycleInterval is how often the evolution cycle re-scores every
// active bot's current generation and spawns a mutated child when
// warranted.
const DefaultCycleInterval = 30 * time.Minute

// parameterSpace is the fixed archetype-agnostic parameter set every
// generation's StrategyConfig mutates over. Per-archetype tuning lives on
// top of this via RiskConfig, which evolution does not touch.
var parameterSpace = []Parameter{
	{Name: "stopLossTicks", Type: ParamInteger, Min: 2, Max: 40, Default: 8.0, MutationWeight: 1.0},
	{Name: "takeProfitTicks", Type: ParamInteger, Min: 2, Max: 80, Default: 16.0, MutationWeight: 1.0},
	{Name: "entryThresholdPct", Type: ParamFloat, Min: 0.05, Max: 2.0, Default: 0.5, MutationWeight: 0.8},
	{Name: "positionSizeMultiplier", Type: ParamFloat, Min: 0.25, Max: 2.0, Default: 1.0, MutationWeight: 0.6},
}

// strategyForPriority maps an evolution-decision priority to the mutation
// strategy applied to the next generation: HIGH gets the most disruptive
// jump (boundary), MEDIUM a moderate gaussian step, LOW the gentlest
// adaptive decay.
var strategyForPriority = map[Priority]Strategy{
	PriorityHigh:   StrategyBoundary,
	PriorityMedium: StrategyGaussian,
	PriorityLow:    StrategyAdaptive,
}

// Engine evaluates every active bot's current generation once per cycle and
// spawns a mutated child generation when Decide calls for one.
type Engine struct {
	bots        storage.BotStore
	generations storage.GenerationStore
	chain       *audit.Chain
	log         *logger.Logger
}

// NewEngine builds an evolution Engine.
func NewEngine(bots storage.BotStore, generations storage.GenerationStore, chain *audit.Chain, log *logger.Logger) *Engine {
	return &Engine{bots: bots, generations: generations, chain: chain, log: log}
}

// Worker wraps RunCycle in a lifecycle.Service ticking at interval.
func (e *Engine) Worker(interval time.Duration) lifecycle.Service {
	if interval <= 0 {
		interval = DefaultCycleInterval
	}
	return lifecycle.NewTickerWorker("evolution-cycle-worker", interval, func(ctx context.Context) {
		if err := e.RunCycle(ctx); err != nil {
			e.log.WithField("error", err).Error("evolution cycle failed")
		}
	})
}

// RunCycle scores every non-KILLED bot's current generation and, when
// Decide returns anything above PriorityNone, mutates a child generation
// into existence from it.
func (e *Engine) RunCycle(ctx context.Context) error {
	bots, err := e.bots.List(ctx)
	if err != nil {
		return err
	}

	for _, b := range bots {
		if b.Stage == bot.StageKilled || b.CurrentGenerationID == "" {
			continue
		}
		if err := e.evaluateBot(ctx, b); err != nil {
			e.log.WithField("bot_id", b.ID).WithField("error", err).Warn("evolution: bot evaluation failed")
		}
	}
	return nil
}

func (e *Engine) evaluateBot(ctx context.Context, b bot.Bot) error {
	parent, err := e.generations.Get(ctx, b.CurrentGenerationID)
	if err != nil {
		return err
	}
	if parent.PerformanceSnapshot == nil {
		return nil
	}

	snap := parent.PerformanceSnapshot
	priority, fitness := Decide(PerformanceInput{
		TotalTrades:    snap.TotalTrades,
		Sharpe:         snap.Sharpe,
		MaxDrawdownPct: snap.MaxDrawdownPct,
		ProfitFactor:   snap.ProfitFactor,
		WinRate:        snap.WinRate,
		Expectancy:     snap.Expectancy,
	})
	if priority == PriorityNone {
		return nil
	}

	strategy, ok := strategyForPriority[priority]
	if !ok {
		strategy = StrategyGaussian
	}

	r := rng.New(seedFor(b.ID, parent.Number))
	mutIn := MutationInput{
		Generation:   parent.Number,
		BaseRate:     0.3,
		BaseStrength: 0.2,
	}

	base := parent.StrategyConfig
	if priority == PriorityHigh {
		if grandparent, ok, err := e.sibling(ctx, b.ID, parent.ParentNumber); err == nil && ok {
			base = Crossover(parent.StrategyConfig, grandparent.StrategyConfig, parameterSpace, r)
		}
	}

	child := make(map[string]interface{}, len(parameterSpace))
	for _, p := range parameterSpace {
		current, ok := base[p.Name]
		if !ok {
			current = p.Default
		}
		if r.Float64() > p.MutationWeight {
			child[p.Name] = current
			continue
		}
		child[p.Name] = Mutate(strategy, p, current, r, mutIn)
	}

	childGen := generation.Generation{
		BotID:          b.ID,
		Number:         parent.Number + 1,
		ParentNumber:   parent.Number,
		StrategyConfig: child,
	}
	created, err := e.generations.Create(ctx, childGen)
	if err != nil {
		return err
	}

	b.CurrentGenerationID = created.ID
	if _, err := e.bots.Update(ctx, b); err != nil {
		return err
	}

	_, err = e.chain.Append(ctx, domainaudit.Entry{
		EventType:  domainaudit.EventGenerationEvolved,
		EntityType: "bot",
		EntityID:   b.ID,
		ActorType:  "system",
		ActorID:    "evolution-engine",
		EventPayload: map[string]interface{}{
			"parentGeneration": parent.Number,
			"childGeneration":  created.Number,
			"priority":         string(priority),
			"fitness":          fitness,
			"strategy":         string(strategy),
		},
	})
	return err
}

// sibling looks up one of a bot's prior generations by its Number, used to
// pull the grandparent config into a crossover base for HIGH-priority
// (i.e. most disruptive) evolution cycles.
func (e *Engine) sibling(ctx context.Context, botID string, number int) (generation.Generation, bool, error) {
	if number <= 0 {
		return generation.Generation{}, false, nil
	}
	gens, err := e.generations.ListByBot(ctx, botID)
	if err != nil {
		return generation.Generation{}, false, err
	}
	for _, g := range gens {
		if g.Number == number {
			return g, true, nil
		}
	}
	return generation.Generation{}, false, nil
}

// seedFor derives a deterministic per-bot-per-generation PRNG seed so the
// same (bot, generation) pair always mutates the same way, matching the
// backtest executor's seeded-determinism contract.
func seedFor(botID string, generationNumber int) uint32 {
	var h uint32 = 2166136261
	for _, c := range botID {
		h ^= uint32(c)
		h *= 16777619
	}
	h ^= uint32(generationNumber)
	h *= 16777619
	return h
}
