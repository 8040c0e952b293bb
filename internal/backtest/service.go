package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tradingfloor/platform/internal/audit"
	domainaudit "github.com/tradingfloor/platform/internal/domain/audit"
	"github.com/tradingfloor/platform/internal/domain/bar"
	"github.com/tradingfloor/platform/internal/domain/bot"
	"github.com/tradingfloor/platform/internal/domain/session"
	"github.com/tradingfloor/platform/internal/platform/lifecycle"
	"github.com/tradingfloor/platform/internal/storage"
	"github.com/tradingfloor/platform/pkg/logger"
)

// DefaultCycleInterval is how often Worker re-scans for generations still
// awaiting their baseline backtest.
const DefaultCycleInterval = 15 * time.Minute

// DefaultWindow/DefaultTimeframe/DefaultInitialCapital are the parameters
// Worker's automatic cycle runs backtests with, when nothing more specific
// commissioned the session. An explicit caller using RunBacktest directly
// (e.g. a re-backtest request for a changed window) picks its own.
const (
	DefaultWindow         = 30 * 24 * time.Hour
	DefaultTimeframe      = bar.TF5m
	DefaultInitialCapital = 10000.0
)

// RunRequest is the per-invocation window a caller commissions a backtest
// for. Everything else (symbol, archetype, strategy config, stage, session
// mode) is pulled from the bot and its current generation.
type RunRequest struct {
	BotID          string
	Timeframe      bar.Timeframe
	StartTs        time.Time
	EndTs          time.Time
	InitialCapital float64
}

// Service is the persistence-aware orchestration layer around Executor: it
// loads the bot and generation, writes the running session row before
// fetching bars, commits the trade batch and final session state once the
// loop completes, and applies the generation baseline update as the
// post-commit side effect, per spec §4.2 steps 2 and the "generation
// baseline update" and "atomic persistence" requirements.
type Service struct {
	executor    *Executor
	bots        storage.BotStore
	generations storage.GenerationStore
	sessions    storage.SessionStore
	trades      storage.TradeStore
	chain       *audit.Chain
	log         *logger.Logger

	allowSimFallback bool
	hasRealProvider  bool
}

// NewService builds a Service. allowSimFallback and hasRealProvider mirror
// the deployment-wide config.Config fields; they are the same for every
// bot in a given process.
func NewService(executor *Executor, bots storage.BotStore, generations storage.GenerationStore, sessions storage.SessionStore, trades storage.TradeStore, chain *audit.Chain, log *logger.Logger, allowSimFallback, hasRealProvider bool) *Service {
	return &Service{
		executor:         executor,
		bots:             bots,
		generations:      generations,
		sessions:         sessions,
		trades:           trades,
		chain:            chain,
		log:              log,
		allowSimFallback: allowSimFallback,
		hasRealProvider:  hasRealProvider,
	}
}

// RunBacktest runs one backtest session for req.BotID end to end: write the
// running session row, run the deterministic executor pipeline, commit the
// trade batch and final session row, then apply the generation baseline
// update. The returned error is the executor's classified failure (if any);
// a storage failure during persistence is returned directly.
func (s *Service) RunBacktest(ctx context.Context, req RunRequest) (*Result, error) {
	b, err := s.bots.Get(ctx, req.BotID)
	if err != nil {
		return nil, fmt.Errorf("backtest: load bot %s: %w", req.BotID, err)
	}
	if b.CurrentGenerationID == "" {
		return nil, fmt.Errorf("backtest: bot %s has no current generation", req.BotID)
	}
	gen, err := s.generations.Get(ctx, b.CurrentGenerationID)
	if err != nil {
		return nil, fmt.Errorf("backtest: load generation %s: %w", b.CurrentGenerationID, err)
	}

	sessionID := uuid.NewString()
	running := session.Session{
		ID:           sessionID,
		BotID:        b.ID,
		GenerationID: gen.ID,
		Status:       session.StatusRunning,
	}
	if _, err := s.sessions.Create(ctx, running); err != nil {
		return nil, fmt.Errorf("backtest: create session row: %w", err)
	}

	in := Input{
		BotID:             b.ID,
		SessionID:         sessionID,
		GenerationID:      gen.ID,
		BotName:           b.Name,
		StoredArchetypeID: b.ArchetypeID,
		ConfigArchetype:   archetypeFromConfig(gen.StrategyConfig),
		StrategyConfig:    gen.StrategyConfig,
		Stage:             string(b.Stage),
		SessionMode:       string(b.SessionMode),
		CustomStart:       "", // CUSTOM session bounds are not modeled on Bot; only RTH_US/ETH/FULL_24x5 are exercised outside tests
		CustomEnd:         "",
		Symbol:            b.Symbol,
		Timeframe:         req.Timeframe,
		StartTs:           req.StartTs,
		EndTs:             req.EndTs,
		InitialCapital:    req.InitialCapital,
		AllowSimFallback:  s.allowSimFallback,
		HasRealProvider:   s.hasRealProvider,
		TraceID:           sessionID,
	}

	result, runErr := s.executor.Run(ctx, in)
	if result == nil || result.Session == nil {
		return result, runErr
	}

	if _, err := s.sessions.Update(ctx, *result.Session); err != nil {
		return result, fmt.Errorf("backtest: update session row: %w", err)
	}

	if len(result.Trades) > 0 {
		for i := range result.Trades {
			if result.Trades[i].ID == "" {
				result.Trades[i].ID = uuid.NewString()
			}
		}
		if err := s.trades.CreateBatch(ctx, result.Trades); err != nil {
			return result, fmt.Errorf("backtest: persist trade batch: %w", err)
		}
	}

	totalTrades := 0
	failureReason := ""
	if result.Session.Metrics != nil {
		totalTrades = result.Session.Metrics.TotalTrades
	}
	if result.Session.ErrorClassification != nil {
		failureReason = string(result.Session.ErrorClassification.Code)
	}
	gen.ApplyBaseline(sessionID, totalTrades, result.BaselineStats, failureReason)
	if _, err := s.generations.Update(ctx, gen); err != nil {
		return result, fmt.Errorf("backtest: apply generation baseline: %w", err)
	}

	if _, err := s.chain.Append(ctx, domainaudit.Entry{
		EventType:  domainaudit.EventBacktestCompleted,
		EntityType: "bot",
		EntityID:   b.ID,
		ActorType:  "system",
		ActorID:    "backtest-service",
		EventPayload: map[string]interface{}{
			"sessionId":    sessionID,
			"generationId": gen.ID,
			"status":       string(result.Session.Status),
			"totalTrades":  totalTrades,
		},
	}); err != nil && s.log != nil {
		s.log.WithField("error", err).WithField("session_id", sessionID).Warn("backtest: audit append failed")
	}

	return result, runErr
}

// archetypeFromConfig reads the optional "archetype" override a generation's
// StrategyConfig may carry, falling back to empty (inference from bot name).
func archetypeFromConfig(cfg map[string]interface{}) string {
	if cfg == nil {
		return ""
	}
	if v, ok := cfg["archetype"].(string); ok {
		return v
	}
	return ""
}

// Worker wraps RunCycle in a lifecycle.Service ticking at interval: the
// call site that makes the executor/persistence pipeline reachable outside
// RunBacktest's direct callers. Without it, a freshly mutated generation
// (evolution.Engine) or a freshly created bot never gets a backtest run
// against it, so PerformanceSnapshot stays nil forever and the stage engine
// can never see anything but a SEV-0 hard stop.
func (s *Service) Worker(interval time.Duration) lifecycle.Service {
	if interval <= 0 {
		interval = DefaultCycleInterval
	}
	return lifecycle.NewTickerWorker("backtest-baseline-worker", interval, func(ctx context.Context) {
		if err := s.RunCycle(ctx); err != nil {
			if s.log != nil {
				s.log.WithField("error", err).Error("backtest cycle failed")
			}
		}
	})
}

// RunCycle runs a baseline backtest for every non-KILLED bot whose current
// generation has never been backtested (BaselineBacktestID == ""), using
// the default window/timeframe/capital. Bots whose generation already has a
// baseline are left alone; re-running a window on demand is RunBacktest's
// job, not the automatic cycle's.
func (s *Service) RunCycle(ctx context.Context) error {
	bots, err := s.bots.List(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, b := range bots {
		if b.Stage == bot.StageKilled || b.CurrentGenerationID == "" {
			continue
		}
		gen, err := s.generations.Get(ctx, b.CurrentGenerationID)
		if err != nil {
			if s.log != nil {
				s.log.WithField("bot_id", b.ID).WithField("error", err).Warn("backtest cycle: generation lookup failed")
			}
			continue
		}
		if gen.BaselineBacktestID != "" {
			continue
		}
		_, err = s.RunBacktest(ctx, RunRequest{
			BotID:          b.ID,
			Timeframe:      DefaultTimeframe,
			StartTs:        now.Add(-DefaultWindow),
			EndTs:          now,
			InitialCapital: DefaultInitialCapital,
		})
		if err != nil && s.log != nil {
			s.log.WithField("bot_id", b.ID).WithField("error", err).Warn("backtest cycle: run failed")
		}
	}
	return nil
}
