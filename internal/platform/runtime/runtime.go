// Package runtime wires every domain component into one Application,
// grounded on internal/app/application.go's Stores-and-services wiring
// struct: storage, audit, backtest, stage, risk, broker, and validators
// are constructed here and handed a shared internal/platform/lifecycle
// Manager that starts and stops every background worker as one unit.
package runtime

import (
	"context"
	"time"

	"github.com/tradingfloor/platform/internal/audit"
	"github.com/tradingfloor/platform/internal/backtest"
	"github.com/tradingfloor/platform/internal/barcache"
	"github.com/tradingfloor/platform/internal/broker"
	"github.com/tradingfloor/platform/internal/config"
	"github.com/tradingfloor/platform/internal/evolution"
	"github.com/tradingfloor/platform/internal/metrics"
	"github.com/tradingfloor/platform/internal/platform/lifecycle"
	"github.com/tradingfloor/platform/internal/risk"
	"github.com/tradingfloor/platform/internal/stage"
	"github.com/tradingfloor/platform/internal/storage"
	"github.com/tradingfloor/platform/pkg/logger"
)

// Application ties every domain service together and manages the
// background workers' lifecycle through one Manager.
type Application struct {
	Config config.Config
	Log    *logger.Logger

	Store *storage.Memory
	Chain *audit.Chain

	BarCache        *barcache.Cache
	Executor        *backtest.Executor
	BacktestService *backtest.Service

	StageEngine     *stage.Engine
	Governance      *stage.Governance
	EvolutionEngine *evolution.Engine

	RiskService *risk.Service
	FleetEngine *risk.FleetEngine

	Idempotency *audit.Middleware
	Heartbeat   *broker.HeartbeatMonitor

	manager *lifecycle.Manager
}

// Dependencies carries the external collaborators a concrete deployment
// supplies: a real Redis client, a real bar-data provider, the fleet's
// open-positions/account views, and named broker heartbeat pingers. A nil
// Provider, FleetPositions, FleetAccounts or Scores falls back to a
// simulated or empty stand-in, matching spec §1's "contract only" stance on
// these external collaborators. Redis has no stand-in: the bar cache is
// built over deps.Redis as given.
type Dependencies struct {
	Redis            barcache.Redis
	Provider         barcache.Provider
	FleetPositions   risk.PositionsProvider
	FleetAccounts    risk.AccountsProvider
	HeartbeatPingers map[string]broker.Pinger
	// Scores supplies confidence/uniqueness scores for stage promotion
	// gates. These originate from the out-of-scope LLM signal-cascade
	// provider (spec §1); a nil Scores falls back to a neutral default.
	Scores stage.ScoreSource
}

// New builds the fully wired Application. Callers missing a real
// market-data provider get the deterministic simulated provider; callers
// missing fleet position/account views get an empty fleet (no positions,
// zero equity and P&L). A Redis client is always required.
func New(cfg config.Config, deps Dependencies, log *logger.Logger) *Application {
	if log == nil {
		log = logger.NewDefault("platform")
	}

	store := storage.NewMemory()
	chain := audit.NewChain(store.Audit())

	barCacheMetrics := metrics.NewBarCache(nil)
	fleetMetrics := metrics.NewFleet(nil)

	redis := deps.Redis
	provider := deps.Provider
	if provider == nil {
		provider = barcache.SimulatedProvider{Seed: 0x9e3779b9}
	}

	cache := barcache.New(redis, provider, barCacheMetrics, log)
	executor := backtest.New(cache, fleetMetrics, log)
	backtestService := backtest.NewService(executor, store.Bots(), store.Generations(), store.Sessions(), store.Trades(), chain, log, cfg.AllowSimFallback, cfg.HasRealDataProvider())

	metricsSource := stage.NewStorageMetricsSource(store.Bots(), store.Generations(), store.Sessions(), store.Trades(), store.Audit(), deps.Scores)

	stageEngine := stage.New(store.Bots(), metricsSource, chain, log)
	governance := stage.NewGovernance(store.Bots(), store.Governance(), metricsSource, chain)

	evolutionEngine := evolution.NewEngine(store.Bots(), store.Generations(), chain, log)

	riskService := risk.NewService(store.Bots(), chain)

	positions := deps.FleetPositions
	accounts := deps.FleetAccounts
	if positions == nil {
		positions = emptyFleetView{}
	}
	if accounts == nil {
		accounts = emptyFleetView{}
	}
	fleetEngine := risk.NewFleetEngine(positions, accounts, store.Fleet(), chain, fleetMetrics, log)

	idempotency := audit.NewMiddleware(store.Idempotency())
	heartbeat := broker.NewHeartbeatMonitor(deps.HeartbeatPingers, log)

	manager := lifecycle.NewManager()

	return &Application{
		Config:          cfg,
		Log:             log,
		Store:           store,
		Chain:           chain,
		BarCache:        cache,
		Executor:        executor,
		BacktestService: backtestService,
		StageEngine:     stageEngine,
		Governance:      governance,
		EvolutionEngine: evolutionEngine,
		RiskService:     riskService,
		FleetEngine:     fleetEngine,
		Idempotency:     idempotency,
		Heartbeat:       heartbeat,
		manager:         manager,
	}
}

// RegisterWorkers attaches every background worker the platform runs: the
// baseline-backtest cycle, the stage promotion/demotion cycle, the
// governance TTL sweeper, the evolution cycle, the fleet-risk assessment
// loop, the idempotency-record cleaner, the broker heartbeat monitor, and a
// low-frequency stats reporter. Call before Start.
func (a *Application) RegisterWorkers() error {
	workers := []lifecycle.Service{
		a.BacktestService.Worker(backtest.DefaultCycleInterval),
		a.StageEngine.Worker(stage.DefaultEvaluationInterval),
		a.Governance.SweepWorker(stage.DefaultSweepInterval),
		a.EvolutionEngine.Worker(evolution.DefaultCycleInterval),
		a.FleetEngine.Worker(a.Config.FleetRiskInterval),
		a.Idempotency.CleanupWorker(),
		a.Heartbeat.Worker(),
		a.statsReporterWorker(),
	}
	for _, w := range workers {
		if err := a.manager.Register(w); err != nil {
			return err
		}
	}
	return nil
}

// statsReporterWorker periodically logs the audit chain length and fleet
// kill-switch tier, the two pieces of cross-cutting platform state that
// aren't otherwise surfaced by a per-event counter.
func (a *Application) statsReporterWorker() lifecycle.Service {
	const interval = 5 * time.Minute
	return lifecycle.NewTickerWorker("platform-stats-reporter", interval, func(ctx context.Context) {
		entries, err := a.Store.Audit().List(ctx)
		if err != nil {
			a.Log.WithField("error", err).Warn("stats reporter: audit list failed")
			return
		}
		state, err := a.Store.Fleet().Get(ctx)
		if err != nil {
			a.Log.WithField("error", err).Warn("stats reporter: fleet get failed")
			return
		}
		a.Log.WithFields(map[string]interface{}{
			"auditChainLength": len(entries),
			"fleetTier":        state.Tier.String(),
			"fleetDrawdownPct": state.CurrentDrawdownPct,
		}).Info("platform stats")
	})
}

// Start starts every registered background worker.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops every registered background worker.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// emptyFleetView stands in for missing fleet views: no open positions and
// zero peak equity, current equity and daily P&L.
type emptyFleetView struct{}

func (emptyFleetView) OpenPositions(context.Context) ([]risk.Position, error) { return nil, nil }
func (emptyFleetView) PeakEquity(context.Context) (float64, error)            { return 0, nil }
func (emptyFleetView) CurrentEquity(context.Context) (float64, error)         { return 0, nil }
func (emptyFleetView) DailyRealizedPnl(context.Context) (float64, error)      { return 0, nil }
