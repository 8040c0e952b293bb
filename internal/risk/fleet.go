package risk

import (
	"context"
	"time"

	"github.com/tradingfloor/platform/internal/audit"
	domainaudit "github.com/tradingfloor/platform/internal/domain/audit"
	"github.com/tradingfloor/platform/internal/domain/fleet"
	"github.com/tradingfloor/platform/internal/metrics"
	"github.com/tradingfloor/platform/internal/platform/lifecycle"
	"github.com/tradingfloor/platform/pkg/logger"
	"github.com/tradingfloor/platform/internal/storage"
)

// DefaultFleetInterval matches spec §4.4's default 60s assessment cadence.
const DefaultFleetInterval = 60 * time.Second

const (
	fleetContractLimit       = 500
	fleetDollarLimit         = 500_000
	sectorConcentrationLimit = 0.60
	perSymbolBotCountLimit   = 50
	selfHealingRecoveryPct   = 5.0
)

// Position is one open-position row the fleet engine aggregates over. The
// reference implementation's position lookup returns nothing for VaR
// purposes; this type is the seam a real open-positions view plugs into.
type Position struct {
	BotID          string
	Symbol         string
	Sector         string
	Stage          string
	NetContracts   float64
	GrossContracts float64
	NotionalDollar float64
}

// PositionsProvider supplies the fleet's current open positions.
type PositionsProvider interface {
	OpenPositions(ctx context.Context) ([]Position, error)
}

// AccountsProvider supplies fleet-wide equity and realized P&L figures.
type AccountsProvider interface {
	PeakEquity(ctx context.Context) (float64, error)
	CurrentEquity(ctx context.Context) (float64, error)
	DailyRealizedPnl(ctx context.Context) (float64, error)
}

// FleetEngine is the singleton fleet-risk assessment service (spec §4.4).
// All state reads and the resulting tier decision are serialized through
// its own ticker-driven cycle; canOpenPosition callers elsewhere read the
// stored tier without needing a lock of their own.
type FleetEngine struct {
	positions PositionsProvider
	accounts  AccountsProvider
	store     storage.FleetStore
	chain     *audit.Chain
	metrics   *metrics.Fleet
	log       *logger.Logger
}

// NewFleetEngine builds a FleetEngine.
func NewFleetEngine(positions PositionsProvider, accounts AccountsProvider, store storage.FleetStore, chain *audit.Chain, m *metrics.Fleet, log *logger.Logger) *FleetEngine {
	return &FleetEngine{positions: positions, accounts: accounts, store: store, chain: chain, metrics: m, log: log}
}

// Worker wraps RunCycle in a lifecycle.Service ticking at interval.
func (f *FleetEngine) Worker(interval time.Duration) lifecycle.Service {
	if interval <= 0 {
		interval = DefaultFleetInterval
	}
	return lifecycle.NewTickerWorker("fleet-risk-loop", interval, func(ctx context.Context) {
		if err := f.RunCycle(ctx); err != nil {
			f.log.WithField("error", err).Error("fleet risk cycle failed")
		}
	})
}

// RunCycle aggregates exposure, evaluates violation rules, maps the result
// to a kill-switch tier, self-heals, saves the state and audits any tier
// change. It records the tier only: it pauses no bots and issues no broker
// orders or cancellations itself.
func (f *FleetEngine) RunCycle(ctx context.Context) error {
	positions, err := f.positions.OpenPositions(ctx)
	if err != nil {
		return err
	}
	peak, err := f.accounts.PeakEquity(ctx)
	if err != nil {
		return err
	}
	current, err := f.accounts.CurrentEquity(ctx)
	if err != nil {
		return err
	}
	dailyPnl, err := f.accounts.DailyRealizedPnl(ctx)
	if err != nil {
		return err
	}

	netExposure, grossExposure, perSymbol, perSector, perStage, hhi, maxSectorWeight, perSymbolBotCounts := aggregateExposure(positions)

	drawdownPct := 0.0
	if peak > 0 {
		drawdownPct = (peak - current) / peak * 100
	}

	violations := evaluateViolations(grossExposure, netExposure, drawdownPct, maxSectorWeight, perSymbolBotCounts)
	newTier := mapTier(violations, drawdownPct)

	prev, err := f.store.Get(ctx)
	if err != nil {
		return err
	}

	state := fleet.State{
		Tier:                newTier,
		NetExposure:         netExposure,
		GrossExposure:       grossExposure,
		PerSymbolExposure:   perSymbol,
		PerSectorExposure:   perSector,
		PerStageExposure:    perStage,
		ConcentrationHHI:    hhi,
		DailyPnl:            dailyPnl,
		PeakEquity:          peak,
		CurrentEquity:       current,
		CurrentDrawdownPct:  drawdownPct,
		ActiveViolations:    violations,
	}

	// Self-healing: once elevated, if drawdown has recovered and nothing is
	// currently violating, step one rung toward NORMAL this cycle rather
	// than dropping straight to the tier the rule evaluation above produced.
	if prev.Tier != fleet.TierNormal && drawdownPct < selfHealingRecoveryPct && len(violations) == 0 {
		state.Tier = prev.Tier.StepToward()
		state.SelfHealingActive = true
	}
	state.TierEnteredAt = prev.TierEnteredAt
	if state.Tier != prev.Tier {
		state.TierEnteredAt = time.Now().UTC()
	}

	if err := f.store.Save(ctx, state); err != nil {
		return err
	}
	if f.metrics != nil && f.metrics.Tier != nil {
		f.metrics.Tier.Set(float64(state.Tier))
		f.metrics.Drawdown.Set(drawdownPct)
	}

	if state.Tier != prev.Tier {
		_, err := f.chain.Append(ctx, domainaudit.Entry{
			EventType:  domainaudit.EventFleetTierChanged,
			EntityType: "fleet",
			EntityID:   "singleton",
			ActorType:  "system",
			ActorID:    "fleet-engine",
			EventPayload: map[string]interface{}{
				"from":              prev.Tier.String(),
				"to":                state.Tier.String(),
				"drawdownPct":       drawdownPct,
				"selfHealingActive": state.SelfHealingActive,
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func aggregateExposure(positions []Position) (net, gross fleet.Exposure, perSymbol, perSector, perStage map[string]fleet.Exposure, hhi, maxSectorWeight float64, perSymbolBotCount map[string]map[string]bool) {
	perSymbol = map[string]fleet.Exposure{}
	perSector = map[string]fleet.Exposure{}
	perStage = map[string]fleet.Exposure{}
	perSymbolBotCount = map[string]map[string]bool{}

	var totalNotional float64
	sectorNotional := map[string]float64{}

	for _, p := range positions {
		net.NetContracts += p.NetContracts
		net.GrossContracts += p.GrossContracts
		net.NotionalDollar += p.NotionalDollar
		gross.GrossContracts += p.GrossContracts
		gross.NotionalDollar += p.NotionalDollar

		addExposure(perSymbol, p.Symbol, p)
		addExposure(perSector, p.Sector, p)
		addExposure(perStage, p.Stage, p)

		if perSymbolBotCount[p.Symbol] == nil {
			perSymbolBotCount[p.Symbol] = map[string]bool{}
		}
		perSymbolBotCount[p.Symbol][p.BotID] = true

		totalNotional += abs(p.NotionalDollar)
		sectorNotional[p.Sector] += abs(p.NotionalDollar)
	}

	if totalNotional > 0 {
		for _, e := range perSymbol {
			share := abs(e.NotionalDollar) / totalNotional
			hhi += share * share
		}
		for _, n := range sectorNotional {
			weight := n / totalNotional
			if weight > maxSectorWeight {
				maxSectorWeight = weight
			}
		}
	}

	return net, gross, perSymbol, perSector, perStage, hhi, maxSectorWeight, perSymbolBotCount
}

func addExposure(m map[string]fleet.Exposure, key string, p Position) {
	e := m[key]
	e.NetContracts += p.NetContracts
	e.GrossContracts += p.GrossContracts
	e.NotionalDollar += p.NotionalDollar
	m[key] = e
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func evaluateViolations(gross, net fleet.Exposure, drawdownPct, maxSectorWeight float64, perSymbolBotCount map[string]map[string]bool) []fleet.Violation {
	var violations []fleet.Violation

	if gross.GrossContracts > fleetContractLimit {
		violations = append(violations, fleet.Violation{Rule: "fleet_contract_limit", Severity: "CRITICAL", Detail: "gross contracts exceed 500"})
	}
	if abs(gross.NotionalDollar) > fleetDollarLimit {
		violations = append(violations, fleet.Violation{Rule: "fleet_dollar_limit", Severity: "CRITICAL", Detail: "notional exceeds $500k"})
	}
	switch {
	case drawdownPct >= 25:
		violations = append(violations, fleet.Violation{Rule: "drawdown_tier", Severity: "EMERGENCY", Detail: "drawdown >= 25%"})
	case drawdownPct >= 15:
		violations = append(violations, fleet.Violation{Rule: "drawdown_tier", Severity: "CRITICAL", Detail: "drawdown >= 15%"})
	case drawdownPct >= 10:
		violations = append(violations, fleet.Violation{Rule: "drawdown_tier", Severity: "WARNING", Detail: "drawdown >= 10%"})
	}
	if maxSectorWeight > sectorConcentrationLimit {
		violations = append(violations, fleet.Violation{Rule: "sector_concentration", Severity: "CRITICAL", Detail: "sector weight exceeds 60%"})
	}
	for symbol, bots := range perSymbolBotCount {
		if len(bots) > perSymbolBotCountLimit {
			violations = append(violations, fleet.Violation{Rule: "per_symbol_bot_count", Severity: "WARNING", Detail: "too many bots trading " + symbol})
		}
	}

	return violations
}

// mapTier maps the violation set and drawdown to a kill-switch tier (spec
// §4.4 step 4): any EMERGENCY violation or drawdown>25% -> EMERGENCY;
// CRITICAL or >15% -> HARD; WARNING or >10% -> SOFT; else NORMAL.
func mapTier(violations []fleet.Violation, drawdownPct float64) fleet.Tier {
	hasEmergency, hasCritical, hasWarning := false, false, false
	for _, v := range violations {
		switch v.Severity {
		case "EMERGENCY":
			hasEmergency = true
		case "CRITICAL":
			hasCritical = true
		case "WARNING":
			hasWarning = true
		}
	}
	switch {
	case hasEmergency || drawdownPct > 25:
		return fleet.TierEmergency
	case hasCritical || drawdownPct > 15:
		return fleet.TierHard
	case hasWarning || drawdownPct > 10:
		return fleet.TierSoft
	default:
		return fleet.TierNormal
	}
}

// CanOpenPosition is the fleet-level gate: SOFT blocks new opens (exits
// only), HARD and EMERGENCY pause everything (spec §4.4 step 5).
func CanOpenPosition(tier fleet.Tier) bool {
	return tier == fleet.TierNormal
}
