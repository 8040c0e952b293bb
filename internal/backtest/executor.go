// Package backtest implements the deterministic backtest executor: the
// pipeline that turns a bot, a date range, and a set of bars into a
// completed BacktestSession with trade logs, metrics, and full provenance.
package backtest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/tradingfloor/platform/internal/backtest/instrument"
	"github.com/tradingfloor/platform/internal/backtest/rules"
	"github.com/tradingfloor/platform/internal/barcache"
	"github.com/tradingfloor/platform/internal/domain/bar"
	"github.com/tradingfloor/platform/internal/domain/generation"
	"github.com/tradingfloor/platform/internal/domain/session"
	"github.com/tradingfloor/platform/internal/domain/trade"
	plerrors "github.com/tradingfloor/platform/internal/errors"
	"github.com/tradingfloor/platform/internal/metrics"
	"github.com/tradingfloor/platform/pkg/logger"
)

const warmupBars = 50

// ExecutionProfile carries the per-run flags the reference implementation
// kept as module-level globals (spec §9's "lab-relaxation, session-bypass"
// design note). Threading them through the call explicitly, instead of
// mutating package state, is what makes concurrent in-process backtests
// with different stages safe.
type ExecutionProfile struct {
	Relaxed        bool // TRIALS relaxation active
	SessionBypass  bool // FULL_24x5: isWithinTradingSession always true
}

// Input is everything the executor needs to run one backtest session.
type Input struct {
	BotID             string
	SessionID         string
	GenerationID      string
	BotName           string
	StoredArchetypeID string
	ConfigArchetype   string
	StrategyConfig    map[string]interface{}
	Stage             string // TRIALS, PAPER, SHADOW, CANARY, LIVE
	SessionMode       string // RTH_US, ETH, FULL_24x5, CUSTOM
	CustomStart       string // "HH:MM", used only when SessionMode == CUSTOM
	CustomEnd         string
	Symbol            string
	Timeframe         bar.Timeframe
	StartTs           time.Time
	EndTs             time.Time
	InitialCapital    float64
	AllowSimFallback  bool
	HasRealProvider   bool
	TraceID           string
}

// Result bundles everything the executor produced for one session.
type Result struct {
	Session       *session.Session
	Trades        []trade.Trade
	BaselineStats generation.PerformanceSnapshot
}

// Executor runs the deterministic backtest pipeline described in spec §4.2.
type Executor struct {
	cache   *barcache.Cache
	metrics *metrics.Fleet
	log     *logger.Logger
}

// New builds an Executor. cache is wired with whichever Provider the
// runtime configured (a real adapter, or barcache.SimulatedProvider when
// only simulated fallback is available).
func New(cache *barcache.Cache, m *metrics.Fleet, log *logger.Logger) *Executor {
	return &Executor{cache: cache, metrics: m, log: log}
}

// Run executes the full pipeline for in, failing closed at the first
// violated step. The returned Session always reflects the outcome (status,
// provenance, error classification); the returned error is the same
// classified failure, returned for caller convenience, never re-thrown past
// this call per spec §4.2's "error classification" step.
func (e *Executor) Run(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.BacktestSeconds.Observe(time.Since(start).Seconds())
		}
	}()

	sess := &session.Session{
		ID:           in.SessionID,
		BotID:        in.BotID,
		GenerationID: in.GenerationID,
		Status:       session.StatusRunning,
		CreatedAt:    start,
	}

	// Step 1: instrument lookup.
	spec, err := instrument.Lookup(in.Symbol)
	if err != nil {
		return e.fail(sess, err)
	}

	// Step 2: seed, config hash, config snapshot.
	seed := deriveSeed(in.BotID, in.SessionID)
	configHash := computeConfigHash(in.StrategyConfig)

	originalStart, originalEnd := in.CustomStart, in.CustomEnd
	widenedStart, widenedEnd := originalStart, originalEnd
	widenSession := in.Stage == "TRIALS" || in.Stage == "PAPER"
	if widenSession {
		widenedStart, widenedEnd = "09:35", "15:55"
	}

	sess.ConfigSnapshot = session.ConfigSnapshot{
		Seed:             seed,
		ConfigHash:       configHash,
		InstrumentSymbol: in.Symbol,
		StartTs:          in.StartTs,
		EndTs:            in.EndTs,
		SessionFilter:    "RTH",
		FillModel:        "NEXT_BAR_OPEN",
		SamplingMethod:   "sequential",
		DataProvenance:   "pending",
		OriginalStart:    originalStart,
		OriginalEnd:      originalEnd,
		WidenedStart:     widenedStart,
		WidenedEnd:       widenedEnd,
	}

	// Step 3: fetch bars, preferring a real provider.
	if !in.HasRealProvider && !in.AllowSimFallback {
		return e.fail(sess, plerrors.New(
			plerrors.CodeDataProvenanceViolation,
			"no real bar provider configured and ALLOW_SIM_FALLBACK is not set",
			plerrors.Sev0, plerrors.TierCritical,
		))
	}
	sess.ConfigSnapshot.DataProvenance = "real"
	if !in.HasRealProvider {
		sess.ConfigSnapshot.DataProvenance = "simulated"
	}

	bars, err := e.cache.Get(ctx, in.Symbol, in.Timeframe, in.SessionMode, in.StartTs, in.EndTs, in.TraceID)
	if err != nil {
		return e.fail(sess, plerrors.Wrap(plerrors.CodeTransientError, "bar fetch failed", plerrors.Sev1, plerrors.TierRecoverable, err))
	}
	sess.TotalBarCount = len(bars)

	if len(bars) < warmupBars {
		sess.Status = session.StatusCompleted
		sess.Metrics = &session.Metrics{}
		sess.CompletedAt = time.Now()
		sess.ErrorClassification = &session.ErrorClassification{
			Code:       plerrors.CodeNoData,
			Severity:   plerrors.Sev2,
			ShouldHalt: false,
		}
		return &Result{Session: sess}, nil
	}

	// Step 4: validate bars.
	if errs := validateBars(spec, bars); len(errs) > 0 {
		return e.fail(sess, plerrors.New(
			plerrors.CodeBarValidationFailed,
			fmt.Sprintf("bar validation failed: %v", errs),
			plerrors.Sev0, plerrors.TierCritical,
		))
	}

	// Step 5: resolve archetype.
	archetype, err := rules.ResolveArchetype(in.StoredArchetypeID, in.ConfigArchetype, in.BotName)
	if err != nil {
		return e.fail(sess, err)
	}
	expectedEC, err := rules.EntryConditionFor(archetype)
	if err != nil {
		return e.fail(sess, err)
	}

	// Step 6: build rules, verify provenance. Relaxation (step 8) is scoped
	// to TRIALS only; the session-widen above (step 7) also covers PAPER.
	relaxedProfile := in.Stage == "TRIALS"
	profile := ExecutionProfile{Relaxed: relaxedProfile, SessionBypass: in.SessionMode == "FULL_24x5"}
	sr := rules.Build(archetype, expectedEC, in.StrategyConfig, profile.Relaxed)
	actualEC := sr.EntryConditionType

	sess.RulesHash = sr.Hash()
	sess.ExpectedEntryCondition = string(expectedEC)
	sess.ActualEntryCondition = string(actualEC)
	if expectedEC != actualEC {
		sess.ProvenanceStatus = session.ProvenanceMismatch
		return e.fail(sess, plerrors.New(
			plerrors.CodeStrategyProvenanceViolation,
			"built rules entry condition does not match expected mapping",
			plerrors.Sev0, plerrors.TierCritical,
		))
	}
	sess.ProvenanceStatus = session.ProvenanceVerified

	if profile.Relaxed {
		sess.RulesProfileUsed = session.RulesProfileTrialsRelaxed
	} else {
		sess.RulesProfileUsed = session.RulesProfileProduction
	}
	sess.RelaxedFlagsApplied = sr.RelaxedFlagsApplied
	sess.SessionModeUsed = in.SessionMode

	// Execution loop.
	sessionStart, sessionEnd := computeSessionWindow(in.SessionMode, in.CustomStart, in.CustomEnd, widenSession)
	trades := runLoop(bars, spec, sr, profile, sessionStart, sessionEnd, in.TraceID)
	sess.SessionFilterBarCount = len(bars)

	if len(trades) == 0 {
		return e.fail(sess, plerrors.New(
			plerrors.CodeZeroTradesGenerated,
			"execution loop produced zero trades",
			plerrors.Sev1, plerrors.TierCritical,
		))
	}

	metricsOut, equity := aggregate(trades, in.InitialCapital)

	sess.Status = session.StatusCompleted
	sess.Metrics = &metricsOut
	sess.EquityCurve = equity
	sess.CompletedAt = time.Now()

	snap := generation.PerformanceSnapshot{
		WinRate:          metricsOut.WinRate,
		NetPnl:           metricsOut.NetPnl,
		Sharpe:           metricsOut.Sharpe,
		ProfitFactor:     metricsOut.ProfitFactor,
		MaxDrawdownPct:   metricsOut.MaxDrawdownPct,
		Expectancy:       metricsOut.Expectancy,
		RulesProfileUsed: string(sess.RulesProfileUsed),
		SessionModeUsed:  sess.SessionModeUsed,
	}

	return &Result{Session: sess, Trades: trades, BaselineStats: snap}, nil
}

func (e *Executor) fail(sess *session.Session, err error) (*Result, error) {
	se := plerrors.Classify(err)
	sess.Status = session.StatusFailed
	sess.CompletedAt = time.Now()
	sess.ErrorClassification = &session.ErrorClassification{
		Code:       se.Code,
		Severity:   se.Severity,
		ShouldHalt: se.ShouldHalt,
	}
	if e.log != nil && se.ShouldHalt {
		e.log.With("backtest").WithField("session_id", sess.ID).WithField("code", se.Code).Warn("backtest halted")
	}
	return &Result{Session: sess}, se
}

// deriveSeed implements spec §4.2's determinism contract: a 32-bit seed
// parsed from the first 8 hex characters of sha256(botId+":"+sessionId).
func deriveSeed(botID, sessionID string) uint32 {
	sum := sha256.Sum256([]byte(botID + ":" + sessionID))
	hexStr := hex.EncodeToString(sum[:])[:8]
	v, _ := strconv.ParseUint(hexStr, 16, 32)
	return uint32(v)
}

// computeConfigHash hashes a canonical (sorted-key) JSON shape of
// strategyConfig and truncates to 16 hex characters.
func computeConfigHash(cfg map[string]interface{}) string {
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make([]struct {
		Key   string      `json:"key"`
		Value interface{} `json:"value"`
	}, len(keys))
	for i, k := range keys {
		ordered[i].Key = k
		ordered[i].Value = cfg[k]
	}
	raw, _ := json.Marshal(ordered)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:16]
}

// validateBars checks OHLC consistency, tick alignment, price bounds, and
// timestamp continuity, aggregating up to three error strings.
func validateBars(spec instrument.Spec, bars []bar.Bar) []string {
	var errs []string
	var prevTs time.Time
	for i, b := range bars {
		if len(errs) >= 3 {
			break
		}
		if b.High < b.Low || b.High < b.Open || b.High < b.Close || b.Low > b.Open || b.Low > b.Close {
			errs = append(errs, fmt.Sprintf("bar %d: OHLC inconsistent", i))
			continue
		}
		if !tickAligned(b.Close, spec.TickSize) {
			errs = append(errs, fmt.Sprintf("bar %d: close not tick-aligned", i))
			continue
		}
		if b.Close < spec.MinPrice || b.Close > spec.MaxPrice {
			errs = append(errs, fmt.Sprintf("bar %d: close out of instrument bounds", i))
			continue
		}
		if i > 0 && !b.Timestamp.After(prevTs) {
			errs = append(errs, fmt.Sprintf("bar %d: timestamp non-increasing", i))
			continue
		}
		prevTs = b.Timestamp
	}
	return errs
}

func tickAligned(price, tickSize float64) bool {
	ratio := price / tickSize
	return math.Abs(ratio-math.Round(ratio)) < 1e-6
}

// computeSessionWindow resolves the HH:MM trading-session bounds for the
// run (spec §4.2 step 9), with the TRIALS/PAPER widen from step 7 taking
// priority over whatever SessionMode the bot carries.
func computeSessionWindow(mode, customStart, customEnd string, widenSession bool) (string, string) {
	if widenSession {
		return "09:35", "15:55"
	}
	switch mode {
	case "CUSTOM":
		return customStart, customEnd
	case "ETH":
		return "18:00", "09:30"
	case "FULL_24x5":
		return "00:00", "23:59"
	default: // RTH_US
		return "09:30", "16:15"
	}
}
