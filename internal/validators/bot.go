// Package validators implements the bot-creation composite validator (spec
// §4.8): symbol, archetype, risk-config, max-contracts-per-trade, and
// session-mode checks aggregated into one result, any SEV-0 finding
// blocking creation outright.
package validators

import (
	"github.com/hashicorp/go-multierror"

	"github.com/tradingfloor/platform/internal/backtest/rules"
	"github.com/tradingfloor/platform/internal/domain/bot"
	plerrors "github.com/tradingfloor/platform/internal/errors"
)

// supportedSymbols is the instrument allowlist; an unsupported symbol is a
// SEV-0 finding since the rest of the platform has no fallback for it.
var supportedSymbols = map[string]bool{
	"MES": true, "MNQ": true, "MYM": true, "M2K": true,
	"ES": true, "NQ": true, "YM": true, "RTY": true,
}

const maxContractsHardCap = 50

// BotCreation is one create-bot request as seen by the composite validator.
type BotCreation struct {
	Symbol          string
	ArchetypeID     string
	BotName         string
	RiskConfig      bot.RiskConfig
	MaxContracts    float64
	SessionMode     bot.SessionMode
	TargetStage     bot.Stage
}

// ValidateBotCreation runs every sub-validator and aggregates their errors
// via multierror. The caller inspects the returned *ServiceError slice (via
// errors.As on each wrapped error) to decide whether any SEV-0 finding is
// present; §4.8 says any SEV-0 error blocks creation outright.
func ValidateBotCreation(req BotCreation) *multierror.Error {
	var result *multierror.Error

	result = multierror.Append(result, validateSymbol(req.Symbol))
	result = multierror.Append(result, validateArchetype(req.ArchetypeID, req.BotName))
	result = multierror.Append(result, validateRiskConfig(req.RiskConfig))
	result = multierror.Append(result, validateMaxContracts(req.MaxContracts))
	result = multierror.Append(result, validateSessionMode(req.SessionMode, req.TargetStage))

	if result == nil || len(result.Errors) == 0 {
		return nil
	}
	result.ErrorFormat = formatErrors
	return result
}

// HasBlockingError reports whether any error accumulated by
// ValidateBotCreation is SEV-0 (and therefore blocks bot creation).
func HasBlockingError(result *multierror.Error) bool {
	if result == nil {
		return false
	}
	for _, err := range result.Errors {
		if se, ok := plerrors.As(err); ok && se.Severity == plerrors.Sev0 {
			return true
		}
	}
	return false
}

func validateSymbol(symbol string) error {
	if symbol == "" {
		return plerrors.New(plerrors.CodeInvalidSymbol, "symbol is required", plerrors.Sev0, plerrors.TierCritical).WithDetails("field", "symbol")
	}
	if !supportedSymbols[symbol] {
		return plerrors.New(plerrors.CodeInvalidSymbol, "unsupported instrument symbol", plerrors.Sev0, plerrors.TierCritical).WithDetails("field", "symbol").WithDetails("symbol", symbol)
	}
	return nil
}

func validateArchetype(archetypeID, botName string) error {
	if _, err := rules.ResolveArchetype(archetypeID, "", botName); err != nil {
		return plerrors.New(plerrors.CodeInvalidArchetype, "archetype could not be resolved", plerrors.Sev0, plerrors.TierCritical).WithDetails("field", "archetypeId")
	}
	return nil
}

func validateRiskConfig(cfg bot.RiskConfig) error {
	if cfg.StopLossTicks <= 0 {
		return plerrors.New(plerrors.CodeInvalidRiskConfig, "stopLossTicks must be positive", plerrors.Sev0, plerrors.TierCritical).WithDetails("field", "riskConfig.stopLossTicks")
	}
	if cfg.MaxPositionSize <= 0 {
		return plerrors.New(plerrors.CodeInvalidRiskConfig, "maxPositionSize must be positive", plerrors.Sev0, plerrors.TierCritical).WithDetails("field", "riskConfig.maxPositionSize")
	}
	return nil
}

func validateMaxContracts(maxContracts float64) error {
	if maxContracts <= 0 {
		return plerrors.New(plerrors.CodeInvalidMaxContracts, "maxContracts must be positive", plerrors.Sev0, plerrors.TierCritical).WithDetails("field", "maxContracts")
	}
	if maxContracts > maxContractsHardCap {
		return plerrors.New(plerrors.CodeInvalidMaxContracts, "maxContracts exceeds the fleet hard cap", plerrors.Sev1, plerrors.TierRecoverable).WithDetails("field", "maxContracts")
	}
	return nil
}

func validateSessionMode(mode bot.SessionMode, targetStage bot.Stage) error {
	switch mode {
	case bot.SessionRTHUS, bot.SessionETH, bot.SessionFull24x5, bot.SessionCustom:
	default:
		return plerrors.New(plerrors.CodeInvalidSessionMode, "unrecognized session mode", plerrors.Sev0, plerrors.TierCritical).WithDetails("field", "sessionMode")
	}
	// CUSTOM sessions are only a SEV-1 (non-TRIALS-blocking) concern once a
	// bot is already past TRIALS: they haven't been exercised by the wider
	// RTH/ETH session-widening logic the stage ladder relies on.
	if mode == bot.SessionCustom && targetStage.Ordinal() > bot.StageTrials.Ordinal() {
		return plerrors.New(plerrors.CodeInvalidSessionMode, "custom session mode is restricted to TRIALS", plerrors.Sev1, plerrors.TierRecoverable).WithDetails("field", "sessionMode")
	}
	return nil
}

func formatErrors(errs []error) string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	msg := "bot creation failed validation:"
	for _, e := range errs {
		msg += "\n  * " + e.Error()
	}
	return msg
}
