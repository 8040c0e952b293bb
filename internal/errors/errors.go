// Package errors provides the unified error taxonomy used by every
// component in the lifecycle platform: a flat, classifying error type
// instead of a parallel hierarchy of wrapped error types.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies a specific failure mode from spec §4.8 and §7.
type Code string

const (
	// Hard-fail codes: classifier returns ShouldHalt=true.
	CodeInstrumentNotSupported    Code = "INSTRUMENT_NOT_SUPPORTED"
	CodeDataProvenanceViolation   Code = "DATA_PROVENANCE_VIOLATION"
	CodeBarValidationFailed       Code = "BAR_VALIDATION_FAILED"
	CodeCorruptData               Code = "CORRUPT_DATA"
	CodeArchetypeInferenceFailed  Code = "ARCHETYPE_INFERENCE_FAILED"
	CodeArchetypeNotImplemented   Code = "ARCHETYPE_NOT_IMPLEMENTED"
	CodeStrategyProvenanceViolation Code = "STRATEGY_PROVENANCE_VIOLATION"
	CodeInvalidStrategy           Code = "INVALID_STRATEGY"
	CodeZeroTradesGenerated       Code = "ZERO_TRADES_GENERATED"
	CodeCalculationError          Code = "CALCULATION_ERROR"
	CodeUnknownError              Code = "UNKNOWN_ERROR"

	// Recoverable.
	CodeTransientError Code = "TRANSIENT_ERROR"
	CodeCacheMiss      Code = "CACHE_MISS"

	// Warning.
	CodeNoSignals Code = "NO_SIGNALS"
	CodeNoData    Code = "NO_DATA"

	// Governance / stage engine.
	CodeDualControlViolation Code = "DUAL_CONTROL_VIOLATION"
	CodeDuplicatePending     Code = "DUPLICATE_PENDING_REQUEST"
	CodeStageLocked          Code = "STAGE_LOCKED"
	CodeIneligible           Code = "PROMOTION_INELIGIBLE"

	// Idempotency.
	CodeIdempotencyConflict   Code = "IDEMPOTENCY_KEY_REUSE"
	CodeIdempotencyProcessing Code = "IDEMPOTENCY_STILL_PROCESSING"

	// Bot-creation validators.
	CodeInvalidSymbol       Code = "INVALID_SYMBOL"
	CodeInvalidArchetype    Code = "INVALID_ARCHETYPE"
	CodeInvalidRiskConfig   Code = "INVALID_RISK_CONFIG"
	CodeInvalidMaxContracts Code = "INVALID_MAX_CONTRACTS"
	CodeInvalidSessionMode  Code = "INVALID_SESSION_MODE"
)

// Severity is the human-triage axis (SEV-0/1/2), orthogonal to the
// CRITICAL/RECOVERABLE/WARNING taxonomy carried in Tier.
type Severity int

const (
	Sev0 Severity = iota // blocks bot creation / promotion / trade
	Sev1                 // blocks creation of non-TRIALS bots
	Sev2                 // warn only
)

// Tier is the CRITICAL/RECOVERABLE/WARNING propagation taxonomy from spec §7.
type Tier int

const (
	TierCritical Tier = iota
	TierRecoverable
	TierWarning
)

// ServiceError is the single error type used across the platform. Classifying
// fields (Severity, Tier, ShouldHalt) ride alongside Code instead of being
// expressed as distinct Go error types, so callers can always type-assert to
// *ServiceError and branch on its fields.
type ServiceError struct {
	Code       Code
	Field      string
	Message    string
	Severity   Severity
	Tier       Tier
	ShouldHalt bool
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap allows errors.Is/As to see through to the wrapped cause.
func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails attaches structured diagnostic context to the error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New constructs a ServiceError with the given code and classification.
func New(code Code, message string, severity Severity, tier Tier) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		Severity:   severity,
		Tier:       tier,
		ShouldHalt: tier == TierCritical,
	}
}

// Wrap creates a ServiceError around an existing error.
func Wrap(code Code, message string, severity Severity, tier Tier, err error) *ServiceError {
	e := New(code, message, severity, tier)
	e.Err = err
	return e
}

// As extracts a *ServiceError from err, if any is present in its chain.
func As(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// hardFailCodes classifies which codes halt the operation that produced them.
var hardFailCodes = map[Code]bool{
	CodeInstrumentNotSupported:      true,
	CodeDataProvenanceViolation:     true,
	CodeBarValidationFailed:         true,
	CodeCorruptData:                 true,
	CodeArchetypeInferenceFailed:    true,
	CodeArchetypeNotImplemented:     true,
	CodeStrategyProvenanceViolation: true,
	CodeInvalidStrategy:             true,
	CodeZeroTradesGenerated:         true,
	CodeCalculationError:            true,
	CodeUnknownError:                true,
}

// Classify maps a raw error into the taxonomy described by spec §4.8. It is
// the backtest executor's single point of error classification: results are
// persisted on the session row and never re-thrown past this call.
func Classify(err error) *ServiceError {
	if err == nil {
		return nil
	}
	if se, ok := As(err); ok {
		return se
	}
	// An error that did not originate as a ServiceError is, by definition,
	// unanticipated.
	return Wrap(CodeUnknownError, "unclassified error", Sev0, TierCritical, err)
}

// ShouldHalt reports whether code is a hard-fail code per spec §4.8.
func ShouldHalt(code Code) bool {
	return hardFailCodes[code]
}
