// Package bot defines the Bot aggregate: a long-lived trading strategy
// instance climbing the stage ladder from TRIALS to LIVE (or KILLED).
package bot

import "time"

// Stage is a bot's position on the capital-exposure ladder.
type Stage string

const (
	StageTrials Stage = "TRIALS"
	StagePaper  Stage = "PAPER"
	StageShadow Stage = "SHADOW"
	StageCanary Stage = "CANARY"
	StageLive   Stage = "LIVE"
	StageKilled Stage = "KILLED"
)

// stageOrder totally orders the non-terminal stages; KILLED is reachable
// from any stage but never ordered relative to them.
var stageOrder = map[Stage]int{
	StageTrials: 0,
	StagePaper:  1,
	StageShadow: 2,
	StageCanary: 3,
	StageLive:   4,
}

// Ordinal returns the stage's position on the ladder, or -1 for KILLED.
func (s Stage) Ordinal() int {
	if o, ok := stageOrder[s]; ok {
		return o
	}
	return -1
}

// IsOneStepPromotionFrom reports whether target is exactly one rung above s.
func (s Stage) IsOneStepPromotionFrom(target Stage) bool {
	so, to := s.Ordinal(), target.Ordinal()
	return so >= 0 && to >= 0 && to == so+1
}

// IsOneStepDemotionFrom reports whether target is exactly one rung below s.
func (s Stage) IsOneStepDemotionFrom(target Stage) bool {
	so, to := s.Ordinal(), target.Ordinal()
	return so >= 0 && to >= 0 && to == so-1
}

// SessionMode selects the trading-session window applied during execution.
type SessionMode string

const (
	SessionRTHUS    SessionMode = "RTH_US"
	SessionETH      SessionMode = "ETH"
	SessionFull24x5 SessionMode = "FULL_24x5"
	SessionCustom   SessionMode = "CUSTOM"
)

// RiskConfig carries the required per-bot risk parameters.
type RiskConfig struct {
	StopLossTicks   float64
	MaxPositionSize float64
	Extra           map[string]float64
}

// Bot is the long-lived aggregate root.
type Bot struct {
	ID                  string
	Name                string
	Symbol              string
	ArchetypeID         string // nullable: empty means "infer from name"
	Stage               Stage
	StrategyConfig      map[string]interface{}
	RiskConfig          RiskConfig
	SessionMode         SessionMode
	ManualPromotionMode bool
	CurrentGenerationID string
	StageLockedUntil    time.Time
	PeakEquity          float64
	StartOfDayBalance   float64
	CapitalRemaining    float64
	Paused              bool
	Archived            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLocked reports whether the bot is within a stage lock window as of now.
func (b Bot) IsLocked(now time.Time) bool {
	return !b.StageLockedUntil.IsZero() && b.StageLockedUntil.After(now)
}

// CanOpenPosition is invariant 6: a KILLED bot can never open a position.
func (b Bot) CanOpenPosition() bool {
	return b.Stage != StageKilled && !b.Paused
}
