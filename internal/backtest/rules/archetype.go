// Package rules builds StrategyRules from an archetype and resolves the
// entry-condition mapping spec §4.2 steps 5-6 require.
package rules

import (
	"strings"

	plerrors "github.com/tradingfloor/platform/internal/errors"
)

// EntryConditionType is one of the canonical entry-condition types (spec §6).
type EntryConditionType string

const (
	Breakout           EntryConditionType = "BREAKOUT"
	MeanReversion       EntryConditionType = "MEAN_REVERSION"
	VWAPTouch           EntryConditionType = "VWAP_TOUCH"
	TrendContinuation   EntryConditionType = "TREND_CONTINUATION"
	GapFade             EntryConditionType = "GAP_FADE"
	GapFill             EntryConditionType = "GAP_FILL"
	Reversal            EntryConditionType = "REVERSAL"
	RangeScalp          EntryConditionType = "RANGE_SCALP"
	MomentumSurge       EntryConditionType = "MOMENTUM_SURGE"
)

// archetypeToEntryCondition is the canonical archetype -> entry-condition map.
var archetypeToEntryCondition = map[string]EntryConditionType{
	"breakout":            Breakout,
	"mean_reversion":      MeanReversion,
	"vwap_touch":          VWAPTouch,
	"trend_continuation":  TrendContinuation,
	"gap_fade":            GapFade,
	"gap_fill":            GapFill,
	"reversal":            Reversal,
	"range_scalp":         RangeScalp,
	"momentum_surge":      MomentumSurge,
}

// aliases maps loosely-worded archetype names (as they show up in bot names
// or stored archetype ids) to a canonical archetype key.
var aliases = map[string]string{
	"gap fade":           "gap_fade",
	"gapfade":            "gap_fade",
	"fade the gap":       "gap_fade",
	"gap fill":           "gap_fill",
	"gapfill":            "gap_fill",
	"breakout":           "breakout",
	"range breakout":     "breakout",
	"mean reversion":     "mean_reversion",
	"reversion":          "mean_reversion",
	"vwap touch":         "vwap_touch",
	"vwap reclaim":       "vwap_touch",
	"trend continuation": "trend_continuation",
	"trend follow":       "trend_continuation",
	"reversal":           "reversal",
	"range scalp":        "range_scalp",
	"scalp":              "range_scalp",
	"momentum surge":     "momentum_surge",
	"momentum":           "momentum_surge",
}

// instrumentPrefixes are symbol tokens stripped before inference, since bot
// names commonly lead with the traded symbol (e.g. "MNQ Gap Fade").
var instrumentPrefixes = []string{"MES", "MNQ", "ES", "NQ", "YM", "MYM", "RTY", "M2K", "CL", "GC"}

// EntryConditionFor maps a canonical archetype key to its entry-condition
// type, or ARCHETYPE_NOT_IMPLEMENTED if the archetype has no mapping.
func EntryConditionFor(archetype string) (EntryConditionType, error) {
	key := normalize(archetype)
	ec, ok := archetypeToEntryCondition[key]
	if !ok {
		return "", plerrors.New(
			plerrors.CodeArchetypeNotImplemented,
			"archetype "+archetype+" has no entry-condition mapping",
			plerrors.Sev0, plerrors.TierCritical,
		)
	}
	return ec, nil
}

// ResolveArchetype implements spec §4.2 step 5's priority order: stored
// archetypeId -> explicit config.archetype -> inference from bot name.
func ResolveArchetype(storedArchetypeID, configArchetype, botName string) (string, error) {
	if k := normalize(storedArchetypeID); k != "" {
		if _, ok := archetypeToEntryCondition[k]; ok {
			return k, nil
		}
	}
	if k := normalize(configArchetype); k != "" {
		if _, ok := archetypeToEntryCondition[k]; ok {
			return k, nil
		}
	}
	if k, ok := inferFromName(botName); ok {
		return k, nil
	}
	return "", plerrors.New(
		plerrors.CodeArchetypeInferenceFailed,
		"could not infer archetype from bot name "+botName,
		plerrors.Sev0, plerrors.TierCritical,
	)
}

// normalize canonicalizes a free-form archetype token: lowercase, trim, map
// through the alias table, and pass through already-canonical keys.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if canon, ok := aliases[s]; ok {
		return canon
	}
	if _, ok := archetypeToEntryCondition[s]; ok {
		return s
	}
	return s
}

// inferFromName implements spec §4.2 step 5's inference chain: canonical
// normalization, instrument-prefix stripping, partial match, then a retry
// after splitting on whitespace and skipping the first token.
func inferFromName(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	candidate := strings.TrimSpace(name)

	if k, ok := matchKnown(candidate); ok {
		return k, true
	}

	stripped := stripInstrumentPrefix(candidate)
	if stripped != candidate {
		if k, ok := matchKnown(stripped); ok {
			return k, true
		}
	}

	fields := strings.Fields(candidate)
	if len(fields) > 1 {
		rest := strings.Join(fields[1:], " ")
		if k, ok := matchKnown(rest); ok {
			return k, true
		}
	}

	return "", false
}

func stripInstrumentPrefix(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return name
	}
	first := strings.ToUpper(fields[0])
	for _, prefix := range instrumentPrefixes {
		if first == prefix {
			return strings.Join(fields[1:], " ")
		}
	}
	return name
}

// matchKnown tries an exact normalized/alias match first, then a partial
// (substring) match against every known archetype key and alias.
func matchKnown(s string) (string, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if norm == "" {
		return "", false
	}
	if canon, ok := aliases[norm]; ok {
		return canon, true
	}
	if _, ok := archetypeToEntryCondition[norm]; ok {
		return norm, true
	}
	for alias, canon := range aliases {
		if strings.Contains(norm, alias) {
			return canon, true
		}
	}
	for key := range archetypeToEntryCondition {
		if strings.Contains(norm, strings.ReplaceAll(key, "_", " ")) {
			return key, true
		}
	}
	return "", false
}
