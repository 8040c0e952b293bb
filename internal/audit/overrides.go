package audit

import (
	"encoding/json"
	"time"

	domainaudit "github.com/tradingfloor/platform/internal/domain/audit"
)

// ActiveOverrides derives the currently-active RISK_OVERRIDE entries from the
// full event log (spec §4.5): every RISK_OVERRIDE whose expiresAt is in the
// future and whose id is not referenced by a later RISK_OVERRIDE_REVOKED.
// There is no standalone "overrides" table; this is always recomputed.
func ActiveOverrides(entries []domainaudit.Entry, now time.Time) []domainaudit.RiskOverridePayload {
	revoked := make(map[string]bool)
	for _, e := range entries {
		if e.EventType != domainaudit.EventRiskOverrideRevoked {
			continue
		}
		var p domainaudit.RiskOverrideRevokedPayload
		if decodePayload(e.EventPayload, &p) {
			revoked[p.OverrideID] = true
		}
	}

	active := make([]domainaudit.RiskOverridePayload, 0)
	for _, e := range entries {
		if e.EventType != domainaudit.EventRiskOverride {
			continue
		}
		var p domainaudit.RiskOverridePayload
		if !decodePayload(e.EventPayload, &p) {
			continue
		}
		if revoked[p.OverrideID] {
			continue
		}
		if p.ExpiresAt.After(now) {
			active = append(active, p)
		}
	}
	return active
}

func decodePayload(raw map[string]interface{}, out interface{}) bool {
	b, err := json.Marshal(raw)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, out) == nil
}
