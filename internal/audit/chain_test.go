package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainaudit "github.com/tradingfloor/platform/internal/domain/audit"
	"github.com/tradingfloor/platform/internal/storage"
)

func fixedNow() time.Time {
	return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
}

func TestAppendProducesValidChain(t *testing.T) {
	mem := storage.NewMemory()
	chain := NewChain(mem.Audit())
	ctx := context.Background()

	e1, err := chain.Append(ctx, domainaudit.Entry{
		EventType:  domainaudit.EventPromoted,
		EntityType: "bot",
		EntityID:   "b1",
		EventPayload: map[string]interface{}{"from": "CANARY", "to": "LIVE"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e1.SequenceNumber)
	assert.Empty(t, e1.PreviousHash)
	assert.NotEmpty(t, e1.ChainHash)

	e2, err := chain.Append(ctx, domainaudit.Entry{
		EventType:  domainaudit.EventDemoted,
		EntityType: "bot",
		EntityID:   "b1",
		EventPayload: map[string]interface{}{"from": "LIVE", "to": "CANARY"},
	})
	require.NoError(t, err)
	assert.Equal(t, e1.ChainHash, e2.PreviousHash)

	all, err := mem.Audit().List(ctx)
	require.NoError(t, err)
	result := Verify(all)
	assert.True(t, result.Valid)
	assert.Nil(t, result.Broken)
}

func TestVerifyDetectsTamperedChainHash(t *testing.T) {
	mem := storage.NewMemory()
	chain := NewChain(mem.Audit())
	ctx := context.Background()

	_, err := chain.Append(ctx, domainaudit.Entry{EventType: domainaudit.EventPromoted, EventPayload: map[string]interface{}{"x": 1}})
	require.NoError(t, err)
	_, err = chain.Append(ctx, domainaudit.Entry{EventType: domainaudit.EventDemoted, EventPayload: map[string]interface{}{"y": 2}})
	require.NoError(t, err)

	all, err := mem.Audit().List(ctx)
	require.NoError(t, err)
	all[1].ChainHash = "tampered"

	result := Verify(all)
	assert.False(t, result.Valid)
	require.NotNil(t, result.Broken)
	assert.Equal(t, int64(2), result.Broken.SequenceNumber)
}

func TestActiveOverridesExcludesRevokedAndExpired(t *testing.T) {
	mem := storage.NewMemory()
	chain := NewChain(mem.Audit())
	ctx := context.Background()
	now := fixedNow()

	_, err := chain.Append(ctx, domainaudit.Entry{
		EventType: domainaudit.EventRiskOverride,
		EventPayload: map[string]interface{}{
			"OverrideID": "ov1",
			"BotID":      "b1",
			"Field":      "maxPositionSize",
			"Value":      10,
			"ExpiresAt":  now.Add(time.Hour).Format(time.RFC3339),
			"Reason":     "manual bump",
		},
	})
	require.NoError(t, err)

	_, err = chain.Append(ctx, domainaudit.Entry{
		EventType: domainaudit.EventRiskOverride,
		EventPayload: map[string]interface{}{
			"OverrideID": "ov2",
			"BotID":      "b1",
			"ExpiresAt":  now.Add(-time.Hour).Format(time.RFC3339),
		},
	})
	require.NoError(t, err)

	_, err = chain.Append(ctx, domainaudit.Entry{
		EventType:    domainaudit.EventRiskOverrideRevoked,
		EventPayload: map[string]interface{}{"OverrideID": "ov1", "RevokedBy": "u1"},
	})
	require.NoError(t, err)

	all, err := mem.Audit().List(ctx)
	require.NoError(t, err)
	active := ActiveOverrides(all, now)
	assert.Empty(t, active)
}
