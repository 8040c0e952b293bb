package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradingfloor/platform/internal/domain/audit"
	"github.com/tradingfloor/platform/internal/domain/bot"
	"github.com/tradingfloor/platform/internal/domain/idempotency"
)

func idemRecord(key string) idempotency.Record {
	return idempotency.Record{Key: key, RequestHash: "h-" + key, Status: idempotency.StatusCompleted}
}

func TestBotCreateAssignsIDAndRejectsDuplicate(t *testing.T) {
	store := NewMemory().Bots()
	ctx := context.Background()

	b, err := store.Create(ctx, bot.Bot{Name: "MES Breakout", Stage: bot.StageTrials})
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)

	_, err = store.Create(ctx, bot.Bot{ID: b.ID})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestBotListByStage(t *testing.T) {
	store := NewMemory().Bots()
	ctx := context.Background()

	_, _ = store.Create(ctx, bot.Bot{Stage: bot.StageLive})
	_, _ = store.Create(ctx, bot.Bot{Stage: bot.StageTrials})

	live, err := store.ListByStage(ctx, bot.StageLive)
	require.NoError(t, err)
	assert.Len(t, live, 1)
}

func TestAuditAppendAssignsSequentialNumbers(t *testing.T) {
	store := NewMemory().Audit()
	ctx := context.Background()

	e1, err := store.Append(ctx, audit.Entry{EventType: audit.EventPromoted})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e1.SequenceNumber)

	e2, err := store.Append(ctx, audit.Entry{EventType: audit.EventDemoted})
	require.NoError(t, err)
	assert.Equal(t, int64(2), e2.SequenceNumber)
}

func TestIdempotencyEvictOldestRemovesInsertionOrder(t *testing.T) {
	m := NewMemory()
	store := m.Idempotency()
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, store.Put(ctx, idemRecord(k)))
	}

	removed, err := store.EvictOldest(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok, _ := store.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "c")
	assert.True(t, ok)
}
