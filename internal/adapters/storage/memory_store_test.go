package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maxtyrsa/mamaai/internal/core"
)

func TestMemoryStoreSaveAndGet(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	id, err := store.SaveMessage(ctx, core.NewMessage(1, "привет", time.Now()))
	require.NoError(t, err)
	require.NotZero(t, id)

	msg, err := store.GetMessage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "привет", msg.Body)
	assert.Equal(t, core.DispositionUnresolved, msg.Disposition)
	assert.False(t, msg.Resolved())

	_, err = store.GetMessage(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreFindUnresolvedWindowAndOrder(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()
	now := time.Now()

	_, err := store.SaveMessage(ctx, core.NewMessage(1, "старое", now.Add(-2*time.Hour)))
	require.NoError(t, err)
	midID, err := store.SaveMessage(ctx, core.NewMessage(2, "среднее", now.Add(-30*time.Minute)))
	require.NoError(t, err)
	newID, err := store.SaveMessage(ctx, core.NewMessage(3, "свежее", now.Add(-time.Minute)))
	require.NoError(t, err)

	out, err := store.FindUnresolved(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, out, 2)
	// Oldest first.
	assert.Equal(t, midID, out[0].ID)
	assert.Equal(t, newID, out[1].ID)

	count, err := store.CountUnresolved(ctx, now.Add(-3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMemoryStoreMarkResolvedIdempotent(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	id, err := store.SaveMessage(ctx, core.NewMessage(1, "вопрос", time.Now()))
	require.NoError(t, err)

	require.NoError(t, store.MarkResolved(ctx, id, false, "ответ", 0.5))
	msg, err := store.GetMessage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.DispositionLegitimate, msg.Disposition)
	assert.Equal(t, "ответ", msg.Response)
	require.NotNil(t, msg.SpamScore)
	assert.Equal(t, 0.5, *msg.SpamScore)
	assert.NotNil(t, msg.ResolvedAt)

	// A second resolution, even with a different verdict, changes nothing.
	require.NoError(t, store.MarkResolved(ctx, id, true, "спам", 9.9))
	msg, err = store.GetMessage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.DispositionLegitimate, msg.Disposition)
	assert.Equal(t, "ответ", msg.Response)

	assert.ErrorIs(t, store.MarkResolved(ctx, 999, false, "", 0), ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	id, err := store.SaveMessage(ctx, core.NewMessage(1, "оригинал", time.Now()))
	require.NoError(t, err)

	msg, err := store.GetMessage(ctx, id)
	require.NoError(t, err)
	msg.Body = "изменено"

	again, err := store.GetMessage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "оригинал", again.Body)
}

func TestMemoryStoreTrustRoundTrip(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.UpsertTrustState(ctx, &core.TrustState{SenderID: 1, Score: 70, MessageCount: 3}))
	require.NoError(t, store.UpsertTrustState(ctx, &core.TrustState{SenderID: 1, Score: 71, MessageCount: 4}))
	require.NoError(t, store.UpsertTrustState(ctx, &core.TrustState{SenderID: 2, Score: 10}))

	states, err := store.ListTrustStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)

	byID := make(map[int64]*core.TrustState)
	for _, s := range states {
		byID[s.SenderID] = s
	}
	assert.Equal(t, 71, byID[1].Score)
	assert.Equal(t, 4, byID[1].MessageCount)
	assert.Equal(t, 10, byID[2].Score)
}

func TestMemoryStoreRecoveryRunsNewestFirst(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.AppendRecoveryRun(ctx, &core.RecoveryRun{ID: "old", StartedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, store.AppendRecoveryRun(ctx, &core.RecoveryRun{ID: "new", StartedAt: now}))
	require.NoError(t, store.AppendRecoveryRun(ctx, &core.RecoveryRun{ID: "ancient", StartedAt: now.Add(-200 * time.Hour)}))

	runs, err := store.RecentRuns(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "old", runs[1].ID)
}
