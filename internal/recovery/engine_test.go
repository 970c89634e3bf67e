package recovery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maxtyrsa/mamaai/internal/adapters/storage"
	"github.com/maxtyrsa/mamaai/internal/core"
)

// patternModerator flags anything containing "казино", mirroring the real
// engine's contract without its weighting.
type patternModerator struct{}

func (patternModerator) Evaluate(ctx context.Context, senderID int64, text string) core.Verdict {
	if strings.Contains(strings.ToLower(text), "казино") {
		return core.Verdict{IsSpam: true, Score: 5.0}
	}
	return core.Verdict{IsSpam: false, Score: 0.5}
}

type scriptedDelivery struct {
	statuses []core.DeliveryStatus
	calls    int
	sent     []string
}

func (d *scriptedDelivery) Deliver(ctx context.Context, senderID int64, text string) (core.DeliveryStatus, error) {
	status := core.Delivered
	if d.calls < len(d.statuses) {
		status = d.statuses[d.calls]
	}
	d.calls++
	if status == core.Delivered {
		d.sent = append(d.sent, text)
		return core.Delivered, nil
	}
	return status, errors.New("send failed")
}

type recordingNotifier struct {
	summaries []string
}

func (n *recordingNotifier) Notify(ctx context.Context, summary string) error {
	n.summaries = append(n.summaries, summary)
	return nil
}

type stubReplies struct {
	reply string
	err   error
}

func (s stubReplies) GenerateReply(ctx context.Context, text string, senderName string) (string, error) {
	return s.reply, s.err
}

func fastConfig() Config {
	return Config{Pace: 0, MaxAttempts: 3, BackoffBase: 0}
}

func saveUnresolved(t *testing.T, store core.MessageStore, senderID int64, body string, receivedAt time.Time) int64 {
	t.Helper()
	id, err := store.SaveMessage(context.Background(), core.NewMessage(senderID, body, receivedAt))
	require.NoError(t, err)
	return id
}

func TestRecoverResolvesBacklog(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())
	delivery := &scriptedDelivery{}
	notifier := &recordingNotifier{}
	engine := NewEngine(fastConfig(), store, patternModerator{}, nil, delivery, notifier, zap.NewNop())

	now := time.Now()
	hamID := saveUnresolved(t, store, 1, "Подскажите, где почитать подробнее?", now.Add(-time.Hour))
	spamID := saveUnresolved(t, store, 2, "лучшее казино ждет вас", now.Add(-30*time.Minute))

	run := engine.Recover(context.Background(), 24*time.Hour, core.TriggerStartup)

	assert.True(t, run.Success)
	assert.Equal(t, 2, run.Total)
	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, 1, run.Spam)
	assert.Equal(t, 0, run.Errors)

	ham, err := store.GetMessage(context.Background(), hamID)
	require.NoError(t, err)
	assert.Equal(t, core.DispositionLegitimate, ham.Disposition)
	assert.Equal(t, "Спасибо за ваше сообщение! 😊", ham.Response)

	spam, err := store.GetMessage(context.Background(), spamID)
	require.NoError(t, err)
	assert.Equal(t, core.DispositionSpam, spam.Disposition)
	assert.Contains(t, spam.Response, "flagged during recovery")

	// One reply was sent, framed with the original message.
	require.Len(t, delivery.sent, 1)
	assert.Contains(t, delivery.sent[0], "Подскажите")

	// The run landed in the audit log and the operators were notified.
	runs, err := store.RecentRuns(context.Background(), now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, core.TriggerStartup, runs[0].Trigger)

	require.Len(t, notifier.summaries, 1)
	assert.Contains(t, notifier.summaries[0], "Восстановление завершено")
}

func TestRecoverRespectsLookback(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())
	engine := NewEngine(fastConfig(), store, patternModerator{}, nil, &scriptedDelivery{}, nil, zap.NewNop())

	now := time.Now()
	saveUnresolved(t, store, 1, "старое сообщение вне окна", now.Add(-3*time.Hour))
	inWindow := saveUnresolved(t, store, 2, "свежее сообщение в окне", now.Add(-10*time.Minute))

	run := engine.Recover(context.Background(), time.Hour, core.TriggerForced)

	assert.Equal(t, 1, run.Total)
	msg, err := store.GetMessage(context.Background(), inWindow)
	require.NoError(t, err)
	assert.True(t, msg.Resolved())
}

func TestRecoverCapsLookback(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())
	engine := NewEngine(fastConfig(), store, patternModerator{}, nil, &scriptedDelivery{}, nil, zap.NewNop())

	now := time.Now()
	saveUnresolved(t, store, 1, "сообщение двухнедельной давности", now.Add(-14*24*time.Hour))

	// A lookback beyond the cap is clamped, so the old message stays out.
	run := engine.Recover(context.Background(), 30*24*time.Hour, core.TriggerForced)
	assert.Equal(t, 0, run.Total)
}

func TestRecoverDeclinesConcurrentRun(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())
	engine := NewEngine(fastConfig(), store, patternModerator{}, nil, &scriptedDelivery{}, nil, zap.NewNop())

	engine.running.Store(true)
	run := engine.Recover(context.Background(), time.Hour, core.TriggerForced)

	assert.False(t, run.Success)
	assert.Equal(t, "recovery already in progress", run.Error)
	assert.True(t, engine.Running())
}

func TestRecoverResolvesDegenerateMessages(t *testing.T) {
	// A too-short body must still reach a terminal disposition, or it
	// would sit in the backlog and re-trigger the monitor forever.
	store := storage.NewMemoryStore(zap.NewNop())
	// The generator would produce a real reply; a too-short body must not
	// reach it, so the canned fallback is expected below.
	replies := stubReplies{reply: "Развернутый ответ генератора"}
	engine := NewEngine(fastConfig(), store, patternModerator{}, replies, &scriptedDelivery{}, nil, zap.NewNop())

	id := saveUnresolved(t, store, 1, "а", time.Now().Add(-time.Minute))
	run := engine.Recover(context.Background(), time.Hour, core.TriggerForced)

	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, 0, run.Skipped)
	assert.Equal(t, 0, run.Errors)

	msg, err := store.GetMessage(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, msg.Resolved())
	assert.Equal(t, core.DispositionLegitimate, msg.Disposition)
	assert.Equal(t, "Спасибо за ваше сообщение! 😊", msg.Response)

	// The backlog drains: a second pass finds nothing left.
	run = engine.Recover(context.Background(), time.Hour, core.TriggerForced)
	assert.Equal(t, 0, run.Total)

	count, err := store.CountUnresolved(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRecoverSkipsAlreadyResolved(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())
	delivery := &scriptedDelivery{}
	engine := NewEngine(fastConfig(), store, patternModerator{}, nil, delivery, nil, zap.NewNop())

	id := saveUnresolved(t, store, 1, "обычное сообщение без ответа", time.Now().Add(-time.Minute))
	require.NoError(t, store.MarkResolved(context.Background(), id, false, "уже отвечено", 0.5))

	run := engine.Recover(context.Background(), time.Hour, core.TriggerForced)
	assert.Equal(t, 0, run.Total)
	assert.Zero(t, delivery.calls)
}

func TestGeneratedReplyWithFallback(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())
	delivery := &scriptedDelivery{}
	engine := NewEngine(fastConfig(), store, patternModerator{}, stubReplies{err: errors.New("llm down")}, delivery, nil, zap.NewNop())

	id := saveUnresolved(t, store, 1, "интересный вопрос про настройку", time.Now().Add(-time.Minute))
	engine.Recover(context.Background(), time.Hour, core.TriggerForced)

	msg, err := store.GetMessage(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Спасибо за ваше сообщение! 😊", msg.Response)
}

func TestGeneratedReplyUsed(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())
	delivery := &scriptedDelivery{}
	engine := NewEngine(fastConfig(), store, patternModerator{}, stubReplies{reply: "Рад помочь, отличный вопрос!"}, delivery, nil, zap.NewNop())

	id := saveUnresolved(t, store, 1, "интересный вопрос про настройку", time.Now().Add(-time.Minute))
	engine.Recover(context.Background(), time.Hour, core.TriggerForced)

	msg, err := store.GetMessage(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Рад помочь, отличный вопрос!", msg.Response)
}

func TestDeliveryRetriesTransientFailures(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())
	delivery := &scriptedDelivery{statuses: []core.DeliveryStatus{core.TransientFailure, core.TransientFailure, core.Delivered}}
	engine := NewEngine(fastConfig(), store, patternModerator{}, nil, delivery, nil, zap.NewNop())

	saveUnresolved(t, store, 1, "посоветуйте хорошую книгу", time.Now().Add(-time.Minute))
	run := engine.Recover(context.Background(), time.Hour, core.TriggerForced)

	assert.Equal(t, 3, delivery.calls)
	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, 0, run.Errors)
}

func TestDeliveryExhaustedCountsAsError(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())
	delivery := &scriptedDelivery{statuses: []core.DeliveryStatus{core.TransientFailure, core.TransientFailure, core.TransientFailure}}
	engine := NewEngine(fastConfig(), store, patternModerator{}, nil, delivery, nil, zap.NewNop())

	id := saveUnresolved(t, store, 1, "посоветуйте хорошую книгу", time.Now().Add(-time.Minute))
	run := engine.Recover(context.Background(), time.Hour, core.TriggerForced)

	assert.Equal(t, 3, delivery.calls)
	assert.Equal(t, 0, run.Processed)
	assert.Equal(t, 1, run.Errors)

	// The message is still resolved: only the delivery failed.
	msg, err := store.GetMessage(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, msg.Resolved())
}

func TestDeliveryPermanentFailureNotRetried(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())
	delivery := &scriptedDelivery{statuses: []core.DeliveryStatus{core.PermanentFailure}}
	engine := NewEngine(fastConfig(), store, patternModerator{}, nil, delivery, nil, zap.NewNop())

	saveUnresolved(t, store, 1, "посоветуйте хорошую книгу", time.Now().Add(-time.Minute))
	run := engine.Recover(context.Background(), time.Hour, core.TriggerForced)

	assert.Equal(t, 1, delivery.calls)
	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, 0, run.Errors)
}

type failingStore struct {
	*storage.MemoryStore
}

func (s *failingStore) FindUnresolved(ctx context.Context, since time.Time) ([]*core.Message, error) {
	return nil, errors.New("database gone")
}

func TestRecoverStoreFailure(t *testing.T) {
	store := &failingStore{storage.NewMemoryStore(zap.NewNop())}
	engine := NewEngine(fastConfig(), store, patternModerator{}, nil, &scriptedDelivery{}, nil, zap.NewNop())

	run := engine.Recover(context.Background(), time.Hour, core.TriggerStartup)
	assert.False(t, run.Success)
	assert.Contains(t, run.Error, "database gone")

	// Even a failed run is recorded.
	runs, err := store.RecentRuns(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestGetStatus(t *testing.T) {
	store := storage.NewMemoryStore(zap.NewNop())
	engine := NewEngine(fastConfig(), store, patternModerator{}, nil, &scriptedDelivery{}, nil, zap.NewNop())

	saveUnresolved(t, store, 1, "сообщение без ответа", time.Now().Add(-time.Minute))
	engine.Recover(context.Background(), time.Hour, core.TriggerForced)
	saveUnresolved(t, store, 2, "еще одно без ответа", time.Now())

	status, err := engine.GetStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Equal(t, 1, status.Unresolved)
	assert.Len(t, status.RecentRuns, 1)
}

func TestFormatRecoveredReplyTruncatesPreview(t *testing.T) {
	long := strings.Repeat("а", 150)
	framed := formatRecoveredReply(long, "ответ")
	assert.Contains(t, framed, strings.Repeat("а", 100)+"...")
	assert.NotContains(t, framed, strings.Repeat("а", 101))
	assert.Contains(t, framed, "ответ")
}
