package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubClassifier struct {
	verdict bool
	err     error
	calls   int
}

func (s *stubClassifier) Classify(ctx context.Context, text string) (bool, error) {
	s.calls++
	return s.verdict, s.err
}

func newTestEngine(classifier Classifier) (*ModerationEngine, *TrustService) {
	trust := NewTrustService(nil, zap.NewNop())
	engine := NewModerationEngine(DefaultEngineConfig(), NewPatternScorer(), trust, classifier, zap.NewNop())
	return engine, trust
}

func TestEvaluateDegenerateInput(t *testing.T) {
	engine, trust := newTestEngine(nil)

	for _, body := range []string{"", " ", "а", "  !  "} {
		verdict := engine.Evaluate(context.Background(), 1, body)
		assert.False(t, verdict.IsSpam)
		assert.Equal(t, 0.0, verdict.Score)
	}
	// Degenerate input never counts as an observation.
	assert.Equal(t, 0, trust.Get(1).MessageCount)
}

func TestEvaluateSpamScenario(t *testing.T) {
	engine, trust := newTestEngine(nil)

	verdict := engine.Evaluate(context.Background(), 1, "Купите дешево!!! http://x.co")
	assert.True(t, verdict.IsSpam)
	assert.GreaterOrEqual(t, verdict.Score, 3.0)

	state := trust.Get(1)
	assert.Equal(t, 30, state.Score)
	assert.Equal(t, 1, state.SpamCount)
}

func TestEvaluateBenignScenario(t *testing.T) {
	engine, trust := newTestEngine(nil)

	verdict := engine.Evaluate(context.Background(), 1, "Спасибо, очень полезно!")
	assert.False(t, verdict.IsSpam)
	assert.Less(t, verdict.Score, 3.0)

	assert.Equal(t, 51, trust.Get(1).Score)
}

func TestEvaluateTrustedThreshold(t *testing.T) {
	// The same borderline message is spam for a neutral sender but passes
	// for a trusted one.
	engine, trust := newTestEngine(nil)
	trust.states[2] = &TrustState{SenderID: 2, Score: 90}

	body := "Купите дешево!!! http://x.co"
	assert.True(t, engine.Evaluate(context.Background(), 1, body).IsSpam)
	assert.False(t, engine.Evaluate(context.Background(), 2, body).IsSpam)
}

func TestEvaluateUsesTierBeforeObservation(t *testing.T) {
	// The threshold comes from the tier as it was when the message
	// arrived, not after the observation is recorded.
	engine, trust := newTestEngine(nil)
	trust.states[1] = &TrustState{SenderID: 1, Score: 80}

	engine.Evaluate(context.Background(), 1, "Купите дешево!!! http://x.co")
	assert.Equal(t, 81, trust.Get(1).Score)
}

func TestClassifierConfirmsSpam(t *testing.T) {
	classifier := &stubClassifier{verdict: true}
	engine, _ := newTestEngine(classifier)

	// Pattern score 4 lands the total at 2.4, inside the escalation band
	// and below the neutral threshold.
	verdict := engine.Evaluate(context.Background(), 1, "Купите http://x.co")
	assert.Equal(t, 1, classifier.calls)
	assert.True(t, verdict.IsSpam)
	assert.Equal(t, 4.1, verdict.Score)
}

func TestClassifierClearsNothing(t *testing.T) {
	// A ham verdict from the classifier leaves the heuristic outcome alone.
	classifier := &stubClassifier{verdict: false}
	engine, _ := newTestEngine(classifier)

	verdict := engine.Evaluate(context.Background(), 1, "Купите http://x.co")
	assert.Equal(t, 1, classifier.calls)
	assert.False(t, verdict.IsSpam)
	assert.InDelta(t, 2.4, verdict.Score, 1e-9)
}

func TestClassifierErrorKeepsHeuristicVerdict(t *testing.T) {
	classifier := &stubClassifier{err: errors.New("timeout")}
	engine, _ := newTestEngine(classifier)

	verdict := engine.Evaluate(context.Background(), 1, "Купите http://x.co")
	assert.False(t, verdict.IsSpam)
	assert.InDelta(t, 2.4, verdict.Score, 1e-9)
}

func TestClassifierSkippedOutsideBand(t *testing.T) {
	classifier := &stubClassifier{verdict: true}
	engine, _ := newTestEngine(classifier)

	// Clean conversational message scores well below the band.
	engine.Evaluate(context.Background(), 1, "Добрый вечер, как дела у всех?")
	assert.Equal(t, 0, classifier.calls)
}

func TestWithinBandBoundaries(t *testing.T) {
	engine, _ := newTestEngine(nil)

	assert.False(t, engine.withinBand(1.99))
	assert.True(t, engine.withinBand(2.0))
	assert.True(t, engine.withinBand(4.0))
	assert.False(t, engine.withinBand(4.01))
}

func TestEvaluateBurstPenalty(t *testing.T) {
	engine, trust := newTestEngine(nil)
	now := time.Now()
	engine.now = func() time.Time { return now }

	body := "Посмотрите наш канал быстрее"
	first := engine.Evaluate(context.Background(), 1, body)

	// The instant follow-up picks up the tight burst penalty.
	second := engine.Evaluate(context.Background(), 1, body)
	assert.InDelta(t, 0.6, second.Score-first.Score, 1e-9)
	assert.Equal(t, 2, trust.Get(1).MessageCount)
}
