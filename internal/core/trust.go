package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	spamTrustPenalty = 20
	hamTrustReward   = 1

	burstWindowTight  = 10 * time.Second
	burstWindowLoose  = 30 * time.Second
	burstPenaltyTight = 2.0
	burstPenaltyLoose = 1.0
	trustedGapBonus   = -1.0
)

// TrustService owns all per-sender trust state. It keeps the working set in
// memory and mirrors it to the repository: hydrated once at startup, flushed
// periodically and at shutdown. All mutations go through this service.
type TrustService struct {
	mu     sync.Mutex
	states map[int64]*TrustState
	dirty  map[int64]struct{}
	repo   TrustRepository
	logger *zap.Logger
}

// NewTrustService creates a trust service backed by the given repository.
// repo may be nil for purely in-memory use (CLI, tests).
func NewTrustService(repo TrustRepository, logger *zap.Logger) *TrustService {
	return &TrustService{
		states: make(map[int64]*TrustState),
		dirty:  make(map[int64]struct{}),
		repo:   repo,
		logger: logger,
	}
}

// Hydrate loads the durable mirror into memory. Called once at startup,
// before the service is shared.
func (t *TrustService) Hydrate(ctx context.Context) error {
	if t.repo == nil {
		return nil
	}
	states, err := t.repo.ListTrustStates(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range states {
		t.states[s.SenderID] = s
	}
	t.logger.Info("Hydrated trust state", zap.Int("senders", len(states)))
	return nil
}

// Get returns a copy of the sender's trust state, creating the default state
// on first observation.
func (t *TrustService) Get(senderID int64) TrustState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.lookup(senderID)
}

// Tier returns the sender's current trust tier.
func (t *TrustService) Tier(senderID int64) TrustTier {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lookup(senderID).Tier()
}

// lookup must be called with the mutex held.
func (t *TrustService) lookup(senderID int64) *TrustState {
	s, ok := t.states[senderID]
	if !ok {
		s = NewTrustState(senderID)
		t.states[senderID] = s
	}
	return s
}

// RecordObservation applies one moderation verdict to the sender's state:
// spam costs 20 trust points (floored at 0) and a warning, a legitimate
// message earns 1 point (capped at 100). Both branches bump the message
// count and last activity.
func (t *TrustService) RecordObservation(senderID int64, isSpam bool, now time.Time) TrustState {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.lookup(senderID)
	if isSpam {
		s.Score -= spamTrustPenalty
		if s.Score < TrustMin {
			s.Score = TrustMin
		}
		s.SpamCount++
		s.WarningCount++
	} else {
		s.Score += hamTrustReward
		if s.Score > TrustMax {
			s.Score = TrustMax
		}
	}
	s.MessageCount++
	s.LastActivity = now
	t.dirty[senderID] = struct{}{}
	return *s
}

// BurstScore rates the sender's message timing: rapid-fire messages are
// penalized regardless of content, an established trusted sender at a normal
// pace gets a small bonus. A never-seen sender scores 0.
func (t *TrustService) BurstScore(senderID int64, now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[senderID]
	if !ok || s.LastActivity.IsZero() {
		return 0
	}
	gap := now.Sub(s.LastActivity)
	switch {
	case gap < burstWindowTight:
		return burstPenaltyTight
	case gap < burstWindowLoose:
		return burstPenaltyLoose
	case s.Tier() == TierTrusted:
		return trustedGapBonus
	default:
		return 0
	}
}

// Flush writes all dirty states to the repository.
func (t *TrustService) Flush(ctx context.Context) error {
	if t.repo == nil {
		return nil
	}

	t.mu.Lock()
	pending := make([]TrustState, 0, len(t.dirty))
	for id := range t.dirty {
		pending = append(pending, *t.states[id])
	}
	t.dirty = make(map[int64]struct{})
	t.mu.Unlock()

	for i := range pending {
		if err := t.repo.UpsertTrustState(ctx, &pending[i]); err != nil {
			// Re-mark so the next flush retries the failed sender.
			t.mu.Lock()
			t.dirty[pending[i].SenderID] = struct{}{}
			t.mu.Unlock()
			return err
		}
	}
	if len(pending) > 0 {
		t.logger.Debug("Flushed trust state", zap.Int("senders", len(pending)))
	}
	return nil
}

// RunFlusher periodically flushes dirty trust state until the context is
// cancelled, then performs a final flush.
func (t *TrustService) RunFlusher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := t.Flush(ctx); err != nil {
				t.logger.Error("Failed to flush trust state", zap.Error(err))
			}
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := t.Flush(flushCtx); err != nil {
				t.logger.Error("Failed final trust flush", zap.Error(err))
			}
			return
		}
	}
}
