package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maxtyrsa/mamaai/internal/core"
)

// ErrNotFound is returned when a message does not exist.
var ErrNotFound = errors.New("message not found")

// MemoryStore is an in-memory implementation of the Store port, used by the
// CLI scorer and by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[int64]*core.Message
	trust    map[int64]*core.TrustState
	runs     []*core.RecoveryRun
	nextID   int64
	logger   *zap.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		messages: make(map[int64]*core.Message),
		trust:    make(map[int64]*core.TrustState),
		nextID:   1,
		logger:   logger,
	}
}

// SaveMessage persists a newly arrived message and returns its id.
func (s *MemoryStore) SaveMessage(ctx context.Context, msg *core.Message) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *msg
	stored.ID = s.nextID
	s.nextID++
	s.messages[stored.ID] = &stored
	return stored.ID, nil
}

// GetMessage fetches a message by id.
func (s *MemoryStore) GetMessage(ctx context.Context, id int64) (*core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *msg
	return &copied, nil
}

// FindUnresolved returns unresolved messages received since the given time,
// oldest first.
func (s *MemoryStore) FindUnresolved(ctx context.Context, since time.Time) ([]*core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Message
	for _, msg := range s.messages {
		if !msg.Resolved() && !msg.ReceivedAt.Before(since) {
			copied := *msg
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, nil
}

// CountUnresolved counts unresolved messages received since the given time.
func (s *MemoryStore) CountUnresolved(ctx context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, msg := range s.messages {
		if !msg.Resolved() && !msg.ReceivedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// MarkResolved moves a message to its terminal state. Resolving an already
// resolved message is a no-op.
func (s *MemoryStore) MarkResolved(ctx context.Context, id int64, isSpam bool, response string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	if msg.Resolved() {
		return nil
	}
	if isSpam {
		msg.Disposition = core.DispositionSpam
	} else {
		msg.Disposition = core.DispositionLegitimate
	}
	msg.Response = response
	msg.SpamScore = &score
	now := time.Now()
	msg.ResolvedAt = &now
	return nil
}

// ListTrustStates returns all stored trust states.
func (s *MemoryStore) ListTrustStates(ctx context.Context) ([]*core.TrustState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.TrustState, 0, len(s.trust))
	for _, st := range s.trust {
		copied := *st
		out = append(out, &copied)
	}
	return out, nil
}

// UpsertTrustState stores a sender's trust state.
func (s *MemoryStore) UpsertTrustState(ctx context.Context, state *core.TrustState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *state
	s.trust[state.SenderID] = &copied
	return nil
}

// AppendRecoveryRun records a completed recovery run.
func (s *MemoryStore) AppendRecoveryRun(ctx context.Context, run *core.RecoveryRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *run
	s.runs = append(s.runs, &copied)
	return nil
}

// RecentRuns returns runs started since the given time, newest first.
func (s *MemoryStore) RecentRuns(ctx context.Context, since time.Time) ([]*core.RecoveryRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.RecoveryRun
	for _, run := range s.runs {
		if !run.StartedAt.Before(since) {
			copied := *run
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
