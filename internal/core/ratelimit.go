package core

import (
	"sync"
	"time"
)

// RateLimiter is per-sender sliding-window admission control. It gates
// whether a message is scored at all; the caller decides what a rejection
// means. Windows live only in memory; after a restart the limit is
// temporarily looser, which is acceptable.
type RateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	senders map[int64][]time.Time
	now     func() time.Time
}

// NewRateLimiter creates a limiter admitting at most limit messages per
// sender within the window.
func NewRateLimiter(window time.Duration, limit int) *RateLimiter {
	return &RateLimiter{
		window:  window,
		limit:   limit,
		senders: make(map[int64][]time.Time),
		now:     time.Now,
	}
}

// Admit reports whether the sender is under the limit. Expired timestamps
// are pruned; senders with an empty window are dropped from the map.
func (r *RateLimiter) Admit(senderID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prune(senderID)) < r.limit
}

// Record registers one admitted message for the sender.
func (r *RateLimiter) Record(senderID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[senderID] = append(r.prune(senderID), r.now())
}

// prune must be called with the mutex held.
func (r *RateLimiter) prune(senderID int64) []time.Time {
	cutoff := r.now().Add(-r.window)
	stamps := r.senders[senderID]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(r.senders, senderID)
		return nil
	}
	r.senders[senderID] = kept
	return kept
}
