package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAdmitsUpToLimit(t *testing.T) {
	now := time.Now()
	r := NewRateLimiter(time.Minute, 5)
	r.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		assert.True(t, r.Admit(1), "message %d", i+1)
		r.Record(1)
	}
	assert.False(t, r.Admit(1))
}

func TestRateLimiterWindowSlides(t *testing.T) {
	now := time.Now()
	r := NewRateLimiter(time.Minute, 2)
	r.now = func() time.Time { return now }

	r.Record(1)
	r.Record(1)
	assert.False(t, r.Admit(1))

	// Timestamps expire once the window has passed them.
	now = now.Add(61 * time.Second)
	assert.True(t, r.Admit(1))
}

func TestRateLimiterPerSender(t *testing.T) {
	now := time.Now()
	r := NewRateLimiter(time.Minute, 1)
	r.now = func() time.Time { return now }

	r.Record(1)
	assert.False(t, r.Admit(1))
	assert.True(t, r.Admit(2))
}

func TestRateLimiterDropsIdleSenders(t *testing.T) {
	now := time.Now()
	r := NewRateLimiter(time.Minute, 5)
	r.now = func() time.Time { return now }

	r.Record(1)
	now = now.Add(2 * time.Minute)
	assert.True(t, r.Admit(1))
	assert.Empty(t, r.senders)
}
