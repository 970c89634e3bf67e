package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/maxtyrsa/mamaai/internal/core"
)

func TestSeedTrustClampsOutOfRangeTargets(t *testing.T) {
	trust := core.NewTrustService(nil, zap.NewNop())

	seedTrust(trust, 1, 150)
	assert.Equal(t, core.TrustMax, trust.Get(1).Score)

	seedTrust(trust, 2, -5)
	assert.Equal(t, core.TrustMin, trust.Get(2).Score)
}

func TestSeedTrustReachesInRangeTarget(t *testing.T) {
	trust := core.NewTrustService(nil, zap.NewNop())

	seedTrust(trust, 3, 85)
	assert.Equal(t, 85, trust.Get(3).Score)

	seedTrust(trust, 3, 10)
	assert.Equal(t, 10, trust.Get(3).Score)
}
