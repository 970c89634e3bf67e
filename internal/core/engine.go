package core

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// EngineConfig carries the tuned constants of the moderation engine. The
// defaults preserve the relative ordering the system was tuned with; exact
// values are configuration.
type EngineConfig struct {
	PatternWeight  float64
	BehaviorWeight float64
	MetricsWeight  float64

	TrustedThreshold    float64
	NeutralThreshold    float64
	SuspiciousThreshold float64
	BannedThreshold     float64

	// [BandLow, BandHigh] is the inclusive score band where the external
	// classifier is consulted; EscalatedScore is the floor the total is
	// lifted to when the classifier confirms spam.
	BandLow        float64
	BandHigh       float64
	EscalatedScore float64
}

// DefaultEngineConfig returns the tuned defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		PatternWeight:  0.6,
		BehaviorWeight: 0.3,
		MetricsWeight:  0.1,

		TrustedThreshold:    4.0,
		NeutralThreshold:    3.0,
		SuspiciousThreshold: 2.0,
		BannedThreshold:     1.0,

		BandLow:        2.0,
		BandHigh:       4.0,
		EscalatedScore: 4.1,
	}
}

// ModerationEngine combines pattern, behavior and text-metric signals into a
// spam verdict, escalating to the external classifier when the heuristics
// are inconclusive. Every evaluation updates the sender's trust state.
type ModerationEngine struct {
	cfg        EngineConfig
	patterns   *PatternScorer
	trust      *TrustService
	classifier Classifier
	logger     *zap.Logger
	now        func() time.Time
}

// NewModerationEngine creates the engine. classifier may be nil to run on
// heuristics alone.
func NewModerationEngine(cfg EngineConfig, patterns *PatternScorer, trust *TrustService, classifier Classifier, logger *zap.Logger) *ModerationEngine {
	return &ModerationEngine{
		cfg:        cfg,
		patterns:   patterns,
		trust:      trust,
		classifier: classifier,
		logger:     logger,
		now:        time.Now,
	}
}

// Evaluate scores a message and returns the verdict. It never fails:
// degenerate input resolves to a safe default and classifier errors leave
// the heuristic verdict standing.
func (e *ModerationEngine) Evaluate(ctx context.Context, senderID int64, text string) Verdict {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < 2 {
		return Verdict{IsSpam: false, Score: 0}
	}

	now := e.now()
	tier := e.trust.Tier(senderID)

	patternScore := e.patterns.Score(trimmed)
	metrics := ComputeTextMetrics(trimmed)
	metricsScore := metricsPenalty(metrics)
	behaviorScore := e.trust.BurstScore(senderID, now)

	total := e.cfg.PatternWeight*patternScore +
		e.cfg.BehaviorWeight*behaviorScore +
		e.cfg.MetricsWeight*metricsScore

	threshold := e.thresholdFor(tier)
	isSpam := total >= threshold

	if e.withinBand(total) && e.classifier != nil {
		verdict, err := e.classifier.Classify(ctx, trimmed)
		if err != nil {
			e.logger.Warn("Classifier call failed, keeping heuristic verdict",
				zap.Error(err),
				zap.Float64("score", total))
		} else if verdict {
			isSpam = true
			if total < e.cfg.EscalatedScore {
				total = e.cfg.EscalatedScore
			}
		}
	}

	e.trust.RecordObservation(senderID, isSpam, now)

	e.logger.Debug("Message evaluated",
		zap.Int64("sender", senderID),
		zap.String("tier", string(tier)),
		zap.Float64("pattern", patternScore),
		zap.Float64("behavior", behaviorScore),
		zap.Float64("metrics", metricsScore),
		zap.Float64("total", total),
		zap.Bool("spam", isSpam))

	return Verdict{IsSpam: isSpam, Score: total}
}

func (e *ModerationEngine) thresholdFor(tier TrustTier) float64 {
	switch tier {
	case TierTrusted:
		return e.cfg.TrustedThreshold
	case TierNeutral:
		return e.cfg.NeutralThreshold
	case TierSuspicious:
		return e.cfg.SuspiciousThreshold
	default:
		return e.cfg.BannedThreshold
	}
}

// withinBand reports whether the total falls in the inclusive classifier
// escalation band.
func (e *ModerationEngine) withinBand(total float64) bool {
	return total >= e.cfg.BandLow && total <= e.cfg.BandHigh
}

// metricsPenalty turns the raw text metrics into a heuristic penalty sum.
func metricsPenalty(m TextMetrics) float64 {
	var penalty float64
	if m.Length < 10 {
		penalty++
	}
	if m.UppercaseRatio > 0.5 {
		penalty += 2
	}
	if m.SpecialRatio > 0.3 {
		penalty++
	}
	if m.DigitRatio > 0.2 {
		penalty++
	}
	if m.EmojiCount > 3 {
		penalty++
	}
	if m.RepetitionScore > 0.5 {
		penalty += 2
	}
	return penalty
}
