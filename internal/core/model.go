package core

import (
	"fmt"
	"time"
)

// Disposition is the moderation outcome of a message.
type Disposition string

const (
	DispositionUnresolved Disposition = "unresolved"
	DispositionSpam       Disposition = "spam"
	DispositionLegitimate Disposition = "legitimate"
)

// Message is a single inbound channel message together with its moderation
// outcome. A message is unresolved until either the live pipeline or the
// recovery engine scores it; after that the disposition, score and response
// never change.
type Message struct {
	ID          int64
	SenderID    int64
	Body        string
	ReceivedAt  time.Time
	Disposition Disposition
	Response    string
	SpamScore   *float64
	ResolvedAt  *time.Time
}

// NewMessage creates an unresolved message as it arrives from the transport.
func NewMessage(senderID int64, body string, receivedAt time.Time) *Message {
	return &Message{
		SenderID:    senderID,
		Body:        body,
		ReceivedAt:  receivedAt,
		Disposition: DispositionUnresolved,
	}
}

// MessageFromRow reconstructs a message from its stored representation and
// validates the disposition invariant at the storage boundary. isSpam is nil
// for rows that were never scored.
func MessageFromRow(id, senderID int64, body string, receivedAt time.Time, isSpam *bool, response string, score *float64, resolvedAt *time.Time) (*Message, error) {
	m := &Message{
		ID:         id,
		SenderID:   senderID,
		Body:       body,
		ReceivedAt: receivedAt,
		Response:   response,
		SpamScore:  score,
		ResolvedAt: resolvedAt,
	}
	switch {
	case isSpam == nil:
		if score != nil || response != "" {
			return nil, fmt.Errorf("message %d: unresolved row carries score or response", id)
		}
		m.Disposition = DispositionUnresolved
	case *isSpam:
		m.Disposition = DispositionSpam
	default:
		m.Disposition = DispositionLegitimate
	}
	if m.Disposition != DispositionUnresolved && score == nil {
		return nil, fmt.Errorf("message %d: resolved row without a spam score", id)
	}
	return m, nil
}

// Resolved reports whether the message has reached a terminal disposition.
func (m *Message) Resolved() bool {
	return m.Disposition != DispositionUnresolved
}

// TrustTier is the banded classification of a sender's trust score.
type TrustTier string

const (
	TierTrusted    TrustTier = "trusted"
	TierNeutral    TrustTier = "neutral"
	TierSuspicious TrustTier = "suspicious"
	TierBanned     TrustTier = "banned"
)

const (
	TrustDefault = 50
	TrustMin     = 0
	TrustMax     = 100
)

// TrustState is the long-term reputation record of a single sender.
type TrustState struct {
	SenderID     int64
	Score        int
	MessageCount int
	SpamCount    int
	WarningCount int
	LastActivity time.Time
}

// NewTrustState creates the default state for a sender seen for the first time.
func NewTrustState(senderID int64) *TrustState {
	return &TrustState{SenderID: senderID, Score: TrustDefault}
}

// Tier maps the trust score to its tier.
func (s *TrustState) Tier() TrustTier {
	switch {
	case s.Score >= 80:
		return TierTrusted
	case s.Score >= 50:
		return TierNeutral
	case s.Score >= 20:
		return TierSuspicious
	default:
		return TierBanned
	}
}

// TriggerKind identifies what started a recovery run.
type TriggerKind string

const (
	TriggerStartup  TriggerKind = "startup"
	TriggerPeriodic TriggerKind = "periodic"
	TriggerForced   TriggerKind = "forced"
)

// RecoveryRun is the audit record of one backfill pass over unresolved
// messages. It is immutable once appended to the recovery log.
type RecoveryRun struct {
	ID        string
	Trigger   TriggerKind
	Total     int
	Processed int
	Spam      int
	Errors    int
	Skipped   int
	Success   bool
	Error     string
	Duration  time.Duration
	StartedAt time.Time
}

// Verdict is the outcome of scoring a single message.
type Verdict struct {
	IsSpam bool
	Score  float64
}

// DeliveryStatus classifies the outcome of an outbound delivery attempt so
// callers can branch on it instead of inspecting transport errors.
type DeliveryStatus int

const (
	// Delivered means the message reached the recipient.
	Delivered DeliveryStatus = iota
	// TransientFailure is expected to be retry-recoverable (timeout, network).
	TransientFailure
	// PermanentFailure will never succeed on retry (recipient blocked the bot,
	// chat gone).
	PermanentFailure
)

func (s DeliveryStatus) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case TransientFailure:
		return "transient_failure"
	case PermanentFailure:
		return "permanent_failure"
	default:
		return "unknown"
	}
}
