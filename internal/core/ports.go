package core

import (
	"context"
	"time"
)

// MessageStore is the durable record of every inbound message and its
// disposition. MarkResolved must be idempotent: resolving an already
// resolved message is a no-op.
type MessageStore interface {
	// SaveMessage persists a newly arrived message and returns its id.
	SaveMessage(ctx context.Context, msg *Message) (int64, error)

	// GetMessage fetches a single message by id.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// FindUnresolved returns all unresolved messages received since the
	// given time, oldest first.
	FindUnresolved(ctx context.Context, since time.Time) ([]*Message, error)

	// CountUnresolved counts unresolved messages received since the given time.
	CountUnresolved(ctx context.Context, since time.Time) (int, error)

	// MarkResolved moves a message to its terminal disposition.
	MarkResolved(ctx context.Context, id int64, isSpam bool, response string, score float64) error
}

// TrustRepository is the durable mirror of per-sender trust state.
type TrustRepository interface {
	ListTrustStates(ctx context.Context) ([]*TrustState, error)
	UpsertTrustState(ctx context.Context, state *TrustState) error
}

// RecoveryLog is the append-only audit trail of recovery runs.
type RecoveryLog interface {
	AppendRecoveryRun(ctx context.Context, run *RecoveryRun) error
	RecentRuns(ctx context.Context, since time.Time) ([]*RecoveryRun, error)
}

// Store combines the persistence ports behind a single connection.
type Store interface {
	MessageStore
	TrustRepository
	RecoveryLog

	Close() error
}

// Classifier is the external spam classifier consulted in the ambiguous
// score band. It is best-effort: errors leave the heuristic verdict in place.
type Classifier interface {
	Classify(ctx context.Context, text string) (bool, error)
}

// ReplyGenerator produces a reply to a legitimate message. Best-effort;
// callers fall back to a canned reply on error or degenerate output.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, text string, senderName string) (string, error)
}

// LLMClient is a single provider implementing both LLM-backed ports.
type LLMClient interface {
	Classifier
	ReplyGenerator
}

// DeliveryChannel sends text to a sender. The status classifies failures;
// err carries the transport detail for logging.
type DeliveryChannel interface {
	Deliver(ctx context.Context, senderID int64, text string) (DeliveryStatus, error)
}

// Notifier sends operational summaries to the channel operators.
// Fire-and-forget: failures are logged by callers, never propagated.
type Notifier interface {
	Notify(ctx context.Context, summary string) error
}
