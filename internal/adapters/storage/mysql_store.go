package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/maxtyrsa/mamaai/internal/core"
)

// MySQLStore is the MySQL implementation of the Store port, for deployments
// that already run a MySQL server. Same schema shape as the SQLite store.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore connects using the given DSN. The DSN must include
// parseTime=true so DATETIME columns scan into time.Time.
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if err := initSchema(db, mysqlSchema); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("MySQL store initialized")
	return &MySQLStore{db: db, logger: logger}, nil
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		sender_id BIGINT NOT NULL,
		body TEXT NOT NULL,
		received_at DATETIME(6) NOT NULL,
		is_spam BOOLEAN,
		response_text TEXT,
		spam_score DOUBLE,
		resolved_at DATETIME(6),
		INDEX idx_messages_received (received_at)
	)`,
	`CREATE TABLE IF NOT EXISTS trust_states (
		sender_id BIGINT PRIMARY KEY,
		score INT NOT NULL,
		message_count INT NOT NULL DEFAULT 0,
		spam_count INT NOT NULL DEFAULT 0,
		warning_count INT NOT NULL DEFAULT 0,
		last_activity DATETIME(6)
	)`,
	`CREATE TABLE IF NOT EXISTS recovery_runs (
		id VARCHAR(36) PRIMARY KEY,
		trigger_kind VARCHAR(16) NOT NULL,
		total INT NOT NULL,
		processed INT NOT NULL,
		spam INT NOT NULL,
		errors INT NOT NULL,
		skipped INT NOT NULL,
		success BOOLEAN NOT NULL,
		error_text TEXT,
		duration_ms BIGINT NOT NULL,
		started_at DATETIME(6) NOT NULL
	)`,
}

// SaveMessage inserts an unresolved message row and returns its id.
func (s *MySQLStore) SaveMessage(ctx context.Context, msg *core.Message) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (sender_id, body, received_at)
		VALUES (?, ?, ?)
	`, msg.SenderID, msg.Body, msg.ReceivedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}
	return res.LastInsertId()
}

// GetMessage fetches a message by id.
func (s *MySQLStore) GetMessage(ctx context.Context, id int64) (*core.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sender_id, body, received_at, is_spam, COALESCE(response_text, ''), spam_score, resolved_at
		FROM messages WHERE id = ?
	`, id)
	msg, err := scanMySQLMessage(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return msg, err
}

// FindUnresolved returns unresolved messages received since the given time,
// oldest first.
func (s *MySQLStore) FindUnresolved(ctx context.Context, since time.Time) ([]*core.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, body, received_at, is_spam, COALESCE(response_text, ''), spam_score, resolved_at
		FROM messages
		WHERE is_spam IS NULL AND received_at >= ?
		ORDER BY received_at ASC
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved messages: %w", err)
	}
	defer rows.Close()

	var out []*core.Message
	for rows.Next() {
		msg, err := scanMySQLMessage(rows)
		if err != nil {
			s.logger.Error("Skipping inconsistent message row", zap.Error(err))
			continue
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// CountUnresolved counts unresolved messages received since the given time.
func (s *MySQLStore) CountUnresolved(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE is_spam IS NULL AND received_at >= ?
	`, since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unresolved messages: %w", err)
	}
	return count, nil
}

// MarkResolved resolves a message; already resolved rows are untouched.
func (s *MySQLStore) MarkResolved(ctx context.Context, id int64, isSpam bool, response string, score float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET is_spam = ?, response_text = ?, spam_score = ?, resolved_at = ?
		WHERE id = ? AND is_spam IS NULL
	`, isSpam, response, score, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve message %d: %w", id, err)
	}
	return nil
}

// ListTrustStates loads every sender's trust state.
func (s *MySQLStore) ListTrustStates(ctx context.Context) ([]*core.TrustState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sender_id, score, message_count, spam_count, warning_count, last_activity
		FROM trust_states
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trust states: %w", err)
	}
	defer rows.Close()

	var out []*core.TrustState
	for rows.Next() {
		var st core.TrustState
		var lastActivity sql.NullTime
		if err := rows.Scan(&st.SenderID, &st.Score, &st.MessageCount, &st.SpamCount, &st.WarningCount, &lastActivity); err != nil {
			return nil, fmt.Errorf("failed to scan trust state: %w", err)
		}
		if lastActivity.Valid {
			st.LastActivity = lastActivity.Time
		}
		out = append(out, &st)
	}
	return out, rows.Err()
}

// UpsertTrustState writes one sender's trust state.
func (s *MySQLStore) UpsertTrustState(ctx context.Context, state *core.TrustState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trust_states
		(sender_id, score, message_count, spam_count, warning_count, last_activity)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		score = VALUES(score), message_count = VALUES(message_count),
		spam_count = VALUES(spam_count), warning_count = VALUES(warning_count),
		last_activity = VALUES(last_activity)
	`, state.SenderID, state.Score, state.MessageCount, state.SpamCount, state.WarningCount,
		state.LastActivity.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert trust state for %d: %w", state.SenderID, err)
	}
	return nil
}

// AppendRecoveryRun records one completed recovery run.
func (s *MySQLStore) AppendRecoveryRun(ctx context.Context, run *core.RecoveryRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recovery_runs
		(id, trigger_kind, total, processed, spam, errors, skipped, success, error_text, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, string(run.Trigger), run.Total, run.Processed, run.Spam, run.Errors, run.Skipped,
		run.Success, run.Error, run.Duration.Milliseconds(), run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to append recovery run: %w", err)
	}
	return nil
}

// RecentRuns returns runs started since the given time, newest first.
func (s *MySQLStore) RecentRuns(ctx context.Context, since time.Time) ([]*core.RecoveryRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trigger_kind, total, processed, spam, errors, skipped, success, COALESCE(error_text, ''), duration_ms, started_at
		FROM recovery_runs
		WHERE started_at >= ?
		ORDER BY started_at DESC
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query recovery runs: %w", err)
	}
	defer rows.Close()

	var out []*core.RecoveryRun
	for rows.Next() {
		var (
			run        core.RecoveryRun
			trigger    string
			durationMS int64
		)
		if err := rows.Scan(&run.ID, &trigger, &run.Total, &run.Processed, &run.Spam, &run.Errors,
			&run.Skipped, &run.Success, &run.Error, &durationMS, &run.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recovery run: %w", err)
		}
		run.Trigger = core.TriggerKind(trigger)
		run.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, &run)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func scanMySQLMessage(row rowScanner) (*core.Message, error) {
	var (
		id, senderID int64
		body         string
		receivedAt   time.Time
		isSpam       sql.NullBool
		response     string
		score        sql.NullFloat64
		resolvedAt   sql.NullTime
	)
	if err := row.Scan(&id, &senderID, &body, &receivedAt, &isSpam, &response, &score, &resolvedAt); err != nil {
		return nil, err
	}

	var isSpamPtr *bool
	if isSpam.Valid {
		isSpamPtr = &isSpam.Bool
	}
	var scorePtr *float64
	if score.Valid {
		scorePtr = &score.Float64
	}
	var resolvedAtPtr *time.Time
	if resolvedAt.Valid {
		resolvedAtPtr = &resolvedAt.Time
	}
	return core.MessageFromRow(id, senderID, body, receivedAt, isSpamPtr, response, scorePtr, resolvedAtPtr)
}
