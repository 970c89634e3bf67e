package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/maxtyrsa/mamaai/internal/core"
)

// sqliteTimeLayout is fixed-width, unlike RFC3339Nano which trims trailing
// fractional zeros. Timestamps are compared lexically in SQL, so every
// stored value must have the same length.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is the SQLite implementation of the Store port. One *sql.DB
// serializes writes through its connection pool.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (and if needed initializes) the database at dbPath.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := initSchema(db, sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite store initialized", zap.String("path", dbPath))
	return &SQLiteStore{db: db, logger: logger}, nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_id INTEGER NOT NULL,
		body TEXT NOT NULL,
		received_at TIMESTAMP NOT NULL,
		is_spam BOOLEAN,
		response_text TEXT NOT NULL DEFAULT '',
		spam_score REAL,
		resolved_at TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_received ON messages(received_at)`,
	`CREATE TABLE IF NOT EXISTS trust_states (
		sender_id INTEGER PRIMARY KEY,
		score INTEGER NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0,
		spam_count INTEGER NOT NULL DEFAULT 0,
		warning_count INTEGER NOT NULL DEFAULT 0,
		last_activity TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS recovery_runs (
		id TEXT PRIMARY KEY,
		trigger_kind TEXT NOT NULL,
		total INTEGER NOT NULL,
		processed INTEGER NOT NULL,
		spam INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		success BOOLEAN NOT NULL,
		error_text TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL,
		started_at TIMESTAMP NOT NULL
	)`,
}

func initSchema(db *sql.DB, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// SaveMessage inserts an unresolved message row and returns its id.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *core.Message) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (sender_id, body, received_at)
		VALUES (?, ?, ?)
	`, msg.SenderID, msg.Body, msg.ReceivedAt.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}
	return res.LastInsertId()
}

// GetMessage fetches a message by id.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*core.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sender_id, body, received_at, is_spam, response_text, spam_score, resolved_at
		FROM messages WHERE id = ?
	`, id)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return msg, err
}

// FindUnresolved returns unresolved messages received since the given time,
// oldest first.
func (s *SQLiteStore) FindUnresolved(ctx context.Context, since time.Time) ([]*core.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, body, received_at, is_spam, response_text, spam_score, resolved_at
		FROM messages
		WHERE is_spam IS NULL AND received_at >= ?
		ORDER BY received_at ASC
	`, since.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved messages: %w", err)
	}
	defer rows.Close()

	var out []*core.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			s.logger.Error("Skipping inconsistent message row", zap.Error(err))
			continue
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// CountUnresolved counts unresolved messages received since the given time.
func (s *SQLiteStore) CountUnresolved(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE is_spam IS NULL AND received_at >= ?
	`, since.UTC().Format(sqliteTimeLayout)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unresolved messages: %w", err)
	}
	return count, nil
}

// MarkResolved resolves a message. The WHERE clause keeps resolution
// one-shot: rows already resolved are untouched.
func (s *SQLiteStore) MarkResolved(ctx context.Context, id int64, isSpam bool, response string, score float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET is_spam = ?, response_text = ?, spam_score = ?, resolved_at = ?
		WHERE id = ? AND is_spam IS NULL
	`, isSpam, response, score, time.Now().UTC().Format(sqliteTimeLayout), id)
	if err != nil {
		return fmt.Errorf("failed to resolve message %d: %w", id, err)
	}
	return nil
}

// ListTrustStates loads every sender's trust state.
func (s *SQLiteStore) ListTrustStates(ctx context.Context) ([]*core.TrustState, error) {
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
		var lastActivity sql.NullString
		if err := rows.Scan(&st.SenderID, &st.Score, &st.MessageCount, &st.SpamCount, &st.WarningCount, &lastActivity); err != nil {
			return nil, fmt.Errorf("failed to scan trust state: %w", err)
		}
		if lastActivity.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, lastActivity.String); err == nil {
				st.LastActivity = ts
			}
		}
		out = append(out, &st)
	}
	return out, rows.Err()
}

// UpsertTrustState writes one sender's trust state.
func (s *SQLiteStore) UpsertTrustState(ctx context.Context, state *core.TrustState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO trust_states
		(sender_id, score, message_count, spam_count, warning_count, last_activity)
		VALUES (?, ?, ?, ?, ?, ?)
	`, state.SenderID, state.Score, state.MessageCount, state.SpamCount, state.WarningCount,
		state.LastActivity.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return fmt.Errorf("failed to upsert trust state for %d: %w", state.SenderID, err)
	}
	return nil
}

// AppendRecoveryRun records one completed recovery run.
func (s *SQLiteStore) AppendRecoveryRun(ctx context.Context, run *core.RecoveryRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recovery_runs
		(id, trigger_kind, total, processed, spam, errors, skipped, success, error_text, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, string(run.Trigger), run.Total, run.Processed, run.Spam, run.Errors, run.Skipped,
		run.Success, run.Error, run.Duration.Milliseconds(), run.StartedAt.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return fmt.Errorf("failed to append recovery run: %w", err)
	}
	return nil
}

// RecentRuns returns runs started since the given time, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, since time.Time) ([]*core.RecoveryRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trigger_kind, total, processed, spam, errors, skipped, success, error_text, duration_ms, started_at
		FROM recovery_runs
		WHERE started_at >= ?
		ORDER BY started_at DESC
	`, since.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query recovery runs: %w", err)
	}
	defer rows.Close()

	var out []*core.RecoveryRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*core.Message, error) {
	var (
		id, senderID  int64
		body          string
		receivedAtRaw string
		isSpam        sql.NullBool
		response      string
		score         sql.NullFloat64
		resolvedAtRaw sql.NullString
	)
	if err := row.Scan(&id, &senderID, &body, &receivedAtRaw, &isSpam, &response, &score, &resolvedAtRaw); err != nil {
		return nil, err
	}

	receivedAt, err := time.Parse(time.RFC3339Nano, receivedAtRaw)
	if err != nil {
		return nil, fmt.Errorf("message %d: bad received_at: %w", id, err)
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
	if resolvedAtRaw.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, resolvedAtRaw.String); err == nil {
			resolvedAtPtr = &ts
		}
	}
	return core.MessageFromRow(id, senderID, body, receivedAt, isSpamPtr, response, scorePtr, resolvedAtPtr)
}

func scanRun(row rowScanner) (*core.RecoveryRun, error) {
	var (
		run        core.RecoveryRun
		trigger    string
		durationMS int64
		startedRaw string
	)
	if err := row.Scan(&run.ID, &trigger, &run.Total, &run.Processed, &run.Spam, &run.Errors,
		&run.Skipped, &run.Success, &run.Error, &durationMS, &startedRaw); err != nil {
		return nil, fmt.Errorf("failed to scan recovery run: %w", err)
	}
	run.Trigger = core.TriggerKind(trigger)
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if ts, err := time.Parse(time.RFC3339Nano, startedRaw); err == nil {
		run.StartedAt = ts
	}
	return &run, nil
}
