package recovery

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maxtyrsa/mamaai/internal/core"
)

// MaxLookback bounds how far back a recovery pass may reach.
const MaxLookback = 168 * time.Hour

const fallbackReply = "Спасибо за ваше сообщение! 😊"

// Moderator is the slice of the moderation engine the recovery path needs.
type Moderator interface {
	Evaluate(ctx context.Context, senderID int64, text string) core.Verdict
}

// Config carries the retry and pacing knobs of the recovery engine.
type Config struct {
	// Pace is the delay between candidates, to avoid flooding the
	// outbound channel.
	Pace time.Duration
	// MaxAttempts bounds delivery retries for transient failures.
	MaxAttempts int
	// BackoffBase is the first retry delay; subsequent delays grow linearly.
	BackoffBase time.Duration
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Pace:        500 * time.Millisecond,
		MaxAttempts: 3,
		BackoffBase: 2 * time.Second,
	}
}

// Engine re-walks the durable store for messages that never reached a
// terminal disposition and finishes the job: scores them, persists the
// outcome and makes a best-effort attempt to deliver replies. Safe to run
// repeatedly, resolution is idempotent per message.
type Engine struct {
	cfg       Config
	store     core.Store
	moderator Moderator
	replies   core.ReplyGenerator
	delivery  core.DeliveryChannel
	notifier  core.Notifier
	logger    *zap.Logger

	running atomic.Bool
}

// NewEngine creates a recovery engine. replies may be nil (canned fallback
// is used), notifier may be nil (summaries are only logged).
func NewEngine(cfg Config, store core.Store, moderator Moderator, replies core.ReplyGenerator, delivery core.DeliveryChannel, notifier core.Notifier, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		store:     store,
		moderator: moderator,
		replies:   replies,
		delivery:  delivery,
		notifier:  notifier,
		logger:    logger,
	}
}

// Running reports whether a recovery pass is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Recover runs one backfill pass over unresolved messages received within
// the lookback window. Only one pass runs at a time: a concurrent call gets
// a non-success run result instead of waiting. The returned run is also
// appended to the audit log.
func (e *Engine) Recover(ctx context.Context, lookback time.Duration, trigger core.TriggerKind) *core.RecoveryRun {
	run := &core.RecoveryRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: time.Now(),
	}

	if !e.running.CompareAndSwap(false, true) {
		run.Error = "recovery already in progress"
		e.logger.Info("Declined recovery run", zap.String("trigger", string(trigger)))
		return run
	}
	defer e.running.Store(false)

	if lookback <= 0 || lookback > MaxLookback {
		lookback = MaxLookback
	}
	since := run.StartedAt.Add(-lookback)

	e.logger.Info("Recovery started",
		zap.String("run_id", run.ID),
		zap.String("trigger", string(trigger)),
		zap.Duration("lookback", lookback))

	candidates, err := e.store.FindUnresolved(ctx, since)
	if err != nil {
		run.Error = fmt.Sprintf("fetching unresolved messages: %v", err)
		run.Duration = time.Since(run.StartedAt)
		e.appendRun(run)
		e.logger.Error("Recovery aborted", zap.String("run_id", run.ID), zap.Error(err))
		return run
	}
	run.Total = len(candidates)

	for _, msg := range candidates {
		if ctx.Err() != nil {
			run.Error = "recovery cancelled"
			break
		}
		e.processCandidate(ctx, msg, run)
		if !sleepCtx(ctx, e.cfg.Pace) {
			run.Error = "recovery cancelled"
			break
		}
	}

	run.Success = run.Error == ""
	run.Duration = time.Since(run.StartedAt)
	e.appendRun(run)

	e.logger.Info("Recovery finished",
		zap.String("run_id", run.ID),
		zap.Int("total", run.Total),
		zap.Int("processed", run.Processed),
		zap.Int("spam", run.Spam),
		zap.Int("errors", run.Errors),
		zap.Int("skipped", run.Skipped),
		zap.Duration("duration", run.Duration),
		zap.Bool("success", run.Success))

	if run.Processed > 0 || run.Spam > 0 {
		e.notifyOperators(ctx, run)
	}
	return run
}

// processCandidate resolves one unresolved message, mirroring the live path.
func (e *Engine) processCandidate(ctx context.Context, msg *core.Message, run *core.RecoveryRun) {
	// The live pipeline may have resolved it since the fetch.
	current, err := e.store.GetMessage(ctx, msg.ID)
	if err != nil {
		run.Errors++
		e.logger.Error("Failed to re-check candidate", zap.Int64("message_id", msg.ID), zap.Error(err))
		return
	}
	if current.Resolved() {
		run.Skipped++
		return
	}

	verdict := e.moderator.Evaluate(ctx, current.SenderID, current.Body)

	if verdict.IsSpam {
		annotation := fmt.Sprintf("flagged during recovery (score: %.1f)", verdict.Score)
		if err := e.store.MarkResolved(ctx, current.ID, true, annotation, verdict.Score); err != nil {
			run.Errors++
			e.logger.Error("Failed to mark spam", zap.Int64("message_id", current.ID), zap.Error(err))
			return
		}
		run.Spam++
		e.logger.Info("Spam caught during recovery",
			zap.Int64("message_id", current.ID),
			zap.Float64("score", verdict.Score))
		return
	}

	reply := e.generateReply(ctx, current)
	if err := e.store.MarkResolved(ctx, current.ID, false, reply, verdict.Score); err != nil {
		run.Errors++
		e.logger.Error("Failed to mark processed", zap.Int64("message_id", current.ID), zap.Error(err))
		return
	}

	switch e.deliverWithRetry(ctx, current.SenderID, formatRecoveredReply(current.Body, reply)) {
	case core.Delivered:
		run.Processed++
	case core.PermanentFailure:
		// Scored and answered, just unreachable. Not an error and not
		// worth retrying.
		run.Processed++
		e.logger.Warn("Reply not deliverable", zap.Int64("message_id", current.ID), zap.Int64("sender", current.SenderID))
	default:
		run.Errors++
		e.logger.Warn("Reply delivery failed after retries", zap.Int64("message_id", current.ID))
	}
}

func (e *Engine) generateReply(ctx context.Context, msg *core.Message) string {
	if e.replies == nil {
		return fallbackReply
	}
	// Bodies too short to score are not worth an LLM round-trip either.
	if utf8.RuneCountInString(strings.TrimSpace(msg.Body)) < 2 {
		return fallbackReply
	}
	reply, err := e.replies.GenerateReply(ctx, msg.Body, fmt.Sprintf("user_%d", msg.SenderID))
	if err != nil {
		e.logger.Warn("Reply generation failed, using fallback", zap.Int64("message_id", msg.ID), zap.Error(err))
		return fallbackReply
	}
	if utf8.RuneCountInString(strings.TrimSpace(reply)) < 3 {
		return fallbackReply
	}
	return reply
}

// deliverWithRetry retries transient failures with a growing, cancellable
// backoff. Permanent failures are returned immediately.
func (e *Engine) deliverWithRetry(ctx context.Context, senderID int64, text string) core.DeliveryStatus {
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		status, err := e.delivery.Deliver(ctx, senderID, text)
		switch status {
		case core.Delivered:
			return core.Delivered
		case core.PermanentFailure:
			e.logger.Debug("Permanent delivery failure", zap.Int64("sender", senderID), zap.Error(err))
			return core.PermanentFailure
		default:
			e.logger.Debug("Transient delivery failure",
				zap.Int64("sender", senderID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if attempt < e.cfg.MaxAttempts {
				if !sleepCtx(ctx, time.Duration(attempt)*e.cfg.BackoffBase) {
					return core.TransientFailure
				}
			}
		}
	}
	return core.TransientFailure
}

func (e *Engine) appendRun(run *core.RecoveryRun) {
	// The run record must survive even when the triggering context is gone.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.store.AppendRecoveryRun(ctx, run); err != nil {
		e.logger.Error("Failed to append recovery run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (e *Engine) notifyOperators(ctx context.Context, run *core.RecoveryRun) {
	if e.notifier == nil {
		return
	}
	rate := 0.0
	if run.Total > 0 {
		rate = float64(run.Processed) / float64(run.Total) * 100
	}
	summary := fmt.Sprintf(
		"🔄 Восстановление завершено\n\n"+
			"• Всего сообщений: %d\n"+
			"• Отвечено: %d\n"+
			"• Обнаружено спама: %d\n"+
			"• Ошибок: %d\n"+
			"• Пропущено: %d\n"+
			"• Успешность: %.1f%%\n"+
			"• Длительность: %s",
		run.Total, run.Processed, run.Spam, run.Errors, run.Skipped, rate, run.Duration.Round(time.Second))
	if err := e.notifier.Notify(ctx, summary); err != nil {
		e.logger.Error("Failed to notify operators", zap.Error(err))
	}
}

// RunPeriodic triggers a recovery pass every interval until the context is
// cancelled. Passes declined because one is already running are not errors.
func (e *Engine) RunPeriodic(ctx context.Context, interval time.Duration) {
	e.logger.Info("Periodic recovery scheduled", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Recover(ctx, interval, core.TriggerPeriodic)
		case <-ctx.Done():
			e.logger.Info("Periodic recovery stopped")
			return
		}
	}
}

// Status describes the current state of the recovery subsystem.
type Status struct {
	Running    bool
	Unresolved int
	RecentRuns []*core.RecoveryRun
}

// GetStatus reports whether a pass is running, how many messages are
// currently unresolved in the last 24 hours, and the runs of the past week.
func (e *Engine) GetStatus(ctx context.Context) (*Status, error) {
	unresolved, err := e.store.CountUnresolved(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("counting unresolved messages: %w", err)
	}
	runs, err := e.store.RecentRuns(ctx, time.Now().Add(-MaxLookback))
	if err != nil {
		return nil, fmt.Errorf("loading recent runs: %w", err)
	}
	return &Status{Running: e.running.Load(), Unresolved: unresolved, RecentRuns: runs}, nil
}

// formatRecoveredReply frames the reply with a preview of the original
// message so the sender has context for the late answer.
func formatRecoveredReply(original, reply string) string {
	preview := original
	if utf8.RuneCountInString(preview) > 100 {
		preview = string([]rune(preview)[:100]) + "..."
	}
	return fmt.Sprintf("💬 Ответ на ваше сообщение:\n\n_%s_\n\n────────────────\n%s\n\n📅 Автоматический ответ после восстановления работы бота", preview, reply)
}

// sleepCtx sleeps for d unless the context ends first; it reports whether
// the full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
