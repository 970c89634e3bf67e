package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mymmrac/telego"
	"go.uber.org/zap"

	"github.com/maxtyrsa/mamaai/internal/core"
	"github.com/maxtyrsa/mamaai/internal/recovery"
)

const (
	rateLimitWarning = "⏳ Слишком много сообщений. Пожалуйста, подождите немного."
	fallbackReply    = "Спасибо за ваше сообщение! 😊"
)

// ListenerConfig carries the transport-level knobs of the live pipeline.
type ListenerConfig struct {
	AdminIDs     []int64
	NotifyOnSpam bool
	PollTimeout  int
}

// Listener is the live moderation pipeline: it consumes Telegram updates,
// rate-limits senders, persists every message before scoring it and resolves
// each one with either a removal or a reply. Messages whose reply could not
// be sent stay unresolved so the recovery engine can finish them later.
type Listener struct {
	cfg      ListenerConfig
	bot      *telego.Bot
	store    core.MessageStore
	engine   *core.ModerationEngine
	limiter  *core.RateLimiter
	replies  core.ReplyGenerator
	recovery *recovery.Engine
	notifier core.Notifier
	logger   *zap.Logger
}

// NewListener creates the live pipeline. replies may be nil (canned fallback),
// notifier may be nil (spam is only logged).
func NewListener(
	cfg ListenerConfig,
	bot *telego.Bot,
	store core.MessageStore,
	engine *core.ModerationEngine,
	limiter *core.RateLimiter,
	replies core.ReplyGenerator,
	recoveryEngine *recovery.Engine,
	notifier core.Notifier,
	logger *zap.Logger,
) *Listener {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30
	}
	return &Listener{
		cfg:      cfg,
		bot:      bot,
		store:    store,
		engine:   engine,
		limiter:  limiter,
		replies:  replies,
		recovery: recoveryEngine,
		notifier: notifier,
		logger:   logger,
	}
}

// Run polls for updates until the context is cancelled. Each message is
// handled in its own goroutine so a slow reply does not stall the stream.
func (l *Listener) Run(ctx context.Context) error {
	updates, err := l.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        l.cfg.PollTimeout,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return fmt.Errorf("starting long polling: %w", err)
	}
	l.logger.Info("Telegram listener started", zap.Int("admins", len(l.cfg.AdminIDs)))

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				l.logger.Info("Telegram listener stopped")
				return nil
			}
			if update.Message == nil {
				continue
			}
			go l.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			l.logger.Info("Telegram listener stopped")
			return nil
		}
	}
}

func (l *Listener) handleMessage(ctx context.Context, msg *telego.Message) {
	if msg.From == nil || msg.Text == "" {
		return
	}
	senderID := msg.From.ID

	if l.isAdmin(senderID) {
		if strings.HasPrefix(msg.Text, "/") {
			l.handleCommand(ctx, msg)
		}
		return
	}

	if !l.limiter.Admit(senderID) {
		l.logger.Info("Rate limited", zap.Int64("sender", senderID))
		l.sendReply(ctx, msg, rateLimitWarning)
		return
	}
	l.limiter.Record(senderID)

	record := core.NewMessage(senderID, msg.Text, time.Now())
	id, err := l.store.SaveMessage(ctx, record)
	if err != nil {
		// Without a durable record there is nothing for recovery to pick
		// up, so score anyway and at least act on the verdict.
		l.logger.Error("Failed to persist message", zap.Int64("sender", senderID), zap.Error(err))
	}
	record.ID = id

	verdict := l.engine.Evaluate(ctx, senderID, msg.Text)
	if verdict.IsSpam {
		l.handleSpam(ctx, msg, record, verdict)
		return
	}
	l.handleLegitimate(ctx, msg, record, verdict)
}

func (l *Listener) handleSpam(ctx context.Context, msg *telego.Message, record *core.Message, verdict core.Verdict) {
	if err := l.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    telego.ChatID{ID: msg.Chat.ID},
		MessageID: msg.MessageID,
	}); err != nil {
		l.logger.Warn("Failed to delete spam message",
			zap.Int64("sender", record.SenderID),
			zap.Error(err))
	}

	annotation := fmt.Sprintf("removed by live moderation (score: %.1f)", verdict.Score)
	if record.ID != 0 {
		if err := l.store.MarkResolved(ctx, record.ID, true, annotation, verdict.Score); err != nil {
			l.logger.Error("Failed to mark spam", zap.Int64("message_id", record.ID), zap.Error(err))
		}
	}
	l.logger.Info("Spam removed",
		zap.Int64("sender", record.SenderID),
		zap.Float64("score", verdict.Score))

	if l.cfg.NotifyOnSpam && l.notifier != nil {
		preview := record.Body
		if utf8.RuneCountInString(preview) > 200 {
			preview = string([]rune(preview)[:200]) + "..."
		}
		summary := fmt.Sprintf("🚫 Удалён спам от пользователя %d (оценка %.1f):\n\n%s",
			record.SenderID, verdict.Score, preview)
		if err := l.notifier.Notify(ctx, summary); err != nil {
			l.logger.Warn("Failed to notify operators about spam", zap.Error(err))
		}
	}
}

func (l *Listener) handleLegitimate(ctx context.Context, msg *telego.Message, record *core.Message, verdict core.Verdict) {
	reply := fallbackReply
	if l.replies != nil {
		generated, err := l.replies.GenerateReply(ctx, record.Body, senderName(msg.From))
		switch {
		case err != nil:
			l.logger.Warn("Reply generation failed, using fallback",
				zap.Int64("sender", record.SenderID),
				zap.Error(err))
		case utf8.RuneCountInString(strings.TrimSpace(generated)) >= 3:
			reply = generated
		}
	}

	if !l.sendReply(ctx, msg, reply) {
		// Left unresolved on purpose: recovery will retry the answer.
		l.logger.Warn("Reply not sent, message left for recovery",
			zap.Int64("message_id", record.ID),
			zap.Int64("sender", record.SenderID))
		return
	}
	if record.ID != 0 {
		if err := l.store.MarkResolved(ctx, record.ID, false, reply, verdict.Score); err != nil {
			l.logger.Error("Failed to mark processed", zap.Int64("message_id", record.ID), zap.Error(err))
		}
	}
}

// handleCommand serves the operator commands /recover and /status.
func (l *Listener) handleCommand(ctx context.Context, msg *telego.Message) {
	parts := strings.Fields(msg.Text)
	cmd := parts[0]
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	switch cmd {
	case "/recover":
		l.commandRecover(ctx, msg, parts[1:])
	case "/status":
		l.commandStatus(ctx, msg)
	}
}

func (l *Listener) commandRecover(ctx context.Context, msg *telego.Message, args []string) {
	lookback := 24 * time.Hour
	if len(args) > 0 {
		hours, err := strconv.Atoi(args[0])
		if err != nil || hours <= 0 {
			l.sendReply(ctx, msg, "Использование: /recover [часы]")
			return
		}
		lookback = time.Duration(hours) * time.Hour
		if lookback > recovery.MaxLookback {
			lookback = recovery.MaxLookback
		}
	}
	if l.recovery.Running() {
		l.sendReply(ctx, msg, "Восстановление уже выполняется.")
		return
	}
	l.sendReply(ctx, msg, fmt.Sprintf("🔄 Запущено восстановление за последние %d ч.", int(lookback.Hours())))
	go l.recovery.Recover(ctx, lookback, core.TriggerForced)
}

func (l *Listener) commandStatus(ctx context.Context, msg *telego.Message) {
	status, err := l.recovery.GetStatus(ctx)
	if err != nil {
		l.logger.Error("Failed to build status", zap.Error(err))
		l.sendReply(ctx, msg, "Не удалось получить статус.")
		return
	}

	var b strings.Builder
	b.WriteString("📊 Статус бота\n\n")
	if status.Running {
		b.WriteString("• Восстановление: выполняется\n")
	} else {
		b.WriteString("• Восстановление: не активно\n")
	}
	fmt.Fprintf(&b, "• Необработанных за 24 ч: %d\n", status.Unresolved)
	fmt.Fprintf(&b, "• Запусков за неделю: %d\n", len(status.RecentRuns))
	if len(status.RecentRuns) > 0 {
		last := status.RecentRuns[0]
		fmt.Fprintf(&b, "\nПоследний запуск (%s):\n", last.Trigger)
		fmt.Fprintf(&b, "• Обработано: %d, спам: %d, ошибок: %d\n", last.Processed, last.Spam, last.Errors)
		fmt.Fprintf(&b, "• Длительность: %s\n", last.Duration.Round(time.Second))
	}
	l.sendReply(ctx, msg, b.String())
}

// sendReply answers in the message's chat; it reports whether the send
// succeeded.
func (l *Listener) sendReply(ctx context.Context, msg *telego.Message, text string) bool {
	_, err := l.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: msg.Chat.ID},
		Text:   text,
		ReplyParameters: &telego.ReplyParameters{
			MessageID: msg.MessageID,
		},
	})
	if err != nil {
		l.logger.Warn("Failed to send reply", zap.Int64("chat", msg.Chat.ID), zap.Error(err))
		return false
	}
	return true
}

func (l *Listener) isAdmin(senderID int64) bool {
	for _, id := range l.cfg.AdminIDs {
		if id == senderID {
			return true
		}
	}
	return false
}

func senderName(user *telego.User) string {
	if user.Username != "" {
		return user.Username
	}
	if user.FirstName != "" {
		return user.FirstName
	}
	return fmt.Sprintf("user_%d", user.ID)
}
