package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	"go.uber.org/zap"

	"github.com/maxtyrsa/mamaai/internal/core"
)

// Delivery sends replies to senders through the Telegram Bot API.
type Delivery struct {
	bot    *telego.Bot
	logger *zap.Logger
}

// NewDelivery creates a Telegram delivery channel.
func NewDelivery(bot *telego.Bot, logger *zap.Logger) *Delivery {
	return &Delivery{bot: bot, logger: logger}
}

// Deliver sends text to the sender's private chat. Telegram rejections for
// blocked bots or vanished chats are permanent; everything else is assumed
// transient and worth a retry.
func (d *Delivery) Deliver(ctx context.Context, senderID int64, text string) (core.DeliveryStatus, error) {
	_, err := d.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: senderID},
		Text:      text,
		ParseMode: telego.ModeMarkdown,
	})
	if err == nil {
		return core.Delivered, nil
	}

	var apiErr *telegoapi.Error
	if errors.As(err, &apiErr) {
		// 403: the user blocked the bot. 400: bad chat id, deleted account.
		if apiErr.ErrorCode == 403 || apiErr.ErrorCode == 400 {
			return core.PermanentFailure, err
		}
	}
	return core.TransientFailure, err
}

// Notifier fans operational summaries out to the configured operators.
type Notifier struct {
	bot      *telego.Bot
	adminIDs []int64
	logger   *zap.Logger
}

// NewNotifier creates a Telegram operator notifier.
func NewNotifier(bot *telego.Bot, adminIDs []int64, logger *zap.Logger) *Notifier {
	return &Notifier{bot: bot, adminIDs: adminIDs, logger: logger}
}

// Notify sends the summary to every operator. Individual failures are
// logged; Notify only errors when nobody could be reached.
func (n *Notifier) Notify(ctx context.Context, summary string) error {
	if len(n.adminIDs) == 0 {
		return nil
	}
	delivered := 0
	for _, adminID := range n.adminIDs {
		_, err := n.bot.SendMessage(ctx, &telego.SendMessageParams{
			ChatID: telego.ChatID{ID: adminID},
			Text:   summary,
		})
		if err != nil {
			n.logger.Warn("Failed to notify operator", zap.Int64("admin_id", adminID), zap.Error(err))
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return fmt.Errorf("summary not delivered to any of %d operators", len(n.adminIDs))
	}
	return nil
}
