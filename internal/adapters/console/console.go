// Package console provides log-only outbound adapters, used by the CLI and
// for dry runs where no Telegram credentials are configured.
package console

import (
	"context"

	"go.uber.org/zap"

	"github.com/maxtyrsa/mamaai/internal/core"
)

// Delivery logs outbound replies instead of sending them.
type Delivery struct {
	logger *zap.Logger
}

func NewDelivery(logger *zap.Logger) *Delivery {
	return &Delivery{logger: logger}
}

func (d *Delivery) Deliver(_ context.Context, senderID int64, text string) (core.DeliveryStatus, error) {
	d.logger.Info("Reply (console delivery)",
		zap.Int64("sender", senderID),
		zap.String("text", text))
	return core.Delivered, nil
}

// Notifier logs operator summaries instead of sending them.
type Notifier struct {
	logger *zap.Logger
}

func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{logger: logger}
}

func (n *Notifier) Notify(_ context.Context, summary string) error {
	n.logger.Info("Operator summary (console notifier)", zap.String("summary", summary))
	return nil
}
