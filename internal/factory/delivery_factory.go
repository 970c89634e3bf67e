package factory

import (
	"fmt"

	"github.com/mymmrac/telego"
	"go.uber.org/zap"

	"github.com/maxtyrsa/mamaai/internal/adapters/console"
	tgadapter "github.com/maxtyrsa/mamaai/internal/adapters/telegram"
	"github.com/maxtyrsa/mamaai/internal/config"
	"github.com/maxtyrsa/mamaai/internal/core"
)

// DeliveryFactory creates the outbound adapters
type DeliveryFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewDeliveryFactory creates a new delivery factory
func NewDeliveryFactory(cfg *config.Config, logger *zap.Logger) *DeliveryFactory {
	return &DeliveryFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateDelivery creates a delivery channel based on the configuration.
// bot may be nil for the console type.
func (f *DeliveryFactory) CreateDelivery(bot *telego.Bot) (core.DeliveryChannel, error) {
	switch f.cfg.GetString("delivery.type") {
	case "telegram":
		if bot == nil {
			return nil, fmt.Errorf("telegram delivery requires a bot instance")
		}
		return tgadapter.NewDelivery(bot, f.logger), nil
	case "console":
		return console.NewDelivery(f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported delivery type: %s", f.cfg.GetString("delivery.type"))
	}
}

// CreateNotifier creates the operator notifier matching the delivery type.
func (f *DeliveryFactory) CreateNotifier(bot *telego.Bot) (core.Notifier, error) {
	switch f.cfg.GetString("delivery.type") {
	case "telegram":
		if bot == nil {
			return nil, fmt.Errorf("telegram notifier requires a bot instance")
		}
		return tgadapter.NewNotifier(bot, f.cfg.GetTelegram().AdminIDs, f.logger), nil
	case "console":
		return console.NewNotifier(f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported delivery type: %s", f.cfg.GetString("delivery.type"))
	}
}
