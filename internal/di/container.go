package di

import (
	"fmt"

	"github.com/mymmrac/telego"
	"go.uber.org/dig"
	"go.uber.org/zap"

	tgadapter "github.com/maxtyrsa/mamaai/internal/adapters/telegram"
	"github.com/maxtyrsa/mamaai/internal/config"
	"github.com/maxtyrsa/mamaai/internal/core"
	"github.com/maxtyrsa/mamaai/internal/factory"
	"github.com/maxtyrsa/mamaai/internal/logging"
	"github.com/maxtyrsa/mamaai/internal/recovery"
	"github.com/maxtyrsa/mamaai/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewDeliveryFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register LLM client and the ports it backs
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(llm core.LLMClient) core.Classifier {
		if llm == nil {
			return nil
		}
		return llm
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(llm core.LLMClient) core.ReplyGenerator {
		if llm == nil {
			return nil
		}
		return llm
	}); err != nil {
		return nil, err
	}

	// Register store and its narrower ports
	if err := container.Provide(func(f *factory.StoreFactory) (core.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s core.Store) core.MessageStore { return s }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s core.Store) core.TrustRepository { return s }); err != nil {
		return nil, err
	}

	// Register Telegram bot; nil when the console delivery is configured
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*telego.Bot, error) {
		if cfg.GetString("delivery.type") != "telegram" {
			return nil, nil
		}
		tgCfg := cfg.GetTelegram()
		if tgCfg.Token == "" {
			return nil, fmt.Errorf("telegram.token is required for telegram delivery")
		}
		return telego.NewBot(tgCfg.Token, telego.WithDefaultLogger(false, true))
	}); err != nil {
		return nil, err
	}

	// Register outbound adapters
	if err := container.Provide(func(f *factory.DeliveryFactory, bot *telego.Bot) (core.DeliveryChannel, error) {
		return f.CreateDelivery(bot)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.DeliveryFactory, bot *telego.Bot) (core.Notifier, error) {
		return f.CreateNotifier(bot)
	}); err != nil {
		return nil, err
	}

	// Register scoring components
	if err := container.Provide(core.NewPatternScorer); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewTrustService); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) core.EngineConfig {
		return cfg.GetEngine()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewModerationEngine); err != nil {
		return nil, err
	}

	// Register rate limiter
	if err := container.Provide(func(cfg *config.Config) *core.RateLimiter {
		return core.NewRateLimiter(cfg.GetRateLimitWindow(), cfg.GetInt("ratelimit.max_messages"))
	}); err != nil {
		return nil, err
	}

	// Register recovery engine and monitor
	if err := container.Provide(func(cfg *config.Config) recovery.Config {
		return cfg.GetRecovery()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(engine *core.ModerationEngine) recovery.Moderator {
		return engine
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(recovery.NewEngine); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) recovery.MonitorConfig {
		return cfg.GetMonitor()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(recovery.NewMonitor); err != nil {
		return nil, err
	}

	// Register the live listener; nil when no Telegram bot is configured
	if err := container.Provide(func(
		cfg *config.Config,
		bot *telego.Bot,
		store core.MessageStore,
		engine *core.ModerationEngine,
		limiter *core.RateLimiter,
		replies core.ReplyGenerator,
		recoveryEngine *recovery.Engine,
		notifier core.Notifier,
		logger *zap.Logger,
	) *tgadapter.Listener {
		if bot == nil {
			return nil
		}
		tgCfg := cfg.GetTelegram()
		return tgadapter.NewListener(
			tgadapter.ListenerConfig{
				AdminIDs:     tgCfg.AdminIDs,
				NotifyOnSpam: tgCfg.NotifyOnSpam,
				PollTimeout:  tgCfg.PollTimeout,
			},
			bot, store, engine, limiter, replies, recoveryEngine, notifier, logger,
		)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
