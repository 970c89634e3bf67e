package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	tgadapter "github.com/maxtyrsa/mamaai/internal/adapters/telegram"
	"github.com/maxtyrsa/mamaai/internal/config"
	"github.com/maxtyrsa/mamaai/internal/core"
	"github.com/maxtyrsa/mamaai/internal/di"
	"github.com/maxtyrsa/mamaai/internal/recovery"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	cfg *config.Config,
	store core.Store,
	trust *core.TrustService,
	llmClient core.LLMClient,
	recoveryEngine *recovery.Engine,
	monitor *recovery.Monitor,
	listener *tgadapter.Listener,
) error {
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Warm the trust cache before any message is scored
	if err := trust.Hydrate(ctx); err != nil {
		logger.Error("Failed to hydrate trust states", zap.Error(err))
	}

	flushInterval := 5 * time.Minute
	if d, err := cfg.GetDuration("trust.flush_interval"); err == nil {
		flushInterval = d
	}
	go trust.RunFlusher(ctx, flushInterval)

	// Catch up on whatever the previous process left unfinished
	startupLookback := 24 * time.Hour
	if d, err := cfg.GetDuration("recovery.startup_lookback"); err == nil {
		startupLookback = d
	}
	go recoveryEngine.Recover(ctx, startupLookback, core.TriggerStartup)

	periodicInterval := 6 * time.Hour
	if d, err := cfg.GetDuration("recovery.periodic_interval"); err == nil {
		periodicInterval = d
	}
	go recoveryEngine.RunPeriodic(ctx, periodicInterval)
	go monitor.Run(ctx)

	if listener != nil {
		go func() {
			if err := listener.Run(ctx); err != nil {
				logger.Error("Listener stopped with error", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("No Telegram listener configured, running recovery and monitor only")
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")
	cancel()

	// Persist whatever trust state is still dirty
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if err := trust.Flush(flushCtx); err != nil {
		logger.Error("Failed to flush trust states", zap.Error(err))
	}

	// Close any resources that need closing
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("Failed to close store", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
