package recovery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/maxtyrsa/mamaai/internal/core"
)

// MonitorConfig carries the watchdog policy.
type MonitorConfig struct {
	// Interval between checks.
	Interval time.Duration
	// Window is how far back unresolved messages are counted.
	Window time.Duration
	// Threshold is the unresolved count above which recovery is triggered.
	Threshold int
}

// DefaultMonitorConfig returns the tuned defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:  10 * time.Minute,
		Window:    time.Hour,
		Threshold: 5,
	}
}

// Monitor is a watchdog over the unresolved backlog: when messages pile up
// without reaching a terminal disposition it triggers a recovery pass
// without operator intervention. Pure policy, no state of its own.
type Monitor struct {
	cfg    MonitorConfig
	store  core.MessageStore
	engine *Engine
	logger *zap.Logger
}

// NewMonitor creates the watchdog.
func NewMonitor(cfg MonitorConfig, store core.MessageStore, engine *Engine, logger *zap.Logger) *Monitor {
	return &Monitor{cfg: cfg, store: store, engine: engine, logger: logger}
}

// Run loops until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("Unprocessed-message monitor started",
		zap.Duration("interval", m.cfg.Interval),
		zap.Int("threshold", m.cfg.Threshold))
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check(ctx)
		case <-ctx.Done():
			m.logger.Info("Unprocessed-message monitor stopped")
			return
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	count, err := m.store.CountUnresolved(ctx, time.Now().Add(-m.cfg.Window))
	if err != nil {
		m.logger.Error("Failed to count unresolved messages", zap.Error(err))
		return
	}
	if count <= m.cfg.Threshold {
		return
	}
	if m.engine.Running() {
		m.logger.Debug("Backlog above threshold but recovery already running", zap.Int("unresolved", count))
		return
	}
	m.logger.Warn("Unresolved backlog above threshold, triggering recovery",
		zap.Int("unresolved", count),
		zap.Int("threshold", m.cfg.Threshold))
	m.engine.Recover(ctx, m.cfg.Window, core.TriggerPeriodic)
}
