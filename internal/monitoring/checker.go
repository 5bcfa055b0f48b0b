package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/profile-cli/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker periodically collects a health snapshot and raises alerts.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	mu   sync.Mutex
	last *Snapshot
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{collector: collector, alerter: alerter, cfg: cfg}
}

func (c *Checker) interval() time.Duration {
	if d := time.Duration(c.cfg.CheckIntervalSecs) * time.Second; d > 0 {
		return d
	}
	return defaultCheckInterval
}

// Run checks once immediately and then on every tick until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := c.interval()
	zap.L().Info("monitoring: checker started",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() == nil {
			c.Check(ctx)
		}
		select {
		case <-ctx.Done():
			zap.L().Info("monitoring: checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check runs one collect, evaluate and send cycle. It returns the alerts
// raised, including ones suppressed by the cooldown.
func (c *Checker) Check(ctx context.Context) []Alert {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		zap.L().Error("monitoring: collect snapshot", zap.Error(err))
		return nil
	}

	c.mu.Lock()
	c.last = snap
	c.mu.Unlock()

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		zap.L().Debug("monitoring: healthy",
			zap.Int("analyses", snap.Total),
			zap.Int("in_flight", snap.InFlight),
		)
		return nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	zap.L().Info("monitoring: alerts raised",
		zap.Int("raised", len(alerts)),
		zap.Int("sent", sent),
		zap.Float64("failure_rate", snap.FailureRate),
		zap.Int("stale", snap.Stale),
	)
	return alerts
}

// Last returns the most recent snapshot, or nil before the first check.
func (c *Checker) Last() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
