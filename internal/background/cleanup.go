package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper is implemented by every security store that holds expiring state
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// SweepFunc adapts a plain function to Sweeper
type SweepFunc func(ctx context.Context) (int64, error)

func (f SweepFunc) Sweep(ctx context.Context) (int64, error) { return f(ctx) }

type namedSweeper struct {
	name    string
	sweeper Sweeper
}

// CleanupManager periodically evicts expired CSRF tokens, lapsed login attempt
// windows and stale rate limit entries. Nothing runs until Start is called.
type CleanupManager struct {
	sweepers []namedSweeper
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(logger *slog.Logger, interval time.Duration) *CleanupManager {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CleanupManager{
		logger:   logger,
		interval: interval,
		timeout:  30 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Register adds a sweeper. It must be called before Start.
func (cm *CleanupManager) Register(name string, s Sweeper) {
	cm.sweepers = append(cm.sweepers, namedSweeper{name: name, sweeper: s})
}

// Start begins the periodic cleanup task and blocks until Stop is called or
// ctx is cancelled.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.logger.Info("cleanup manager started",
		slog.String("interval", cm.interval.String()),
		slog.Int("sweepers", len(cm.sweepers)),
	)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce runs every registered sweeper once. A failing sweeper is logged and
// does not stop the others.
func (cm *CleanupManager) RunOnce(ctx context.Context) map[string]int64 {
	removed := make(map[string]int64, len(cm.sweepers))

	for _, ns := range cm.sweepers {
		sweepCtx, cancel := context.WithTimeout(ctx, cm.timeout)
		n, err := ns.sweeper.Sweep(sweepCtx)
		cancel()

		if err != nil {
			cm.logger.Error("security store sweep failed",
				slog.String("store", ns.name),
				slog.Any("error", err))
			continue
		}

		removed[ns.name] = n
		if n > 0 {
			cm.logger.Info("security store sweep completed",
				slog.String("store", ns.name),
				slog.Int64("removed", n))
		}
	}

	return removed
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
