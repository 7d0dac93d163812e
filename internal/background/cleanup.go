package background

import (
	"context"
	"log/slog"
	"time"
)

// ResetCleaner removes stale password reset rows.
type ResetCleaner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupManager periodically prunes expired password reset tokens. Used
// and expired rows are inert either way; pruning just keeps the table from
// growing without bound.
type CleanupManager struct {
	resetRepo ResetCleaner
	logger    *slog.Logger
	interval  time.Duration
	stopCh    chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(resetRepo ResetCleaner, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		resetRepo: resetRepo,
		logger:    logger,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic cleanup task. It runs once immediately and
// then on every tick until Stop or context cancellation.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.run(ctx)

	for {
		select {
		case <-ticker.C:
			cm.run(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) run(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	deleted, err := cm.resetRepo.DeleteExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to prune expired reset tokens", slog.Any("error", err))
		return
	}

	if deleted > 0 {
		cm.logger.Info("expired reset tokens pruned", slog.Int64("rows_deleted", deleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
