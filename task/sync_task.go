package task

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// SyncTimeout bounds one sync run. Huawei calls are throttled to one per 30 seconds.
const SyncTimeout = 30 * time.Minute

type SyncRunner interface {
	Run(ctx context.Context) (Summary, error)
}

func NewSyncTask(logger *slog.Logger, syncer SyncRunner) func() {
	return func() {
		logger.Debug("running sync task...")

		ctx, cancel := context.WithTimeout(context.Background(), SyncTimeout)
		defer cancel()

		summary, err := syncer.Run(ctx)
		if errors.Is(err, ErrSyncTooSoon) {
			logger.Info("sync task skipped, previous run too recent")
			return
		}
		if err != nil {
			logger.Error("sync task error", slog.Any("error", err))
			return
		}

		logger.Info("sync task done", slog.Int("integrations", len(summary.Results)))
	}
}
