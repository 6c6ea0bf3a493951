package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// CacheBumper invalidates cached success metrics.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// WarmupEnqueuer schedules a metrics warmup.
type WarmupEnqueuer interface {
	EnqueueWarmup(ctx context.Context, reason string) (*asynq.TaskInfo, error)
}

// WarmupInvalidator bumps the metrics cache after a write and asks the worker
// to refill it. A failed enqueue is logged; the next page load refills the cache
// anyway.
type WarmupInvalidator struct {
	cache    CacheBumper
	enqueuer WarmupEnqueuer
	logger   *slog.Logger
}

// NewWarmupInvalidator wires the invalidator. enqueuer may be nil.
func NewWarmupInvalidator(cache CacheBumper, enqueuer WarmupEnqueuer, logger *slog.Logger) *WarmupInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &WarmupInvalidator{cache: cache, enqueuer: enqueuer, logger: logger}
}

// Invalidate bumps the cache version and enqueues a warmup.
func (i *WarmupInvalidator) Invalidate(ctx context.Context) error {
	if i == nil {
		return nil
	}
	if i.cache != nil {
		if err := i.cache.Bump(ctx); err != nil {
			return err
		}
	}
	if i.enqueuer == nil {
		return nil
	}
	if _, err := i.enqueuer.EnqueueWarmup(ctx, ReasonWrite); err != nil {
		i.logger.Warn("enqueue metrics warmup", slog.Any("error", err))
	}
	return nil
}
