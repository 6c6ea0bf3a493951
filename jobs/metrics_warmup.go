package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/referrush/csdash/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const warmupTimeout = 20 * time.Second

// Warmer refills the success metrics cache.
type Warmer interface {
	Warm(ctx context.Context) error
}

// MetricsWarmupJob pre-populates the success metrics cache.
type MetricsWarmupJob struct {
	Warmer  Warmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewMetricsWarmupJob wires dependencies for the warmup handler.
func NewMetricsWarmupJob(warmer Warmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *MetricsWarmupJob {
	return &MetricsWarmupJob{
		Warmer:  warmer,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes metrics warmup tasks.
func (j *MetricsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Warmer == nil {
		return errors.New("metrics warmup: handler not configured")
	}
	var payload MetricsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Reason == "" {
		payload.Reason = ReasonManual
	}

	tracker := j.metrics().Track(TaskMetricsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	start := j.now()
	if !payload.RequestedAt.IsZero() {
		logger = logger.With(slog.Duration("queued_for", start.Sub(payload.RequestedAt)))
	}
	logger.Info("starting metrics warmup")

	warmCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()
	if err := j.Warmer.Warm(warmCtx); err != nil {
		resultErr = err
		logger.Error("warm success metrics", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed metrics warmup", slog.Duration("duration", j.now().Sub(start)))
	return resultErr
}

func (j *MetricsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskMetricsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskMetricsWarmup))
}

func (j *MetricsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *MetricsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
