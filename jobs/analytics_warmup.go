package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockledger/internal/analytics"
	jobmetrics "github.com/odyssey-erp/stockledger/internal/jobs"
)

// OverviewBuilder produces the analytics overview, populating its cache.
type OverviewBuilder interface {
	Overview(ctx context.Context, now time.Time) (analytics.Overview, error)
}

// AnalyticsWarmupJob pre-populates the analytics overview cache.
type AnalyticsWarmupJob struct {
	Analytics OverviewBuilder
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewAnalyticsWarmupJob wires dependencies for the warmup handler.
func NewAnalyticsWarmupJob(builder OverviewBuilder, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnalyticsWarmupJob {
	return &AnalyticsWarmupJob{
		Analytics: builder,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes analytics warmup tasks.
func (j *AnalyticsWarmupJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Analytics == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskAnalyticsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := slog.Default()
	if j.Logger != nil {
		logger = j.Logger
	}
	logger = logger.With(slog.String("job", TaskAnalyticsWarmup))

	warmCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := j.clock()
	overview, err := j.Analytics.Overview(warmCtx, start)
	if err != nil {
		logger.Error("warm overview", slog.Any("error", err))
		return err
	}
	logger.Info("completed analytics warmup",
		slog.Int("items", overview.Summary.TotalItems),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}
