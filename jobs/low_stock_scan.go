package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockledger/internal/analytics"
	jobmetrics "github.com/odyssey-erp/stockledger/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Summarizer produces the current inventory summary.
type Summarizer interface {
	Summarize(ctx context.Context) (analytics.Summary, error)
}

// LowStockScanJob logs every item at or below its reorder threshold and
// publishes the counts as gauges.
type LowStockScanJob struct {
	Analytics Summarizer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Timeout   time.Duration
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(summarizer Summarizer, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Analytics: summarizer, Logger: logger, Metrics: metrics, Timeout: 30 * time.Second}
}

// Handle processes low-stock scan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Analytics == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskLowStockScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	if payload.RequestedBy != "" {
		logger = logger.With(slog.String("requested_by", payload.RequestedBy))
	}

	scanCtx := ctx
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	summary, err := j.Analytics.Summarize(scanCtx)
	if err != nil {
		logger.Error("summarize inventory", slog.Any("error", err))
		return err
	}

	for _, item := range summary.LowStockItems {
		logger.Warn("item at or below reorder threshold",
			slog.String("item_id", item.ID),
			slog.String("name", item.Name),
			slog.Int64("quantity", item.Quantity),
			slog.Int64("reorder_threshold", item.ReorderThreshold),
		)
	}
	j.metrics().SetStockAlerts(len(summary.LowStockItems), len(summary.OutOfStockItems))
	logger.Info("completed low stock scan",
		slog.Int("items", summary.TotalItems),
		slog.Int("low_stock", len(summary.LowStockItems)),
		slog.Int("out_of_stock", len(summary.OutOfStockItems)),
	)
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskLowStockScan))
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
