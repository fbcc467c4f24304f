package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan reports items at or below their reorder threshold.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskAnalyticsWarmup pre-computes the cached analytics overview.
	TaskAnalyticsWarmup = "analytics:overview_warmup"
)

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewLowStockScanTask constructs an Asynq task for the low-stock scan.
func NewLowStockScanTask(requestedBy string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{RequestedBy: requestedBy, RequestedAt: at.UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// AnalyticsWarmupPayload carries scheduling metadata.
type AnalyticsWarmupPayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// NewAnalyticsWarmupTask constructs an Asynq task for the overview warmup.
func NewAnalyticsWarmupTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(AnalyticsWarmupPayload{RequestedAt: at.UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsWarmup, body, asynq.Queue(QueueDefault)), nil
}
