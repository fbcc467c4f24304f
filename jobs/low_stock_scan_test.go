package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/analytics"
	"github.com/odyssey-erp/stockledger/internal/inventory"
	jobmetrics "github.com/odyssey-erp/stockledger/internal/jobs"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

type stubSummarizer struct {
	summary analytics.Summary
	err     error
}

func (s stubSummarizer) Summarize(ctx context.Context) (analytics.Summary, error) {
	return s.summary, s.err
}

func seriesCount(t *testing.T, registry *prometheus.Registry, name string) int {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return len(mf.GetMetric())
		}
	}
	return 0
}

func TestLowStockScanPublishesCounts(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	job := NewLowStockScanJob(stubSummarizer{summary: analytics.Summary{
		TotalItems:      3,
		LowStockItems:   []analytics.StockItem{{ID: "a", Quantity: 0}, {ID: "b", Quantity: 4, ReorderThreshold: 5}},
		OutOfStockItems: []analytics.StockItem{{ID: "a"}},
	}}, nil, metrics)

	task, err := NewLowStockScanTask("ops", time.Now())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	families, err := registry.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if g := m.GetGauge(); g != nil {
				values[mf.GetName()] = g.GetValue()
			}
		}
	}
	require.Equal(t, 2.0, values["stockledger_low_stock_items"])
	require.Equal(t, 1.0, values["stockledger_out_of_stock_items"])

	require.Equal(t, 1, seriesCount(t, registry, "stockledger_jobs_total"))
}

func TestLowStockScanReportsFailure(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	boom := errors.New("store offline")
	job := NewLowStockScanJob(stubSummarizer{err: boom}, nil, metrics)

	err := job.Handle(context.Background(), asynq.NewTask(TaskLowStockScan, nil))
	require.ErrorIs(t, err, boom)

	require.Equal(t, 1, seriesCount(t, registry, "stockledger_jobs_failures_total"))
}

func TestLowStockScanSkipsMalformedPayload(t *testing.T) {
	job := NewLowStockScanJob(stubSummarizer{}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	err := job.Handle(context.Background(), asynq.NewTask(TaskLowStockScan, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestLowStockScanAgainstMemoryStore(t *testing.T) {
	store := inventory.NewMemoryStore()
	svc := inventory.NewService(inventory.ServiceDeps{Items: store, Ledger: store}, inventory.ServiceConfig{})
	ctx := context.Background()
	for _, q := range []int64{5, 0, 30} {
		qty := q
		_, err := svc.Create(ctx, inventory.ItemInput{Name: "item", Quantity: &qty, ReorderThreshold: 10}, shared.Actor{ID: "seed", Name: "Seeder", Role: shared.RoleAdmin})
		require.NoError(t, err)
	}

	registry := prometheus.NewRegistry()
	job := NewLowStockScanJob(analytics.NewService(store, store, nil, nil), nil, jobmetrics.NewMetrics(registry))
	require.NoError(t, job.Handle(ctx, asynq.NewTask(TaskLowStockScan, nil)))
}

type stubOverview struct {
	calls int
}

func (s *stubOverview) Overview(ctx context.Context, now time.Time) (analytics.Overview, error) {
	s.calls++
	return analytics.Overview{GeneratedAt: now}, nil
}

func TestAnalyticsWarmupBuildsOverview(t *testing.T) {
	builder := &stubOverview{}
	job := NewAnalyticsWarmupJob(builder, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewAnalyticsWarmupTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, builder.calls)
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, QueueDefault, body["queue"])
}
