package analytichttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/odyssey-erp/stockledger/internal/analytics"
	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/platform/httpx"
	"github.com/odyssey-erp/stockledger/internal/rbac"
)

const requestTimeout = 2 * time.Second

// AnalyticsService defines the aggregation contract used by the handler.
type AnalyticsService interface {
	Summarize(ctx context.Context) (analytics.Summary, error)
	ActivityCounts(ctx context.Context, windowStart time.Time) (map[inventory.Kind]int, error)
	DailySeries(ctx context.Context, windowStart time.Time) ([]analytics.DailyPoint, error)
	Overview(ctx context.Context, now time.Time) (analytics.Overview, error)
}

// Handler serves the inventory analytics endpoints.
type Handler struct {
	logger  *slog.Logger
	service AnalyticsService
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service AnalyticsService, guard rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: guard, now: time.Now}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	overview, err := h.service.Overview(ctx, h.now())
	if err != nil {
		h.handleServerError(w, "overview", err)
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	summary, err := h.service.Summarize(ctx)
	if err != nil {
		h.handleServerError(w, "summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	since, ok := h.parseSince(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	counts, err := h.service.ActivityCounts(ctx, since)
	if err != nil {
		h.handleServerError(w, "activity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, counts)
}

func (h *Handler) handleDaily(w http.ResponseWriter, r *http.Request) {
	since, ok := h.parseSince(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	series, err := h.service.DailySeries(ctx, since)
	if err != nil {
		h.handleServerError(w, "daily", err)
		return
	}
	httpx.JSON(w, http.StatusOK, series)
}

// parseSince reads the optional window start. Missing means all time.
func (h *Handler) parseSince(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("since"))
	if raw == "" {
		return time.Time{}, true
	}
	since, err := inventory.ParseSince(raw)
	if err != nil {
		httpx.RespondError(w, err)
		return time.Time{}, false
	}
	return since, true
}

func (h *Handler) handleServerError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("analytics handler", slog.String("op", op), slog.Any("error", err))
	httpx.RespondError(w, err)
}
