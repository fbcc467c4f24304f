package inventory

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockledger/internal/platform/httpx"
	"github.com/odyssey-erp/stockledger/internal/rbac"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// IdempotencyKeyHeader lets clients make mutations safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

const idempotencyModule = "inventory"

// Idempotency guards replayed mutation requests.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Handler exposes the inventory JSON API.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	rbac        rbac.Middleware
	idempotency Idempotency
}

// NewHandler constructs the inventory HTTP handler. idempotency may be nil.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware, idempotency Idempotency) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: guard, idempotency: idempotency}
}

// MountRoutes registers inventory routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireActor())
			r.Get("/", h.handleList)
			r.Get("/history", h.handleHistory)
			r.Get("/history/{id}", h.handleItemHistory)
			r.Get("/{id}", h.handleGet)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(shared.RoleStaff, shared.RoleAdmin))
			r.Post("/", h.handleCreate)
			r.Put("/{id}", h.handleUpdate)
			r.Post("/{id}/adjust", h.handleAdjust)
			r.Delete("/{id}", h.handleDelete)
		})
	})
}

type adjustRequest struct {
	Delta *int64 `json:"delta"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseLedgerFilter(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var entries []LedgerEntry
	if filter == (LedgerFilter{}) {
		entries, err = h.service.ListHistory(r.Context(), "")
	} else {
		entries, err = h.service.ListLedger(r.Context(), filter)
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleItemHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input ItemInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.respondError(w, r, &ValidationError{Reason: "malformed JSON body"})
		return
	}
	h.idempotent(w, r, func(ctx context.Context, actor shared.Actor) (int, any, error) {
		item, err := h.service.Create(ctx, input, actor)
		return http.StatusCreated, item, err
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch ItemPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		h.respondError(w, r, &ValidationError{Reason: "malformed JSON body"})
		return
	}
	id := chi.URLParam(r, "id")
	h.idempotent(w, r, func(ctx context.Context, actor shared.Actor) (int, any, error) {
		item, err := h.service.Mutate(ctx, id, patch, actor)
		return http.StatusOK, item, err
	})
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, r, &ValidationError{Reason: "malformed JSON body"})
		return
	}
	if req.Delta == nil {
		h.respondError(w, r, &ValidationError{Field: "delta", Reason: "is required"})
		return
	}
	id := chi.URLParam(r, "id")
	h.idempotent(w, r, func(ctx context.Context, actor shared.Actor) (int, any, error) {
		item, err := h.service.AdjustBy(ctx, id, *req.Delta, actor)
		return http.StatusOK, item, err
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.idempotent(w, r, func(ctx context.Context, actor shared.Actor) (int, any, error) {
		if err := h.service.Delete(ctx, id, actor); err != nil {
			return 0, nil, err
		}
		return http.StatusNoContent, nil, nil
	})
}

// idempotent runs op once per Idempotency-Key. The key is released when op
// fails so the client may retry.
func (h *Handler) idempotent(w http.ResponseWriter, r *http.Request, op func(context.Context, shared.Actor) (int, any, error)) {
	ctx := r.Context()
	actor, _ := shared.ActorFromContext(ctx)
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			h.respondError(w, r, err)
			return
		}
	}

	status, body, err := op(ctx, actor)
	if err != nil {
		if key != "" && h.idempotency != nil {
			if delErr := h.idempotency.Delete(context.WithoutCancel(ctx), key, idempotencyModule); delErr != nil {
				h.logger.Warn("inventory: release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		h.respondError(w, r, err)
		return
	}
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	httpx.JSON(w, status, body)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if status := httpx.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error("inventory request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Any("error", err),
		)
	}
	httpx.RespondError(w, err)
}

func parseLedgerFilter(r *http.Request) (LedgerFilter, error) {
	var filter LedgerFilter
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return LedgerFilter{}, &ValidationError{Field: "limit", Reason: "must be a non-negative integer"}
		}
		filter.Limit = limit
	}
	if raw := strings.TrimSpace(q.Get("since")); raw != "" {
		since, err := ParseSince(raw)
		if err != nil {
			return LedgerFilter{}, err
		}
		filter.Since = since
	}
	return filter, nil
}

// ParseSince accepts RFC3339 timestamps or YYYY-MM-DD dates (UTC midnight).
func ParseSince(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, &ValidationError{Field: "since", Reason: "must be RFC3339 or YYYY-MM-DD"}
}
