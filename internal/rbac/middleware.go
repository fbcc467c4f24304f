package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/stockledger/internal/platform/httpx"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Headers carrying the caller identity from the upstream gateway.
const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorName = "X-Actor-Name"
	HeaderActorRole = "X-Actor-Role"
)

// Middleware wires identity and role guards for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// Identify loads the actor from request headers into the context. Requests
// without an actor id pass through anonymously; guards reject them later.
func (m Middleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := shared.Actor{
			ID:   strings.TrimSpace(r.Header.Get(HeaderActorID)),
			Name: strings.TrimSpace(r.Header.Get(HeaderActorName)),
			Role: normalizeRole(r.Header.Get(HeaderActorRole)),
		}
		if actor.Valid() {
			if actor.Name == "" {
				actor.Name = actor.ID
			}
			if actor.Role == "" {
				actor.Role = shared.RoleViewer
			}
			r = r.WithContext(shared.ContextWithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActor rejects anonymous requests.
func (m Middleware) RequireActor() func(http.Handler) http.Handler {
	return m.RequireAny()
}

// RequireAny ensures the current actor holds at least one of roles. With no
// roles it only requires an identified actor.
func (m Middleware) RequireAny(roles ...string) func(http.Handler) http.Handler {
	normalized := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if len(normalized) == 0 || hasAnyRole(actor.Role, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Debug("rbac denied",
					slog.String("actor_id", actor.ID),
					slog.String("role", actor.Role),
					slog.String("path", r.URL.Path),
				)
			}
			httpx.RespondError(w, httpx.ErrForbidden)
		})
	}
}

func normalizeRole(role string) string {
	return strings.TrimSpace(strings.ToLower(role))
}

func normalizeRoles(roles []string) []string {
	unique := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		r = normalizeRole(r)
		if r == "" {
			continue
		}
		unique[r] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for r := range unique {
		normalized = append(normalized, r)
	}
	return normalized
}

func hasAnyRole(granted string, required []string) bool {
	for _, r := range required {
		if r == granted {
			return true
		}
	}
	return false
}
