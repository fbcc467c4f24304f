package shared

import (
	"context"
	"strings"
)

// Role names understood by the RBAC guards.
const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleViewer = "viewer"
)

// Actor is the caller identity supplied by the upstream identity collaborator.
// It is trusted as given.
type Actor struct {
	ID   string
	Name string
	Role string
}

// Valid reports whether the actor carries an identity.
func (a Actor) Valid() bool {
	return strings.TrimSpace(a.ID) != ""
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok || !actor.Valid() {
		return Actor{}, false
	}
	return actor, true
}
