package dispatch

import (
	"context"

	"github.com/keshon/rickbot/internal/permission"
)

type callerKey struct{}

// WithCaller attaches the invoking actor's membership lookup to ctx.
func WithCaller(ctx context.Context, m MembershipFunc) context.Context {
	if m == nil {
		return ctx
	}
	return context.WithValue(ctx, callerKey{}, m)
}

// Caller resolves the invoking actor from ctx. Without a membership lookup
// (direct messages, console without a server) only the ID is known.
func Caller(ctx context.Context, actorID, serverID string) (permission.Actor, error) {
	m, ok := ctx.Value(callerKey{}).(MembershipFunc)
	if !ok {
		return permission.Actor{ID: actorID, ServerID: serverID}, nil
	}
	actor, err := m(ctx)
	if err != nil {
		return permission.Actor{}, err
	}
	if actor.ID == "" {
		actor.ID = actorID
	}
	if actor.ServerID == "" {
		actor.ServerID = serverID
	}
	return actor, nil
}
