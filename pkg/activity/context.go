package activity

import "context"

// Actor identifies who triggered an options change.
type Actor struct {
	ID       string
	UserID   string
	TenantID string
}

type actorKey struct{}

// WithActor returns a context carrying actor for later event attribution.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
