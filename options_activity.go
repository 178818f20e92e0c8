package opts

import (
	"context"
	"log/slog"

	"github.com/goliatone/go-plotopts/pkg/activity"
)

// WithActivityHooks attaches activity hooks notified on option application,
// defaults and backend changes. Nil entries are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := activity.CloneHooks(hooks)
	return func(cfg *engineConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityConfig overrides the emission settings. Emission is enabled by
// default whenever hooks are attached.
func WithActivityConfig(config activity.Config) Option {
	return func(cfg *engineConfig) {
		cfg.activityConfig = config
	}
}

// ActivityHooks returns a copy of the configured activity hooks.
func (e *Engine) ActivityHooks() activity.Hooks {
	if e == nil {
		return nil
	}
	return activity.CloneHooks(e.cfg.activityHooks)
}

func (e *Engine) eventInput(ctx context.Context, input activity.OptionsEventInput) activity.OptionsEventInput {
	if actor, ok := activity.ActorFromContext(ctx); ok {
		input.ActorID = actor.ID
		input.UserID = actor.UserID
		input.TenantID = actor.TenantID
	}
	return input
}

// emit never fails the calling operation; hook errors are logged.
func (e *Engine) emit(ctx context.Context, event activity.Event) {
	if err := e.emitter.Emit(ctx, event); err != nil {
		e.logger().Warn("opts: activity hook failed",
			slog.String("verb", event.Verb),
			slog.String("object_id", event.ObjectID),
			slog.Any("error", err),
		)
	}
}
