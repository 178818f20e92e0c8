package activity

import (
	"cmp"
	"context"
	"slices"
	"strings"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "plotopts"

// Config is the activity section of the configuration file. An empty Verbs
// list emits every verb.
type Config struct {
	Enabled bool     `mapstructure:"enabled"`
	Channel string   `mapstructure:"channel"`
	Verbs   []string `mapstructure:"verbs"`
}

// Emitter stamps events with the configured channel and the context actor
// before handing them to hooks.
type Emitter struct {
	hooks   Hooks
	channel string
	verbs   []string
}

// NewEmitter returns an emitter over hooks. It is disabled when cfg is
// disabled or no hook remains.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	if !cfg.Enabled {
		return &Emitter{}
	}
	verbs := make([]string, 0, len(cfg.Verbs))
	for _, verb := range cfg.Verbs {
		if verb = strings.TrimSpace(verb); verb != "" {
			verbs = append(verbs, verb)
		}
	}
	return &Emitter{
		hooks:   CloneHooks(hooks),
		channel: cmp.Or(strings.TrimSpace(cfg.Channel), DefaultChannel),
		verbs:   verbs,
	}
}

// Enabled reports whether Emit reaches any hook.
func (e *Emitter) Enabled() bool {
	return e != nil && len(e.hooks) > 0
}

// Emits reports whether events with verb are forwarded.
func (e *Emitter) Emits(verb string) bool {
	return e.Enabled() && (len(e.verbs) == 0 || slices.Contains(e.verbs, verb))
}

// Emit forwards event. Fields the event leaves empty are taken from the
// channel setting and the actor stored in ctx.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Emits(strings.TrimSpace(event.Verb)) {
		return nil
	}
	event.Channel = cmp.Or(strings.TrimSpace(event.Channel), e.channel)
	if actor, ok := ActorFromContext(ctx); ok {
		event.ActorID = cmp.Or(event.ActorID, actor.ID)
		event.UserID = cmp.Or(event.UserID, actor.UserID)
		event.TenantID = cmp.Or(event.TenantID, actor.TenantID)
	}
	return e.hooks.Notify(ctx, event)
}
