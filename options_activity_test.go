package opts

import (
	"context"
	"testing"

	"github.com/goliatone/go-plotopts/pkg/activity"
)

func TestWithActivityHooksClonesAndFiltersNil(t *testing.T) {
	hook := activity.HookFunc(func(context.Context, activity.Event) error { return nil })

	engine := NewEngine(WithActivityHooks(activity.Hooks{nil, hook}))
	hooks := engine.ActivityHooks()
	if len(hooks) != 1 {
		t.Fatalf("expected 1 hook, got %d", len(hooks))
	}

	// Mutate returned slice and ensure original configuration is unaffected.
	hooks[0] = nil
	again := engine.ActivityHooks()
	if len(again) != 1 || again[0] == nil {
		t.Fatalf("expected cloned hooks unaffected by mutation, got %+v", again)
	}
}

func TestActivityHooksDefaultNil(t *testing.T) {
	engine := NewEngine()
	if hooks := engine.ActivityHooks(); hooks != nil {
		t.Fatalf("expected nil hooks by default, got %+v", hooks)
	}
}

func TestActivityDisabledByConfig(t *testing.T) {
	capture := &activity.CaptureHook{}
	engine := NewEngine(
		WithActivityHooks(activity.Hooks{capture}),
		WithActivityConfig(activity.Config{Enabled: false}),
	)
	for _, spec := range fixtureSpecs(t) {
		if err := engine.LoadBackend(context.Background(), spec); err != nil {
			t.Fatalf("load %s: %v", spec.Name, err)
		}
	}
	if verbs := capture.Verbs(); len(verbs) != 0 {
		t.Fatalf("expected no events when disabled, got %v", verbs)
	}
}

func TestActivityEventsCarryActor(t *testing.T) {
	capture := &activity.CaptureHook{}
	engine := NewEngine(WithActivityHooks(activity.Hooks{capture}))
	ctx := activity.WithActor(context.Background(), activity.Actor{ID: "notebook-1", UserID: "u-1"})

	spec := fixtureSpecs(t)[0]
	if err := engine.LoadBackend(ctx, spec); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := engine.UnloadBackend(ctx, spec.Name); err != nil {
		t.Fatalf("unload: %v", err)
	}

	events := capture.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Verb != activity.VerbBackendLoaded || events[1].Verb != activity.VerbBackendUnloaded {
		t.Fatalf("unexpected verbs %v", capture.Verbs())
	}
	for _, event := range events {
		if event.ActorID != "notebook-1" || event.UserID != "u-1" {
			t.Fatalf("expected actor on event, got %+v", event)
		}
		if event.Channel != activity.DefaultChannel || event.ObjectID != spec.Name {
			t.Fatalf("unexpected event %+v", event)
		}
	}
}
