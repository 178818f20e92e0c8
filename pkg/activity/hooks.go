// Package activity fans options lifecycle events out to audit hooks.
package activity

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Event is one options lifecycle occurrence: options attached to an element,
// defaults stored, or a backend loaded or unloaded. Ids are plain strings so
// callers are free to use uuids, option ids or backend names.
type Event struct {
	Verb       string
	ActorID    string
	UserID     string
	TenantID   string
	ObjectType string
	ObjectID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Complete reports whether the event names a verb and an object.
func (e Event) Complete() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// NormalizeEvent returns event with trimmed ids, its own metadata map and a
// timestamp.
func NormalizeEvent(event Event) Event {
	for _, field := range []*string{
		&event.Verb, &event.ActorID, &event.UserID, &event.TenantID,
		&event.ObjectType, &event.ObjectID, &event.Channel,
	} {
		*field = strings.TrimSpace(*field)
	}
	event.Metadata = cloneMap(event.Metadata)
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	return event
}

// ActivityHook receives normalized events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify calls fn.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// HookError reports the hook at Index failing on Verb.
type HookError struct {
	Index int
	Verb  string
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("activity: hook %d on %s: %v", e.Index, e.Verb, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// Hooks is an ordered list of hooks notified in turn.
type Hooks []ActivityHook

// CloneHooks copies hooks without nil entries. It returns nil when nothing
// remains.
func CloneHooks(hooks Hooks) Hooks {
	kept := slices.DeleteFunc(slices.Clone(hooks), func(hook ActivityHook) bool { return hook == nil })
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// Notify normalizes event and hands it to every hook. Incomplete events are
// dropped. A failing or panicking hook does not stop the others; each failure
// is reported as a *HookError in the joined result.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	event = NormalizeEvent(event)
	if len(h) == 0 || !event.Complete() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	for i, hook := range h {
		if hook == nil {
			continue
		}
		if err := notifyOne(ctx, hook, event); err != nil {
			errs = append(errs, &HookError{Index: i, Verb: event.Verb, Err: err})
		}
	}
	return errors.Join(errs...)
}

func notifyOne(ctx context.Context, hook ActivityHook, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return hook.Notify(ctx, event)
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}
