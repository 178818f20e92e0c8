package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	opts "github.com/goliatone/go-plotopts"
	"github.com/google/uuid"
)

// Tree attaches options to element graphs and resolves them back. It
// implements opts.Storage.
type Tree struct {
	store Store
	newID func() string
	now   func() time.Time

	mu       sync.Mutex
	backends map[string]struct{}
}

var _ opts.Storage = (*Tree)(nil)

// TreeOption configures a Tree.
type TreeOption func(*Tree)

// WithIDGenerator replaces the uuid based option id generator.
func WithIDGenerator(fn func() string) TreeOption {
	return func(t *Tree) {
		if fn != nil {
			t.newID = fn
		}
	}
}

// WithClock replaces the clock used for Meta.UpdatedAt.
func WithClock(fn func() time.Time) TreeOption {
	return func(t *Tree) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTree builds a Tree over store, or over a fresh MemoryStore when store is
// nil.
func NewTree(store Store, options ...TreeOption) *Tree {
	if store == nil {
		store = NewMemoryStore()
	}
	t := &Tree{
		store:    store,
		newID:    uuid.NewString,
		now:      time.Now,
		backends: map[string]struct{}{},
	}
	for _, opt := range options {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// SetOptions gives every element addressed by options a fresh option id whose
// record for backend is options merged over the element's previous record.
// Records the previous id held for other backends are carried over.
func (t *Tree) SetOptions(ctx context.Context, target *opts.Element, options opts.Expanded, backend string) (*opts.Element, error) {
	if target == nil {
		return nil, fmt.Errorf("store: target element is required")
	}
	ids, err := parseKeys(options)
	if err != nil {
		return nil, err
	}
	t.track(backend)

	remapped := map[string]string{}
	err = target.Walk(func(element *opts.Element) error {
		if !addressed(ids, element) {
			return nil
		}
		previous := element.OptionID
		if next, ok := remapped[previous]; ok {
			element.OptionID = next
			return nil
		}
		next := t.newID()
		if err := t.derive(ctx, previous, next, options, backend); err != nil {
			return err
		}
		remapped[previous] = next
		element.OptionID = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}

// ClearOptions drops the option identity of every element in the graph.
func (t *Tree) ClearOptions(_ context.Context, target *opts.Element) (*opts.Element, error) {
	if target == nil {
		return nil, fmt.Errorf("store: target element is required")
	}
	_ = target.Walk(func(element *opts.Element) error {
		element.OptionID = ""
		return nil
	})
	return target, nil
}

// SetDefaults merges options over the session defaults of backend.
func (t *Tree) SetDefaults(ctx context.Context, options opts.Expanded, backend string) error {
	t.track(backend)
	ref := Defaults(backend)
	current, meta, _, err := t.store.Load(ctx, ref)
	if err != nil {
		return fmt.Errorf("store: load defaults for %q: %w", backend, err)
	}
	meta.UpdatedAt = t.now()
	if _, err := t.store.Save(ctx, ref, mergeExpanded(options, current), meta); err != nil {
		return fmt.Errorf("store: save defaults for %q: %w", backend, err)
	}
	return nil
}

// Resolve layers the defaults and the custom record addressing element on
// backend.
func (t *Tree) Resolve(ctx context.Context, element *opts.Element, backend string) (*opts.Layered[opts.Grouped], error) {
	if element == nil {
		return nil, fmt.Errorf("store: element is required")
	}
	defaults, _, _, err := t.store.Load(ctx, Defaults(backend))
	if err != nil {
		return nil, fmt.Errorf("store: load defaults for %q: %w", backend, err)
	}
	var custom opts.Expanded
	if element.OptionID != "" {
		custom, _, _, err = t.store.Load(ctx, Ref{Backend: backend, ID: element.OptionID})
		if err != nil {
			return nil, fmt.Errorf("store: load options %q for %q: %w", element.OptionID, backend, err)
		}
	}
	return opts.ResolveElement(element, defaults, custom)
}

// Lookup returns the effective value of group.keyword for element together
// with the layers that hold it.
func (t *Tree) Lookup(ctx context.Context, element *opts.Element, backend string, group opts.Group, keyword string) (any, opts.Trace, error) {
	layered, err := t.Resolve(ctx, element, backend)
	if err != nil {
		return nil, opts.Trace{}, err
	}
	return layered.ResolveWithTrace(group.String() + "." + keyword)
}

// Custom returns the record stored for id on backend.
func (t *Tree) Custom(ctx context.Context, backend, id string) (opts.Expanded, bool, error) {
	snapshot, _, ok, err := t.store.Load(ctx, Ref{Backend: backend, ID: id})
	return snapshot, ok, err
}

func (t *Tree) derive(ctx context.Context, previous, next string, options opts.Expanded, backend string) error {
	var base opts.Expanded
	if previous != "" {
		for _, other := range t.trackedBackends() {
			snapshot, meta, ok, err := t.store.Load(ctx, Ref{Backend: other, ID: previous})
			if err != nil {
				return fmt.Errorf("store: load options %q for %q: %w", previous, other, err)
			}
			if !ok {
				continue
			}
			if other == backend {
				base = snapshot
				continue
			}
			meta.SnapshotID = ""
			meta.UpdatedAt = t.now()
			if _, err := t.store.Save(ctx, Ref{Backend: other, ID: next}, snapshot, meta); err != nil {
				return fmt.Errorf("store: copy options %q for %q: %w", previous, other, err)
			}
		}
	}
	meta := Meta{UpdatedAt: t.now()}
	if previous != "" {
		meta.Extra = map[string]string{"derived_from": previous}
	}
	if _, err := t.store.Save(ctx, Ref{Backend: backend, ID: next}, mergeExpanded(options, base), meta); err != nil {
		return fmt.Errorf("store: save options %q for %q: %w", next, backend, err)
	}
	return nil
}

func (t *Tree) track(backend string) {
	t.mu.Lock()
	t.backends[backend] = struct{}{}
	t.mu.Unlock()
}

func (t *Tree) trackedBackends() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Sorted(maps.Keys(t.backends))
}

func parseKeys(options opts.Expanded) ([]opts.Identifier, error) {
	ids := make([]opts.Identifier, 0, len(options))
	for _, key := range options.Keys() {
		id, err := opts.ParseIdentifier(key)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func addressed(ids []opts.Identifier, element *opts.Element) bool {
	for _, id := range ids {
		if id.Matches(element) {
			return true
		}
	}
	return false
}

// mergeExpanded layers strong over weak per identifier.
func mergeExpanded(strong, weak opts.Expanded) opts.Expanded {
	out := make(opts.Expanded, len(strong)+len(weak))
	for key, grouped := range weak {
		out[key] = grouped.Clone()
	}
	for key, grouped := range strong {
		out[key] = grouped.Merge(out[key])
	}
	return out
}
