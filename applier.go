package opts

import (
	"context"
	"errors"
)

// Storage attaches option metadata to element identities and owns the
// inheritance semantics across a containment hierarchy.
type Storage interface {
	SetOptions(ctx context.Context, target *Element, options Expanded, backend string) (*Element, error)
	ClearOptions(ctx context.Context, target *Element) (*Element, error)
	SetDefaults(ctx context.Context, options Expanded, backend string) error
}

// ErrNoStorage indicates an operation needing a Storage was called without one.
var ErrNoStorage = errors.New("opts: storage not configured")

// Apply hands validated, grouped options for one backend to storage. With
// clone set the element graph is copied first and the original is left
// untouched; otherwise target is mutated in place and every holder of its
// nested elements observes the change. Empty options clear any attached
// option identity instead.
func Apply(ctx context.Context, storage Storage, target *Element, options Expanded, backend string, clone bool) (*Element, error) {
	if storage == nil {
		return nil, ErrNoStorage
	}
	if target == nil {
		return nil, &ConfigurationError{Reason: "apply target must not be nil"}
	}
	if clone {
		target = target.Clone()
	}
	if len(options) == 0 {
		return storage.ClearOptions(ctx, target)
	}
	if backend == "" {
		return nil, ErrNoBackend
	}
	return storage.SetOptions(ctx, target, options, backend)
}
