package opts

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/goliatone/go-plotopts/layering"
)

// Source tells which store a layer's options were read from.
type Source string

const (
	SourceDefaults Source = "defaults"
	SourceCustom   Source = "custom"
)

// Priorities used when resolving the options of an element. Session defaults
// are weaker than options attached to the element, and within each source a
// more specific identifier wins.
const (
	ScopePriorityTypeDefaults  = 100
	ScopePriorityGroupDefaults = 200
	ScopePriorityLabelDefaults = 300
	ScopePriorityType          = 400
	ScopePriorityGroup         = 500
	ScopePriorityLabel         = 600
)

// Scope names one layer in the resolution of an element's options. Higher
// priorities are stronger.
type Scope struct {
	Name       string `json:"name"`
	Source     Source `json:"source,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Priority   int    `json:"priority"`
}

// NewScope builds a free-standing scope. Validation is deferred to the stack.
func NewScope(name string, priority int) Scope {
	return Scope{Name: name, Priority: priority}
}

// IdentifierScope returns the scope holding options stored under id, either
// as session defaults or as custom options attached to an element. Its name
// is "<source>:<identifier>".
func IdentifierScope(id Identifier, source Source) Scope {
	priority := ScopePriorityTypeDefaults + (id.Specificity()-1)*100
	if source == SourceCustom {
		priority += ScopePriorityType - ScopePriorityTypeDefaults
	}
	return Scope{
		Name:       string(source) + ":" + id.String(),
		Source:     source,
		Identifier: id.String(),
		Priority:   priority,
	}
}

// Layer pairs a scope with the options captured for it.
type Layer[T any] struct {
	Scope      Scope
	Snapshot   T
	SnapshotID string
}

// NewLayer returns a layer holding a detached copy of snapshot.
func NewLayer[T any](scope Scope, snapshot T) Layer[T] {
	return Layer[T]{Scope: scope, Snapshot: layering.Clone(snapshot)}
}

// WithSnapshotID returns l tagged with the option id its snapshot was read
// from.
func (l Layer[T]) WithSnapshotID(id string) Layer[T] {
	l.SnapshotID = id
	return l
}

func (l Layer[T]) detached() Layer[T] {
	l.Snapshot = layering.Clone(l.Snapshot)
	return l
}

var (
	// ErrScopeNameRequired indicates a missing scope name.
	ErrScopeNameRequired = errors.New("opts: scope name is required")
	// ErrDuplicateScopeName indicates two layers share a scope name.
	ErrDuplicateScopeName = errors.New("opts: duplicate scope name")
	// ErrPriorityOrder indicates two layers share a priority.
	ErrPriorityOrder = errors.New("opts: scope priorities must differ")
	// ErrEmptyStack is returned when merging a stack without layers.
	ErrEmptyStack = errors.New("opts: no layers to merge")
)

// Stack holds layers ordered strongest first.
type Stack[T any] struct {
	layers []Layer[T]
}

// NewStack inserts every layer in priority order.
func NewStack[T any](layers ...Layer[T]) (*Stack[T], error) {
	s := &Stack[T]{}
	for _, layer := range layers {
		if err := s.push(layer); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Stack[T]) push(layer Layer[T]) error {
	name := layer.Scope.Name
	if name == "" {
		return ErrScopeNameRequired
	}
	if slices.ContainsFunc(s.layers, func(l Layer[T]) bool { return l.Scope.Name == name }) {
		return fmt.Errorf("%w: %s", ErrDuplicateScopeName, name)
	}
	at, tie := slices.BinarySearchFunc(s.layers, layer.Scope.Priority, func(l Layer[T], priority int) int {
		return cmp.Compare(priority, l.Scope.Priority)
	})
	if tie {
		return fmt.Errorf("%w: %s and %s at %d", ErrPriorityOrder, s.layers[at].Scope.Name, name, layer.Scope.Priority)
	}
	s.layers = slices.Insert(s.layers, at, layer.detached())
	return nil
}

// Layers returns copies of the layers, strongest first.
func (s *Stack[T]) Layers() []Layer[T] {
	if s.Len() == 0 {
		return nil
	}
	out := make([]Layer[T], len(s.layers))
	for i, layer := range s.layers {
		out[i] = layer.detached()
	}
	return out
}

// Len returns the number of layers.
func (s *Stack[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.layers)
}

// Merge folds the layers into a Layered value that keeps each layer for
// provenance lookups.
func (s *Stack[T]) Merge() (*Layered[T], error) {
	if s.Len() == 0 {
		return nil, ErrEmptyStack
	}
	snapshots := make([]T, len(s.layers))
	kept := make([]layerSnapshot, len(s.layers))
	for i, layer := range s.layers {
		snapshots[i] = layering.Clone(layer.Snapshot)
		kept[i] = layerSnapshot{Scope: layer.Scope, Snapshot: layering.Clone(layer.Snapshot), SnapshotID: layer.SnapshotID}
	}
	return &Layered[T]{Value: layering.MergeLayers(snapshots...), layers: kept}, nil
}

type layerSnapshot struct {
	Scope      Scope
	Snapshot   any
	SnapshotID string
}

// ElementStack builds the layers addressing element from defaults and the
// custom record the element's option id points at. Identifiers absent from
// both sources are skipped.
func ElementStack(element *Element, defaults, custom Expanded) (*Stack[Grouped], error) {
	if element == nil {
		return nil, fmt.Errorf("opts: element is required")
	}
	stack := &Stack[Grouped]{}
	for _, id := range element.Identifier().Ancestors() {
		key := id.String()
		if options, ok := defaults[key]; ok {
			if err := stack.push(NewLayer(IdentifierScope(id, SourceDefaults), options)); err != nil {
				return nil, err
			}
		}
		if options, ok := custom[key]; ok {
			layer := NewLayer(IdentifierScope(id, SourceCustom), options).WithSnapshotID(element.OptionID)
			if err := stack.push(layer); err != nil {
				return nil, err
			}
		}
	}
	return stack, nil
}

// ResolveElement merges the options addressing element. An element without
// any stored options resolves to an empty Grouped value.
func ResolveElement(element *Element, defaults, custom Expanded) (*Layered[Grouped], error) {
	stack, err := ElementStack(element, defaults, custom)
	if err != nil {
		return nil, err
	}
	if stack.Len() == 0 {
		return Wrap(NewGrouped()), nil
	}
	return stack.Merge()
}
