package opts

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrPathNotFound is returned when no layer holds a value at the traced path.
var ErrPathNotFound = errors.New("opts: path not found")

// Layered is the merged result of a Stack. Value holds the effective snapshot
// and the layers are retained for provenance lookups.
type Layered[T any] struct {
	Value  T
	layers []layerSnapshot
}

// Wrap returns a Layered value without provenance layers.
func Wrap[T any](value T) *Layered[T] {
	return &Layered[T]{Value: value}
}

// Scopes lists the contributing scopes, strongest first.
func (l *Layered[T]) Scopes() []Scope {
	if l == nil {
		return nil
	}
	out := make([]Scope, len(l.layers))
	for i, layer := range l.layers {
		out[i] = layer.Scope
	}
	return out
}

// Resolve returns the effective value at a dotted path such as "style.color".
func (l *Layered[T]) Resolve(path string) (any, bool) {
	if l == nil {
		return nil, false
	}
	return lookupPath(l.Value, splitPath(path))
}

// ResolveWithTrace returns the effective value at path together with the
// value each layer holds there, strongest layer first.
func (l *Layered[T]) ResolveWithTrace(path string) (any, Trace, error) {
	if l == nil {
		return nil, Trace{}, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, Trace{}, fmt.Errorf("opts: empty path")
	}
	trace := Trace{Path: path}

	if len(l.layers) == 0 {
		value, found := lookupPath(l.Value, segments)
		trace.Layers = []Provenance{{Scope: Scope{Name: "value"}, Path: path, Value: value, Found: found}}
		if !found {
			return nil, trace, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		return value, trace, nil
	}

	trace.Layers = make([]Provenance, 0, len(l.layers))
	for _, layer := range l.layers {
		value, found := lookupPath(layer.Snapshot, segments)
		trace.Layers = append(trace.Layers, Provenance{
			Scope:      layer.Scope,
			SnapshotID: layer.SnapshotID,
			Path:       path,
			Value:      value,
			Found:      found,
		})
	}
	value, found := lookupPath(l.Value, segments)
	if !found {
		return nil, trace, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	return value, trace, nil
}

func splitPath(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// lookupPath walks string-keyed maps, pointers and exported struct fields.
func lookupPath(value any, segments []string) (any, bool) {
	current := reflect.ValueOf(value)
	for _, segment := range segments {
		for current.IsValid() && (current.Kind() == reflect.Interface || current.Kind() == reflect.Pointer) {
			if current.IsNil() {
				return nil, false
			}
			current = current.Elem()
		}
		if !current.IsValid() {
			return nil, false
		}
		switch current.Kind() {
		case reflect.Map:
			if current.Type().Key().Kind() != reflect.String {
				return nil, false
			}
			next := current.MapIndex(reflect.ValueOf(segment).Convert(current.Type().Key()))
			if !next.IsValid() {
				return nil, false
			}
			current = next
		case reflect.Struct:
			field := current.FieldByName(segment)
			if !field.IsValid() || !field.CanInterface() {
				return nil, false
			}
			current = field
		default:
			return nil, false
		}
	}
	if !current.IsValid() || !current.CanInterface() {
		return nil, false
	}
	return current.Interface(), true
}
