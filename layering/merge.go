// Package layering merges and deep copies option snapshots and element
// graphs.
package layering

import "reflect"

// Merger is implemented by snapshot types that control their own merge
// depth. Merge returns a new value combining the receiver over weak.
type Merger[T any] interface {
	Merge(weak T) T
}

// Clone returns a deep copy of value. Maps, slices, pointers and structs
// with only exported fields are copied recursively. A struct holding
// unexported fields, such as time.Time, is copied as a whole value. Pointers reached more than once map to a single copy, so shared nodes
// stay shared and cycles terminate.
func Clone[T any](value T) T {
	c := cloner{seen: map[pointerKey]reflect.Value{}}
	return as[T](c.value(reflect.ValueOf(value)))
}

// MergeLayers composes snapshots ordered from strongest to weakest. Maps
// merge key by key and structs field by field; nested values implementing
// Merger merge themselves; anything else is taken from the strongest layer
// that sets it.
func MergeLayers[T any](layers ...T) T {
	if len(layers) == 0 {
		var zero T
		return zero
	}
	merged := reflect.ValueOf(Clone(layers[len(layers)-1]))
	for i := len(layers) - 2; i >= 0; i-- {
		merged = merge(reflect.ValueOf(layers[i]), merged)
	}
	return as[T](merged)
}

func as[T any](v reflect.Value) T {
	var zero T
	if !v.IsValid() {
		return zero
	}
	target := reflect.TypeOf(&zero).Elem()
	if v.Type() != target && v.Type().ConvertibleTo(target) {
		v = v.Convert(target)
	}
	out, _ := v.Interface().(T)
	return out
}

const mergerMethod = "Merge"

// viaMerger calls strong.Merge(weak) when strong's type implements Merger
// for itself.
func viaMerger(strong, weak reflect.Value) (reflect.Value, bool) {
	method := strong.MethodByName(mergerMethod)
	if !method.IsValid() {
		return reflect.Value{}, false
	}
	typ := method.Type()
	if typ.NumIn() != 1 || typ.NumOut() != 1 || typ.In(0) != strong.Type() || typ.Out(0) != strong.Type() {
		return reflect.Value{}, false
	}
	if !weak.IsValid() || weak.Type() != strong.Type() {
		weak = reflect.Zero(strong.Type())
	}
	return method.Call([]reflect.Value{weak})[0], true
}

func merge(strong, weak reflect.Value) reflect.Value {
	if !strong.IsValid() {
		return clone(weak)
	}
	if merged, ok := viaMerger(strong, weak); ok {
		return merged
	}
	switch strong.Kind() {
	case reflect.Pointer, reflect.Interface:
		if strong.IsNil() {
			return clone(weak)
		}
		var weakElem reflect.Value
		if weak.IsValid() && weak.Kind() == strong.Kind() && !weak.IsNil() {
			weakElem = weak.Elem()
		}
		inner := merge(strong.Elem(), weakElem)
		if strong.Kind() == reflect.Interface {
			return inner.Convert(strong.Type())
		}
		out := reflect.New(strong.Type().Elem())
		out.Elem().Set(inner)
		return out
	case reflect.Struct:
		if sealed(strong.Type()) {
			if strong.IsZero() {
				return clone(weak)
			}
			return clone(strong)
		}
		out := reflect.New(strong.Type()).Elem()
		sameType := weak.IsValid() && weak.Type() == strong.Type()
		for i := range strong.NumField() {
			field := out.Field(i)
			if !field.CanSet() {
				continue
			}
			var weakField reflect.Value
			if sameType {
				weakField = weak.Field(i)
			}
			// An unset struct field inherits; map entries always win.
			if strongField := strong.Field(i); strongField.IsZero() && weakField.IsValid() {
				field.Set(clone(weakField))
				continue
			}
			field.Set(merge(strong.Field(i), weakField))
		}
		return out
	case reflect.Map:
		if strong.IsNil() {
			return clone(weak)
		}
		out := reflect.MakeMapWithSize(strong.Type(), strong.Len())
		if weak.IsValid() && weak.Type() == strong.Type() && !weak.IsNil() {
			for iter := weak.MapRange(); iter.Next(); {
				out.SetMapIndex(iter.Key(), clone(iter.Value()))
			}
		}
		for iter := strong.MapRange(); iter.Next(); {
			if existing := out.MapIndex(iter.Key()); existing.IsValid() {
				out.SetMapIndex(iter.Key(), merge(iter.Value(), existing))
				continue
			}
			out.SetMapIndex(iter.Key(), clone(iter.Value()))
		}
		return out
	case reflect.Slice:
		if strong.IsNil() {
			return clone(weak)
		}
		return clone(strong)
	default:
		return clone(strong)
	}
}

// sealed reports whether t has unexported fields that reflection cannot
// rebuild.
func sealed(t reflect.Type) bool {
	for i := range t.NumField() {
		if !t.Field(i).IsExported() {
			return true
		}
	}
	return false
}

func clone(v reflect.Value) reflect.Value {
	c := cloner{seen: map[pointerKey]reflect.Value{}}
	return c.value(v)
}

type pointerKey struct {
	typ  reflect.Type
	addr uintptr
}

type cloner struct {
	seen map[pointerKey]reflect.Value
}

func (c cloner) value(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := pointerKey{typ: v.Type(), addr: v.Pointer()}
		if copied, ok := c.seen[key]; ok {
			return copied
		}
		out := reflect.New(v.Type().Elem())
		c.seen[key] = out
		out.Elem().Set(c.value(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		return c.value(v.Elem()).Convert(v.Type())
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		if sealed(v.Type()) {
			out.Set(v)
			return out
		}
		for i := range v.NumField() {
			out.Field(i).Set(c.value(v.Field(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		for iter := v.MapRange(); iter.Next(); {
			out.SetMapIndex(iter.Key(), c.value(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := range v.Len() {
			out.Index(i).Set(c.value(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := range v.Len() {
			out.Index(i).Set(c.value(v.Index(i)))
		}
		return out
	default:
		return reflect.ValueOf(v.Interface())
	}
}
