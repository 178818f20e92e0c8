package opts

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// Function is a helper callable from keyword rule expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry holds rule helpers by name. Names are case sensitive
// because evaluators bind them as identifiers.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]Function{}}
}

// Register stores fn under name. A name can be registered once.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("opts: function %q is nil", name)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("opts: function name %q is not an identifier", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = map[string]Function{}
	}
	if _, exists := r.functions[name]; exists {
		return fmt.Errorf("opts: function %q already registered", name)
	}
	r.functions[name] = fn
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &FunctionRegistry{functions: maps.Clone(r.functions)}
}

// Overlay returns a copy of r where the functions of top replace those of
// the same name.
func (r *FunctionRegistry) Overlay(top *FunctionRegistry) *FunctionRegistry {
	out := r.Clone()
	if out == nil {
		out = NewFunctionRegistry()
	}
	if top == nil {
		return out
	}
	top.mu.RLock()
	defer top.mu.RUnlock()
	maps.Copy(out.functions, top.functions)
	return out
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("opts: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[name]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("opts: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.functions))
}

// WithFunctionRegistry configures the functions available to rule
// expressions, on top of the built-in helpers.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *engineConfig) {
		if registry == nil {
			return
		}
		cfg.functions = cfg.functions.Overlay(registry)
	}
}

// WithCustomFunction registers fn under name for rule expressions.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *engineConfig) {
		single := NewFunctionRegistry()
		if err := single.Register(name, fn); err != nil {
			return
		}
		cfg.functions = cfg.functions.Overlay(single)
	}
}

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	hexColorPattern   = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
)

// namedColors are the single letter and base color names every plotting
// backend understands.
var namedColors = []string{
	"b", "g", "r", "c", "m", "y", "k", "w",
	"black", "blue", "brown", "cyan", "gray", "green", "grey", "magenta",
	"navy", "orange", "pink", "purple", "red", "teal", "white", "yellow",
}

// BuiltinFunctions returns the helpers every rule evaluator binds:
//
//	between(value, lo, hi)    numeric range check, inclusive
//	oneOf(value, choices...)  membership test
//	isColor(value)            hex or base color name
//	positive(value)           number greater than zero
func BuiltinFunctions() *FunctionRegistry {
	r := NewFunctionRegistry()
	_ = r.Register("between", func(args ...any) (any, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("between expects 3 arguments, got %d", len(args))
		}
		value, ok := toFloat(args[0])
		if !ok {
			return false, nil
		}
		lo, okLo := toFloat(args[1])
		hi, okHi := toFloat(args[2])
		if !okLo || !okHi {
			return nil, fmt.Errorf("between bounds must be numbers")
		}
		return value >= lo && value <= hi, nil
	})
	_ = r.Register("oneOf", func(args ...any) (any, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("oneOf expects a value and at least one choice")
		}
		choices := args[1:]
		if len(choices) == 1 {
			if list, ok := choices[0].([]any); ok {
				choices = list
			}
		}
		for _, choice := range choices {
			if looselyEqual(args[0], choice) {
				return true, nil
			}
		}
		return false, nil
	})
	_ = r.Register("isColor", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("isColor expects 1 argument, got %d", len(args))
		}
		name, ok := args[0].(string)
		if !ok {
			return false, nil
		}
		return hexColorPattern.MatchString(name) || slices.Contains(namedColors, strings.ToLower(name)), nil
	})
	_ = r.Register("positive", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("positive expects 1 argument, got %d", len(args))
		}
		value, ok := toFloat(args[0])
		return ok && value > 0, nil
	})
	return r
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func looselyEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return a == b
}
