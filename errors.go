package opts

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrUnknownType indicates an element type missing from a backend table.
	ErrUnknownType = errors.New("opts: unknown element type")
	// ErrInvalidOption indicates a keyword no option group accepts.
	ErrInvalidOption = errors.New("opts: invalid option")
	// ErrMixedBackend indicates keywords that are only valid across several
	// backends combined.
	ErrMixedBackend = errors.New("opts: options span multiple backends")
	// ErrConfiguration indicates a malformed specification or backend table.
	ErrConfiguration = errors.New("opts: invalid configuration")
	// ErrInvalidValue indicates a keyword value rejected by a backend rule.
	ErrInvalidValue = errors.New("opts: invalid option value")
	// ErrNoBackend indicates no backend was selected or named.
	ErrNoBackend = errors.New("opts: no backend selected")
	// ErrBackendNotLoaded indicates a backend name that was never loaded.
	ErrBackendNotLoaded = errors.New("opts: backend not loaded")
)

// UnknownTypeError reports an element type absent from a backend table.
type UnknownTypeError struct {
	Type    string
	Backend string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("opts: unknown element type %q for backend %q", e.Type, e.Backend)
}

func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}

// InvalidOptionError reports a keyword rejected for an element type. Valid
// lists every keyword accepted for the type (or for Group when set) and
// Suggestions holds the closest matches, best first.
type InvalidOptionError struct {
	Keyword     string
	Identifier  string
	Type        string
	Backend     string
	Group       Group
	Valid       []string
	Suggestions []string
}

func (e *InvalidOptionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "opts: invalid option %q for %s", e.Keyword, e.Type)
	if e.Group != "" {
		fmt.Fprintf(&b, " %s group", e.Group)
	}
	fmt.Fprintf(&b, " with backend %q", e.Backend)
	if len(e.Suggestions) == 0 {
		b.WriteString("; no similar options found")
	} else {
		fmt.Fprintf(&b, "; similar options are: %s", strings.Join(e.Suggestions, ", "))
	}
	return b.String()
}

func (e *InvalidOptionError) Is(target error) bool {
	return target == ErrInvalidOption
}

// WithSuggestions recomputes Suggestions from Valid using m.
func (e *InvalidOptionError) WithSuggestions(m Matcher) *InvalidOptionError {
	if e == nil {
		return nil
	}
	out := *e
	out.Valid = slices.Clone(e.Valid)
	out.Suggestions = m.Suggestions(e.Keyword, e.Valid)
	return &out
}

// MixedBackendError reports keywords that are individually valid on some
// loaded backend but not jointly valid on any single one. Invalid maps each
// candidate backend to the keywords it rejects.
type MixedBackendError struct {
	Type    string
	Invalid map[string][]string
}

func (e *MixedBackendError) Error() string {
	parts := make([]string, 0, len(e.Invalid))
	for _, backend := range slices.Sorted(maps.Keys(e.Invalid)) {
		parts = append(parts, fmt.Sprintf("%s rejects [%s]", backend, strings.Join(e.Invalid[backend], ", ")))
	}
	return fmt.Sprintf("opts: options for %s are not valid on any single backend: %s", e.Type, strings.Join(parts, "; "))
}

func (e *MixedBackendError) Is(target error) bool {
	return target == ErrMixedBackend
}

// ConfigurationError reports a malformed specification, keyword-group
// argument or backend table.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return "opts: invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("opts: invalid configuration for %q: %s", e.Key, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// InvalidValueError reports a keyword value rejected by a backend rule.
type InvalidValueError struct {
	Keyword string
	Type    string
	Backend string
	Rule    string
	Value   any
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("opts: value %v for %s.%s rejected by backend %q rule %q", e.Value, e.Type, e.Keyword, e.Backend, e.Rule)
}

func (e *InvalidValueError) Is(target error) bool {
	return target == ErrInvalidValue
}
