package opts

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Descriptor is a standalone, validated options value for one identifier on
// one backend. It is what builders return and what Defaults consumes.
type Descriptor struct {
	Key     string
	Backend string
	Options Grouped
}

// For returns a copy of d addressing Type.group[.label] instead of the bare
// element type.
func (d Descriptor) For(group, label string) Descriptor {
	id := Identifier{Type: typeOf(d.Key), Group: group, Label: label}
	if group == "" {
		id.Label = ""
	}
	return Descriptor{Key: id.String(), Backend: d.Backend, Options: d.Options.Clone()}
}

// Specification returns d as a single-entry specification routed to its
// backend through the output group.
func (d Descriptor) Specification() Specification {
	grouped := d.Options.Clone()
	if grouped == nil {
		grouped = Grouped{}
	}
	if d.Backend != "" {
		grouped[GroupOutput] = Keywords{"backend": d.Backend}
	}
	return Specification{d.Key: grouped}
}

// Builder validates keywords for one element type and returns a descriptor.
// A "backend" keyword pins the backend when the builder is not pinned already.
type Builder func(keywords Keywords) (Descriptor, error)

type builderKey struct {
	backend string
	element string
}

// builderRegistry holds one builder per (backend, element) plus one unpinned
// builder per element under the empty backend name. It is rebuilt whenever
// the backend registry changes.
type builderRegistry struct {
	mu       sync.RWMutex
	builders map[builderKey]Builder
}

func (r *builderRegistry) replace(builders map[builderKey]Builder) {
	r.mu.Lock()
	r.builders = builders
	r.mu.Unlock()
}

func (r *builderRegistry) lookup(backend, element string) (Builder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	builder, ok := r.builders[builderKey{backend: backend, element: element}]
	return builder, ok
}

func (r *builderRegistry) elements(backend string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for key := range r.builders {
		if key.backend == backend {
			out = append(out, key.element)
		}
	}
	slices.Sort(out)
	return out
}

// rebuildBuilders regenerates the builder registry from the loaded tables.
func (e *Engine) rebuildBuilders(BackendEvent) {
	builders := map[builderKey]Builder{}
	for _, backend := range e.registry.Loaded() {
		table, ok := e.registry.Table(backend)
		if !ok {
			continue
		}
		for _, element := range table.Types() {
			builders[builderKey{backend: backend, element: element}] = e.pinnedBuilder(backend, element)
			builders[builderKey{element: element}] = e.unpinnedBuilder(element)
		}
	}
	e.builders.replace(builders)
}

// Builder returns the validating constructor for element that accepts any
// keyword valid on at least one loaded backend.
func (e *Engine) Builder(element string) (Builder, error) {
	builder, ok := e.builders.lookup("", element)
	if !ok {
		return nil, &UnknownTypeError{Type: element, Backend: e.registry.Current()}
	}
	return builder, nil
}

// BuilderFor returns the validating constructor for element pinned to backend.
func (e *Engine) BuilderFor(backend, element string) (Builder, error) {
	if !e.registry.IsLoaded(backend) {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotLoaded, backend)
	}
	builder, ok := e.builders.lookup(backend, element)
	if !ok {
		return nil, &UnknownTypeError{Type: element, Backend: backend}
	}
	return builder, nil
}

// Elements lists the element types with builders for backend, or for any
// loaded backend when backend is empty.
func (e *Engine) Elements(backend string) []string {
	return e.builders.elements(backend)
}

func (e *Engine) pinnedBuilder(backend, element string) Builder {
	return func(keywords Keywords) (Descriptor, error) {
		keywords, pinned, err := splitBackendKeyword(keywords)
		if err != nil {
			return Descriptor{}, err
		}
		if pinned != "" && pinned != backend {
			return Descriptor{}, &ConfigurationError{
				Key:    element,
				Reason: fmt.Sprintf("builder is pinned to %q but backend %q was requested", backend, pinned),
			}
		}
		return e.build(backend, element, keywords)
	}
}

func (e *Engine) unpinnedBuilder(element string) Builder {
	return func(keywords Keywords) (Descriptor, error) {
		keywords, pinned, err := splitBackendKeyword(keywords)
		if err != nil {
			return Descriptor{}, err
		}
		if pinned != "" {
			builder, err := e.BuilderFor(pinned, element)
			if err != nil {
				return Descriptor{}, err
			}
			return builder(keywords)
		}
		return e.buildAcrossBackends(element, keywords)
	}
}

// buildAcrossBackends prefers the current backend, then the others in name
// order, and uses the first one accepting every keyword.
func (e *Engine) buildAcrossBackends(element string, keywords Keywords) (Descriptor, error) {
	current := e.registry.Current()
	tables := map[string]TypeTable{}
	var candidates []string
	for _, backend := range e.registry.Loaded() {
		if table, ok := e.registry.TypeTable(backend, element); ok {
			tables[backend] = table
			candidates = append(candidates, backend)
		}
	}
	if len(candidates) == 0 {
		return Descriptor{}, &UnknownTypeError{Type: element, Backend: current}
	}
	if i := slices.Index(candidates, current); i > 0 {
		candidates = append([]string{current}, slices.Delete(candidates, i, i+1)...)
	}

	invalid := map[string][]string{}
	for _, backend := range candidates {
		var rejected []string
		for _, keyword := range keywords.Names() {
			if !tables[backend].Accepts(keyword) {
				rejected = append(rejected, keyword)
			}
		}
		if len(rejected) == 0 {
			return e.build(backend, element, keywords)
		}
		invalid[backend] = rejected
	}

	nowhere := Keywords{}
	for _, keyword := range keywords.Names() {
		accepted := false
		for _, backend := range candidates {
			if tables[backend].Accepts(keyword) {
				accepted = true
				break
			}
		}
		if !accepted {
			nowhere[keyword] = keywords[keyword]
		}
	}
	if len(nowhere) == 0 {
		return Descriptor{}, &MixedBackendError{Type: element, Invalid: invalid}
	}
	_, err := e.build(candidates[0], element, nowhere)
	return Descriptor{}, err
}

func (e *Engine) build(backend, element string, keywords Keywords) (Descriptor, error) {
	table, ok := e.registry.Table(backend)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrBackendNotLoaded, backend)
	}
	expanded, err := Expand(FlatSpecification{element: keywords}, backend, table)
	if err != nil {
		return Descriptor{}, e.withSuggestions(err)
	}
	if err := e.checkRules(backend, expanded); err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Key: element, Backend: backend, Options: expanded[element]}, nil
}

// splitBackendKeyword removes a "backend" routing keyword from keywords.
func splitBackendKeyword(keywords Keywords) (Keywords, string, error) {
	value, ok := keywords["backend"]
	if !ok {
		return keywords, "", nil
	}
	backend, isString := value.(string)
	if !isString || backend == "" {
		return nil, "", &ConfigurationError{Key: "backend", Reason: "backend keyword must be a non-empty string"}
	}
	rest := maps.Clone(keywords)
	delete(rest, "backend")
	return rest, backend, nil
}
