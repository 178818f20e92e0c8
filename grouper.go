package opts

import (
	"fmt"
	"maps"
	"slices"
)

// BackendOptions is the subset of a specification routed to one backend.
type BackendOptions struct {
	Backend string
	Options Specification
}

// GroupByBackend splits spec into per-backend subsets. An identifier carrying
// an output group is routed to output["backend"] and the output group is
// stripped; any other identifier, including one with an empty output group,
// goes to explicitBackend, or currentBackend
// when no explicit backend is given. Results are sorted by backend name.
func GroupByBackend(spec Specification, explicitBackend, currentBackend string) ([]BackendOptions, error) {
	fallback := explicitBackend
	if fallback == "" {
		fallback = currentBackend
	}

	routed := map[string]Specification{}
	for _, key := range slices.Sorted(maps.Keys(spec)) {
		grouped := spec[key]
		backend := fallback
		if output, ok := grouped[GroupOutput]; ok && len(output) > 0 {
			target, err := outputBackend(key, output)
			if err != nil {
				return nil, err
			}
			backend = target
		}
		if backend == "" {
			return nil, fmt.Errorf("%w: cannot route %q", ErrNoBackend, key)
		}
		if routed[backend] == nil {
			routed[backend] = Specification{}
		}
		routed[backend][key] = grouped.Without(GroupOutput)
	}

	out := make([]BackendOptions, 0, len(routed))
	for _, backend := range slices.Sorted(maps.Keys(routed)) {
		out = append(out, BackendOptions{Backend: backend, Options: routed[backend]})
	}
	return out, nil
}

func outputBackend(key string, output Keywords) (string, error) {
	if len(output) != 1 {
		return "", &ConfigurationError{Key: key, Reason: "output group must have the backend keyword"}
	}
	value, ok := output["backend"]
	if !ok {
		return "", &ConfigurationError{Key: key, Reason: "output group must have the backend keyword"}
	}
	backend, ok := value.(string)
	if !ok || backend == "" {
		return "", &ConfigurationError{Key: key, Reason: "output backend must be a non-empty string"}
	}
	return backend, nil
}
