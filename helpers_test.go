package opts

import (
	"context"
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
)

func loadFixture[T any](t *testing.T, name string) T {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("unable to resolve caller for fixture %q", name)
	}
	path := filepath.Join(filepath.Dir(file), "testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %q: %v", path, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("failed to unmarshal fixture %q: %v", path, err)
	}
	return out
}

// fixtureSpecs loads testdata/backends.json as backend specs sorted by name.
func fixtureSpecs(t *testing.T) []BackendSpec {
	t.Helper()
	raw := loadFixture[map[string]map[string]map[Group][]string](t, "backends.json")
	specs := make([]BackendSpec, 0, len(raw))
	for _, name := range slices.Sorted(maps.Keys(raw)) {
		table := OptionTable{}
		for typ, groups := range raw[name] {
			types := TypeTable{}
			for group, keywords := range groups {
				types[group] = NewKeywordSet(keywords...)
			}
			table[typ] = types
		}
		specs = append(specs, BackendSpec{Name: name, Table: table})
	}
	return specs
}

func fixtureTable(t *testing.T, backend string) OptionTable {
	t.Helper()
	for _, spec := range fixtureSpecs(t) {
		if spec.Name == backend {
			return spec.Table
		}
	}
	t.Fatalf("fixture backend %q not found", backend)
	return nil
}

// newFixtureEngine loads every fixture backend plus rules and selects
// matplotlib.
func newFixtureEngine(t *testing.T, rules map[string][]KeywordRule, options ...Option) *Engine {
	t.Helper()
	engine := NewEngine(options...)
	for _, spec := range fixtureSpecs(t) {
		spec.Rules = rules[spec.Name]
		if err := engine.LoadBackend(context.Background(), spec); err != nil {
			t.Fatalf("load %s: %v", spec.Name, err)
		}
	}
	if err := engine.Registry().Activate("matplotlib"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	return engine
}
