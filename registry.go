package opts

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// KeywordSet is a set of option keyword names.
type KeywordSet map[string]struct{}

// NewKeywordSet builds a set holding keywords.
func NewKeywordSet(keywords ...string) KeywordSet {
	set := make(KeywordSet, len(keywords))
	for _, keyword := range keywords {
		set[keyword] = struct{}{}
	}
	return set
}

// Has reports whether keyword is in the set.
func (s KeywordSet) Has(keyword string) bool {
	_, ok := s[keyword]
	return ok
}

// Sorted returns the keywords sorted alphabetically.
func (s KeywordSet) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// TypeTable maps each option group to the keywords it accepts for one
// element type.
type TypeTable map[Group]KeywordSet

// Keywords returns the union of every group's keywords, sorted.
func (t TypeTable) Keywords() []string {
	seen := KeywordSet{}
	for _, set := range t {
		for keyword := range set {
			seen[keyword] = struct{}{}
		}
	}
	return seen.Sorted()
}

// GroupOf returns the first group, in name order, accepting keyword.
func (t TypeTable) GroupOf(keyword string) (Group, bool) {
	for _, group := range sortedGroups {
		if t[group].Has(keyword) {
			return group, true
		}
	}
	return "", false
}

// Accepts reports whether any group accepts keyword.
func (t TypeTable) Accepts(keyword string) bool {
	_, ok := t.GroupOf(keyword)
	return ok
}

// OptionTable maps element type names to their per-group keyword sets.
type OptionTable map[string]TypeTable

// Types returns the element type names sorted alphabetically.
func (t OptionTable) Types() []string {
	return slices.Sorted(maps.Keys(t))
}

// Validate checks that only the fixed groups are used and that no keyword
// is declared in two groups of the same type.
func (t OptionTable) Validate() error {
	for _, typ := range t.Types() {
		if typ == "" || strings.Contains(typ, ".") {
			return &ConfigurationError{Key: typ, Reason: "element type names must be non-empty and contain no dots"}
		}
		owner := map[string]Group{}
		for _, group := range slices.Sorted(maps.Keys(t[typ])) {
			if !group.Valid() {
				return &ConfigurationError{Key: typ, Reason: fmt.Sprintf("unknown option group %q", group)}
			}
			for _, keyword := range t[typ][group].Sorted() {
				if previous, ok := owner[keyword]; ok {
					return &ConfigurationError{
						Key:    typ + "." + keyword,
						Reason: fmt.Sprintf("keyword declared in both %s and %s groups", previous, group),
					}
				}
				owner[keyword] = group
			}
		}
	}
	return nil
}

// Clone deep copies the table.
func (t OptionTable) Clone() OptionTable {
	if t == nil {
		return nil
	}
	out := make(OptionTable, len(t))
	for typ, groups := range t {
		copied := make(TypeTable, len(groups))
		for group, set := range groups {
			copied[group] = maps.Clone(set)
		}
		out[typ] = copied
	}
	return out
}

// KeywordRule constrains the values a keyword accepts. An empty Type applies
// the rule to every element type declaring Keyword.
type KeywordRule struct {
	Type    string
	Keyword string
	Expr    string
}

func (r KeywordRule) appliesTo(typ, keyword string) bool {
	return r.Keyword == keyword && (r.Type == "" || r.Type == typ)
}

// BackendSpec describes one backend as it is loaded into a registry.
type BackendSpec struct {
	Name  string
	Table OptionTable
	Rules []KeywordRule
}

// BackendEventKind distinguishes registry mutation events.
type BackendEventKind string

const (
	BackendLoaded    BackendEventKind = "loaded"
	BackendUnloaded  BackendEventKind = "unloaded"
	BackendActivated BackendEventKind = "activated"
)

// BackendEvent describes one registry mutation.
type BackendEvent struct {
	Kind    BackendEventKind
	Backend string
}

// BackendHook observes registry mutations. Hooks run after the registry lock
// is released and may read from the registry.
type BackendHook func(BackendEvent)

// BackendRegistry is the process-wide store of backend option tables and the
// currently selected backend. It starts with no backend selected; tables
// change only through Load and Unload, and the selection only through
// Activate. Unloading the selected backend clears the selection.
type BackendRegistry struct {
	mu      sync.RWMutex
	tables  map[string]OptionTable
	rules   map[string][]KeywordRule
	current string
	hooks   []BackendHook
}

// NewBackendRegistry constructs an empty registry.
func NewBackendRegistry() *BackendRegistry {
	return &BackendRegistry{
		tables: map[string]OptionTable{},
		rules:  map[string][]KeywordRule{},
	}
}

// Load validates spec and stores its table, replacing any previous table for
// the same backend.
func (r *BackendRegistry) Load(spec BackendSpec) error {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return &ConfigurationError{Reason: "backend name must not be empty"}
	}
	if err := spec.Table.Validate(); err != nil {
		return fmt.Errorf("opts: backend %q: %w", name, err)
	}
	for _, rule := range spec.Rules {
		if rule.Keyword == "" || strings.TrimSpace(rule.Expr) == "" {
			return &ConfigurationError{Key: name, Reason: "rules need a keyword and an expression"}
		}
	}

	r.mu.Lock()
	r.tables[name] = spec.Table.Clone()
	r.rules[name] = slices.Clone(spec.Rules)
	hooks := slices.Clone(r.hooks)
	r.mu.Unlock()

	notify(hooks, BackendEvent{Kind: BackendLoaded, Backend: name})
	return nil
}

// Unload drops a backend, clearing the selection when it was selected.
func (r *BackendRegistry) Unload(name string) error {
	r.mu.Lock()
	if _, ok := r.tables[name]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrBackendNotLoaded, name)
	}
	delete(r.tables, name)
	delete(r.rules, name)
	if r.current == name {
		r.current = ""
	}
	hooks := slices.Clone(r.hooks)
	r.mu.Unlock()

	notify(hooks, BackendEvent{Kind: BackendUnloaded, Backend: name})
	return nil
}

// Activate selects a loaded backend as the current one.
func (r *BackendRegistry) Activate(name string) error {
	r.mu.Lock()
	if _, ok := r.tables[name]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrBackendNotLoaded, name)
	}
	r.current = name
	hooks := slices.Clone(r.hooks)
	r.mu.Unlock()

	notify(hooks, BackendEvent{Kind: BackendActivated, Backend: name})
	return nil
}

// Current returns the selected backend, or "" when none is selected.
func (r *BackendRegistry) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Loaded returns the loaded backend names sorted alphabetically.
func (r *BackendRegistry) Loaded() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.tables))
}

// IsLoaded reports whether name has been loaded.
func (r *BackendRegistry) IsLoaded(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tables[name]
	return ok
}

// Table returns a copy of the option table for backend.
func (r *BackendRegistry) Table(backend string) (OptionTable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	table, ok := r.tables[backend]
	if !ok {
		return nil, false
	}
	return table.Clone(), true
}

// TypeTable returns a copy of the keyword table for one element type.
func (r *BackendRegistry) TypeTable(backend, typ string) (TypeTable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	groups, ok := r.tables[backend][typ]
	if !ok {
		return nil, false
	}
	return OptionTable{typ: groups}.Clone()[typ], true
}

// Rules returns the keyword rules registered for backend.
func (r *BackendRegistry) Rules(backend string) []KeywordRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.rules[backend])
}

// OnChange registers hook for subsequent registry mutations.
func (r *BackendRegistry) OnChange(hook BackendHook) {
	if hook == nil {
		return
	}
	r.mu.Lock()
	r.hooks = append(r.hooks, hook)
	r.mu.Unlock()
}

func notify(hooks []BackendHook, events ...BackendEvent) {
	for _, event := range events {
		for _, hook := range hooks {
			hook(event)
		}
	}
}
