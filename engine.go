package opts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/goliatone/go-plotopts/internal/optspec"
	"github.com/goliatone/go-plotopts/layering"
	"github.com/goliatone/go-plotopts/pkg/activity"
)

// Engine is the options front-end: it validates specifications against the
// loaded backends, routes them per backend and applies them through Storage.
type Engine struct {
	cfg      engineConfig
	registry *BackendRegistry
	builders builderRegistry
	emitter  *activity.Emitter

	evaluatorOnce sync.Once
	evaluator     Evaluator
}

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	registry        *BackendRegistry
	storage         Storage
	logger          *slog.Logger
	evaluatorLogger EvaluatorLogger
	matcher         Matcher
	evaluator       Evaluator
	programCache    ProgramCache
	functions       *FunctionRegistry
	schemaGenerator SchemaGenerator
	activityHooks   activity.Hooks
	activityConfig  activity.Config
}

func applyOptions(opts []Option) engineConfig {
	cfg := engineConfig{
		matcher:        DefaultMatcher(),
		activityConfig: activity.Config{Enabled: true},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithRegistry shares an existing backend registry with the engine.
func WithRegistry(registry *BackendRegistry) Option {
	return func(cfg *engineConfig) {
		cfg.registry = registry
	}
}

// WithStorage configures the collaborator that attaches options to elements.
func WithStorage(storage Storage) Option {
	return func(cfg *engineConfig) {
		cfg.storage = storage
	}
}

// WithLogger configures the structured logger used for soft warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *engineConfig) {
		cfg.logger = logger
	}
}

// WithMatcher replaces the keyword suggestion strategy.
func WithMatcher(matcher Matcher) Option {
	return func(cfg *engineConfig) {
		cfg.matcher = matcher
	}
}

// WithEvaluator configures the evaluator used for keyword value rules.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *engineConfig) {
		cfg.evaluator = e
	}
}

// WithSchemaGenerator configures a custom schema generator implementation.
func WithSchemaGenerator(generator SchemaGenerator) Option {
	return func(cfg *engineConfig) {
		cfg.schemaGenerator = generator
	}
}

// NewEngine constructs an engine. Without WithRegistry it owns a fresh
// registry with no backend selected.
func NewEngine(opts ...Option) *Engine {
	cfg := applyOptions(opts)
	registry := cfg.registry
	if registry == nil {
		registry = NewBackendRegistry()
	}
	if cfg.programCache == nil {
		cfg.programCache = NewMemoryProgramCache()
	}
	e := &Engine{
		cfg:      cfg,
		registry: registry,
		emitter:  activity.NewEmitter(cfg.activityHooks, cfg.activityConfig),
	}
	registry.OnChange(e.rebuildBuilders)
	e.rebuildBuilders(BackendEvent{})
	return e
}

// Registry returns the backend registry backing the engine.
func (e *Engine) Registry() *BackendRegistry {
	return e.registry
}

// LoadBackend registers a backend table and rebuilds the builders.
func (e *Engine) LoadBackend(ctx context.Context, spec BackendSpec) error {
	if err := e.registry.Load(spec); err != nil {
		return err
	}
	e.emit(ctx, activity.BuildBackendLoadedEvent(e.eventInput(ctx, activity.OptionsEventInput{
		Backend:  spec.Name,
		Elements: spec.Table.Types(),
	})))
	return nil
}

// UnloadBackend removes a backend and rebuilds the builders.
func (e *Engine) UnloadBackend(ctx context.Context, name string) error {
	if err := e.registry.Unload(name); err != nil {
		return err
	}
	e.emit(ctx, activity.BuildBackendUnloadedEvent(e.eventInput(ctx, activity.OptionsEventInput{Backend: name})))
	return nil
}

// Expand validates a flat specification for backend, or for the current
// backend when backend is empty. Only in that second case are keywords
// rejected by the backend but accepted for the same element type by another
// loaded backend logged and skipped; any other rejection is returned with
// suggestions.
func (e *Engine) Expand(spec FlatSpecification, backend string) (Expanded, error) {
	target, explicit := e.selectBackend(backend)
	return e.expand(spec, target, explicit)
}

func (e *Engine) expand(spec FlatSpecification, backend string, explicit bool) (Expanded, error) {
	table, err := e.table(backend)
	if err != nil {
		return nil, err
	}
	working := spec.Clone()
	for {
		expanded, err := Expand(working, backend, table)
		if err == nil {
			if err := e.checkRules(backend, expanded); err != nil {
				return nil, err
			}
			return expanded, nil
		}
		var invalid *InvalidOptionError
		if !errors.As(err, &invalid) {
			return nil, err
		}
		if explicit {
			return nil, invalid.WithSuggestions(e.cfg.matcher)
		}
		others := e.backendsAccepting(invalid.Type, invalid.Keyword, backend)
		if len(others) == 0 {
			return nil, invalid.WithSuggestions(e.cfg.matcher)
		}
		e.logger().Warn("opts: option not supported by backend, skipping",
			slog.String("backend", backend),
			slog.String("element", invalid.Type),
			slog.String("keyword", invalid.Keyword),
			slog.Any("supported_by", others),
		)
		delete(working[invalid.Identifier], invalid.Keyword)
	}
}

// ExpandSpecification validates an already grouped specification for
// backend, with the same backend selection as Expand. Each keyword must
// belong to the group it was declared in. Output routing is not interpreted
// here; see GroupByBackend.
func (e *Engine) ExpandSpecification(spec Specification, backend string) (Expanded, error) {
	target, explicit := e.selectBackend(backend)
	return e.expandSpecification(spec, target, explicit)
}

func (e *Engine) expandSpecification(spec Specification, backend string, explicit bool) (Expanded, error) {
	flat := make(FlatSpecification, len(spec))
	declared := make(map[string]map[string]Group, len(spec))
	for _, key := range slices.Sorted(maps.Keys(spec)) {
		keywords := Keywords{}
		owners := map[string]Group{}
		for _, group := range slices.Sorted(maps.Keys(spec[key])) {
			if !group.Valid() {
				return nil, &ConfigurationError{Key: key, Reason: fmt.Sprintf("unknown option group %q", group)}
			}
			for keyword, value := range spec[key][group] {
				if previous, ok := owners[keyword]; ok {
					return nil, &ConfigurationError{
						Key:    key + "." + keyword,
						Reason: fmt.Sprintf("keyword given in both %s and %s groups", previous, group),
					}
				}
				owners[keyword] = group
				keywords[keyword] = value
			}
		}
		flat[key] = keywords
		declared[key] = owners
	}

	expanded, err := e.expand(flat, backend, explicit)
	if err != nil {
		return nil, err
	}
	for _, key := range expanded.Keys() {
		for _, group := range sortedGroups {
			for _, keyword := range expanded[key][group].Names() {
				want := declared[key][keyword]
				if want == group {
					continue
				}
				typ := typeOf(key)
				table, _ := e.registry.TypeTable(backend, typ)
				invalid := &InvalidOptionError{
					Keyword:    keyword,
					Identifier: key,
					Type:       typ,
					Backend:    backend,
					Group:      want,
					Valid:      table[want].Sorted(),
				}
				return nil, invalid.WithSuggestions(e.cfg.matcher)
			}
		}
	}
	return expanded, nil
}

// Request is the input of Opts. Sources are combined with later ones taking
// precedence: Descriptors, flat Spec entries, then Text, grouped Spec entries
// and Groups.
type Request struct {
	// Text is a textual specification such as "Curve (color='red') [width=400]".
	Text string
	// Spec holds grouped or flat entries keyed by identifier.
	Spec RawSpecification
	// Descriptors are previously built option descriptors.
	Descriptors []Descriptor
	// Groups are group keyword arguments such as {"style": {...}}. Plain
	// keywords apply to Target's own identifier; keys naming targets, as in
	// {"style": {"Image.Foo": {...}}}, address those identifiers instead.
	Groups map[string]any
	// Target receives the options; nil returns descriptors only.
	Target *Element
	// Backend overrides the current backend for entries without routing.
	// Keywords it rejects are errors even when another backend accepts them.
	Backend string
	// Clone applies options to a copy of Target.
	Clone bool
}

// Result is the output of Opts.
type Result struct {
	Descriptors []Descriptor
	Target      *Element
}

// Opts resolves a request into per-backend validated options. Without a
// target it returns the descriptors; with one it applies them, and a request
// carrying no options clears the target's option identity.
func (e *Engine) Opts(ctx context.Context, req Request) (Result, error) {
	perBackend, err := e.resolve(req)
	if err != nil {
		return Result{}, err
	}
	descriptors := descriptorsFrom(perBackend)
	if req.Target == nil {
		return Result{Descriptors: descriptors}, nil
	}

	if len(perBackend) == 0 {
		target, err := Apply(ctx, e.cfg.storage, req.Target, nil, "", req.Clone)
		if err != nil {
			return Result{}, err
		}
		e.emit(ctx, activity.BuildOptionsClearedEvent(e.eventInput(ctx, activity.OptionsEventInput{
			ObjectID: target.OptionID,
			Elements: []string{target.Type},
		})))
		return Result{Target: target}, nil
	}

	target := req.Target
	clone := req.Clone
	for _, backend := range slices.Sorted(maps.Keys(perBackend)) {
		target, err = Apply(ctx, e.cfg.storage, target, perBackend[backend], backend, clone)
		if err != nil {
			return Result{}, err
		}
		clone = false
		e.emit(ctx, activity.BuildOptionsAppliedEvent(e.eventInput(ctx, activity.OptionsEventInput{
			Backend:  backend,
			ObjectID: target.OptionID,
			Elements: perBackend[backend].Keys(),
			Options:  expandedPayload(perBackend[backend]),
		})))
	}
	return Result{Descriptors: descriptors, Target: target}, nil
}

// Defaults validates descriptors and stores them as session-wide defaults.
// Descriptors without a backend use backend, or the current backend.
func (e *Engine) Defaults(ctx context.Context, backend string, descriptors ...Descriptor) error {
	if e.cfg.storage == nil {
		return ErrNoStorage
	}
	routed := map[string]Specification{}
	explicit := map[string]bool{}
	for _, descriptor := range descriptors {
		target := e.backendFor(descriptor.Backend, backend)
		if target == "" {
			return fmt.Errorf("%w: cannot route defaults for %q", ErrNoBackend, descriptor.Key)
		}
		if routed[target] == nil {
			routed[target] = Specification{}
		}
		if descriptor.Backend != "" || backend != "" {
			explicit[target] = true
		}
		routed[target][descriptor.Key] = layering.MergeLayers(descriptor.Options.Clone(), routed[target][descriptor.Key])
	}
	for _, target := range slices.Sorted(maps.Keys(routed)) {
		expanded, err := e.expandSpecification(routed[target], target, explicit[target])
		if err != nil {
			return err
		}
		if err := e.cfg.storage.SetDefaults(ctx, expanded, target); err != nil {
			return fmt.Errorf("opts: set defaults for backend %q: %w", target, err)
		}
		e.emit(ctx, activity.BuildDefaultsSetEvent(e.eventInput(ctx, activity.OptionsEventInput{
			Backend:  target,
			Elements: expanded.Keys(),
			Options:  expandedPayload(expanded),
		})))
	}
	return nil
}

// Parse converts the textual specification syntax into a Specification.
func (e *Engine) Parse(text string) (Specification, error) {
	parsed, err := optspec.Parse(text)
	if err != nil {
		return nil, &ConfigurationError{Key: "text", Reason: err.Error()}
	}
	spec := make(Specification, len(parsed))
	for key, groups := range parsed {
		grouped := Grouped{}
		for name, keywords := range groups {
			group, ok := ParseGroup(name)
			if !ok {
				return nil, &ConfigurationError{Key: key, Reason: fmt.Sprintf("unknown option group %q", name)}
			}
			grouped[group] = Keywords(keywords)
		}
		spec[key] = grouped
	}
	return spec, nil
}

// Schema describes the keywords accepted by backend.
func (e *Engine) Schema(backend string) (SchemaDocument, error) {
	table, err := e.table(backend)
	if err != nil {
		return SchemaDocument{}, err
	}
	generator := e.cfg.schemaGenerator
	if generator == nil {
		generator = DefaultSchemaGenerator()
	}
	return generator.Generate(backend, table)
}

func (e *Engine) resolve(req Request) (map[string]Expanded, error) {
	grouped := Specification{}
	if req.Text != "" {
		parsed, err := e.Parse(req.Text)
		if err != nil {
			return nil, err
		}
		grouped = parsed
	}
	var flat FlatSpecification
	if req.Spec != nil {
		specGrouped, specFlat, err := normalizeRaw(req.Spec)
		if err != nil {
			return nil, err
		}
		grouped = mergeSpecifications(grouped, specGrouped)
		flat = specFlat
	}
	if len(req.Groups) > 0 {
		groups, err := e.groupArgs(req)
		if err != nil {
			return nil, err
		}
		grouped = mergeSpecifications(grouped, groups)
	}

	perBackend := resolved{}
	for _, descriptor := range req.Descriptors {
		if err := e.expandRouted(perBackend, descriptor.Specification(), req.Backend); err != nil {
			return nil, err
		}
	}

	flatRouted := map[string]FlatSpecification{}
	explicit := map[string]bool{}
	for _, key := range slices.Sorted(maps.Keys(flat)) {
		keywords, pinned, err := splitBackendKeyword(flat[key])
		if err != nil {
			return nil, err
		}
		backend := e.backendFor(pinned, req.Backend)
		if backend == "" {
			return nil, fmt.Errorf("%w: cannot route %q", ErrNoBackend, key)
		}
		if flatRouted[backend] == nil {
			flatRouted[backend] = FlatSpecification{}
		}
		flatRouted[backend][key] = keywords
		if pinned != "" || req.Backend != "" {
			explicit[backend] = true
		}
	}
	for _, backend := range slices.Sorted(maps.Keys(flatRouted)) {
		expanded, err := e.expand(flatRouted[backend], backend, explicit[backend])
		if err != nil {
			return nil, err
		}
		perBackend.merge(backend, expanded)
	}

	if err := e.expandRouted(perBackend, grouped, req.Backend); err != nil {
		return nil, err
	}
	return perBackend, nil
}

// resolved accumulates expanded options per backend, later merges winning.
type resolved map[string]Expanded

func (r resolved) merge(backend string, expanded Expanded) {
	if r[backend] == nil {
		r[backend] = Expanded{}
	}
	for key, options := range expanded {
		r[backend][key] = layering.MergeLayers(options, r[backend][key])
	}
}

// expandRouted routes spec through GroupByBackend and expands each subset
// into out. Entries carrying an output group, and every entry when
// explicitBackend is set, are validated strictly against their backend.
func (e *Engine) expandRouted(out resolved, spec Specification, explicitBackend string) error {
	routed, unrouted := Specification{}, Specification{}
	for key, grouped := range spec {
		if explicitBackend != "" || len(grouped[GroupOutput]) > 0 {
			routed[key] = grouped
			continue
		}
		unrouted[key] = grouped
	}
	for _, part := range []struct {
		spec     Specification
		explicit bool
	}{{spec: unrouted}, {spec: routed, explicit: true}} {
		if len(part.spec) == 0 {
			continue
		}
		subsets, err := GroupByBackend(part.spec, explicitBackend, e.registry.Current())
		if err != nil {
			return err
		}
		for _, subset := range subsets {
			expanded, err := e.expandSpecification(subset.Options, subset.Backend, part.explicit)
			if err != nil {
				return err
			}
			out.merge(subset.Backend, expanded)
		}
	}
	return nil
}

// groupArgs turns Request.Groups into a specification, addressing either
// the target's own identifier or the targets named inside each group.
func (e *Engine) groupArgs(req Request) (Specification, error) {
	groups, err := groupKeywordArgs("", req.Groups)
	if err != nil {
		return nil, err
	}
	targeted, err := splitTargets(groups)
	if err != nil {
		return nil, err
	}
	if targeted != nil {
		return targeted, nil
	}
	if req.Target == nil {
		return nil, &ConfigurationError{Reason: "group keyword arguments need a target"}
	}
	return Specification{req.Target.Identifier().String(): groups}, nil
}

// splitTargets regroups group keywords keyed by target identifiers, such as
// {"style": {"Image.Foo": {"cmap": "gray"}}}, into a specification. It
// returns nil when no group is keyed by target. A group is keyed by target
// when every key starts with an upper case letter; empty groups are plain.
func splitTargets(groups Grouped) (Specification, error) {
	var targets, plain []Group
	for _, group := range slices.Sorted(maps.Keys(groups)) {
		keywords := groups[group]
		if len(keywords) == 0 {
			plain = append(plain, group)
			continue
		}
		upper := 0
		for keyword := range keywords {
			if isTargetKey(keyword) {
				upper++
			}
		}
		switch upper {
		case 0:
			plain = append(plain, group)
		case len(keywords):
			targets = append(targets, group)
		default:
			return nil, &ConfigurationError{Key: string(group), Reason: "cannot mix target keys such as 'Image' with plain keywords"}
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}
	if len(plain) > 0 {
		return nil, &ConfigurationError{Key: string(plain[0]), Reason: "cannot mix target keys such as 'Image' with plain keywords"}
	}

	spec := Specification{}
	for _, group := range targets {
		for _, key := range groups[group].Names() {
			keywords, err := keywordMapping(string(group)+"."+key, groups[group][key])
			if err != nil {
				return nil, err
			}
			if spec[key] == nil {
				spec[key] = Grouped{}
			}
			spec[key][group] = keywords
		}
	}
	return spec, nil
}

func isTargetKey(key string) bool {
	r, _ := utf8.DecodeRuneInString(key)
	return unicode.IsUpper(r)
}

// normalizeRaw splits raw entries into grouped and flat specifications. An
// entry is grouped when every key names an option group.
func normalizeRaw(raw RawSpecification) (Specification, FlatSpecification, error) {
	grouped := Specification{}
	flat := FlatSpecification{}
	for _, key := range slices.Sorted(maps.Keys(raw)) {
		entry := raw[key]
		groupKeys := 0
		for name := range entry {
			if _, ok := ParseGroup(name); ok {
				groupKeys++
			}
		}
		switch {
		case groupKeys == 0:
			flat[key] = Keywords(maps.Clone(entry))
		case groupKeys == len(entry):
			groups, err := groupKeywordArgs(key, entry)
			if err != nil {
				return nil, nil, err
			}
			grouped[key] = groups
		default:
			return nil, nil, &ConfigurationError{Key: key, Reason: "entry mixes option groups with plain keywords"}
		}
	}
	return grouped, flat, nil
}

// groupKeywordArgs validates group keyword arguments: every key must be an
// option group and every value a keyword mapping. Errors are reported
// against owner when set, else against the group name.
func groupKeywordArgs(owner string, args map[string]any) (Grouped, error) {
	grouped := Grouped{}
	for _, name := range slices.Sorted(maps.Keys(args)) {
		key := name
		if owner != "" {
			key = owner + "." + name
		}
		group, ok := ParseGroup(name)
		if !ok {
			return nil, &ConfigurationError{Key: key, Reason: "unrecognized option group"}
		}
		keywords, err := keywordMapping(key, args[name])
		if err != nil {
			return nil, err
		}
		grouped[group] = keywords
	}
	return grouped, nil
}

// keywordMapping copies value when it is a keyword mapping.
func keywordMapping(key string, value any) (Keywords, error) {
	switch value := value.(type) {
	case Keywords:
		if value != nil {
			return value.Clone(), nil
		}
	case map[string]any:
		if value != nil {
			return Keywords(maps.Clone(value)), nil
		}
	}
	return nil, &ConfigurationError{Key: key, Reason: fmt.Sprintf("group value must be a mapping, got %T", value)}
}

func mergeSpecifications(weak, strong Specification) Specification {
	out := weak.Clone()
	if out == nil {
		out = Specification{}
	}
	for key, grouped := range strong {
		out[key] = layering.MergeLayers(grouped.Clone(), out[key])
	}
	return out
}

func descriptorsFrom(perBackend map[string]Expanded) []Descriptor {
	var out []Descriptor
	for _, backend := range slices.Sorted(maps.Keys(perBackend)) {
		for _, key := range perBackend[backend].Keys() {
			out = append(out, Descriptor{Key: key, Backend: backend, Options: perBackend[backend][key].Clone()})
		}
	}
	return out
}

func expandedPayload(expanded Expanded) map[string]any {
	payload := make(map[string]any, len(expanded))
	for key, grouped := range expanded {
		groups := map[string]any{}
		for group, keywords := range grouped {
			if len(keywords) > 0 {
				groups[string(group)] = map[string]any(keywords.Clone())
			}
		}
		payload[key] = groups
	}
	return payload
}

// selectBackend returns backend and whether it was named by the caller, or
// the current backend when it was not.
func (e *Engine) selectBackend(backend string) (string, bool) {
	if backend != "" {
		return backend, true
	}
	return e.registry.Current(), false
}

func (e *Engine) backendFor(preferred ...string) string {
	for _, backend := range preferred {
		if backend != "" {
			return backend
		}
	}
	return e.registry.Current()
}

func (e *Engine) table(backend string) (OptionTable, error) {
	if backend == "" {
		return nil, ErrNoBackend
	}
	table, ok := e.registry.Table(backend)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotLoaded, backend)
	}
	return table, nil
}

// backendsAccepting lists loaded backends other than exclude that accept
// keyword for typ.
func (e *Engine) backendsAccepting(typ, keyword, exclude string) []string {
	var out []string
	for _, backend := range e.registry.Loaded() {
		if backend == exclude {
			continue
		}
		if table, ok := e.registry.TypeTable(backend, typ); ok && table.Accepts(keyword) {
			out = append(out, backend)
		}
	}
	return out
}

func (e *Engine) withSuggestions(err error) error {
	var invalid *InvalidOptionError
	if errors.As(err, &invalid) {
		return invalid.WithSuggestions(e.cfg.matcher)
	}
	return err
}

func (e *Engine) logger() *slog.Logger {
	if e.cfg.logger != nil {
		return e.cfg.logger
	}
	return slog.New(slog.DiscardHandler)
}

// evaluatorLogger falls back to debug records on the engine logger.
func (e *Engine) evaluatorLogger() EvaluatorLogger {
	if e.cfg.evaluatorLogger != nil {
		return e.cfg.evaluatorLogger
	}
	return SlogEvaluatorLogger(e.cfg.logger)
}
