package opts

import (
	"maps"
	"slices"
	"time"
)

// Group names a semantic category of option keywords.
type Group string

const (
	// GroupStyle holds visual appearance keywords (color, linewidth, ...).
	GroupStyle Group = "style"
	// GroupPlot holds layout and behaviour keywords (width, xaxis, ...).
	GroupPlot Group = "plot"
	// GroupNorm holds data normalization switches (framewise, axiswise).
	GroupNorm Group = "norm"
	// GroupOutput is reserved for backend routing metadata.
	GroupOutput Group = "output"
)

// sortedGroups is the fixed, name-sorted iteration order used when assigning
// keywords to groups.
var sortedGroups = []Group{GroupNorm, GroupOutput, GroupPlot, GroupStyle}

// Groups returns every option group sorted by name.
func Groups() []Group {
	return slices.Clone(sortedGroups)
}

// ParseGroup reports whether name is one of the fixed option groups.
func ParseGroup(name string) (Group, bool) {
	group := Group(name)
	return group, group.Valid()
}

// Valid reports whether g is one of the fixed option groups.
func (g Group) Valid() bool {
	return slices.Contains(sortedGroups, g)
}

func (g Group) String() string {
	return string(g)
}

// Keywords is a flat keyword to value mapping.
type Keywords map[string]any

// Clone returns a shallow copy of k.
func (k Keywords) Clone() Keywords {
	if k == nil {
		return nil
	}
	return maps.Clone(k)
}

// Names returns the keyword names sorted alphabetically.
func (k Keywords) Names() []string {
	return slices.Sorted(maps.Keys(k))
}

// Grouped is the resolved form of one identifier's options: keywords
// partitioned by option group.
type Grouped map[Group]Keywords

// NewGrouped returns a Grouped value where every group is present and empty.
func NewGrouped() Grouped {
	grouped := make(Grouped, len(sortedGroups))
	for _, group := range sortedGroups {
		grouped[group] = Keywords{}
	}
	return grouped
}

// Clone copies g and each of its keyword maps.
func (g Grouped) Clone() Grouped {
	if g == nil {
		return nil
	}
	out := make(Grouped, len(g))
	for group, keywords := range g {
		out[group] = keywords.Clone()
	}
	return out
}

// Empty reports whether no group carries a keyword.
func (g Grouped) Empty() bool {
	for _, keywords := range g {
		if len(keywords) > 0 {
			return false
		}
	}
	return true
}

// Merge returns g layered over weak. Keyword values are replaced whole, so a
// mapping-valued keyword from g hides the weak mapping instead of merging.
func (g Grouped) Merge(weak Grouped) Grouped {
	if g == nil && weak == nil {
		return nil
	}
	out := weak.Clone()
	if out == nil {
		out = make(Grouped, len(g))
	}
	for group, keywords := range g {
		merged := out[group].Clone()
		if merged == nil {
			merged = make(Keywords, len(keywords))
		}
		maps.Copy(merged, keywords)
		out[group] = merged
	}
	return out
}

// Without returns a copy of g lacking group.
func (g Grouped) Without(group Group) Grouped {
	out := g.Clone()
	delete(out, group)
	return out
}

// Specification maps identifier strings (Type[.Group][.Label]) to grouped
// options. It is the input and output form of GroupByBackend.
type Specification map[string]Grouped

// Clone deep copies the specification down to the keyword maps.
func (s Specification) Clone() Specification {
	if s == nil {
		return nil
	}
	out := make(Specification, len(s))
	for key, grouped := range s {
		out[key] = grouped.Clone()
	}
	return out
}

// FlatSpecification maps identifier strings to ungrouped keywords. It is the
// input form of Expand.
type FlatSpecification map[string]Keywords

// Clone copies the specification and its keyword maps.
func (s FlatSpecification) Clone() FlatSpecification {
	if s == nil {
		return nil
	}
	out := make(FlatSpecification, len(s))
	for key, keywords := range s {
		out[key] = keywords.Clone()
	}
	return out
}

// Expanded maps identifier strings to validated grouped options with every
// group key present.
type Expanded map[string]Grouped

// Keys returns the identifier strings sorted alphabetically.
func (e Expanded) Keys() []string {
	return slices.Sorted(maps.Keys(e))
}

// RawSpecification is user input where each entry is either grouped
// (every key is a group name mapping to keywords) or flat (keywords only).
type RawSpecification map[string]map[string]any

// SchemaFormat identifies the representation a schema document encodes.
type SchemaFormat string

const (
	// SchemaFormatDescriptors represents the flattened field descriptors.
	SchemaFormatDescriptors SchemaFormat = "descriptors"
	// SchemaFormatOpenAPI represents OpenAPI-compatible JSON Schema documents.
	SchemaFormatOpenAPI SchemaFormat = "openapi"
)

// SchemaDocument encapsulates a generated schema output alongside its format
// identifier. Implementations must ensure Document is JSON-serialisable.
type SchemaDocument struct {
	Format   SchemaFormat
	Backend  string
	Document any
}

// SchemaGenerator transforms a backend option table into a schema document.
// Implementations MUST be safe for concurrent use and return an empty document
// for an empty table.
type SchemaGenerator interface {
	Generate(backend string, table OptionTable) (SchemaDocument, error)
}

// RuleContext carries inputs needed when evaluating a keyword value rule.
type RuleContext struct {
	Value    any
	Keyword  string
	Element  string
	Backend  string
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) label() string {
	if ctx.Element == "" {
		return ctx.Keyword
	}
	return ctx.Element + "." + ctx.Keyword
}

// bindings returns the variables exposed to rule expressions.
func (ctx RuleContext) bindings() map[string]any {
	return map[string]any{
		"value":    ctx.Value,
		"keyword":  ctx.Keyword,
		"element":  ctx.Element,
		"backend":  ctx.Backend,
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	}
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}
