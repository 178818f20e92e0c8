// Package config loads backend option tables and engine settings from a
// configuration file and the environment.
package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	opts "github.com/goliatone/go-plotopts"
	"github.com/goliatone/go-plotopts/pkg/activity"
	"github.com/goliatone/go-plotopts/schema/openapi"
)

// EnvPrefix prefixes environment overrides, e.g. PLOTOPTS_BACKEND.
const EnvPrefix = "PLOTOPTS"

// Config holds engine configuration.
type Config struct {
	Backend     string            `mapstructure:"backend"`
	Suggestions SuggestionsConfig `mapstructure:"suggestions"`
	Rules       RulesConfig       `mapstructure:"rules"`
	Log         LogConfig         `mapstructure:"log"`
	Activity    activity.Config   `mapstructure:"activity"`
	Schema      SchemaConfig      `mapstructure:"schema"`
	Backends    []BackendConfig   `mapstructure:"backends"`
}

// SchemaConfig tunes the documents emitted by the schema command.
type SchemaConfig struct {
	OpenAPI openapi.Config `mapstructure:"openapi"`
}

// SuggestionsConfig tunes the keyword matcher.
type SuggestionsConfig struct {
	Metric string  `mapstructure:"metric"`
	Cutoff float64 `mapstructure:"cutoff"`
	Limit  int     `mapstructure:"limit"`
}

// RulesConfig selects the keyword rule evaluator: expr, cel or js.
type RulesConfig struct {
	Engine string `mapstructure:"engine"`
}

// LogConfig controls the slog handler built by Logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BackendConfig declares one backend. Element types are listed rather than
// keyed because configuration keys are case-insensitive.
type BackendConfig struct {
	Name     string          `mapstructure:"name"`
	Elements []ElementConfig `mapstructure:"elements"`
	Rules    []RuleConfig    `mapstructure:"rules"`
}

// ElementConfig lists the keywords one element type accepts per group.
type ElementConfig struct {
	Type   string   `mapstructure:"type"`
	Style  []string `mapstructure:"style"`
	Plot   []string `mapstructure:"plot"`
	Norm   []string `mapstructure:"norm"`
	Output []string `mapstructure:"output"`
}

// RuleConfig constrains the values of a keyword.
type RuleConfig struct {
	Type    string `mapstructure:"type"`
	Keyword string `mapstructure:"keyword"`
	Expr    string `mapstructure:"expr"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("backend", "")
	v.SetDefault("suggestions.metric", "levenshtein")
	v.SetDefault("suggestions.cutoff", 0.0)
	v.SetDefault("suggestions.limit", 0)
	v.SetDefault("rules.engine", "expr")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("activity.enabled", true)
	v.SetDefault("activity.channel", activity.DefaultChannel)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// Load reads path (a leading ~ is expanded), or $PLOTOPTS_CONFIG, or plotopts.{yaml,toml,json} from the
// working directory and ~/.config/plotopts. A missing file is only an error
// when it was named explicitly.
func Load(path string) (Config, error) {
	v := newViper()
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return Config{}, fmt.Errorf("expand config path %q: %w", path, err)
		}
		path = expanded
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	} else {
		v.SetConfigName("plotopts")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "plotopts"))
		}
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return decode(v)
}

// LoadReader reads configuration of the given format ("yaml", "toml" or
// "json") from r.
func LoadReader(r io.Reader, format string) (Config, error) {
	v := newViper()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// BackendSpecs converts the backend declarations into registry specs.
func (c Config) BackendSpecs() ([]opts.BackendSpec, error) {
	specs := make([]opts.BackendSpec, 0, len(c.Backends))
	seen := map[string]struct{}{}
	for i, backend := range c.Backends {
		name := strings.TrimSpace(backend.Name)
		if name == "" {
			return nil, &opts.ConfigurationError{Key: fmt.Sprintf("backends[%d].name", i), Reason: "backend name is required"}
		}
		if _, dup := seen[name]; dup {
			return nil, &opts.ConfigurationError{Key: fmt.Sprintf("backends[%d].name", i), Reason: fmt.Sprintf("backend %q declared twice", name)}
		}
		seen[name] = struct{}{}

		table := opts.OptionTable{}
		for j, element := range backend.Elements {
			typ := strings.TrimSpace(element.Type)
			if typ == "" {
				return nil, &opts.ConfigurationError{Key: fmt.Sprintf("backends[%d].elements[%d].type", i, j), Reason: "element type is required"}
			}
			types := table[typ]
			if types == nil {
				types = opts.TypeTable{}
				table[typ] = types
			}
			for group, keywords := range map[opts.Group][]string{
				opts.GroupStyle:  element.Style,
				opts.GroupPlot:   element.Plot,
				opts.GroupNorm:   element.Norm,
				opts.GroupOutput: element.Output,
			} {
				if len(keywords) == 0 {
					continue
				}
				if types[group] == nil {
					types[group] = opts.NewKeywordSet()
				}
				for _, keyword := range keywords {
					types[group][strings.TrimSpace(keyword)] = struct{}{}
				}
			}
		}

		rules := make([]opts.KeywordRule, 0, len(backend.Rules))
		for _, rule := range backend.Rules {
			rules = append(rules, opts.KeywordRule{Type: rule.Type, Keyword: rule.Keyword, Expr: rule.Expr})
		}
		specs = append(specs, opts.BackendSpec{Name: name, Table: table, Rules: rules})
	}
	return specs, nil
}

// Matcher builds the keyword matcher described by the suggestions section.
func (c Config) Matcher() (opts.Matcher, error) {
	similarity, err := opts.SimilarityByName(c.Suggestions.Metric)
	if err != nil {
		return opts.Matcher{}, err
	}
	return opts.Matcher{Similarity: similarity, Cutoff: c.Suggestions.Cutoff, Limit: c.Suggestions.Limit}, nil
}

// Logger builds a slog logger writing to w.
func (c Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// NewEngine builds an engine from c and loads every declared backend. The
// configured backend is activated when set. Extra options are applied last.
func NewEngine(ctx context.Context, c Config, options ...opts.Option) (*opts.Engine, error) {
	specs, err := c.BackendSpecs()
	if err != nil {
		return nil, err
	}
	matcher, err := c.Matcher()
	if err != nil {
		return nil, err
	}
	cache := opts.NewMemoryProgramCache()
	evaluator, err := opts.NewEvaluatorByName(c.Rules.Engine, cache, nil)
	if err != nil {
		return nil, err
	}

	base := []opts.Option{
		opts.WithMatcher(matcher),
		opts.WithProgramCache(cache),
		opts.WithEvaluator(evaluator),
		opts.WithActivityConfig(c.Activity),
	}
	engine := opts.NewEngine(append(base, options...)...)
	for _, spec := range specs {
		if err := engine.LoadBackend(ctx, spec); err != nil {
			return nil, fmt.Errorf("load backend %q: %w", spec.Name, err)
		}
	}
	active := c.Backend
	if active == "" && len(specs) > 0 {
		active = specs[0].Name
	}
	if active != "" {
		if err := engine.Registry().Activate(active); err != nil {
			return nil, err
		}
	}
	return engine, nil
}
