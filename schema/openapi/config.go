package openapi

import (
	"cmp"
	"maps"
	"strings"
)

// Config describes the generated document. It is also the schema.openapi
// section of the configuration file; blank fields keep the defaults.
type Config struct {
	OpenAPIVersion string `mapstructure:"openapi_version"`
	Title          string `mapstructure:"title"`
	Version        string `mapstructure:"version"`
	Description    string `mapstructure:"description"`
	// Path is the documented request path. "{backend}" is replaced with the
	// backend name.
	Path        string `mapstructure:"path"`
	ContentType string `mapstructure:"content_type"`
	// AllowUnknownKeywords lets group schemas accept keywords outside the
	// option table.
	AllowUnknownKeywords bool `mapstructure:"allow_unknown_keywords"`
	// Keywords holds value schemas for keywords, such as
	// {"width": {"type": "integer"}}. Keywords without one accept any value.
	Keywords map[string]map[string]any `mapstructure:"keywords"`
}

// DefaultConfig returns the settings used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		OpenAPIVersion: "3.0.3",
		Title:          "Plot Options",
		Version:        "1.0.0",
		Path:           "/options/{backend}",
		ContentType:    "application/json",
	}
}

// over returns c with blank fields taken from base. Keyword schemas from c
// replace those of base one keyword at a time.
func (c Config) over(base Config) Config {
	out := Config{
		OpenAPIVersion:       cmp.Or(strings.TrimSpace(c.OpenAPIVersion), base.OpenAPIVersion),
		Title:                cmp.Or(strings.TrimSpace(c.Title), base.Title),
		Version:              cmp.Or(strings.TrimSpace(c.Version), base.Version),
		Description:          cmp.Or(strings.TrimSpace(c.Description), base.Description),
		Path:                 cmp.Or(strings.TrimSpace(c.Path), base.Path),
		ContentType:          cmp.Or(strings.TrimSpace(c.ContentType), base.ContentType),
		AllowUnknownKeywords: c.AllowUnknownKeywords || base.AllowUnknownKeywords,
	}
	if len(base.Keywords)+len(c.Keywords) > 0 {
		out.Keywords = make(map[string]map[string]any, len(base.Keywords)+len(c.Keywords))
		maps.Copy(out.Keywords, base.Keywords)
		for keyword, schema := range c.Keywords {
			out.Keywords[keyword] = maps.Clone(schema)
		}
	}
	return out
}

// GeneratorOption adjusts the generator Config.
type GeneratorOption func(*Config)

// WithConfig overlays the non-blank fields of c.
func WithConfig(c Config) GeneratorOption {
	return func(cfg *Config) {
		*cfg = c.over(*cfg)
	}
}

// WithOpenAPIVersion overrides the OpenAPI version string.
func WithOpenAPIVersion(version string) GeneratorOption {
	return WithConfig(Config{OpenAPIVersion: version})
}

// WithInfo sets info.title, info.version and info.description.
func WithInfo(title, version, description string) GeneratorOption {
	return WithConfig(Config{Title: title, Version: version, Description: description})
}

// WithPath overrides the documented request path.
func WithPath(path string) GeneratorOption {
	return WithConfig(Config{Path: path})
}

// WithContentType overrides the request media type.
func WithContentType(contentType string) GeneratorOption {
	return WithConfig(Config{ContentType: contentType})
}

// WithAdditionalKeywords lets group schemas accept unknown keywords.
func WithAdditionalKeywords() GeneratorOption {
	return WithConfig(Config{AllowUnknownKeywords: true})
}

// WithKeywordSchema documents the values accepted for keyword.
func WithKeywordSchema(keyword string, schema map[string]any) GeneratorOption {
	return WithConfig(Config{Keywords: map[string]map[string]any{keyword: schema}})
}
