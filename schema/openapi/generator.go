// Package openapi renders backend option tables as OpenAPI documents with one
// schema component per element type.
package openapi

import (
	"fmt"
	"maps"
	"regexp"
	"strings"

	opts "github.com/goliatone/go-plotopts"
)

type generator struct {
	config Config
}

// NewGenerator constructs an OpenAPI-compatible schema generator.
func NewGenerator(options ...GeneratorOption) opts.SchemaGenerator {
	cfg := DefaultConfig()
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	return generator{config: cfg}
}

// Option wires the OpenAPI schema generator into an Engine.
func Option(options ...GeneratorOption) opts.Option {
	return opts.WithSchemaGenerator(NewGenerator(options...))
}

var componentName = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

func (g generator) Generate(backend string, table opts.OptionTable) (opts.SchemaDocument, error) {
	if strings.TrimSpace(backend) == "" {
		return opts.SchemaDocument{}, fmt.Errorf("openapi: backend name is required")
	}
	schemas := map[string]any{}
	properties := map[string]any{}
	for _, typ := range table.Types() {
		name := componentName.ReplaceAllString(typ, "_")
		schemas[name] = g.elementSchema(typ, table[typ])
		properties[typ] = map[string]any{"$ref": "#/components/schemas/" + name}
	}

	request := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": true,
		"description":          "Options keyed by Type[.Group][.Label]; keys are matched by their element type.",
	}
	path := strings.ReplaceAll(g.config.Path, "{backend}", backend)
	document := map[string]any{
		"openapi": g.config.OpenAPIVersion,
		"info":    g.info(backend),
		"paths": map[string]any{
			path: map[string]any{
				"post": map[string]any{
					"operationId": "post:" + path,
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							g.config.ContentType: map[string]any{"schema": request},
						},
					},
					"responses": map[string]any{
						"204": map[string]any{"description": "Options applied"},
						"422": map[string]any{"description": "Invalid option"},
					},
				},
			},
		},
		"components": map[string]any{"schemas": schemas},
	}
	return opts.SchemaDocument{
		Format:   opts.SchemaFormatOpenAPI,
		Backend:  backend,
		Document: document,
	}, nil
}

func (g generator) info(backend string) map[string]any {
	info := map[string]any{
		"title":   g.config.Title,
		"version": g.config.Version,
	}
	if g.config.Description != "" {
		info["description"] = g.config.Description
	}
	info["x-backend"] = backend
	return info
}

func (g generator) elementSchema(typ string, table opts.TypeTable) map[string]any {
	groups := map[string]any{}
	for _, group := range opts.Groups() {
		keywords, ok := table[group]
		if !ok {
			continue
		}
		properties := map[string]any{}
		for _, keyword := range keywords.Sorted() {
			properties[keyword] = g.keywordSchema(keyword)
		}
		groups[group.String()] = map[string]any{
			"type":                 "object",
			"properties":           properties,
			"additionalProperties": g.config.AllowUnknownKeywords,
		}
	}
	groups[opts.GroupOutput.String()] = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"backend": map[string]any{"type": "string"},
		},
		"additionalProperties": false,
	}
	return map[string]any{
		"type":                 "object",
		"title":                typ,
		"properties":           groups,
		"additionalProperties": false,
	}
}

func (g generator) keywordSchema(keyword string) map[string]any {
	schema := maps.Clone(g.config.Keywords[keyword])
	if schema == nil {
		schema = map[string]any{}
	}
	return schema
}
