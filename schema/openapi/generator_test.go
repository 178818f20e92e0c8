package openapi

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	opts "github.com/goliatone/go-plotopts"
)

func fixtureTable() opts.OptionTable {
	return opts.OptionTable{
		"Curve": {
			opts.GroupStyle: opts.NewKeywordSet("color", "linewidth"),
			opts.GroupPlot:  opts.NewKeywordSet("width"),
		},
		"Scatter": {
			opts.GroupStyle: opts.NewKeywordSet("size"),
			opts.GroupNorm:  opts.NewKeywordSet("framewise"),
		},
	}
}

func TestNewGeneratorOptions(t *testing.T) {
	custom := NewGenerator(
		WithOpenAPIVersion("3.1.0"),
		WithInfo("Custom Service", "2.0.0", "custom schema"),
		WithPath("/plots/{backend}/options"),
		WithContentType("application/yaml"),
		WithAdditionalKeywords(),
		WithKeywordSchema("width", map[string]any{"type": "integer"}),
	)

	internal, ok := custom.(generator)
	if !ok {
		t.Fatalf("expected generator implementation, got %T", custom)
	}
	want := Config{
		OpenAPIVersion:       "3.1.0",
		Title:                "Custom Service",
		Version:              "2.0.0",
		Description:          "custom schema",
		Path:                 "/plots/{backend}/options",
		ContentType:          "application/yaml",
		AllowUnknownKeywords: true,
		Keywords:             map[string]map[string]any{"width": {"type": "integer"}},
	}
	if !reflect.DeepEqual(want, internal.config) {
		t.Fatalf("config mismatch:\nwant: %+v\n got: %+v", want, internal.config)
	}

	defaults := NewGenerator(WithOpenAPIVersion(" "), WithInfo("", "", "")).(generator)
	if !reflect.DeepEqual(DefaultConfig(), defaults.config) {
		t.Fatalf("expected blank options to keep defaults, got %+v", defaults.config)
	}
}

func TestGeneratorAppliesConfigKeywordSchemas(t *testing.T) {
	gen := NewGenerator(WithConfig(Config{
		Path:     "/v1/{backend}",
		Keywords: map[string]map[string]any{"color": {"type": "string"}, "width": {"type": "integer", "minimum": 100}},
	}))
	doc, err := gen.Generate("bokeh", fixtureTable())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	document := doc.Document.(map[string]any)
	if _, ok := document["paths"].(map[string]any)["/v1/bokeh"]; !ok {
		t.Fatalf("expected configured path, got %v", document["paths"])
	}
	curve := document["components"].(map[string]any)["schemas"].(map[string]any)["Curve"].(map[string]any)
	groups := curve["properties"].(map[string]any)
	style := groups["style"].(map[string]any)["properties"].(map[string]any)
	plot := groups["plot"].(map[string]any)["properties"].(map[string]any)
	if !reflect.DeepEqual(style["color"], map[string]any{"type": "string"}) {
		t.Fatalf("unexpected color schema %v", style["color"])
	}
	if !reflect.DeepEqual(style["linewidth"], map[string]any{}) {
		t.Fatalf("expected open schema for linewidth, got %v", style["linewidth"])
	}
	if plot["width"].(map[string]any)["minimum"] != 100 {
		t.Fatalf("unexpected width schema %v", plot["width"])
	}
}

func TestGeneratorMatchesFixture(t *testing.T) {
	doc, err := NewGenerator().Generate("bokeh", fixtureTable())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if doc.Format != opts.SchemaFormatOpenAPI || doc.Backend != "bokeh" {
		t.Fatalf("unexpected document header %+v", doc)
	}

	payload, err := os.ReadFile(filepath.Join("testdata", "bokeh_document.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	var want map[string]any
	if err := json.Unmarshal(payload, &want); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	assertJSONEqual(t, want, doc.Document)
}

func TestGeneratorRequiresBackend(t *testing.T) {
	if _, err := NewGenerator().Generate("", fixtureTable()); err == nil {
		t.Fatalf("expected error for empty backend")
	}
}

func TestGeneratorConcurrentAccess(t *testing.T) {
	gen := NewGenerator()
	table := fixtureTable()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := gen.Generate("bokeh", table); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("generate: %v", err)
	}
}

func assertJSONEqual(t *testing.T, want map[string]any, got any) {
	t.Helper()
	payload, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var normalized map[string]any
	if err := json.Unmarshal(payload, &normalized); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(want, normalized) {
		pretty, _ := json.MarshalIndent(normalized, "", "  ")
		t.Fatalf("document mismatch, got:\n%s", pretty)
	}
}
