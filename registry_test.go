package opts

import (
	"errors"
	"slices"
	"testing"
)

func TestRegistryStartsUnselected(t *testing.T) {
	registry := NewBackendRegistry()
	if registry.Current() != "" || len(registry.Loaded()) != 0 {
		t.Fatalf("expected empty registry, got current=%q loaded=%v", registry.Current(), registry.Loaded())
	}
	if _, ok := registry.Table("bokeh"); ok {
		t.Fatalf("expected no table before load")
	}
}

func TestRegistryLoadActivateUnload(t *testing.T) {
	registry := NewBackendRegistry()
	var events []BackendEvent
	registry.OnChange(func(event BackendEvent) {
		events = append(events, event)
	})

	for _, spec := range fixtureSpecs(t) {
		if err := registry.Load(spec); err != nil {
			t.Fatalf("load %s: %v", spec.Name, err)
		}
	}
	if got := registry.Loaded(); !slices.Equal(got, []string{"bokeh", "matplotlib"}) {
		t.Fatalf("unexpected loaded backends %v", got)
	}
	if registry.Current() != "" {
		t.Fatalf("loading must not select a backend, got %q", registry.Current())
	}

	if err := registry.Activate("matplotlib"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := registry.Activate("plotly"); !errors.Is(err, ErrBackendNotLoaded) {
		t.Fatalf("expected not loaded error, got %v", err)
	}

	if err := registry.Unload("bokeh"); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if registry.Current() != "matplotlib" {
		t.Fatalf("unloading another backend must keep the selection, got %q", registry.Current())
	}
	if err := registry.Unload("matplotlib"); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if registry.Current() != "" {
		t.Fatalf("expected selection cleared with its backend, got %q", registry.Current())
	}
	if err := registry.Unload("bokeh"); !errors.Is(err, ErrBackendNotLoaded) {
		t.Fatalf("expected not loaded error, got %v", err)
	}

	want := []BackendEvent{
		{Kind: BackendLoaded, Backend: "bokeh"},
		{Kind: BackendLoaded, Backend: "matplotlib"},
		{Kind: BackendActivated, Backend: "matplotlib"},
		{Kind: BackendUnloaded, Backend: "bokeh"},
		{Kind: BackendUnloaded, Backend: "matplotlib"},
	}
	if !slices.Equal(events, want) {
		t.Fatalf("unexpected events:\nwant %v\n got %v", want, events)
	}
}

func TestRegistryTablesAreCopies(t *testing.T) {
	registry := NewBackendRegistry()
	spec := BackendSpec{Name: "bokeh", Table: OptionTable{"Curve": {GroupStyle: NewKeywordSet("color")}}}
	if err := registry.Load(spec); err != nil {
		t.Fatalf("load: %v", err)
	}
	spec.Table["Curve"][GroupStyle]["alpha"] = struct{}{}

	table, _ := registry.Table("bokeh")
	if table["Curve"][GroupStyle].Has("alpha") {
		t.Fatalf("registry table aliases the loaded spec")
	}
	table["Curve"][GroupStyle]["alpha"] = struct{}{}
	types, _ := registry.TypeTable("bokeh", "Curve")
	if types.Accepts("alpha") {
		t.Fatalf("registry table aliases returned copies")
	}
}

func TestRegistryRejectsInvalidTables(t *testing.T) {
	cases := map[string]BackendSpec{
		"empty name":      {Table: OptionTable{}},
		"unknown group":   {Name: "bokeh", Table: OptionTable{"Curve": {Group("layout"): NewKeywordSet("width")}}},
		"dotted type":     {Name: "bokeh", Table: OptionTable{"Curve.Sine": {GroupStyle: NewKeywordSet("color")}}},
		"ambiguous":       {Name: "bokeh", Table: OptionTable{"Curve": {GroupStyle: NewKeywordSet("alpha"), GroupPlot: NewKeywordSet("alpha")}}},
		"rule expression": {Name: "bokeh", Table: OptionTable{}, Rules: []KeywordRule{{Keyword: "width"}}},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			registry := NewBackendRegistry()
			if err := registry.Load(spec); !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if len(registry.Loaded()) != 0 {
				t.Fatalf("rejected table must not be loaded")
			}
		})
	}
}

func TestTypeTableGroupOf(t *testing.T) {
	table := TypeTable{
		GroupStyle:  NewKeywordSet("color"),
		GroupOutput: NewKeywordSet("backend"),
	}
	if group, ok := table.GroupOf("color"); !ok || group != GroupStyle {
		t.Fatalf("expected style, got %q %v", group, ok)
	}
	if group, ok := table.GroupOf("backend"); !ok || group != GroupOutput {
		t.Fatalf("expected output, got %q %v", group, ok)
	}
	if table.Accepts("width") {
		t.Fatalf("width should not be accepted")
	}
	if got := table.Keywords(); !slices.Equal(got, []string{"backend", "color"}) {
		t.Fatalf("unexpected keywords %v", got)
	}
}
