package opts

import (
	"errors"
	"testing"
)

type figureSnapshot struct {
	Title  string
	Width  *int
	Labels map[string]string
}

func intPtr(v int) *int {
	return &v
}

func TestIdentifierScopeNamesAndPriorities(t *testing.T) {
	cases := []struct {
		id     Identifier
		source Source
		name   string
		want   int
	}{
		{Identifier{Type: "Curve"}, SourceDefaults, "defaults:Curve", ScopePriorityTypeDefaults},
		{Identifier{Type: "Curve", Group: "Sine"}, SourceDefaults, "defaults:Curve.Sine", ScopePriorityGroupDefaults},
		{Identifier{Type: "Curve", Group: "Sine", Label: "Left"}, SourceDefaults, "defaults:Curve.Sine.Left", ScopePriorityLabelDefaults},
		{Identifier{Type: "Curve"}, SourceCustom, "custom:Curve", ScopePriorityType},
		{Identifier{Type: "Curve", Group: "Sine"}, SourceCustom, "custom:Curve.Sine", ScopePriorityGroup},
		{Identifier{Type: "Curve", Group: "Sine", Label: "Left"}, SourceCustom, "custom:Curve.Sine.Left", ScopePriorityLabel},
	}
	for _, tc := range cases {
		scope := IdentifierScope(tc.id, tc.source)
		if scope.Name != tc.name || scope.Priority != tc.want {
			t.Fatalf("%s %s: got %q at %d, want %q at %d", tc.source, tc.id, scope.Name, scope.Priority, tc.name, tc.want)
		}
		if scope.Source != tc.source || scope.Identifier != tc.id.String() {
			t.Fatalf("%s %s: unexpected scope %+v", tc.source, tc.id, scope)
		}
	}
}

func TestNewLayerDetachesSnapshot(t *testing.T) {
	snapshot := Grouped{GroupStyle: {"color": "red"}}

	layer := NewLayer(NewScope("custom:Curve", ScopePriorityType), snapshot).WithSnapshotID("opt-1")

	snapshot[GroupStyle]["color"] = "blue"
	if layer.Snapshot[GroupStyle]["color"] != "red" {
		t.Fatalf("expected layer snapshot to be detached; got %v", layer.Snapshot[GroupStyle]["color"])
	}
	if layer.SnapshotID != "opt-1" {
		t.Fatalf("snapshot id not set, got %q", layer.SnapshotID)
	}
}

func TestNewStackOrdersAndValidates(t *testing.T) {
	label := NewLayer(IdentifierScope(Identifier{Type: "Curve", Group: "Sine", Label: "Left"}, SourceCustom), Grouped{})
	group := NewLayer(IdentifierScope(Identifier{Type: "Curve", Group: "Sine"}, SourceCustom), Grouped{})
	defaults := NewLayer(IdentifierScope(Identifier{Type: "Curve"}, SourceDefaults), Grouped{})

	stack, err := NewStack(defaults, label, group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	layers := stack.Layers()
	wantOrder := []string{"custom:Curve.Sine.Left", "custom:Curve.Sine", "defaults:Curve"}
	for i, want := range wantOrder {
		if layers[i].Scope.Name != want {
			t.Fatalf("expected layer %d to be %q, got %q", i, want, layers[i].Scope.Name)
		}
	}

	if _, err := NewStack(label, NewLayer(NewScope("custom:Curve.Sine.Left", 1), Grouped{})); !errors.Is(err, ErrDuplicateScopeName) {
		t.Fatalf("expected duplicate scope name error, got %v", err)
	}
	if _, err := NewStack(NewLayer(NewScope("", 1), Grouped{})); !errors.Is(err, ErrScopeNameRequired) {
		t.Fatalf("expected scope name error, got %v", err)
	}
	if _, err := NewStack(
		NewLayer(NewScope("defaults:Curve", ScopePriorityTypeDefaults), Grouped{}),
		NewLayer(NewScope("defaults:Scatter", ScopePriorityTypeDefaults), Grouped{}),
	); !errors.Is(err, ErrPriorityOrder) {
		t.Fatalf("expected priority order error, got %v", err)
	}
}

func TestStackMergeStructSnapshots(t *testing.T) {
	defaults := NewLayer(NewScope("defaults:Curve", ScopePriorityTypeDefaults), figureSnapshot{
		Title:  "Curve",
		Width:  intPtr(300),
		Labels: map[string]string{"x": "time"},
	})
	group := NewLayer(NewScope("defaults:Curve.Sine", ScopePriorityGroupDefaults), figureSnapshot{
		Width: intPtr(600),
	})
	label := NewLayer(NewScope("custom:Curve.Sine.Left", ScopePriorityLabel), figureSnapshot{
		Labels: map[string]string{"y": "amplitude"},
	})

	stack, err := NewStack(defaults, label, group)
	if err != nil {
		t.Fatalf("stack validation failed: %v", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	if merged.Value.Title != "Curve" {
		t.Fatalf("expected unset title to be inherited, got %q", merged.Value.Title)
	}
	if merged.Value.Width == nil || *merged.Value.Width != 600 {
		t.Fatalf("expected Width pointer set to 600, got %+v", merged.Value.Width)
	}
	if merged.Value.Labels["x"] != "time" || merged.Value.Labels["y"] != "amplitude" {
		t.Fatalf("expected merged labels to combine maps, got %+v", merged.Value.Labels)
	}
}

func TestStackMergeGroupedReplacesKeywordValues(t *testing.T) {
	defaults := NewLayer(NewScope("defaults:Curve", ScopePriorityTypeDefaults), Grouped{
		GroupStyle: {"color": "blue", "alpha": 0.5},
		GroupPlot:  {"tools": map[string]any{"hover": true, "zoom": true}},
	})
	custom := NewLayer(NewScope("custom:Curve", ScopePriorityType), Grouped{
		GroupStyle: {"color": "red"},
		GroupPlot:  {"tools": map[string]any{"pan": true}},
	})

	stack, err := NewStack(defaults, custom)
	if err != nil {
		t.Fatalf("stack validation failed: %v", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if merged.Value[GroupStyle]["color"] != "red" || merged.Value[GroupStyle]["alpha"] != 0.5 {
		t.Fatalf("expected keywords merged per group, got %+v", merged.Value[GroupStyle])
	}
	tools, _ := merged.Value[GroupPlot]["tools"].(map[string]any)
	if len(tools) != 1 || tools["pan"] != true {
		t.Fatalf("expected mapping keyword replaced whole, got %+v", tools)
	}

	tools["zoom"] = true
	layers := stack.Layers()
	if kept, _ := layers[0].Snapshot[GroupPlot]["tools"].(map[string]any); len(kept) != 1 {
		t.Fatalf("expected merged value detached from the stack, got %+v", kept)
	}
}

func TestStackLayersAreCopies(t *testing.T) {
	stack, err := NewStack(NewLayer(NewScope("custom:Curve", ScopePriorityType), Grouped{GroupStyle: {"color": "red"}}))
	if err != nil {
		t.Fatalf("stack validation failed: %v", err)
	}

	layers := stack.Layers()
	layers[0].Snapshot[GroupStyle]["color"] = "mutated"

	if next := stack.Layers(); next[0].Snapshot[GroupStyle]["color"] != "red" {
		t.Fatalf("expected snapshot to remain 'red', got %v", next[0].Snapshot[GroupStyle]["color"])
	}
}

func TestStackLenAndEmpty(t *testing.T) {
	stack, err := NewStack[Grouped]()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stack.Len() != 0 {
		t.Fatalf("empty stack len expected 0, got %d", stack.Len())
	}
	if _, err := stack.Merge(); !errors.Is(err, ErrEmptyStack) {
		t.Fatalf("expected merge to fail for empty stack, got %v", err)
	}
	if layers := stack.Layers(); layers != nil {
		t.Fatalf("expected nil layers for empty stack, got %+v", layers)
	}
}
