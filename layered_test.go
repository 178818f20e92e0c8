package opts

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func sineElement() *Element {
	return &Element{Type: "Curve", Group: "Sine", OptionID: "opt-7"}
}

func TestResolveElementLayersDefaultsAndCustom(t *testing.T) {
	defaults := Expanded{
		"Curve":      {GroupStyle: {"color": "blue", "alpha": 0.5}, GroupPlot: {"width": 300}},
		"Curve.Sine": {GroupStyle: {"color": "green"}},
	}
	custom := Expanded{
		"Curve": {GroupPlot: {"width": 600}},
	}

	layered, err := ResolveElement(sineElement(), defaults, custom)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	value, trace, err := layered.ResolveWithTrace("style.color")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if value != "green" {
		t.Fatalf("expected group defaults to beat type defaults, got %v", value)
	}
	winner, ok := trace.Winner()
	if !ok || winner.Scope.Name != "defaults:Curve.Sine" {
		t.Fatalf("unexpected winner %+v", winner)
	}

	value, trace, err = layered.ResolveWithTrace("plot.width")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if value != 600 {
		t.Fatalf("expected custom options to beat defaults, got %v", value)
	}
	winner, _ = trace.Winner()
	if winner.Scope.Name != "custom:Curve" || winner.SnapshotID != "opt-7" {
		t.Fatalf("unexpected winner %+v", winner)
	}
	if len(trace.Layers) != 3 || trace.Layers[2].Value != 300 {
		t.Fatalf("expected three layers with the type default last, got %+v", trace.Layers)
	}

	if got, ok := layered.Resolve("style.alpha"); !ok || got != 0.5 {
		t.Fatalf("expected inherited alpha, got %v", got)
	}
	if _, _, err := layered.ResolveWithTrace("style.linewidth"); !errors.Is(err, ErrPathNotFound) {
		t.Fatalf("expected path not found, got %v", err)
	}
}

func TestResolveElementWithoutOptions(t *testing.T) {
	layered, err := ResolveElement(&Element{Type: "Scatter"}, nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !layered.Value.Empty() || len(layered.Scopes()) != 0 {
		t.Fatalf("expected empty resolution, got %+v", layered.Value)
	}
	_, trace, err := layered.ResolveWithTrace("style.color")
	if !errors.Is(err, ErrPathNotFound) {
		t.Fatalf("expected path not found, got %v", err)
	}
	if len(trace.Layers) != 1 || trace.Layers[0].Scope.Name != "value" {
		t.Fatalf("expected synthetic value layer, got %+v", trace.Layers)
	}

	if _, err := ResolveElement(nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil element")
	}
}

func TestLayeredResolveStructPaths(t *testing.T) {
	layered := Wrap(figureSnapshot{Title: "sine", Width: intPtr(400), Labels: map[string]string{"x": "t"}})
	if got, ok := layered.Resolve("Width"); !ok || *(got.(*int)) != 400 {
		t.Fatalf("expected pointer field, got %v", got)
	}
	if got, ok := layered.Resolve("Labels.x"); !ok || got != "t" {
		t.Fatalf("expected map entry, got %v", got)
	}
	if _, ok := layered.Resolve("Title.x"); ok {
		t.Fatalf("expected scalar traversal to fail")
	}
	if _, _, err := layered.ResolveWithTrace(""); err == nil {
		t.Fatalf("expected empty path error")
	}
}

func TestTraceShadowedAndLogValue(t *testing.T) {
	trace := Trace{
		Path: "style.color",
		Layers: []Provenance{
			{Scope: Scope{Name: "custom:Curve.Sine"}, Path: "style.color"},
			{Scope: Scope{Name: "custom:Curve", Priority: ScopePriorityType}, SnapshotID: "opt-7", Path: "style.color", Value: "red", Found: true},
			{Scope: Scope{Name: "defaults:Curve.Sine"}, Path: "style.color", Value: "green", Found: true},
			{Scope: Scope{Name: "defaults:Curve"}, Path: "style.color", Value: "blue", Found: true},
		},
	}
	shadowed := trace.Shadowed()
	if len(shadowed) != 2 || shadowed[0].Value != "green" || shadowed[1].Value != "blue" {
		t.Fatalf("unexpected shadowed layers %+v", shadowed)
	}

	var logs bytes.Buffer
	slog.New(slog.NewTextHandler(&logs, nil)).Info("resolved", "trace", trace)
	out := logs.String()
	for _, want := range []string{"trace.path=style.color", "trace.winner=custom:Curve", "trace.value=red", "trace.shadowed=defaults:Curve.Sine,defaults:Curve"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}

	payload, err := json.Marshal(trace)
	if err != nil || !json.Valid(payload) {
		t.Fatalf("marshal: %v", err)
	}

	if len((Trace{}).Shadowed()) != 0 {
		t.Fatalf("expected nothing shadowed in an empty trace")
	}
}

func BenchmarkResolveElementWithTrace(b *testing.B) {
	element := &Element{Type: "Curve", Group: "Sine", Label: "Left", OptionID: "opt-1"}
	defaults := Expanded{
		"Curve":           {GroupStyle: {"color": "blue"}, GroupPlot: {"width": 300}},
		"Curve.Sine":      {GroupStyle: {"alpha": 0.5}},
		"Curve.Sine.Left": {GroupNorm: {"framewise": true}},
	}
	custom := Expanded{
		"Curve":      {GroupPlot: {"width": 600}},
		"Curve.Sine": {GroupStyle: {"color": "red"}},
	}

	for b.Loop() {
		layered, err := ResolveElement(element, defaults, custom)
		if err != nil {
			b.Fatalf("resolve: %v", err)
		}
		if _, _, err := layered.ResolveWithTrace("plot.width"); err != nil {
			b.Fatalf("trace: %v", err)
		}
	}
}
