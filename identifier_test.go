package opts

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestParseIdentifier(t *testing.T) {
	cases := map[string]Identifier{
		"Curve":             {Type: "Curve"},
		"Curve.Sine":        {Type: "Curve", Group: "Sine"},
		"Curve.Sine.Left":   {Type: "Curve", Group: "Sine", Label: "Left"},
		"Curve.Sine.Left.x": {Type: "Curve", Group: "Sine", Label: "Left.x"},
	}
	for key, want := range cases {
		got, err := ParseIdentifier(key)
		if err != nil {
			t.Fatalf("%q: %v", key, err)
		}
		if got != want {
			t.Fatalf("%q: expected %+v, got %+v", key, want, got)
		}
		if key != "Curve.Sine.Left.x" && got.String() != key {
			t.Fatalf("%q: round trip gave %q", key, got.String())
		}
	}
	for _, key := range []string{"", ".Sine", "Curve.", "Curve.Sine."} {
		if _, err := ParseIdentifier(key); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("%q: expected configuration error, got %v", key, err)
		}
	}
}

func TestIdentifierMatchesAndAncestors(t *testing.T) {
	element := &Element{Type: "Curve", Group: "Sine", Label: "Left"}
	for key, want := range map[string]bool{
		"Curve":            true,
		"Curve.Sine":       true,
		"Curve.Sine.Left":  true,
		"Curve.Cosine":     false,
		"Curve.Sine.Right": false,
		"Scatter":          false,
	} {
		id, err := ParseIdentifier(key)
		if err != nil {
			t.Fatalf("%q: %v", key, err)
		}
		if id.Matches(element) != want {
			t.Fatalf("%q: expected match=%v", key, want)
		}
	}

	var keys []string
	for _, id := range element.Identifier().Ancestors() {
		keys = append(keys, id.String())
	}
	if !slices.Equal(keys, []string{"Curve", "Curve.Sine", "Curve.Sine.Left"}) {
		t.Fatalf("unexpected ancestors %v", keys)
	}
}

func TestElementGroupDefaultsToType(t *testing.T) {
	labelled := &Element{Type: "Curve", Label: "Left"}
	if got := labelled.Identifier().String(); got != "Curve.Curve.Left" {
		t.Fatalf("expected Curve.Curve.Left, got %q", got)
	}
	id, _ := ParseIdentifier("Curve.Curve")
	if !id.Matches(&Element{Type: "Curve"}) {
		t.Fatalf("expected ungrouped Curve to match Curve.Curve")
	}
	if got := (&Element{Type: "Curve"}).Identifier().String(); got != "Curve" {
		t.Fatalf("expected bare type identifier, got %q", got)
	}
}

func TestElementCloneKeepsOpaqueData(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	shared := &Element{Type: "Curve", Data: at}
	root := NewElement("Overlay", shared, shared)

	copied := root.Clone()
	data, ok := copied.Children[0].Data.(time.Time)
	if !ok || !data.Equal(at) {
		t.Fatalf("expected element data %v, got %#v", at, copied.Children[0].Data)
	}
	if copied.Children[0] != copied.Children[1] {
		t.Fatalf("expected shared children to stay shared")
	}
	if copied.Children[0] == shared {
		t.Fatalf("expected children to be copied")
	}
}

func TestElementCloneIsIndependent(t *testing.T) {
	leaf := &Element{Type: "Curve", OptionID: "a", Data: map[string]any{"x": []any{1, 2}}}
	root := NewElement("Overlay", leaf, &Element{Type: "Scatter"})

	copied := root.Clone()
	copied.Children[0].OptionID = "b"
	copied.Children[0].Data.(map[string]any)["x"] = nil

	if leaf.OptionID != "a" || leaf.Data.(map[string]any)["x"] == nil {
		t.Fatalf("clone shares nested state with the original")
	}

	var visited []string
	_ = root.Walk(func(e *Element) error {
		visited = append(visited, e.Type)
		return nil
	})
	if !slices.Equal(visited, []string{"Overlay", "Curve", "Scatter"}) {
		t.Fatalf("unexpected walk order %v", visited)
	}

	stop := errors.New("stop")
	if err := root.Walk(func(e *Element) error {
		if e.Type == "Curve" {
			return stop
		}
		return nil
	}); !errors.Is(err, stop) {
		t.Fatalf("expected walk to stop with error, got %v", err)
	}
}
