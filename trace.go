package opts

import (
	"log/slog"
	"strings"
)

// Trace lists, strongest first, what each resolution layer holds at Path.
type Trace struct {
	Path   string       `json:"path"`
	Layers []Provenance `json:"layers"`
}

// Provenance is one layer's contribution to a traced path.
type Provenance struct {
	Scope      Scope  `json:"scope"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Path       string `json:"path"`
	Value      any    `json:"value,omitempty"`
	Found      bool   `json:"found"`
}

// Winner returns the strongest layer holding a value.
func (t Trace) Winner() (Provenance, bool) {
	for _, layer := range t.Layers {
		if layer.Found {
			return layer, true
		}
	}
	return Provenance{}, false
}

// Shadowed returns the layers holding a value that the winner overrides.
func (t Trace) Shadowed() []Provenance {
	var out []Provenance
	winner := true
	for _, layer := range t.Layers {
		if !layer.Found {
			continue
		}
		if winner {
			winner = false
			continue
		}
		out = append(out, layer)
	}
	return out
}

// LogValue renders the trace as the winning scope and the scopes it shadows.
func (t Trace) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("path", t.Path)}
	if winner, ok := t.Winner(); ok {
		attrs = append(attrs, slog.String("winner", winner.Scope.Name), slog.Any("value", winner.Value))
	}
	if shadowed := t.Shadowed(); len(shadowed) > 0 {
		names := make([]string, len(shadowed))
		for i, layer := range shadowed {
			names[i] = layer.Scope.Name
		}
		attrs = append(attrs, slog.String("shadowed", strings.Join(names, ",")))
	}
	return slog.GroupValue(attrs...)
}
