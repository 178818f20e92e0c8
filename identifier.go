package opts

import (
	"cmp"
	"strings"

	"github.com/goliatone/go-plotopts/layering"
)

// Identifier addresses visualization objects by Type[.Group][.Label].
type Identifier struct {
	Type  string
	Group string
	Label string
}

// ParseIdentifier splits key into its type, group and label parts.
func ParseIdentifier(key string) (Identifier, error) {
	parts := strings.SplitN(strings.TrimSpace(key), ".", 3)
	id := Identifier{Type: parts[0]}
	if len(parts) > 1 {
		id.Group = parts[1]
	}
	if len(parts) > 2 {
		id.Label = parts[2]
	}
	if id.Type == "" {
		return Identifier{}, &ConfigurationError{Key: key, Reason: "identifier must start with an element type"}
	}
	if len(parts) > 1 && id.Group == "" {
		return Identifier{}, &ConfigurationError{Key: key, Reason: "identifier has an empty group"}
	}
	if len(parts) > 2 && id.Label == "" {
		return Identifier{}, &ConfigurationError{Key: key, Reason: "identifier has an empty label"}
	}
	return id, nil
}

// typeOf returns the substring of key before the first dot.
func typeOf(key string) string {
	typ, _, _ := strings.Cut(key, ".")
	return typ
}

func (id Identifier) String() string {
	switch {
	case id.Label != "":
		return id.Type + "." + id.Group + "." + id.Label
	case id.Group != "":
		return id.Type + "." + id.Group
	default:
		return id.Type
	}
}

// Specificity counts the populated parts of the identifier (1 to 3).
func (id Identifier) Specificity() int {
	switch {
	case id.Label != "":
		return 3
	case id.Group != "":
		return 2
	default:
		return 1
	}
}

// Matches reports whether e is addressed by id. An element without a group
// belongs to the group named after its type.
func (id Identifier) Matches(e *Element) bool {
	if e == nil || e.Type != id.Type {
		return false
	}
	if id.Group != "" && cmp.Or(e.Group, e.Type) != id.Group {
		return false
	}
	if id.Label != "" && e.Label != id.Label {
		return false
	}
	return true
}

// Ancestors returns the identifiers id inherits from, weakest first and
// ending with id itself.
func (id Identifier) Ancestors() []Identifier {
	out := []Identifier{{Type: id.Type}}
	if id.Group != "" {
		out = append(out, Identifier{Type: id.Type, Group: id.Group})
	}
	if id.Label != "" {
		out = append(out, id)
	}
	return out
}

// Element is a node in a visualization object graph. Containers (overlays,
// layouts) hold their members in Children.
type Element struct {
	Type     string
	Group    string
	Label    string
	OptionID string
	Data     any
	Children []*Element
}

// NewElement builds an element of typ holding children.
func NewElement(typ string, children ...*Element) *Element {
	return &Element{Type: typ, Children: children}
}

// Identifier returns the most specific identifier addressing e. A labelled
// element without a group uses its type as the group.
func (e *Element) Identifier() Identifier {
	if e == nil {
		return Identifier{}
	}
	id := Identifier{Type: e.Type, Group: e.Group, Label: e.Label}
	if id.Label != "" {
		id.Group = cmp.Or(e.Group, e.Type)
	}
	return id
}

// Walk visits e and its descendants depth first, stopping at the first error.
func (e *Element) Walk(fn func(*Element) error) error {
	if e == nil {
		return nil
	}
	if err := fn(e); err != nil {
		return err
	}
	for _, child := range e.Children {
		if err := child.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a structurally independent copy of the element graph.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	return layering.Clone(e)
}
