package activity

import (
	"slices"
	"strings"
	"time"
)

// Event verbs emitted by the options engine.
const (
	VerbOptionsApplied  = "options.applied"
	VerbOptionsCleared  = "options.cleared"
	VerbDefaultsSet     = "options.defaults"
	VerbBackendLoaded   = "backend.loaded"
	VerbBackendUnloaded = "backend.unloaded"
)

// OptionsEventInput describes the common fields for options lifecycle events.
type OptionsEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	ObjectID   string
	Backend    string
	Channel    string
	Elements   []string
	Options    map[string]any
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildOptionsAppliedEvent describes options attached to an element tree.
func BuildOptionsAppliedEvent(input OptionsEventInput) Event {
	return buildOptionsEvent(VerbOptionsApplied, "element", input)
}

// BuildOptionsClearedEvent describes an element whose option identity was reset.
func BuildOptionsClearedEvent(input OptionsEventInput) Event {
	return buildOptionsEvent(VerbOptionsCleared, "element", input)
}

// BuildDefaultsSetEvent describes session defaults stored for a backend.
func BuildDefaultsSetEvent(input OptionsEventInput) Event {
	return buildOptionsEvent(VerbDefaultsSet, "backend", input)
}

// BuildBackendLoadedEvent describes a backend table registration.
func BuildBackendLoadedEvent(input OptionsEventInput) Event {
	return buildOptionsEvent(VerbBackendLoaded, "backend", input)
}

// BuildBackendUnloadedEvent describes a backend removal.
func BuildBackendUnloadedEvent(input OptionsEventInput) Event {
	return buildOptionsEvent(VerbBackendUnloaded, "backend", input)
}

func buildOptionsEvent(verb, objectType string, input OptionsEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if backend := strings.TrimSpace(input.Backend); backend != "" {
		metadata = ensureMetadata(metadata)
		metadata["backend"] = backend
	}
	if len(input.Elements) > 0 {
		metadata = ensureMetadata(metadata)
		elements := slices.Clone(input.Elements)
		slices.Sort(elements)
		metadata["elements"] = elements
	}
	if len(input.Options) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["options"] = cloneMap(input.Options)
	}

	objectID := strings.TrimSpace(input.ObjectID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Backend)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
