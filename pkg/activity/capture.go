package activity

import (
	"context"
	"slices"
	"sync"
)

// CaptureHook keeps every event it receives. Err, when set, is returned from
// each Notify after the event is kept.
type CaptureHook struct {
	Err error

	mu     sync.Mutex
	events []Event
}

// Notify records event.
func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	h.events = append(h.events, NormalizeEvent(event))
	h.mu.Unlock()
	return h.Err
}

// Events returns the recorded events in arrival order.
func (h *CaptureHook) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.events)
}

// Verbs returns the verb of each recorded event.
func (h *CaptureHook) Verbs() []string {
	events := h.Events()
	verbs := make([]string, len(events))
	for i, event := range events {
		verbs[i] = event.Verb
	}
	return verbs
}

// Count returns how many recorded events carry verb.
func (h *CaptureHook) Count(verb string) int {
	n := 0
	for _, event := range h.Events() {
		if event.Verb == verb {
			n++
		}
	}
	return n
}

// Last returns the most recent event.
func (h *CaptureHook) Last() (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == 0 {
		return Event{}, false
	}
	return h.events[len(h.events)-1], true
}

// Reset forgets the recorded events.
func (h *CaptureHook) Reset() {
	h.mu.Lock()
	h.events = nil
	h.mu.Unlock()
}
