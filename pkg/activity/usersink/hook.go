// Package usersink records options activity through a go-users activity sink.
package usersink

import (
	"context"
	"maps"
	"time"

	"github.com/goliatone/go-plotopts/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook writes each activity event as a go-users ActivityRecord.
type Hook struct {
	Sink usertypes.ActivitySink
	// Now stamps events that carry no time. Defaults to time.Now.
	Now func() time.Time
}

var _ activity.ActivityHook = Hook{}

// Notify logs event to the sink. Identity fields that are not uuids, such as
// a CLI actor name, are stored as uuid.Nil and copied verbatim into the
// record data under actor_id, user_id or tenant_id.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	stamped := !event.OccurredAt.IsZero()
	event = activity.NormalizeEvent(event)
	if !stamped {
		event.OccurredAt = h.now()
	}
	if !event.Complete() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	record := usertypes.ActivityRecord{
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		OccurredAt: event.OccurredAt,
	}
	data := map[string]any{}
	maps.Copy(data, event.Metadata)
	for _, id := range []struct {
		key    string
		raw    string
		target *uuid.UUID
	}{
		{"actor_id", event.ActorID, &record.ActorID},
		{"user_id", event.UserID, &record.UserID},
		{"tenant_id", event.TenantID, &record.TenantID},
	} {
		if id.raw == "" {
			continue
		}
		parsed, err := uuid.Parse(id.raw)
		if err != nil {
			data[id.key] = id.raw
			continue
		}
		*id.target = parsed
	}
	if len(data) > 0 {
		record.Data = data
	}
	return h.Sink.Log(ctx, record)
}

func (h Hook) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
