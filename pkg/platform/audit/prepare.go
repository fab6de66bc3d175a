package audit

import (
	"context"

	"github.com/google/uuid"

	"vehicle-sanctions/pkg/requestcontext"
)

// Prepare fills in the id, timestamp, category and request metadata of e
// when they are absent. Every sink calls it before persisting.
func Prepare(ctx context.Context, e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = requestcontext.Now(ctx)
	}
	if e.Category == "" {
		e.Category = AuditEvent(e.Action).Category()
	}
	if e.RequestID == "" {
		e.RequestID = requestcontext.RequestID(ctx)
	}
	if e.ActorID == "" {
		e.ActorID = requestcontext.Actor(ctx)
	}
	return e
}
