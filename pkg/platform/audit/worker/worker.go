package worker

import (
	"context"
	"log/slog"

	audit "vehicle-sanctions/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them. A failed
// append is logged and the worker moves on; lifecycle operations have
// already committed by the time their events are queued.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run drains the inbox until it is closed or ctx is done. Events still
// buffered when the inbox closes are persisted before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to persist audit event",
					"action", event.Action,
					"vehicle_id", event.VehicleID,
					"error", err,
				)
			}
		}
	}
}
