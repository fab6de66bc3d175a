package audit

import (
	"context"
	"time"
)

// EventCategory classifies lifecycle events by their primary purpose so
// sinks can apply different retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers decisions with disciplinary or registration
	// consequences. These are kept for the life of the vehicle record.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers scheduled housekeeping that can be
	// aggregated with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from the sanction lifecycle to record key actions. Keep
// it transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string        `json:"id"`
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	VehicleID string        `json:"vehicle_id"`
	// ViolationID and SanctionID are set when the action concerns a
	// specific record.
	ViolationID   string `json:"violation_id,omitempty"`
	SanctionID    string `json:"sanction_id,omitempty"`
	SanctionType  string `json:"sanction_type,omitempty"`
	OffenseNumber int    `json:"offense_number,omitempty"`
	// VehicleStatus is the registration status after the action.
	VehicleStatus string `json:"vehicle_status,omitempty"`
	Count         int    `json:"count,omitempty"`
	// ActorID tracks who performed the action: an officer, an administrator
	// or "scheduler" for sweeps.
	ActorID   string `json:"actor_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type AuditEvent string

const (
	EventSanctionApplied     AuditEvent = "sanction_applied"
	EventSanctionExpired     AuditEvent = "sanction_expired"
	EventSanctionsResolved   AuditEvent = "sanctions_resolved"
	EventRegistrationExpired AuditEvent = "registration_expired"
	EventRegistrationRenewed AuditEvent = "registration_renewed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventSanctionApplied:     CategoryCompliance,
	EventSanctionsResolved:   CategoryCompliance,
	EventRegistrationRenewed: CategoryCompliance,

	EventSanctionExpired:     CategoryOperations,
	EventRegistrationExpired: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists events keyed by vehicle.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByVehicle(ctx context.Context, vehicleID string) ([]Event, error)
}
