package models

import (
	"time"

	"vehicle-sanctions/internal/docstore"
	dErrors "vehicle-sanctions/pkg/domain-errors"
)

// SanctionType is the escalation tier.
type SanctionType string

const (
	SanctionWarning    SanctionType = "warning"
	SanctionSuspension SanctionType = "suspension"
	SanctionRevocation SanctionType = "revocation"
)

func (t SanctionType) IsValid() bool {
	return t == SanctionWarning || t == SanctionSuspension || t == SanctionRevocation
}

// InitialStatus is the status a sanction of this type is created with.
// Warnings have no enforcement window and are complete on creation.
func (t SanctionType) InitialStatus() SanctionStatus {
	if t == SanctionWarning {
		return SanctionCompleted
	}
	return SanctionActive
}

// VehicleStatus is the registration status this tier imposes.
func (t SanctionType) VehicleStatus() RegistrationStatus {
	switch t {
	case SanctionWarning:
		return RegistrationWarned
	case SanctionSuspension:
		return RegistrationSuspended
	case SanctionRevocation:
		return RegistrationRevoked
	}
	return RegistrationActive
}

// SanctionStatus tracks enforcement.
type SanctionStatus string

const (
	SanctionActive    SanctionStatus = "active"
	SanctionCompleted SanctionStatus = "completed"
	SanctionCleared   SanctionStatus = "cleared"
	SanctionResolved  SanctionStatus = "resolved"
)

// Sanction is the consequence of one confirmed violation.
type Sanction struct {
	ID          SanctionID     `json:"id"`
	VehicleID   VehicleID      `json:"vehicle_id"`
	ViolationID ViolationID    `json:"violation_id"`
	Type        SanctionType   `json:"type"`
	Status      SanctionStatus `json:"status"`
	// OffenseNumber is the ordinal at creation time and is never recomputed.
	OffenseNumber   int        `json:"offense_number"`
	StartAt         time.Time  `json:"start_at"`
	EndAt           *time.Time `json:"end_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CreatedBy       string     `json:"created_by,omitempty"`
	ClearedAt       *time.Time `json:"cleared_at,omitempty"`
	LastEvaluatedAt *time.Time `json:"last_evaluated_at,omitempty"`
	EndedBy         string     `json:"ended_by,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy      string     `json:"resolved_by,omitempty"`
}

// NewSanction builds a sanction in its initial status.
func NewSanction(
	sanctionID SanctionID,
	vehicleID VehicleID,
	violationID ViolationID,
	sanctionType SanctionType,
	offenseNumber int,
	endAt *time.Time,
	createdBy string,
	now time.Time,
) (*Sanction, error) {
	if sanctionID.IsNil() || vehicleID.IsNil() || violationID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "sanction requires sanction, vehicle and violation ids")
	}
	if !sanctionType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown sanction type "+string(sanctionType))
	}
	if offenseNumber < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "offense number must be at least 1")
	}
	if (endAt != nil) != (sanctionType == SanctionSuspension) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "only suspensions carry an end date")
	}
	return &Sanction{
		ID:            sanctionID,
		VehicleID:     vehicleID,
		ViolationID:   violationID,
		Type:          sanctionType,
		Status:        sanctionType.InitialStatus(),
		OffenseNumber: offenseNumber,
		StartAt:       now,
		EndAt:         endAt,
		CreatedAt:     now,
		CreatedBy:     createdBy,
	}, nil
}

func (s *Sanction) IsActive() bool {
	return s.Status == SanctionActive
}

// SanctionFromDocument decodes a sanctions document.
func SanctionFromDocument(doc *docstore.Document) *Sanction {
	f := doc.Fields
	return &Sanction{
		ID:              SanctionID(doc.ID),
		VehicleID:       VehicleID(str(f, FieldVehicleID)),
		ViolationID:     ViolationID(str(f, FieldViolationID)),
		Type:            SanctionType(str(f, FieldType)),
		Status:          SanctionStatus(str(f, FieldStatus)),
		OffenseNumber:   integer(f, FieldOffenseNumber),
		StartAt:         timeOf(f, FieldStartAt),
		EndAt:           timePtr(f, FieldEndAt),
		CreatedAt:       timeOf(f, FieldCreatedAt),
		CreatedBy:       str(f, FieldCreatedBy),
		ClearedAt:       timePtr(f, FieldClearedAt),
		LastEvaluatedAt: timePtr(f, FieldLastEvaluatedAt),
		EndedBy:         str(f, FieldEndedBy),
		ResolvedAt:      timePtr(f, FieldResolvedAt),
		ResolvedBy:      str(f, FieldResolvedBy),
	}
}

// Fields encodes the full sanction document.
func (s *Sanction) Fields() docstore.Fields {
	return docstore.Fields{
		FieldVehicleID:       string(s.VehicleID),
		FieldViolationID:     string(s.ViolationID),
		FieldType:            string(s.Type),
		FieldStatus:          string(s.Status),
		FieldOffenseNumber:   int64(s.OffenseNumber),
		FieldStartAt:         s.StartAt,
		FieldEndAt:           optTime(s.EndAt),
		FieldCreatedAt:       s.CreatedAt,
		FieldCreatedBy:       optString(s.CreatedBy),
		FieldClearedAt:       optTime(s.ClearedAt),
		FieldLastEvaluatedAt: optTime(s.LastEvaluatedAt),
		FieldEndedBy:         optString(s.EndedBy),
		FieldResolvedAt:      optTime(s.ResolvedAt),
		FieldResolvedBy:      optString(s.ResolvedBy),
	}
}

// MostSevereStatus returns the registration status imposed by the most
// severe of the given active sanctions, or ok=false when there are none.
func MostSevereStatus(active []*Sanction) (status RegistrationStatus, ok bool) {
	for _, s := range active {
		vs := s.Type.VehicleStatus()
		if !ok || vs.MoreSevere(status) {
			status, ok = vs, true
		}
	}
	return status, ok
}
