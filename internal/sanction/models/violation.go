package models

import (
	"time"

	"vehicle-sanctions/internal/docstore"
	dErrors "vehicle-sanctions/pkg/domain-errors"
)

// ViolationStatus tracks a reported violation.
// Transitions: pending → confirmed (once, by confirmation) → cleared (by renewal).
type ViolationStatus string

const (
	ViolationPending   ViolationStatus = "pending"
	ViolationConfirmed ViolationStatus = "confirmed"
	ViolationCleared   ViolationStatus = "cleared"
)

func (s ViolationStatus) IsValid() bool {
	return s == ViolationPending || s == ViolationConfirmed || s == ViolationCleared
}

func (s ViolationStatus) CanTransitionTo(next ViolationStatus) bool {
	switch s {
	case ViolationPending:
		return next == ViolationConfirmed
	case ViolationConfirmed:
		return next == ViolationCleared
	}
	return false
}

// Violation is an offense reported against one vehicle.
type Violation struct {
	ID              ViolationID     `json:"id"`
	VehicleID       VehicleID       `json:"vehicle_id"`
	Status          ViolationStatus `json:"status"`
	SanctionApplied bool            `json:"sanction_applied"`
	// SanctionID points at the sanction this violation triggered, if any.
	SanctionID    SanctionID `json:"sanction_id,omitempty"`
	OffenseNumber int        `json:"offense_number,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedBy   string     `json:"confirmed_by,omitempty"`
	ClearedAt     *time.Time `json:"cleared_at,omitempty"`
	ClearedBy     string     `json:"cleared_by,omitempty"`
}

func (v *Violation) IsConfirmed() bool {
	return v.Status == ViolationConfirmed
}

// CanConfirm checks that the violation may move to confirmed. Callers treat
// an already confirmed violation as a replay before calling this.
func (v *Violation) CanConfirm() error {
	if v.VehicleID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "violation has no vehicle")
	}
	if !v.Status.CanTransitionTo(ViolationConfirmed) {
		return dErrors.New(dErrors.CodeConflict, "violation is "+string(v.Status)+" and cannot be confirmed")
	}
	return nil
}

// ViolationFromDocument decodes a violations document. A missing status
// reads as pending, the state violations are reported in.
func ViolationFromDocument(doc *docstore.Document) *Violation {
	f := doc.Fields
	status := ViolationStatus(str(f, FieldStatus))
	if status == "" {
		status = ViolationPending
	}
	return &Violation{
		ID:              ViolationID(doc.ID),
		VehicleID:       VehicleID(str(f, FieldVehicleID)),
		Status:          status,
		SanctionApplied: boolean(f, FieldSanctionApplied),
		SanctionID:      SanctionID(str(f, FieldSanctionID)),
		OffenseNumber:   integer(f, FieldOffenseNumber),
		ConfirmedAt:     timePtr(f, FieldConfirmedAt),
		ConfirmedBy:     str(f, FieldConfirmedBy),
		ClearedAt:       timePtr(f, FieldClearedAt),
		ClearedBy:       str(f, FieldClearedBy),
	}
}

// Fields encodes the full violation document.
func (v *Violation) Fields() docstore.Fields {
	f := docstore.Fields{
		FieldVehicleID:       string(v.VehicleID),
		FieldStatus:          string(v.Status),
		FieldSanctionApplied: v.SanctionApplied,
		FieldSanctionID:      optString(string(v.SanctionID)),
		FieldConfirmedAt:     optTime(v.ConfirmedAt),
		FieldConfirmedBy:     optString(v.ConfirmedBy),
		FieldClearedAt:       optTime(v.ClearedAt),
		FieldClearedBy:       optString(v.ClearedBy),
	}
	if v.OffenseNumber > 0 {
		f[FieldOffenseNumber] = int64(v.OffenseNumber)
	}
	return f
}
