package models

import (
	"time"

	"vehicle-sanctions/internal/docstore"
)

// RegistrationStatus is the vehicle's standing with the registration office.
type RegistrationStatus string

const (
	RegistrationActive    RegistrationStatus = "active"
	RegistrationWarned    RegistrationStatus = "warned"
	RegistrationSuspended RegistrationStatus = "suspended"
	RegistrationRevoked   RegistrationStatus = "revoked"
	RegistrationExpired   RegistrationStatus = "expired"
	RegistrationCleared   RegistrationStatus = "cleared"
)

func (s RegistrationStatus) IsValid() bool {
	switch s {
	case RegistrationActive, RegistrationWarned, RegistrationSuspended,
		RegistrationRevoked, RegistrationExpired, RegistrationCleared:
		return true
	}
	return false
}

// severity ranks sanction-driven statuses; anything else ranks zero.
func (s RegistrationStatus) severity() int {
	switch s {
	case RegistrationWarned:
		return 1
	case RegistrationSuspended:
		return 2
	case RegistrationRevoked:
		return 3
	}
	return 0
}

// MoreSevere reports whether s dominates other.
func (s RegistrationStatus) MoreSevere(other RegistrationStatus) bool {
	return s.severity() > other.severity()
}

// Vehicle is a registered vehicle.
//
// Invariants (at quiescent points):
//   - HasActiveSanction is true iff some sanction for the vehicle is active
//   - RegistrationStatus reflects the most severe unresolved condition
//   - Registration expiry is tracked independently of sanctions
type Vehicle struct {
	ID                     VehicleID          `json:"id"`
	PlateNumber            string             `json:"plate_number,omitempty"`
	RegistrationStatus     RegistrationStatus `json:"registration_status"`
	HasActiveSanction      bool               `json:"has_active_sanction"`
	HasUnresolvedViolation bool               `json:"has_unresolved_violation"`
	RegistrationValidFrom  *time.Time         `json:"registration_valid_from,omitempty"`
	RegistrationValidUntil *time.Time         `json:"registration_valid_until,omitempty"`
	YearLevel              string             `json:"year_level,omitempty"`
	Semester               string             `json:"semester,omitempty"`
	AcademicYear           string             `json:"academic_year,omitempty"`
	LastRenewedBy          string             `json:"last_renewed_by,omitempty"`
	LastRenewedAt          *time.Time         `json:"last_renewed_at,omitempty"`
}

// RegistrationLapsed reports whether the registration is no longer valid at now.
func (v *Vehicle) RegistrationLapsed(now time.Time) bool {
	return v.RegistrationValidUntil != nil && !v.RegistrationValidUntil.After(now)
}

// PlateOrNA is the plate number for reports.
func (v *Vehicle) PlateOrNA() string {
	if v.PlateNumber == "" {
		return "N/A"
	}
	return v.PlateNumber
}

// VehicleFromDocument decodes a vehicles document.
func VehicleFromDocument(doc *docstore.Document) *Vehicle {
	f := doc.Fields
	return &Vehicle{
		ID:                     VehicleID(doc.ID),
		PlateNumber:            str(f, FieldPlateNumber),
		RegistrationStatus:     RegistrationStatus(str(f, FieldRegistrationStatus)),
		HasActiveSanction:      boolean(f, FieldHasActiveSanction),
		HasUnresolvedViolation: boolean(f, FieldHasUnresolvedViolation),
		RegistrationValidFrom:  timePtr(f, FieldRegistrationValidFrom),
		RegistrationValidUntil: timePtr(f, FieldRegistrationValidUntil),
		YearLevel:              str(f, FieldYearLevel),
		Semester:               str(f, FieldSemester),
		AcademicYear:           str(f, FieldAcademicYear),
		LastRenewedBy:          str(f, FieldLastRenewedBy),
		LastRenewedAt:          timePtr(f, FieldLastRenewedAt),
	}
}

// Fields encodes the full vehicle document.
func (v *Vehicle) Fields() docstore.Fields {
	return docstore.Fields{
		FieldPlateNumber:            optString(v.PlateNumber),
		FieldRegistrationStatus:     string(v.RegistrationStatus),
		FieldHasActiveSanction:      v.HasActiveSanction,
		FieldHasUnresolvedViolation: v.HasUnresolvedViolation,
		FieldRegistrationValidFrom:  optTime(v.RegistrationValidFrom),
		FieldRegistrationValidUntil: optTime(v.RegistrationValidUntil),
		FieldYearLevel:              optString(v.YearLevel),
		FieldSemester:               optString(v.Semester),
		FieldAcademicYear:           optString(v.AcademicYear),
		FieldLastRenewedBy:          optString(v.LastRenewedBy),
		FieldLastRenewedAt:          optTime(v.LastRenewedAt),
	}
}
