package models

import (
	"strings"

	dErrors "vehicle-sanctions/pkg/domain-errors"
)

const (
	DefaultExtensionDays = 365
	MaxExtensionDays     = 3650

	DefaultUpcomingDays = 7
	MinUpcomingDays     = 1
	MaxUpcomingDays     = 30

	maxActorLength = 255
	maxMetaLength  = 64
)

type ConfirmViolationRequest struct {
	ViolationID string `json:"violation_id"`
	ConfirmedBy string `json:"confirmed_by,omitempty"`
}

func (r *ConfirmViolationRequest) Normalize() {
	if r == nil {
		return
	}
	r.ViolationID = strings.TrimSpace(r.ViolationID)
	r.ConfirmedBy = strings.TrimSpace(r.ConfirmedBy)
}

func (r *ConfirmViolationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	r.Normalize()
	if len(r.ConfirmedBy) > maxActorLength {
		return dErrors.New(dErrors.CodeValidation, "confirmed_by must be 255 characters or less")
	}
	if _, err := ParseViolationID(r.ViolationID); err != nil {
		return err
	}
	return nil
}

type ResolveVehicleRequest struct {
	VehicleID  string `json:"vehicle_id"`
	ResolvedBy string `json:"resolved_by,omitempty"`
}

func (r *ResolveVehicleRequest) Normalize() {
	if r == nil {
		return
	}
	r.VehicleID = strings.TrimSpace(r.VehicleID)
	r.ResolvedBy = strings.TrimSpace(r.ResolvedBy)
}

func (r *ResolveVehicleRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	r.Normalize()
	if len(r.ResolvedBy) > maxActorLength {
		return dErrors.New(dErrors.CodeValidation, "resolved_by must be 255 characters or less")
	}
	if _, err := ParseVehicleID(r.VehicleID); err != nil {
		return err
	}
	return nil
}

// RenewVehicleRequest renews a registration. ExtensionDays defaults to
// DefaultExtensionDays when omitted; zero is accepted and expires the
// registration at renewal time.
type RenewVehicleRequest struct {
	VehicleID     string `json:"vehicle_id"`
	ExtensionDays *int   `json:"extension_days,omitempty"`
	YearLevel     string `json:"year_level"`
	Semester      string `json:"semester"`
	AcademicYear  string `json:"academic_year"`
	RenewedBy     string `json:"renewed_by"`
}

func (r *RenewVehicleRequest) Normalize() {
	if r == nil {
		return
	}
	r.VehicleID = strings.TrimSpace(r.VehicleID)
	r.YearLevel = strings.TrimSpace(r.YearLevel)
	r.Semester = strings.TrimSpace(r.Semester)
	r.AcademicYear = strings.TrimSpace(r.AcademicYear)
	r.RenewedBy = strings.TrimSpace(r.RenewedBy)
}

// Follows validation order: Size -> Required -> Semantic.
func (r *RenewVehicleRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	r.Normalize()

	if len(r.YearLevel) > maxMetaLength || len(r.Semester) > maxMetaLength || len(r.AcademicYear) > maxMetaLength {
		return dErrors.New(dErrors.CodeValidation, "academic metadata must be 64 characters or less")
	}
	if len(r.RenewedBy) > maxActorLength {
		return dErrors.New(dErrors.CodeValidation, "renewed_by must be 255 characters or less")
	}

	if _, err := ParseVehicleID(r.VehicleID); err != nil {
		return err
	}
	var missing []string
	if r.YearLevel == "" {
		missing = append(missing, "year_level")
	}
	if r.Semester == "" {
		missing = append(missing, "semester")
	}
	if r.AcademicYear == "" {
		missing = append(missing, "academic_year")
	}
	if r.RenewedBy == "" {
		missing = append(missing, "renewed_by")
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeValidation, "missing required fields: "+strings.Join(missing, ", "))
	}

	if r.ExtensionDays != nil && (*r.ExtensionDays < 0 || *r.ExtensionDays > MaxExtensionDays) {
		return dErrors.New(dErrors.CodeValidation, "extension_days must be between 0 and 3650")
	}
	return nil
}

// Extension returns the requested extension or the default.
func (r *RenewVehicleRequest) Extension() int {
	if r.ExtensionDays == nil {
		return DefaultExtensionDays
	}
	return *r.ExtensionDays
}

// ValidateUpcomingDays checks the look-ahead window for expiry listings.
func ValidateUpcomingDays(days int) error {
	if days < MinUpcomingDays || days > MaxUpcomingDays {
		return dErrors.New(dErrors.CodeValidation, "days_ahead must be between 1 and 30")
	}
	return nil
}
