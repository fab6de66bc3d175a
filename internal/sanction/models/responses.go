package models

import "time"

// ConfirmResult describes the consequence applied to a confirmed violation.
type ConfirmResult struct {
	ViolationID    ViolationID        `json:"violation_id"`
	VehicleID      VehicleID          `json:"vehicle_id"`
	SanctionID     SanctionID         `json:"sanction_id"`
	SanctionType   SanctionType       `json:"sanction_type"`
	OffenseOrdinal int                `json:"offense_ordinal"`
	VehicleStatus  RegistrationStatus `json:"vehicle_status"`
	EndAt          *time.Time         `json:"end_at,omitempty"`
	// AlreadyConfirmed is set when the call replayed an earlier confirmation.
	AlreadyConfirmed bool `json:"already_confirmed"`
}

type ResolveResult struct {
	VehicleID     VehicleID `json:"vehicle_id"`
	ResolvedCount int       `json:"resolved_count"`
}

type RenewResult struct {
	VehicleID         VehicleID `json:"vehicle_id"`
	NewExpiryDate     time.Time `json:"new_expiry_date"`
	ViolationsCleared int       `json:"violations_cleared"`
	SanctionsCleared  int       `json:"sanctions_cleared"`
}

// ClearedSanction is one entry of a sanction sweep report.
type ClearedSanction struct {
	SanctionID         SanctionID         `json:"sanction_id"`
	VehicleID          VehicleID          `json:"vehicle_id"`
	EndAt              *time.Time         `json:"end_at,omitempty"`
	VehicleStatus      RegistrationStatus `json:"vehicle_status,omitempty"`
	ViolationsReleased int                `json:"violations_released"`
}

// SanctionSweepReport summarises one sanction sweep. ProcessedCount is
// below Found when a chunk failed to commit.
type SanctionSweepReport struct {
	ProcessedCount int               `json:"processed_count"`
	Found          int               `json:"found"`
	Details        []ClearedSanction `json:"details"`
	ProcessedAt    time.Time         `json:"processed_at"`
}

// ExpiredRegistration is one entry of a registration sweep report.
type ExpiredRegistration struct {
	VehicleID      VehicleID          `json:"vehicle_id"`
	PlateNumber    string             `json:"plate_number"`
	PreviousStatus RegistrationStatus `json:"previous_status"`
	ExpiredAt      *time.Time         `json:"expired_at,omitempty"`
}

type RegistrationSweepReport struct {
	ProcessedCount int                   `json:"processed_count"`
	Found          int                   `json:"found"`
	Details        []ExpiredRegistration `json:"details"`
	ProcessedAt    time.Time             `json:"processed_at"`
}

// MaintenanceReport combines both sweeps of one maintenance cycle.
type MaintenanceReport struct {
	Registrations *RegistrationSweepReport `json:"registrations,omitempty"`
	Sanctions     *SanctionSweepReport     `json:"sanctions,omitempty"`
	StartedAt     time.Time                `json:"started_at"`
	Duration      time.Duration            `json:"duration_ns"`
}

type UpcomingExpirations struct {
	Count     int         `json:"count"`
	DaysAhead int         `json:"days_ahead"`
	Sanctions []*Sanction `json:"sanctions"`
}
