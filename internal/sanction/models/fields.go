package models

import (
	"time"

	"vehicle-sanctions/internal/docstore"
)

// Collections.
const (
	CollectionVehicles   = "vehicles"
	CollectionViolations = "violations"
	CollectionSanctions  = "sanctions"
)

// Document field names. They match the layout used by the registration
// office's existing records, hence camelCase.
const (
	FieldVehicleID   = "vehicleId"
	FieldViolationID = "violationId"
	FieldSanctionID  = "sanctionId"
	FieldStatus      = "status"
	FieldType        = "type"
	FieldUpdatedAt   = "updatedAt"

	FieldRegistrationStatus     = "registrationStatus"
	FieldHasActiveSanction      = "hasActiveSanction"
	FieldHasUnresolvedViolation = "hasUnresolvedViolation"
	FieldRegistrationValidFrom  = "registrationValidFrom"
	FieldRegistrationValidUntil = "registrationValidUntil"
	FieldPlateNumber            = "plateNumber"
	FieldYearLevel              = "yearLevel"
	FieldSemester               = "semester"
	FieldAcademicYear           = "academicYear"
	FieldLastRenewedBy          = "lastRenewedBy"
	FieldLastRenewedAt          = "lastRenewedAt"

	FieldSanctionApplied = "sanctionApplied"
	FieldOffenseNumber   = "offenseNumber"
	FieldConfirmedAt     = "confirmedAt"
	FieldConfirmedBy     = "confirmedBy"
	FieldClearedAt       = "clearedAt"
	FieldClearedBy       = "clearedBy"

	FieldStartAt         = "startAt"
	FieldEndAt           = "endAt"
	FieldCreatedAt       = "createdAt"
	FieldCreatedBy       = "createdBy"
	FieldLastEvaluatedAt = "lastEvaluatedAt"
	FieldEndedBy         = "endedBy"
	FieldResolvedAt      = "resolvedAt"
	FieldResolvedBy      = "resolvedBy"
)

func str(f docstore.Fields, key string) string {
	s, _ := f[key].(string)
	return s
}

func boolean(f docstore.Fields, key string) bool {
	b, _ := f[key].(bool)
	return b
}

func integer(f docstore.Fields, key string) int {
	switch v := f[key].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func timeOf(f docstore.Fields, key string) time.Time {
	t, _ := f[key].(time.Time)
	return t
}

func timePtr(f docstore.Fields, key string) *time.Time {
	t, ok := f[key].(time.Time)
	if !ok {
		return nil
	}
	return &t
}

// optTime stores a nil pointer as an explicit null.
func optTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func optString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
