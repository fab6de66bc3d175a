package models

import (
	"strings"

	dErrors "vehicle-sanctions/pkg/domain-errors"
)

// Document ids are opaque strings assigned by the store or by upstream
// registration systems.
type (
	VehicleID   string
	ViolationID string
	SanctionID  string
)

func (id VehicleID) String() string   { return string(id) }
func (id ViolationID) String() string { return string(id) }
func (id SanctionID) String() string  { return string(id) }

func (id VehicleID) IsNil() bool   { return id == "" }
func (id ViolationID) IsNil() bool { return id == "" }
func (id SanctionID) IsNil() bool  { return id == "" }

const maxIDLength = 128

// ParseVehicleID trims and validates a vehicle id from user input.
func ParseVehicleID(raw string) (VehicleID, error) {
	s, err := parseID(raw, "vehicle_id")
	return VehicleID(s), err
}

// ParseViolationID trims and validates a violation id from user input.
func ParseViolationID(raw string) (ViolationID, error) {
	s, err := parseID(raw, "violation_id")
	return ViolationID(s), err
}

func parseID(raw, field string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if len(s) > maxIDLength || strings.ContainsAny(s, "/:") {
		return "", dErrors.New(dErrors.CodeValidation, field+" is malformed")
	}
	return s, nil
}
