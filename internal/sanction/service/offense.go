package service

import (
	"context"

	"vehicle-sanctions/internal/docstore"
	"vehicle-sanctions/internal/sanction/models"
)

// countConfirmedOffenses returns how many of the vehicle's violations are
// confirmed. Called through a transaction, the count is part of the
// transaction's read set: a confirmation committed elsewhere after this
// read aborts the commit.
func countConfirmedOffenses(ctx context.Context, r docstore.Reader, vehicleID models.VehicleID) (int, error) {
	docs, err := r.Query(ctx, models.CollectionViolations,
		docstore.Where(models.FieldVehicleID, docstore.OpEq, string(vehicleID)),
		docstore.Where(models.FieldStatus, docstore.OpEq, string(models.ViolationConfirmed)),
	)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// nextOffenseOrdinal is the ordinal the violation under confirmation takes.
func nextOffenseOrdinal(ctx context.Context, r docstore.Reader, vehicleID models.VehicleID) (int, error) {
	confirmed, err := countConfirmedOffenses(ctx, r, vehicleID)
	if err != nil {
		return 0, err
	}
	return confirmed + 1, nil
}
