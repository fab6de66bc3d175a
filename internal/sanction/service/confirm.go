package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"vehicle-sanctions/internal/docstore"
	"vehicle-sanctions/internal/sanction/models"
	dErrors "vehicle-sanctions/pkg/domain-errors"
	"vehicle-sanctions/pkg/platform/audit"
	"vehicle-sanctions/pkg/platform/sentinel"
	"vehicle-sanctions/pkg/requestcontext"
)

// ConfirmViolation confirms a pending violation and applies the sanction its
// offense ordinal earns. The violation, the new sanction and the vehicle are
// written in one transaction; preconditions are re-read on every attempt.
//
// Confirming an already confirmed violation changes nothing and reports
// the sanction applied the first time with AlreadyConfirmed set.
func (s *Service) ConfirmViolation(ctx context.Context, req *models.ConfirmViolationRequest) (result *models.ConfirmResult, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	violationID := models.ViolationID(req.ViolationID)
	confirmedBy := req.ConfirmedBy
	if confirmedBy == "" {
		confirmedBy = requestcontext.Actor(ctx)
	}

	ctx, finish := s.begin(ctx, "confirm", attribute.String("violation_id", violationID.String()))
	defer func() { finish(err) }()

	now := requestcontext.Now(ctx)
	txErr := s.runTx(ctx, "confirm", func(ctx context.Context, tx docstore.Tx) error {
		r, err := s.confirmInTx(ctx, tx, violationID, confirmedBy)
		result = r
		return err
	})
	if txErr != nil {
		if errors.Is(txErr, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(txErr, dErrors.CodeConflict,
				"violation could not be confirmed: concurrent updates to the vehicle, retries exhausted")
		}
		return nil, translate(txErr, "failed to confirm violation")
	}

	if result.AlreadyConfirmed {
		s.logger.InfoContext(ctx, "violation already confirmed",
			"violation_id", violationID,
			"sanction_id", result.SanctionID,
		)
		return result, nil
	}

	s.metrics.IncSanctionApplied(string(result.SanctionType))
	s.logAudit(ctx, audit.Event{
		Action:        string(audit.EventSanctionApplied),
		Timestamp:     now,
		VehicleID:     result.VehicleID.String(),
		ViolationID:   violationID.String(),
		SanctionID:    result.SanctionID.String(),
		SanctionType:  string(result.SanctionType),
		OffenseNumber: result.OffenseOrdinal,
		VehicleStatus: string(result.VehicleStatus),
		ActorID:       confirmedBy,
	})
	return result, nil
}

func (s *Service) confirmInTx(ctx context.Context, tx docstore.Tx, violationID models.ViolationID, confirmedBy string) (*models.ConfirmResult, error) {
	violationDoc, err := tx.Get(ctx, models.CollectionViolations, violationID.String())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "violation not found")
		}
		return nil, err
	}
	violation := models.ViolationFromDocument(violationDoc)
	if violation.IsConfirmed() {
		return s.replayConfirmation(ctx, tx, violation)
	}
	if err := violation.CanConfirm(); err != nil {
		return nil, err
	}

	vehicleDoc, err := tx.Get(ctx, models.CollectionVehicles, violation.VehicleID.String())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "vehicle not found")
		}
		return nil, err
	}
	vehicle := models.VehicleFromDocument(vehicleDoc)
	if vehicle.HasActiveSanction {
		return nil, dErrors.New(dErrors.CodeConflict, "vehicle already has an active sanction")
	}

	ordinal, err := nextOffenseOrdinal(ctx, tx, vehicle.ID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	decision, err := s.policy.Decide(ordinal, now)
	if err != nil {
		return nil, err
	}
	sanction, err := models.NewSanction(
		models.SanctionID(docstore.NewID()),
		vehicle.ID,
		violation.ID,
		decision.SanctionType,
		ordinal,
		decision.EndAt,
		confirmedBy,
		now,
	)
	if err != nil {
		return nil, err
	}

	violationUpdate := docstore.Fields{
		models.FieldStatus:          string(models.ViolationConfirmed),
		models.FieldConfirmedAt:     now,
		models.FieldSanctionApplied: true,
		models.FieldSanctionID:      sanction.ID.String(),
		models.FieldOffenseNumber:   int64(ordinal),
		models.FieldUpdatedAt:       now,
	}
	if confirmedBy != "" {
		violationUpdate[models.FieldConfirmedBy] = confirmedBy
	}
	if err := tx.Update(models.CollectionViolations, violation.ID.String(), violationUpdate); err != nil {
		return nil, err
	}
	if err := tx.Create(models.CollectionSanctions, sanction.ID.String(), sanction.Fields()); err != nil {
		return nil, err
	}
	if err := tx.Update(models.CollectionVehicles, vehicle.ID.String(), docstore.Fields{
		models.FieldRegistrationStatus:     string(decision.VehicleStatus),
		models.FieldHasActiveSanction:      sanction.IsActive(),
		models.FieldHasUnresolvedViolation: true,
		models.FieldUpdatedAt:              now,
	}); err != nil {
		return nil, err
	}

	return &models.ConfirmResult{
		ViolationID:    violation.ID,
		VehicleID:      vehicle.ID,
		SanctionID:     sanction.ID,
		SanctionType:   sanction.Type,
		OffenseOrdinal: ordinal,
		VehicleStatus:  decision.VehicleStatus,
		EndAt:          sanction.EndAt,
	}, nil
}

// replayConfirmation describes the outcome of an earlier confirmation
// without writing anything.
func (s *Service) replayConfirmation(ctx context.Context, tx docstore.Tx, violation *models.Violation) (*models.ConfirmResult, error) {
	result := &models.ConfirmResult{
		ViolationID:      violation.ID,
		VehicleID:        violation.VehicleID,
		SanctionID:       violation.SanctionID,
		OffenseOrdinal:   violation.OffenseNumber,
		AlreadyConfirmed: true,
	}
	if violation.SanctionID.IsNil() {
		return result, nil
	}
	doc, err := tx.Get(ctx, models.CollectionSanctions, violation.SanctionID.String())
	if errors.Is(err, sentinel.ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	sanction := models.SanctionFromDocument(doc)
	result.SanctionType = sanction.Type
	result.VehicleStatus = sanction.Type.VehicleStatus()
	result.EndAt = sanction.EndAt
	if result.OffenseOrdinal == 0 {
		result.OffenseOrdinal = sanction.OffenseNumber
	}
	return result, nil
}
