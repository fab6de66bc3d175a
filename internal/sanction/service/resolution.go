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

// ResolveVehicle administratively lifts every active sanction of a vehicle
// and resets its flags. Violation history stays confirmed. Running it again
// resolves nothing further.
func (s *Service) ResolveVehicle(ctx context.Context, req *models.ResolveVehicleRequest) (result *models.ResolveResult, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	vehicleID := models.VehicleID(req.VehicleID)
	resolvedBy := req.ResolvedBy
	if resolvedBy == "" {
		resolvedBy = requestcontext.Actor(ctx)
	}

	ctx, finish := s.begin(ctx, "resolve", attribute.String("vehicle_id", vehicleID.String()))
	defer func() { finish(err) }()

	now := requestcontext.Now(ctx)
	var status models.RegistrationStatus
	txErr := s.runTx(ctx, "resolve", func(ctx context.Context, tx docstore.Tx) error {
		vehicle, err := loadVehicle(ctx, tx, vehicleID)
		if err != nil {
			return err
		}
		active, err := activeSanctions(ctx, tx, vehicleID)
		if err != nil {
			return err
		}
		released, err := violationsReferencingAny(ctx, tx, active)
		if err != nil {
			return err
		}

		status = models.RegistrationActive
		if vehicle.RegistrationLapsed(now) {
			status = models.RegistrationExpired
		}
		if err := tx.Update(models.CollectionVehicles, vehicleID.String(), docstore.Fields{
			models.FieldRegistrationStatus:     string(status),
			models.FieldHasActiveSanction:      false,
			models.FieldHasUnresolvedViolation: false,
			models.FieldUpdatedAt:              now,
		}); err != nil {
			return err
		}
		for _, sanction := range active {
			update := docstore.Fields{
				models.FieldStatus:     string(models.SanctionResolved),
				models.FieldResolvedAt: now,
			}
			if resolvedBy != "" {
				update[models.FieldResolvedBy] = resolvedBy
			}
			if err := tx.Update(models.CollectionSanctions, sanction.ID.String(), update); err != nil {
				return err
			}
		}
		for _, violationID := range released {
			if err := tx.Update(models.CollectionViolations, violationID, docstore.Fields{
				models.FieldSanctionApplied: false,
				models.FieldUpdatedAt:       now,
			}); err != nil {
				return err
			}
		}

		result = &models.ResolveResult{VehicleID: vehicleID, ResolvedCount: len(active)}
		return nil
	})
	if txErr != nil {
		return nil, translate(txErr, "failed to resolve vehicle sanctions")
	}

	s.metrics.AddSanctionsLifted("resolve", result.ResolvedCount)
	s.logAudit(ctx, audit.Event{
		Action:        string(audit.EventSanctionsResolved),
		Timestamp:     now,
		VehicleID:     vehicleID.String(),
		VehicleStatus: string(status),
		Count:         result.ResolvedCount,
		ActorID:       resolvedBy,
	})
	return result, nil
}

// RenewRegistration extends a vehicle's registration and wipes its record:
// confirmed violations and active sanctions of that vehicle are cleared in
// the same transaction. This is the only path that clears violation
// history.
func (s *Service) RenewRegistration(ctx context.Context, req *models.RenewVehicleRequest) (result *models.RenewResult, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	vehicleID := models.VehicleID(req.VehicleID)

	ctx, finish := s.begin(ctx, "renew", attribute.String("vehicle_id", vehicleID.String()))
	defer func() { finish(err) }()

	now := requestcontext.Now(ctx).UTC()
	newExpiry := now.AddDate(0, 0, req.Extension())

	txErr := s.runTx(ctx, "renew", func(ctx context.Context, tx docstore.Tx) error {
		if _, err := loadVehicle(ctx, tx, vehicleID); err != nil {
			return err
		}
		confirmed, err := tx.Query(ctx, models.CollectionViolations,
			docstore.Where(models.FieldVehicleID, docstore.OpEq, vehicleID.String()),
			docstore.Where(models.FieldStatus, docstore.OpEq, string(models.ViolationConfirmed)),
		)
		if err != nil {
			return err
		}
		active, err := activeSanctions(ctx, tx, vehicleID)
		if err != nil {
			return err
		}

		if err := tx.Update(models.CollectionVehicles, vehicleID.String(), docstore.Fields{
			models.FieldRegistrationValidFrom:  now,
			models.FieldRegistrationValidUntil: newExpiry,
			models.FieldRegistrationStatus:     string(models.RegistrationActive),
			models.FieldHasActiveSanction:      false,
			models.FieldHasUnresolvedViolation: false,
			models.FieldYearLevel:              req.YearLevel,
			models.FieldSemester:               req.Semester,
			models.FieldAcademicYear:           req.AcademicYear,
			models.FieldLastRenewedBy:          req.RenewedBy,
			models.FieldLastRenewedAt:          now,
			models.FieldUpdatedAt:              now,
		}); err != nil {
			return err
		}
		for _, doc := range confirmed {
			if err := tx.Update(models.CollectionViolations, doc.ID, docstore.Fields{
				models.FieldStatus:          string(models.ViolationCleared),
				models.FieldSanctionApplied: false,
				models.FieldClearedAt:       now,
				models.FieldClearedBy:       req.RenewedBy,
				models.FieldUpdatedAt:       now,
			}); err != nil {
				return err
			}
		}
		for _, sanction := range active {
			if err := tx.Update(models.CollectionSanctions, sanction.ID.String(), docstore.Fields{
				models.FieldStatus:    string(models.SanctionCleared),
				models.FieldEndAt:     now,
				models.FieldClearedAt: now,
				models.FieldEndedBy:   req.RenewedBy,
			}); err != nil {
				return err
			}
		}

		result = &models.RenewResult{
			VehicleID:         vehicleID,
			NewExpiryDate:     newExpiry,
			ViolationsCleared: len(confirmed),
			SanctionsCleared:  len(active),
		}
		return nil
	})
	if txErr != nil {
		return nil, translate(txErr, "failed to renew registration")
	}

	s.metrics.AddSanctionsLifted("renew", result.SanctionsCleared)
	s.logAudit(ctx, audit.Event{
		Action:        string(audit.EventRegistrationRenewed),
		Timestamp:     now,
		VehicleID:     vehicleID.String(),
		VehicleStatus: string(models.RegistrationActive),
		Count:         result.ViolationsCleared + result.SanctionsCleared,
		ActorID:       req.RenewedBy,
		Reason:        req.AcademicYear + " " + req.Semester,
	})
	return result, nil
}

func loadVehicle(ctx context.Context, r docstore.Reader, vehicleID models.VehicleID) (*models.Vehicle, error) {
	doc, err := r.Get(ctx, models.CollectionVehicles, vehicleID.String())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "vehicle not found")
		}
		return nil, err
	}
	return models.VehicleFromDocument(doc), nil
}

// violationsReferencingAny returns the ids of violations whose sanctionId is
// one of sanctions.
func violationsReferencingAny(ctx context.Context, r docstore.Reader, sanctions []*models.Sanction) ([]string, error) {
	if len(sanctions) == 0 {
		return nil, nil
	}
	ids := make([]string, len(sanctions))
	for i, sanction := range sanctions {
		ids[i] = sanction.ID.String()
	}
	docs, err := r.Query(ctx, models.CollectionViolations,
		docstore.Where(models.FieldSanctionID, docstore.OpIn, ids),
	)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(docs))
	for i, doc := range docs {
		out[i] = doc.ID
	}
	return out, nil
}
