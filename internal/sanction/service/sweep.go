package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"vehicle-sanctions/internal/docstore"
	"vehicle-sanctions/internal/sanction/models"
	dErrors "vehicle-sanctions/pkg/domain-errors"
	"vehicle-sanctions/pkg/platform/audit"
	"vehicle-sanctions/pkg/platform/sentinel"
	"vehicle-sanctions/pkg/requestcontext"
)

const (
	sweepSanctions     = "sanctions"
	sweepRegistrations = "registrations"

	// schedulerActor is recorded on sweep writes when the caller has no
	// actor of its own.
	schedulerActor = "scheduler"
)

// SweepExpiredSanctions clears every active suspension whose end date has
// passed. For each one the sanction becomes cleared, the vehicle's sanction
// flags are reset, and violations pointing at the sanction are released
// (their confirmed status stays on record).
//
// Writes are committed one batch per chunk of sanctions. A failed chunk
// stops the sweep: the report counts what was committed before it and the
// error is returned alongside.
func (s *Service) SweepExpiredSanctions(ctx context.Context) (report *models.SanctionSweepReport, err error) {
	ctx, finish := s.begin(ctx, "sweep_sanctions")
	defer func() { finish(err) }()

	now := requestcontext.Now(ctx)
	actor := sweepActor(ctx)
	report = &models.SanctionSweepReport{Details: []models.ClearedSanction{}, ProcessedAt: now}

	docs, err := s.store.Query(ctx, models.CollectionSanctions,
		docstore.Where(models.FieldType, docstore.OpEq, string(models.SanctionSuspension)),
		docstore.Where(models.FieldStatus, docstore.OpEq, string(models.SanctionActive)),
		docstore.Where(models.FieldEndAt, docstore.OpLte, now),
	)
	if err != nil {
		return report, translate(err, "failed to find expired sanctions")
	}
	expired := make([]*models.Sanction, 0, len(docs))
	expiredIDs := make(map[models.SanctionID]bool, len(docs))
	for _, doc := range docs {
		sanction := models.SanctionFromDocument(doc)
		expired = append(expired, sanction)
		expiredIDs[sanction.ID] = true
	}
	sort.Slice(expired, func(i, j int) bool {
		if !expired[i].EndAt.Equal(*expired[j].EndAt) {
			return expired[i].EndAt.Before(*expired[j].EndAt)
		}
		return expired[i].ID < expired[j].ID
	})
	report.Found = len(expired)

	for _, batch := range chunk(expired, s.sweepBatchSize) {
		details, err := s.clearSanctionChunk(ctx, batch, expiredIDs, actor)
		if err != nil {
			s.metrics.IncSweepFailure(sweepSanctions)
			s.logger.ErrorContext(ctx, "sanction sweep stopped",
				"processed", report.ProcessedCount,
				"found", report.Found,
				"error", err,
			)
			return report, partialSweepError(err, sweepSanctions, report.ProcessedCount, report.Found)
		}
		report.ProcessedCount += len(details)
		report.Details = append(report.Details, details...)
		s.metrics.AddSweepProcessed(sweepSanctions, len(details))

		for _, d := range details {
			s.logAudit(ctx, audit.Event{
				Action:        string(audit.EventSanctionExpired),
				Timestamp:     now,
				VehicleID:     d.VehicleID.String(),
				SanctionID:    d.SanctionID.String(),
				SanctionType:  string(models.SanctionSuspension),
				VehicleStatus: string(d.VehicleStatus),
				Count:         d.ViolationsReleased,
				ActorID:       actor,
			})
		}
	}

	s.logger.InfoContext(ctx, "sanction sweep completed",
		"processed", report.ProcessedCount,
		"found", report.Found,
	)
	return report, nil
}

// vehicleClearance is the vehicle update one sweep chunk applies.
type vehicleClearance struct {
	fields docstore.Fields
	status models.RegistrationStatus
}

// clearSanctionChunk gathers what each sanction's clearance touches and
// commits the chunk as one batch. Sanctions whose vehicle no longer exists
// are cleared without a vehicle update.
func (s *Service) clearSanctionChunk(ctx context.Context, sanctions []*models.Sanction, expiredIDs map[models.SanctionID]bool, actor string) ([]models.ClearedSanction, error) {
	now := requestcontext.Now(ctx)
	vehicles := make(map[models.VehicleID]*vehicleClearance)
	released := make(map[models.SanctionID][]string, len(sanctions))

	for _, sanction := range sanctions {
		if _, seen := vehicles[sanction.VehicleID]; !seen {
			clearance, err := s.planVehicleClearance(ctx, sanction.VehicleID, expiredIDs, now)
			if err != nil {
				return nil, err
			}
			vehicles[sanction.VehicleID] = clearance
		}
		violationIDs, err := s.violationsReferencing(ctx, sanction.ID)
		if err != nil {
			return nil, err
		}
		released[sanction.ID] = violationIDs
	}

	err := s.store.RunBatch(ctx, func(b docstore.Batch) error {
		for _, sanction := range sanctions {
			if err := b.Update(models.CollectionSanctions, sanction.ID.String(), docstore.Fields{
				models.FieldStatus:          string(models.SanctionCleared),
				models.FieldClearedAt:       now,
				models.FieldLastEvaluatedAt: now,
				models.FieldEndedBy:         actor,
			}); err != nil {
				return err
			}
			for _, violationID := range released[sanction.ID] {
				if err := b.Update(models.CollectionViolations, violationID, docstore.Fields{
					models.FieldSanctionApplied: false,
					models.FieldUpdatedAt:       now,
				}); err != nil {
					return err
				}
			}
		}
		for vehicleID, clearance := range vehicles {
			if clearance == nil {
				continue
			}
			if err := b.Update(models.CollectionVehicles, vehicleID.String(), clearance.fields); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	details := make([]models.ClearedSanction, 0, len(sanctions))
	for _, sanction := range sanctions {
		detail := models.ClearedSanction{
			SanctionID:         sanction.ID,
			VehicleID:          sanction.VehicleID,
			EndAt:              sanction.EndAt,
			ViolationsReleased: len(released[sanction.ID]),
		}
		if clearance := vehicles[sanction.VehicleID]; clearance != nil {
			detail.VehicleStatus = clearance.status
		}
		details = append(details, detail)
	}
	return details, nil
}

// planVehicleClearance decides the vehicle's state once its expired
// sanctions are cleared. Another active sanction outside the expired set
// keeps the vehicle sanctioned at that sanction's tier; a lapsed
// registration keeps the vehicle expired. Returns nil for a missing vehicle.
func (s *Service) planVehicleClearance(ctx context.Context, vehicleID models.VehicleID, expiredIDs map[models.SanctionID]bool, now time.Time) (*vehicleClearance, error) {
	doc, err := s.store.Get(ctx, models.CollectionVehicles, vehicleID.String())
	if errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "expired sanction references a missing vehicle",
			"vehicle_id", vehicleID,
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	vehicle := models.VehicleFromDocument(doc)

	active, err := activeSanctions(ctx, s.store, vehicleID)
	if err != nil {
		return nil, err
	}
	var remaining []*models.Sanction
	for _, sanction := range active {
		if !expiredIDs[sanction.ID] {
			remaining = append(remaining, sanction)
		}
	}

	if status, ok := models.MostSevereStatus(remaining); ok {
		return &vehicleClearance{
			status: status,
			fields: docstore.Fields{
				models.FieldRegistrationStatus: string(status),
				models.FieldHasActiveSanction:  true,
				models.FieldUpdatedAt:          now,
			},
		}, nil
	}

	status := models.RegistrationCleared
	if vehicle.RegistrationLapsed(now) {
		status = models.RegistrationExpired
	}
	return &vehicleClearance{
		status: status,
		fields: docstore.Fields{
			models.FieldRegistrationStatus:     string(status),
			models.FieldHasActiveSanction:      false,
			models.FieldHasUnresolvedViolation: false,
			models.FieldUpdatedAt:              now,
		},
	}, nil
}

// SweepExpiredRegistrations marks every vehicle whose registration has
// lapsed as expired. Sanction and violation documents are not touched.
func (s *Service) SweepExpiredRegistrations(ctx context.Context) (report *models.RegistrationSweepReport, err error) {
	ctx, finish := s.begin(ctx, "sweep_registrations")
	defer func() { finish(err) }()

	now := requestcontext.Now(ctx)
	actor := sweepActor(ctx)
	report = &models.RegistrationSweepReport{Details: []models.ExpiredRegistration{}, ProcessedAt: now}

	docs, err := s.store.Query(ctx, models.CollectionVehicles,
		docstore.Where(models.FieldRegistrationValidUntil, docstore.OpLte, now),
		docstore.Where(models.FieldRegistrationStatus, docstore.OpNe, string(models.RegistrationExpired)),
	)
	if err != nil {
		return report, translate(err, "failed to find expired registrations")
	}
	vehicles := make([]*models.Vehicle, 0, len(docs))
	for _, doc := range docs {
		vehicles = append(vehicles, models.VehicleFromDocument(doc))
	}
	sort.Slice(vehicles, func(i, j int) bool { return vehicles[i].ID < vehicles[j].ID })
	report.Found = len(vehicles)

	for _, batch := range chunk(vehicles, s.sweepBatchSize) {
		err := s.store.RunBatch(ctx, func(b docstore.Batch) error {
			for _, v := range batch {
				if err := b.Update(models.CollectionVehicles, v.ID.String(), docstore.Fields{
					models.FieldRegistrationStatus: string(models.RegistrationExpired),
					models.FieldUpdatedAt:          now,
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			s.metrics.IncSweepFailure(sweepRegistrations)
			s.logger.ErrorContext(ctx, "registration sweep stopped",
				"processed", report.ProcessedCount,
				"found", report.Found,
				"error", err,
			)
			return report, partialSweepError(err, sweepRegistrations, report.ProcessedCount, report.Found)
		}

		for _, v := range batch {
			report.Details = append(report.Details, models.ExpiredRegistration{
				VehicleID:      v.ID,
				PlateNumber:    v.PlateOrNA(),
				PreviousStatus: v.RegistrationStatus,
				ExpiredAt:      v.RegistrationValidUntil,
			})
			s.logAudit(ctx, audit.Event{
				Action:        string(audit.EventRegistrationExpired),
				Timestamp:     now,
				VehicleID:     v.ID.String(),
				VehicleStatus: string(models.RegistrationExpired),
				Reason:        "previous status " + string(v.RegistrationStatus),
				ActorID:       actor,
			})
		}
		report.ProcessedCount += len(batch)
		s.metrics.AddSweepProcessed(sweepRegistrations, len(batch))
	}

	s.logger.InfoContext(ctx, "registration sweep completed",
		"processed", report.ProcessedCount,
		"found", report.Found,
	)
	return report, nil
}

func (s *Service) violationsReferencing(ctx context.Context, sanctionID models.SanctionID) ([]string, error) {
	docs, err := s.store.Query(ctx, models.CollectionViolations,
		docstore.Where(models.FieldSanctionID, docstore.OpEq, sanctionID.String()),
	)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	return ids, nil
}

func activeSanctions(ctx context.Context, r docstore.Reader, vehicleID models.VehicleID) ([]*models.Sanction, error) {
	docs, err := r.Query(ctx, models.CollectionSanctions,
		docstore.Where(models.FieldVehicleID, docstore.OpEq, vehicleID.String()),
		docstore.Where(models.FieldStatus, docstore.OpEq, string(models.SanctionActive)),
	)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Sanction, len(docs))
	for i, doc := range docs {
		out[i] = models.SanctionFromDocument(doc)
	}
	return out, nil
}

func partialSweepError(err error, sweep string, processed, found int) error {
	msg := fmt.Sprintf("%s sweep stopped after %d of %d", sweep, processed, found)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeConflict, msg+": a record was removed during the sweep")
	}
	return translate(err, msg)
}

func sweepActor(ctx context.Context) string {
	if actor := requestcontext.Actor(ctx); actor != "" {
		return actor
	}
	return schedulerActor
}

func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
