package service

import (
	"errors"
	"time"

	"vehicle-sanctions/internal/docstore"
	"vehicle-sanctions/internal/sanction/models"
	dErrors "vehicle-sanctions/pkg/domain-errors"
	"vehicle-sanctions/pkg/platform/audit"
	"vehicle-sanctions/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestSweepClearsExpiredSuspensions() {
	ended := testNow.Add(-time.Hour)
	running := testNow.AddDate(0, 0, 5)

	s.seedVehicle("veh-1", docstore.Fields{
		models.FieldRegistrationStatus:     string(models.RegistrationSuspended),
		models.FieldHasActiveSanction:      true,
		models.FieldHasUnresolvedViolation: true,
		models.FieldPlateNumber:            "ABC-123",
	})
	s.seedSanction("san-1", "veh-1", models.SanctionSuspension, models.SanctionActive, &ended)
	s.seedViolation("vio-1", "veh-1", models.ViolationConfirmed, docstore.Fields{
		models.FieldSanctionApplied: true,
		models.FieldSanctionID:      "san-1",
	})

	s.seedVehicle("veh-2", docstore.Fields{
		models.FieldRegistrationStatus: string(models.RegistrationSuspended),
		models.FieldHasActiveSanction:  true,
	})
	s.seedSanction("san-2", "veh-2", models.SanctionSuspension, models.SanctionActive, &running)

	report, err := s.service.SweepExpiredSanctions(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, report.Found)
	s.Equal(1, report.ProcessedCount)
	s.True(report.ProcessedAt.Equal(testNow))
	s.Require().Len(report.Details, 1)
	s.Equal(models.ClearedSanction{
		SanctionID:         "san-1",
		VehicleID:          "veh-1",
		EndAt:              report.Details[0].EndAt,
		VehicleStatus:      models.RegistrationCleared,
		ViolationsReleased: 1,
	}, report.Details[0])

	sanction := s.sanction("san-1")
	s.Equal(models.SanctionCleared, sanction.Status)
	s.Require().NotNil(sanction.ClearedAt)
	s.True(sanction.ClearedAt.Equal(testNow))
	s.Equal(schedulerActor, sanction.EndedBy)

	vehicle := s.vehicle("veh-1")
	s.Equal(models.RegistrationCleared, vehicle.RegistrationStatus)
	s.False(vehicle.HasActiveSanction)
	s.False(vehicle.HasUnresolvedViolation)

	violation := s.violation("vio-1")
	s.False(violation.SanctionApplied)
	s.Equal(models.ViolationConfirmed, violation.Status, "offense stays on record")

	s.Equal(models.SanctionActive, s.sanction("san-2").Status)
	s.True(s.vehicle("veh-2").HasActiveSanction)
	s.assertFlagsConsistent("veh-1")
	s.assertFlagsConsistent("veh-2")
	s.Equal([]string{string(audit.EventSanctionExpired)}, s.auditActions("veh-1"))
}

func (s *ServiceSuite) TestSweepIsIdempotent() {
	ended := testNow.AddDate(0, 0, -1)
	s.seedVehicle("veh-1", docstore.Fields{models.FieldHasActiveSanction: true})
	s.seedSanction("san-1", "veh-1", models.SanctionSuspension, models.SanctionActive, &ended)

	first, err := s.service.SweepExpiredSanctions(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, first.ProcessedCount)

	second, err := s.service.SweepExpiredSanctions(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, second.Found)
	s.Equal(0, second.ProcessedCount)
	s.Empty(second.Details)
}

func (s *ServiceSuite) TestSweepIgnoresNonSuspensions() {
	ended := testNow.AddDate(0, 0, -1)
	s.seedVehicle("veh-1", docstore.Fields{models.FieldHasActiveSanction: true})
	s.seedSanction("san-rev", "veh-1", models.SanctionRevocation, models.SanctionActive, &ended)
	s.seedSanction("san-done", "veh-1", models.SanctionSuspension, models.SanctionResolved, &ended)

	report, err := s.service.SweepExpiredSanctions(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, report.Found)
	s.Equal(models.SanctionActive, s.sanction("san-rev").Status)
}

func (s *ServiceSuite) TestSweepKeepsVehicleUnderRemainingSanction() {
	ended := testNow.AddDate(0, 0, -1)
	s.seedVehicle("veh-1", docstore.Fields{
		models.FieldRegistrationStatus: string(models.RegistrationRevoked),
		models.FieldHasActiveSanction:  true,
	})
	s.seedSanction("san-1", "veh-1", models.SanctionSuspension, models.SanctionActive, &ended)
	s.seedSanction("san-2", "veh-1", models.SanctionRevocation, models.SanctionActive, nil)

	report, err := s.service.SweepExpiredSanctions(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, report.ProcessedCount)
	s.Equal(models.RegistrationRevoked, report.Details[0].VehicleStatus)

	vehicle := s.vehicle("veh-1")
	s.Equal(models.RegistrationRevoked, vehicle.RegistrationStatus)
	s.True(vehicle.HasActiveSanction)
	s.assertFlagsConsistent("veh-1")
}

func (s *ServiceSuite) TestSweepKeepsLapsedRegistrationExpired() {
	ended := testNow.AddDate(0, 0, -1)
	lapsed := testNow.AddDate(0, -1, 0)
	s.seedVehicle("veh-1", docstore.Fields{
		models.FieldRegistrationStatus:     string(models.RegistrationSuspended),
		models.FieldHasActiveSanction:      true,
		models.FieldRegistrationValidUntil: lapsed,
	})
	s.seedSanction("san-1", "veh-1", models.SanctionSuspension, models.SanctionActive, &ended)

	_, err := s.service.SweepExpiredSanctions(s.ctx)
	s.Require().NoError(err)
	vehicle := s.vehicle("veh-1")
	s.Equal(models.RegistrationExpired, vehicle.RegistrationStatus)
	s.False(vehicle.HasActiveSanction)
}

func (s *ServiceSuite) TestSweepClearsSanctionOfMissingVehicle() {
	ended := testNow.AddDate(0, 0, -1)
	s.seedSanction("san-1", "veh-gone", models.SanctionSuspension, models.SanctionActive, &ended)

	report, err := s.service.SweepExpiredSanctions(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, report.ProcessedCount)
	s.Empty(report.Details[0].VehicleStatus)
	s.Equal(models.SanctionCleared, s.sanction("san-1").Status)
}

func (s *ServiceSuite) TestSweepReportsPartialFailure() {
	for i, id := range []string{"veh-1", "veh-2", "veh-3"} {
		ended := testNow.AddDate(0, 0, -3+i)
		s.seedVehicle(id, docstore.Fields{models.FieldHasActiveSanction: true})
		s.seedSanction("san-"+id, id, models.SanctionSuspension, models.SanctionActive, &ended)
	}
	flaky := &flakyStore{Store: s.store, failBatch: 2, batchErr: errors.Join(errors.New("exec"), sentinel.ErrUnavailable)}
	svc := s.newService(flaky, WithSweepBatchSize(1))

	report, err := svc.SweepExpiredSanctions(s.ctx)
	s.Require().Error(err)
	s.Equal(dErrors.CodeUnavailable, dErrors.CodeOf(err))
	s.Contains(err.Error(), "1 of 3")
	s.Require().NotNil(report)
	s.Equal(3, report.Found)
	s.Equal(1, report.ProcessedCount)

	// Oldest first: the first chunk committed, the rest did not.
	s.Equal(models.SanctionCleared, s.sanction("san-veh-1").Status)
	s.Equal(models.SanctionActive, s.sanction("san-veh-2").Status)
	s.Equal(models.SanctionActive, s.sanction("san-veh-3").Status)
	for _, id := range []string{"veh-1", "veh-2", "veh-3"} {
		s.assertFlagsConsistent(id)
	}

	// A later run picks up the remainder.
	retry, err := s.service.SweepExpiredSanctions(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, retry.ProcessedCount)
}

func (s *ServiceSuite) TestSweepExpiresRegistrations() {
	lapsed := testNow.AddDate(0, 0, -1)
	s.seedVehicle("veh-1", docstore.Fields{
		models.FieldRegistrationStatus:     string(models.RegistrationSuspended),
		models.FieldHasActiveSanction:      true,
		models.FieldRegistrationValidUntil: lapsed,
	})
	s.seedVehicle("veh-2", docstore.Fields{
		models.FieldRegistrationValidUntil: testNow,
		models.FieldPlateNumber:            "XYZ-987",
	})
	s.seedVehicle("veh-3", docstore.Fields{
		models.FieldRegistrationStatus:     string(models.RegistrationExpired),
		models.FieldRegistrationValidUntil: lapsed,
	})
	s.seedVehicle("veh-4", nil)
	end := testNow.AddDate(0, 0, 3)
	s.seedSanction("san-1", "veh-1", models.SanctionSuspension, models.SanctionActive, &end)

	report, err := s.service.SweepExpiredRegistrations(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, report.Found)
	s.Equal(2, report.ProcessedCount)
	s.Require().Len(report.Details, 2)
	s.Equal(models.ExpiredRegistration{
		VehicleID:      "veh-1",
		PlateNumber:    "N/A",
		PreviousStatus: models.RegistrationSuspended,
		ExpiredAt:      report.Details[0].ExpiredAt,
	}, report.Details[0])
	s.Equal("XYZ-987", report.Details[1].PlateNumber)

	s.Equal(models.RegistrationExpired, s.vehicle("veh-1").RegistrationStatus)
	s.Equal(models.RegistrationExpired, s.vehicle("veh-2").RegistrationStatus)
	s.Equal(models.RegistrationActive, s.vehicle("veh-4").RegistrationStatus)

	// Sanction state is orthogonal.
	s.True(s.vehicle("veh-1").HasActiveSanction)
	s.Equal(models.SanctionActive, s.sanction("san-1").Status)

	again, err := s.service.SweepExpiredRegistrations(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, again.Found)
}

func (s *ServiceSuite) TestRegistrationSweepReportsPartialFailure() {
	lapsed := testNow.AddDate(0, 0, -1)
	s.seedVehicle("veh-1", docstore.Fields{models.FieldRegistrationValidUntil: lapsed})
	s.seedVehicle("veh-2", docstore.Fields{models.FieldRegistrationValidUntil: lapsed})
	flaky := &flakyStore{Store: s.store, failBatch: 2, batchErr: sentinel.ErrNotFound}
	svc := s.newService(flaky, WithSweepBatchSize(1))

	report, err := svc.SweepExpiredRegistrations(s.ctx)
	s.Require().Error(err)
	s.Equal(dErrors.CodeConflict, dErrors.CodeOf(err))
	s.Equal(1, report.ProcessedCount)
	s.Equal(2, report.Found)
	s.Equal(models.RegistrationExpired, s.vehicle("veh-1").RegistrationStatus)
	s.Equal(models.RegistrationActive, s.vehicle("veh-2").RegistrationStatus)
}
