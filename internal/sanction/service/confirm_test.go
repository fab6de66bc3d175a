package service

import (
	"sync"

	"vehicle-sanctions/internal/docstore"
	"vehicle-sanctions/internal/sanction/models"
	dErrors "vehicle-sanctions/pkg/domain-errors"
	"vehicle-sanctions/pkg/platform/audit"
	"vehicle-sanctions/pkg/platform/sentinel"
	"vehicle-sanctions/pkg/requestcontext"
)

func (s *ServiceSuite) TestConfirmFirstOffenseIssuesWarning() {
	s.seedVehicle("veh-1", nil)
	s.seedViolation("vio-1", "veh-1", models.ViolationPending, nil)

	result, err := s.service.ConfirmViolation(s.ctx, confirmReq("vio-1"))
	s.Require().NoError(err)

	s.Equal(1, result.OffenseOrdinal)
	s.Equal(models.SanctionWarning, result.SanctionType)
	s.Equal(models.RegistrationWarned, result.VehicleStatus)
	s.Nil(result.EndAt)
	s.False(result.AlreadyConfirmed)

	violation := s.violation("vio-1")
	s.Equal(models.ViolationConfirmed, violation.Status)
	s.True(violation.SanctionApplied)
	s.Equal(result.SanctionID, violation.SanctionID)
	s.Equal(1, violation.OffenseNumber)
	s.Equal("officer-1", violation.ConfirmedBy)
	s.Require().NotNil(violation.ConfirmedAt)
	s.True(violation.ConfirmedAt.Equal(testNow))

	sanction := s.sanction(result.SanctionID.String())
	s.Equal(models.SanctionCompleted, sanction.Status)
	s.Equal(models.ViolationID("vio-1"), sanction.ViolationID)
	s.Equal(1, sanction.OffenseNumber)

	vehicle := s.vehicle("veh-1")
	s.Equal(models.RegistrationWarned, vehicle.RegistrationStatus)
	s.False(vehicle.HasActiveSanction)
	s.True(vehicle.HasUnresolvedViolation)
	s.assertFlagsConsistent("veh-1")

	s.Equal([]string{string(audit.EventSanctionApplied)}, s.auditActions("veh-1"))
}

func (s *ServiceSuite) TestConfirmSecondOffenseSuspends() {
	s.seedVehicle("veh-1", docstore.Fields{
		models.FieldRegistrationStatus:     string(models.RegistrationWarned),
		models.FieldHasUnresolvedViolation: true,
	})
	s.seedViolation("vio-1", "veh-1", models.ViolationConfirmed, nil)
	s.seedViolation("vio-2", "veh-1", models.ViolationPending, nil)

	result, err := s.service.ConfirmViolation(s.ctx, confirmReq("vio-2"))
	s.Require().NoError(err)

	s.Equal(2, result.OffenseOrdinal)
	s.Equal(models.SanctionSuspension, result.SanctionType)
	s.Equal(models.RegistrationSuspended, result.VehicleStatus)
	s.Require().NotNil(result.EndAt)
	s.True(result.EndAt.Equal(s.policy.AddWorkingDays(testNow, 30)))

	sanction := s.sanction(result.SanctionID.String())
	s.Equal(models.SanctionActive, sanction.Status)
	s.Require().NotNil(sanction.EndAt)
	s.True(sanction.EndAt.Equal(*result.EndAt))

	vehicle := s.vehicle("veh-1")
	s.Equal(models.RegistrationSuspended, vehicle.RegistrationStatus)
	s.True(vehicle.HasActiveSanction)
	s.True(vehicle.HasUnresolvedViolation)
	s.assertFlagsConsistent("veh-1")
}

func (s *ServiceSuite) TestConfirmThirdOffenseRevokes() {
	s.seedVehicle("veh-1", nil)
	s.seedViolation("vio-1", "veh-1", models.ViolationConfirmed, nil)
	s.seedViolation("vio-2", "veh-1", models.ViolationConfirmed, nil)
	s.seedViolation("vio-3", "veh-1", models.ViolationPending, nil)
	// Cleared history and other vehicles do not count.
	s.seedViolation("vio-old", "veh-1", models.ViolationCleared, nil)
	s.seedViolation("vio-other", "veh-2", models.ViolationConfirmed, nil)

	result, err := s.service.ConfirmViolation(s.ctx, confirmReq("vio-3"))
	s.Require().NoError(err)
	s.Equal(3, result.OffenseOrdinal)
	s.Equal(models.SanctionRevocation, result.SanctionType)
	s.Nil(result.EndAt)

	s.Equal(models.RegistrationRevoked, s.vehicle("veh-1").RegistrationStatus)
	s.assertFlagsConsistent("veh-1")
}

func (s *ServiceSuite) TestConfirmIsIdempotent() {
	s.seedVehicle("veh-1", nil)
	s.seedViolation("vio-1", "veh-1", models.ViolationPending, nil)

	first, err := s.service.ConfirmViolation(s.ctx, confirmReq("vio-1"))
	s.Require().NoError(err)
	before := s.vehicle("veh-1")

	second, err := s.service.ConfirmViolation(s.ctx, confirmReq("vio-1"))
	s.Require().NoError(err)

	s.True(second.AlreadyConfirmed)
	s.Equal(first.SanctionID, second.SanctionID)
	s.Equal(first.SanctionType, second.SanctionType)
	s.Equal(first.OffenseOrdinal, second.OffenseOrdinal)
	s.Len(s.sanctionsOf("veh-1"), 1)
	s.Equal(before, s.vehicle("veh-1"))
	s.Len(s.auditActions("veh-1"), 1)
}

func (s *ServiceSuite) TestConfirmRejectsVehicleWithActiveSanction() {
	end := testNow.AddDate(0, 0, 10)
	s.seedVehicle("veh-1", docstore.Fields{
		models.FieldRegistrationStatus: string(models.RegistrationSuspended),
		models.FieldHasActiveSanction:  true,
	})
	s.seedSanction("san-1", "veh-1", models.SanctionSuspension, models.SanctionActive, &end)
	s.seedViolation("vio-2", "veh-1", models.ViolationPending, nil)

	_, err := s.service.ConfirmViolation(s.ctx, confirmReq("vio-2"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	violation := s.violation("vio-2")
	s.Equal(models.ViolationPending, violation.Status)
	s.False(violation.SanctionApplied)
	s.Len(s.sanctionsOf("veh-1"), 1)
	s.Equal(models.RegistrationSuspended, s.vehicle("veh-1").RegistrationStatus)
}

func (s *ServiceSuite) TestConfirmErrors() {
	s.seedVehicle("veh-1", nil)
	s.seedViolation("vio-cleared", "veh-1", models.ViolationCleared, nil)
	s.seedViolation("vio-orphan", "veh-missing", models.ViolationPending, nil)

	tests := []struct {
		name string
		req  *models.ConfirmViolationRequest
		code dErrors.Code
	}{
		{"missing id", &models.ConfirmViolationRequest{ViolationID: "  "}, dErrors.CodeValidation},
		{"nil request", nil, dErrors.CodeBadRequest},
		{"unknown violation", confirmReq("vio-404"), dErrors.CodeNotFound},
		{"cleared violation", confirmReq("vio-cleared"), dErrors.CodeConflict},
		{"missing vehicle", confirmReq("vio-orphan"), dErrors.CodeNotFound},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.ConfirmViolation(s.ctx, tt.req)
			s.Require().Error(err)
			s.Equal(tt.code, dErrors.CodeOf(err))
		})
	}
	s.Empty(s.sanctionsOf("veh-1"))
}

func (s *ServiceSuite) TestConfirmRetriesTransientConflicts() {
	s.seedVehicle("veh-1", nil)
	s.seedViolation("vio-1", "veh-1", models.ViolationPending, nil)

	flaky := &flakyStore{Store: s.store, txFailures: 2, txErr: sentinel.ErrConflict}
	svc := s.newService(flaky, WithTxMaxAttempts(3))

	result, err := svc.ConfirmViolation(s.ctx, confirmReq("vio-1"))
	s.Require().NoError(err)
	s.Equal(models.SanctionWarning, result.SanctionType)
	s.EqualValues(3, flaky.txCalls.Load())
	s.Len(s.sanctionsOf("veh-1"), 1)
}

func (s *ServiceSuite) TestConfirmReportsExhaustedRetries() {
	s.seedVehicle("veh-1", nil)
	s.seedViolation("vio-1", "veh-1", models.ViolationPending, nil)

	tests := []struct {
		name  string
		cause error
		code  dErrors.Code
	}{
		{"conflict", sentinel.ErrConflict, dErrors.CodeConflict},
		{"unavailable", sentinel.ErrUnavailable, dErrors.CodeUnavailable},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			flaky := &flakyStore{Store: s.store, txFailures: 100, txErr: tt.cause}
			svc := s.newService(flaky, WithTxMaxAttempts(2))

			_, err := svc.ConfirmViolation(s.ctx, confirmReq("vio-1"))
			s.Require().Error(err)
			s.Equal(tt.code, dErrors.CodeOf(err))
			s.EqualValues(2, flaky.txCalls.Load())
		})
	}
	s.Equal(models.ViolationPending, s.violation("vio-1").Status)
}

// Two officers confirm different violations of the same vehicle at once.
// Both would earn a suspension; the transaction re-check lets only one
// through.
func (s *ServiceSuite) TestConcurrentConfirmationsSanctionOnce() {
	s.seedVehicle("veh-1", nil)
	s.seedViolation("vio-1", "veh-1", models.ViolationConfirmed, nil)
	s.seedViolation("vio-2", "veh-1", models.ViolationPending, nil)
	s.seedViolation("vio-3", "veh-1", models.ViolationPending, nil)

	svc := s.newService(s.store, WithTxMaxAttempts(10))
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"vio-2", "vio-3"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.ConfirmViolation(s.ctx, confirmReq(id))
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.True(dErrors.HasCode(err, dErrors.CodeConflict), "unexpected error: %v", err)
	}
	s.Equal(1, succeeded)

	active, err := activeSanctions(s.ctx, s.store, "veh-1")
	s.Require().NoError(err)
	s.Len(active, 1)
	s.Equal(models.SanctionSuspension, active[0].Type)
	s.assertFlagsConsistent("veh-1")
}

func (s *ServiceSuite) TestEscalationAcrossLifecycle() {
	svc := s.service
	s.seedVehicle("veh-1", nil)
	for _, id := range []string{"vio-1", "vio-2", "vio-3"} {
		s.seedViolation(id, "veh-1", models.ViolationPending, nil)
	}

	first, err := svc.ConfirmViolation(s.ctx, confirmReq("vio-1"))
	s.Require().NoError(err)
	s.Equal(models.SanctionWarning, first.SanctionType)

	second, err := svc.ConfirmViolation(s.ctx, confirmReq("vio-2"))
	s.Require().NoError(err)
	s.Equal(models.SanctionSuspension, second.SanctionType)

	// Blocked while the suspension is in force.
	_, err = svc.ConfirmViolation(s.ctx, confirmReq("vio-3"))
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	// After the suspension lapses and is swept, the next offense revokes.
	later := requestcontext.WithTime(s.ctx, second.EndAt.AddDate(0, 0, 1))
	report, err := svc.SweepExpiredSanctions(later)
	s.Require().NoError(err)
	s.Equal(1, report.ProcessedCount)
	s.assertFlagsConsistent("veh-1")

	third, err := svc.ConfirmViolation(later, confirmReq("vio-3"))
	s.Require().NoError(err)
	s.Equal(3, third.OffenseOrdinal)
	s.Equal(models.SanctionRevocation, third.SanctionType)
	s.assertFlagsConsistent("veh-1")
}
