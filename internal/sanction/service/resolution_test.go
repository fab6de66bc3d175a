package service

import (
	"vehicle-sanctions/internal/docstore"
	"vehicle-sanctions/internal/sanction/models"
	dErrors "vehicle-sanctions/pkg/domain-errors"
	"vehicle-sanctions/pkg/platform/audit"
)

func (s *ServiceSuite) seedSanctionedVehicle(vehicleID string) {
	end := testNow.AddDate(0, 0, 12)
	s.seedVehicle(vehicleID, docstore.Fields{
		models.FieldRegistrationStatus:     string(models.RegistrationSuspended),
		models.FieldHasActiveSanction:      true,
		models.FieldHasUnresolvedViolation: true,
	})
	s.seedSanction("san-"+vehicleID, vehicleID, models.SanctionSuspension, models.SanctionActive, &end)
	s.seedSanction("san-old-"+vehicleID, vehicleID, models.SanctionWarning, models.SanctionCompleted, nil)
	s.seedViolation("vio-a-"+vehicleID, vehicleID, models.ViolationConfirmed, docstore.Fields{
		models.FieldSanctionApplied: true,
		models.FieldSanctionID:      "san-old-" + vehicleID,
	})
	s.seedViolation("vio-b-"+vehicleID, vehicleID, models.ViolationConfirmed, docstore.Fields{
		models.FieldSanctionApplied: true,
		models.FieldSanctionID:      "san-" + vehicleID,
	})
	s.seedViolation("vio-c-"+vehicleID, vehicleID, models.ViolationPending, nil)
}

func (s *ServiceSuite) TestResolveLiftsActiveSanctions() {
	s.seedSanctionedVehicle("veh-1")
	s.seedSanctionedVehicle("veh-2")

	result, err := s.service.ResolveVehicle(s.ctx, &models.ResolveVehicleRequest{
		VehicleID:  " veh-1 ",
		ResolvedBy: "admin-7",
	})
	s.Require().NoError(err)
	s.Equal(models.VehicleID("veh-1"), result.VehicleID)
	s.Equal(1, result.ResolvedCount)

	vehicle := s.vehicle("veh-1")
	s.Equal(models.RegistrationActive, vehicle.RegistrationStatus)
	s.False(vehicle.HasActiveSanction)
	s.False(vehicle.HasUnresolvedViolation)
	s.assertFlagsConsistent("veh-1")

	sanction := s.sanction("san-veh-1")
	s.Equal(models.SanctionResolved, sanction.Status)
	s.Equal("admin-7", sanction.ResolvedBy)
	s.Require().NotNil(sanction.ResolvedAt)
	s.True(sanction.ResolvedAt.Equal(testNow))
	s.Equal(models.SanctionCompleted, s.sanction("san-old-veh-1").Status)

	released := s.violation("vio-b-veh-1")
	s.False(released.SanctionApplied)
	s.Equal(models.ViolationConfirmed, released.Status, "history stays confirmed")
	s.True(s.violation("vio-a-veh-1").SanctionApplied)
	s.Equal(models.ViolationPending, s.violation("vio-c-veh-1").Status)

	// The other vehicle is untouched.
	s.Equal(models.SanctionActive, s.sanction("san-veh-2").Status)
	s.True(s.vehicle("veh-2").HasActiveSanction)
	s.True(s.violation("vio-b-veh-2").SanctionApplied)

	s.Equal([]string{string(audit.EventSanctionsResolved)}, s.auditActions("veh-1"))
	s.Empty(s.auditActions("veh-2"))
}

func (s *ServiceSuite) TestResolveIsIdempotent() {
	s.seedSanctionedVehicle("veh-1")

	_, err := s.service.ResolveVehicle(s.ctx, &models.ResolveVehicleRequest{VehicleID: "veh-1"})
	s.Require().NoError(err)
	again, err := s.service.ResolveVehicle(s.ctx, &models.ResolveVehicleRequest{VehicleID: "veh-1"})
	s.Require().NoError(err)
	s.Equal(0, again.ResolvedCount)
	s.Equal(models.RegistrationActive, s.vehicle("veh-1").RegistrationStatus)
	s.assertFlagsConsistent("veh-1")
}

func (s *ServiceSuite) TestResolveKeepsLapsedRegistrationExpired() {
	lapsed := testNow.AddDate(0, 0, -10)
	s.seedVehicle("veh-1", docstore.Fields{
		models.FieldRegistrationStatus:     string(models.RegistrationRevoked),
		models.FieldHasActiveSanction:      true,
		models.FieldRegistrationValidUntil: lapsed,
	})
	s.seedSanction("san-1", "veh-1", models.SanctionRevocation, models.SanctionActive, nil)

	_, err := s.service.ResolveVehicle(s.ctx, &models.ResolveVehicleRequest{VehicleID: "veh-1"})
	s.Require().NoError(err)
	s.Equal(models.RegistrationExpired, s.vehicle("veh-1").RegistrationStatus)
	s.assertFlagsConsistent("veh-1")
}

func (s *ServiceSuite) TestResolveErrors() {
	tests := []struct {
		name string
		req  *models.ResolveVehicleRequest
		code dErrors.Code
	}{
		{"nil request", nil, dErrors.CodeBadRequest},
		{"blank id", &models.ResolveVehicleRequest{VehicleID: ""}, dErrors.CodeValidation},
		{"unknown vehicle", &models.ResolveVehicleRequest{VehicleID: "veh-404"}, dErrors.CodeNotFound},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.ResolveVehicle(s.ctx, tt.req)
			s.Require().Error(err)
			s.Equal(tt.code, dErrors.CodeOf(err))
		})
	}
}

func renewReq(vehicleID string) *models.RenewVehicleRequest {
	return &models.RenewVehicleRequest{
		VehicleID:    vehicleID,
		YearLevel:    "3rd Year",
		Semester:     "1st Semester",
		AcademicYear: "2025-2026",
		RenewedBy:    "registrar-2",
	}
}

func (s *ServiceSuite) TestRenewWipesRecord() {
	s.seedSanctionedVehicle("veh-1")
	s.seedSanctionedVehicle("veh-2")

	result, err := s.service.RenewRegistration(s.ctx, renewReq("veh-1"))
	s.Require().NoError(err)
	s.Equal(models.VehicleID("veh-1"), result.VehicleID)
	s.True(result.NewExpiryDate.Equal(testNow.AddDate(0, 0, models.DefaultExtensionDays)))
	s.Equal(2, result.ViolationsCleared)
	s.Equal(1, result.SanctionsCleared)

	vehicle := s.vehicle("veh-1")
	s.Equal(models.RegistrationActive, vehicle.RegistrationStatus)
	s.False(vehicle.HasActiveSanction)
	s.False(vehicle.HasUnresolvedViolation)
	s.Equal("2025-2026", vehicle.AcademicYear)
	s.Equal("registrar-2", vehicle.LastRenewedBy)
	s.Require().NotNil(vehicle.RegistrationValidFrom)
	s.True(vehicle.RegistrationValidFrom.Equal(testNow))
	s.Require().NotNil(vehicle.RegistrationValidUntil)
	s.True(vehicle.RegistrationValidUntil.Equal(result.NewExpiryDate))
	s.assertFlagsConsistent("veh-1")

	for _, id := range []string{"vio-a-veh-1", "vio-b-veh-1"} {
		violation := s.violation(id)
		s.Equal(models.ViolationCleared, violation.Status)
		s.False(violation.SanctionApplied)
		s.Equal("registrar-2", violation.ClearedBy)
	}
	s.Equal(models.ViolationPending, s.violation("vio-c-veh-1").Status)

	sanction := s.sanction("san-veh-1")
	s.Equal(models.SanctionCleared, sanction.Status)
	s.Equal("registrar-2", sanction.EndedBy)
	s.Require().NotNil(sanction.EndAt)
	s.True(sanction.EndAt.Equal(testNow))
	s.Equal(models.SanctionCompleted, s.sanction("san-old-veh-1").Status)

	s.Equal(models.ViolationConfirmed, s.violation("vio-a-veh-2").Status)
	s.Equal(models.SanctionActive, s.sanction("san-veh-2").Status)
	s.True(s.vehicle("veh-2").HasActiveSanction)

	s.Equal([]string{string(audit.EventRegistrationRenewed)}, s.auditActions("veh-1"))
}

func (s *ServiceSuite) TestRenewResetsOffenseCount() {
	s.seedSanctionedVehicle("veh-1")
	s.seedViolation("vio-new", "veh-1", models.ViolationPending, nil)

	_, err := s.service.RenewRegistration(s.ctx, renewReq("veh-1"))
	s.Require().NoError(err)

	result, err := s.service.ConfirmViolation(s.ctx, confirmReq("vio-new"))
	s.Require().NoError(err)
	s.Equal(1, result.OffenseOrdinal)
	s.Equal(models.SanctionWarning, result.SanctionType)
}

func (s *ServiceSuite) TestRenewCustomExtension() {
	s.seedVehicle("veh-1", nil)
	days := 0
	req := renewReq("veh-1")
	req.ExtensionDays = &days

	result, err := s.service.RenewRegistration(s.ctx, req)
	s.Require().NoError(err)
	s.True(result.NewExpiryDate.Equal(testNow))
	s.Equal(0, result.ViolationsCleared)
	s.Equal(0, result.SanctionsCleared)
}

func (s *ServiceSuite) TestRenewErrors() {
	s.seedVehicle("veh-1", nil)
	tooLong := models.MaxExtensionDays + 1
	negative := -1

	tests := []struct {
		name   string
		mutate func(r *models.RenewVehicleRequest)
		code   dErrors.Code
	}{
		{"unknown vehicle", func(r *models.RenewVehicleRequest) { r.VehicleID = "veh-404" }, dErrors.CodeNotFound},
		{"missing academic year", func(r *models.RenewVehicleRequest) { r.AcademicYear = " " }, dErrors.CodeValidation},
		{"missing renewer", func(r *models.RenewVehicleRequest) { r.RenewedBy = "" }, dErrors.CodeValidation},
		{"extension too long", func(r *models.RenewVehicleRequest) { r.ExtensionDays = &tooLong }, dErrors.CodeValidation},
		{"negative extension", func(r *models.RenewVehicleRequest) { r.ExtensionDays = &negative }, dErrors.CodeValidation},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := renewReq("veh-1")
			tt.mutate(req)
			_, err := s.service.RenewRegistration(s.ctx, req)
			s.Require().Error(err)
			s.Equal(tt.code, dErrors.CodeOf(err))
		})
	}
	s.Nil(s.vehicle("veh-1").LastRenewedAt)
}
