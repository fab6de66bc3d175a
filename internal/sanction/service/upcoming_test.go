package service

import (
	"vehicle-sanctions/internal/sanction/models"
	dErrors "vehicle-sanctions/pkg/domain-errors"
)

func (s *ServiceSuite) TestListUpcomingExpirations() {
	inThree := testNow.AddDate(0, 0, 3)
	inOne := testNow.AddDate(0, 0, 1)
	edge := testNow.AddDate(0, 0, 7)
	beyond := testNow.AddDate(0, 0, 8)
	past := testNow.AddDate(0, 0, -1)

	s.seedSanction("san-3", "veh-1", models.SanctionSuspension, models.SanctionActive, &inThree)
	s.seedSanction("san-1", "veh-2", models.SanctionSuspension, models.SanctionActive, &inOne)
	s.seedSanction("san-7", "veh-3", models.SanctionSuspension, models.SanctionActive, &edge)
	s.seedSanction("san-8", "veh-4", models.SanctionSuspension, models.SanctionActive, &beyond)
	s.seedSanction("san-past", "veh-5", models.SanctionSuspension, models.SanctionActive, &past)
	s.seedSanction("san-done", "veh-6", models.SanctionSuspension, models.SanctionCleared, &inOne)
	s.seedSanction("san-rev", "veh-7", models.SanctionRevocation, models.SanctionActive, nil)

	result, err := s.service.ListUpcomingExpirations(s.ctx, 7)
	s.Require().NoError(err)
	s.Equal(7, result.DaysAhead)
	s.Equal(3, result.Count)

	ids := make([]models.SanctionID, len(result.Sanctions))
	for i, sanction := range result.Sanctions {
		ids[i] = sanction.ID
	}
	s.Equal([]models.SanctionID{"san-1", "san-3", "san-7"}, ids)
}

func (s *ServiceSuite) TestListUpcomingExpirationsEmpty() {
	result, err := s.service.ListUpcomingExpirations(s.ctx, 30)
	s.Require().NoError(err)
	s.Equal(0, result.Count)
	s.Empty(result.Sanctions)
}

func (s *ServiceSuite) TestListUpcomingExpirationsRejectsWindow() {
	for _, days := range []int{0, -1, 31} {
		_, err := s.service.ListUpcomingExpirations(s.ctx, days)
		s.Require().Error(err)
		s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
	}
}
