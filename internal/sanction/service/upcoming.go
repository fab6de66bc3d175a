package service

import (
	"context"
	"sort"

	"vehicle-sanctions/internal/docstore"
	"vehicle-sanctions/internal/sanction/models"
	"vehicle-sanctions/pkg/requestcontext"
)

// ListUpcomingExpirations returns active sanctions ending within the next
// daysAhead days, soonest first.
func (s *Service) ListUpcomingExpirations(ctx context.Context, daysAhead int) (result *models.UpcomingExpirations, err error) {
	if err := models.ValidateUpcomingDays(daysAhead); err != nil {
		return nil, err
	}
	ctx, finish := s.begin(ctx, "upcoming")
	defer func() { finish(err) }()

	now := requestcontext.Now(ctx)
	horizon := now.AddDate(0, 0, daysAhead)
	docs, err := s.store.Query(ctx, models.CollectionSanctions,
		docstore.Where(models.FieldStatus, docstore.OpEq, string(models.SanctionActive)),
		docstore.Where(models.FieldEndAt, docstore.OpGt, now),
		docstore.Where(models.FieldEndAt, docstore.OpLte, horizon),
	)
	if err != nil {
		return nil, translate(err, "failed to list upcoming expirations")
	}

	sanctions := make([]*models.Sanction, len(docs))
	for i, doc := range docs {
		sanctions[i] = models.SanctionFromDocument(doc)
	}
	sort.Slice(sanctions, func(i, j int) bool {
		return sanctions[i].EndAt.Before(*sanctions[j].EndAt)
	})
	return &models.UpcomingExpirations{
		Count:     len(sanctions),
		DaysAhead: daysAhead,
		Sanctions: sanctions,
	}, nil
}
