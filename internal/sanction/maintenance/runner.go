// Package maintenance runs the periodic expiration sweeps as one job.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"vehicle-sanctions/internal/sanction/models"
	"vehicle-sanctions/pkg/requestcontext"
)

const runAllKey = "run-all"

// Sweeper is the part of the sanction service the runner drives.
type Sweeper interface {
	SweepExpiredRegistrations(ctx context.Context) (*models.RegistrationSweepReport, error)
	SweepExpiredSanctions(ctx context.Context) (*models.SanctionSweepReport, error)
}

type Runner struct {
	sweeper Sweeper
	logger  *slog.Logger
	group   singleflight.Group
}

type Option func(r *Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func New(sweeper Sweeper, opts ...Option) *Runner {
	r := &Runner{sweeper: sweeper}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

type outcome struct {
	report *models.MaintenanceReport
	err    error
}

// RunAll expires lapsed registrations, then clears expired sanctions.
// The registration sweep commits on its own, so its report is kept when the
// sanction sweep fails; that failure is returned as the job error.
//
// Calls that overlap an in-flight run share its result.
func (r *Runner) RunAll(ctx context.Context) (*models.MaintenanceReport, error) {
	v, _, shared := r.group.Do(runAllKey, func() (any, error) {
		report, err := r.runAll(ctx)
		return outcome{report: report, err: err}, nil
	})
	if shared {
		r.logger.InfoContext(ctx, "maintenance run joined an in-flight run")
	}
	res := v.(outcome)
	return res.report, res.err
}

func (r *Runner) runAll(ctx context.Context) (*models.MaintenanceReport, error) {
	wall := time.Now()
	report := &models.MaintenanceReport{StartedAt: requestcontext.Now(ctx)}

	registrations, regErr := r.sweeper.SweepExpiredRegistrations(ctx)
	report.Registrations = registrations
	if regErr != nil {
		r.logger.ErrorContext(ctx, "registration sweep failed; continuing with sanctions",
			"error", regErr,
		)
	}

	sanctions, err := r.sweeper.SweepExpiredSanctions(ctx)
	report.Sanctions = sanctions
	report.Duration = time.Since(wall)
	if err != nil {
		r.logger.ErrorContext(ctx, "sanction sweep failed", "error", err)
		return report, err
	}
	if regErr != nil {
		return report, regErr
	}

	r.logger.InfoContext(ctx, "maintenance run completed",
		"registrations_expired", processed(registrations),
		"sanctions_cleared", processedSanctions(sanctions),
		"duration", report.Duration,
	)
	return report, nil
}

func processed(r *models.RegistrationSweepReport) int {
	if r == nil {
		return 0
	}
	return r.ProcessedCount
}

func processedSanctions(r *models.SanctionSweepReport) int {
	if r == nil {
		return 0
	}
	return r.ProcessedCount
}
