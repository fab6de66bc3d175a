package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vehicle-sanctions/internal/sanction/models"
	"vehicle-sanctions/pkg/requestcontext"
)

type rootOptions struct {
	open  opener
	json  bool
	actor string
}

// run opens the dependencies, stamps a request context and calls fn.
func (o *rootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, d *deps, out *printer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = requestcontext.WithTime(ctx, time.Now())
	ctx = requestcontext.WithRequestID(ctx, uuid.NewString())
	if o.actor != "" {
		ctx = requestcontext.WithActor(ctx, o.actor)
	}

	d, err := o.open(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = d.close() }()

	return fn(ctx, d, newPrinter(cmd.OutOrStdout(), o.json))
}

func sweepCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "sweep [all|registrations|sanctions]",
		Short:     "Expire lapsed registrations and clear expired suspensions",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"all", "registrations", "sanctions"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "all"
			if len(args) == 1 {
				target = args[0]
			}
			return o.run(cmd, func(ctx context.Context, d *deps, out *printer) error {
				switch target {
				case "registrations":
					report, err := d.service.SweepExpiredRegistrations(ctx)
					out.registrationSweep(report)
					return err
				case "sanctions":
					report, err := d.service.SweepExpiredSanctions(ctx)
					out.sanctionSweep(report)
					return err
				default:
					report, err := d.maintenance.RunAll(ctx)
					out.maintenance(report)
					return err
				}
			})
		},
	}
}

func upcomingCmd(o *rootOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List active suspensions ending soon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := models.ValidateUpcomingDays(days); err != nil {
				return err
			}
			return o.run(cmd, func(ctx context.Context, d *deps, out *printer) error {
				result, err := d.service.ListUpcomingExpirations(ctx, days)
				if err != nil {
					return err
				}
				out.upcoming(result)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", models.DefaultUpcomingDays, "Look-ahead window in days (1-30)")
	return cmd
}

func confirmCmd(o *rootOptions) *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:   "confirm <violation-id>",
		Short: "Confirm a violation and apply the escalated sanction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &models.ConfirmViolationRequest{ViolationID: args[0], ConfirmedBy: by}
			if err := req.Validate(); err != nil {
				return err
			}
			return o.run(cmd, func(ctx context.Context, d *deps, out *printer) error {
				result, err := d.service.ConfirmViolation(ctx, req)
				if err != nil {
					return err
				}
				out.confirm(result)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "Officer confirming the violation")
	return cmd
}

func resolveCmd(o *rootOptions) *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:   "resolve <vehicle-id>",
		Short: "Lift every active sanction of a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &models.ResolveVehicleRequest{VehicleID: args[0], ResolvedBy: by}
			if err := req.Validate(); err != nil {
				return err
			}
			return o.run(cmd, func(ctx context.Context, d *deps, out *printer) error {
				result, err := d.service.ResolveVehicle(ctx, req)
				if err != nil {
					return err
				}
				out.resolve(result)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "Administrator resolving the sanctions")
	return cmd
}

func renewCmd(o *rootOptions) *cobra.Command {
	req := &models.RenewVehicleRequest{}
	var extension int
	cmd := &cobra.Command{
		Use:   "renew <vehicle-id>",
		Short: "Renew a registration and clear the vehicle's record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.VehicleID = args[0]
			if cmd.Flags().Changed("extension-days") {
				req.ExtensionDays = &extension
			}
			if err := req.Validate(); err != nil {
				return err
			}
			return o.run(cmd, func(ctx context.Context, d *deps, out *printer) error {
				result, err := d.service.RenewRegistration(ctx, req)
				if err != nil {
					return err
				}
				out.renew(result)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.YearLevel, "year-level", "", "Year level for the new term")
	cmd.Flags().StringVar(&req.Semester, "semester", "", "Semester for the new term")
	cmd.Flags().StringVar(&req.AcademicYear, "academic-year", "", "Academic year, e.g. 2025-2026")
	cmd.Flags().StringVar(&req.RenewedBy, "by", "", "Registrar performing the renewal")
	cmd.Flags().IntVar(&extension, "extension-days", models.DefaultExtensionDays,
		fmt.Sprintf("Days the registration stays valid (0-%d)", models.MaxExtensionDays))
	return cmd
}
