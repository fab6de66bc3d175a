// Command sanctionctl runs sanction maintenance and administrative actions
// against the configured store. Schedulers call `sanctionctl sweep all`.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vehicle-sanctions/internal/app"
	"vehicle-sanctions/internal/platform/config"
	"vehicle-sanctions/internal/platform/logger"
	"vehicle-sanctions/internal/sanction/models"
)

var Version = "dev"

// lifecycle is what the commands drive.
type lifecycle interface {
	ConfirmViolation(ctx context.Context, req *models.ConfirmViolationRequest) (*models.ConfirmResult, error)
	ResolveVehicle(ctx context.Context, req *models.ResolveVehicleRequest) (*models.ResolveResult, error)
	RenewRegistration(ctx context.Context, req *models.RenewVehicleRequest) (*models.RenewResult, error)
	SweepExpiredSanctions(ctx context.Context) (*models.SanctionSweepReport, error)
	SweepExpiredRegistrations(ctx context.Context) (*models.RegistrationSweepReport, error)
	ListUpcomingExpirations(ctx context.Context, daysAhead int) (*models.UpcomingExpirations, error)
}

type maintainer interface {
	RunAll(ctx context.Context) (*models.MaintenanceReport, error)
}

// deps are opened lazily so --help and flag errors never touch the store.
type deps struct {
	service     lifecycle
	maintenance maintainer
	close       func() error
}

type opener func(ctx context.Context, stderr io.Writer) (*deps, error)

func openFromEnv(ctx context.Context, stderr io.Writer) (*deps, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	a, err := app.Build(ctx, cfg, logger.NewWithWriter(stderr, cfg.LogLevel))
	if err != nil {
		return nil, err
	}
	return &deps{service: a.Service, maintenance: a.Maintenance, close: a.Close}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(openFromEnv)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint("error: ")+err.Error())
		stop()
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	opts := &rootOptions{open: open}
	root := &cobra.Command{
		Use:           "sanctionctl",
		Short:         "Operate the vehicle sanction lifecycle",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Print results as JSON")
	root.PersistentFlags().StringVar(&opts.actor, "actor", "", "Actor recorded on writes (defaults per command)")

	root.AddCommand(sweepCmd(opts))
	root.AddCommand(upcomingCmd(opts))
	root.AddCommand(confirmCmd(opts))
	root.AddCommand(resolveCmd(opts))
	root.AddCommand(renewCmd(opts))
	return root
}
