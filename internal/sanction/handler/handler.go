package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vehicle-sanctions/internal/sanction/models"
	dErrors "vehicle-sanctions/pkg/domain-errors"
	"vehicle-sanctions/pkg/platform/httputil"
	request "vehicle-sanctions/pkg/platform/middleware/request"
	"vehicle-sanctions/pkg/requestcontext"
)

// Service defines the sanction lifecycle operations exposed over HTTP.
type Service interface {
	ConfirmViolation(ctx context.Context, req *models.ConfirmViolationRequest) (*models.ConfirmResult, error)
	ResolveVehicle(ctx context.Context, req *models.ResolveVehicleRequest) (*models.ResolveResult, error)
	RenewRegistration(ctx context.Context, req *models.RenewVehicleRequest) (*models.RenewResult, error)
	SweepExpiredSanctions(ctx context.Context) (*models.SanctionSweepReport, error)
	SweepExpiredRegistrations(ctx context.Context) (*models.RegistrationSweepReport, error)
	ListUpcomingExpirations(ctx context.Context, daysAhead int) (*models.UpcomingExpirations, error)
}

// Maintenance runs both sweeps as one job.
type Maintenance interface {
	RunAll(ctx context.Context) (*models.MaintenanceReport, error)
}

// Handler serves the sanction, vehicle and maintenance endpoints.
type Handler struct {
	logger      *slog.Logger
	service     Service
	maintenance Maintenance
	started     time.Time
}

// New creates a new sanction Handler.
func New(service Service, maintenance Maintenance, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		service:     service,
		maintenance: maintenance,
		started:     time.Now(),
	}
}

// Register registers the routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.handleHealth)

	r.Route("/api/sanctions", func(r chi.Router) {
		r.Post("/from-violation", h.handleConfirmViolation)
		r.Post("/resolve", h.handleResolveVehicle)
		r.Post("/resolve-vehicle", h.handleResolveVehicle)
		r.Post("/resolve-expired", h.handleClearSanctions)
		r.Get("/upcoming-expirations", h.handleUpcomingExpirations)
	})
	r.Post("/api/vehicles/renew", h.handleRenewVehicle)
	r.Route("/api/maintenance", func(r chi.Router) {
		r.Post("/run-all", h.handleRunAll)
		r.Post("/expire-registrations", h.handleExpireRegistrations)
		r.Post("/clear-sanctions", h.handleClearSanctions)
	})
}

func (h *Handler) handleConfirmViolation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(r)

	req, ok := httputil.DecodeAndPrepare[models.ConfirmViolationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.ConfirmViolation(ctx, req)
	if err != nil {
		h.fail(ctx, w, "failed to confirm violation", err,
			"violation_id", req.ViolationID,
		)
		return
	}

	message := "Sanction applied"
	if result.AlreadyConfirmed {
		message = "Violation was already confirmed"
	}
	httputil.WriteJSON(w, http.StatusOK, confirmResponse{
		Success:       true,
		Message:       message,
		ConfirmResult: result,
	})
}

func (h *Handler) handleResolveVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(r)

	req, ok := httputil.DecodeAndPrepare[models.ResolveVehicleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.ResolveVehicle(ctx, req)
	if err != nil {
		h.fail(ctx, w, "failed to resolve vehicle sanctions", err,
			"vehicle_id", req.VehicleID,
		)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resolveResponse{
		Success:       true,
		Message:       "Vehicle sanctions resolved successfully",
		ResolveResult: result,
	})
}

func (h *Handler) handleRenewVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(r)

	req, ok := httputil.DecodeAndPrepare[models.RenewVehicleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.RenewRegistration(ctx, req)
	if err != nil {
		h.fail(ctx, w, "failed to renew vehicle", err,
			"vehicle_id", req.VehicleID,
		)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, renewResponse{
		Success:     true,
		Message:     "Vehicle renewed successfully",
		RenewResult: result,
	})
}

func (h *Handler) handleUpcomingExpirations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days, err := parseDaysAhead(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.ListUpcomingExpirations(ctx, days)
	if err != nil {
		h.fail(ctx, w, "failed to list upcoming expirations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, upcomingResponse{
		Success:             true,
		UpcomingExpirations: result,
	})
}

func (h *Handler) handleClearSanctions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.service.SweepExpiredSanctions(ctx)
	if err != nil {
		h.failSweep(ctx, w, "sanction clearing stopped", err, report)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sanctionSweepResponse{
		Success:             true,
		Message:             "Sanction clearing completed",
		SanctionSweepReport: report,
	})
}

func (h *Handler) handleExpireRegistrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.service.SweepExpiredRegistrations(ctx)
	if err != nil {
		h.failSweep(ctx, w, "registration expiration stopped", err, report)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, registrationSweepResponse{
		Success:                 true,
		Message:                 "Registration expiration completed",
		RegistrationSweepReport: report,
	})
}

func (h *Handler) handleRunAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.maintenance.RunAll(ctx)
	if err != nil {
		h.failSweep(ctx, w, "maintenance run failed", err, report)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, maintenanceResponse{
		Success:           true,
		Message:           "Maintenance jobs completed successfully",
		MaintenanceReport: report,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := requestcontext.Now(r.Context())
	httputil.WriteJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Timestamp: now.UTC(),
		Uptime:    time.Since(h.started).Seconds(),
	})
}

// fail logs at a level matching the error's class and writes the envelope.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, attrs ...any) {
	attrs = append(attrs, "request_id", requestcontext.RequestID(ctx), "error", err)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

// failSweep writes the error envelope with whatever the sweep committed
// before it stopped.
func (h *Handler) failSweep(ctx context.Context, w http.ResponseWriter, msg string, err error, partial any) {
	code := dErrors.CodeOf(err)
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	resp := partialResponse{
		ErrorResponse: httputil.ErrorResponse{Error: string(code)},
		Partial:       partial,
	}
	if code != dErrors.CodeInternal {
		resp.ErrorDescription = dErrors.MessageOf(err)
	}
	httputil.WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}

// parseDaysAhead reads days_ahead (or the legacy daysAhead) and defaults to
// DefaultUpcomingDays when both are absent.
func parseDaysAhead(r *http.Request) (int, error) {
	q := r.URL.Query()
	raw := strings.TrimSpace(q.Get("days_ahead"))
	if raw == "" {
		raw = strings.TrimSpace(q.Get("daysAhead"))
	}
	if raw == "" {
		return models.DefaultUpcomingDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, "days_ahead must be an integer")
	}
	return days, nil
}
