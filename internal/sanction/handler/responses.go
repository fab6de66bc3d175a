package handler

import (
	"time"

	"vehicle-sanctions/internal/sanction/models"
	"vehicle-sanctions/pkg/platform/httputil"
)

// Success envelopes flatten the operation result next to success/message.

type confirmResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*models.ConfirmResult
}

type resolveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*models.ResolveResult
}

type renewResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*models.RenewResult
}

type upcomingResponse struct {
	Success bool `json:"success"`
	*models.UpcomingExpirations
}

type sanctionSweepResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*models.SanctionSweepReport
}

type registrationSweepResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*models.RegistrationSweepReport
}

type maintenanceResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*models.MaintenanceReport
}

// partialResponse reports a failed sweep with the work it committed.
type partialResponse struct {
	httputil.ErrorResponse
	Partial any `json:"partial,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
}
