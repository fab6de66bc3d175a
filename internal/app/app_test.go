package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-sanctions/internal/docstore"
	"vehicle-sanctions/internal/platform/config"
	"vehicle-sanctions/internal/sanction/models"
	"vehicle-sanctions/pkg/requestcontext"
)

func memoryConfig() config.Server {
	return config.Server{
		Store: config.StoreMemory,
		Sanctions: config.SanctionConfig{
			StoreTimeout:   time.Second,
			TxMaxAttempts:  3,
			SweepBatchSize: 10,
			Location:       time.UTC,
		},
	}
}

func TestBuildWiresMemoryStack(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := Build(context.Background(), memoryConfig(), logger, WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)

	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	require.NoError(t, a.Store.RunBatch(ctx, func(b docstore.Batch) error {
		if err := b.Create(models.CollectionVehicles, "veh-1", docstore.Fields{
			models.FieldRegistrationStatus:     string(models.RegistrationActive),
			models.FieldHasActiveSanction:      false,
			models.FieldHasUnresolvedViolation: false,
		}); err != nil {
			return err
		}
		return b.Create(models.CollectionViolations, "vio-1", docstore.Fields{
			models.FieldVehicleID:       "veh-1",
			models.FieldStatus:          string(models.ViolationPending),
			models.FieldSanctionApplied: false,
		})
	}))

	result, err := a.Service.ConfirmViolation(ctx, &models.ConfirmViolationRequest{ViolationID: "vio-1"})
	require.NoError(t, err)
	assert.Equal(t, models.SanctionWarning, result.SanctionType)

	report, err := a.Maintenance.RunAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Sanctions.Found)

	// Closing drains the async event log.
	require.NoError(t, a.Close())
	events, err := a.Events.ListByVehicle(context.Background(), "veh-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "sanction_applied", events[0].Action)
}

func TestBuildRejectsUnknownBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store = "cassandra"
	_, err := Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithRegisterer(prometheus.NewRegistry()))
	require.Error(t, err)
}
