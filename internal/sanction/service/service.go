// Package service runs the sanction lifecycle against a document store:
// confirming violations, sweeping expirations, and resolving or renewing
// vehicles.
//
// Every operation stamps one "now" from the request context and runs its
// store calls under a deadline. Transactional operations re-run their whole
// read-decide-write cycle when the store reports a conflict or a transient
// failure, up to a bounded number of attempts.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vehicle-sanctions/internal/docstore"
	"vehicle-sanctions/internal/sanction/escalation"
	"vehicle-sanctions/internal/sanction/metrics"
	dErrors "vehicle-sanctions/pkg/domain-errors"
	"vehicle-sanctions/pkg/platform/audit"
	"vehicle-sanctions/pkg/platform/sentinel"
	"vehicle-sanctions/pkg/requestcontext"
)

const (
	defaultTxMaxAttempts  = 5
	defaultSweepBatchSize = 100
	defaultStoreTimeout   = 5 * time.Second

	tracerName = "vehicle-sanctions/internal/sanction/service"
)

// AuditPublisher receives lifecycle events after their writes commit.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates the sanction lifecycle.
type Service struct {
	store          docstore.Store
	policy         *escalation.Policy
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer

	txMaxAttempts  int
	sweepBatchSize int
	storeTimeout   time.Duration
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithTxMaxAttempts bounds how many times a transaction is run before a
// conflict is reported to the caller.
func WithTxMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.txMaxAttempts = n
		}
	}
}

// WithSweepBatchSize sets how many expired records one sweep batch commits.
func WithSweepBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sweepBatchSize = n
		}
	}
}

// WithStoreTimeout sets the deadline applied to an operation whose context
// has none.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// New constructs a Service. A nil policy evaluates working days in UTC.
func New(store docstore.Store, policy *escalation.Policy, opts ...Option) *Service {
	if policy == nil {
		policy = escalation.NewPolicy(nil)
	}
	s := &Service{
		store:          store,
		policy:         policy,
		logger:         slog.Default(),
		txMaxAttempts:  defaultTxMaxAttempts,
		sweepBatchSize: defaultSweepBatchSize,
		storeTimeout:   defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// begin opens a span and applies the store deadline. The returned finish
// records the outcome and must be called exactly once.
func (s *Service) begin(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "sanction."+operation, trace.WithAttributes(attrs...))

	cancel := context.CancelFunc(func() {})
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		ctx, cancel = context.WithTimeout(ctx, s.storeTimeout)
	}

	return ctx, func(err error) {
		cancel()
		outcome := "ok"
		if err != nil {
			outcome = string(dErrors.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		s.metrics.ObserveOperation(operation, outcome, time.Since(start))
	}
}

// runTx runs fn in a store transaction, re-running it from the start when
// the store reports a retryable failure.
func (s *Service) runTx(ctx context.Context, operation string, fn docstore.TxFunc) error {
	var err error
	for attempt := 1; attempt <= s.txMaxAttempts; attempt++ {
		if attempt > 1 {
			s.metrics.IncTxRetry(operation)
		}
		err = s.store.RunTransaction(ctx, fn)
		if err == nil || !sentinel.IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		s.logger.DebugContext(ctx, "retrying sanction transaction",
			"operation", operation,
			"attempt", attempt,
			"error", err,
		)
	}
	return err
}

// translate converts store failures into coded errors. Coded errors raised
// inside a transaction pass through unchanged.
func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg+": concurrent update")
	case errors.Is(err, sentinel.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg+": store unavailable")
	case errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg+": request cancelled")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg+": record not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

// logAudit writes the structured audit log line and forwards the event to
// the publisher. Publishing failures never fail the committed operation.
func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	args := []any{
		"event", event.Action,
		"log_type", "audit",
		"vehicle_id", event.VehicleID,
	}
	if event.ViolationID != "" {
		args = append(args, "violation_id", event.ViolationID)
	}
	if event.SanctionID != "" {
		args = append(args, "sanction_id", event.SanctionID)
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, event.Action, args...)

	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish audit event",
			"event", event.Action,
			"vehicle_id", event.VehicleID,
			"error", err,
		)
	}
}
