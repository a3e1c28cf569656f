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

	"stablehand/internal/selection/metrics"
	"stablehand/internal/selection/models"
	"stablehand/internal/selection/turnorder"
	"stablehand/pkg/attrs"
	id "stablehand/pkg/domain"
	dErrors "stablehand/pkg/domain-errors"
	"stablehand/pkg/platform/audit"
	"stablehand/pkg/platform/sentinel"
	txcontext "stablehand/pkg/platform/tx"
	"stablehand/pkg/requestcontext"
)

type ProcessStore interface {
	Create(ctx context.Context, p *models.SelectionProcess) error
	FindByID(ctx context.Context, processID id.ProcessID) (*models.SelectionProcess, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.SelectionProcess, error)
	Execute(ctx context.Context, processID id.ProcessID, validate func(*models.SelectionProcess) error, mutate func(*models.SelectionProcess)) (*models.SelectionProcess, error)
}

type EntryStore interface {
	Append(ctx context.Context, e *models.SelectionEntry) error
	ListByProcess(ctx context.Context, processID id.ProcessID) ([]*models.SelectionEntry, error)
	FindByInstance(ctx context.Context, processID id.ProcessID, instanceID id.RoutineInstanceID) (*models.SelectionEntry, error)
}

type HistoryStore interface {
	FindLatestByStable(ctx context.Context, orgID id.OrganizationID, stableID id.StableID) (*models.History, error)
}

// MemberDirectory answers who belongs to a stable, who may manage it and how
// many points each member has carried.
type MemberDirectory interface {
	ResolveMembers(ctx context.Context, orgID id.OrganizationID, stableID id.StableID, userIDs []id.UserID) ([]models.Member, error)
	CanManage(ctx context.Context, orgID id.OrganizationID, stableID id.StableID, userID id.UserID) (bool, error)
	MemberStats(ctx context.Context, stableID id.StableID, userIDs []id.UserID, from, to time.Time) (map[id.UserID]models.MemberStats, error)
}

type RoutineCatalog interface {
	GetInstance(ctx context.Context, instanceID id.RoutineInstanceID) (*models.RoutineInstance, error)
	ListInstances(ctx context.Context, stableID id.StableID, from, to time.Time) ([]models.RoutineInstance, error)
}

// StoreTx runs a unit of work atomically. Stores join the transaction the
// runner places in ctx.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Archiver writes the history of a completed process. Submit never fails the
// caller; it retries in the background.
type Archiver interface {
	Submit(ctx context.Context, processID id.ProcessID)
}

// Caller is the authenticated user on whose behalf an operation runs.
type Caller struct {
	UserID         id.UserID
	OrganizationID id.OrganizationID
}

// Service orchestrates selection processes.
type Service struct {
	processes      ProcessStore
	entries        EntryStore
	histories      HistoryStore
	members        MemberDirectory
	routines       RoutineCatalog
	tx             StoreTx
	archiver       Archiver
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	policy         turnorder.Policy
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTx replaces the default in-memory sharded runner. Use
// txcontext.NewPostgres with the Postgres stores.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithArchiver(a Archiver) Option {
	return func(s *Service) {
		s.archiver = a
	}
}

func WithPolicy(p turnorder.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// New constructs a Service.
func New(processes ProcessStore, entries EntryStore, histories HistoryStore, members MemberDirectory, routines RoutineCatalog, opts ...Option) *Service {
	s := &Service{
		processes: processes,
		entries:   entries,
		histories: histories,
		members:   members,
		routines:  routines,
		policy:    turnorder.DefaultPolicy(),
		tracer:    otel.Tracer("stablehand/selection"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = txcontext.NewSharded()
	}
	return s
}

// runInProcessTx serializes units of work on the same process. Failures of
// the runner itself, such as a rejected commit, come back coded.
func (s *Service) runInProcessTx(ctx context.Context, processID id.ProcessID, fn func(ctx context.Context) error) error {
	err := s.tx.RunInTx(txcontext.WithShardKey(ctx, processID.String()), fn)
	return translateStoreError(err, "failed to commit selection process change")
}

// track opens a span and records the operation latency once done is called
// with the operation's final error.
func (s *Service) track(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "selection."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	return ctx, func(errp *error) {
		s.metrics.ObserveOperation(operation, start)
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(*errp)))
		}
		span.End()
	}
}

// loadOwned fetches a process and hides processes of other organizations.
func (s *Service) loadOwned(ctx context.Context, caller Caller, processID id.ProcessID) (*models.SelectionProcess, error) {
	p, err := s.processes.FindByID(ctx, processID)
	if err != nil {
		return nil, translateStoreError(err, "failed to load selection process")
	}
	if p.OrganizationID != caller.OrganizationID {
		return nil, errProcessNotFound()
	}
	return p, nil
}

func (s *Service) requireManager(ctx context.Context, caller Caller, stableID id.StableID, action string) error {
	ok, err := s.members.CanManage(ctx, caller.OrganizationID, stableID, caller.UserID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check stable permissions")
	}
	if !ok {
		s.logAudit(ctx, audit.EventAccessDenied, audit.Event{
			OrganizationID: caller.OrganizationID,
			StableID:       stableID,
			UserID:         caller.UserID,
			Reason:         action,
		}, "user_id", caller.UserID, "stable_id", stableID, "action", action)
		return dErrors.New(dErrors.CodeForbidden, "only stable managers can "+action)
	}
	return nil
}

func errProcessNotFound() error {
	return dErrors.New(dErrors.CodeNotFound, "selection process not found")
}

// translateStoreError maps store sentinels onto domain codes. Errors that
// already carry a code pass through, except invariant violations which
// surface as validation errors.
func translateStoreError(err error, action string) error {
	var de *dErrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		if de.Code == dErrors.CodeInvariantViolation {
			return dErrors.New(dErrors.CodeValidation, de.Message)
		}
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return errProcessNotFound()
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "selection process was modified concurrently, retry")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, action)
	}
}

// logAudit writes the audit log line and emits the event. Emission failures
// are logged and never fail the operation.
func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, base audit.Event, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	base.Action = string(event)
	base.RequestID = requestID
	if base.Subject == "" {
		base.Subject = attrs.ExtractString(attributes, "routine_instance_id")
	}
	if base.Subject == "" && !base.ProcessID.IsNil() {
		base.Subject = base.ProcessID.String()
	}
	for k, v := range attrs.ToMap(attributes, "process_id", "stable_id", "user_id", "request_id") {
		if base.Details == nil {
			base.Details = make(map[string]any)
		}
		if _, set := base.Details[k]; !set {
			base.Details[k] = v
		}
	}
	if err := s.auditPublisher.Emit(ctx, base); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"event", string(event),
			"error", err,
		)
	}
}

func processEvent(p *models.SelectionProcess, actor id.UserID) audit.Event {
	return audit.Event{
		OrganizationID: p.OrganizationID,
		StableID:       p.StableID,
		ProcessID:      p.ID,
		UserID:         actor,
		ActorID:        actor,
	}
}
