// Package archive writes the history record of completed selection processes.
//
// Archival happens after the completing transaction has committed. A failure
// leaves the process completed and schedules the process for retry with
// exponential backoff. A circuit breaker limits retries to a single probe
// while the history store keeps failing, and a periodic sweep catches
// completed processes whose retry was lost, for example across a restart.
package archive

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"stablehand/internal/platform/config"
	"stablehand/internal/selection/metrics"
	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
	dErrors "stablehand/pkg/domain-errors"
	"stablehand/pkg/platform/audit"
	"stablehand/pkg/platform/circuit"
	"stablehand/pkg/platform/sentinel"
)

type ProcessReader interface {
	FindByID(ctx context.Context, processID id.ProcessID) (*models.SelectionProcess, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.SelectionProcess, error)
}

type EntryReader interface {
	ListByProcess(ctx context.Context, processID id.ProcessID) ([]*models.SelectionEntry, error)
}

type HistoryStore interface {
	CreateIfAbsent(ctx context.Context, h *models.History) error
	FindByProcess(ctx context.Context, processID id.ProcessID) (*models.History, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// retryState tracks one process waiting for another archive attempt.
type retryState struct {
	attempts int
	next     time.Time
}

// Archiver is safe for concurrent use.
type Archiver struct {
	processes      ProcessReader
	entries        EntryReader
	histories      HistoryStore
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	breaker        *circuit.Breaker
	cfg            config.ArchiveConfig
	now            func() time.Time

	mu      sync.Mutex
	pending map[id.ProcessID]*retryState
}

type Option func(*Archiver)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Archiver) {
		a.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Archiver) {
		a.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(a *Archiver) {
		a.auditPublisher = p
	}
}

// WithConfig overrides the retry and sweep tuning. Zero fields keep defaults.
func WithConfig(cfg config.ArchiveConfig) Option {
	return func(a *Archiver) {
		if cfg.RetryInterval > 0 {
			a.cfg.RetryInterval = cfg.RetryInterval
		}
		if cfg.MaxBackoff > 0 {
			a.cfg.MaxBackoff = cfg.MaxBackoff
		}
		if cfg.SweepInterval > 0 {
			a.cfg.SweepInterval = cfg.SweepInterval
		}
		if cfg.SweepLookback > 0 {
			a.cfg.SweepLookback = cfg.SweepLookback
		}
		if cfg.QueueSize > 0 {
			a.cfg.QueueSize = cfg.QueueSize
		}
		if cfg.FailureThreshold > 0 {
			a.cfg.FailureThreshold = cfg.FailureThreshold
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(a *Archiver) {
		a.now = now
	}
}

func New(processes ProcessReader, entries EntryReader, histories HistoryStore, opts ...Option) *Archiver {
	a := &Archiver{
		processes: processes,
		entries:   entries,
		histories: histories,
		logger:    slog.Default(),
		cfg: config.ArchiveConfig{
			RetryInterval:    30 * time.Second,
			MaxBackoff:       15 * time.Minute,
			SweepInterval:    10 * time.Minute,
			SweepLookback:    7 * 24 * time.Hour,
			QueueSize:        256,
			FailureThreshold: 5,
		},
		now:     time.Now,
		pending: make(map[id.ProcessID]*retryState),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.breaker = circuit.New("history-archive", circuit.WithFailureThreshold(a.cfg.FailureThreshold))
	return a
}

// Archive builds and stores the history of a completed process. Archiving a
// process twice is a no-op.
func (a *Archiver) Archive(ctx context.Context, processID id.ProcessID) error {
	p, err := a.processes.FindByID(ctx, processID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "selection process not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load selection process")
	}
	if p.Status != models.ProcessStatusCompleted {
		return dErrors.New(dErrors.CodeInvalidState, "only completed selection processes are archived")
	}

	entries, err := a.entries.ListByProcess(ctx, processID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load selection entries")
	}
	h, err := models.NewHistory(id.HistoryID(uuid.New()), p, entries, a.now())
	if err != nil {
		return err
	}

	if err := a.histories.CreateIfAbsent(ctx, h); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store selection history")
	}

	a.metrics.IncrementHistoryArchived()
	a.logger.InfoContext(ctx, string(audit.EventHistoryArchived),
		"process_id", processID,
		"stable_id", p.StableID,
		"event", string(audit.EventHistoryArchived),
		"log_type", "audit",
	)
	if a.auditPublisher != nil {
		if err := a.auditPublisher.Emit(ctx, audit.Event{
			OrganizationID: p.OrganizationID,
			StableID:       p.StableID,
			ProcessID:      p.ID,
			Action:         string(audit.EventHistoryArchived),
			Subject:        p.ID.String(),
		}); err != nil {
			a.logger.WarnContext(ctx, "failed to emit audit event", "error", err)
		}
	}
	return nil
}

// Submit archives inline and schedules a retry when that fails. While the
// breaker is open the inline attempt is skipped.
func (a *Archiver) Submit(ctx context.Context, processID id.ProcessID) {
	if a.breaker.IsOpen() {
		a.schedule(ctx, processID, 0)
		return
	}
	err := a.Archive(ctx, processID)
	if err == nil {
		a.recordSuccess(ctx)
		return
	}
	if permanent(err) {
		a.logger.WarnContext(ctx, "selection process cannot be archived",
			"process_id", processID,
			"error", err,
		)
		return
	}
	a.recordFailure(ctx, processID, err)
	a.schedule(ctx, processID, 0)
}

// Run drives retries and sweeps until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	retry := time.NewTicker(a.cfg.RetryInterval)
	defer retry.Stop()
	sweep := time.NewTicker(a.cfg.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retry.C:
			a.RetryDue(ctx)
		case <-sweep.C:
			if _, err := a.Sweep(ctx); err != nil {
				a.logger.WarnContext(ctx, "history archive sweep failed", "error", err)
			}
		}
	}
}

// RetryDue attempts every scheduled process whose backoff has elapsed, or
// only the earliest one while the breaker is open. It returns how many
// processes were archived.
func (a *Archiver) RetryDue(ctx context.Context) int {
	due := a.due()
	if len(due) == 0 {
		return 0
	}
	if a.breaker.IsOpen() {
		due = due[:1]
	}

	archived := 0
	for _, processID := range due {
		if ctx.Err() != nil {
			break
		}
		err := a.Archive(ctx, processID)
		switch {
		case err == nil:
			a.recordSuccess(ctx)
			a.unschedule(processID)
			archived++
		case permanent(err):
			a.logger.WarnContext(ctx, "dropping archive retry", "process_id", processID, "error", err)
			a.unschedule(processID)
		default:
			a.recordFailure(ctx, processID, err)
			a.reschedule(processID)
			if a.breaker.IsOpen() {
				return archived
			}
		}
	}
	return archived
}

// Sweep archives completed processes inside the lookback window that have
// no history yet.
func (a *Archiver) Sweep(ctx context.Context) (int, error) {
	completed, err := a.processes.List(ctx, models.ListFilter{
		Status:         models.ProcessStatusCompleted,
		CompletedSince: a.now().Add(-a.cfg.SweepLookback),
	})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list completed selection processes")
	}

	archived := 0
	for _, p := range completed {
		if ctx.Err() != nil {
			return archived, ctx.Err()
		}
		_, err := a.histories.FindByProcess(ctx, p.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return archived, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up selection history")
		}
		if err := a.Archive(ctx, p.ID); err != nil {
			if permanent(err) {
				a.logger.WarnContext(ctx, "selection process cannot be archived", "process_id", p.ID, "error", err)
				continue
			}
			a.recordFailure(ctx, p.ID, err)
			a.schedule(ctx, p.ID, 0)
			continue
		}
		a.recordSuccess(ctx)
		a.unschedule(p.ID)
		archived++
	}
	if archived > 0 {
		a.logger.InfoContext(ctx, "history archive sweep archived processes", "count", archived)
	}
	return archived, nil
}

// Pending returns the number of processes waiting for a retry.
func (a *Archiver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func (a *Archiver) schedule(ctx context.Context, processID id.ProcessID, attempts int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.pending[processID]; ok {
		return
	}
	if len(a.pending) >= a.cfg.QueueSize {
		a.logger.WarnContext(ctx, "archive retry queue full, leaving process to the sweep",
			"process_id", processID,
		)
		return
	}
	a.pending[processID] = &retryState{attempts: attempts, next: a.now().Add(a.cfg.RetryInterval)}
	a.metrics.SetArchivePending(len(a.pending))
}

func (a *Archiver) reschedule(processID id.ProcessID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.pending[processID]
	if !ok {
		return
	}
	st.attempts++
	st.next = a.now().Add(a.backoff(st.attempts))
}

func (a *Archiver) unschedule(processID id.ProcessID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, processID)
	a.metrics.SetArchivePending(len(a.pending))
}

// due lists scheduled processes whose next attempt has arrived, earliest first.
func (a *Archiver) due() []id.ProcessID {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	var out []id.ProcessID
	for processID, st := range a.pending {
		if !st.next.After(now) {
			out = append(out, processID)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return a.pending[out[i]].next.Before(a.pending[out[j]].next)
	})
	return out
}

// backoff doubles the retry interval per failed attempt up to MaxBackoff.
func (a *Archiver) backoff(attempts int) time.Duration {
	d := a.cfg.RetryInterval
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= a.cfg.MaxBackoff {
			return a.cfg.MaxBackoff
		}
	}
	return d
}

func (a *Archiver) recordFailure(ctx context.Context, processID id.ProcessID, err error) {
	a.metrics.IncrementArchiveFailure()
	a.logger.ErrorContext(ctx, "failed to archive selection process",
		"process_id", processID,
		"error", err,
	)
	if _, change := a.breaker.RecordFailure(); change.Opened {
		a.logger.WarnContext(ctx, "history archive circuit opened", "breaker", a.breaker.Name())
	}
}

func (a *Archiver) recordSuccess(ctx context.Context) {
	if _, change := a.breaker.RecordSuccess(); change.Closed {
		a.logger.InfoContext(ctx, "history archive circuit closed", "breaker", a.breaker.Name())
	}
}

// permanent reports errors a retry cannot fix.
func permanent(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeNotFound) ||
		dErrors.HasCode(err, dErrors.CodeInvalidState) ||
		dErrors.HasCode(err, dErrors.CodeInvariantViolation)
}
