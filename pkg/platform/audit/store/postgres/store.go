package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "stablehand/pkg/domain"
	audit "stablehand/pkg/platform/audit"
	txcontext "stablehand/pkg/platform/tx"
)

// Store implements audit.Store with the transactional outbox pattern.
// Rows are written in the caller's transaction and relayed to Kafka later.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Payload is the JSON document stored in the outbox and published to Kafka.
type Payload struct {
	ID             string         `json:"id"`
	Category       string         `json:"category"`
	Timestamp      time.Time      `json:"timestamp"`
	OrganizationID string         `json:"organization_id,omitempty"`
	StableID       string         `json:"stable_id,omitempty"`
	ProcessID      string         `json:"process_id,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	ActorID        string         `json:"actor_id,omitempty"`
	Action         string         `json:"action"`
	Subject        string         `json:"subject,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
}

// Entry is one outbox row awaiting relay.
type Entry struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	Attempts    int
}

func toPayload(eventID uuid.UUID, event audit.Event) Payload {
	p := Payload{
		ID:        eventID.String(),
		Category:  string(audit.AuditEvent(event.Action).Category()),
		Timestamp: event.Timestamp,
		Action:    event.Action,
		Subject:   event.Subject,
		Reason:    event.Reason,
		RequestID: event.RequestID,
		Details:   event.Details,
	}
	if !event.OrganizationID.IsNil() {
		p.OrganizationID = event.OrganizationID.String()
	}
	if !event.StableID.IsNil() {
		p.StableID = event.StableID.String()
	}
	if !event.ProcessID.IsNil() {
		p.ProcessID = event.ProcessID.String()
	}
	if !event.UserID.IsNil() {
		p.UserID = event.UserID.String()
	}
	if !event.ActorID.IsNil() {
		p.ActorID = event.ActorID.String()
	}
	return p
}

func (p Payload) toEvent() audit.Event {
	event := audit.Event{
		Category:  audit.EventCategory(p.Category),
		Timestamp: p.Timestamp,
		Action:    p.Action,
		Subject:   p.Subject,
		Reason:    p.Reason,
		RequestID: p.RequestID,
		Details:   p.Details,
	}
	if v, err := id.ParseOrganizationID(p.OrganizationID); err == nil {
		event.OrganizationID = v
	}
	if v, err := id.ParseStableID(p.StableID); err == nil {
		event.StableID = v
	}
	if v, err := id.ParseProcessID(p.ProcessID); err == nil {
		event.ProcessID = v
	}
	if v, err := id.ParseUserID(p.UserID); err == nil {
		event.UserID = v
	}
	if v, err := id.ParseUserID(p.ActorID); err == nil {
		event.ActorID = v
	}
	return event
}

// Append writes an audit event to the outbox table.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	payloadBytes, err := json.Marshal(toPayload(eventID, event))
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "audit"
	aggregateID := eventID.String()
	if !event.ProcessID.IsNil() {
		aggregateType = "selection_process"
		aggregateID = event.ProcessID.String()
	}

	args := []any{eventID, aggregateType, aggregateID, event.Action, payloadBytes, s.now()}
	if tx, ok := txcontext.From(ctx); ok {
		return appendInTx(ctx, tx, args)
	}
	if _, err := s.db.ExecContext(ctx, insertOutbox, args...); err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

const insertOutbox = `
	INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// appendInTx fences the insert with a savepoint so a failed audit write
// leaves the caller's transaction usable.
func appendInTx(ctx context.Context, tx *sql.Tx, args []any) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT outbox_append"); err != nil {
		return fmt.Errorf("outbox savepoint: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertOutbox, args...); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT outbox_append"); rbErr != nil {
			return fmt.Errorf("insert outbox entry: %w (rollback to savepoint: %v)", err, rbErr)
		}
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT outbox_append"); err != nil {
		return fmt.Errorf("release outbox savepoint: %w", err)
	}
	return nil
}

// ListByProcess returns the outbox trail for a process, oldest first.
func (s *Store) ListByProcess(ctx context.Context, processID id.ProcessID) ([]audit.Event, error) {
	query := `
		SELECT payload FROM outbox
		WHERE aggregate_type = 'selection_process' AND aggregate_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, processID.String())
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan outbox payload: %w", err)
		}
		var p Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("unmarshal outbox payload: %w", err)
		}
		events = append(events, p.toEvent())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return events, nil
}

// FetchUnpublished returns up to limit unpublished rows, oldest first.
// Rows are locked with SKIP LOCKED so concurrent relays split the work.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, aggregate_id, event_type, payload, created_at, attempts
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt, &e.Attempts); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps the given rows as relayed.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`,
		s.now(), pq.Array(uuidStrings(ids)),
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// IncrementAttempts records a failed relay attempt for the given rows.
func (s *Store) IncrementAttempts(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE outbox SET attempts = attempts + 1 WHERE id = ANY($1::uuid[])`,
		pq.Array(uuidStrings(ids)),
	)
	if err != nil {
		return fmt.Errorf("increment outbox attempts: %w", err)
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = v.String()
	}
	return out
}
