package process

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"stablehand/internal/platform/database"
	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
	"stablehand/pkg/platform/sentinel"
	txcontext "stablehand/pkg/platform/tx"
)

// PostgresStore persists processes in PostgreSQL. Turns are stored as JSONB
// on the process row so a transition is a single-row update.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed process store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const processColumns = `
	id, organization_id, stable_id, name, description,
	selection_start_date, selection_end_date, algorithm, new_member_placement,
	quota_per_member, total_available_points, turns, current_turn_index,
	current_turn_user_id, status, last_selection_at, created_at, created_by,
	updated_at, updated_by, started_at, completed_at, cancelled_at, cancelled_by,
	version`

func (s *PostgresStore) Create(ctx context.Context, p *models.SelectionProcess) error {
	turns, err := json.Marshal(p.Turns)
	if err != nil {
		return fmt.Errorf("marshal turns: %w", err)
	}
	if p.Version == 0 {
		p.Version = 1
	}
	query := `INSERT INTO selection_processes (` + processColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(p.ID),
		uuid.UUID(p.OrganizationID),
		uuid.UUID(p.StableID),
		p.Name,
		p.Description,
		p.SelectionStartDate,
		p.SelectionEndDate,
		string(p.Algorithm),
		string(p.NewMemberPlacement),
		p.QuotaPerMember,
		p.TotalAvailablePoints,
		turns,
		p.CurrentTurnIndex,
		nullUserID(p.CurrentTurnUserID),
		string(p.Status),
		p.LastSelectionAt,
		p.CreatedAt,
		uuid.UUID(p.CreatedBy),
		p.UpdatedAt,
		uuid.UUID(p.UpdatedBy),
		p.StartedAt,
		p.CompletedAt,
		p.CancelledAt,
		nullUserID(p.CancelledBy),
		p.Version,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert selection process: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, processID id.ProcessID) (*models.SelectionProcess, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+processColumns+` FROM selection_processes WHERE id = $1`,
		uuid.UUID(processID))
	p, err := scanProcess(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find selection process: %w", err)
	}
	return p, nil
}

// List returns matching processes newest first.
func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.SelectionProcess, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !filter.OrganizationID.IsNil() {
		add("organization_id = $%d", uuid.UUID(filter.OrganizationID))
	}
	if !filter.StableID.IsNil() {
		add("stable_id = $%d", uuid.UUID(filter.StableID))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if !filter.CompletedSince.IsZero() {
		add("completed_at >= $%d", filter.CompletedSince)
	}

	query := `SELECT ` + processColumns + ` FROM selection_processes`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list selection processes: %w", err)
	}
	defer rows.Close()

	var out []*models.SelectionProcess
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan selection process: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selection processes: %w", err)
	}
	return out, nil
}

// Execute locks the row with SELECT ... FOR UPDATE, runs validate and mutate,
// then writes back guarded by the version column. It joins the transaction in
// ctx when there is one and opens its own otherwise.
func (s *PostgresStore) Execute(ctx context.Context, processID id.ProcessID, validate func(*models.SelectionProcess) error, mutate func(*models.SelectionProcess)) (*models.SelectionProcess, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return s.execute(ctx, tx, processID, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := s.execute(ctx, tx, processID, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) execute(ctx context.Context, tx *sql.Tx, processID id.ProcessID, validate func(*models.SelectionProcess) error, mutate func(*models.SelectionProcess)) (*models.SelectionProcess, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+processColumns+` FROM selection_processes WHERE id = $1 FOR UPDATE`,
		uuid.UUID(processID))
	p, err := scanProcess(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock selection process: %w", err)
	}

	if err := validate(p); err != nil {
		return nil, err
	}
	mutate(p)
	if err := p.CheckInvariants(); err != nil {
		return nil, err
	}

	turns, err := json.Marshal(p.Turns)
	if err != nil {
		return nil, fmt.Errorf("marshal turns: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE selection_processes SET
			turns = $1,
			current_turn_index = $2,
			current_turn_user_id = $3,
			status = $4,
			last_selection_at = $5,
			updated_at = $6,
			updated_by = $7,
			started_at = $8,
			completed_at = $9,
			cancelled_at = $10,
			cancelled_by = $11,
			version = version + 1
		WHERE id = $12 AND version = $13`,
		turns,
		p.CurrentTurnIndex,
		nullUserID(p.CurrentTurnUserID),
		string(p.Status),
		p.LastSelectionAt,
		p.UpdatedAt,
		uuid.UUID(p.UpdatedBy),
		p.StartedAt,
		p.CompletedAt,
		p.CancelledAt,
		nullUserID(p.CancelledBy),
		uuid.UUID(p.ID),
		p.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("update selection process: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update selection process: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrConflict
	}
	p.Version++
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProcess(row rowScanner) (*models.SelectionProcess, error) {
	var (
		p                                                  models.SelectionProcess
		pid, orgID, stableID, createdBy, updatedBy         uuid.UUID
		currentUser, cancelledBy                           *uuid.UUID
		algorithm, placement, status                       string
		turns                                              []byte
		lastSelection, startedAt, completedAt, cancelledAt *time.Time
	)
	err := row.Scan(
		&pid, &orgID, &stableID, &p.Name, &p.Description,
		&p.SelectionStartDate, &p.SelectionEndDate, &algorithm, &placement,
		&p.QuotaPerMember, &p.TotalAvailablePoints, &turns, &p.CurrentTurnIndex,
		&currentUser, &status, &lastSelection, &p.CreatedAt, &createdBy,
		&p.UpdatedAt, &updatedBy, &startedAt, &completedAt, &cancelledAt, &cancelledBy,
		&p.Version,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(turns, &p.Turns); err != nil {
		return nil, fmt.Errorf("unmarshal turns: %w", err)
	}
	p.ID = id.ProcessID(pid)
	p.OrganizationID = id.OrganizationID(orgID)
	p.StableID = id.StableID(stableID)
	p.CreatedBy = id.UserID(createdBy)
	p.UpdatedBy = id.UserID(updatedBy)
	p.Algorithm = models.Algorithm(algorithm)
	p.NewMemberPlacement = models.NewMemberPlacement(placement)
	p.Status = models.ProcessStatus(status)
	p.CurrentTurnUserID = toUserID(currentUser)
	p.CancelledBy = toUserID(cancelledBy)
	p.LastSelectionAt = lastSelection
	p.StartedAt = startedAt
	p.CompletedAt = completedAt
	p.CancelledAt = cancelledAt
	return &p, nil
}

func nullUserID(u *id.UserID) any {
	if u == nil {
		return nil
	}
	return uuid.UUID(*u)
}

func toUserID(u *uuid.UUID) *id.UserID {
	if u == nil {
		return nil
	}
	v := id.UserID(*u)
	return &v
}
