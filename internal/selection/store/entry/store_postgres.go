package entry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"stablehand/internal/platform/database"
	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
	"stablehand/pkg/platform/sentinel"
	txcontext "stablehand/pkg/platform/tx"
)

// PostgresStore persists ledger entries. Uniqueness of (process, instance)
// and (process, sequence) is enforced by the table constraints.
type PostgresStore struct {
	db *sql.DB
}

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

const entryColumns = `id, process_id, organization_id, stable_id, routine_instance_id,
	selected_by, selected_by_name, turn_order, sequence, points_value, selected_at`

func (s *PostgresStore) Append(ctx context.Context, e *models.SelectionEntry) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`INSERT INTO selection_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(e.ID),
		uuid.UUID(e.ProcessID),
		uuid.UUID(e.OrganizationID),
		uuid.UUID(e.StableID),
		uuid.UUID(e.RoutineInstanceID),
		uuid.UUID(e.SelectedBy),
		e.SelectedByName,
		e.TurnOrder,
		e.Sequence,
		e.PointsValue,
		e.SelectedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert selection entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByProcess(ctx context.Context, processID id.ProcessID) ([]*models.SelectionEntry, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+entryColumns+` FROM selection_entries WHERE process_id = $1 ORDER BY sequence ASC`,
		uuid.UUID(processID))
	if err != nil {
		return nil, fmt.Errorf("list selection entries: %w", err)
	}
	defer rows.Close()

	var out []*models.SelectionEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan selection entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selection entries: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindByInstance(ctx context.Context, processID id.ProcessID, instanceID id.RoutineInstanceID) (*models.SelectionEntry, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM selection_entries WHERE process_id = $1 AND routine_instance_id = $2`,
		uuid.UUID(processID), uuid.UUID(instanceID))
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find selection entry: %w", err)
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.SelectionEntry, error) {
	var (
		e                                         models.SelectionEntry
		eid, pid, orgID, stableID, instID, userID uuid.UUID
	)
	if err := row.Scan(&eid, &pid, &orgID, &stableID, &instID, &userID,
		&e.SelectedByName, &e.TurnOrder, &e.Sequence, &e.PointsValue, &e.SelectedAt); err != nil {
		return nil, err
	}
	e.ID = id.EntryID(eid)
	e.ProcessID = id.ProcessID(pid)
	e.OrganizationID = id.OrganizationID(orgID)
	e.StableID = id.StableID(stableID)
	e.RoutineInstanceID = id.RoutineInstanceID(instID)
	e.SelectedBy = id.UserID(userID)
	return &e, nil
}
