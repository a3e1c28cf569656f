package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"stablehand/internal/platform/database"
	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
	"stablehand/pkg/platform/sentinel"
	txcontext "stablehand/pkg/platform/tx"
)

// PostgresStore persists history records. process_id is UNIQUE so a second
// archive attempt for the same process is rejected by the database.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const historyColumns = `id, process_id, organization_id, stable_id, algorithm,
	final_turn_order, completed_at, archived_at`

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, h *models.History) error {
	final, err := json.Marshal(h.FinalTurnOrder)
	if err != nil {
		return fmt.Errorf("marshal final turn order: %w", err)
	}
	res, err := s.execer(ctx).ExecContext(ctx,
		`INSERT INTO selection_process_history (`+historyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (process_id) DO NOTHING`,
		uuid.UUID(h.ID),
		uuid.UUID(h.ProcessID),
		uuid.UUID(h.OrganizationID),
		uuid.UUID(h.StableID),
		string(h.Algorithm),
		final,
		h.CompletedAt,
		h.ArchivedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert selection history: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert selection history: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresStore) FindByProcess(ctx context.Context, processID id.ProcessID) (*models.History, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM selection_process_history WHERE process_id = $1`,
		uuid.UUID(processID))
	return scanOne(row, "find selection history")
}

func (s *PostgresStore) FindLatestByStable(ctx context.Context, orgID id.OrganizationID, stableID id.StableID) (*models.History, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM selection_process_history
		WHERE organization_id = $1 AND stable_id = $2
		ORDER BY completed_at DESC, id DESC
		LIMIT 1`,
		uuid.UUID(orgID), uuid.UUID(stableID))
	return scanOne(row, "find latest selection history")
}

func scanOne(row *sql.Row, op string) (*models.History, error) {
	var (
		h                         models.History
		hid, pid, orgID, stableID uuid.UUID
		algorithm                 string
		final                     []byte
	)
	err := row.Scan(&hid, &pid, &orgID, &stableID, &algorithm, &final, &h.CompletedAt, &h.ArchivedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(final, &h.FinalTurnOrder); err != nil {
		return nil, fmt.Errorf("%s: unmarshal final turn order: %w", op, err)
	}
	h.ID = id.HistoryID(hid)
	h.ProcessID = id.ProcessID(pid)
	h.OrganizationID = id.OrganizationID(orgID)
	h.StableID = id.StableID(stableID)
	h.Algorithm = models.Algorithm(algorithm)
	return &h, nil
}
