package routine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
	"stablehand/pkg/platform/sentinel"
)

// Postgres reads routine_instances.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const instanceColumns = `id, organization_id, stable_id, title, scheduled_date, points_value`

func (s *Postgres) GetInstance(ctx context.Context, instanceID id.RoutineInstanceID) (*models.RoutineInstance, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM routine_instances WHERE id = $1`, uuid.UUID(instanceID))
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get routine instance: %w", err)
	}
	return inst, nil
}

func (s *Postgres) ListInstances(ctx context.Context, stableID id.StableID, from, to time.Time) ([]models.RoutineInstance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+instanceColumns+` FROM routine_instances
		WHERE stable_id = $1 AND scheduled_date BETWEEN $2 AND $3
		ORDER BY scheduled_date ASC, id ASC`,
		uuid.UUID(stableID), models.DateOnly(from), models.DateOnly(to))
	if err != nil {
		return nil, fmt.Errorf("list routine instances: %w", err)
	}
	defer rows.Close()

	var out []models.RoutineInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan routine instance: %w", err)
		}
		out = append(out, *inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routine instances: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*models.RoutineInstance, error) {
	var (
		inst                  models.RoutineInstance
		instID, orgID, stable uuid.UUID
	)
	if err := row.Scan(&instID, &orgID, &stable, &inst.Title, &inst.ScheduledDate, &inst.PointsValue); err != nil {
		return nil, err
	}
	inst.ID = id.RoutineInstanceID(instID)
	inst.OrganizationID = id.OrganizationID(orgID)
	inst.StableID = id.StableID(stable)
	inst.ScheduledDate = models.DateOnly(inst.ScheduledDate)
	return &inst, nil
}
