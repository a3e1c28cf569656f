package membership

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
	dErrors "stablehand/pkg/domain-errors"
)

// Postgres reads stable_members and member_stats.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (d *Postgres) ResolveMembers(ctx context.Context, orgID id.OrganizationID, stableID id.StableID, userIDs []id.UserID) ([]models.Member, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT user_id, display_name, email
		FROM stable_members
		WHERE organization_id = $1 AND stable_id = $2 AND user_id = ANY($3::uuid[])`,
		uuid.UUID(orgID), uuid.UUID(stableID), pq.Array(userStrings(userIDs)))
	if err != nil {
		return nil, fmt.Errorf("resolve members: %w", err)
	}
	defer rows.Close()

	found := make(map[id.UserID]models.Member, len(userIDs))
	for rows.Next() {
		var (
			uid uuid.UUID
			m   models.Member
		)
		if err := rows.Scan(&uid, &m.Name, &m.Email); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.UserID = id.UserID(uid)
		found[m.UserID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	out := make([]models.Member, 0, len(userIDs))
	for _, userID := range userIDs {
		m, ok := found[userID]
		if !ok {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("user %s is not a member of this stable", userID))
		}
		out = append(out, withDisplayName(m))
	}
	return out, nil
}

func (d *Postgres) CanManage(ctx context.Context, orgID id.OrganizationID, stableID id.StableID, userID id.UserID) (bool, error) {
	var ok bool
	err := d.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM stable_members
			WHERE organization_id = $1 AND stable_id = $2 AND user_id = $3 AND role = $4
		)`,
		uuid.UUID(orgID), uuid.UUID(stableID), uuid.UUID(userID), string(RoleManager)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check manager role: %w", err)
	}
	return ok, nil
}

func (d *Postgres) MemberStats(ctx context.Context, stableID id.StableID, userIDs []id.UserID, from, to time.Time) (map[id.UserID]models.MemberStats, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT user_id,
			COALESCE(SUM(points), 0),
			COALESCE(SUM(points) FILTER (WHERE period_end >= $3 AND period_start <= $4), 0)
		FROM member_stats
		WHERE stable_id = $1 AND user_id = ANY($2::uuid[])
		GROUP BY user_id`,
		uuid.UUID(stableID), pq.Array(userStrings(userIDs)), models.DateOnly(from), models.DateOnly(to))
	if err != nil {
		return nil, fmt.Errorf("load member stats: %w", err)
	}
	defer rows.Close()

	out := make(map[id.UserID]models.MemberStats, len(userIDs))
	for _, userID := range userIDs {
		out[userID] = models.MemberStats{UserID: userID}
	}
	for rows.Next() {
		var (
			uid uuid.UUID
			s   models.MemberStats
		)
		if err := rows.Scan(&uid, &s.TotalPoints, &s.CurrentPeriodPoints); err != nil {
			return nil, fmt.Errorf("scan member stats: %w", err)
		}
		s.UserID = id.UserID(uid)
		out[s.UserID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member stats: %w", err)
	}
	return out, nil
}

func userStrings(ids []id.UserID) []string {
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = v.String()
	}
	return out
}
