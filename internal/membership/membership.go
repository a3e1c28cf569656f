// Package membership answers who belongs to a stable, who may manage it and
// how many points each member has carried.
package membership

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
	dErrors "stablehand/pkg/domain-errors"
	"stablehand/pkg/email"
)

// Role is a member's permission level within a stable.
type Role string

const (
	RoleMember  Role = "member"
	RoleManager Role = "manager"
)

type record struct {
	org    id.OrganizationID
	member models.Member
	role   Role
}

type pointsRow struct {
	from, to time.Time
	points   int
}

type memberKey struct {
	stable id.StableID
	user   id.UserID
}

// InMemory is a directory backed by maps, used when no database is configured.
type InMemory struct {
	mu      sync.RWMutex
	members map[memberKey]record
	points  map[memberKey][]pointsRow
}

func NewInMemory() *InMemory {
	return &InMemory{
		members: make(map[memberKey]record),
		points:  make(map[memberKey][]pointsRow),
	}
}

// AddMember registers or replaces a member of a stable.
func (d *InMemory) AddMember(orgID id.OrganizationID, stableID id.StableID, m models.Member, role Role) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[memberKey{stable: stableID, user: m.UserID}] = record{org: orgID, member: m, role: role}
}

// RecordPoints credits points earned by a member over [from, to].
func (d *InMemory) RecordPoints(stableID id.StableID, userID id.UserID, from, to time.Time, points int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := memberKey{stable: stableID, user: userID}
	d.points[key] = append(d.points[key], pointsRow{from: models.DateOnly(from), to: models.DateOnly(to), points: points})
}

// ResolveMembers returns member snapshots in request order. Unknown users and
// users from another organization are a validation error.
func (d *InMemory) ResolveMembers(_ context.Context, orgID id.OrganizationID, stableID id.StableID, userIDs []id.UserID) ([]models.Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]models.Member, 0, len(userIDs))
	for _, userID := range userIDs {
		rec, ok := d.members[memberKey{stable: stableID, user: userID}]
		if !ok || rec.org != orgID {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("user %s is not a member of this stable", userID))
		}
		out = append(out, withDisplayName(rec.member))
	}
	return out, nil
}

func (d *InMemory) CanManage(_ context.Context, orgID id.OrganizationID, stableID id.StableID, userID id.UserID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.members[memberKey{stable: stableID, user: userID}]
	return ok && rec.org == orgID && rec.role == RoleManager, nil
}

// MemberStats sums lifetime points and points earned in periods overlapping
// [from, to]. Members without history get zero stats.
func (d *InMemory) MemberStats(_ context.Context, stableID id.StableID, userIDs []id.UserID, from, to time.Time) (map[id.UserID]models.MemberStats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	from, to = models.DateOnly(from), models.DateOnly(to)
	out := make(map[id.UserID]models.MemberStats, len(userIDs))
	for _, userID := range userIDs {
		stats := models.MemberStats{UserID: userID}
		for _, row := range d.points[memberKey{stable: stableID, user: userID}] {
			stats.TotalPoints += row.points
			if !row.to.Before(from) && !row.from.After(to) {
				stats.CurrentPeriodPoints += row.points
			}
		}
		out[userID] = stats
	}
	return out, nil
}

// withDisplayName fills a missing name from the member's email so turns
// always carry something readable.
func withDisplayName(m models.Member) models.Member {
	if m.Name == "" {
		m.Name = email.DisplayName(m.Email)
	}
	return m
}
