package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stablehand/internal/membership"
	"stablehand/internal/routine"
	id "stablehand/pkg/domain"
)

const seedYAML = `
organization_id: 3f1b7a52-6d8e-4c1a-9b0e-0c7f1d2a4e61
stables:
  - id: 7c2e9d41-0a3b-4f5c-8e6d-1b2a3c4d5e6f
    members:
      - user_id: 0d9c8b7a-6f5e-4d3c-2b1a-0f9e8d7c6b5a
        name: Mia
        role: manager
      - user_id: 1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d
        name: Alice
        points:
          - {from: "2026-04-01", to: "2026-04-30", points: 6}
    routines:
      - id: 9e8d7c6b-5a4f-4e3d-2c1b-0a9f8e7d6c5b
        title: Morning feed
        scheduled_date: "2026-05-02"
        points_value: 3
`

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	members := membership.NewInMemory()
	routines := routine.NewInMemory()
	require.NoError(t, LoadSeed(path, members, routines))

	ctx := context.Background()
	org, _ := id.ParseOrganizationID("3f1b7a52-6d8e-4c1a-9b0e-0c7f1d2a4e61")
	stable, _ := id.ParseStableID("7c2e9d41-0a3b-4f5c-8e6d-1b2a3c4d5e6f")
	mia, _ := id.ParseUserID("0d9c8b7a-6f5e-4d3c-2b1a-0f9e8d7c6b5a")
	alice, _ := id.ParseUserID("1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d")

	canManage, err := members.CanManage(ctx, org, stable, mia)
	require.NoError(t, err)
	assert.True(t, canManage)

	canManage, err = members.CanManage(ctx, org, stable, alice)
	require.NoError(t, err)
	assert.False(t, canManage)

	stats, err := members.MemberStats(ctx, stable, []id.UserID{alice},
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 6, stats[alice].TotalPoints)

	instances, err := routines.ListInstances(ctx, stable,
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, 3, instances[0].PointsValue)
}

func TestSeedApply_RejectsUnknownRole(t *testing.T) {
	seed := Seed{
		OrganizationID: "3f1b7a52-6d8e-4c1a-9b0e-0c7f1d2a4e61",
		Stables: []SeedStable{{
			ID:      "7c2e9d41-0a3b-4f5c-8e6d-1b2a3c4d5e6f",
			Members: []SeedMember{{UserID: "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d", Role: "owner"}},
		}},
	}
	err := seed.Apply(membership.NewInMemory(), routine.NewInMemory())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}
