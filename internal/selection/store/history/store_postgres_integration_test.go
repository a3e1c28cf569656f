//go:build integration

package history_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"stablehand/internal/selection/models"
	"stablehand/internal/selection/store/history"
	"stablehand/internal/selection/store/process"
	id "stablehand/pkg/domain"
	"stablehand/pkg/platform/sentinel"
	"stablehand/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	store     *history.PostgresStore
	processes *process.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = history.NewPostgres(s.postgres.DB)
	s.processes = process.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"selection_entries", "selection_process_history", "selection_processes")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) completedProcess(org id.OrganizationID, stable id.StableID, at time.Time) *models.SelectionProcess {
	ctx := context.Background()
	member := id.UserID(uuid.New())
	p, err := models.NewSelectionProcess(models.NewProcessParams{
		ID:                 id.ProcessID(uuid.New()),
		OrganizationID:     org,
		StableID:           stable,
		Name:               "Round",
		SelectionStartDate: at,
		SelectionEndDate:   at,
		Algorithm:          models.AlgorithmManual,
		Turns:              []models.Turn{{UserID: member, UserName: "Ana", Order: 1}},
		CreatedBy:          member,
		Now:                at,
	})
	s.Require().NoError(err)
	s.Require().NoError(s.processes.Create(ctx, p))
	p.ApplyStart(at, member)
	p.ApplyCompleteTurn(at, member)
	return p
}

// TestConcurrentArchiveWritesOnce verifies that racing archivers produce a
// single history row per process.
func (s *PostgresStoreSuite) TestConcurrentArchiveWritesOnce() {
	ctx := context.Background()
	p := s.completedProcess(id.OrganizationID(uuid.New()), id.StableID(uuid.New()), time.Now().UTC())

	var wg sync.WaitGroup
	var created, duplicate atomic.Int32
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := models.NewHistory(id.HistoryID(uuid.New()), p, nil, time.Now())
			if err != nil {
				return
			}
			switch err := s.store.CreateIfAbsent(ctx, h); {
			case err == nil:
				created.Add(1)
			case err == sentinel.ErrAlreadyUsed:
				duplicate.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(9), duplicate.Load())
}

func (s *PostgresStoreSuite) TestLatestByStable() {
	ctx := context.Background()
	org, stable := id.OrganizationID(uuid.New()), id.StableID(uuid.New())
	older := s.completedProcess(org, stable, time.Now().Add(-48*time.Hour).UTC())
	newer := s.completedProcess(org, stable, time.Now().UTC())

	for _, p := range []*models.SelectionProcess{newer, older} {
		h, err := models.NewHistory(id.HistoryID(uuid.New()), p, nil, time.Now())
		s.Require().NoError(err)
		s.Require().NoError(s.store.CreateIfAbsent(ctx, h))
	}

	latest, err := s.store.FindLatestByStable(ctx, org, stable)
	s.Require().NoError(err)
	s.Equal(newer.ID, latest.ProcessID)
	s.Require().Len(latest.FinalTurnOrder, 1)
	s.Equal("Ana", latest.FinalTurnOrder[0].UserName)
}
