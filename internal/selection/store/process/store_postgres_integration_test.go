//go:build integration

package process_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"stablehand/internal/selection/models"
	"stablehand/internal/selection/store/process"
	id "stablehand/pkg/domain"
	"stablehand/pkg/platform/sentinel"
	"stablehand/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *process.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = process.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"selection_entries", "selection_process_history", "selection_processes")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newProcess(members int) *models.SelectionProcess {
	now := time.Now().UTC().Truncate(time.Microsecond)
	turns := make([]models.Turn, members)
	for i := range turns {
		turns[i] = models.Turn{UserID: id.UserID(uuid.New()), UserName: "member", Order: i + 1}
	}
	p, err := models.NewSelectionProcess(models.NewProcessParams{
		ID:                 id.ProcessID(uuid.New()),
		OrganizationID:     id.OrganizationID(uuid.New()),
		StableID:           id.StableID(uuid.New()),
		Name:               "Integration round",
		SelectionStartDate: now,
		SelectionEndDate:   now.AddDate(0, 0, 7),
		Algorithm:          models.AlgorithmFairRotation,
		Turns:              turns,
		CreatedBy:          turns[0].UserID,
		Now:                now,
	})
	s.Require().NoError(err)
	return p
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	p := s.newProcess(3)
	s.Require().NoError(s.store.Create(ctx, p))
	s.ErrorIs(s.store.Create(ctx, p), sentinel.ErrAlreadyUsed)

	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.Name, found.Name)
	s.Equal(models.AlgorithmFairRotation, found.Algorithm)
	s.Len(found.Turns, 3)
	s.Equal(-1, found.CurrentTurnIndex)
	s.Nil(found.CurrentTurnUserID)
	s.WithinDuration(p.CreatedAt, found.CreatedAt, time.Microsecond)
}

// TestConcurrentSelectionsSerialize verifies FOR UPDATE serializes writers so
// every selection lands and the version advances once per write.
func (s *PostgresStoreSuite) TestConcurrentSelectionsSerialize() {
	ctx := context.Background()
	p := s.newProcess(2)
	s.Require().NoError(s.store.Create(ctx, p))
	_, err := s.store.Execute(ctx, p.ID,
		func(p *models.SelectionProcess) error { return p.CanStart() },
		func(p *models.SelectionProcess) { p.ApplyStart(time.Now(), p.CreatedBy) },
	)
	s.Require().NoError(err)

	const writers = 20
	var wg sync.WaitGroup
	var ok atomic.Int32
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, p.ID,
				func(p *models.SelectionProcess) error { return p.CanRecordSelection(p.Turns[0].UserID) },
				func(p *models.SelectionProcess) { p.ApplySelection(1, time.Now(), p.Turns[0].UserID) },
			)
			if err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(writers), ok.Load())
	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(writers, found.Turns[0].SelectionsCount)
	s.Equal(int64(writers+2), found.Version)
}

func (s *PostgresStoreSuite) TestListCompletedSince() {
	ctx := context.Background()
	p := s.newProcess(1)
	s.Require().NoError(s.store.Create(ctx, p))
	now := time.Now()
	_, err := s.store.Execute(ctx, p.ID,
		func(p *models.SelectionProcess) error { return p.CanStart() },
		func(p *models.SelectionProcess) { p.ApplyStart(now, p.CreatedBy) },
	)
	s.Require().NoError(err)
	_, err = s.store.Execute(ctx, p.ID,
		func(p *models.SelectionProcess) error { return p.CanCompleteTurn(p.Turns[0].UserID) },
		func(p *models.SelectionProcess) { p.ApplyCompleteTurn(now, p.Turns[0].UserID) },
	)
	s.Require().NoError(err)

	got, err := s.store.List(ctx, models.ListFilter{
		Status:         models.ProcessStatusCompleted,
		CompletedSince: now.Add(-time.Hour),
	})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(p.ID, got[0].ID)
}
