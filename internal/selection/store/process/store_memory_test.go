package process

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
	dErrors "stablehand/pkg/domain-errors"
	"stablehand/pkg/platform/sentinel"
)

type ProcessStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *ProcessStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func TestProcessStoreSuite(t *testing.T) {
	suite.Run(t, new(ProcessStoreSuite))
}

func (s *ProcessStoreSuite) newProcess(stableID id.StableID, members int) *models.SelectionProcess {
	turns := make([]models.Turn, members)
	for i := range turns {
		turns[i] = models.Turn{UserID: id.UserID(uuid.New()), UserName: "member", Order: i + 1}
	}
	p, err := models.NewSelectionProcess(models.NewProcessParams{
		ID:                 id.ProcessID(uuid.New()),
		OrganizationID:     id.OrganizationID(uuid.New()),
		StableID:           stableID,
		Name:               "March routines",
		SelectionStartDate: s.now,
		SelectionEndDate:   s.now.AddDate(0, 0, 14),
		Algorithm:          models.AlgorithmManual,
		Turns:              turns,
		CreatedBy:          turns[0].UserID,
		Now:                s.now,
	})
	s.Require().NoError(err)
	return p
}

func (s *ProcessStoreSuite) TestCreateAndFind() {
	s.Run("round trips a clone", func() {
		p := s.newProcess(id.StableID(uuid.New()), 2)
		s.Require().NoError(s.store.Create(s.ctx, p))

		found, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(p.Name, found.Name)
		s.Equal(int64(1), found.Version)

		found.Turns[0].UserName = "mutated"
		again, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal("member", again.Turns[0].UserName)
	})

	s.Run("rejects duplicate id", func() {
		p := s.newProcess(id.StableID(uuid.New()), 1)
		s.Require().NoError(s.store.Create(s.ctx, p))
		s.ErrorIs(s.store.Create(s.ctx, p), sentinel.ErrAlreadyUsed)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.FindByID(s.ctx, id.ProcessID(uuid.New()))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ProcessStoreSuite) TestList() {
	stableID := id.StableID(uuid.New())
	older := s.newProcess(stableID, 1)
	newer := s.newProcess(stableID, 1)
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	other := s.newProcess(id.StableID(uuid.New()), 1)
	for _, p := range []*models.SelectionProcess{older, newer, other} {
		s.Require().NoError(s.store.Create(s.ctx, p))
	}

	got, err := s.store.List(s.ctx, models.ListFilter{StableID: stableID})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(newer.ID, got[0].ID)
	s.Equal(older.ID, got[1].ID)

	limited, err := s.store.List(s.ctx, models.ListFilter{StableID: stableID, Limit: 1})
	s.Require().NoError(err)
	s.Len(limited, 1)

	active, err := s.store.List(s.ctx, models.ListFilter{StableID: stableID, Status: models.ProcessStatusActive})
	s.Require().NoError(err)
	s.Empty(active)
}

func (s *ProcessStoreSuite) TestExecute() {
	s.Run("applies mutation and bumps version", func() {
		p := s.newProcess(id.StableID(uuid.New()), 2)
		s.Require().NoError(s.store.Create(s.ctx, p))

		updated, err := s.store.Execute(s.ctx, p.ID,
			func(p *models.SelectionProcess) error { return p.CanStart() },
			func(p *models.SelectionProcess) { p.ApplyStart(s.now, p.CreatedBy) },
		)
		s.Require().NoError(err)
		s.Equal(models.ProcessStatusActive, updated.Status)
		s.Equal(int64(2), updated.Version)
	})

	s.Run("validation failure leaves the process untouched", func() {
		p := s.newProcess(id.StableID(uuid.New()), 2)
		s.Require().NoError(s.store.Create(s.ctx, p))

		boom := errors.New("nope")
		_, err := s.store.Execute(s.ctx, p.ID,
			func(*models.SelectionProcess) error { return boom },
			func(p *models.SelectionProcess) { p.Name = "changed" },
		)
		s.ErrorIs(err, boom)

		found, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal("March routines", found.Name)
	})

	s.Run("mutation that breaks invariants is not committed", func() {
		p := s.newProcess(id.StableID(uuid.New()), 2)
		s.Require().NoError(s.store.Create(s.ctx, p))

		_, err := s.store.Execute(s.ctx, p.ID,
			func(*models.SelectionProcess) error { return nil },
			func(p *models.SelectionProcess) { p.Turns[1].Order = 7 },
		)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		found, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(2, found.Turns[1].Order)
	})

	s.Run("cancels an active process", func() {
		p := s.newProcess(id.StableID(uuid.New()), 2)
		s.Require().NoError(s.store.Create(s.ctx, p))
		_, err := s.store.Execute(s.ctx, p.ID,
			func(p *models.SelectionProcess) error { return p.CanStart() },
			func(p *models.SelectionProcess) { p.ApplyStart(s.now, p.CreatedBy) },
		)
		s.Require().NoError(err)

		cancelled, err := s.store.Execute(s.ctx, p.ID,
			func(p *models.SelectionProcess) error { return p.CanCancel() },
			func(p *models.SelectionProcess) { p.ApplyCancel(s.now.Add(time.Hour), p.CreatedBy) },
		)
		s.Require().NoError(err)
		s.Equal(models.ProcessStatusCancelled, cancelled.Status)
		s.Equal(int64(3), cancelled.Version)
		s.Equal(-1, cancelled.CurrentTurnIndex)
		for _, turn := range cancelled.Turns {
			s.Equal(models.TurnStatusPending, turn.Status)
		}
	})

	s.Run("concurrent starts succeed exactly once", func() {
		p := s.newProcess(id.StableID(uuid.New()), 3)
		s.Require().NoError(s.store.Create(s.ctx, p))

		var wg sync.WaitGroup
		var ok atomic.Int32
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.store.Execute(s.ctx, p.ID,
					func(p *models.SelectionProcess) error { return p.CanStart() },
					func(p *models.SelectionProcess) { p.ApplyStart(s.now, p.CreatedBy) },
				)
				if err == nil {
					ok.Add(1)
				}
			}()
		}
		wg.Wait()
		s.Equal(int32(1), ok.Load())
	})
}
