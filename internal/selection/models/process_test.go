package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "stablehand/pkg/domain"
	dErrors "stablehand/pkg/domain-errors"
)

type ProcessSuite struct {
	suite.Suite
	now     time.Time
	manager id.UserID
	alice   id.UserID
	bob     id.UserID
	carol   id.UserID
}

func TestProcessSuite(t *testing.T) {
	suite.Run(t, new(ProcessSuite))
}

func (s *ProcessSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.manager = id.UserID(uuid.New())
	s.alice = id.UserID(uuid.New())
	s.bob = id.UserID(uuid.New())
	s.carol = id.UserID(uuid.New())
}

func (s *ProcessSuite) newProcess(members ...id.UserID) *SelectionProcess {
	turns := make([]Turn, len(members))
	for i, m := range members {
		turns[i] = Turn{UserID: m, UserName: m.String()[:8], Order: i + 1}
	}
	p, err := NewSelectionProcess(NewProcessParams{
		ID:                 id.ProcessID(uuid.New()),
		OrganizationID:     id.OrganizationID(uuid.New()),
		StableID:           id.StableID(uuid.New()),
		Name:               "March rota",
		SelectionStartDate: s.now,
		SelectionEndDate:   s.now.AddDate(0, 0, 30),
		Algorithm:          AlgorithmManual,
		Turns:              turns,
		CreatedBy:          s.manager,
		Now:                s.now,
	})
	s.Require().NoError(err)
	return p
}

func (s *ProcessSuite) TestNewSelectionProcess() {
	s.Run("starts as draft with every turn pending", func() {
		p := s.newProcess(s.alice, s.bob)
		s.Equal(ProcessStatusDraft, p.Status)
		s.Equal(-1, p.CurrentTurnIndex)
		s.Nil(p.CurrentTurnUserID)
		for _, t := range p.Turns {
			s.Equal(TurnStatusPending, t.Status)
			s.Zero(t.SelectionsCount)
		}
		s.NoError(p.CheckInvariants())
	})

	s.Run("rejects empty member list", func() {
		_, err := NewSelectionProcess(NewProcessParams{
			Name:               "Empty",
			Algorithm:          AlgorithmManual,
			SelectionStartDate: s.now,
			SelectionEndDate:   s.now,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("rejects end before start", func() {
		_, err := NewSelectionProcess(NewProcessParams{
			Name:               "Backwards",
			Algorithm:          AlgorithmManual,
			SelectionStartDate: s.now,
			SelectionEndDate:   s.now.AddDate(0, 0, -1),
			Turns:              []Turn{{UserID: s.alice, Order: 1}},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("accepts a single-day period", func() {
		_, err := NewSelectionProcess(NewProcessParams{
			Name:               "One day",
			Algorithm:          AlgorithmManual,
			SelectionStartDate: s.now,
			SelectionEndDate:   s.now.Add(3 * time.Hour),
			Turns:              []Turn{{UserID: s.alice, Order: 1}},
		})
		s.NoError(err)
	})

	s.Run("rejects gaps in turn order", func() {
		_, err := NewSelectionProcess(NewProcessParams{
			Name:               "Gappy",
			Algorithm:          AlgorithmManual,
			SelectionStartDate: s.now,
			SelectionEndDate:   s.now,
			Turns:              []Turn{{UserID: s.alice, Order: 1}, {UserID: s.bob, Order: 3}},
		})
		s.Require().Error(err)
	})

	s.Run("rejects duplicate members", func() {
		_, err := NewSelectionProcess(NewProcessParams{
			Name:               "Dup",
			Algorithm:          AlgorithmManual,
			SelectionStartDate: s.now,
			SelectionEndDate:   s.now,
			Turns:              []Turn{{UserID: s.alice, Order: 1}, {UserID: s.alice, Order: 2}},
		})
		s.Require().Error(err)
	})
}

func (s *ProcessSuite) TestStart() {
	s.Run("activates the first turn", func() {
		p := s.newProcess(s.alice, s.bob)
		s.Require().NoError(p.CanStart())
		p.ApplyStart(s.now, s.manager)

		s.Equal(ProcessStatusActive, p.Status)
		s.Equal(0, p.CurrentTurnIndex)
		s.Require().NotNil(p.CurrentTurnUserID)
		s.Equal(s.alice, *p.CurrentTurnUserID)
		s.Equal(TurnStatusActive, p.Turns[0].Status)
		s.NotNil(p.StartedAt)
		s.NoError(p.CheckInvariants())
	})

	s.Run("cannot start twice", func() {
		p := s.newProcess(s.alice)
		p.ApplyStart(s.now, s.manager)
		err := p.CanStart()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *ProcessSuite) TestRecordSelection() {
	s.Run("only the turn holder may pick", func() {
		p := s.newProcess(s.alice, s.bob)
		p.ApplyStart(s.now, s.manager)

		err := p.CanRecordSelection(s.bob)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotYourTurn))
		s.NoError(p.CanRecordSelection(s.alice))
	})

	s.Run("draft process rejects picks", func() {
		p := s.newProcess(s.alice)
		err := p.CanRecordSelection(s.alice)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("counts picks without advancing", func() {
		p := s.newProcess(s.alice, s.bob)
		p.ApplyStart(s.now, s.manager)

		p.ApplySelection(3, s.now, s.alice)
		p.ApplySelection(2, s.now, s.alice)

		s.Equal(2, p.Turns[0].SelectionsCount)
		s.Equal(5, p.Turns[0].PointsPicked)
		s.Equal(s.alice, *p.CurrentTurnUserID)
		s.Equal(2, p.TotalSelections())
	})

	s.Run("selection times strictly increase under a frozen clock", func() {
		p := s.newProcess(s.alice)
		p.ApplyStart(s.now, s.manager)

		first := p.ApplySelection(1, s.now, s.alice)
		second := p.ApplySelection(1, s.now, s.alice)
		third := p.ApplySelection(1, s.now.Add(-time.Minute), s.alice)

		s.True(second.After(first))
		s.True(third.After(second))
	})
}

func (s *ProcessSuite) TestCompleteTurn() {
	s.Run("advances to the next pending turn", func() {
		p := s.newProcess(s.alice, s.bob, s.carol)
		p.ApplyStart(s.now, s.manager)

		s.Require().NoError(p.CanCompleteTurn(s.alice))
		done := p.ApplyCompleteTurn(s.now, s.alice)

		s.False(done)
		s.Equal(TurnStatusCompleted, p.Turns[0].Status)
		s.NotNil(p.Turns[0].CompletedAt)
		s.Equal(1, p.CurrentTurnIndex)
		s.Equal(s.bob, *p.CurrentTurnUserID)
		s.NoError(p.CheckInvariants())
	})

	s.Run("completing the last turn completes the process", func() {
		p := s.newProcess(s.alice, s.bob)
		p.ApplyStart(s.now, s.manager)
		p.ApplyCompleteTurn(s.now, s.alice)

		done := p.ApplyCompleteTurn(s.now.Add(time.Hour), s.bob)

		s.True(done)
		s.Equal(ProcessStatusCompleted, p.Status)
		s.NotNil(p.CompletedAt)
		s.Nil(p.CurrentTurnUserID)
		for _, t := range p.Turns {
			s.Equal(TurnStatusCompleted, t.Status)
		}
		s.NoError(p.CheckInvariants())
	})

	s.Run("a turn may end with zero selections", func() {
		p := s.newProcess(s.alice, s.bob)
		p.ApplyStart(s.now, s.manager)
		p.ApplyCompleteTurn(s.now, s.alice)
		s.Zero(p.Turns[0].SelectionsCount)
	})

	s.Run("non-holder cannot complete", func() {
		p := s.newProcess(s.alice, s.bob)
		p.ApplyStart(s.now, s.manager)
		err := p.CanCompleteTurn(s.bob)
		s.True(dErrors.HasCode(err, dErrors.CodeNotYourTurn))
	})
}

func (s *ProcessSuite) TestCancel() {
	s.Run("draft and active processes can be cancelled", func() {
		draft := s.newProcess(s.alice)
		s.Require().NoError(draft.CanCancel())
		draft.ApplyCancel(s.now, s.manager)
		s.Equal(ProcessStatusCancelled, draft.Status)
		s.Equal(s.manager, *draft.CancelledBy)

		active := s.newProcess(s.alice)
		active.ApplyStart(s.now, s.manager)
		s.Require().NoError(active.CanCancel())
		active.ApplyCancel(s.now, s.manager)
		s.Equal(ProcessStatusCancelled, active.Status)
		s.Nil(active.CurrentTurnUserID)
		s.Equal(-1, active.CurrentTurnIndex)
	})

	s.Run("cancelling an active process leaves no active turn", func() {
		p := s.newProcess(s.alice, s.bob)
		p.ApplyStart(s.now, s.manager)
		p.ApplyCompleteTurn(s.now, s.alice)
		s.Require().NoError(p.CanCancel())
		p.ApplyCancel(s.now, s.manager)

		for _, turn := range p.Turns {
			s.NotEqual(TurnStatusActive, turn.Status)
		}
		s.Equal(TurnStatusCompleted, p.Turns[0].Status)
		s.Equal(TurnStatusPending, p.Turns[1].Status)
		s.Require().NoError(p.CheckInvariants())
	})

	s.Run("terminal processes cannot be cancelled", func() {
		p := s.newProcess(s.alice)
		p.ApplyStart(s.now, s.manager)
		p.ApplyCompleteTurn(s.now, s.alice)

		err := p.CanCancel()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("cancelled process rejects further actions", func() {
		p := s.newProcess(s.alice)
		p.ApplyStart(s.now, s.manager)
		p.ApplyCancel(s.now, s.manager)

		s.True(dErrors.HasCode(p.CanRecordSelection(s.alice), dErrors.CodeInvalidState))
		s.True(dErrors.HasCode(p.CanCompleteTurn(s.alice), dErrors.CodeInvalidState))
		s.True(dErrors.HasCode(p.CanStart(), dErrors.CodeInvalidState))
		s.True(dErrors.HasCode(p.CanCancel(), dErrors.CodeInvalidState))
	})
}

func (s *ProcessSuite) TestClone() {
	p := s.newProcess(s.alice, s.bob)
	p.ApplyStart(s.now, s.manager)

	c := p.Clone()
	c.Turns[0].SelectionsCount = 99
	*c.CurrentTurnUserID = s.carol

	s.Zero(p.Turns[0].SelectionsCount)
	s.Equal(s.alice, *p.CurrentTurnUserID)
}

func (s *ProcessSuite) TestInSelectionPeriod() {
	p := s.newProcess(s.alice)
	s.True(p.InSelectionPeriod(s.now))
	s.True(p.InSelectionPeriod(s.now.AddDate(0, 0, 30).Add(10 * time.Hour)))
	s.False(p.InSelectionPeriod(s.now.AddDate(0, 0, 31)))
	s.False(p.InSelectionPeriod(s.now.AddDate(0, 0, -1)))
}

func (s *ProcessSuite) TestHistory() {
	p := s.newProcess(s.alice, s.bob)
	p.ApplyStart(s.now, s.manager)
	at := p.ApplySelection(4, s.now, s.alice)
	entry, err := NewSelectionEntry(id.EntryID(uuid.New()), p, id.RoutineInstanceID(uuid.New()), 4, at)
	s.Require().NoError(err)
	s.Equal(1, entry.Sequence)
	s.Equal(1, entry.TurnOrder)

	_, err = NewHistory(id.HistoryID(uuid.New()), p, nil, s.now)
	s.Require().Error(err, "active processes cannot be archived")

	p.ApplyCompleteTurn(s.now, s.alice)
	p.ApplyCompleteTurn(s.now, s.bob)

	h, err := NewHistory(id.HistoryID(uuid.New()), p, []*SelectionEntry{entry}, s.now)
	s.Require().NoError(err)
	s.Len(h.FinalTurnOrder, 2)
	s.Equal(4, h.FinalTurnOrder[0].TotalPointsPicked)
	s.Equal(1, h.FinalTurnOrder[0].SelectionsCount)
	s.Zero(h.FinalTurnOrder[1].TotalPointsPicked)
	s.Equal(2, h.OrderOf(s.bob))
	s.Zero(h.OrderOf(s.carol))
}
