// Package projection derives per-caller views of a selection process.
// Views are recomputed on every read and never stored.
package projection

import (
	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
)

// UserContext tells the caller where they stand in a process.
type UserContext struct {
	IsCurrentTurn    bool `json:"is_current_turn"`
	UserTurnOrder    *int `json:"user_turn_order"`
	TurnsAhead       int  `json:"turns_ahead"`
	HasCompletedTurn bool `json:"has_completed_turn"`
	CanManage        bool `json:"can_manage"`
	RemainingQuota   *int `json:"remaining_quota,omitempty"`
}

// Summary condenses a process for list views.
type Summary struct {
	CompletedTurns      int    `json:"completed_turns"`
	PendingTurns        int    `json:"pending_turns"`
	TotalSelections     int    `json:"total_selections"`
	CurrentTurnUserName string `json:"current_turn_user_name,omitempty"`
}

// ProcessView is a process decorated with the caller's context.
type ProcessView struct {
	*models.SelectionProcess
	UserContext UserContext `json:"user_context"`
	Summary     Summary     `json:"summary"`
}

// ForUser computes the caller's context. canManage comes from the
// authorization collaborator and is passed through unchanged.
func ForUser(p *models.SelectionProcess, userID id.UserID, canManage bool) UserContext {
	uc := UserContext{CanManage: canManage}

	turn := p.TurnFor(userID)
	if turn == nil {
		return uc
	}
	order := turn.Order
	uc.UserTurnOrder = &order
	uc.HasCompletedTurn = turn.Status == models.TurnStatusCompleted
	uc.IsCurrentTurn = p.Status == models.ProcessStatusActive &&
		p.CurrentTurnUserID != nil && *p.CurrentTurnUserID == userID

	for _, t := range p.Turns {
		if t.Order < order && t.Status != models.TurnStatusCompleted {
			uc.TurnsAhead++
		}
	}

	if p.Algorithm == models.AlgorithmQuotaBased {
		remaining := turn.Quota - turn.PointsPicked
		if remaining < 0 {
			remaining = 0
		}
		uc.RemainingQuota = &remaining
	}
	return uc
}

// Summarize counts turn states for list views.
func Summarize(p *models.SelectionProcess) Summary {
	var s Summary
	for _, t := range p.Turns {
		switch t.Status {
		case models.TurnStatusCompleted:
			s.CompletedTurns++
		case models.TurnStatusPending:
			s.PendingTurns++
		}
		s.TotalSelections += t.SelectionsCount
	}
	if cur := p.CurrentTurn(); cur != nil {
		s.CurrentTurnUserName = cur.UserName
	}
	return s
}

// View builds the full caller-specific view.
func View(p *models.SelectionProcess, userID id.UserID, canManage bool) *ProcessView {
	return &ProcessView{
		SelectionProcess: p,
		UserContext:      ForUser(p, userID, canManage),
		Summary:          Summarize(p),
	}
}
