package models

import (
	"time"

	id "stablehand/pkg/domain"
	dErrors "stablehand/pkg/domain-errors"
)

// HistoryTurn is the archived outcome of one member's turn.
type HistoryTurn struct {
	UserID            id.UserID `json:"user_id"`
	UserName          string    `json:"user_name"`
	Order             int       `json:"order"`
	SelectionsCount   int       `json:"selections_count"`
	TotalPointsPicked int       `json:"total_points_picked"`
}

// History is the write-once record of a completed process. fair_rotation
// reads the most recent one per stable to rotate the next queue.
type History struct {
	ID             id.HistoryID      `json:"id"`
	ProcessID      id.ProcessID      `json:"process_id"`
	OrganizationID id.OrganizationID `json:"organization_id"`
	StableID       id.StableID       `json:"stable_id"`
	Algorithm      Algorithm         `json:"algorithm"`
	FinalTurnOrder []HistoryTurn     `json:"final_turn_order"`
	CompletedAt    time.Time         `json:"completed_at"`
	ArchivedAt     time.Time         `json:"archived_at"`
}

// NewHistory summarizes a completed process. Points come from the ledger
// entries so the archive reflects what was actually recorded.
func NewHistory(historyID id.HistoryID, p *SelectionProcess, entries []*SelectionEntry, archivedAt time.Time) (*History, error) {
	if p.Status != ProcessStatusCompleted || p.CompletedAt == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "only completed processes can be archived")
	}

	points := make(map[id.UserID]int, len(p.Turns))
	counts := make(map[id.UserID]int, len(p.Turns))
	for _, e := range entries {
		if e.ProcessID != p.ID {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "entry belongs to a different process")
		}
		points[e.SelectedBy] += e.PointsValue
		counts[e.SelectedBy]++
	}

	final := make([]HistoryTurn, 0, len(p.Turns))
	for _, t := range p.Turns {
		final = append(final, HistoryTurn{
			UserID:            t.UserID,
			UserName:          t.UserName,
			Order:             t.Order,
			SelectionsCount:   counts[t.UserID],
			TotalPointsPicked: points[t.UserID],
		})
	}

	return &History{
		ID:             historyID,
		ProcessID:      p.ID,
		OrganizationID: p.OrganizationID,
		StableID:       p.StableID,
		Algorithm:      p.Algorithm,
		FinalTurnOrder: final,
		CompletedAt:    *p.CompletedAt,
		ArchivedAt:     archivedAt,
	}, nil
}

// OrderOf returns the member's archived order, or 0 when absent.
func (h *History) OrderOf(userID id.UserID) int {
	for _, t := range h.FinalTurnOrder {
		if t.UserID == userID {
			return t.Order
		}
	}
	return 0
}
