package models

import (
	"time"

	id "stablehand/pkg/domain"
	dErrors "stablehand/pkg/domain-errors"
)

// SelectionEntry records one routine instance picked during a process.
// Entries are append-only: there is no update or delete.
type SelectionEntry struct {
	ID                id.EntryID           `json:"id"`
	ProcessID         id.ProcessID         `json:"process_id"`
	OrganizationID    id.OrganizationID    `json:"organization_id"`
	StableID          id.StableID          `json:"stable_id"`
	RoutineInstanceID id.RoutineInstanceID `json:"routine_instance_id"`
	SelectedBy        id.UserID            `json:"selected_by"`
	SelectedByName    string               `json:"selected_by_name"`
	TurnOrder         int                  `json:"turn_order"`
	Sequence          int                  `json:"sequence"`
	PointsValue       int                  `json:"points_value"`
	SelectedAt        time.Time            `json:"selected_at"`
}

// NewSelectionEntry builds the ledger entry for the current turn holder's pick.
// The process must already have had ApplySelection called so that the
// sequence and timestamp reflect this pick.
func NewSelectionEntry(entryID id.EntryID, p *SelectionProcess, instanceID id.RoutineInstanceID, points int, selectedAt time.Time) (*SelectionEntry, error) {
	turn := p.CurrentTurn()
	if turn == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "selection entry requires an active turn")
	}
	if instanceID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "routine instance ID cannot be nil")
	}
	if points < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "points value cannot be negative")
	}
	return &SelectionEntry{
		ID:                entryID,
		ProcessID:         p.ID,
		OrganizationID:    p.OrganizationID,
		StableID:          p.StableID,
		RoutineInstanceID: instanceID,
		SelectedBy:        turn.UserID,
		SelectedByName:    turn.UserName,
		TurnOrder:         turn.Order,
		Sequence:          p.TotalSelections(),
		PointsValue:       points,
		SelectedAt:        selectedAt,
	}, nil
}
