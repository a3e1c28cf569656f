package models

import (
	"fmt"
	"strings"
	"time"

	id "stablehand/pkg/domain"
	dErrors "stablehand/pkg/domain-errors"
)

const (
	maxNameLength        = 128
	maxDescriptionLength = 1000
)

// Turn is one member's slot in the queue. Member name and email are
// snapshotted at creation so later profile edits do not rewrite history.
type Turn struct {
	UserID          id.UserID  `json:"user_id"`
	UserName        string     `json:"user_name"`
	UserEmail       string     `json:"user_email,omitempty"`
	Order           int        `json:"order"`
	Status          TurnStatus `json:"status"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	SelectionsCount int        `json:"selections_count"`
	PointsPicked    int        `json:"points_picked"`
	Quota           int        `json:"quota,omitempty"`
}

// SelectionProcess is the aggregate root for one turn-based routine selection.
//
// Invariants:
//   - Turns is a contiguous permutation of orders 1..N sorted ascending, one per member
//   - At most one turn is active, and only while Status is active
//   - When active, CurrentTurnUserID equals Turns[CurrentTurnIndex].UserID
//   - Once the process is active, turn order never changes
//   - Algorithm is immutable after creation
//   - Completed and cancelled are terminal
//   - SelectionsCount per turn only increases
//
// Mutations go through Can*/Apply* pairs so stores can validate and mutate
// under the same lock.
type SelectionProcess struct {
	ID                   id.ProcessID       `json:"id"`
	OrganizationID       id.OrganizationID  `json:"organization_id"`
	StableID             id.StableID        `json:"stable_id"`
	Name                 string             `json:"name"`
	Description          string             `json:"description,omitempty"`
	SelectionStartDate   time.Time          `json:"selection_start_date"`
	SelectionEndDate     time.Time          `json:"selection_end_date"`
	Algorithm            Algorithm          `json:"algorithm"`
	NewMemberPlacement   NewMemberPlacement `json:"new_member_placement,omitempty"`
	QuotaPerMember       int                `json:"quota_per_member,omitempty"`
	TotalAvailablePoints int                `json:"total_available_points,omitempty"`
	Turns                []Turn             `json:"turns"`
	CurrentTurnIndex     int                `json:"current_turn_index"`
	CurrentTurnUserID    *id.UserID         `json:"current_turn_user_id,omitempty"`
	Status               ProcessStatus      `json:"status"`
	LastSelectionAt      *time.Time         `json:"last_selection_at,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	CreatedBy            id.UserID          `json:"created_by"`
	UpdatedAt            time.Time          `json:"updated_at"`
	UpdatedBy            id.UserID          `json:"updated_by"`
	StartedAt            *time.Time         `json:"started_at,omitempty"`
	CompletedAt          *time.Time         `json:"completed_at,omitempty"`
	CancelledAt          *time.Time         `json:"cancelled_at,omitempty"`
	CancelledBy          *id.UserID         `json:"cancelled_by,omitempty"`
	Version              int64              `json:"version"`
}

// NewProcessParams carries everything needed to build a draft process.
type NewProcessParams struct {
	ID                   id.ProcessID
	OrganizationID       id.OrganizationID
	StableID             id.StableID
	Name                 string
	Description          string
	SelectionStartDate   time.Time
	SelectionEndDate     time.Time
	Algorithm            Algorithm
	NewMemberPlacement   NewMemberPlacement
	QuotaPerMember       int
	TotalAvailablePoints int
	Turns                []Turn
	CreatedBy            id.UserID
	Now                  time.Time
}

// NewSelectionProcess builds a draft process with every turn pending.
func NewSelectionProcess(p NewProcessParams) (*SelectionProcess, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "process name cannot be empty")
	}
	if len(name) > maxNameLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "process name must be 128 characters or less")
	}
	if len(p.Description) > maxDescriptionLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "description must be 1000 characters or less")
	}
	if !p.Algorithm.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unsupported algorithm")
	}
	start, end := DateOnly(p.SelectionStartDate), DateOnly(p.SelectionEndDate)
	if end.Before(start) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "selection end date must not be before start date")
	}

	turns := make([]Turn, len(p.Turns))
	copy(turns, p.Turns)
	for i := range turns {
		turns[i].Status = TurnStatusPending
		turns[i].CompletedAt = nil
		turns[i].SelectionsCount = 0
		turns[i].PointsPicked = 0
	}
	if err := validateTurnOrder(turns); err != nil {
		return nil, err
	}

	return &SelectionProcess{
		ID:                   p.ID,
		OrganizationID:       p.OrganizationID,
		StableID:             p.StableID,
		Name:                 name,
		Description:          p.Description,
		SelectionStartDate:   start,
		SelectionEndDate:     end,
		Algorithm:            p.Algorithm,
		NewMemberPlacement:   p.NewMemberPlacement,
		QuotaPerMember:       p.QuotaPerMember,
		TotalAvailablePoints: p.TotalAvailablePoints,
		Turns:                turns,
		CurrentTurnIndex:     -1,
		Status:               ProcessStatusDraft,
		CreatedAt:            p.Now,
		CreatedBy:            p.CreatedBy,
		UpdatedAt:            p.Now,
		UpdatedBy:            p.CreatedBy,
	}, nil
}

// validateTurnOrder checks that turns are sorted by a contiguous 1..N order
// and that no member appears twice.
func validateTurnOrder(turns []Turn) error {
	if len(turns) == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "a selection process needs at least one member")
	}
	seen := make(map[id.UserID]struct{}, len(turns))
	for i, t := range turns {
		if t.UserID.IsNil() {
			return dErrors.New(dErrors.CodeInvariantViolation, "turn user ID cannot be nil")
		}
		if _, dup := seen[t.UserID]; dup {
			return dErrors.New(dErrors.CodeInvariantViolation, "member appears more than once in the turn order")
		}
		seen[t.UserID] = struct{}{}
		if t.Order != i+1 {
			return dErrors.New(dErrors.CodeInvariantViolation, "turn orders must be contiguous starting at 1")
		}
	}
	return nil
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// InSelectionPeriod reports whether date falls inside the inclusive selection window.
func (p *SelectionProcess) InSelectionPeriod(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(p.SelectionStartDate) && !d.After(p.SelectionEndDate)
}

func (p *SelectionProcess) IsActive() bool { return p.Status == ProcessStatusActive }

// CurrentTurn returns the active turn, or nil when no turn is active.
func (p *SelectionProcess) CurrentTurn() *Turn {
	if p.Status != ProcessStatusActive || p.CurrentTurnIndex < 0 || p.CurrentTurnIndex >= len(p.Turns) {
		return nil
	}
	return &p.Turns[p.CurrentTurnIndex]
}

// TurnFor returns the given member's turn, or nil when they are not in the queue.
func (p *SelectionProcess) TurnFor(userID id.UserID) *Turn {
	for i := range p.Turns {
		if p.Turns[i].UserID == userID {
			return &p.Turns[i]
		}
	}
	return nil
}

// TotalSelections is the number of entries recorded across all turns.
func (p *SelectionProcess) TotalSelections() int {
	total := 0
	for _, t := range p.Turns {
		total += t.SelectionsCount
	}
	return total
}

// CanStart checks the draft → active transition.
func (p *SelectionProcess) CanStart() error {
	if p.Status != ProcessStatusDraft {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("cannot start a %s selection process", p.Status))
	}
	return nil
}

// ApplyStart activates the first turn. Call CanStart first.
func (p *SelectionProcess) ApplyStart(now time.Time, actor id.UserID) {
	p.Status = ProcessStatusActive
	p.StartedAt = &now
	p.activate(0)
	p.touch(now, actor)
}

// CanRecordSelection checks that userID may pick right now.
func (p *SelectionProcess) CanRecordSelection(userID id.UserID) error {
	return p.requireTurnHolder(userID)
}

// ApplySelection counts a pick against the current turn and returns the
// timestamp the ledger entry must carry. The returned time is strictly after
// every earlier selection in this process. Call CanRecordSelection first.
func (p *SelectionProcess) ApplySelection(points int, now time.Time, actor id.UserID) time.Time {
	selectedAt := now
	if p.LastSelectionAt != nil && !selectedAt.After(*p.LastSelectionAt) {
		selectedAt = p.LastSelectionAt.Add(time.Microsecond)
	}
	turn := &p.Turns[p.CurrentTurnIndex]
	turn.SelectionsCount++
	turn.PointsPicked += points
	p.LastSelectionAt = &selectedAt
	p.touch(now, actor)
	return selectedAt
}

// CanCompleteTurn checks that userID may end their turn.
func (p *SelectionProcess) CanCompleteTurn(userID id.UserID) error {
	return p.requireTurnHolder(userID)
}

// ApplyCompleteTurn closes the current turn and activates the next pending
// turn by ascending order. When no turn is left the process completes and
// ApplyCompleteTurn returns true. Call CanCompleteTurn first.
func (p *SelectionProcess) ApplyCompleteTurn(now time.Time, actor id.UserID) (processCompleted bool) {
	current := &p.Turns[p.CurrentTurnIndex]
	current.Status = TurnStatusCompleted
	current.CompletedAt = &now

	next := -1
	for i := range p.Turns {
		if p.Turns[i].Status == TurnStatusPending {
			next = i
			break
		}
	}
	p.touch(now, actor)
	if next < 0 {
		p.Status = ProcessStatusCompleted
		p.CompletedAt = &now
		p.clearCurrent()
		return true
	}
	p.activate(next)
	return false
}

// CanCancel checks that the process is still open.
func (p *SelectionProcess) CanCancel() error {
	if !p.Status.CanTransitionTo(ProcessStatusCancelled) {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("cannot cancel a %s selection process", p.Status))
	}
	return nil
}

// ApplyCancel terminates the process. An in-progress turn goes back to
// pending. Call CanCancel first.
func (p *SelectionProcess) ApplyCancel(now time.Time, actor id.UserID) {
	if current := p.CurrentTurn(); current != nil {
		current.Status = TurnStatusPending
	}
	p.Status = ProcessStatusCancelled
	p.CancelledAt = &now
	p.CancelledBy = &actor
	p.clearCurrent()
	p.touch(now, actor)
}

func (p *SelectionProcess) requireTurnHolder(userID id.UserID) error {
	if p.Status != ProcessStatusActive {
		return dErrors.New(dErrors.CodeInvalidState, "selection process is not active")
	}
	if p.CurrentTurnUserID == nil || *p.CurrentTurnUserID != userID {
		return dErrors.New(dErrors.CodeNotYourTurn, "it is not your turn")
	}
	return nil
}

func (p *SelectionProcess) activate(index int) {
	p.CurrentTurnIndex = index
	p.Turns[index].Status = TurnStatusActive
	userID := p.Turns[index].UserID
	p.CurrentTurnUserID = &userID
}

func (p *SelectionProcess) clearCurrent() {
	p.CurrentTurnIndex = -1
	p.CurrentTurnUserID = nil
}

func (p *SelectionProcess) touch(now time.Time, actor id.UserID) {
	p.UpdatedAt = now
	p.UpdatedBy = actor
}

// CheckInvariants verifies the structural invariants of the aggregate.
// Stores call it before persisting.
func (p *SelectionProcess) CheckInvariants() error {
	if err := validateTurnOrder(p.Turns); err != nil {
		return err
	}
	active := 0
	for i, t := range p.Turns {
		if t.Status == TurnStatusActive {
			active++
			if p.Status != ProcessStatusActive || i != p.CurrentTurnIndex {
				return dErrors.New(dErrors.CodeInvariantViolation, "active turn does not match current turn index")
			}
		}
		if t.Status == TurnStatusCompleted && t.CompletedAt == nil {
			return dErrors.New(dErrors.CodeInvariantViolation, "completed turn is missing its completion time")
		}
	}
	switch p.Status {
	case ProcessStatusActive:
		if active != 1 || p.CurrentTurnUserID == nil || *p.CurrentTurnUserID != p.Turns[p.CurrentTurnIndex].UserID {
			return dErrors.New(dErrors.CodeInvariantViolation, "active process must have exactly one current turn")
		}
	default:
		if active != 0 {
			return dErrors.New(dErrors.CodeInvariantViolation, "only an active process may have an active turn")
		}
	}
	return nil
}

// Clone returns a deep copy so in-memory stores never share mutable state with callers.
func (p *SelectionProcess) Clone() *SelectionProcess {
	if p == nil {
		return nil
	}
	c := *p
	c.Turns = make([]Turn, len(p.Turns))
	for i, t := range p.Turns {
		c.Turns[i] = t
		c.Turns[i].CompletedAt = cloneTime(t.CompletedAt)
	}
	c.CurrentTurnUserID = cloneUserID(p.CurrentTurnUserID)
	c.CancelledBy = cloneUserID(p.CancelledBy)
	c.LastSelectionAt = cloneTime(p.LastSelectionAt)
	c.StartedAt = cloneTime(p.StartedAt)
	c.CompletedAt = cloneTime(p.CompletedAt)
	c.CancelledAt = cloneTime(p.CancelledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneUserID(u *id.UserID) *id.UserID {
	if u == nil {
		return nil
	}
	v := *u
	return &v
}
