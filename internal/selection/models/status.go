package models

import dErrors "stablehand/pkg/domain-errors"

// ProcessStatus is the lifecycle position of a selection process.
type ProcessStatus string

const (
	ProcessStatusDraft     ProcessStatus = "draft"
	ProcessStatusActive    ProcessStatus = "active"
	ProcessStatusCompleted ProcessStatus = "completed"
	ProcessStatusCancelled ProcessStatus = "cancelled"
)

// processTransitions lists the allowed status moves. Completed and cancelled are terminal.
var processTransitions = map[ProcessStatus][]ProcessStatus{
	ProcessStatusDraft:  {ProcessStatusActive, ProcessStatusCancelled},
	ProcessStatusActive: {ProcessStatusCompleted, ProcessStatusCancelled},
}

func ParseProcessStatus(s string) (ProcessStatus, error) {
	st := ProcessStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid selection process status")
	}
	return st, nil
}

func (s ProcessStatus) IsValid() bool {
	switch s {
	case ProcessStatusDraft, ProcessStatusActive, ProcessStatusCompleted, ProcessStatusCancelled:
		return true
	}
	return false
}

func (s ProcessStatus) IsTerminal() bool {
	return s == ProcessStatusCompleted || s == ProcessStatusCancelled
}

func (s ProcessStatus) CanTransitionTo(target ProcessStatus) bool {
	for _, allowed := range processTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s ProcessStatus) String() string { return string(s) }

// TurnStatus is the position of a single member's turn.
type TurnStatus string

const (
	TurnStatusPending   TurnStatus = "pending"
	TurnStatusActive    TurnStatus = "active"
	TurnStatusCompleted TurnStatus = "completed"
)

func (s TurnStatus) String() string { return string(s) }

// Algorithm names the strategy used to compute the turn order.
// It is fixed at creation.
type Algorithm string

const (
	AlgorithmManual        Algorithm = "manual"
	AlgorithmQuotaBased    Algorithm = "quota_based"
	AlgorithmPointsBalance Algorithm = "points_balance"
	AlgorithmFairRotation  Algorithm = "fair_rotation"
)

var validAlgorithms = map[Algorithm]bool{
	AlgorithmManual:        true,
	AlgorithmQuotaBased:    true,
	AlgorithmPointsBalance: true,
	AlgorithmFairRotation:  true,
}

// ParseAlgorithm constructs an Algorithm from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseAlgorithm(s string) (Algorithm, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "algorithm cannot be empty")
	}
	a := Algorithm(s)
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported algorithm")
	}
	return a, nil
}

func (a Algorithm) IsValid() bool { return validAlgorithms[a] }

func (a Algorithm) String() string { return string(a) }

// NewMemberPlacement decides where fair_rotation puts members who were not
// part of the previous process.
type NewMemberPlacement string

const (
	PlacementEnd   NewMemberPlacement = "end"
	PlacementStart NewMemberPlacement = "start"
)

func ParseNewMemberPlacement(s string) (NewMemberPlacement, error) {
	switch NewMemberPlacement(s) {
	case PlacementEnd, PlacementStart:
		return NewMemberPlacement(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "new member placement must be 'end' or 'start'")
}

func (p NewMemberPlacement) String() string { return string(p) }

// QuotaRounding decides what happens to points that do not divide evenly
// across members in quota_based processes.
type QuotaRounding string

const (
	// RoundingFloorRemainderFirst floors the quota and hands one extra point
	// to each of the first (total mod N) members in turn order.
	RoundingFloorRemainderFirst QuotaRounding = "floor_remainder_first"
	// RoundingFloor floors the quota and leaves the remainder unassigned.
	RoundingFloor QuotaRounding = "floor"
)

func ParseQuotaRounding(s string) (QuotaRounding, error) {
	switch QuotaRounding(s) {
	case RoundingFloorRemainderFirst, RoundingFloor:
		return QuotaRounding(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "quota rounding must be 'floor_remainder_first' or 'floor'")
}

func (r QuotaRounding) String() string { return string(r) }
