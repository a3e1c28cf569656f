// Package turnorder computes the queue of members for a selection process.
//
// Compute is pure: it performs no I/O and returns the same order for the same
// input. Callers gather members, stats, routine instances and the previous
// history beforehand.
package turnorder

import (
	"sort"
	"time"

	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
	dErrors "stablehand/pkg/domain-errors"
)

// Policy holds the tunable rules for the ambiguous corners of the algorithms.
type Policy struct {
	QuotaRounding      models.QuotaRounding
	NewMemberPlacement models.NewMemberPlacement
}

// DefaultPolicy floors quotas with the remainder going to the earliest turns,
// and appends newcomers to the end of a rotated queue.
func DefaultPolicy() Policy {
	return Policy{
		QuotaRounding:      models.RoundingFloorRemainderFirst,
		NewMemberPlacement: models.PlacementEnd,
	}
}

// Input is everything the algorithms may read. Members is the caller's order,
// which manual keeps as-is.
type Input struct {
	Algorithm       models.Algorithm
	Members         []models.Member
	StartDate       time.Time
	EndDate         time.Time
	Stats           map[id.UserID]models.MemberStats
	Instances       []models.RoutineInstance
	PreviousHistory *models.History
	Policy          Policy
}

// OrderedMember is a member with their computed position.
type OrderedMember struct {
	models.Member
	Order int `json:"order"`
	Quota int `json:"quota,omitempty"`
}

// Result is the computed queue.
type Result struct {
	Algorithm            models.Algorithm          `json:"algorithm"`
	Entries              []OrderedMember           `json:"entries"`
	QuotaPerMember       int                       `json:"quota_per_member,omitempty"`
	TotalAvailablePoints int                       `json:"total_available_points,omitempty"`
	NewMemberPlacement   models.NewMemberPlacement `json:"new_member_placement,omitempty"`
}

// Turns converts the result into pending turns for a new process.
func (r *Result) Turns() []models.Turn {
	turns := make([]models.Turn, len(r.Entries))
	for i, e := range r.Entries {
		turns[i] = models.Turn{
			UserID:    e.UserID,
			UserName:  e.Name,
			UserEmail: e.Email,
			Order:     e.Order,
			Status:    models.TurnStatusPending,
			Quota:     e.Quota,
		}
	}
	return turns
}

// Compute orders the members according to the algorithm.
//
// Errors: CodeInvalidInput when the member list is empty or has duplicates,
// the end date precedes the start date, or the algorithm is unknown.
func Compute(in Input) (*Result, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	policy := in.Policy
	if policy.QuotaRounding == "" {
		policy.QuotaRounding = DefaultPolicy().QuotaRounding
	}
	if policy.NewMemberPlacement == "" {
		policy.NewMemberPlacement = DefaultPolicy().NewMemberPlacement
	}

	members := make([]models.Member, len(in.Members))
	copy(members, in.Members)

	result := &Result{Algorithm: in.Algorithm}
	switch in.Algorithm {
	case models.AlgorithmManual:
	case models.AlgorithmQuotaBased:
		sortByWeight(members, func(m models.Member) int { return in.Stats[m.UserID].CurrentPeriodPoints })
		result.TotalAvailablePoints = availablePoints(in.Instances, in.StartDate, in.EndDate)
	case models.AlgorithmPointsBalance:
		sortByWeight(members, func(m models.Member) int { return in.Stats[m.UserID].TotalPoints })
	case models.AlgorithmFairRotation:
		members = rotate(members, in.PreviousHistory, policy.NewMemberPlacement)
		result.NewMemberPlacement = policy.NewMemberPlacement
	}

	result.Entries = make([]OrderedMember, len(members))
	for i, m := range members {
		result.Entries[i] = OrderedMember{Member: m, Order: i + 1}
	}
	if in.Algorithm == models.AlgorithmQuotaBased {
		result.QuotaPerMember = assignQuotas(result.Entries, result.TotalAvailablePoints, policy.QuotaRounding)
	}
	return result, nil
}

func validate(in Input) error {
	if !in.Algorithm.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unsupported algorithm")
	}
	if len(in.Members) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "at least one member is required")
	}
	if models.DateOnly(in.EndDate).Before(models.DateOnly(in.StartDate)) {
		return dErrors.New(dErrors.CodeInvalidInput, "selection end date must not be before start date")
	}
	seen := make(map[id.UserID]struct{}, len(in.Members))
	for _, m := range in.Members {
		if m.UserID.IsNil() {
			return dErrors.New(dErrors.CodeInvalidInput, "member user ID is required")
		}
		if _, dup := seen[m.UserID]; dup {
			return dErrors.New(dErrors.CodeInvalidInput, "member list contains duplicates")
		}
		seen[m.UserID] = struct{}{}
	}
	return nil
}

// sortByWeight orders ascending by weight with the user ID string as tie-break,
// so the result never depends on the input order.
func sortByWeight(members []models.Member, weight func(models.Member) int) {
	sort.SliceStable(members, func(i, j int) bool {
		wi, wj := weight(members[i]), weight(members[j])
		if wi != wj {
			return wi < wj
		}
		return members[i].UserID.String() < members[j].UserID.String()
	})
}

func availablePoints(instances []models.RoutineInstance, start, end time.Time) int {
	from, to := models.DateOnly(start), models.DateOnly(end)
	total := 0
	for _, inst := range instances {
		d := models.DateOnly(inst.ScheduledDate)
		if d.Before(from) || d.After(to) {
			continue
		}
		total += inst.PointsValue
	}
	return total
}

func assignQuotas(entries []OrderedMember, total int, rounding models.QuotaRounding) int {
	n := len(entries)
	quota := total / n
	remainder := total % n
	for i := range entries {
		entries[i].Quota = quota
		if rounding == models.RoundingFloorRemainderFirst && i < remainder {
			entries[i].Quota++
		}
	}
	return quota
}

// rotate keeps returning members in their previous relative order shifted by
// one, so whoever went first last time goes last. Members absent from the
// history are placed as a block at the end or start, sorted by user ID.
// Without history the input order is kept.
func rotate(members []models.Member, prev *models.History, placement models.NewMemberPlacement) []models.Member {
	if prev == nil || len(prev.FinalTurnOrder) == 0 {
		return members
	}

	var returning, newcomers []models.Member
	for _, m := range members {
		if prev.OrderOf(m.UserID) > 0 {
			returning = append(returning, m)
		} else {
			newcomers = append(newcomers, m)
		}
	}
	sort.SliceStable(returning, func(i, j int) bool {
		return prev.OrderOf(returning[i].UserID) < prev.OrderOf(returning[j].UserID)
	})
	if len(returning) > 1 {
		returning = append(append([]models.Member{}, returning[1:]...), returning[0])
	}
	sort.SliceStable(newcomers, func(i, j int) bool {
		return newcomers[i].UserID.String() < newcomers[j].UserID.String()
	})

	out := make([]models.Member, 0, len(members))
	if placement == models.PlacementStart {
		out = append(out, newcomers...)
		return append(out, returning...)
	}
	out = append(out, returning...)
	return append(out, newcomers...)
}
