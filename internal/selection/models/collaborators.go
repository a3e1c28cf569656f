package models

import (
	"time"

	id "stablehand/pkg/domain"
)

// Member is a stable member as seen by the membership directory.
type Member struct {
	UserID id.UserID `json:"user_id"`
	Name   string    `json:"name"`
	Email  string    `json:"email,omitempty"`
}

// MemberStats carries the fairness weights the ordering algorithms read.
type MemberStats struct {
	UserID              id.UserID `json:"user_id"`
	TotalPoints         int       `json:"total_points"`
	CurrentPeriodPoints int       `json:"current_period_points"`
}

// RoutineInstance is a schedulable chore on a given date.
type RoutineInstance struct {
	ID             id.RoutineInstanceID `json:"id"`
	OrganizationID id.OrganizationID    `json:"organization_id"`
	StableID       id.StableID          `json:"stable_id"`
	Title          string               `json:"title"`
	ScheduledDate  time.Time            `json:"scheduled_date"`
	PointsValue    int                  `json:"points_value"`
}
