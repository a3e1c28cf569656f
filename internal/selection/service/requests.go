package service

import (
	"strings"
	"time"

	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
	dErrors "stablehand/pkg/domain-errors"
)

const maxMembers = 500

// PreviewRequest carries the inputs of a turn order computation.
type PreviewRequest struct {
	StableID           id.StableID
	Algorithm          models.Algorithm
	MemberIDs          []id.UserID
	SelectionStartDate time.Time
	SelectionEndDate   time.Time
}

// Validate rejects empty and duplicate member lists and inverted periods.
func (r *PreviewRequest) Validate() error {
	if r.StableID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "stable_id is required")
	}
	if !r.Algorithm.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unsupported algorithm")
	}
	if len(r.MemberIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one member is required")
	}
	if len(r.MemberIDs) > maxMembers {
		return dErrors.New(dErrors.CodeValidation, "too many members")
	}
	seen := make(map[id.UserID]struct{}, len(r.MemberIDs))
	for _, m := range r.MemberIDs {
		if m.IsNil() {
			return dErrors.New(dErrors.CodeValidation, "member IDs cannot be nil")
		}
		if _, dup := seen[m]; dup {
			return dErrors.New(dErrors.CodeValidation, "member list contains duplicates")
		}
		seen[m] = struct{}{}
	}
	if r.SelectionStartDate.IsZero() || r.SelectionEndDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "selection start and end dates are required")
	}
	if models.DateOnly(r.SelectionEndDate).Before(models.DateOnly(r.SelectionStartDate)) {
		return dErrors.New(dErrors.CodeValidation, "selection end date must not be before start date")
	}
	return nil
}

// CreateRequest is a preview plus the descriptive fields of the process.
type CreateRequest struct {
	PreviewRequest
	Name        string
	Description string
}

func (r *CreateRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return r.PreviewRequest.Validate()
}
