package handler

import (
	"strings"
	"time"

	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
	dErrors "stablehand/pkg/domain-errors"
)

const (
	maxMemberIDs         = 500
	maxNameLength        = 128
	maxDescriptionLength = 1000
	dateLayout           = "2006-01-02"
)

// TurnOrderRequest is the body of POST .../selection-processes/preview and
// the shared part of the create body.
type TurnOrderRequest struct {
	Algorithm          string   `json:"algorithm"`
	MemberIDs          []string `json:"member_ids"`
	SelectionStartDate string   `json:"selection_start_date"`
	SelectionEndDate   string   `json:"selection_end_date"`

	// Parsed values (populated by Validate)
	parsedAlgorithm models.Algorithm
	parsedMembers   []id.UserID
	parsedStart     time.Time
	parsedEnd       time.Time
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *TurnOrderRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	// Size validation (fail fast)
	if len(r.MemberIDs) > maxMemberIDs {
		return dErrors.New(dErrors.CodeValidation, "too many members")
	}

	algorithm, err := models.ParseAlgorithm(strings.TrimSpace(r.Algorithm))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	r.parsedAlgorithm = algorithm

	if len(r.MemberIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "member_ids is required")
	}
	r.parsedMembers = make([]id.UserID, 0, len(r.MemberIDs))
	for _, raw := range r.MemberIDs {
		userID, err := id.ParseUserID(strings.TrimSpace(raw))
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "member_ids contains an invalid user ID")
		}
		r.parsedMembers = append(r.parsedMembers, userID)
	}

	if r.parsedStart, err = parseDate(r.SelectionStartDate, "selection_start_date"); err != nil {
		return err
	}
	if r.parsedEnd, err = parseDate(r.SelectionEndDate, "selection_end_date"); err != nil {
		return err
	}
	if r.parsedEnd.Before(r.parsedStart) {
		return dErrors.New(dErrors.CodeValidation, "selection_end_date must not be before selection_start_date")
	}
	return nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(raw, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, field+" must be a date (YYYY-MM-DD)")
	}
	return models.DateOnly(t), nil
}

// CreateProcessRequest is the body of POST /stables/{stableID}/selection-processes.
type CreateProcessRequest struct {
	TurnOrderRequest
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r *CreateProcessRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Description) > maxDescriptionLength {
		return dErrors.New(dErrors.CodeValidation, "description must be 1000 characters or less")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, "name must be 128 characters or less")
	}
	return r.TurnOrderRequest.Validate()
}

// RecordSelectionRequest is the body of POST /selection-processes/{processID}/selections.
type RecordSelectionRequest struct {
	RoutineInstanceID string `json:"routine_instance_id"`

	parsedInstanceID id.RoutineInstanceID
}

func (r *RecordSelectionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	instanceID, err := id.ParseRoutineInstanceID(strings.TrimSpace(r.RoutineInstanceID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "routine_instance_id must be a valid ID")
	}
	r.parsedInstanceID = instanceID
	return nil
}
