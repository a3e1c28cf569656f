package audit

import (
	"time"

	id "stablehand/pkg/domain"
)

// EventCategory classifies audit events by retention and routing needs.
type EventCategory string

const (
	// CategoryCompliance covers events members may dispute later: who
	// picked what, when a round closed, who cancelled it.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers denied or throttled access.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine lifecycle noise.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category       EventCategory
	Timestamp      time.Time
	OrganizationID id.OrganizationID
	StableID       id.StableID
	ProcessID      id.ProcessID
	// UserID is the member the action concerns, e.g. the turn holder.
	UserID id.UserID
	// ActorID is who performed the action when different from UserID.
	ActorID   id.UserID
	Action    string
	Subject   string
	Reason    string
	RequestID string
	Details   map[string]any
}

type AuditEvent string

const (
	EventProcessCreated    AuditEvent = "selection_process_created"
	EventProcessStarted    AuditEvent = "selection_process_started"
	EventSelectionRecorded AuditEvent = "selection_recorded"
	EventTurnCompleted     AuditEvent = "selection_turn_completed"
	EventProcessCompleted  AuditEvent = "selection_process_completed"
	EventProcessCancelled  AuditEvent = "selection_process_cancelled"
	EventHistoryArchived   AuditEvent = "selection_history_archived"
	EventAccessDenied      AuditEvent = "selection_access_denied"
	EventRateLimitExceeded AuditEvent = "rate_limit_exceeded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventSelectionRecorded: CategoryCompliance,
	EventProcessCompleted:  CategoryCompliance,
	EventProcessCancelled:  CategoryCompliance,
	EventHistoryArchived:   CategoryCompliance,

	EventAccessDenied:      CategorySecurity,
	EventRateLimitExceeded: CategorySecurity,

	EventProcessCreated: CategoryOperations,
	EventProcessStarted: CategoryOperations,
	EventTurnCompleted:  CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
