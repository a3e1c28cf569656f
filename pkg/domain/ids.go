package domain

import (
	"github.com/google/uuid"

	dErrors "stablehand/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so the compiler rejects passing a
// StableID where a ProcessID is expected. Construct from external input with
// the Parse* functions; they reject empty, malformed and nil UUIDs.
type (
	OrganizationID    uuid.UUID
	StableID          uuid.UUID
	UserID            uuid.UUID
	ProcessID         uuid.UUID
	RoutineInstanceID uuid.UUID
	EntryID           uuid.UUID
	HistoryID         uuid.UUID
)

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

func unmarshalUUID(text []byte, label string) (uuid.UUID, error) {
	if len(text) == 0 {
		return uuid.Nil, nil
	}
	return parseUUID(string(text), label)
}

func ParseOrganizationID(s string) (OrganizationID, error) {
	u, err := parseUUID(s, "organization ID")
	return OrganizationID(u), err
}

func ParseStableID(s string) (StableID, error) {
	u, err := parseUUID(s, "stable ID")
	return StableID(u), err
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

func ParseProcessID(s string) (ProcessID, error) {
	u, err := parseUUID(s, "selection process ID")
	return ProcessID(u), err
}

func ParseRoutineInstanceID(s string) (RoutineInstanceID, error) {
	u, err := parseUUID(s, "routine instance ID")
	return RoutineInstanceID(u), err
}

func ParseEntryID(s string) (EntryID, error) {
	u, err := parseUUID(s, "selection entry ID")
	return EntryID(u), err
}

func ParseHistoryID(s string) (HistoryID, error) {
	u, err := parseUUID(s, "history ID")
	return HistoryID(u), err
}

func (id OrganizationID) String() string { return uuid.UUID(id).String() }
func (id OrganizationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id OrganizationID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}
func (id *OrganizationID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text, "organization ID")
	*id = OrganizationID(u)
	return err
}

func (id StableID) String() string { return uuid.UUID(id).String() }
func (id StableID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id StableID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}
func (id *StableID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text, "stable ID")
	*id = StableID(u)
	return err
}

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id UserID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}
func (id *UserID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text, "user ID")
	*id = UserID(u)
	return err
}

func (id ProcessID) String() string { return uuid.UUID(id).String() }
func (id ProcessID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ProcessID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}
func (id *ProcessID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text, "selection process ID")
	*id = ProcessID(u)
	return err
}

func (id RoutineInstanceID) String() string { return uuid.UUID(id).String() }
func (id RoutineInstanceID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RoutineInstanceID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}
func (id *RoutineInstanceID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text, "routine instance ID")
	*id = RoutineInstanceID(u)
	return err
}

func (id EntryID) String() string { return uuid.UUID(id).String() }
func (id EntryID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}
func (id *EntryID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text, "selection entry ID")
	*id = EntryID(u)
	return err
}

func (id HistoryID) String() string { return uuid.UUID(id).String() }
func (id HistoryID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id HistoryID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}
func (id *HistoryID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text, "history ID")
	*id = HistoryID(u)
	return err
}
