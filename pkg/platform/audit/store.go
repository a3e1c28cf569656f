package audit

import (
	"context"

	id "stablehand/pkg/domain"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByProcess(ctx context.Context, processID id.ProcessID) ([]Event, error)
}
