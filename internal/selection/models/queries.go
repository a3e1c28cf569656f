package models

import (
	"time"

	id "stablehand/pkg/domain"
)

// ListFilter narrows process listings. Zero-valued fields do not filter.
type ListFilter struct {
	OrganizationID id.OrganizationID
	StableID       id.StableID
	Status         ProcessStatus
	// CompletedSince keeps processes completed at or after this instant.
	CompletedSince time.Time
	Limit          int
}

// Matches reports whether p satisfies the filter.
func (f ListFilter) Matches(p *SelectionProcess) bool {
	if !f.OrganizationID.IsNil() && p.OrganizationID != f.OrganizationID {
		return false
	}
	if !f.StableID.IsNil() && p.StableID != f.StableID {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if !f.CompletedSince.IsZero() && (p.CompletedAt == nil || p.CompletedAt.Before(f.CompletedSince)) {
		return false
	}
	return true
}
