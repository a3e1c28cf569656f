// Package history persists the write-once archive of completed processes.
package history

import (
	"context"
	"sync"

	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
	"stablehand/pkg/platform/sentinel"
)

type stableKey struct {
	org    id.OrganizationID
	stable id.StableID
}

type InMemory struct {
	mu        sync.RWMutex
	byProcess map[id.ProcessID]*models.History
	latest    map[stableKey]*models.History
}

func NewInMemory() *InMemory {
	return &InMemory{
		byProcess: make(map[id.ProcessID]*models.History),
		latest:    make(map[stableKey]*models.History),
	}
}

// CreateIfAbsent stores h unless the process already has a history record,
// in which case it returns ErrAlreadyUsed.
func (s *InMemory) CreateIfAbsent(_ context.Context, h *models.History) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byProcess[h.ProcessID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	stored := cloneHistory(h)
	s.byProcess[h.ProcessID] = stored

	key := stableKey{org: h.OrganizationID, stable: h.StableID}
	if cur, ok := s.latest[key]; !ok || newer(stored, cur) {
		s.latest[key] = stored
	}
	return nil
}

func (s *InMemory) FindByProcess(_ context.Context, processID id.ProcessID) (*models.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.byProcess[processID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneHistory(h), nil
}

// FindLatestByStable returns the most recently completed history for a stable.
func (s *InMemory) FindLatestByStable(_ context.Context, orgID id.OrganizationID, stableID id.StableID) (*models.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.latest[stableKey{org: orgID, stable: stableID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneHistory(h), nil
}

func newer(a, b *models.History) bool {
	if !a.CompletedAt.Equal(b.CompletedAt) {
		return a.CompletedAt.After(b.CompletedAt)
	}
	return a.ID.String() > b.ID.String()
}

func cloneHistory(h *models.History) *models.History {
	c := *h
	c.FinalTurnOrder = append([]models.HistoryTurn(nil), h.FinalTurnOrder...)
	return &c
}
