// Package entry persists the append-only selection ledger.
package entry

import (
	"context"
	"sort"
	"sync"

	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
	"stablehand/pkg/platform/sentinel"
)

type instanceKey struct {
	process  id.ProcessID
	instance id.RoutineInstanceID
}

// InMemory holds ledger entries per process.
type InMemory struct {
	mu         sync.RWMutex
	byProcess  map[id.ProcessID][]models.SelectionEntry
	byInstance map[instanceKey]models.SelectionEntry
}

func NewInMemory() *InMemory {
	return &InMemory{
		byProcess:  make(map[id.ProcessID][]models.SelectionEntry),
		byInstance: make(map[instanceKey]models.SelectionEntry),
	}
}

// Append adds an entry. A routine instance may appear once per process and a
// sequence number once per process; either duplicate returns ErrAlreadyUsed.
func (s *InMemory) Append(_ context.Context, e *models.SelectionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := instanceKey{process: e.ProcessID, instance: e.RoutineInstanceID}
	if _, taken := s.byInstance[key]; taken {
		return sentinel.ErrAlreadyUsed
	}
	for _, existing := range s.byProcess[e.ProcessID] {
		if existing.Sequence == e.Sequence {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.byInstance[key] = *e
	s.byProcess[e.ProcessID] = append(s.byProcess[e.ProcessID], *e)
	return nil
}

// ListByProcess returns entries in ascending sequence.
func (s *InMemory) ListByProcess(_ context.Context, processID id.ProcessID) ([]*models.SelectionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.byProcess[processID]
	out := make([]*models.SelectionEntry, len(stored))
	for i := range stored {
		e := stored[i]
		out[i] = &e
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (s *InMemory) FindByInstance(_ context.Context, processID id.ProcessID, instanceID id.RoutineInstanceID) (*models.SelectionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byInstance[instanceKey{process: processID, instance: instanceID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}
