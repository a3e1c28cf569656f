// Package process persists selection process aggregates.
package process

import (
	"context"
	"sort"
	"sync"

	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
	"stablehand/pkg/platform/sentinel"
)

// InMemory keeps processes in a map. Every read returns a clone so callers
// never share mutable state with the store.
type InMemory struct {
	mu        sync.RWMutex
	processes map[id.ProcessID]*models.SelectionProcess
}

func NewInMemory() *InMemory {
	return &InMemory{processes: make(map[id.ProcessID]*models.SelectionProcess)}
}

func (s *InMemory) Create(_ context.Context, p *models.SelectionProcess) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.processes[p.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	stored := p.Clone()
	if stored.Version == 0 {
		stored.Version = 1
	}
	p.Version = stored.Version
	s.processes[p.ID] = stored
	return nil
}

func (s *InMemory) FindByID(_ context.Context, processID id.ProcessID) (*models.SelectionProcess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.processes[processID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

// List returns matching processes newest first.
func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.SelectionProcess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.SelectionProcess
	for _, p := range s.processes {
		if filter.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Execute validates and mutates a process under the store lock. The mutation
// runs on a copy and is committed only after the invariants hold.
func (s *InMemory) Execute(_ context.Context, processID id.ProcessID, validate func(*models.SelectionProcess) error, mutate func(*models.SelectionProcess)) (*models.SelectionProcess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.processes[processID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	if err := working.CheckInvariants(); err != nil {
		return nil, err
	}
	working.Version = current.Version + 1
	s.processes[processID] = working
	return working.Clone(), nil
}
