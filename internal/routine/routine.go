// Package routine looks up the schedulable routine instances members pick
// during a selection process.
package routine

import (
	"context"
	"sort"
	"sync"
	"time"

	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
	"stablehand/pkg/platform/sentinel"
)

// InMemory is a routine catalogue used when no database is configured.
type InMemory struct {
	mu        sync.RWMutex
	instances map[id.RoutineInstanceID]models.RoutineInstance
}

func NewInMemory() *InMemory {
	return &InMemory{instances: make(map[id.RoutineInstanceID]models.RoutineInstance)}
}

// Add registers or replaces an instance.
func (s *InMemory) Add(inst models.RoutineInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst.ScheduledDate = models.DateOnly(inst.ScheduledDate)
	s.instances[inst.ID] = inst
}

func (s *InMemory) GetInstance(_ context.Context, instanceID id.RoutineInstanceID) (*models.RoutineInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[instanceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &inst, nil
}

// ListInstances returns the stable's instances scheduled within [from, to],
// ordered by date.
func (s *InMemory) ListInstances(_ context.Context, stableID id.StableID, from, to time.Time) ([]models.RoutineInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, to = models.DateOnly(from), models.DateOnly(to)
	var out []models.RoutineInstance
	for _, inst := range s.instances {
		if inst.StableID != stableID {
			continue
		}
		if inst.ScheduledDate.Before(from) || inst.ScheduledDate.After(to) {
			continue
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ScheduledDate.Before(out[j].ScheduledDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}
