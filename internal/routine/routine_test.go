package routine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
	"stablehand/pkg/platform/sentinel"
)

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestInMemory_ListInstancesWithinInclusivePeriod(t *testing.T) {
	stable := id.StableID(uuid.New())
	s := NewInMemory()
	for d := 1; d <= 5; d++ {
		s.Add(models.RoutineInstance{ID: id.RoutineInstanceID(uuid.New()), StableID: stable, ScheduledDate: day(d).Add(7 * time.Hour), PointsValue: d})
	}
	s.Add(models.RoutineInstance{ID: id.RoutineInstanceID(uuid.New()), StableID: id.StableID(uuid.New()), ScheduledDate: day(2)})

	got, err := s.ListInstances(context.Background(), stable, day(2), day(4))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{2, 3, 4}, []int{got[0].PointsValue, got[1].PointsValue, got[2].PointsValue})

	_, err = s.GetInstance(context.Background(), id.RoutineInstanceID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCached_FallsBackToSourceWhenRedisIsDown(t *testing.T) {
	source := NewInMemory()
	inst := models.RoutineInstance{ID: id.RoutineInstanceID(uuid.New()), StableID: id.StableID(uuid.New()), Title: "Feeding", ScheduledDate: day(3)}
	source.Add(inst)

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	cache := NewCached(source, client, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	got, err := cache.GetInstance(context.Background(), inst.ID)
	require.NoError(t, err)
	assert.Equal(t, "Feeding", got.Title)

	_, err = cache.GetInstance(context.Background(), id.RoutineInstanceID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
