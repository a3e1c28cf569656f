//go:build integration

package routine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
	"stablehand/pkg/testutil/containers"
)

type countingSource struct {
	*InMemory
	gets int
}

func (c *countingSource) GetInstance(ctx context.Context, instanceID id.RoutineInstanceID) (*models.RoutineInstance, error) {
	c.gets++
	return c.InMemory.GetInstance(ctx, instanceID)
}

type CacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *CacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *CacheSuite) TestReadThrough() {
	ctx := context.Background()
	source := &countingSource{InMemory: NewInMemory()}
	inst := models.RoutineInstance{
		ID:            id.RoutineInstanceID(uuid.New()),
		StableID:      id.StableID(uuid.New()),
		Title:         "Mucking out",
		ScheduledDate: day(4),
		PointsValue:   3,
	}
	source.Add(inst)

	cache := NewCached(source, s.redis.Client, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	first, err := cache.GetInstance(ctx, inst.ID)
	s.Require().NoError(err)
	second, err := cache.GetInstance(ctx, inst.ID)
	s.Require().NoError(err)

	s.Equal(1, source.gets, "second read is served from redis")
	s.Equal(first.Title, second.Title)
	s.Equal(3, second.PointsValue)

	s.Require().NoError(cache.Invalidate(ctx, inst.ID))
	_, err = cache.GetInstance(ctx, inst.ID)
	s.Require().NoError(err)
	s.Equal(2, source.gets)
}
