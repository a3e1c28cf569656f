package routine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
)

const instanceKeyPrefix = "stablehand:routine-instance:"

// Source is the authoritative routine lookup the cache fronts.
type Source interface {
	GetInstance(ctx context.Context, instanceID id.RoutineInstanceID) (*models.RoutineInstance, error)
	ListInstances(ctx context.Context, stableID id.StableID, from, to time.Time) ([]models.RoutineInstance, error)
}

// Cached is a read-through Redis cache for single-instance lookups, the hot
// path of every recorded selection. Redis failures fall through to the source.
type Cached struct {
	source Source
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewCached(source Source, client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{source: source, client: client, ttl: ttl, logger: logger}
}

func (c *Cached) GetInstance(ctx context.Context, instanceID id.RoutineInstanceID) (*models.RoutineInstance, error) {
	key := instanceKeyPrefix + instanceID.String()

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var inst models.RoutineInstance
		if jsonErr := json.Unmarshal(raw, &inst); jsonErr == nil {
			return &inst, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt routine cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "routine cache read failed", "key", key, "error", err)
	}

	inst, err := c.source.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(inst); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "routine cache write failed", "key", key, "error", err)
		}
	}
	return inst, nil
}

// ListInstances is not cached; period listings are only read at creation.
func (c *Cached) ListInstances(ctx context.Context, stableID id.StableID, from, to time.Time) ([]models.RoutineInstance, error) {
	return c.source.ListInstances(ctx, stableID, from, to)
}

// Invalidate drops a cached instance after it changes upstream.
func (c *Cached) Invalidate(ctx context.Context, instanceID id.RoutineInstanceID) error {
	return c.client.Del(ctx, instanceKeyPrefix+instanceID.String()).Err()
}
