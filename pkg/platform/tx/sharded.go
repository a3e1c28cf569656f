package tx

import (
	"context"
	"sync"
	"time"

	dErrors "stablehand/pkg/domain-errors"
)

const numShards = 128

type shardKey struct{}

var shardKeyCtx = shardKey{}

// WithShardKey names the aggregate a unit of work touches. Sharded runs
// callbacks with the same key one at a time; the Postgres runner ignores it.
func WithShardKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, shardKeyCtx, key)
}

// Sharded serializes in-memory units of work per shard key using a fixed
// array of mutexes. Callbacks without a key share shard 0.
type Sharded struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewSharded() *Sharded {
	return &Sharded{timeout: DefaultTimeout}
}

func (t *Sharded) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// the wait for the lock may have used up the deadline
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

func selectShard(ctx context.Context) int {
	if key, ok := ctx.Value(shardKeyCtx).(string); ok && key != "" {
		return int(hashString(key) % numShards)
	}
	return 0
}

// hashString is FNV-1a.
func hashString(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
