package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "stablehand/pkg/domain"
	audit "stablehand/pkg/platform/audit"
	"stablehand/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	processID := id.ProcessID(uuid.New())
	err := pub.Emit(context.Background(), audit.Event{
		ProcessID: processID,
		Action:    string(audit.EventProcessCreated),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), processID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventProcessCreated), events[0].Action)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))

	processID := id.ProcessID(uuid.New())
	err := pub.Emit(context.Background(), audit.Event{
		ProcessID: processID,
		Action:    string(audit.EventSelectionRecorded),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		events, _ := pub.List(context.Background(), processID)
		return len(events) == 1
	}, time.Second, 10*time.Millisecond)

	pub.Close()
	events, err := pub.List(context.Background(), processID)
	require.NoError(t, err)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	processID := id.ProcessID(uuid.New())
	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{
			ProcessID: processID,
			Action:    string(audit.EventSelectionRecorded),
		}))
	}

	pub.Close()

	events, err := store.ListByProcess(context.Background(), processID)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_EmitAfterCloseWritesThrough(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	pub.Close()
	pub.Close()

	processID := id.ProcessID(uuid.New())
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		ProcessID: processID,
		Action:    string(audit.EventProcessCancelled),
	}))

	events, err := store.ListByProcess(context.Background(), processID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPublisher_BufferFull_DoesNotPanic(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	processID := id.ProcessID(uuid.New())
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{
				ProcessID: processID,
				Action:    string(audit.EventTurnCompleted),
			})
			if err != nil {
				assert.ErrorIs(t, err, ErrBufferFull)
			}
		}()
	}
	wg.Wait()
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	processID := id.ProcessID(uuid.New())
	before := time.Now()
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		ProcessID: processID,
		Action:    string(audit.EventProcessStarted),
	}))
	after := time.Now()

	events, err := pub.List(context.Background(), processID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.Before(before))
	assert.False(t, events[0].Timestamp.After(after))
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	processID := id.ProcessID(uuid.New())
	customTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		ProcessID: processID,
		Action:    string(audit.EventProcessStarted),
		Timestamp: customTime,
	}))

	events, err := pub.List(context.Background(), processID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
}

func TestPublisher_KeepsOrderPerProcess(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	processID := id.ProcessID(uuid.New())
	actions := []audit.AuditEvent{
		audit.EventProcessCreated,
		audit.EventProcessStarted,
		audit.EventSelectionRecorded,
	}
	for _, action := range actions {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{ProcessID: processID, Action: string(action)}))
	}
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		ProcessID: id.ProcessID(uuid.New()),
		Action:    string(audit.EventProcessCreated),
	}))

	result, err := pub.List(context.Background(), processID)
	require.NoError(t, err)
	require.Len(t, result, 3)
	for i, action := range actions {
		assert.Equal(t, string(action), result[i].Action)
	}
}
