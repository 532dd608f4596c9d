package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"channel-scout/internal/background"
	"channel-scout/internal/logging"
	"channel-scout/pkg/models"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewWithClient(rdb, time.Hour, logging.NewNopLogger())
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestContactCacheRoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, hit, err := c.GetContact(ctx, "UC1")
	require.NoError(t, err)
	assert.False(t, hit)

	info := models.ContactInfo{Email: "jane.doe@creators.tv", Links: []string{"https://x.com/jane"}}
	require.NoError(t, c.SetContact(ctx, "UC1", info))

	got, hit, err := c.GetContact(ctx, "UC1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, info, got)
	assert.Equal(t, time.Hour, mr.TTL(contactKey("UC1")))

	mr.FastForward(2 * time.Hour)
	_, hit, err = c.GetContact(ctx, "UC1")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestContactCacheCorruptEntry(t *testing.T) {
	c, mr := newTestClient(t)
	require.NoError(t, mr.Set(contactKey("UC2"), "{not json"))

	_, hit, err := c.GetContact(context.Background(), "UC2")
	assert.Error(t, err)
	assert.False(t, hit)
}

func TestTaskStore(t *testing.T) {
	c, _ := newTestClient(t)
	store := NewTaskStore(c, time.Hour)
	ctx := context.Background()

	_, err := store.Get(ctx, "p1")
	assert.ErrorIs(t, err, background.ErrTaskNotFound)
	assert.ErrorIs(t, store.Update(ctx, &background.TaskResult{ProcessID: "p1"}), background.ErrTaskNotFound)

	old := &background.TaskResult{ProcessID: "old", Status: background.TaskStatusSuccess, CreatedAt: time.Now().Add(-3 * time.Hour)}
	task := &background.TaskResult{ProcessID: "p1", Type: background.TaskTypeSearch, Status: background.TaskStatusAccepted, CreatedAt: time.Now()}
	require.NoError(t, store.Store(ctx, old))
	require.NoError(t, store.Store(ctx, task))

	task.Status = background.TaskStatusSuccess
	task.Data = &models.RunResult{RunID: "run-1", Query: "cooking"}
	require.NoError(t, store.Update(ctx, task))

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, background.TaskStatusSuccess, got.Status)
	assert.Equal(t, "run-1", got.Data.RunID)

	tasks, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "old", tasks[0].ProcessID)

	require.NoError(t, store.Cleanup(ctx, time.Hour))
	tasks, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "p1", tasks[0].ProcessID)

	require.NoError(t, store.Delete(ctx, "p1"))
	assert.ErrorIs(t, store.Delete(ctx, "p1"), background.ErrTaskNotFound)
}
