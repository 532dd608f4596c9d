package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"channel-scout/internal/background"
)

const (
	taskPrefix   = "channel-scout:task:v1:"
	taskIndexKey = "channel-scout:tasks"
)

// TaskStore keeps background task state in Redis so that any replica can
// answer status queries
type TaskStore struct {
	client *Client
	ttl    time.Duration
}

// NewTaskStore creates a task store whose entries expire after ttl
func NewTaskStore(client *Client, ttl time.Duration) *TaskStore {
	if ttl <= 0 {
		ttl = background.DefaultMaxTaskAge
	}
	return &TaskStore{client: client, ttl: ttl}
}

var _ background.TaskStore = (*TaskStore)(nil)

func taskKey(processID string) string {
	return taskPrefix + processID
}

func (s *TaskStore) write(ctx context.Context, result *background.TaskResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}

	_, err = s.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, taskKey(result.ProcessID), raw, s.ttl)
		pipe.ZAdd(ctx, taskIndexKey, redis.Z{
			Score:  float64(result.CreatedAt.Unix()),
			Member: result.ProcessID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write task: %w", err)
	}
	return nil
}

func (s *TaskStore) Store(ctx context.Context, result *background.TaskResult) error {
	return s.write(ctx, result)
}

func (s *TaskStore) Get(ctx context.Context, processID string) (*background.TaskResult, error) {
	raw, err := s.client.rdb.Get(ctx, taskKey(processID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, background.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task: %w", err)
	}

	var result background.TaskResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &result, nil
}

// Update overwrites an existing task
func (s *TaskStore) Update(ctx context.Context, result *background.TaskResult) error {
	n, err := s.client.rdb.Exists(ctx, taskKey(result.ProcessID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check task: %w", err)
	}
	if n == 0 {
		return background.ErrTaskNotFound
	}
	return s.write(ctx, result)
}

func (s *TaskStore) Delete(ctx context.Context, processID string) error {
	n, err := s.client.rdb.Del(ctx, taskKey(processID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	s.client.rdb.ZRem(ctx, taskIndexKey, processID)
	if n == 0 {
		return background.ErrTaskNotFound
	}
	return nil
}

// Cleanup drops tasks created before now-maxAge
func (s *TaskStore) Cleanup(ctx context.Context, maxAge time.Duration) error {
	cutoff := strconv.FormatInt(time.Now().Add(-maxAge).Unix(), 10)
	ids, err := s.client.rdb.ZRangeByScore(ctx, taskIndexKey, &redis.ZRangeBy{Min: "-inf", Max: "(" + cutoff}).Result()
	if err != nil {
		return fmt.Errorf("failed to list expired tasks: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = taskKey(id)
		members[i] = id
	}
	_, err = s.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, taskIndexKey, members...)
		return nil
	})
	return err
}

// List returns the tasks still present, oldest first
func (s *TaskStore) List(ctx context.Context) ([]*background.TaskResult, error) {
	ids, err := s.client.rdb.ZRange(ctx, taskIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if len(ids) == 0 {
		return []*background.TaskResult{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = taskKey(id)
	}
	values, err := s.client.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}

	results := make([]*background.TaskResult, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// expired by TTL, index entry is stale
			continue
		}
		var result background.TaskResult
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			continue
		}
		results = append(results, &result)
	}
	return results, nil
}
