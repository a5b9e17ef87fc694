package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/finchinslc/openclaw-board/domain"
)

// Cache wraps a Storage instance with Redis-backed caching of task listings.
// Every mutation that can change a listing evicts the cached copies.
type Cache struct {
	*Storage
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client and TTL.
func NewCache(base *Storage, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{Storage: base, redis: client, ttl: ttl}
}

func (c *Cache) ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	key := tasksCacheKey(filter)
	if tasks, ok := c.loadTasks(ctx, key); ok {
		return tasks, nil
	}
	tasks, err := c.Storage.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	c.storeTasks(ctx, key, tasks)
	return tasks, nil
}

func (c *Cache) CreateTask(ctx context.Context, in domain.NewTask, actor domain.Actor) (domain.Task, error) {
	t, err := c.Storage.CreateTask(ctx, in, actor)
	if err == nil {
		c.evict(ctx)
	}
	return t, err
}

func (c *Cache) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch, actor domain.Actor) (domain.Task, domain.Task, []domain.Change, error) {
	before, after, changes, err := c.Storage.UpdateTask(ctx, id, patch, actor)
	if err == nil && len(changes) > 0 {
		c.evict(ctx)
	}
	return before, after, changes, err
}

func (c *Cache) DeleteTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := c.Storage.DeleteTask(ctx, id)
	if err == nil {
		c.evict(ctx)
	}
	return t, err
}

func (c *Cache) CreateSubtask(ctx context.Context, taskID, title string) (domain.Subtask, error) {
	st, err := c.Storage.CreateSubtask(ctx, taskID, title)
	if err == nil {
		c.evict(ctx)
	}
	return st, err
}

func (c *Cache) UpdateSubtask(ctx context.Context, taskID, subtaskID string, patch domain.SubtaskPatch) (domain.Subtask, error) {
	st, err := c.Storage.UpdateSubtask(ctx, taskID, subtaskID, patch)
	if err == nil {
		c.evict(ctx)
	}
	return st, err
}

func (c *Cache) DeleteSubtask(ctx context.Context, taskID, subtaskID string) error {
	err := c.Storage.DeleteSubtask(ctx, taskID, subtaskID)
	if err == nil {
		c.evict(ctx)
	}
	return err
}

func (c *Cache) AddComment(ctx context.Context, taskID, content string, actor domain.Actor) (domain.Comment, error) {
	cm, err := c.Storage.AddComment(ctx, taskID, content, actor)
	if err == nil {
		c.evict(ctx)
	}
	return cm, err
}

func (c *Cache) loadTasks(ctx context.Context, key string) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) storeTasks(ctx context.Context, key string, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx,
		tasksCacheKey(domain.TaskFilter{}),
		tasksCacheKey(domain.TaskFilter{IncludeArchived: true}),
	).Result()
}

func tasksCacheKey(filter domain.TaskFilter) string {
	if filter.IncludeArchived {
		return "tasks:all"
	}
	return "tasks:active"
}
