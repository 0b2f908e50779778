package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"taskboard-api/domain"
)

type backend interface {
	ListTasks(ctx context.Context, userID int64, f domain.TaskFilter) ([]domain.Task, error)
	ListCategories(ctx context.Context, userID int64) ([]string, error)
	CreateTask(ctx context.Context, userID int64, t domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, id, userID int64, p domain.TaskPatch) (bool, error)
	DeleteTask(ctx context.Context, id, userID int64) (bool, error)
	ToggleTask(ctx context.Context, id, userID int64) (bool, error)
	SetCompleted(ctx context.Context, id, userID int64, completed bool) (bool, error)
	DeleteTasks(ctx context.Context, userID int64, ids []int64) (int64, error)
	CompleteTasks(ctx context.Context, userID int64, ids []int64, completed bool) (int64, error)
	ReorderTasks(ctx context.Context, orders []domain.TaskOrder) error
}

// KV is the key-value store behind the cache. Implementations must treat
// failures as misses; a broken cache never fails a request.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// DeletePrefix drops every entry whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string)
}

const (
	scopeTasks      = "tasks:"
	scopeCategories = "categories:"

	// DefaultCacheTTL bounds how long a cached listing may be served.
	DefaultCacheTTL = 5 * time.Minute
)

// Cache wraps a Store with read-through caching for task and category
// listings. Any write invalidates both scopes wholesale: a task mutation can
// change sort positions, filter membership and the derived category set, so
// coarse invalidation is cheaper than tracking affected keys.
type Cache struct {
	*Store
	base backend
	kv   KV
	ttl  time.Duration
}

// NewCache creates a caching wrapper around base using the provided KV
// backend. A nil kv disables caching entirely.
func NewCache(base backend, kv KV, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base store is nil")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &Cache{base: base, kv: kv, ttl: ttl}
	if s, ok := base.(*Store); ok {
		c.Store = s
	}
	return c
}

func tasksCacheKey(userID int64, f domain.TaskFilter) string {
	return fmt.Sprintf("%s%d:search=%s&category=%s&sort=%s", scopeTasks, userID, f.Search, f.Category, f.Sort)
}

func categoriesCacheKey(userID int64) string {
	return fmt.Sprintf("%s%d", scopeCategories, userID)
}

func (c *Cache) ListTasks(ctx context.Context, userID int64, f domain.TaskFilter) ([]domain.Task, error) {
	key := tasksCacheKey(userID, f)
	if data, ok := c.load(ctx, key); ok {
		var tasks []domain.Task
		if err := json.Unmarshal(data, &tasks); err == nil {
			return tasks, nil
		}
	}

	tasks, err := c.base.ListTasks(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, tasks)
	return tasks, nil
}

func (c *Cache) ListCategories(ctx context.Context, userID int64) ([]string, error) {
	key := categoriesCacheKey(userID)
	if data, ok := c.load(ctx, key); ok {
		var categories []string
		if err := json.Unmarshal(data, &categories); err == nil {
			return categories, nil
		}
	}

	categories, err := c.base.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, categories)
	return categories, nil
}

func (c *Cache) CreateTask(ctx context.Context, userID int64, t domain.Task) (domain.Task, error) {
	created, err := c.base.CreateTask(ctx, userID, t)
	if err == nil {
		c.invalidate(ctx)
	}
	return created, err
}

func (c *Cache) UpdateTask(ctx context.Context, id, userID int64, p domain.TaskPatch) (bool, error) {
	ok, err := c.base.UpdateTask(ctx, id, userID, p)
	if err == nil && ok {
		c.invalidate(ctx)
	}
	return ok, err
}

func (c *Cache) DeleteTask(ctx context.Context, id, userID int64) (bool, error) {
	ok, err := c.base.DeleteTask(ctx, id, userID)
	if err == nil && ok {
		c.invalidate(ctx)
	}
	return ok, err
}

func (c *Cache) ToggleTask(ctx context.Context, id, userID int64) (bool, error) {
	ok, err := c.base.ToggleTask(ctx, id, userID)
	if err == nil && ok {
		c.invalidate(ctx)
	}
	return ok, err
}

func (c *Cache) SetCompleted(ctx context.Context, id, userID int64, completed bool) (bool, error) {
	ok, err := c.base.SetCompleted(ctx, id, userID, completed)
	if err == nil && ok {
		c.invalidate(ctx)
	}
	return ok, err
}

func (c *Cache) DeleteTasks(ctx context.Context, userID int64, ids []int64) (int64, error) {
	n, err := c.base.DeleteTasks(ctx, userID, ids)
	if err == nil && n > 0 {
		c.invalidate(ctx)
	}
	return n, err
}

func (c *Cache) CompleteTasks(ctx context.Context, userID int64, ids []int64, completed bool) (int64, error) {
	n, err := c.base.CompleteTasks(ctx, userID, ids, completed)
	if err == nil && n > 0 {
		c.invalidate(ctx)
	}
	return n, err
}

func (c *Cache) ReorderTasks(ctx context.Context, orders []domain.TaskOrder) error {
	if err := c.base.ReorderTasks(ctx, orders); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Cache) load(ctx context.Context, key string) ([]byte, bool) {
	if c.kv == nil {
		return nil, false
	}
	return c.kv.Get(ctx, key)
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.kv == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.kv.Set(ctx, key, data, c.ttl)
}

func (c *Cache) invalidate(ctx context.Context) {
	if c.kv == nil {
		return
	}
	c.kv.DeletePrefix(ctx, scopeTasks)
	c.kv.DeletePrefix(ctx, scopeCategories)
}
