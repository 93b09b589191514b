package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/insight/pkg/cache"
)

type cached struct {
	System
	cache  cache.System
	logger *slog.Logger
}

// WithCache wraps store with a read-through cache for single-job lookups.
// A successful Save refreshes the entry; a failed Save or cache write deletes
// it so readers fall through to the store. Read-through fills only populate
// absent keys, so a fill racing a Save never replaces the newer entry.
func WithCache(store System, c cache.System, logger *slog.Logger) System {
	return &cached{
		System: store,
		cache:  c,
		logger: logger.With("system", "jobs.cache"),
	}
}

// CacheKey returns the cache key of a job.
func CacheKey(c cache.System, id uuid.UUID) string {
	return c.Key("job", id.String())
}

func (c *cached) Save(ctx context.Context, job *Job) error {
	key := CacheKey(c.cache, job.ID)

	if err := c.System.Save(ctx, job); err != nil {
		c.invalidate(ctx, key, job.ID)
		return err
	}

	if err := c.put(ctx, key, job); err != nil {
		c.logger.WarnContext(ctx, "cache write failed", "job_id", job.ID, "error", err)
		c.invalidate(ctx, key, job.ID)
	}
	return nil
}

func (c *cached) Find(ctx context.Context, id uuid.UUID) (*Job, error) {
	key := CacheKey(c.cache, id)

	data, err := c.cache.Get(ctx, key)
	if err == nil {
		var j Job
		if err := json.Unmarshal(data, &j); err == nil {
			return &j, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt cache entry", "job_id", id)
	} else if !errors.Is(err, cache.ErrMiss) {
		c.logger.WarnContext(ctx, "cache read failed", "job_id", id, "error", err)
	}

	j, err := c.System.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, j)
	return j, nil
}

func (c *cached) put(ctx context.Context, key string, j *Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return c.cache.Set(ctx, key, data)
}

// fill caches j only if no Save has populated key since the store read.
func (c *cached) fill(ctx context.Context, key string, j *Job) {
	data, err := json.Marshal(j)
	if err != nil {
		c.logger.WarnContext(ctx, "encode job for cache", "job_id", j.ID, "error", err)
		return
	}
	written, err := c.cache.SetIfAbsent(ctx, key, data)
	if err != nil {
		c.logger.WarnContext(ctx, "cache fill failed", "job_id", j.ID, "error", err)
		return
	}
	if !written {
		c.logger.DebugContext(ctx, "cache fill skipped, newer entry present", "job_id", j.ID)
	}
}

func (c *cached) invalidate(ctx context.Context, key string, id uuid.UUID) {
	if err := c.cache.Delete(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "cache invalidation failed", "job_id", id, "error", err)
	}
}
