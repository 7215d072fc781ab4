package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukex/cleanup/pkg/models"
	"github.com/redis/go-redis/v9"
)

// ProjectRepository stores projects in Redis.
type ProjectRepository struct {
	client *redis.Client
	prefix string
}

func (r *ProjectRepository) key(id string) string {
	return fmt.Sprintf("%s:project:%s", r.prefix, id)
}

func (r *ProjectRepository) allKey() string {
	return r.prefix + ":projects"
}

// Save creates or replaces a project.
func (r *ProjectRepository) Save(ctx context.Context, project *models.Project) error {
	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}

	project.UpdatedAt = now

	data, err := json.Marshal(project)
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(project.ID), data, 0)
	pipe.ZAdd(ctx, r.allKey(), redis.Z{Score: float64(project.CreatedAt.UnixNano()), Member: project.ID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}

	return nil
}

// GetByID returns a project, or nil when none exists.
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	return load[models.Project](ctx, r.client, r.key(id))
}

// GetAll returns every project ordered by creation time.
func (r *ProjectRepository) GetAll(ctx context.Context) ([]*models.Project, error) {
	ids, err := r.client.ZRange(ctx, r.allKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange failed: %w", err)
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.key(id))
	}

	return loadMany[models.Project](ctx, r.client, keys)
}

// Delete removes a project and reports whether it existed.
func (r *ProjectRepository) Delete(ctx context.Context, id string) (bool, error) {
	pipe := r.client.TxPipeline()
	deleted := pipe.Del(ctx, r.key(id))
	pipe.ZRem(ctx, r.allKey(), id)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis pipeline failed: %w", err)
	}

	return deleted.Val() > 0, nil
}
