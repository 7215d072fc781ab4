package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

// WorkflowRepository stores workflow projections in Redis.
type WorkflowRepository struct {
	client *redis.Client
	prefix string
}

func (r *WorkflowRepository) key(id string) string {
	return fmt.Sprintf("%s:workflow:%s", r.prefix, id)
}

func (r *WorkflowRepository) allKey() string {
	return r.prefix + ":workflows"
}

func (r *WorkflowRepository) typeKey(workflowType string) string {
	return fmt.Sprintf("%s:workflows:type:%s", r.prefix, workflowType)
}

func (r *WorkflowRepository) stateKey(state models.State) string {
	return fmt.Sprintf("%s:workflows:state:%s", r.prefix, state)
}

// Create stores a new projection. SETNX makes the duplicate check atomic.
func (r *WorkflowRepository) Create(ctx context.Context, projection *models.WorkflowProjection) error {
	if projection.ID == "" {
		return persistence.NewWorkflowError("Create", "", persistence.ErrInvalidProjection)
	}

	data, err := json.Marshal(projection)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow projection: %w", err)
	}

	created, err := r.client.SetNX(ctx, r.key(projection.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx failed: %w", err)
	}

	if !created {
		return persistence.NewWorkflowError("Create", projection.ID, persistence.ErrWorkflowAlreadyExists)
	}

	pipe := r.client.Pipeline()
	pipe.ZAdd(ctx, r.allKey(), redis.Z{Score: float64(projection.CreatedAt.UnixNano()), Member: projection.ID})
	pipe.SAdd(ctx, r.typeKey(projection.WorkflowType), projection.ID)
	pipe.SAdd(ctx, r.stateKey(projection.State), projection.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}

	return nil
}

// Update replaces an existing projection and moves it between state
// indexes. The key is watched so a concurrent delete is never undone.
func (r *WorkflowRepository) Update(ctx context.Context, projection *models.WorkflowProjection) error {
	data, err := json.Marshal(projection)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow projection: %w", err)
	}

	key := r.key(projection.ID)

	err = watch(ctx, r.client, key, func(tx *redis.Tx) error {
		previous, err := load[models.WorkflowProjection](ctx, tx, key)
		if err != nil {
			return err
		}

		if previous == nil {
			return persistence.NewWorkflowError("Update", projection.ID, persistence.ErrWorkflowNotFound)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)

			if previous.State != projection.State {
				pipe.SRem(ctx, r.stateKey(previous.State), projection.ID)
				pipe.SAdd(ctx, r.stateKey(projection.State), projection.ID)
			}

			if previous.WorkflowType != projection.WorkflowType {
				pipe.SRem(ctx, r.typeKey(previous.WorkflowType), projection.ID)
				pipe.SAdd(ctx, r.typeKey(projection.WorkflowType), projection.ID)
			}

			return nil
		})

		return err
	})
	if err != nil && !persistence.IsWorkflowNotFound(err) {
		return fmt.Errorf("redis update failed: %w", err)
	}

	return err
}

// GetByID returns a projection, or nil when none exists.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowProjection, error) {
	return load[models.WorkflowProjection](ctx, r.client, r.key(id))
}

// GetAll returns every projection ordered by creation time.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.WorkflowProjection, error) {
	ids, err := r.client.ZRange(ctx, r.allKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange failed: %w", err)
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.key(id))
	}

	return loadMany[models.WorkflowProjection](ctx, r.client, keys)
}

// GetByType returns the projections of one workflow type.
func (r *WorkflowRepository) GetByType(ctx context.Context, workflowType string) ([]*models.WorkflowProjection, error) {
	return r.members(ctx, r.typeKey(workflowType))
}

// GetByState returns the projections currently in state.
func (r *WorkflowRepository) GetByState(ctx context.Context, state models.State) ([]*models.WorkflowProjection, error) {
	return r.members(ctx, r.stateKey(state))
}

// Delete removes a projection and its index entries.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) (bool, error) {
	key := r.key(id)
	existed := false

	err := watch(ctx, r.client, key, func(tx *redis.Tx) error {
		projection, err := load[models.WorkflowProjection](ctx, tx, key)
		if err != nil || projection == nil {
			existed = false

			return err
		}

		var deleted *redis.IntCmd

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			deleted = pipe.Del(ctx, key)
			pipe.ZRem(ctx, r.allKey(), id)
			pipe.SRem(ctx, r.typeKey(projection.WorkflowType), id)
			pipe.SRem(ctx, r.stateKey(projection.State), id)

			return nil
		})
		if err != nil {
			return err
		}

		existed = deleted.Val() > 0

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis delete failed: %w", err)
	}

	return existed, nil
}

func (r *WorkflowRepository) members(ctx context.Context, setKey string) ([]*models.WorkflowProjection, error) {
	ids, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers failed: %w", err)
	}

	projections, err := loadMany[models.WorkflowProjection](ctx, r.client, keysFor(ids, r.key))
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(projections, func(a, b *models.WorkflowProjection) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return projections, nil
}
