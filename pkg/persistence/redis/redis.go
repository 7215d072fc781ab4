// Package redis provides Redis persistence for workflow projections and projects.
//
// Records are stored as JSON strings. A sorted set scored by creation time
// keeps listing order, and per-type and per-state sets back the filtered
// queries.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/dukex/cleanup/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "cleanup"

// Persistence implements the persistence layer on a Redis client.
type Persistence struct {
	client      *redis.Client
	prefix      string
	workflows   *WorkflowRepository
	projectRepo *ProjectRepository
}

// Option configures a Persistence.
type Option func(*Persistence)

// WithPrefix sets the key prefix for Redis keys. Default is "cleanup".
func WithPrefix(prefix string) Option {
	return func(p *Persistence) {
		p.prefix = prefix
	}
}

// NewPersistence creates a Redis-backed persistence layer.
func NewPersistence(client *redis.Client, opts ...Option) *Persistence {
	p := &Persistence{
		client: client,
		prefix: defaultPrefix,
	}

	for _, opt := range opts {
		opt(p)
	}

	p.workflows = &WorkflowRepository{client: client, prefix: p.prefix}
	p.projectRepo = &ProjectRepository{client: client, prefix: p.prefix}

	return p
}

// NewPersistenceFromURL parses a redis:// URL and connects.
func NewPersistenceFromURL(ctx context.Context, url string, opts ...Option) (*Persistence, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	p := NewPersistence(redis.NewClient(options), opts...)

	err = p.HealthCheck(ctx)
	if err != nil {
		_ = p.client.Close()

		return nil, err
	}

	return p, nil
}

// WorkflowRepository returns the workflow projection repository.
func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflows
}

// ProjectRepository returns the project repository.
func (p *Persistence) ProjectRepository() persistence.ProjectRepository {
	return p.projectRepo
}

// HealthCheck pings the server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// Close closes the client.
func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// maxTxAttempts bounds the retries of an optimistic transaction.
const maxTxAttempts = 5

// watch runs fn in an optimistic transaction over key. The transaction is
// retried when key changes between fn's reads and its EXEC.
func watch(ctx context.Context, client *redis.Client, key string, fn func(tx *redis.Tx) error) error {
	for range maxTxAttempts {
		err := client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}

	return fmt.Errorf("redis transaction on %s kept conflicting: %w", key, redis.TxFailedErr)
}

func load[T any](ctx context.Context, client getter, key string) (*T, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var doc T

	err = json.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}

	return &doc, nil
}

// loadMany fetches keys in one round trip, skipping keys that vanished.
func loadMany[T any](ctx context.Context, client *redis.Client, keys []string) ([]*T, error) {
	docs := make([]*T, 0, len(keys))
	if len(keys) == 0 {
		return docs, nil
	}

	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var doc T

		err = json.Unmarshal([]byte(raw), &doc)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", keys[i], err)
		}

		docs = append(docs, &doc)
	}

	return docs, nil
}

func keysFor(ids []string, key func(string) string) []string {
	keys := make([]string, 0, len(ids))
	for _, id := range slices.Sorted(slices.Values(ids)) {
		keys = append(keys, key(id))
	}

	return keys
}
