package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/lead-manager/internal/domain"
)

// Cache holds the last known copy of each lead for offline use.
type Cache interface {
	Replace(ctx context.Context, leads []domain.Lead) error
	List(ctx context.Context) ([]domain.Lead, error)
	Get(ctx context.Context, id string) (*domain.Lead, bool, error)
	Put(ctx context.Context, lead domain.Lead) error
	Delete(ctx context.Context, id string) (bool, error)
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu    sync.RWMutex
	leads map[string]domain.Lead
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{leads: make(map[string]domain.Lead)}
}

func (m *MemoryCache) Replace(_ context.Context, leads []domain.Lead) error {
	next := make(map[string]domain.Lead, len(leads))
	for _, lead := range leads {
		next[lead.ID] = lead.Clone()
	}
	m.mu.Lock()
	m.leads = next
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) List(context.Context) ([]domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Lead, 0, len(m.leads))
	for _, lead := range m.leads {
		out = append(out, lead.Clone())
	}
	sortByCreation(out)
	return out, nil
}

func (m *MemoryCache) Get(_ context.Context, id string) (*domain.Lead, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lead, ok := m.leads[id]
	if !ok {
		return nil, false, nil
	}
	clone := lead.Clone()
	return &clone, true, nil
}

func (m *MemoryCache) Put(_ context.Context, lead domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[lead.ID] = lead.Clone()
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.leads[id]
	delete(m.leads, id)
	return ok, nil
}

// DefaultRedisKey is the hash holding cached leads.
const DefaultRedisKey = "leads:cache"

// RedisCache stores leads as JSON values of one Redis hash keyed by id.
type RedisCache struct {
	client *redis.Client
	key    string
}

// NewRedisCache builds a cache on client. An empty key selects DefaultRedisKey.
func NewRedisCache(client *redis.Client, key string) *RedisCache {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisCache{client: client, key: key}
}

// Replace swaps the whole hash inside one MULTI/EXEC block.
func (r *RedisCache) Replace(ctx context.Context, leads []domain.Lead) error {
	values := make([]any, 0, len(leads)*2)
	for _, lead := range leads {
		raw, err := json.Marshal(lead)
		if err != nil {
			return fmt.Errorf("encode lead %s: %w", lead.ID, err)
		}
		values = append(values, lead.ID, raw)
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(values) > 0 {
			pipe.HSet(ctx, r.key, values...)
		}
		return nil
	})
	return err
}

func (r *RedisCache) List(ctx context.Context) ([]domain.Lead, error) {
	entries, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Lead, 0, len(entries))
	for id, raw := range entries {
		var lead domain.Lead
		if err := json.Unmarshal([]byte(raw), &lead); err != nil {
			return nil, fmt.Errorf("decode cached lead %s: %w", id, err)
		}
		out = append(out, lead)
	}
	sortByCreation(out)
	return out, nil
}

func (r *RedisCache) Get(ctx context.Context, id string) (*domain.Lead, bool, error) {
	raw, err := r.client.HGet(ctx, r.key, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var lead domain.Lead
	if err := json.Unmarshal(raw, &lead); err != nil {
		return nil, false, fmt.Errorf("decode cached lead %s: %w", id, err)
	}
	return &lead, true, nil
}

func (r *RedisCache) Put(ctx context.Context, lead domain.Lead) error {
	raw, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("encode lead %s: %w", lead.ID, err)
	}
	return r.client.HSet(ctx, r.key, lead.ID, raw).Err()
}

func (r *RedisCache) Delete(ctx context.Context, id string) (bool, error) {
	n, err := r.client.HDel(ctx, r.key, id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func sortByCreation(leads []domain.Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		if leads[i].CreatedAt.Equal(leads[j].CreatedAt) {
			return leads[i].ID < leads[j].ID
		}
		return leads[i].CreatedAt.Before(leads[j].CreatedAt)
	})
}
