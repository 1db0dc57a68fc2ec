package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrCacheMiss is returned when a role is not cached
var ErrCacheMiss = errors.New("role cache miss")

// Cache caches roles by ID
type Cache interface {
	Get(ctx context.Context, roleID int64) (*Role, error)
	Set(ctx context.Context, role *Role) error
	Invalidate(ctx context.Context, roleID int64) error
}

// LRUCache is an in-process role cache with per-entry expiry
type LRUCache struct {
	cache *lru.LRU[int64, *Role]
}

// NewLRUCache creates an in-process cache holding up to size roles for ttl
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	if size <= 0 {
		size = 256
	}
	return &LRUCache{cache: lru.NewLRU[int64, *Role](size, nil, ttl)}
}

func (c *LRUCache) Get(_ context.Context, roleID int64) (*Role, error) {
	role, ok := c.cache.Get(roleID)
	if !ok {
		return nil, ErrCacheMiss
	}
	return role.clone(), nil
}

func (c *LRUCache) Set(_ context.Context, role *Role) error {
	if role == nil {
		return fmt.Errorf("role cannot be nil")
	}
	c.cache.Add(role.ID, role.clone())
	return nil
}

func (c *LRUCache) Invalidate(_ context.Context, roleID int64) error {
	c.cache.Remove(roleID)
	return nil
}

// RedisCache shares cached roles between API instances
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a redis-backed role cache
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func roleKey(roleID int64) string {
	return fmt.Sprintf("stockroom:role:%d", roleID)
}

func (c *RedisCache) Get(ctx context.Context, roleID int64) (*Role, error) {
	data, err := c.client.Get(ctx, roleKey(roleID)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var role Role
	if err := json.Unmarshal(data, &role); err != nil {
		// Drop corrupt entries so the next lookup repopulates them
		c.client.Del(ctx, roleKey(roleID))
		return nil, fmt.Errorf("failed to unmarshal role: %w", err)
	}
	return &role, nil
}

func (c *RedisCache) Set(ctx context.Context, role *Role) error {
	if role == nil {
		return fmt.Errorf("role cannot be nil")
	}
	data, err := json.Marshal(role)
	if err != nil {
		return fmt.Errorf("failed to marshal role: %w", err)
	}
	if err := c.client.Set(ctx, roleKey(role.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, roleID int64) error {
	if err := c.client.Del(ctx, roleKey(roleID)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// CachedStore serves role lookups through a Cache and invalidates on writes.
// Cache failures fall through to the database.
type CachedStore struct {
	*Store
	cache Cache
}

// NewCachedStore wraps store with cache
func NewCachedStore(store *Store, cache Cache) *CachedStore {
	return &CachedStore{Store: store, cache: cache}
}

// GetRole retrieves a role, consulting the cache first
func (s *CachedStore) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	if role, err := s.cache.Get(ctx, roleID); err == nil {
		return role, nil
	}

	role, err := s.Store.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, role)
	return role, nil
}

// UpdateRole updates a role and drops its cached copy
func (s *CachedStore) UpdateRole(ctx context.Context, role *Role) error {
	if err := s.Store.UpdateRole(ctx, role); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, role.ID)
}

// DeleteRole deletes a role and drops its cached copy
func (s *CachedStore) DeleteRole(ctx context.Context, roleID int64) error {
	if err := s.Store.DeleteRole(ctx, roleID); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, roleID)
}

func (r *Role) clone() *Role {
	out := *r
	out.Forbidden = r.Forbidden.Clone()
	if r.OrganizationID != nil {
		id := *r.OrganizationID
		out.OrganizationID = &id
	}
	if r.CreatedBy != nil {
		id := *r.CreatedBy
		out.CreatedBy = &id
	}
	return &out
}
