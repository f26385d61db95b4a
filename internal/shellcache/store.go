package shellcache

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Asset is one cached shell resource.
type Asset struct {
	ContentType string
	Body        []byte
}

// Store persists shell assets between requests.
type Store interface {
	Get(ctx context.Context, path string) (Asset, bool, error)
	Set(ctx context.Context, path string, a Asset) error
}

type MemoryStore struct {
	mu     sync.RWMutex
	assets map[string]Asset
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{assets: make(map[string]Asset)}
}

func (m *MemoryStore) Get(_ context.Context, path string) (Asset, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[path]
	return a, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, path string, a Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[path] = a
	return nil
}

// RedisStore keeps assets in a Redis hash per path so the shell survives
// process restarts on the terminal.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr, password string, db int) *RedisStore {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &RedisStore{client: c}
}

func assetKey(path string) string { return "shell:asset:" + path }

func (r *RedisStore) Get(ctx context.Context, path string) (Asset, bool, error) {
	m, err := r.client.HGetAll(ctx, assetKey(path)).Result()
	if err != nil {
		return Asset{}, false, err
	}
	body, ok := m["body"]
	if !ok {
		return Asset{}, false, nil
	}
	return Asset{ContentType: m["ctype"], Body: []byte(body)}, true, nil
}

func (r *RedisStore) Set(ctx context.Context, path string, a Asset) error {
	return r.client.HSet(ctx, assetKey(path), map[string]interface{}{
		"ctype": a.ContentType,
		"body":  a.Body,
	}).Err()
}
