package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Namespaces of unique names a registration holds while it is in progress.
const (
	SlugNamespace  = "slug"
	EmailNamespace = "email"
)

// Reserver holds a unique name (a slug, an email) for one registration until it is
// finalized, abandoned or expires. Reserve is atomic: of two registrations racing
// for a name exactly one holds it.
type Reserver interface {
	// Reserve claims name for holder. It returns true when holder owns the name afterwards,
	// including when it already did.
	Reserve(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	// Release frees name if holder still owns it.
	Release(ctx context.Context, name, holder string) error
	// Holder returns the registration currently holding name, or "" when it is free.
	Holder(ctx context.Context, name string) (string, error)
}

// releaseScript deletes the reservation only when it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisReserver reserves names with SET NX under "<namespace>:<name>" keys.
type RedisReserver struct {
	client *redis.Client
	prefix string
}

func NewRedisReserver(client *redis.Client, namespace string) *RedisReserver {
	return &RedisReserver{client: client, prefix: namespace + ":"}
}

func (r *RedisReserver) Reserve(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	key := r.prefix + name
	ok, err := r.client.SetNX(ctx, key, holder, ttl).Result()
	if err != nil {
		return false, unavailable(err)
	}
	if ok {
		return true, nil
	}
	current, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		ok, err = r.client.SetNX(ctx, key, holder, ttl).Result()
		if err != nil {
			return false, unavailable(err)
		}
		return ok, nil
	}
	if err != nil {
		return false, unavailable(err)
	}
	if current != holder {
		return false, nil
	}
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return false, unavailable(err)
	}
	return true, nil
}

func (r *RedisReserver) Release(ctx context.Context, name, holder string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.prefix + name}, holder).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return unavailable(err)
	}
	return nil
}

// Holder implements Reserver.
func (r *RedisReserver) Holder(ctx context.Context, name string) (string, error) {
	holder, err := r.client.Get(ctx, r.prefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", unavailable(err)
	}
	return holder, nil
}

type reservation struct {
	holder  string
	expires time.Time
}

// MemoryReserver is a process-local Reserver. Use one instance per namespace.
type MemoryReserver struct {
	mu    sync.Mutex
	names map[string]reservation
	now   func() time.Time
}

func NewMemoryReserver(now func() time.Time) *MemoryReserver {
	if now == nil {
		now = time.Now
	}
	return &MemoryReserver{names: make(map[string]reservation), now: now}
}

func (m *MemoryReserver) Reserve(_ context.Context, name, holder string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if cur, ok := m.names[name]; ok && now.Before(cur.expires) && cur.holder != holder {
		return false, nil
	}
	m.names[name] = reservation{holder: holder, expires: now.Add(ttl)}
	return true, nil
}

func (m *MemoryReserver) Release(_ context.Context, name, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.names[name]; ok && cur.holder == holder {
		delete(m.names, name)
	}
	return nil
}

// Holder implements Reserver.
func (m *MemoryReserver) Holder(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.names[name]; ok && m.now().Before(cur.expires) {
		return cur.holder, nil
	}
	return "", nil
}
