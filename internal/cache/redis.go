package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"scanventory-api/pkg/uid"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "scanventory"
	lockTTL          = 30 * time.Second
	lockRetryDelay   = 25 * time.Millisecond
)

// releaseLockScript deletes the lock only if it still holds our token,
// so an expired lock taken over by another instance is never released by us.
var releaseLockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// RedisCache implements Cache on a shared Redis instance.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache creates a Redis-backed cache on an existing client.
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	log.Printf("[RedisCache] Using prefix %s:cache", keyPrefix)
	return &RedisCache{client: client, keyPrefix: keyPrefix + ":cache:"}
}

// Get retrieves a value by key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores a value with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err()
}

// Delete removes a value by key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.keyPrefix+key).Err()
}

// GetOrSet retrieves a value or computes and stores it if missing.
// A failing Redis read falls through to fn so the cache never blocks reads.
func (c *RedisCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	value, err := c.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		log.Printf("[RedisCache] Get %s failed: %v", key, err)
	}

	value, err = fn()
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		log.Printf("[RedisCache] Set %s failed: %v", key, err)
	}
	return value, nil
}

// Stats reports the number of cache keys and the server's memory usage.
func (c *RedisCache) Stats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{"type": "redis"}

	pipe := c.client.Pipeline()
	dbSize := pipe.DBSize(ctx)
	memory := pipe.Info(ctx, "memory")
	if _, err := pipe.Exec(ctx); err != nil {
		stats["error"] = err.Error()
		return stats
	}
	stats["keys"] = dbSize.Val()
	stats["memory_info"] = memory.Val()
	return stats
}

// RedisLocker implements Locker with SET NX PX and a token-checked release.
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisLocker creates a distributed locker on an existing client.
func NewRedisLocker(client *redis.Client, keyPrefix string) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisLocker{client: client, keyPrefix: keyPrefix + ":lock:", ttl: lockTTL}
}

// Lock acquires key, polling until it is free or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.keyPrefix + key
	token := uid.New()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, err
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ErrLockTimeout
		case <-time.After(lockRetryDelay):
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseLockScript.Run(releaseCtx, l.client, []string{lockKey}, token).Err(); err != nil {
			log.Printf("[RedisLocker] Release %s failed: %v", key, err)
		}
	}, nil
}

var (
	_ Cache  = (*RedisCache)(nil)
	_ Locker = (*RedisLocker)(nil)
)
